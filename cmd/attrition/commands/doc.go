// Package commands defines the attrition CLI.
//
// Commands
//
//   - serve      Run the HTTP prediction service
//   - predict    Score one JSON record from a file or stdin
//   - features   Print the feature list and categorical options
//
// Configuration comes from ATTRITION_* environment variables; global flags
// override the most common ones.
package commands

package commands

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/crimson-sun/attrition/internal/config"
	"github.com/crimson-sun/attrition/internal/logging"
	"github.com/crimson-sun/attrition/pkg/attrition"
)

var (
	cfg    config.Config
	logger *slog.Logger

	artifactDir string
	logLevel    string
	logFormat   string
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "attrition",
		Short:        "Employee attrition prediction service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Load()
			flags := cmd.Flags()
			if flags.Changed("artifacts") {
				cfg.Artifacts.Dir = artifactDir
				if os.Getenv("ATTRITION_ORT_LIBRARY") == "" {
					cfg.Engine.LibraryPath = filepath.Join(artifactDir, "libonnxruntime.so")
				}
			}
			if flags.Changed("log-level") {
				cfg.Log.Level = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Log.Format = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = logging.Init(cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&artifactDir, "artifacts", "", "artifact directory (default $ATTRITION_ARTIFACT_DIR or models)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(serveCmd(), predictCmd(), featuresCmd())
	return root
}

// predictorOptions translates the loaded configuration into library options.
func predictorOptions(c config.Config) []attrition.Option {
	policy, _ := attrition.ParsePolicy(c.Engine.UnknownCategory)
	a := c.Artifacts
	return []attrition.Option{
		attrition.WithArtifactDir(a.Dir),
		attrition.WithArtifactPaths(
			filepath.Join(a.Dir, a.ModelFile),
			filepath.Join(a.Dir, a.MappingsFile),
			filepath.Join(a.Dir, a.FeaturesFile),
		),
		attrition.WithManifestPath(filepath.Join(a.Dir, a.ManifestFile)),
		attrition.WithManifestVerification(a.VerifyManifest),
		attrition.WithRuntimeLibrary(c.Engine.LibraryPath),
		attrition.WithIntraOpThreads(c.Engine.IntraOpThreads),
		attrition.WithUnknownCategoryPolicy(policy),
		attrition.WithLogger(logger),
	}
}

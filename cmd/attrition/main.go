package main

import (
	"os"

	"github.com/crimson-sun/attrition/cmd/attrition/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}

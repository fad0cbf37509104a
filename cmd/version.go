package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// This is overridden at build time via -ldflags.
var version = "0.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version)
	},
}

func init() {
	RootCmd.AddCommand(versionCmd)
}

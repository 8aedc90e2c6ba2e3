package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version, build information, and runtime details.`,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		//nolint:errcheck // CLI output
		fmt.Fprintf(w, "rlm version %s\n", version)
		//nolint:errcheck // CLI output
		fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
		//nolint:errcheck // CLI output
		fmt.Fprintf(w, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

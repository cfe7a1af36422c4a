package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"respcore/internal/stats"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionFmt = "respcore %s\nGOOS: %s-%s\n"

var versionCmd = &cobra.Command{
	Use: "version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf(versionFmt, stats.Version, runtime.GOOS, runtime.GOARCH)
	},
}

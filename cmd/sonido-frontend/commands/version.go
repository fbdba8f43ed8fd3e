package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-frontend/algorithms/spectral"
	"github.com/RyanBlaney/sonido-frontend/cmd/sonido-frontend/internal/build"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, build.String())
		if verbose {
			fmt.Fprintf(out, "  go:       %s\n", runtime.Version())
			fmt.Fprintf(out, "  backends: %v\n", spectral.BackendNames())
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

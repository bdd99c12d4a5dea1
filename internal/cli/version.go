package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Set via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build and runtime information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		brand.Fprintf(out, "neuralmap %s", Version)
		subtle.Fprintf(out, " (commit %s, built %s, %s %s/%s)\n",
			Commit, BuildDate, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

// VersionString is the short form reported by /api/health.
func VersionString() string {
	return fmt.Sprintf("%s+%s", Version, Commit)
}

package cli

import (
	"fmt"
	"os"

	cmdpkg "github.com/berrythewa/datalibrary/internal/cli/cmd"
)

// SetVersionInfo sets the version information used by the version command
func SetVersionInfo(version, buildTime, commit string) {
	cmdpkg.SetVersionInfo(version, buildTime, commit)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := cmdpkg.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

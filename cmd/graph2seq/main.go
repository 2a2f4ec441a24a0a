package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/graphtext/graph2seq/internal/config"
)

// Build-time variables set via ldflags.
var (
	commit    = ""
	buildDate = ""
)

func versionString() string {
	if commit != "" && buildDate != "" {
		return fmt.Sprintf("graph2seq version %s (commit: %s, built: %s)", config.Version, commit, buildDate)
	}
	return fmt.Sprintf("graph2seq version %s", config.Version)
}

func main() {
	rootCmd := &cobra.Command{
		Use:          "graph2seq",
		Short:        "graph2seq — graph-to-sequence translation service",
		Version:      versionString(),
		SilenceUsage: true,
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newTranslateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(1)
}

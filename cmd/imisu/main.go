package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hamed0406/imisu/internal/config"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	serve := newServeCommand(&configPath)
	root := &cobra.Command{
		Use:           "imisu",
		Short:         "Health monitoring endpoint for HTTP, DNS, TCP and ping targets",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve.RunE,
	}
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration")
	root.AddCommand(
		serve,
		newValidateCommand(&configPath),
		newCheckCommand(&configPath),
	)
	return root
}

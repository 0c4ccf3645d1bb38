package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hamed0406/imisu/internal/config"
	"github.com/hamed0406/imisu/internal/domain"
)

func newValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and list the services it defines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			cfg, err := config.Load(*configPath)
			if err != nil {
				fmt.Fprintln(out, "✖", err)
				return err
			}

			fmt.Fprintf(out, "✔ listen=%s\n", cfg.Addr)
			if cfg.ExposeFullAPI {
				fmt.Fprintln(out, "⚠ exposeFullApi is on: /services reveals every configured target")
			}
			if len(cfg.Services) == 0 {
				fmt.Fprintln(out, "⚠ no services configured; /services/health always reports 200")
			}
			for _, s := range cfg.Services {
				mark := "✔"
				if !s.Enabled() {
					mark = "-"
				}
				fmt.Fprintf(out, "%s %-20s %-5s %s\n", mark, s.Name, s.Config.Kind(), domain.Target(s.Config))
			}
			fmt.Fprintln(out, "✔ config valid")
			return nil
		},
	}
}

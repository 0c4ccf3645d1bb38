package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hamed0406/imisu/internal/config"
	"github.com/hamed0406/imisu/internal/monitor"
	"github.com/hamed0406/imisu/internal/repo"
	"github.com/hamed0406/imisu/internal/repo/memory"
)

// errUnhealthy turns a non-200 status into a non-zero exit code.
type errUnhealthy struct{ status monitor.Status }

func (e errUnhealthy) Error() string { return "unhealthy: " + e.status.String() }

func newCheckCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [service]",
		Short: "Probe one service, or all enabled services, and print the status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			ev := newEvaluator(cfg, zap.NewNop(), nil)
			st, err := runCheck(cmd.Context(), memory.New(cfg.Services), ev, cfg.CheckConcurrency, name, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), st)
			if st != monitor.StatusOK {
				return errUnhealthy{st}
			}
			return nil
		},
	}
}

// runCheck evaluates the named service, or every enabled one when name is
// empty. Failure details go to diag.
func runCheck(ctx context.Context, store repo.ServiceStore, ev *monitor.Evaluator, concurrency int, name string, diag io.Writer) (monitor.Status, error) {
	if name == "" {
		enabled, err := store.Enabled(ctx)
		if err != nil {
			return monitor.StatusInternalServerError, fmt.Errorf("list services: %w", err)
		}
		return monitor.NewAggregator(ev, concurrency).EvaluateAll(ctx, enabled), nil
	}

	svc, err := store.Get(ctx, name)
	if err != nil {
		return 0, err
	}
	res, err := ev.EvaluateService(ctx, svc)
	if err != nil {
		fmt.Fprintf(diag, "%s: %v\n", name, err)
	} else if !res.OK() && res.Err() != nil {
		fmt.Fprintf(diag, "%s: %v\n", res.Cause(), res.Err())
	}
	return monitor.ToStatus(res, err), nil
}

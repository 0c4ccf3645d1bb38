package monitor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hamed0406/imisu/internal/domain"
	"github.com/hamed0406/imisu/internal/probe"
)

// Aggregator folds the health of many services into one status.
type Aggregator struct {
	Evaluator *Evaluator
	// Concurrency above 1 probes that many services at once. The folded
	// status is the same as with sequential evaluation.
	Concurrency int
}

func NewAggregator(e *Evaluator, concurrency int) *Aggregator {
	return &Aggregator{Evaluator: e, Concurrency: concurrency}
}

type outcome struct {
	res probe.Result
	err error
}

// EvaluateAll checks every enabled service. Any evaluation error yields 500;
// otherwise the first non-200 status in input order wins; no enabled
// services is healthy.
func (a *Aggregator) EvaluateAll(ctx context.Context, services []domain.Service) Status {
	enabled := make([]domain.Service, 0, len(services))
	for _, s := range services {
		if s.Enabled() {
			enabled = append(enabled, s)
		}
	}
	if len(enabled) == 0 {
		return StatusOK
	}

	outcomes := a.run(ctx, enabled)

	for _, o := range outcomes {
		if o.err != nil {
			return StatusInternalServerError
		}
	}
	for _, o := range outcomes {
		if st := ToStatus(o.res, nil); st != StatusOK {
			return st
		}
	}
	return StatusOK
}

func (a *Aggregator) run(ctx context.Context, services []domain.Service) []outcome {
	outcomes := make([]outcome, len(services))
	if a.Concurrency <= 1 {
		for i, s := range services {
			outcomes[i].res, outcomes[i].err = a.Evaluator.EvaluateService(ctx, s)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(a.Concurrency)
	for i, s := range services {
		g.Go(func() error {
			outcomes[i].res, outcomes[i].err = a.Evaluator.EvaluateService(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/imisu/internal/domain"
	"github.com/hamed0406/imisu/internal/probe"
)

var (
	ErrEvaluationPanicked = errors.New("evaluation panicked")
	ErrNoConfig           = errors.New("no service config")
)

// The probers are satisfied by the probe checkers; tests swap in fakes.
type HTTPProber interface {
	Check(ctx context.Context, endpoint string, validateCertificates bool) probe.Result
}

type DNSProber interface {
	Check(ctx context.Context, queryDomain, resolverHost string, resolverPort uint16) probe.Result
}

type TCPProber interface {
	Check(ctx context.Context, host string, port uint16) probe.Result
}

type PingProber interface {
	Check(ctx context.Context, host string, timeoutMS uint32) probe.Result
}

// Observer is told about every finished evaluation. name is empty when the
// caller evaluated a bare config.
type Observer interface {
	Observe(name string, kind domain.Kind, status Status, elapsed time.Duration)
}

type Evaluator struct {
	Logger   *zap.Logger
	HTTP     HTTPProber
	DNS      DNSProber
	TCP      TCPProber
	Ping     PingProber
	Observer Observer
}

type Checkers struct {
	HTTP HTTPProber
	DNS  DNSProber
	TCP  TCPProber
	Ping PingProber
}

func NewEvaluator(l *zap.Logger, c Checkers, obs Observer) *Evaluator {
	if l == nil {
		l = zap.NewNop()
	}
	return &Evaluator{Logger: l, HTTP: c.HTTP, DNS: c.DNS, TCP: c.TCP, Ping: c.Ping, Observer: obs}
}

// Evaluate runs the checker matching cfg. The returned error is non-nil only
// when the evaluation itself broke down; probe failures live in the Result.
func (e *Evaluator) Evaluate(ctx context.Context, cfg domain.ServiceConfig) (probe.Result, error) {
	return e.evaluate(ctx, "", cfg)
}

// EvaluateService is Evaluate with the service name attached to logs and metrics.
func (e *Evaluator) EvaluateService(ctx context.Context, s domain.Service) (probe.Result, error) {
	return e.evaluate(ctx, s.Name, s.Config)
}

func (e *Evaluator) evaluate(ctx context.Context, name string, cfg domain.ServiceConfig) (res probe.Result, err error) {
	if cfg == nil {
		return probe.Result{}, ErrNoConfig
	}
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res, err = probe.Result{}, fmt.Errorf("%w: %s %s: %v", ErrEvaluationPanicked, cfg.Kind(), name, r)
		}
		e.report(name, cfg, res, err, time.Since(start))
	}()

	ev := &evaluation{ctx: ctx, e: e}
	cfg.Accept(ev)
	return ev.res, ev.err
}

func (e *Evaluator) report(name string, cfg domain.ServiceConfig, res probe.Result, err error, elapsed time.Duration) {
	status := ToStatus(res, err)
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if err != nil {
		log.Error("service_check_error",
			zap.String("service", name),
			zap.String("kind", string(cfg.Kind())),
			zap.Error(err),
		)
	} else {
		log.Debug("service_checked",
			zap.String("service", name),
			zap.String("kind", string(cfg.Kind())),
			zap.String("target", domain.Target(cfg)),
			zap.Stringer("result", res),
			zap.Int("status", int(status)),
			zap.Duration("elapsed", elapsed),
		)
	}
	if e.Observer != nil {
		e.Observer.Observe(name, cfg.Kind(), status, elapsed)
	}
}

// evaluation dispatches one config to its checker. A missing checker is an
// evaluation error, not a probe failure.
type evaluation struct {
	ctx context.Context
	e   *Evaluator
	res probe.Result
	err error
}

var _ domain.Visitor = (*evaluation)(nil)

func (v *evaluation) VisitHTTP(c domain.HTTPService) {
	if v.e.HTTP == nil {
		v.err = missing(c.Kind())
		return
	}
	v.res = v.e.HTTP.Check(v.ctx, c.Endpoint, c.ValidateCertificates)
}

func (v *evaluation) VisitDNS(c domain.DNSService) {
	if v.e.DNS == nil {
		v.err = missing(c.Kind())
		return
	}
	v.res = v.e.DNS.Check(v.ctx, c.QueryDomain, c.ResolverHost, c.ResolverPort)
}

func (v *evaluation) VisitPing(c domain.PingService) {
	if v.e.Ping == nil {
		v.err = missing(c.Kind())
		return
	}
	v.res = v.e.Ping.Check(v.ctx, c.TargetHost, c.TimeoutMS)
}

func (v *evaluation) VisitTCP(c domain.TCPService) {
	if v.e.TCP == nil {
		v.err = missing(c.Kind())
		return
	}
	v.res = v.e.TCP.Check(v.ctx, c.TargetHost, c.TargetPort)
}

func missing(k domain.Kind) error {
	return fmt.Errorf("no %s checker configured", k)
}

package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/imisu/internal/domain"
	"github.com/hamed0406/imisu/internal/probe"
)

// fakeHTTP answers by endpoint and counts calls.
type fakeHTTP struct {
	results map[string]probe.Result
	panics  map[string]bool
	calls   atomic.Int32
}

func (f *fakeHTTP) Check(_ context.Context, endpoint string, _ bool) probe.Result {
	f.calls.Add(1)
	if f.panics[endpoint] {
		panic("boom")
	}
	return f.results[endpoint]
}

type fakeDNS struct{ got []any }

func (f *fakeDNS) Check(_ context.Context, domainName, host string, port uint16) probe.Result {
	f.got = []any{domainName, host, port}
	return probe.Failure(probe.CauseUnreachable, nil)
}

type fakeTCP struct{ got []any }

func (f *fakeTCP) Check(_ context.Context, host string, port uint16) probe.Result {
	f.got = []any{host, port}
	return probe.Success()
}

type fakePing struct{ got []any }

func (f *fakePing) Check(_ context.Context, host string, timeoutMS uint32) probe.Result {
	f.got = []any{host, timeoutMS}
	return probe.Failure(probe.CauseGeneric, probe.ErrNoReply)
}

type observation struct {
	name   string
	kind   domain.Kind
	status Status
}

type recorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recorder) Observe(name string, kind domain.Kind, status Status, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{name, kind, status})
}

func httpSvc(name, endpoint string, enabled bool) domain.Service {
	return domain.Service{Name: name, Config: domain.HTTPService{Enabled: enabled, Endpoint: endpoint, ValidateCertificates: true}}
}

func TestToStatus(t *testing.T) {
	cases := []struct {
		res  probe.Result
		err  error
		want Status
		text string
	}{
		{probe.Success(), nil, 200, "OK"},
		{probe.Failure(probe.CauseCertificateInvalid, nil), nil, 526, "Invalid SSL certificate"},
		{probe.Failure(probe.CauseTLSHandshakeFailed, nil), nil, 525, "SSL Handshake Failed"},
		{probe.Failure(probe.CauseUnreachable, nil), nil, 523, "Origin Is Unreachable"},
		{probe.Failure(probe.CauseGeneric, errors.New("x")), nil, 521, "Server Is Down"},
		{probe.Failure(probe.CauseGeneric, nil), nil, 521, "Server Is Down"},
		{probe.Success(), ErrEvaluationPanicked, 500, "Internal Server Error"},
	}
	for _, c := range cases {
		got := ToStatus(c.res, c.err)
		assert.Equal(t, c.want, got, "result %v err %v", c.res, c.err)
		assert.Equal(t, c.text, got.Text())
	}
	assert.Equal(t, "523 Origin Is Unreachable", StatusOriginUnreachable.String())
}

func TestEvaluate_DispatchesEveryKind(t *testing.T) {
	h := &fakeHTTP{results: map[string]probe.Result{"https://a": probe.Success()}}
	d, tc, p := &fakeDNS{}, &fakeTCP{}, &fakePing{}
	e := NewEvaluator(zap.NewNop(), Checkers{HTTP: h, DNS: d, TCP: tc, Ping: p}, nil)
	ctx := context.Background()

	res, err := e.Evaluate(ctx, domain.HTTPService{Enabled: true, Endpoint: "https://a"})
	require.NoError(t, err)
	assert.True(t, res.OK())

	res, err = e.Evaluate(ctx, domain.DNSService{ResolverHost: "1.1.1.1", ResolverPort: 53, QueryDomain: "example.org"})
	require.NoError(t, err)
	assert.Equal(t, probe.CauseUnreachable, res.Cause())
	assert.Equal(t, []any{"example.org", "1.1.1.1", uint16(53)}, d.got)

	res, err = e.Evaluate(ctx, domain.TCPService{TargetHost: "db", TargetPort: 5432})
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, []any{"db", uint16(5432)}, tc.got)

	res, err = e.Evaluate(ctx, domain.PingService{TargetHost: "gw", TimeoutMS: 300})
	require.NoError(t, err)
	assert.False(t, res.OK())
	assert.Equal(t, []any{"gw", uint32(300)}, p.got)
}

func TestEvaluate_RecoversPanic(t *testing.T) {
	h := &fakeHTTP{panics: map[string]bool{"https://bad": true}}
	rec := &recorder{}
	e := NewEvaluator(zap.NewNop(), Checkers{HTTP: h}, rec)

	res, err := e.EvaluateService(context.Background(), httpSvc("bad", "https://bad", true))
	require.ErrorIs(t, err, ErrEvaluationPanicked)
	assert.Equal(t, StatusInternalServerError, ToStatus(res, err))
	require.Len(t, rec.obs, 1)
	assert.Equal(t, observation{"bad", domain.KindHTTP, StatusInternalServerError}, rec.obs[0])
}

func TestEvaluate_ZeroValueRecoversPanic(t *testing.T) {
	e := &Evaluator{HTTP: &fakeHTTP{panics: map[string]bool{"https://bad": true}}}

	res, err := e.Evaluate(context.Background(), domain.HTTPService{Enabled: true, Endpoint: "https://bad"})
	require.ErrorIs(t, err, ErrEvaluationPanicked)
	assert.Equal(t, StatusInternalServerError, ToStatus(res, err))
}

func TestEvaluate_NilConfigAndMissingChecker(t *testing.T) {
	e := NewEvaluator(nil, Checkers{}, nil)

	_, err := e.Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoConfig)

	_, err = e.Evaluate(context.Background(), domain.TCPService{TargetHost: "x", TargetPort: 1})
	assert.Error(t, err)
}

func TestEvaluateAll_EmptyIsHealthy(t *testing.T) {
	h := &fakeHTTP{}
	a := NewAggregator(NewEvaluator(zap.NewNop(), Checkers{HTTP: h}, nil), 1)

	assert.Equal(t, StatusOK, a.EvaluateAll(context.Background(), nil))
	assert.Equal(t, StatusOK, a.EvaluateAll(context.Background(), []domain.Service{httpSvc("off", "https://off", false)}))
	assert.Zero(t, h.calls.Load(), "disabled services must not be probed")
}

func TestEvaluateAll_FirstFailureWins(t *testing.T) {
	h := &fakeHTTP{results: map[string]probe.Result{
		"https://ok":    probe.Success(),
		"https://down":  probe.Failure(probe.CauseGeneric, nil),
		"https://unrch": probe.Failure(probe.CauseUnreachable, nil),
	}}
	a := NewAggregator(NewEvaluator(zap.NewNop(), Checkers{HTTP: h}, nil), 1)
	ctx := context.Background()

	got := a.EvaluateAll(ctx, []domain.Service{
		httpSvc("a", "https://ok", true),
		httpSvc("b", "https://unrch", true),
		httpSvc("c", "https://down", true),
	})
	assert.Equal(t, StatusOriginUnreachable, got)

	got = a.EvaluateAll(ctx, []domain.Service{
		httpSvc("c", "https://down", true),
		httpSvc("b", "https://unrch", true),
	})
	assert.Equal(t, StatusServerIsDown, got)

	got = a.EvaluateAll(ctx, []domain.Service{httpSvc("a", "https://ok", true), httpSvc("z", "https://ok", true)})
	assert.Equal(t, StatusOK, got)
}

func TestEvaluateAll_ErrorBeatsUnhealthy(t *testing.T) {
	h := &fakeHTTP{
		results: map[string]probe.Result{"https://down": probe.Failure(probe.CauseUnreachable, nil)},
		panics:  map[string]bool{"https://bad": true},
	}
	a := NewAggregator(NewEvaluator(zap.NewNop(), Checkers{HTTP: h}, nil), 1)
	down, bad := httpSvc("down", "https://down", true), httpSvc("bad", "https://bad", true)

	assert.Equal(t, StatusInternalServerError, a.EvaluateAll(context.Background(), []domain.Service{down, bad}))
	assert.Equal(t, StatusInternalServerError, a.EvaluateAll(context.Background(), []domain.Service{bad, down}))
}

func TestEvaluateAll_SkipsDisabled(t *testing.T) {
	h := &fakeHTTP{results: map[string]probe.Result{"https://ok": probe.Success()}}
	a := NewAggregator(NewEvaluator(zap.NewNop(), Checkers{HTTP: h}, nil), 1)

	got := a.EvaluateAll(context.Background(), []domain.Service{
		httpSvc("off", "https://off", false),
		httpSvc("on", "https://ok", true),
	})
	assert.Equal(t, StatusOK, got)
	assert.Equal(t, int32(1), h.calls.Load())
}

func TestEvaluateAll_ConcurrentMatchesSequential(t *testing.T) {
	h := &fakeHTTP{results: map[string]probe.Result{
		"https://ok":   probe.Success(),
		"https://cert": probe.Failure(probe.CauseCertificateInvalid, nil),
		"https://tls":  probe.Failure(probe.CauseTLSHandshakeFailed, nil),
	}}
	services := []domain.Service{
		httpSvc("a", "https://ok", true),
		httpSvc("b", "https://tls", true),
		httpSvc("c", "https://ok", true),
		httpSvc("d", "https://cert", true),
	}
	rec := &recorder{}
	e := NewEvaluator(zap.NewNop(), Checkers{HTTP: h}, rec)

	seq := NewAggregator(e, 1).EvaluateAll(context.Background(), services)
	for i := 0; i < 20; i++ {
		par := NewAggregator(e, 4).EvaluateAll(context.Background(), services)
		require.Equal(t, seq, par)
	}
	assert.Equal(t, StatusSSLHandshakeFailed, seq)
	assert.Len(t, rec.obs, 21*len(services))
}

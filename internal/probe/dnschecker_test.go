package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/miekg/dns"
)

type fakeExchanger struct {
	addrs []string
	msgs  []*dns.Msg
	resp  func(addr string) (*dns.Msg, error)
}

func (f *fakeExchanger) ExchangeContext(_ context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error) {
	f.addrs = append(f.addrs, address)
	f.msgs = append(f.msgs, m)
	resp, err := f.resp(address)
	return resp, time.Millisecond, err
}

func reply(rcode int, answers int) *dns.Msg {
	m := new(dns.Msg)
	m.Rcode = rcode
	for i := 0; i < answers; i++ {
		rr, _ := dns.NewRR("testHostName. 60 IN A 10.0.0.1")
		m.Answer = append(m.Answer, rr)
	}
	return m
}

type fakeResolver struct {
	addrs []string
	err   error
	n     int
}

func (f *fakeResolver) LookupHost(context.Context, string) ([]string, error) {
	f.n++
	return f.addrs, f.err
}

func TestDNSChecker_QueriesGivenResolver(t *testing.T) {
	ex := &fakeExchanger{resp: func(string) (*dns.Msg, error) { return reply(dns.RcodeSuccess, 0), nil }}
	res := &fakeResolver{}
	chk := &DNSChecker{Client: ex, Resolver: res}

	out := chk.Check(context.Background(), "testHostName", "192.168.0.1", 53)
	if !out.OK() {
		t.Fatalf("want success, got %v", out)
	}
	if len(ex.addrs) != 1 || ex.addrs[0] != "192.168.0.1:53" {
		t.Fatalf("unexpected server addresses %v", ex.addrs)
	}
	q := ex.msgs[0].Question[0]
	if q.Name != "testHostName." || q.Qtype != dns.TypeA || q.Qclass != dns.ClassINET {
		t.Fatalf("unexpected question %+v", q)
	}
	if res.n != 0 {
		t.Fatalf("IP literal must not be resolved")
	}
}

func TestDNSChecker_ResponseCodes(t *testing.T) {
	cases := []struct {
		name string
		msg  *dns.Msg
		ok   bool
	}{
		{"noerror", reply(dns.RcodeSuccess, 1), true},
		{"noerror_empty", reply(dns.RcodeSuccess, 0), true},
		{"servfail_with_answer", reply(dns.RcodeServerFailure, 1), true},
		{"nxdomain", reply(dns.RcodeNameError, 0), false},
		{"refused", reply(dns.RcodeRefused, 0), false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ex := &fakeExchanger{resp: func(string) (*dns.Msg, error) { return c.msg, nil }}
			out := (&DNSChecker{Client: ex}).Check(context.Background(), "testHostName", "192.168.0.1", 53)
			if out.OK() != c.ok {
				t.Fatalf("want ok=%v got %v", c.ok, out)
			}
			if !c.ok && (out.Cause() != CauseGeneric || !errors.Is(out.Err(), ErrUnhealthyResponse)) {
				t.Fatalf("want generic unhealthy response, got %v", out)
			}
		})
	}
}

func TestDNSChecker_TransportErrorIsUnreachable(t *testing.T) {
	ex := &fakeExchanger{resp: func(string) (*dns.Msg, error) { return nil, errors.New("i/o timeout") }}
	out := (&DNSChecker{Client: ex}).Check(context.Background(), "testHostName", "192.168.0.1", 53)
	if out.OK() || out.Cause() != CauseUnreachable {
		t.Fatalf("want unreachable, got %v", out)
	}
}

func TestDNSChecker_TriesEveryCandidate(t *testing.T) {
	ex := &fakeExchanger{resp: func(addr string) (*dns.Msg, error) {
		if addr == "10.0.0.1:5353" {
			return nil, errors.New("connection refused")
		}
		return reply(dns.RcodeSuccess, 1), nil
	}}
	res := &fakeResolver{addrs: []string{"10.0.0.1", "10.0.0.2"}}
	out := (&DNSChecker{Client: ex, Resolver: res}).Check(context.Background(), "example.org", "resolver.lan", 5353)
	if !out.OK() {
		t.Fatalf("want success from second candidate, got %v", out)
	}
	if len(ex.addrs) != 2 {
		t.Fatalf("want 2 attempts, got %v", ex.addrs)
	}
}

func TestDNSChecker_AllCandidatesFail(t *testing.T) {
	ex := &fakeExchanger{resp: func(string) (*dns.Msg, error) { return nil, errors.New("network is unreachable") }}
	res := &fakeResolver{addrs: []string{"10.0.0.1", "10.0.0.2"}}
	out := (&DNSChecker{Client: ex, Resolver: res}).Check(context.Background(), "example.org", "resolver.lan", 53)
	if out.OK() || out.Cause() != CauseUnreachable {
		t.Fatalf("want unreachable, got %v", out)
	}
	if len(ex.addrs) != 2 {
		t.Fatalf("want 2 attempts, got %v", ex.addrs)
	}
}

func TestDNSChecker_ResolverHostLookupFails(t *testing.T) {
	ex := &fakeExchanger{resp: func(string) (*dns.Msg, error) { t.Fatal("no query expected"); return nil, nil }}
	res := &fakeResolver{err: errors.New("no such host")}
	out := (&DNSChecker{Client: ex, Resolver: res}).Check(context.Background(), "example.org", "999.1.1.1", 53)
	if out.OK() || out.Cause() != CauseGeneric {
		t.Fatalf("want generic failure, got %v", out)
	}
}

func TestDNSChecker_InvalidQueryDomain(t *testing.T) {
	ex := &fakeExchanger{resp: func(string) (*dns.Msg, error) { t.Fatal("no query expected"); return nil, nil }}
	out := (&DNSChecker{Client: ex}).Check(context.Background(), "", "192.168.0.1", 53)
	if out.OK() || out.Cause() != CauseGeneric {
		t.Fatalf("want generic failure, got %v", out)
	}
}

func startDNSServer(t *testing.T, addr string) (string, uint16) {
	t.Helper()
	pc, err := net.ListenPacket("udp", addr)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	started := make(chan struct{})
	srv := &dns.Server{
		PacketConn: pc,
		Handler: dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
			m := new(dns.Msg)
			m.SetReply(r)
			if rr, err := dns.NewRR(r.Question[0].Name + " 60 IN A 127.0.0.1"); err == nil {
				m.Answer = append(m.Answer, rr)
			}
			_ = w.WriteMsg(m)
		}),
		NotifyStartedFunc: func() { close(started) },
	}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })

	host, port, _ := net.SplitHostPort(pc.LocalAddr().String())
	p, _ := strconv.Atoi(port)
	return host, uint16(p)
}

func TestDNSChecker_LocalServer(t *testing.T) {
	host, port := startDNSServer(t, "127.0.0.1:0")
	out := NewDNSChecker(2*time.Second).Check(context.Background(), "example.org", host, port)
	if !out.OK() {
		t.Fatalf("want success, got %v", out)
	}
}

func TestDNSChecker_ClosedPortIsUnreachable(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	_, port, _ := net.SplitHostPort(pc.LocalAddr().String())
	_ = pc.Close()
	p, _ := strconv.Atoi(port)

	out := NewDNSChecker(500*time.Millisecond).Check(context.Background(), "example.org", "127.0.0.1", uint16(p))
	if out.OK() || out.Cause() != CauseUnreachable {
		t.Fatalf("want unreachable, got %v", out)
	}
}

// ctxExchanger never answers the silent address and only gives up when its
// context does.
type ctxExchanger struct {
	silent string
	addrs  []string
}

func (f *ctxExchanger) ExchangeContext(ctx context.Context, _ *dns.Msg, address string) (*dns.Msg, time.Duration, error) {
	f.addrs = append(f.addrs, address)
	if address == f.silent {
		<-ctx.Done()
		return nil, 0, ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	return reply(dns.RcodeSuccess, 1), time.Millisecond, nil
}

func TestDNSChecker_SilentCandidateKeepsBudgetForNext(t *testing.T) {
	ex := &ctxExchanger{silent: "10.0.0.1:53"}
	res := &fakeResolver{addrs: []string{"10.0.0.1", "10.0.0.2"}}
	chk := &DNSChecker{Client: ex, Resolver: res, Timeout: 100 * time.Millisecond}

	out := chk.Check(context.Background(), "example.org", "resolver.lan", 53)
	if !out.OK() {
		t.Fatalf("want success from second candidate, got %v", out)
	}
	if len(ex.addrs) != 2 {
		t.Fatalf("want 2 attempts, got %v", ex.addrs)
	}
}

func TestDNSChecker_SilentThenLiveOnLoopback(t *testing.T) {
	_, port := startDNSServer(t, "127.0.0.1:0")

	silent, err := net.ListenPacket("udp", net.JoinHostPort("127.0.0.2", strconv.Itoa(int(port))))
	if err != nil {
		t.Skipf("127.0.0.2 not usable here: %v", err)
	}
	defer silent.Close()

	chk := NewDNSChecker(300 * time.Millisecond)
	chk.Resolver = &fakeResolver{addrs: []string{"127.0.0.2", "127.0.0.1"}}

	out := chk.Check(context.Background(), "example.org", "resolver.test", port)
	if !out.OK() {
		t.Fatalf("want success from live resolver, got %v", out)
	}
}

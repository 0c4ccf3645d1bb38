package probe

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/multierr"
)

// Exchanger sends one DNS message to one server. *dns.Client satisfies it.
type Exchanger interface {
	ExchangeContext(ctx context.Context, m *dns.Msg, address string) (*dns.Msg, time.Duration, error)
}

// HostResolver turns a resolver host name into addresses. *net.Resolver satisfies it.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// DNSChecker asks a specific resolver, never the system one, for an A record.
type DNSChecker struct {
	Client   Exchanger
	Resolver HostResolver
	Timeout  time.Duration
}

func NewDNSChecker(timeout time.Duration) *DNSChecker {
	return &DNSChecker{
		Client:   &dns.Client{Net: "udp", Timeout: timeout},
		Resolver: net.DefaultResolver,
		Timeout:  timeout,
	}
}

func (d *DNSChecker) Check(ctx context.Context, queryDomain, resolverHost string, resolverPort uint16) Result {
	if _, ok := dns.IsDomainName(queryDomain); !ok || queryDomain == "" {
		return Failure(CauseGeneric, fmt.Errorf("invalid query domain %q", queryDomain))
	}
	addrs, err := d.candidates(ctx, resolverHost)
	if err != nil {
		return Failure(CauseGeneric, err)
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(queryDomain), dns.TypeA)

	port := strconv.Itoa(int(resolverPort))
	var errs error
	for _, addr := range addrs {
		resp, err := d.exchange(ctx, m, net.JoinHostPort(addr, port))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", addr, err))
			continue
		}
		if resp.Rcode == dns.RcodeSuccess || len(resp.Answer) > 0 {
			return Success()
		}
		return Failure(CauseGeneric, fmt.Errorf("%w: %s", ErrUnhealthyResponse, dns.RcodeToString[resp.Rcode]))
	}
	return Failure(CauseUnreachable, errs)
}

// exchange bounds each candidate separately so a silent address cannot use
// up the time left for the ones after it.
func (d *DNSChecker) exchange(ctx context.Context, m *dns.Msg, addr string) (*dns.Msg, error) {
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	resp, _, err := d.Client.ExchangeContext(ctx, m, addr)
	return resp, err
}

func (d *DNSChecker) candidates(ctx context.Context, host string) ([]string, error) {
	if net.ParseIP(host) != nil {
		return []string{host}, nil
	}
	if d.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.Timeout)
		defer cancel()
	}
	addrs, err := d.Resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", host, err)
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("resolve %q: no addresses", host)
	}
	return addrs, nil
}

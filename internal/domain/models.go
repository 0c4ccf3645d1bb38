package domain

import (
	"encoding/json"
	"strconv"
)

// ReservedServiceName collides with the aggregate route /services/health.
const ReservedServiceName = "health"

type Kind string

const (
	KindHTTP Kind = "http"
	KindDNS  Kind = "dns"
	KindPing Kind = "ping"
	KindTCP  Kind = "tcp"
)

// ServiceConfig is one of HTTPService, DNSService, PingService or TCPService.
// The set is closed: the unexported marker keeps other packages from adding
// variants, and Accept forces every Visitor to handle all of them.
type ServiceConfig interface {
	Kind() Kind
	IsEnabled() bool
	Accept(v Visitor)
	serviceConfig()
}

// Visitor has one method per ServiceConfig variant. A new variant means a new
// method here, which breaks every dispatcher until it grows the matching arm.
type Visitor interface {
	VisitHTTP(HTTPService)
	VisitDNS(DNSService)
	VisitPing(PingService)
	VisitTCP(TCPService)
}

// Service is a named entry of the registry.
type Service struct {
	Name   string
	Config ServiceConfig
}

func (s Service) Enabled() bool {
	return s.Config != nil && s.Config.IsEnabled()
}

type HTTPService struct {
	Enabled              bool   `json:"enabled"`
	Endpoint             string `json:"endpoint"`
	ValidateCertificates bool   `json:"validateCertificates"`
}

type DNSService struct {
	Enabled      bool   `json:"enabled"`
	ResolverHost string `json:"resolverHost"`
	ResolverPort uint16 `json:"resolverPort"`
	QueryDomain  string `json:"queryDomain"`
}

type PingService struct {
	Enabled    bool   `json:"enabled"`
	TargetHost string `json:"targetHost"`
	TimeoutMS  uint32 `json:"timeoutMs"`
}

type TCPService struct {
	Enabled    bool   `json:"enabled"`
	TargetHost string `json:"targetHost"`
	TargetPort uint16 `json:"targetPort"`
}

const (
	DefaultDNSPort       uint16 = 53
	DefaultDNSDomain            = "example.org"
	DefaultPingTimeoutMS uint32 = 1000
)

func (HTTPService) Kind() Kind { return KindHTTP }
func (DNSService) Kind() Kind  { return KindDNS }
func (PingService) Kind() Kind { return KindPing }
func (TCPService) Kind() Kind  { return KindTCP }

func (s HTTPService) IsEnabled() bool { return s.Enabled }
func (s DNSService) IsEnabled() bool  { return s.Enabled }
func (s PingService) IsEnabled() bool { return s.Enabled }
func (s TCPService) IsEnabled() bool  { return s.Enabled }

func (s HTTPService) Accept(v Visitor) { v.VisitHTTP(s) }
func (s DNSService) Accept(v Visitor)  { v.VisitDNS(s) }
func (s PingService) Accept(v Visitor) { v.VisitPing(s) }
func (s TCPService) Accept(v Visitor)  { v.VisitTCP(s) }

func (HTTPService) serviceConfig() {}
func (DNSService) serviceConfig()  {}
func (PingService) serviceConfig() {}
func (TCPService) serviceConfig()  {}

// Target renders the probed address for logs and CLI output.
func Target(c ServiceConfig) string {
	switch s := c.(type) {
	case HTTPService:
		return s.Endpoint
	case DNSService:
		return s.QueryDomain + "@" + s.ResolverHost + ":" + strconv.Itoa(int(s.ResolverPort))
	case PingService:
		return s.TargetHost
	case TCPService:
		return s.TargetHost + ":" + strconv.Itoa(int(s.TargetPort))
	}
	return ""
}

// JSON output carries a "type" discriminator next to the variant fields.

func (s HTTPService) MarshalJSON() ([]byte, error) {
	type alias HTTPService
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindHTTP, alias(s)})
}

func (s DNSService) MarshalJSON() ([]byte, error) {
	type alias DNSService
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindDNS, alias(s)})
}

func (s PingService) MarshalJSON() ([]byte, error) {
	type alias PingService
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindPing, alias(s)})
}

func (s TCPService) MarshalJSON() ([]byte, error) {
	type alias TCPService
	return json.Marshal(struct {
		Type Kind `json:"type"`
		alias
	}{KindTCP, alias(s)})
}

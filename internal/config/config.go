package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/hamed0406/imisu/internal/domain"
)

const DefaultPath = "imisu.yaml"

var (
	ErrReservedName = errors.New("reserved service name")
	ErrInvalid      = errors.New("invalid config")
)

//go:embed schema.json
var schemaJSON []byte

type Config struct {
	Addr             string // API bind address, ":<serverPort>" unless API_ADDR is set
	ServerPort       int
	ExposeFullAPI    bool
	ExposeMetrics    bool
	LogDir           string
	LogLevel         string
	AllowedOrigins   []string
	RateLimit        RateLimit
	CheckConcurrency int // services probed at once by the aggregate route
	HTTPTimeout      time.Duration
	TCPTimeout       time.Duration
	DNSTimeout       time.Duration
	PingPrivileged   bool // raw ICMP sockets instead of unprivileged UDP ping
	Services         []domain.Service
}

type RateLimit struct {
	RequestsPerMinute int `yaml:"requestsPerMinute"` // 0 disables limiting
	Burst             int `yaml:"burst"`
}

func Default() Config {
	return Config{
		Addr:             ":8080",
		ServerPort:       8080,
		LogDir:           "logs",
		LogLevel:         "info",
		AllowedOrigins:   []string{"*"},
		CheckConcurrency: 1,
		HTTPTimeout:      10 * time.Second,
		TCPTimeout:       5 * time.Second,
		DNSTimeout:       5 * time.Second,
	}
}

type fileConfig struct {
	ServerPort       *int      `yaml:"serverPort"`
	ExposeFullAPI    bool      `yaml:"exposeFullApi"`
	ExposeMetrics    bool      `yaml:"exposeMetrics"`
	LogDir           string    `yaml:"logDir"`
	LogLevel         string    `yaml:"logLevel"`
	AllowedOrigins   []string  `yaml:"allowedOrigins"`
	RateLimit        RateLimit `yaml:"rateLimit"`
	CheckConcurrency int       `yaml:"checkConcurrency"`
	Timeouts         struct {
		HTTPMs int `yaml:"httpMs"`
		TCPMs  int `yaml:"tcpMs"`
		DNSMs  int `yaml:"dnsMs"`
	} `yaml:"timeouts"`
	Ping struct {
		Privileged bool `yaml:"privileged"`
	} `yaml:"ping"`
	Services yaml.Node `yaml:"services"`
}

// Load reads and validates the YAML file at path, then applies env overrides.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return FromEnv(cfg), nil
}

// Parse validates raw against the embedded schema and decodes it. Services
// keep the order they have in the document.
func Parse(raw []byte) (Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if root.Kind == 0 {
		return Config{}, fmt.Errorf("%w: empty document", ErrInvalid)
	}
	if err := validateSchema(&root); err != nil {
		return Config{}, err
	}

	var f fileConfig
	if err := root.Decode(&f); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	cfg := Default()
	if f.ServerPort != nil {
		cfg.ServerPort = *f.ServerPort
		cfg.Addr = ":" + strconv.Itoa(cfg.ServerPort)
	}
	cfg.ExposeFullAPI = f.ExposeFullAPI
	cfg.ExposeMetrics = f.ExposeMetrics
	if f.LogDir != "" {
		cfg.LogDir = f.LogDir
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.AllowedOrigins != nil {
		cfg.AllowedOrigins = f.AllowedOrigins
	}
	cfg.RateLimit = f.RateLimit
	if f.CheckConcurrency > 0 {
		cfg.CheckConcurrency = f.CheckConcurrency
	}
	cfg.HTTPTimeout = millis(f.Timeouts.HTTPMs, cfg.HTTPTimeout)
	cfg.TCPTimeout = millis(f.Timeouts.TCPMs, cfg.TCPTimeout)
	cfg.DNSTimeout = millis(f.Timeouts.DNSMs, cfg.DNSTimeout)
	cfg.PingPrivileged = f.Ping.Privileged

	services, err := decodeServices(&f.Services)
	if err != nil {
		return Config{}, err
	}
	cfg.Services = services
	return cfg, nil
}

// FromEnv lets the environment override the bind address and logging.
func FromEnv(cfg Config) Config {
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("LOG_DIR"); v != "" {
		cfg.LogDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	return cfg
}

func millis(ms int, def time.Duration) time.Duration {
	if ms <= 0 {
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func validateSchema(root *yaml.Node) error {
	var doc any
	if err := root.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	jsonData, err := json.Marshal(stringKeys(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(jsonData),
	)
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var errs error
	for _, desc := range result.Errors() {
		errs = multierr.Append(errs, errors.New(desc.String()))
	}
	return fmt.Errorf("%w: %w", ErrInvalid, errs)
}

// stringKeys rewrites mappings with non-string keys, such as a service
// named 8080, into string-keyed ones so the document can be encoded as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = stringKeys(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = stringKeys(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = stringKeys(e)
		}
		return t
	default:
		return v
	}
}

type serviceEntry struct {
	HTTP *struct {
		Enabled              bool   `yaml:"enabled"`
		Endpoint             string `yaml:"endpoint"`
		ValidateCertificates *bool  `yaml:"validateCertificates"`
	} `yaml:"http"`
	DNS *struct {
		Enabled      bool   `yaml:"enabled"`
		ResolverHost string `yaml:"resolverHost"`
		ResolverPort uint16 `yaml:"resolverPort"`
		QueryDomain  string `yaml:"queryDomain"`
	} `yaml:"dns"`
	Ping *struct {
		Enabled    bool   `yaml:"enabled"`
		TargetHost string `yaml:"targetHost"`
		TimeoutMS  uint32 `yaml:"timeoutMs"`
	} `yaml:"ping"`
	TCP *struct {
		Enabled    bool   `yaml:"enabled"`
		TargetHost string `yaml:"targetHost"`
		TargetPort uint16 `yaml:"targetPort"`
	} `yaml:"tcp"`
}

func decodeServices(node *yaml.Node) ([]domain.Service, error) {
	if node.Kind == 0 {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: services must be a mapping", ErrInvalid)
	}

	var (
		errs     error
		services = make([]domain.Service, 0, len(node.Content)/2)
		seen     = make(map[string]bool, len(node.Content)/2)
	)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value
		if seen[name] {
			errs = multierr.Append(errs, fmt.Errorf("service %q: defined twice", name))
			continue
		}
		seen[name] = true
		if name == domain.ReservedServiceName {
			errs = multierr.Append(errs, fmt.Errorf("service %q: %w", name, ErrReservedName))
			continue
		}

		var e serviceEntry
		if err := node.Content[i+1].Decode(&e); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("service %q: %w", name, err))
			continue
		}
		cfg, err := e.toConfig()
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("service %q: %w", name, err))
			continue
		}
		services = append(services, domain.Service{Name: name, Config: cfg})
	}
	if errs != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, errs)
	}
	return services, nil
}

func (e serviceEntry) toConfig() (domain.ServiceConfig, error) {
	var n int
	for _, set := range []bool{e.HTTP != nil, e.DNS != nil, e.Ping != nil, e.TCP != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return nil, fmt.Errorf("exactly one of http, dns, ping or tcp is required, got %d", n)
	}

	switch {
	case e.HTTP != nil:
		if err := checkEndpoint(e.HTTP.Endpoint); err != nil {
			return nil, err
		}
		validate := true
		if e.HTTP.ValidateCertificates != nil {
			validate = *e.HTTP.ValidateCertificates
		}
		return domain.HTTPService{Enabled: e.HTTP.Enabled, Endpoint: e.HTTP.Endpoint, ValidateCertificates: validate}, nil
	case e.DNS != nil:
		if strings.TrimSpace(e.DNS.ResolverHost) == "" {
			return nil, errors.New("resolverHost is empty")
		}
		c := domain.DNSService{
			Enabled:      e.DNS.Enabled,
			ResolverHost: e.DNS.ResolverHost,
			ResolverPort: e.DNS.ResolverPort,
			QueryDomain:  e.DNS.QueryDomain,
		}
		if c.ResolverPort == 0 {
			c.ResolverPort = domain.DefaultDNSPort
		}
		if c.QueryDomain == "" {
			c.QueryDomain = domain.DefaultDNSDomain
		}
		return c, nil
	case e.Ping != nil:
		if strings.TrimSpace(e.Ping.TargetHost) == "" {
			return nil, errors.New("targetHost is empty")
		}
		c := domain.PingService{Enabled: e.Ping.Enabled, TargetHost: e.Ping.TargetHost, TimeoutMS: e.Ping.TimeoutMS}
		if c.TimeoutMS == 0 {
			c.TimeoutMS = domain.DefaultPingTimeoutMS
		}
		return c, nil
	default:
		if strings.TrimSpace(e.TCP.TargetHost) == "" {
			return nil, errors.New("targetHost is empty")
		}
		return domain.TCPService{Enabled: e.TCP.Enabled, TargetHost: e.TCP.TargetHost, TargetPort: e.TCP.TargetPort}, nil
	}
}

func checkEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("endpoint: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: missing host", raw)
	}
	return nil
}

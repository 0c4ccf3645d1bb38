package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/imisu/internal/domain"
	apimw "github.com/hamed0406/imisu/internal/httpapi/middleware"
	"github.com/hamed0406/imisu/internal/monitor"
	"github.com/hamed0406/imisu/internal/repo"
)

type Options struct {
	// ExposeFullAPI adds GET /services and GET /services/{id}, which reveal
	// the configured targets.
	ExposeFullAPI     bool
	AllowedOrigins    []string
	RequestsPerMinute int
	Burst             int
	// Metrics is served on /metrics when set.
	Metrics http.Handler
}

type Server struct {
	Logger     *zap.Logger
	Services   repo.ServiceStore
	Evaluator  *monitor.Evaluator
	Aggregator *monitor.Aggregator
	Opts       Options
}

func NewServer(l *zap.Logger, ss repo.ServiceStore, e *monitor.Evaluator, a *monitor.Aggregator, opts Options) *Server {
	return &Server{Logger: l, Services: ss, Evaluator: e, Aggregator: a, Opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(apimw.Logger(s.Logger))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.allowedOrigins(),
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		MaxAge:         300,
	}))
	r.Use(apimw.RateLimit(s.Opts.RequestsPerMinute, s.Opts.Burst))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if s.Opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Opts.Metrics)
	}

	r.Get("/services/health", s.handleAllHealth)
	r.Head("/services/health", s.handleAllHealth)
	r.Get("/services/{id}/health", s.handleServiceHealth)
	r.Head("/services/{id}/health", s.handleServiceHealth)

	if s.Opts.ExposeFullAPI {
		r.Get("/services", s.handleListServices)
		r.Get("/services/{id}", s.handleGetService)
	}
	return r
}

func (s *Server) allowedOrigins() []string {
	if len(s.Opts.AllowedOrigins) == 0 {
		return []string{"*"}
	}
	return s.Opts.AllowedOrigins
}

func (s *Server) handleAllHealth(w http.ResponseWriter, r *http.Request) {
	services, err := s.Services.Enabled(r.Context())
	if err != nil {
		s.Logger.Error("list_services_failed", zap.Error(err))
		writeStatus(w, r, monitor.StatusInternalServerError)
		return
	}
	writeStatus(w, r, s.Aggregator.EvaluateAll(r.Context(), services))
}

func (s *Server) handleServiceHealth(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeStatus(w, r, monitor.ToStatus(s.Evaluator.EvaluateService(r.Context(), svc)))
}

func (s *Server) handleListServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.Services.Enabled(r.Context())
	if err != nil {
		http.Error(w, "list error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, orderedServices(services))
}

func (s *Server) handleGetService(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, svc.Config)
}

// lookup resolves {id} to an enabled service or answers 404 itself.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.Service, bool) {
	svc, err := s.Services.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, repo.ErrNotFound) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
		} else {
			http.NotFound(w, r)
		}
		return domain.Service{}, false
	}
	if err != nil {
		s.Logger.Error("get_service_failed", zap.Error(err))
		writeStatus(w, r, monitor.StatusInternalServerError)
		return domain.Service{}, false
	}
	return svc, true
}

// writeStatus answers with the health status code. net/http cannot send a
// custom reason phrase, so GET carries it as the body instead.
func writeStatus(w http.ResponseWriter, r *http.Request, st monitor.Status) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(st.Code())
	if r.Method != http.MethodHead {
		_, _ = w.Write([]byte(st.Text()))
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// orderedServices encodes as a JSON object keyed by service name, in
// configuration order.
type orderedServices []domain.Service

func (o orderedServices) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(s.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(s.Config)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

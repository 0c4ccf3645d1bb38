package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/imisu/internal/domain"
	"github.com/hamed0406/imisu/internal/monitor"
)

// Recorder counts check outcomes on its own registry. It implements
// monitor.Observer.
type Recorder struct {
	reg      *prometheus.Registry
	checks   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	status   *prometheus.GaugeVec
}

var _ monitor.Observer = (*Recorder)(nil)

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Recorder{
		reg: reg,
		checks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imisu_checks_total",
				Help: "Health checks run, by reported status code",
			},
			[]string{"service", "kind", "code"},
		),
		duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imisu_check_duration_seconds",
				Help:    "Duration of health checks in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"service", "kind"},
		),
		status: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "imisu_service_last_status",
				Help: "Status code reported by the most recent check of a service",
			},
			[]string{"service", "kind"},
		),
	}
}

func (r *Recorder) Observe(name string, kind domain.Kind, status monitor.Status, elapsed time.Duration) {
	if name == "" {
		name = "unnamed"
	}
	r.checks.WithLabelValues(name, string(kind), strconv.Itoa(status.Code())).Inc()
	r.duration.WithLabelValues(name, string(kind)).Observe(elapsed.Seconds())
	r.status.WithLabelValues(name, string(kind)).Set(float64(status.Code()))
}

func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}

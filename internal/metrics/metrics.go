// Package metrics holds the Prometheus collectors of the API process.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/rates"
)

// Import row outcomes.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// OCR request outcomes.
const (
	OCRSuccess    = "success"
	OCRIncomplete = "incomplete"
	OCRFailure    = "failure"
)

// Metrics is one set of collectors bound to its own registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests    *prometheus.CounterVec
	ImportRows      *prometheus.CounterVec
	OCRRequests     *prometheus.CounterVec
	RateResolutions *prometheus.CounterVec
}

// New registers the collectors, plus the Go runtime and process collectors,
// on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		ImportRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "import_rows_total",
			Help: "Total spreadsheet rows imported by source and outcome.",
		}, []string{"source", "outcome"}),
		OCRRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ocr_requests_total",
			Help: "Total capture analysis requests by outcome.",
		}, []string{"outcome"}),
		RateResolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rate_resolutions_total",
			Help: "Total sale-rate resolutions by resulting state.",
		}, []string{"state"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveHTTP counts one finished request.
func (m *Metrics) ObserveHTTP(method string, status int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// RecordImport counts the rows of an import run. A nil summary is ignored.
func (m *Metrics) RecordImport(s *importer.Summary) {
	if s == nil {
		return
	}
	src := string(s.Source)
	m.ImportRows.WithLabelValues(src, OutcomeCreated).Add(float64(s.Created))
	m.ImportRows.WithLabelValues(src, OutcomeSkipped).Add(float64(s.Skipped))
	m.ImportRows.WithLabelValues(src, OutcomeError).Add(float64(len(s.Errors)))
}

// ObserveOCR counts one capture analysis.
func (m *Metrics) ObserveOCR(outcome string) {
	m.OCRRequests.WithLabelValues(outcome).Inc()
}

// ObserveRate counts one rate resolution. It fits rates.Resolver.OnResolve.
func (m *Metrics) ObserveRate(r rates.Result) {
	m.RateResolutions.WithLabelValues(string(r.State)).Inc()
}

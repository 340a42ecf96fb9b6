package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/dvloznov/fx-ledger/internal/domain"
	"github.com/dvloznov/fx-ledger/internal/importer"
	"github.com/dvloznov/fx-ledger/internal/rates"
)

func TestRecordImport(t *testing.T) {
	m := New()
	m.RecordImport(&importer.Summary{
		Source:  domain.SourceGastos,
		Created: 7,
		Skipped: 2,
		Errors:  []string{"Fila 3: x"},
	})
	m.RecordImport(nil)

	tests := []struct {
		outcome string
		want    float64
	}{
		{OutcomeCreated, 7},
		{OutcomeSkipped, 2},
		{OutcomeError, 1},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.ImportRows.WithLabelValues("gastos", tt.outcome)); got != tt.want {
			t.Errorf("%s = %v, want %v", tt.outcome, got, tt.want)
		}
	}
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", 200)
	m.ObserveHTTP("GET", 200)
	m.ObserveOCR(OCRIncomplete)
	m.ObserveRate(rates.Result{State: rates.StateStale})

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "200")); got != 2 {
		t.Errorf("http = %v", got)
	}
	if got := testutil.ToFloat64(m.RateResolutions.WithLabelValues("stale")); got != 1 {
		t.Errorf("rates = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{`http_requests_total{method="GET",status="200"} 2`, `ocr_requests_total{outcome="incomplete"} 1`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

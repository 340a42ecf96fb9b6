package config

import (
	"strings"
	"testing"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestFromLookup_Defaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("FromLookup: %v", err)
	}
	if cfg.Port != 8080 || cfg.StoreBackend != BackendMemory || cfg.BQDataset != "fxledger" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.MaxUploadBytes != 10485760 || cfg.OCRRatePerMin != 30 || cfg.OCRBurst != 5 {
		t.Errorf("limits = %d %d %d", cfg.MaxUploadBytes, cfg.OCRRatePerMin, cfg.OCRBurst)
	}
	if cfg.Location == nil || cfg.Location.String() != "America/Caracas" {
		t.Errorf("Location = %v", cfg.Location)
	}
	if cfg.UploadsEnabled() || cfg.NotionEnabled() {
		t.Error("optional integrations should be disabled by default")
	}
}

func TestFromLookup_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"bad port", map[string]string{"PORT": "http"}, "PORT"},
		{"bigquery without project", map[string]string{"STORE_BACKEND": "bigquery"}, "GCP_PROJECT"},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}, "STORE_BACKEND"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
		{"zero burst", map[string]string{"OCR_BURST": "0"}, "OCR_BURST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FromLookup(lookupFrom(tt.env))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("err = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestFromLookup_Overrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"PORT":          "9090",
		"STORE_BACKEND": "bigquery",
		"GCP_PROJECT":   "p1",
		"GCS_BUCKET":    "sheets",
		"NOTION_TOKEN":  "secret",
		"NOTION_DB_ID":  "db",
		"TIMEZONE":      "UTC",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 || cfg.GCPProject != "p1" || !cfg.UploadsEnabled() || !cfg.NotionEnabled() {
		t.Errorf("cfg = %+v", cfg)
	}
}

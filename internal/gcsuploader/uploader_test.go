package gcsuploader

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{"gs://sheets/imports/u1/ventas.xlsx", "sheets", "imports/u1/ventas.xlsx", false},
		{"gs://sheets/a.xlsx", "sheets", "a.xlsx", false},
		{"gs://sheets", "", "", true},
		{"gs://sheets/", "", "", true},
		{"https://storage.googleapis.com/sheets/a.xlsx", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("got %q %q", bucket, object)
			}
		})
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	if got := ExtractFilenameFromGCSURI("gs://b/imports/u1/gastos 2025.xlsx"); got != "gastos 2025.xlsx" {
		t.Errorf("got %q", got)
	}
	if got := ExtractFilenameFromGCSURI("gs://bucket-only"); got != "bucket-only" {
		t.Errorf("got %q", got)
	}
}

func TestSheetObjectName(t *testing.T) {
	now := time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC)
	got := SheetObjectName("u1", domain.SourceCompras, `C:\Users\ana\compras.xlsx`, now)

	if !strings.HasPrefix(got, "imports/u1/compras/2025-01-15/") {
		t.Errorf("prefix = %q", got)
	}
	if !strings.HasSuffix(got, "-compras.xlsx") {
		t.Errorf("suffix = %q", got)
	}
	if other := SheetObjectName("u1", domain.SourceCompras, "compras.xlsx", now); other == got {
		t.Error("object names should be unique")
	}
}

func TestExportObjectName(t *testing.T) {
	now := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	if got := ExportObjectName("u1", ".pdf", now); got != "exports/u1/20250115T083000Z.pdf" {
		t.Errorf("got %q", got)
	}
}

func TestContentTypeFor(t *testing.T) {
	if ct := ContentTypeFor("a.XLSX"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("xlsx content type = %q", ct)
	}
	if ct := ContentTypeFor("a.bin"); ct != "application/octet-stream" {
		t.Errorf("default content type = %q", ct)
	}
}

func TestOwnsObject(t *testing.T) {
	obj := SheetObjectName("u1", domain.SourceVentas, "v.xlsx", time.Now())
	tests := []struct {
		owner  string
		object string
		want   bool
	}{
		{"u1", obj, true},
		{"u2", obj, false},
		{"u", obj, false},
		{"", obj, false},
		{"u1", "exports/u1/x.pdf", false},
	}
	for _, tt := range tests {
		if got := OwnsObject(tt.owner, tt.object); got != tt.want {
			t.Errorf("OwnsObject(%q, %q) = %v, want %v", tt.owner, tt.object, got, tt.want)
		}
	}
}

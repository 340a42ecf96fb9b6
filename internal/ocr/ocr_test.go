package ocr

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestParseDatos(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Datos
	}{
		{
			name: "plain",
			raw:  `{"cliente": "Maria Perez", "monto": 27000.5, "referencia": "000006144"}`,
			want: Datos{Cliente: "Maria Perez", Monto: 27000.5, Referencia: "000006144"},
		},
		{
			name: "fenced with string amount",
			raw:  "```json\n{\"cliente\": \" Jose \", \"monto\": \"27.000,00\", \"referencia\": 6144}\n```",
			want: Datos{Cliente: "Jose", Monto: 27000, Referencia: "6144"},
		},
		{
			name: "nulls",
			raw:  `Aquí está: {"cliente": null, "monto": null, "referencia": null}`,
			want: Datos{},
		},
		{
			name: "garbage amount",
			raw:  `{"cliente": "Ana", "monto": "n/a", "referencia": "1"}`,
			want: Datos{Cliente: "Ana", Referencia: "1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseDatos(tt.raw)
			if err != nil {
				t.Fatalf("parseDatos: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := parseDatos("no json here"); err == nil {
		t.Error("expected error for non-JSON output")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(Datos{Cliente: "Ana", Monto: 10, Referencia: "1"}); err != nil {
		t.Errorf("complete datos: %v", err)
	}

	err := Validate(Datos{Cliente: " ", Monto: -1})
	if !errors.Is(err, ErrIncompleteData) {
		t.Fatalf("err = %v", err)
	}
	if p := Problems(Datos{Cliente: " ", Monto: -1}); len(p) != 3 {
		t.Errorf("problems = %v", p)
	}
	if !strings.Contains(err.Error(), "monto") {
		t.Errorf("err = %v", err)
	}
}

// 1x1 transparent PNG.
const pngBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func TestDecodeImage(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		wantType string
		wantErr  bool
	}{
		{"raw base64 sniffed", pngBase64, "image/png", false},
		{"data url", "data:image/jpeg;base64," + pngBase64, "image/jpeg", false},
		{"malformed data url", "data:image/png," + pngBase64, "", true},
		{"not base64", "%%%", "", true},
		{"empty", "  ", "", true},
		{"not an image", base64.StdEncoding.EncodeToString([]byte("hello world")), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mediaType, err := DecodeImage(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if mediaType != tt.wantType || len(data) == 0 {
				t.Errorf("type = %q, %d bytes", mediaType, len(data))
			}
		})
	}
}

// Package ocr extracts transfer details from bank screenshot captures.
package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/dvloznov/fx-ledger/internal/importer"
)

// ErrIncompleteData is returned by Validate when a field could not be read.
var ErrIncompleteData = errors.New("incomplete capture data")

// Datos are the fields read from a capture.
type Datos struct {
	Cliente    string  `json:"cliente"`
	Monto      float64 `json:"monto"`
	Referencia string  `json:"referencia"`
}

// Extractor reads Datos from an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mediaType string) (Datos, error)
}

// Problems lists the user-facing reasons d is incomplete.
func Problems(d Datos) []string {
	var out []string
	if strings.TrimSpace(d.Cliente) == "" {
		out = append(out, "No se pudo identificar el cliente")
	}
	if !(d.Monto > 0) {
		out = append(out, "No se pudo identificar el monto")
	}
	if strings.TrimSpace(d.Referencia) == "" {
		out = append(out, "No se pudo identificar la referencia")
	}
	return out
}

// Validate returns an error wrapping ErrIncompleteData when d is incomplete.
func Validate(d Datos) error {
	p := Problems(d)
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrIncompleteData, strings.Join(p, "; "))
}

var supportedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// DecodeImage decodes standard base64 image data. A data URL prefix
// ("data:image/png;base64,") is accepted and its media type is returned;
// otherwise the media type is sniffed from the bytes.
func DecodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	mediaType := ""
	if strings.HasPrefix(s, "data:") {
		header, payload, ok := strings.Cut(s, ",")
		if !ok || !strings.HasSuffix(header, ";base64") {
			return nil, "", errors.New("DecodeImage: malformed data URL")
		}
		mediaType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		s = payload
	}
	if s == "" {
		return nil, "", errors.New("DecodeImage: empty image")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", fmt.Errorf("DecodeImage: %w", err)
	}
	if mediaType == "" {
		mediaType, _, _ = strings.Cut(http.DetectContentType(data), ";")
	}
	if !supportedTypes[mediaType] {
		return nil, "", fmt.Errorf("DecodeImage: unsupported media type %q", mediaType)
	}
	return data, mediaType, nil
}

// parseDatos decodes the model's JSON object. Monto may be a number or a
// formatted string, and referencia may come back as a number.
func parseDatos(raw string) (Datos, error) {
	var v struct {
		Cliente    *string `json:"cliente"`
		Monto      any     `json:"monto"`
		Referencia any     `json:"referencia"`
	}
	if err := json.Unmarshal([]byte(cleanModelJSON(raw)), &v); err != nil {
		return Datos{}, fmt.Errorf("parseDatos: unmarshal JSON: %w\nraw response: %s", err, raw)
	}

	var d Datos
	if v.Cliente != nil {
		d.Cliente = strings.TrimSpace(*v.Cliente)
	}
	switch m := v.Monto.(type) {
	case float64:
		d.Monto = m
	case string:
		// Unreadable amounts count as missing, not as a parse failure.
		d.Monto, _ = importer.ParseNumber(m)
	}
	if math.IsNaN(d.Monto) || math.IsInf(d.Monto, 0) {
		d.Monto = 0
	}
	switch r := v.Referencia.(type) {
	case string:
		d.Referencia = strings.TrimSpace(r)
	case float64:
		d.Referencia = strconv.FormatFloat(r, 'f', -1, 64)
	}
	return d, nil
}

// cleanModelJSON strips Markdown fences and anything around the JSON object
// if the model ignored instructions.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end != -1 && end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}

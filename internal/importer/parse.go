package importer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// excelEpoch is day 0 of the spreadsheet serial date system (1900 based,
// including the phantom 1900-02-29).
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

var numberNoise = strings.NewReplacer("Bs.", "", "Bs", "", "$", "", "%", "", "F", "", " ", "", "\u00a0", "")

// ParseNumber reads a locale-ambiguous amount.
//
// Currency marks, percent signs and spaces are stripped. When both ',' and '.'
// appear, the one that appears last is the decimal point and the other is a
// thousands separator. A separator that appears exactly once on its own is the
// decimal point; a separator repeated on its own is a thousands separator.
// Blank input is 0.
func ParseNumber(s string) (float64, error) {
	clean := numberNoise.Replace(strings.TrimSpace(s))
	if clean == "" {
		return 0, nil
	}

	lastComma := strings.LastIndex(clean, ",")
	lastDot := strings.LastIndex(clean, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			clean = strings.ReplaceAll(clean, ".", "")
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(clean, ",") == 1 {
			clean = strings.Replace(clean, ",", ".", 1)
		} else {
			clean = strings.ReplaceAll(clean, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(clean, ".") > 1 {
			clean = strings.ReplaceAll(clean, ".", "")
		}
	}

	n, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, fmt.Errorf("%q no es un número válido", s)
	}
	return n, nil
}

// ParseDate normalizes DD/MM/YYYY, DD-MM-YYYY (two-digit years are 20xx),
// YYYY-MM-DD and spreadsheet serial day numbers to YYYY-MM-DD.
func ParseDate(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("fecha vacía")
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial < 1 {
			return "", fmt.Errorf("fecha inválida %q", s)
		}
		return excelEpoch.AddDate(0, 0, int(math.Floor(serial))).Format(domain.DateLayout), nil
	}

	if domain.ValidDate(s) {
		return s, nil
	}

	sep := "/"
	if !strings.Contains(s, sep) {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return "", fmt.Errorf("fecha inválida %q", s)
	}
	day, month, year := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
	if len(day) == 4 {
		day, year = year, day
	}
	if len(year) == 2 {
		year = "20" + year
	}
	iso := fmt.Sprintf("%s-%s-%s", year, pad2(month), pad2(day))
	if !domain.ValidDate(iso) {
		return "", fmt.Errorf("fecha inválida %q", s)
	}
	return iso, nil
}

// ParseTime normalizes HH:MM[:SS] and spreadsheet day fractions to HH:MM.
// Blank input is 00:00.
func ParseTime(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "00:00", nil
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		frac := f - math.Floor(f)
		mins := int(math.Round(frac * 24 * 60))
		if mins >= 24*60 {
			mins = 0
		}
		return fmt.Sprintf("%02d:%02d", mins/60, mins%60), nil
	}

	for _, layout := range []string{"15:04", "15:04:05", "3:04 PM", "3:04:05 PM", "3:04PM"} {
		if t, err := time.Parse(layout, strings.ToUpper(s)); err == nil {
			return t.Format("15:04"), nil
		}
	}
	return "", fmt.Errorf("hora inválida %q", s)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// Package export renders transaction sets as spreadsheets, PDF reports and
// Markdown summaries.
package export

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Amount renders v with exactly two decimals.
func Amount(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Round2 rounds v half away from zero to two decimals.
func Round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Filename returns the download name of an export, e.g.
// contabilidad_ana@example.com_2025-01-15.xlsx.
func Filename(prefix, who, ext string, now time.Time) string {
	who = strings.NewReplacer("/", "_", "\\", "_", " ", "_").Replace(who)
	return fmt.Sprintf("%s_%s_%s.%s", prefix, who, now.Format("2006-01-02"), strings.TrimPrefix(ext, "."))
}

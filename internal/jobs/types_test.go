package jobs

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dvloznov/fx-ledger/internal/importer"
)

func TestPermanent(t *testing.T) {
	base := errors.New("quota exceeded")
	err := fmt.Errorf("import: %w", Permanent(base))

	if !IsPermanent(err) {
		t.Error("wrapped permanent error not detected")
	}
	if !errors.Is(err, base) {
		t.Error("permanent error should unwrap to its cause")
	}
	if IsPermanent(base) {
		t.Error("plain error reported as permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}

func TestImportSheetJob_Clone(t *testing.T) {
	now := time.Now()
	j := &ImportSheetJob{
		JobID:     "j1",
		StartedAt: &now,
		Summary:   &importer.Summary{Errors: []string{"Fila 2: x"}},
	}
	c := j.Clone()
	c.Summary.Errors[0] = "changed"
	*c.StartedAt = now.Add(time.Hour)

	if j.Summary.Errors[0] != "Fila 2: x" || !j.StartedAt.Equal(now) {
		t.Error("clone shares state with the original")
	}
	if c.GetID() != "j1" || c.GetType() != JobTypeImportSheet {
		t.Errorf("clone = %+v", c)
	}
}

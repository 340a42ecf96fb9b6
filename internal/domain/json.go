package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// header is the flat wire shape of the fields shared by every record.
type header struct {
	ID             string       `json:"id,omitempty"`
	OwnerID        string       `json:"usuarioId,omitempty"`
	Tipo           Tipo         `json:"tipo"`
	Fecha          string       `json:"fecha"`
	Hora           string       `json:"hora,omitempty"`
	Monto          float64      `json:"monto"`
	Moneda         Moneda       `json:"moneda"`
	Descripcion    string       `json:"descripcion,omitempty"`
	Categoria      string       `json:"categoria,omitempty"`
	Cuenta         string       `json:"cuenta,omitempty"`
	Importado      bool         `json:"importado"`
	ImportadoDesde ImportSource `json:"importadoDesde,omitempty"`
	CreadoPor      string       `json:"creadoPor,omitempty"`
	CreadoEn       *time.Time   `json:"creadoEn,omitempty"`
}

// MarshalJSON writes the record as one flat object with a "tipo"
// discriminator, the same shape the documents are stored in.
func (t Transaction) MarshalJSON() ([]byte, error) {
	h := header{
		ID:             t.ID,
		OwnerID:        t.OwnerID,
		Tipo:           t.Tipo(),
		Fecha:          t.Fecha,
		Hora:           t.Hora,
		Monto:          t.Monto,
		Moneda:         t.Moneda,
		Descripcion:    t.Descripcion,
		Categoria:      t.Categoria,
		Cuenta:         t.Cuenta,
		Importado:      t.Importado,
		ImportadoDesde: t.ImportadoDesde,
		CreadoPor:      t.CreadoPor,
	}
	if !t.CreadoEn.IsZero() {
		ts := t.CreadoEn
		h.CreadoEn = &ts
	}

	out := map[string]json.RawMessage{}
	if err := mergeInto(out, h); err != nil {
		return nil, err
	}
	if t.Detail != nil {
		if err := mergeInto(out, t.Detail); err != nil {
			return nil, err
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the flat shape and picks the Detail variant from "tipo".
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return err
	}
	tipo, err := ParseTipo(string(h.Tipo))
	if err != nil {
		return err
	}
	detail, err := NewDetail(tipo)
	if err != nil {
		return err
	}
	if _, empty := detail.(*Ingreso); !empty {
		if err := json.Unmarshal(data, detail); err != nil {
			return fmt.Errorf("decoding %s fields: %w", tipo, err)
		}
	}

	moneda := h.Moneda
	if moneda != "" && !moneda.Valid() {
		if m, err := ParseMoneda(string(moneda)); err == nil {
			moneda = m
		}
	}

	*t = Transaction{
		ID:             h.ID,
		OwnerID:        h.OwnerID,
		Fecha:          h.Fecha,
		Hora:           h.Hora,
		Monto:          h.Monto,
		Moneda:         moneda,
		Descripcion:    h.Descripcion,
		Categoria:      h.Categoria,
		Cuenta:         h.Cuenta,
		Importado:      h.Importado,
		ImportadoDesde: h.ImportadoDesde,
		CreadoPor:      h.CreadoPor,
		Detail:         detail,
	}
	if h.CreadoEn != nil {
		t.CreadoEn = *h.CreadoEn
	}
	return nil
}

func mergeInto(dst map[string]json.RawMessage, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for k, raw := range fields {
		dst[k] = raw
	}
	return nil
}

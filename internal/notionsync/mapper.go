package notionsync

import (
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/fx-ledger/internal/domain"
)

// Property names of the mirror database.
const (
	PropDescripcion   = "Descripción"
	PropTipo          = "Tipo"
	PropMoneda        = "Moneda"
	PropMonto         = "Monto"
	PropFecha         = "Fecha"
	PropCategoria     = "Categoría"
	PropCuenta        = "Cuenta"
	PropImportado     = "Importado"
	PropTransactionID = "Transaction ID"
	PropOwner         = "Owner"
)

// TransactionToNotionProperties maps a ledger record to a page of the mirror
// database. The title falls back to the tipo when the record has no
// description.
func TransactionToNotionProperties(tx *domain.Transaction) notionapi.Properties {
	title := tx.Descripcion
	if title == "" {
		title = string(tx.Tipo())
	}

	props := notionapi.Properties{
		PropDescripcion:   notionapi.TitleProperty{Title: richText(title)},
		PropTipo:          notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Tipo())}},
		PropMonto:         notionapi.NumberProperty{Number: tx.Monto},
		PropImportado:     notionapi.CheckboxProperty{Checkbox: tx.Importado},
		PropTransactionID: notionapi.RichTextProperty{RichText: richText(tx.ID)},
		PropOwner:         notionapi.RichTextProperty{RichText: richText(tx.OwnerID)},
	}
	if tx.Moneda != "" {
		props[PropMoneda] = notionapi.SelectProperty{Select: notionapi.Option{Name: string(tx.Moneda)}}
	}
	if d, err := time.Parse(time.DateOnly, tx.Fecha); err == nil {
		start := notionapi.Date(d)
		props[PropFecha] = notionapi.DateProperty{Date: &notionapi.DateObject{Start: &start}}
	}
	if tx.Categoria != "" {
		props[PropCategoria] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Categoria}}
	}
	if tx.Cuenta != "" {
		props[PropCuenta] = notionapi.SelectProperty{Select: notionapi.Option{Name: tx.Cuenta}}
	}
	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{
		Type:      notionapi.ObjectTypeText,
		Text:      &notionapi.Text{Content: s},
		PlainText: s,
	}}
}

// extractTransactionID returns the ledger id stored on page, or "" for pages
// this mirror did not create.
func extractTransactionID(page notionapi.Page) string {
	return plainText(page.Properties[PropTransactionID])
}

func plainText(prop notionapi.Property) string {
	var parts []notionapi.RichText
	switch p := prop.(type) {
	case *notionapi.RichTextProperty:
		parts = p.RichText
	case *notionapi.TitleProperty:
		parts = p.Title
	}
	if len(parts) == 0 {
		return ""
	}
	if parts[0].PlainText != "" {
		return parts[0].PlainText
	}
	if parts[0].Text != nil {
		return parts[0].Text.Content
	}
	return ""
}

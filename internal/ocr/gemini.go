package ocr

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

const capturePrompt = `Analiza este capture de transferencia bancaria de BBVA Provincial o Banco de Venezuela y extrae ÚNICAMENTE la siguiente información:

1. CLIENTE: El nombre que aparece en el campo "Concepto" o "Descripción" (generalmente es el nombre de la persona a quien se le hizo el pago)
2. MONTO: El monto total de la transferencia en Bolívares (Bs). Busca el número más grande que tenga "Bs" al lado.
3. REFERENCIA: El número de referencia de la transacción

IMPORTANTE:
- Responde ÚNICAMENTE con un objeto JSON válido
- NO incluyas explicaciones ni texto adicional
- NO uses bloques de código con backticks
- El formato debe ser exactamente:

{
  "cliente": "nombre del cliente extraído del concepto",
  "monto": 27000.00,
  "referencia": "000006144"
}

Si no puedes identificar algún campo, usa null como valor.

RESPONDE SOLO CON EL JSON, NADA MÁS.`

// GeminiExtractor reads captures with a Gemini vision model.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

var _ Extractor = (*GeminiExtractor)(nil)

// NewGeminiExtractor creates a GenAI client from the environment
// (GOOGLE_API_KEY, or GOOGLE_GENAI_USE_VERTEXAI with project and location).
func NewGeminiExtractor(ctx context.Context, model string) (*GeminiExtractor, error) {
	if model == "" {
		model = DefaultModelName
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Extract sends the image inline with the capture prompt.
func (g *GeminiExtractor) Extract(ctx context.Context, image []byte, mediaType string) (Datos, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{
					InlineData: &genai.Blob{
						MIMEType: mediaType,
						Data:     image,
					},
				},
				{Text: capturePrompt},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return Datos{}, fmt.Errorf("Extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return Datos{}, errors.New("Extract: empty response from model")
	}
	return parseDatos(rawText)
}

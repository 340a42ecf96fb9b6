package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/fx-ledger/internal/api/middleware"
	"github.com/dvloznov/fx-ledger/internal/metrics"
	"github.com/dvloznov/fx-ledger/internal/ocr"
)

// MaxCaptureBytes bounds an analizar-capture request body.
const MaxCaptureBytes = 50 << 20

// OCRObserver counts capture analyses. *metrics.Metrics satisfies it.
type OCRObserver interface {
	ObserveOCR(outcome string)
}

// captureResponse is the envelope the capture form expects.
type captureResponse struct {
	Exito     bool       `json:"exito"`
	Datos     *ocr.Datos `json:"datos,omitempty"`
	Faltantes []string   `json:"faltantes,omitempty"`
	Mensaje   string     `json:"mensaje"`
}

// OCRHandler reads client, amount and reference from a bank transfer capture.
type OCRHandler struct {
	extractor ocr.Extractor
	observer  OCRObserver
	log       zerolog.Logger
}

// NewOCRHandler creates a new OCR handler. extractor may be nil when no
// model is configured; observer may be nil.
func NewOCRHandler(extractor ocr.Extractor, observer OCRObserver, log zerolog.Logger) *OCRHandler {
	return &OCRHandler{extractor: extractor, observer: observer, log: log}
}

func (h *OCRHandler) observe(outcome string) {
	if h.observer != nil {
		h.observer.ObserveOCR(outcome)
	}
}

// AnalyzeCapture handles POST /api/analizar-capture
func (h *OCRHandler) AnalyzeCapture(w http.ResponseWriter, r *http.Request) {
	if h.extractor == nil {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, captureResponse{Mensaje: "El análisis de capturas no está configurado"})
		return
	}

	var req struct {
		ImageData string `json:"imageData"`
		MediaType string `json:"mediaType"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxCaptureBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			middleware.WriteJSON(w, http.StatusRequestEntityTooLarge, captureResponse{Mensaje: "La imagen es demasiado grande"})
			return
		}
		middleware.WriteJSON(w, http.StatusBadRequest, captureResponse{Mensaje: "Cuerpo de la solicitud inválido"})
		return
	}
	if req.ImageData == "" || req.MediaType == "" {
		middleware.WriteJSON(w, http.StatusBadRequest, captureResponse{Mensaje: "Faltan datos: imageData y mediaType son requeridos"})
		return
	}

	image, sniffed, err := ocr.DecodeImage(req.ImageData)
	if err != nil {
		middleware.WriteJSON(w, http.StatusBadRequest, captureResponse{Mensaje: err.Error()})
		return
	}
	mediaType := req.MediaType
	if !strings.HasPrefix(mediaType, "image/") {
		mediaType = sniffed
	}

	datos, err := h.extractor.Extract(r.Context(), image, mediaType)
	if err != nil {
		h.observe(metrics.OCRFailure)
		h.log.Error().Err(err).Str("media_type", mediaType).Msg("Failed to analyze capture")
		middleware.WriteJSON(w, http.StatusInternalServerError, captureResponse{Mensaje: "Error al analizar la imagen"})
		return
	}

	resp := captureResponse{Exito: true, Datos: &datos, Mensaje: "Información extraída exitosamente"}
	if faltantes := ocr.Problems(datos); len(faltantes) > 0 {
		h.observe(metrics.OCRIncomplete)
		resp.Faltantes = faltantes
		resp.Mensaje = "Información incompleta: " + strings.Join(faltantes, ", ")
	} else {
		h.observe(metrics.OCRSuccess)
	}
	middleware.WriteJSON(w, http.StatusOK, resp)
}

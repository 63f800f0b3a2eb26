package ingest

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/clinbridge/clinbridge/internal/canonical"
	"github.com/clinbridge/clinbridge/internal/platform/fhir"
	"github.com/clinbridge/clinbridge/internal/platform/hl7v2"
)

// Handler exposes the ingestion gateway over HTTP.
type Handler struct {
	service *Service
}

// NewHandler creates the gateway handler around the pipeline service.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the three submission channels on the
// authenticated group and the health check on the public group.
//
//	POST /ingest/auto      - auto-detecting entry point
//	POST /ingest/resource  - FHIR resource or bundle only
//	POST /ingest/segmented - raw segmented-record text only
//	GET  /ingest/health    - unauthenticated liveness check
func (h *Handler) RegisterRoutes(authed, public *echo.Group) {
	authed.POST("/ingest/auto", h.IngestAuto)
	authed.POST("/ingest/resource", h.IngestResource)
	authed.POST("/ingest/segmented", h.IngestSegmented)
	public.GET("/ingest/health", h.Health)
}

// ingestResponse is the envelope returned by all submission channels.
type ingestResponse struct {
	Status  string   `json:"status"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// IngestAuto handles POST /ingest/auto. The payload format is detected and
// routed to the matching parser; payloads matching no known format are
// rejected with the list of format-specific endpoints.
func (h *Handler) IngestAuto(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return processingError(c, err)
	}

	det, err := Detect(body)
	if err != nil {
		if !errors.Is(err, ErrUnrecognizedFormat) {
			return processingError(c, err)
		}
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error":   "unrecognized_format",
			"message": err.Error(),
			"supported": []string{
				"POST /ingest/auto",
				"POST /ingest/resource",
				"POST /ingest/segmented",
			},
		})
	}

	var msgs []*canonical.Message
	switch det.Format {
	case FormatFHIR:
		msgs, err = fhir.Parse(det.Resource)
		if err != nil {
			return processingError(c, err)
		}
	case FormatHL7:
		// Lenient on this channel: a degraded record still produces a
		// best-effort message.
		msg, _ := hl7v2.Parse(det.Segmented)
		msgs = []*canonical.Message{msg}
	case FormatCanonical, FormatFlat:
		msgs = []*canonical.Message{det.Canonical}
	}

	return h.respond(c, msgs)
}

// IngestResource handles POST /ingest/resource. The body must be a FHIR
// resource or bundle; decode errors fail outright instead of falling
// through to other formats.
func (h *Handler) IngestResource(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return processingError(c, err)
	}

	msgs, err := fhir.Parse(body)
	if err != nil {
		return processingError(c, err)
	}
	return h.respond(c, msgs)
}

// IngestSegmented handles POST /ingest/segmented. The body must be raw
// segmented-record text; an undecodable body fails outright.
func (h *Handler) IngestSegmented(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return processingError(c, err)
	}

	msg, err := hl7v2.Parse(string(body))
	if err != nil {
		return processingError(c, err)
	}
	return h.respond(c, []*canonical.Message{msg})
}

// Health handles GET /ingest/health. It always answers, independent of
// collaborator state.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) respond(c echo.Context, msgs []*canonical.Message) error {
	results := h.service.Process(c.Request().Context(), msgs)
	return c.JSON(http.StatusOK, ingestResponse{
		Status:  "ok",
		Count:   len(results),
		Results: results,
	})
}

func readBody(c echo.Context) ([]byte, error) {
	return io.ReadAll(c.Request().Body)
}

// processingError surfaces an unrecoverable decode failure without crashing
// the listener.
func processingError(c echo.Context, err error) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error":   "processing_failed",
		"message": err.Error(),
	})
}

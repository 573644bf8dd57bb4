package documents

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/foresight/docintel/internal/domain/classification"
	"github.com/foresight/docintel/internal/domain/extraction"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/documents/:id/status", h.GetStatus)
	api.GET("/documents/:id/extracted-fields", h.GetExtractedFields)
}

type StatusResponse struct {
	DocumentID   uuid.UUID          `json:"document_id"`
	FileName     string             `json:"file_name"`
	Status       Status             `json:"status"`
	DocumentType Type               `json:"document_type"`
	Processing   *ProcessingInfo    `json:"processing,omitempty"`
	Extraction   *ExtractionPayload `json:"extraction,omitempty"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

type FieldsResponse struct {
	DocumentID     uuid.UUID              `json:"document_id"`
	Classification *classification.Result `json:"classification"`
	Fields         []extraction.Field     `json:"fields"`
}

func (h *Handler) GetStatus(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, StatusResponse{
		DocumentID:   d.ID,
		FileName:     d.FileName,
		Status:       d.Status,
		DocumentType: d.DocumentType,
		Processing:   d.Processing,
		Extraction:   d.Extraction,
		UpdatedAt:    d.UpdatedAt,
	})
}

func (h *Handler) GetExtractedFields(c echo.Context) error {
	d, err := h.load(c)
	if err != nil {
		return err
	}
	resp := FieldsResponse{DocumentID: d.ID, Fields: []extraction.Field{}}
	if d.Extraction != nil {
		resp.Classification = &classification.Result{
			Type:       d.Extraction.Classification,
			Confidence: d.Extraction.Confidence,
		}
		if d.Extraction.Fields != nil {
			resp.Fields = d.Extraction.Fields
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handler) load(c echo.Context) (*Document, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	d, err := h.svc.Get(c.Request().Context(), id)
	if errors.Is(err, ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "document not found")
	}
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load document")
	}
	return d, nil
}

package pipeline

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/foresight/docintel/internal/domain/coverage"
	"github.com/foresight/docintel/internal/domain/quality"
	"github.com/foresight/docintel/internal/platform/storage"
)

type Handler struct {
	cards         *CardProcessor
	defaultBucket string
}

// NewHandler returns the card processing API. defaultBucket is used when a
// request names no bucket.
func NewHandler(cards *CardProcessor, defaultBucket string) *Handler {
	return &Handler{cards: cards, defaultBucket: defaultBucket}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/insurance-cards/process", h.ProcessCard)
}

type ProcessCardRequest struct {
	Bucket string `json:"bucket"`
	Key    string `json:"key"`
}

type rejectionResponse struct {
	Error         string   `json:"error"`
	Issues        []string `json:"issues,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

func (h *Handler) ProcessCard(c echo.Context) error {
	var req ProcessCardRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Bucket == "" {
		req.Bucket = h.defaultBucket
	}
	if req.Bucket == "" || req.Key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "bucket and key are required")
	}

	res, err := h.cards.Process(c.Request().Context(), storage.Location{Bucket: req.Bucket, Key: req.Key})
	if err == nil {
		return c.JSON(http.StatusOK, res)
	}

	var (
		rejected     *quality.RejectedError
		insufficient *coverage.InsufficientExtractionError
	)
	switch {
	case errors.Is(err, storage.ErrUnrecognizedKey):
		return echo.NewHTTPError(http.StatusBadRequest, "key must be insurance-cards/{patientId}/{organizationId}/{fileName}")
	case errors.As(err, &rejected):
		conf := rejected.Confidence
		return c.JSON(http.StatusUnprocessableEntity, rejectionResponse{
			Error:      "document failed quality checks",
			Issues:     rejected.Issues,
			Confidence: &conf,
		})
	case errors.As(err, &insufficient):
		return c.JSON(http.StatusUnprocessableEntity, rejectionResponse{
			Error:         "insufficient data extracted from card",
			MissingFields: insufficient.Missing,
		})
	default:
		h.cards.logger.Error().Err(err).Str("bucket", req.Bucket).Str("key", req.Key).Msg("insurance card processing failed")
		return echo.NewHTTPError(http.StatusBadGateway, "insurance card processing failed")
	}
}

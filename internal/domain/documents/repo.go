package documents

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("document not found")

type Repository interface {
	Create(ctx context.Context, d *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	UpdateProcessing(ctx context.Context, id uuid.UUID, status Status, info *ProcessingInfo) error
	UpdateExtraction(ctx context.Context, id uuid.UUID, docType Type, info *ProcessingInfo, payload *ExtractionPayload) error
}

package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/domain/extraction"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "documents").Logger()}
}

func (s *Service) Create(ctx context.Context, d *Document) error {
	if d.Bucket == "" || d.ObjectKey == "" {
		return fmt.Errorf("bucket and object_key are required")
	}
	if d.DocumentType != "" && !d.DocumentType.Valid() {
		return fmt.Errorf("invalid document_type: %s", d.DocumentType)
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Document, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, err)
	}
	return d, nil
}

// MarkProcessing records a submitted analysis job.
func (s *Service) MarkProcessing(ctx context.Context, id uuid.UUID, job *analysis.Job, startedAt time.Time) error {
	info := &ProcessingInfo{
		Status:    string(StatusProcessing),
		JobID:     job.ID,
		JobKind:   string(job.Kind),
		StartedAt: &startedAt,
	}
	if err := s.repo.UpdateProcessing(ctx, id, StatusProcessing, info); err != nil {
		return fmt.Errorf("mark document %s processing: %w", id, err)
	}
	s.logger.Info().Str("document_id", id.String()).Str("job_id", job.ID).Str("job_kind", string(job.Kind)).Msg("analysis job recorded")
	return nil
}

// MarkFailed records a failure reason, keeping any job bookkeeping already
// on the document.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	d, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	info := carryProcessing(d)
	info.Status = string(StatusFailed)
	info.Message = reason
	info.FinishedAt = &at
	if err := s.repo.UpdateProcessing(ctx, id, StatusFailed, info); err != nil {
		return fmt.Errorf("mark document %s failed: %w", id, err)
	}
	s.logger.Warn().Str("document_id", id.String()).Str("reason", reason).Msg("document processing failed")
	return nil
}

// ApplyExtraction overwrites the document's extraction payload. Applying
// the same extraction twice leaves the document unchanged.
func (s *Service) ApplyExtraction(ctx context.Context, id uuid.UUID, ext Extraction) (*ExtractionPayload, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := ext.Fields
	if fields == nil {
		fields = []extraction.Field{}
	}
	payload := &ExtractionPayload{
		Classification: ext.Classification.Type,
		Confidence:     ext.Classification.Confidence,
		Fields:         fields,
		FullText:       ext.FullText,
		ProcessedAt:    ext.ProcessedAt.UTC(),
		Status:         string(StatusCompleted),
	}

	info := carryProcessing(d)
	info.Status = string(StatusCompleted)
	info.Message = ""
	finished := payload.ProcessedAt
	info.FinishedAt = &finished

	docType := Type(ext.Classification.Type.DocumentType())
	if err := s.repo.UpdateExtraction(ctx, id, docType, info, payload); err != nil {
		return nil, fmt.Errorf("store extraction for document %s: %w", id, err)
	}
	s.logger.Info().
		Str("document_id", id.String()).
		Str("classification", string(payload.Classification)).
		Int("fields", len(payload.Fields)).
		Msg("extraction stored")
	return payload, nil
}

func carryProcessing(d *Document) *ProcessingInfo {
	if d.Processing == nil {
		return &ProcessingInfo{}
	}
	cp := *d.Processing
	return &cp
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/domain/quality"
	"github.com/foresight/docintel/internal/platform/storage"
)

// QuickGate is the cheap text-only pre-check.
type QuickGate interface {
	QuickValidate(ctx context.Context, loc storage.Location) quality.QuickResult
}

// JobStarter submits asynchronous analysis jobs.
type JobStarter interface {
	StartAsync(ctx context.Context, loc storage.Location, documentID uuid.UUID, kind analysis.JobKind) (*analysis.Job, error)
}

// UploadProcessor starts analysis for newly uploaded documents stored under
// documents/{documentId}/{fileName}.
type UploadProcessor struct {
	store      storage.Store
	gate       QuickGate
	dispatcher JobStarter
	docs       DocumentStore
	now        func() time.Time
	logger     zerolog.Logger
}

func NewUploadProcessor(store storage.Store, gate QuickGate, dispatcher JobStarter, docs DocumentStore, logger zerolog.Logger) *UploadProcessor {
	return &UploadProcessor{
		store:      store,
		gate:       gate,
		dispatcher: dispatcher,
		docs:       docs,
		now:        time.Now,
		logger:     logger.With().Str("component", "upload").Logger(),
	}
}

// Process gates and submits one uploaded object. A rejected document is
// marked failed and nil is returned. A failed pre-check call leaves the
// document untouched and returns the error so the event is redelivered.
// Keys outside the documents prefix return storage.ErrUnrecognizedKey.
func (p *UploadProcessor) Process(ctx context.Context, loc storage.Location) (*analysis.Job, error) {
	key, err := storage.ParseDocumentKey(loc.Key)
	if err != nil {
		return nil, err
	}
	log := p.logger.With().
		Str("document_id", key.DocumentID.String()).
		Str("bucket", loc.Bucket).
		Str("key", loc.Key).
		Logger()

	info, err := p.store.Stat(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", loc, err)
	}

	// The image service cannot read PDFs, so they go straight to analysis.
	if storage.IsImage(key.FileName, info.ContentType) {
		q := p.gate.QuickValidate(ctx, loc)
		if q.ServiceErr != nil {
			return nil, fmt.Errorf("quality pre-check: %w", q.ServiceErr)
		}
		if !q.IsValid {
			reason := "Quality check failed: " + q.Reason
			if err := p.docs.MarkFailed(ctx, key.DocumentID, reason, p.now()); err != nil {
				return nil, err
			}
			log.Warn().Str("reason", q.Reason).Msg("upload rejected by quality pre-check")
			return nil, nil
		}
	}

	kind := analysis.ChooseJobKind(key.FileName)
	job, err := p.dispatcher.StartAsync(ctx, loc, key.DocumentID, kind)
	if err != nil {
		if markErr := p.docs.MarkFailed(ctx, key.DocumentID, "Analysis submission failed: "+err.Error(), p.now()); markErr != nil {
			log.Error().Err(markErr).Msg("recording submission failure")
		}
		return nil, err
	}
	if err := p.docs.MarkProcessing(ctx, key.DocumentID, job, p.now()); err != nil {
		return nil, err
	}
	log.Info().Str("job_id", job.ID).Str("job_kind", string(kind)).Int64("size", info.Size).Msg("document submitted for analysis")
	return job, nil
}

// HandleS3 processes every record of an object-created event. Records for
// other prefixes are ignored.
func (p *UploadProcessor) HandleS3(ctx context.Context, event events.S3Event) error {
	var errs []error
	for _, r := range event.Records {
		loc := storage.Location{Bucket: r.S3.Bucket.Name, Key: storage.UnescapeKey(r.S3.Object.Key)}
		if _, err := p.Process(ctx, loc); err != nil {
			if errors.Is(err, storage.ErrUnrecognizedKey) {
				p.logger.Debug().Str("key", loc.Key).Msg("ignoring object outside documents prefix")
				continue
			}
			p.logger.Error().Err(err).Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("upload processing failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

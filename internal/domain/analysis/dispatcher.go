package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/platform/storage"
)

// Job is the handle returned by an asynchronous submission.
type Job struct {
	ID   string
	Kind JobKind
	Tag  CorrelationTag
}

// Dispatcher submits stored documents for structured analysis. It never
// mutates document records; callers persist the returned handle.
type Dispatcher struct {
	client  Client
	channel *NotificationChannel
	now     func() time.Time
	logger  zerolog.Logger
}

// NewDispatcher returns a dispatcher. channel may be nil, in which case the
// service's default completion routing applies.
func NewDispatcher(client Client, channel *NotificationChannel, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{client: client, channel: channel, now: time.Now, logger: logger}
}

// WithClock overrides the clock used to stamp correlation tags.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// AnalyzeSync runs one blocking forms-and-tables analysis.
func (d *Dispatcher) AnalyzeSync(ctx context.Context, loc storage.Location) ([]Block, error) {
	blocks, err := d.client.AnalyzeDocument(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", loc, err)
	}
	d.logger.Debug().Str("bucket", loc.Bucket).Str("key", loc.Key).Int("blocks", len(blocks)).Msg("synchronous analysis complete")
	return blocks, nil
}

// StartAsync submits an asynchronous job tagged with the document id.
func (d *Dispatcher) StartAsync(ctx context.Context, loc storage.Location, documentID uuid.UUID, kind JobKind) (*Job, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown job kind %q", kind)
	}
	tag := NewTag(documentID, kind, d.now())
	sub := Submission{Location: loc, Tag: tag, Channel: d.channel}

	var (
		jobID string
		err   error
	)
	if kind == JobAnalysis {
		jobID, err = d.client.StartAnalysis(ctx, sub)
	} else {
		jobID, err = d.client.StartTextDetection(ctx, sub)
	}
	if err != nil {
		return nil, fmt.Errorf("start %s job for %s: %w", kind, loc, err)
	}

	d.logger.Info().
		Str("document_id", documentID.String()).
		Str("job_id", jobID).
		Str("job_kind", string(kind)).
		Str("tag", tag.String()).
		Msg("analysis job submitted")

	return &Job{ID: jobID, Kind: kind, Tag: tag}, nil
}

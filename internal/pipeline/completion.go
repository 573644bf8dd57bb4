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
	"github.com/foresight/docintel/internal/domain/classification"
	"github.com/foresight/docintel/internal/domain/documents"
	"github.com/foresight/docintel/internal/domain/extraction"
)

// DocumentStore is the document bookkeeping the pipeline writes to.
type DocumentStore interface {
	MarkProcessing(ctx context.Context, id uuid.UUID, job *analysis.Job, startedAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
	ApplyExtraction(ctx context.Context, id uuid.UUID, ext documents.Extraction) (*documents.ExtractionPayload, error)
}

// OutcomeKind is the fate of one completion notification.
type OutcomeKind string

const (
	// OutcomeCompleted means the extraction was stored.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeJobFailed means the job did not succeed and the failure was
	// recorded on the document.
	OutcomeJobFailed OutcomeKind = "job_failed"
	// OutcomeSkipped means the notification can never be processed and
	// must not be redelivered.
	OutcomeSkipped OutcomeKind = "skipped"
	// OutcomeRetry means processing failed and redelivery may succeed.
	OutcomeRetry OutcomeKind = "retry"
)

type Outcome struct {
	Kind       OutcomeKind
	DocumentID uuid.UUID
	Err        error
}

// CompletionConsumer turns finished analysis jobs into stored extractions.
type CompletionConsumer struct {
	pages  analysis.PageGetter
	engine *extraction.Engine
	docs   DocumentStore
	now    func() time.Time
	logger zerolog.Logger
}

func NewCompletionConsumer(pages analysis.PageGetter, engine *extraction.Engine, docs DocumentStore, logger zerolog.Logger) *CompletionConsumer {
	return &CompletionConsumer{
		pages:  pages,
		engine: engine,
		docs:   docs,
		now:    time.Now,
		logger: logger.With().Str("component", "completion").Logger(),
	}
}

// WithClock overrides the clock used for processed_at timestamps.
func (c *CompletionConsumer) WithClock(now func() time.Time) *CompletionConsumer {
	c.now = now
	return c
}

// Process handles one notification. It never panics on bad input and
// reports through the returned Outcome rather than an error.
func (c *CompletionConsumer) Process(ctx context.Context, n *Notification) Outcome {
	log := c.logger.With().Str("job_id", n.JobID).Str("api", n.API).Logger()

	tag, err := analysis.ParseTag(n.JobTag)
	if err != nil {
		log.Error().Err(err).Str("job_tag", n.JobTag).Msg("dropping notification with malformed tag")
		return Outcome{Kind: OutcomeSkipped, Err: err}
	}
	docID := tag.DocumentID
	log = log.With().Str("document_id", docID.String()).Logger()

	if n.Status != analysis.StatusSucceeded {
		reason := fmt.Sprintf("analysis job %s finished with status %s", n.JobID, n.Status)
		if err := c.docs.MarkFailed(ctx, docID, reason, c.now()); err != nil {
			return c.storeFailure(log, docID, err)
		}
		log.Warn().Str("status", n.Status).Msg("analysis job did not succeed")
		return Outcome{Kind: OutcomeJobFailed, DocumentID: docID}
	}

	blocks, err := c.drain(ctx, n, tag)
	if err != nil {
		log.Error().Err(err).Msg("fetching job results failed")
		return Outcome{Kind: OutcomeRetry, DocumentID: docID, Err: err}
	}

	fullText := extraction.FullText(blocks)
	class := classification.Classify(fullText)
	result := c.engine.Extract(blocks, extraction.ProfileFor(class.Type))

	_, err = c.docs.ApplyExtraction(ctx, docID, documents.Extraction{
		Classification: class,
		Fields:         result.Fields,
		FullText:       result.FullText,
		ProcessedAt:    c.now(),
	})
	if err != nil {
		return c.storeFailure(log, docID, err)
	}

	log.Info().
		Int("blocks", len(blocks)).
		Int("fields", len(result.Fields)).
		Str("classification", string(class.Type)).
		Float64("confidence", class.Confidence).
		Msg("document processed")
	return Outcome{Kind: OutcomeCompleted, DocumentID: docID}
}

// storeFailure skips notifications for documents that do not exist and
// retries everything else.
func (c *CompletionConsumer) storeFailure(log zerolog.Logger, docID uuid.UUID, err error) Outcome {
	if errors.Is(err, documents.ErrNotFound) {
		log.Error().Err(err).Msg("dropping notification for unknown document")
		return Outcome{Kind: OutcomeSkipped, DocumentID: docID, Err: err}
	}
	log.Error().Err(err).Msg("updating document failed")
	return Outcome{Kind: OutcomeRetry, DocumentID: docID, Err: err}
}

// drain reads every result page. The API name decides which result getter
// to use; when it is unknown the tag's kind is tried first and the other
// kind second.
func (c *CompletionConsumer) drain(ctx context.Context, n *Notification, tag analysis.CorrelationTag) ([]analysis.Block, error) {
	if kind, ok := n.Kind(); ok {
		return analysis.Drain(ctx, c.pages, kind, n.JobID)
	}

	kinds := []analysis.JobKind{analysis.JobAnalysis, analysis.JobDetection}
	if tag.Kind == analysis.JobDetection {
		kinds = []analysis.JobKind{analysis.JobDetection, analysis.JobAnalysis}
	}
	var errs []error
	for _, kind := range kinds {
		blocks, err := analysis.Drain(ctx, c.pages, kind, n.JobID)
		if err == nil {
			return blocks, nil
		}
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// HandleSQS processes a queue batch. Only messages that may succeed on
// redelivery are reported as failures.
func (c *CompletionConsumer) HandleSQS(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	counts := make(map[OutcomeKind]int)

	for _, msg := range event.Records {
		n, err := ParseNotification(msg.Body)
		if err != nil {
			c.logger.Error().Err(err).Str("message_id", msg.MessageId).Msg("dropping unreadable message")
			counts[OutcomeSkipped]++
			continue
		}
		out := c.Process(ctx, n)
		counts[out.Kind]++
		if out.Kind == OutcomeRetry {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: msg.MessageId})
		}
	}

	c.logger.Info().
		Int("messages", len(event.Records)).
		Int("completed", counts[OutcomeCompleted]).
		Int("job_failed", counts[OutcomeJobFailed]).
		Int("skipped", counts[OutcomeSkipped]).
		Int("retry", counts[OutcomeRetry]).
		Msg("batch processed")
	return resp, nil
}

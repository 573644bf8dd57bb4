package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/domain/coverage"
	"github.com/foresight/docintel/internal/domain/extraction"
	"github.com/foresight/docintel/internal/domain/quality"
	"github.com/foresight/docintel/internal/platform/storage"
)

// FullGate runs every quality check.
type FullGate interface {
	Validate(ctx context.Context, loc storage.Location, kind quality.DocumentKind, opts quality.Options) *quality.Result
}

// SyncAnalyzer runs a blocking forms-and-tables analysis.
type SyncAnalyzer interface {
	AnalyzeSync(ctx context.Context, loc storage.Location) ([]analysis.Block, error)
}

// PolicyUpserter stores card data as an insurance policy.
type PolicyUpserter interface {
	UpsertFromCard(ctx context.Context, patientID, organizationID uuid.UUID, card coverage.CardData) (*coverage.UpsertResult, error)
}

// CardResult is everything the synchronous card flow produced.
type CardResult struct {
	PatientID      uuid.UUID              `json:"patient_id"`
	OrganizationID uuid.UUID              `json:"organization_id"`
	Quality        *quality.Result        `json:"quality"`
	Fields         []extraction.Field     `json:"fields"`
	Card           coverage.CardData      `json:"card"`
	Policy         *coverage.UpsertResult `json:"policy"`
}

// CardProcessor reads an insurance card stored under
// insurance-cards/{patientId}/{organizationId}/{fileName} and upserts the
// patient's policy before returning.
type CardProcessor struct {
	gate     FullGate
	analyzer SyncAnalyzer
	engine   *extraction.Engine
	policies PolicyUpserter
	opts     quality.Options
	logger   zerolog.Logger
}

func NewCardProcessor(gate FullGate, analyzer SyncAnalyzer, engine *extraction.Engine, policies PolicyUpserter, opts quality.Options, logger zerolog.Logger) *CardProcessor {
	return &CardProcessor{
		gate:     gate,
		analyzer: analyzer,
		engine:   engine,
		policies: policies,
		opts:     opts,
		logger:   logger.With().Str("component", "insurance_card").Logger(),
	}
}

// Process returns *quality.RejectedError when the image fails the gate and
// *coverage.InsufficientExtractionError when the card lacks the fields a
// new policy needs. Keys outside the card prefix return
// storage.ErrUnrecognizedKey. A failed image-analysis call is returned
// wrapped, like any other infrastructure error.
func (p *CardProcessor) Process(ctx context.Context, loc storage.Location) (*CardResult, error) {
	key, err := storage.ParseCardKey(loc.Key)
	if err != nil {
		return nil, err
	}
	log := p.logger.With().
		Str("patient_id", key.PatientID.String()).
		Str("bucket", loc.Bucket).
		Str("key", loc.Key).
		Logger()

	q := p.gate.Validate(ctx, loc, quality.KindInsuranceCard, p.opts)
	if err := q.Err(); err != nil {
		var rejected *quality.RejectedError
		if !errors.As(err, &rejected) {
			return nil, fmt.Errorf("quality gate: %w", err)
		}
		log.Warn().Strs("issues", q.Issues).Float64("confidence", q.Confidence).Msg("insurance card rejected")
		return nil, err
	}

	blocks, err := p.analyzer.AnalyzeSync(ctx, loc)
	if err != nil {
		return nil, err
	}
	extracted := p.engine.Extract(blocks, extraction.ProfileInsurance)
	card := coverage.CardDataFromFields(extracted.Fields)

	upsert, err := p.policies.UpsertFromCard(ctx, key.PatientID, key.OrganizationID, card)
	if err != nil {
		var insufficient *coverage.InsufficientExtractionError
		if errors.As(err, &insufficient) {
			log.Warn().Strs("missing", insufficient.Missing).Msg("insurance card lacks required fields")
			return nil, err
		}
		return nil, fmt.Errorf("store policy: %w", err)
	}

	log.Info().
		Str("policy_id", upsert.PolicyID.String()).
		Bool("created", upsert.Created).
		Int("fields", len(extracted.Fields)).
		Msg("insurance card processed")
	return &CardResult{
		PatientID:      key.PatientID,
		OrganizationID: key.OrganizationID,
		Quality:        q,
		Fields:         extracted.Fields,
		Card:           card,
		Policy:         upsert,
	}, nil
}

// HandleS3 processes each uploaded card. Content problems are logged and
// not returned, since retrying the same image cannot fix them.
func (p *CardProcessor) HandleS3(ctx context.Context, event events.S3Event) error {
	var errs []error
	for _, r := range event.Records {
		loc := storage.Location{Bucket: r.S3.Bucket.Name, Key: storage.UnescapeKey(r.S3.Object.Key)}
		_, err := p.Process(ctx, loc)
		var rejected *quality.RejectedError
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrUnrecognizedKey):
			p.logger.Debug().Str("key", loc.Key).Msg("ignoring object outside insurance-cards prefix")
		case errors.As(err, &rejected), errors.Is(err, coverage.ErrInsufficientExtraction):
		default:
			p.logger.Error().Err(err).Str("bucket", loc.Bucket).Str("key", loc.Key).Msg("insurance card processing failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

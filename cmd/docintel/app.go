package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsrekognition "github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstextract "github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/foresight/docintel/internal/config"
	"github.com/foresight/docintel/internal/domain/analysis"
	"github.com/foresight/docintel/internal/domain/coverage"
	"github.com/foresight/docintel/internal/domain/documents"
	"github.com/foresight/docintel/internal/domain/extraction"
	"github.com/foresight/docintel/internal/domain/quality"
	"github.com/foresight/docintel/internal/pipeline"
	"github.com/foresight/docintel/internal/platform/awsutil"
	"github.com/foresight/docintel/internal/platform/db"
	"github.com/foresight/docintel/internal/platform/rekognition"
	"github.com/foresight/docintel/internal/platform/storage"
	"github.com/foresight/docintel/internal/platform/textract"
)

// app holds the process-wide dependencies shared by every command.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	pool   *pgxpool.Pool
	aws    aws.Config

	docs       *documents.Service
	coverage   *coverage.Service
	gate       *quality.Gate
	client     *textract.Client
	dispatcher *analysis.Dispatcher
	engine     *extraction.Engine
	store      storage.Store
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).Level(cfg.Level()).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).Level(cfg.Level()).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		AppName:  "docintel",
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	logger.Info().Msg("connected to database")

	awsConf, err := awsutil.Load(ctx, cfg.AWSRegion, cfg.AWSEndpointURL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := textract.New(awstextract.NewFromConfig(awsConf))
	var channel *analysis.NotificationChannel
	if cfg.AsyncSubmissionEnabled() {
		channel = &analysis.NotificationChannel{TopicARN: cfg.TextractSNSTopic, RoleARN: cfg.TextractRoleARN}
	} else {
		logger.Warn().Msg("no completion topic configured; asynchronous jobs will not publish notifications")
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		aws:    awsConf,
		docs:   documents.NewService(documents.NewRepoPG(pool), logger),
		coverage: coverage.NewService(
			coverage.NewPayerRepoPG(pool),
			coverage.NewPolicyRepoPG(pool),
			logger,
		),
		gate:       quality.NewGate(rekognition.New(awsrekognition.NewFromConfig(awsConf)), logger),
		client:     client,
		dispatcher: analysis.NewDispatcher(client, channel, logger),
		engine:     extraction.NewEngine(),
		store:      storage.NewS3Store(s3.NewFromConfig(awsConf)),
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}

// qualityOptions applies the configured text-confidence threshold to the
// insurance card defaults.
func qualityOptions(cfg *config.Config) quality.Options {
	opts := quality.DefaultOptions()
	opts.MinTextConfidence = cfg.MinTextConfidence
	return opts
}

func (a *app) uploadProcessor() *pipeline.UploadProcessor {
	return pipeline.NewUploadProcessor(a.store, a.gate, a.dispatcher, a.docs, a.logger)
}

func (a *app) completionConsumer() *pipeline.CompletionConsumer {
	return pipeline.NewCompletionConsumer(a.client, a.engine, a.docs, a.logger)
}

func (a *app) cardProcessor() *pipeline.CardProcessor {
	return pipeline.NewCardProcessor(a.gate, a.dispatcher, a.engine, a.coverage, qualityOptions(a.cfg), a.logger)
}

// Package queue long-polls an SQS queue and feeds each batch to the same
// handler the Lambda runtime would invoke.
package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// API is the subset of *sqs.Client the poller calls.
type API interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessageBatch(ctx context.Context, params *sqs.DeleteMessageBatchInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageBatchOutput, error)
}

// BatchHandler has the shape of an SQS Lambda handler with partial batch
// responses.
type BatchHandler func(ctx context.Context, event events.SQSEvent) (events.SQSEventResponse, error)

type Options struct {
	QueueURL     string
	MaxMessages  int32
	WaitSeconds  int32
	ErrorBackoff time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxMessages <= 0 || o.MaxMessages > 10 {
		o.MaxMessages = 10
	}
	if o.WaitSeconds <= 0 || o.WaitSeconds > 20 {
		o.WaitSeconds = 20
	}
	if o.ErrorBackoff <= 0 {
		o.ErrorBackoff = 5 * time.Second
	}
	return o
}

type Poller struct {
	api     API
	opts    Options
	handler BatchHandler
	logger  zerolog.Logger
}

func NewPoller(api API, opts Options, handler BatchHandler, logger zerolog.Logger) *Poller {
	return &Poller{
		api:     api,
		opts:    opts.withDefaults(),
		handler: handler,
		logger:  logger.With().Str("component", "queue").Str("queue_url", opts.QueueURL).Logger(),
	}
}

// Run polls until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info().Msg("polling started")
	for {
		if ctx.Err() != nil {
			p.logger.Info().Msg("polling stopped")
			return nil
		}
		if _, err := p.PollOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				continue
			}
			p.logger.Error().Err(err).Dur("backoff", p.opts.ErrorBackoff).Msg("poll failed")
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.ErrorBackoff):
			}
		}
	}
}

// PollOnce receives one batch, hands it to the handler and deletes every
// message the handler did not report as failed. It returns the number of
// messages received.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	out, err := p.api.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.opts.QueueURL),
		MaxNumberOfMessages: p.opts.MaxMessages,
		WaitTimeSeconds:     p.opts.WaitSeconds,
	})
	if err != nil {
		return 0, fmt.Errorf("receive messages: %w", err)
	}
	if len(out.Messages) == 0 {
		return 0, nil
	}

	batchID := ulid.Make().String()
	log := p.logger.With().Str("batch_id", batchID).Logger()

	event := events.SQSEvent{Records: make([]events.SQSMessage, 0, len(out.Messages))}
	handles := make(map[string]string, len(out.Messages))
	for _, m := range out.Messages {
		id := aws.ToString(m.MessageId)
		handles[id] = aws.ToString(m.ReceiptHandle)
		event.Records = append(event.Records, events.SQSMessage{
			MessageId:     id,
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
			Md5OfBody:     aws.ToString(m.MD5OfBody),
			Attributes:    m.Attributes,
			EventSource:   "aws:sqs",
		})
	}

	resp, err := p.handler(log.WithContext(ctx), event)
	if err != nil {
		// Nothing is deleted, so the whole batch becomes visible again.
		return len(out.Messages), fmt.Errorf("batch %s: %w", batchID, err)
	}

	for _, f := range resp.BatchItemFailures {
		delete(handles, f.ItemIdentifier)
	}
	if err := p.deleteAll(ctx, handles); err != nil {
		return len(out.Messages), fmt.Errorf("batch %s: %w", batchID, err)
	}

	log.Info().
		Int("received", len(out.Messages)).
		Int("deleted", len(handles)).
		Int("retry", len(resp.BatchItemFailures)).
		Msg("batch handled")
	return len(out.Messages), nil
}

func (p *Poller) deleteAll(ctx context.Context, handles map[string]string) error {
	if len(handles) == 0 {
		return nil
	}
	entries := make([]types.DeleteMessageBatchRequestEntry, 0, len(handles))
	for _, h := range handles {
		entries = append(entries, types.DeleteMessageBatchRequestEntry{
			Id:            aws.String(strconv.Itoa(len(entries))),
			ReceiptHandle: aws.String(h),
		})
	}
	out, err := p.api.DeleteMessageBatch(ctx, &sqs.DeleteMessageBatchInput{
		QueueUrl: aws.String(p.opts.QueueURL),
		Entries:  entries,
	})
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	for _, f := range out.Failed {
		p.logger.Warn().Str("entry", aws.ToString(f.Id)).Str("code", aws.ToString(f.Code)).Msg("message not deleted")
	}
	return nil
}

// Package queue carries workflow wake-ups over SQS.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/logging"
	"github.com/cabbageandtea/v0-doggybagg-ordinance-sub001/app/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
)

// API is the subset of *sqs.Client the queue uses.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Queue struct {
	api API
	url string
	log *zap.Logger
}

// New loads the default AWS config and returns a queue bound to url.
func New(ctx context.Context, url string, log *zap.Logger) (*Queue, error) {
	if url == "" {
		return nil, errors.New("QUEUE_URL is required")
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithAPI(sqs.NewFromConfig(awsCfg), url, log), nil
}

func NewWithAPI(api API, url string, log *zap.Logger) *Queue {
	return &Queue{api: api, url: url, log: logging.OrNop(log)}
}

// PublishWakeUp asks a worker to advance runID now.
func (q *Queue) PublishWakeUp(ctx context.Context, runID string) error {
	body, err := json.Marshal(models.WakeUp{RunID: runID})
	if err != nil {
		return err
	}
	_, err = q.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	return err
}

// Handler processes one wake-up. Returning an error leaves the message on the
// queue so SQS redelivers it after the visibility timeout.
type Handler func(ctx context.Context, msg models.WakeUp) error

// Consume long-polls until ctx is cancelled.
func (q *Queue) Consume(ctx context.Context, handle Handler) error {
	q.log.Info("worker listening on SQS queue", zap.String("queue_url", q.url))
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := q.ReceiveOnce(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			q.log.Warn("ReceiveMessage error", zap.Error(err))
			sleep(ctx, 5*time.Second)
			continue
		}
		if n == 0 {
			sleep(ctx, 2*time.Second)
		}
	}
}

// ReceiveOnce does a single long poll and handles what it receives.
func (q *Queue) ReceiveOnce(ctx context.Context, handle Handler) (int, error) {
	recvCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	resp, err := q.api.ReceiveMessage(recvCtx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: 5,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   120,
	})
	cancel()
	if err != nil {
		return 0, err
	}

	for _, m := range resp.Messages {
		if m.Body == nil {
			q.log.Warn("received message with empty body, deleting")
			q.delete(ctx, m)
			continue
		}

		var msg models.WakeUp
		if err := json.Unmarshal([]byte(*m.Body), &msg); err != nil || msg.RunID == "" {
			// poison message; drop it so it is not redelivered forever
			q.log.Warn("invalid wake-up message", zap.String("body", *m.Body), zap.Error(err))
			q.delete(ctx, m)
			continue
		}

		jobCtx, jobCancel := context.WithTimeout(ctx, 2*time.Minute)
		err := handle(jobCtx, msg)
		jobCancel()
		if err != nil {
			q.log.Error("wake-up handling failed", zap.String("run_id", msg.RunID), zap.Error(err))
			continue
		}
		q.delete(ctx, m)
	}
	return len(resp.Messages), nil
}

func (q *Queue) delete(ctx context.Context, m sqstypes.Message) {
	if m.ReceiptHandle == nil {
		return
	}
	_, err := q.api.DeleteMessage(context.WithoutCancel(ctx), &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: m.ReceiptHandle,
	})
	if err != nil {
		q.log.Warn("failed to delete SQS message", zap.Error(err))
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

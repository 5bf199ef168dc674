package sqs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/cuongbtq/thumbnailer/shared/awsconfig"
)

const (
	maxWaitTime          = 20 * time.Second
	contentTypeAttribute = "ContentType"
)

// ErrNoQueue is returned when neither a queue URL nor a queue name is configured
var ErrNoQueue = errors.New("sqs queue url or name is required")

// API is the subset of the SQS client used by Client
type API interface {
	ReceiveMessage(ctx context.Context, params *awssqs.ReceiveMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *awssqs.DeleteMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.DeleteMessageOutput, error)
	SendMessage(ctx context.Context, params *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	GetQueueUrl(ctx context.Context, params *awssqs.GetQueueUrlInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error)
}

// Config holds SQS queue configuration
type Config struct {
	AWS               awsconfig.Config
	QueueURL          string
	QueueName         string        // resolved with GetQueueUrl when QueueURL is empty
	WaitTime          time.Duration // long poll duration, capped at 20s
	VisibilityTimeout time.Duration // zero keeps the queue default
}

// Client receives, deletes and sends thumbnail jobs on one SQS queue
type Client struct {
	api               API
	queueURL          string
	waitTimeSeconds   int32
	visibilityTimeout int32
	logger            *slog.Logger
}

// NewClient creates a new SQS client
func NewClient(ctx context.Context, cfg *Config, logger *slog.Logger) (*Client, error) {
	awsCfg, err := awsconfig.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}

	api := awssqs.NewFromConfig(awsCfg, func(o *awssqs.Options) {
		if cfg.AWS.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.Endpoint)
		}
	})

	return newClient(ctx, api, cfg, logger)
}

func newClient(ctx context.Context, api API, cfg *Config, logger *slog.Logger) (*Client, error) {
	queueURL := cfg.QueueURL
	if queueURL == "" {
		if cfg.QueueName == "" {
			return nil, ErrNoQueue
		}

		out, err := api.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{
			QueueName: aws.String(cfg.QueueName),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to resolve queue url for %s: %w", cfg.QueueName, err)
		}
		queueURL = aws.ToString(out.QueueUrl)
	}

	wait := cfg.WaitTime
	if wait > maxWaitTime {
		wait = maxWaitTime
	}

	logger.Info("SQS client initialized",
		slog.String("queue_url", queueURL),
		slog.Duration("wait_time", wait),
	)

	return &Client{
		api:               api,
		queueURL:          queueURL,
		waitTimeSeconds:   int32(wait / time.Second),
		visibilityTimeout: int32(cfg.VisibilityTimeout / time.Second),
		logger:            logger,
	}, nil
}

// Receive asks for at most one message.
// It returns nil, nil when the poll ends without a message.
func (c *Client) Receive(ctx context.Context) (*domain.Message, error) {
	input := &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     c.waitTimeSeconds,
	}
	if c.visibilityTimeout > 0 {
		input.VisibilityTimeout = c.visibilityTimeout
	}

	out, err := c.api.ReceiveMessage(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to receive message: %w", err)
	}

	if len(out.Messages) == 0 {
		return nil, nil
	}

	msg := out.Messages[0]
	c.logger.Debug("Message received",
		slog.String("message_id", aws.ToString(msg.MessageId)),
	)

	return &domain.Message{
		Handle: aws.ToString(msg.ReceiptHandle),
		Body:   []byte(aws.ToString(msg.Body)),
	}, nil
}

// Delete removes the message identified by its receipt handle
func (c *Client) Delete(ctx context.Context, handle string) error {
	_, err := c.api.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// Publish sends body as a new message
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	input := &awssqs.SendMessageInput{
		QueueUrl:    aws.String(c.queueURL),
		MessageBody: aws.String(string(body)),
	}
	if contentType != "" {
		input.MessageAttributes = map[string]types.MessageAttributeValue{
			contentTypeAttribute: {
				DataType:    aws.String("String"),
				StringValue: aws.String(contentType),
			},
		}
	}

	out, err := c.api.SendMessage(ctx, input)
	if err != nil {
		c.logger.Error("Failed to publish message to SQS",
			slog.Any("error", err),
		)
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug("Message published to SQS",
		slog.String("message_id", aws.ToString(out.MessageId)),
		slog.Int("body_size", len(body)),
	)
	return nil
}

// Close is a no-op; the SQS client holds no connection
func (c *Client) Close() error {
	return nil
}

// Package queue builds the job queue client selected by configuration.
package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/thumbnailer/internal/config"
	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/cuongbtq/thumbnailer/shared/rabbitmq"
	"github.com/cuongbtq/thumbnailer/shared/redisstream"
	"github.com/cuongbtq/thumbnailer/shared/sqs"
)

// Client is implemented by every queue backend
type Client interface {
	Receive(ctx context.Context) (*domain.Message, error)
	Delete(ctx context.Context, handle string) error
	Publish(ctx context.Context, body []byte, contentType string) error
	Close() error
}

var (
	_ Client = (*sqs.Client)(nil)
	_ Client = (*rabbitmq.Client)(nil)
	_ Client = (*redisstream.Client)(nil)
)

// New connects to the configured queue backend.
// consumer names this process in backends that track consumers.
func New(ctx context.Context, cfg *config.QueueConfig, consumer string, logger *slog.Logger) (Client, error) {
	logger = logger.With(slog.String("queue_backend", cfg.Backend))

	switch cfg.Backend {
	case config.QueueBackendSQS:
		client, err := sqs.NewClient(ctx, &sqs.Config{
			AWS:               cfg.SQS.AWS.SDKConfig(),
			QueueURL:          cfg.SQS.QueueURL,
			QueueName:         cfg.SQS.QueueName,
			WaitTime:          cfg.SQS.WaitTime,
			VisibilityTimeout: cfg.SQS.VisibilityTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.QueueBackendRabbitMQ:
		client, err := newRabbitMQ(&cfg.RabbitMQ, consumer, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	case config.QueueBackendRedis:
		name := cfg.Redis.Consumer
		if name == "" {
			name = consumer
		}
		client, err := redisstream.NewClient(ctx, &redisstream.Config{
			Addr:              cfg.Redis.Addr,
			Password:          cfg.Redis.Password,
			DB:                cfg.Redis.DB,
			Stream:            cfg.Redis.Stream,
			Group:             cfg.Redis.Group,
			Consumer:          name,
			MaxLen:            cfg.Redis.MaxLen,
			BlockTimeout:      cfg.Redis.BlockTimeout,
			VisibilityTimeout: cfg.Redis.VisibilityTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown queue backend: %q", cfg.Backend)
	}
}

func newRabbitMQ(cfg *config.RabbitMQConfig, consumer string, logger *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
		PublishRetries:     cfg.Publish.RetryAttempts,
		PublishRetryDelay:  cfg.Publish.RetryInterval,
		PublishBackoffMult: cfg.Publish.BackoffMultiplier,
		ConsumerTag:        consumer,
		VisibilityTimeout:  cfg.Consumer.VisibilityTimeout,
		PollInterval:       cfg.Consumer.PollInterval,
	}, logger)
}

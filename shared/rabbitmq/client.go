package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultRetryInterval     = 2 * time.Second
	defaultVisibilityTimeout = 60 * time.Second
	defaultPollInterval      = 5 * time.Second
)

var (
	// ErrNotConnected is returned when the client has no open channel and
	// could not open a new one
	ErrNotConnected = errors.New("not connected to RabbitMQ")

	// ErrDeliveryExpired is returned when a delivery is no longer held by the
	// client: its visibility timeout elapsed or its channel was closed
	ErrDeliveryExpired = errors.New("delivery visibility timeout expired")
)

// Config holds RabbitMQ connection configuration
type Config struct {
	Host               string
	Port               int
	User               string
	Password           string
	VHost              string
	ExchangeName       string
	ExchangeType       string
	ExchangeDurable    bool
	ExchangeAutoDelete bool
	QueueName          string
	QueueDurable       bool
	QueueAutoDelete    bool
	QueueExclusive     bool
	RoutingKey         string
	RetryAttempts      int // dial attempts per connect, at least one
	RetryInterval      time.Duration
	Heartbeat          time.Duration
	ConnectionTimeout  time.Duration
	PublishRetries     int
	PublishRetryDelay  time.Duration
	PublishBackoffMult float64
	ConsumerTag        string
	VisibilityTimeout  time.Duration // unacknowledged deliveries are requeued after this
	PollInterval       time.Duration // longest a Receive waits for a delivery
}

// withDefaults returns a copy of cfg with unset durations filled in
func (cfg Config) withDefaults() *Config {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 1
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = defaultRetryInterval
	}
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = defaultVisibilityTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &cfg
}

// inFlight is a delivery handed out by Receive and not yet acknowledged
type inFlight struct {
	channel *amqp.Channel
	timer   *time.Timer
}

// Client represents a RabbitMQ client.
// Deliveries are consumed lazily on the first Receive, so a publish-only
// client never takes messages from the queue.
type Client struct {
	config *Config
	logger *slog.Logger

	// reconnectMu serializes reconnect attempts
	reconnectMu sync.Mutex

	mu          sync.Mutex
	conn        *amqp.Connection
	channel     *amqp.Channel
	deliveries  <-chan amqp.Delivery
	generation  uint64
	isConnected bool
	closed      bool
	inFlight    map[uint64]*inFlight
}

// NewClient creates a new RabbitMQ client
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	client := &Client{
		config:   config.withDefaults(),
		logger:   logger,
		inFlight: make(map[uint64]*inFlight),
	}

	if err := client.connect(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create RabbitMQ client: %w", err)
	}

	return client, nil
}

// connect establishes connection to RabbitMQ with retry logic and replaces
// the current channel. Deliveries of a previous channel are forgotten; the
// broker requeues them when that channel closes.
func (c *Client) connect(ctx context.Context) error {
	var (
		conn *amqp.Connection
		err  error
	)

	attempts := c.config.RetryAttempts
	if attempts <= 0 {
		attempts = 1
	}

	dsn := fmt.Sprintf("amqp://%s:%s@%s:%d%s",
		c.config.User,
		c.config.Password,
		c.config.Host,
		c.config.Port,
		c.config.VHost,
	)

	amqpConfig := amqp.Config{
		Heartbeat: c.config.Heartbeat,
		Locale:    "en_US",
	}
	if c.config.ConnectionTimeout > 0 {
		amqpConfig.Dial = amqp.DefaultDial(c.config.ConnectionTimeout)
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		c.logger.Info("Connecting to RabbitMQ",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
		)

		conn, err = amqp.DialConfig(dsn, amqpConfig)
		if err == nil {
			c.logger.Info("Successfully connected to RabbitMQ")
			break
		}

		c.logger.Error("Failed to connect to RabbitMQ",
			slog.Any("error", err),
			slog.Int("attempt", attempt),
		)

		if attempt < attempts {
			if waitErr := sleepContext(ctx, c.config.RetryInterval); waitErr != nil {
				return waitErr
			}
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", attempts, err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to setup exchange and queue: %w", err)
	}

	closeChan := channel.NotifyClose(make(chan *amqp.Error, 1))

	c.mu.Lock()
	c.forgetInFlight()
	c.conn = conn
	c.channel = channel
	c.deliveries = nil
	c.generation++
	c.isConnected = true
	generation := c.generation
	c.mu.Unlock()

	go c.watchClose(closeChan, generation)

	c.logger.Info("RabbitMQ client initialized",
		slog.String("exchange", c.config.ExchangeName),
		slog.String("queue", c.config.QueueName),
		slog.Uint64("generation", generation),
	)

	return nil
}

// reconnect opens a new connection unless another caller already did
func (c *Client) reconnect(ctx context.Context) error {
	c.reconnectMu.Lock()
	defer c.reconnectMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrNotConnected
	}

	if c.IsConnected() {
		return nil
	}

	c.logger.Warn("RabbitMQ connection lost, reconnecting")

	if err := c.connect(ctx); err != nil {
		// Keep a dead broker from turning the receive loop into a busy loop
		_ = sleepContext(ctx, c.config.RetryInterval)
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// setup declares exchange, queue, and bindings
func (c *Client) setup(channel *amqp.Channel) error {
	// Declare exchange
	err := channel.ExchangeDeclare(
		c.config.ExchangeName,       // name
		c.config.ExchangeType,       // type
		c.config.ExchangeDurable,    // durable
		c.config.ExchangeAutoDelete, // auto-deleted
		false,                       // internal
		false,                       // no-wait
		nil,                         // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	// Declare queue
	_, err = channel.QueueDeclare(
		c.config.QueueName,       // name
		c.config.QueueDurable,    // durable
		c.config.QueueAutoDelete, // auto-delete
		c.config.QueueExclusive,  // exclusive
		false,                    // no-wait
		nil,                      // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	// Bind queue to exchange
	err = channel.QueueBind(
		c.config.QueueName,    // queue name
		c.config.RoutingKey,   // routing key
		c.config.ExchangeName, // exchange
		false,                 // no-wait
		nil,                   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// consume returns the delivery stream of the current channel, starting a
// consumer with a prefetch of one on first use
func (c *Client) consume(ctx context.Context) (<-chan amqp.Delivery, uint64, error) {
	if !c.IsConnected() {
		if err := c.reconnect(ctx); err != nil {
			return nil, 0, err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel == nil {
		return nil, 0, ErrNotConnected
	}

	if c.deliveries == nil {
		if err := c.channel.Qos(1, 0, false); err != nil {
			return nil, 0, fmt.Errorf("failed to set prefetch: %w", err)
		}

		deliveries, err := c.channel.Consume(
			c.config.QueueName,   // queue
			c.config.ConsumerTag, // consumer
			false,                // auto-ack
			false,                // exclusive
			false,                // no-local
			false,                // no-wait
			nil,                  // args
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to start consumer: %w", err)
		}
		c.deliveries = deliveries
	}

	return c.deliveries, c.generation, nil
}

// Receive waits up to the poll interval for one delivery.
// It returns nil, nil when none arrives in time. The delivery is requeued
// if Delete is not called within the visibility timeout.
func (c *Client) Receive(ctx context.Context) (*domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	deliveries, generation, err := c.consume(ctx)
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.config.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case <-timer.C:
		return nil, nil

	case delivery, ok := <-deliveries:
		if !ok {
			c.markDisconnected(generation)
			return nil, fmt.Errorf("%w: delivery channel closed", ErrNotConnected)
		}

		c.track(generation, delivery.DeliveryTag)

		c.logger.Debug("Message received from RabbitMQ",
			slog.Uint64("delivery_tag", delivery.DeliveryTag),
			slog.Bool("redelivered", delivery.Redelivered),
		)

		return &domain.Message{
			Handle: formatHandle(generation, delivery.DeliveryTag),
			Body:   delivery.Body,
		}, nil
	}
}

// Delete acknowledges the delivery identified by handle
func (c *Client) Delete(ctx context.Context, handle string) error {
	generation, tag, err := parseHandle(handle)
	if err != nil {
		return err
	}

	channel, ok := c.untrack(generation, tag)
	if !ok {
		return ErrDeliveryExpired
	}

	if err := channel.Ack(tag, false); err != nil {
		return fmt.Errorf("failed to ack delivery %d: %w", tag, err)
	}
	return nil
}

// track starts the visibility timer of a delivery on the current channel
func (c *Client) track(generation, tag uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}

	c.inFlight[tag] = &inFlight{
		channel: c.channel,
		timer: time.AfterFunc(c.config.VisibilityTimeout, func() {
			c.expire(generation, tag)
		}),
	}
}

// expire requeues a delivery whose visibility timeout elapsed
func (c *Client) expire(generation, tag uint64) {
	channel, ok := c.untrack(generation, tag)
	if !ok {
		return
	}

	if err := channel.Nack(tag, false, true); err != nil {
		c.logger.Error("Failed to requeue expired delivery",
			slog.Uint64("delivery_tag", tag),
			slog.Any("error", err),
		)
		return
	}
	c.logger.Warn("Delivery requeued after visibility timeout",
		slog.Uint64("delivery_tag", tag),
	)
}

// untrack stops the visibility timer and returns the channel of the delivery
// when it is still held by this client
func (c *Client) untrack(generation, tag uint64) (*amqp.Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return nil, false
	}

	d, ok := c.inFlight[tag]
	if !ok {
		return nil, false
	}
	delete(c.inFlight, tag)
	d.timer.Stop()
	return d.channel, true
}

// forgetInFlight drops every tracked delivery. Callers hold mu.
func (c *Client) forgetInFlight() {
	for tag, d := range c.inFlight {
		d.timer.Stop()
		delete(c.inFlight, tag)
	}
}

// Publish publishes a message to RabbitMQ with retry logic and exponential backoff
func (c *Client) Publish(ctx context.Context, body []byte, contentType string) error {
	maxRetries := c.config.PublishRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	baseDelay := c.config.PublishRetryDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := c.publish(ctx, body, contentType)
		if err == nil {
			c.logger.Debug("Message published to RabbitMQ",
				slog.Int("attempt", attempt+1),
				slog.Int("body_size", len(body)),
				slog.String("content_type", contentType),
			)
			return nil
		}

		lastErr = err

		if attempt < maxRetries {
			backoffDelay := publishBackoff(baseDelay, c.config.PublishBackoffMult, attempt)
			c.logger.Warn("Failed to publish message to RabbitMQ, retrying...",
				slog.Int("attempt", attempt+1),
				slog.Int("max_retries", maxRetries),
				slog.Duration("retry_after", backoffDelay),
				slog.Any("error", err),
			)

			if err := sleepContext(ctx, backoffDelay); err != nil {
				return fmt.Errorf("failed to publish message: %w", err)
			}
		}
	}

	c.logger.Error("Failed to publish message to RabbitMQ after all retries",
		slog.Int("attempts", maxRetries+1),
		slog.Any("error", lastErr),
	)
	return fmt.Errorf("failed to publish message after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) publish(ctx context.Context, body []byte, contentType string) error {
	if !c.IsConnected() {
		if err := c.reconnect(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	return channel.PublishWithContext(
		ctx,
		c.config.ExchangeName, // exchange
		c.config.RoutingKey,   // routing key
		false,                 // mandatory
		false,                 // immediate
		amqp.Publishing{
			ContentType:  contentType,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
}

// publishBackoff returns base * mult^attempt
func publishBackoff(base time.Duration, mult float64, attempt int) time.Duration {
	if mult <= 0 {
		mult = 2.0
	}

	delay := float64(base)
	for i := 0; i < attempt; i++ {
		delay *= mult
	}
	return time.Duration(delay)
}

// Close closes the RabbitMQ connection. A closed client does not reconnect.
func (c *Client) Close() error {
	c.logger.Info("Closing RabbitMQ connection")

	c.mu.Lock()
	c.closed = true
	c.isConnected = false
	c.forgetInFlight()
	channel, conn := c.channel, c.conn
	c.mu.Unlock()

	if channel != nil {
		if err := channel.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ channel",
				slog.Any("error", err),
			)
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			c.logger.Error("Failed to close RabbitMQ connection",
				slog.Any("error", err),
			)
			return err
		}
	}

	c.logger.Info("RabbitMQ connection closed successfully")
	return nil
}

// IsConnected returns the connection status
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isConnected && c.conn != nil && !c.conn.IsClosed()
}

// markDisconnected drops the channel of generation so the next call reconnects
func (c *Client) markDisconnected(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	c.isConnected = false
	c.deliveries = nil
	c.forgetInFlight()
}

// watchClose marks the client disconnected when the broker closes the channel.
// A graceful Close closes ch without an error.
func (c *Client) watchClose(ch <-chan *amqp.Error, generation uint64) {
	amqpErr, ok := <-ch
	if !ok {
		return
	}

	c.markDisconnected(generation)

	c.logger.Error("RabbitMQ channel closed by broker",
		slog.Any("error", amqpErr),
		slog.Uint64("generation", generation),
	)
}

// formatHandle ties a delivery tag to the channel generation it belongs to,
// since tags restart at one on every channel
func formatHandle(generation, tag uint64) string {
	return strconv.FormatUint(generation, 10) + "." + strconv.FormatUint(tag, 10)
}

func parseHandle(handle string) (uint64, uint64, error) {
	gen, tag, ok := strings.Cut(handle, ".")
	if !ok {
		return 0, 0, fmt.Errorf("invalid delivery handle %q", handle)
	}

	generation, err := strconv.ParseUint(gen, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delivery handle %q: %w", handle, err)
	}
	deliveryTag, err := strconv.ParseUint(tag, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delivery handle %q: %w", handle, err)
	}
	return generation, deliveryTag, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

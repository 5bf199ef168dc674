package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/cuongbtq/thumbnailer/shared/awsconfig"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Queue backends
const (
	QueueBackendSQS      = "sqs"
	QueueBackendRabbitMQ = "rabbitmq"
	QueueBackendRedis    = "redis"
)

// Storage backends
const (
	StorageBackendS3    = "s3"
	StorageBackendMinio = "minio"
	StorageBackendLocal = "local"
)

// Decode failure policies
const (
	DecodePolicyFatal = "fatal"
	DecodePolicySkip  = "skip"
)

// Queue polling defaults
const (
	// DefaultSQSWaitTime is the SQS long poll duration when wait_time is unset
	DefaultSQSWaitTime = 20 * time.Second
	// DefaultVisibilityTimeout is how long a RabbitMQ delivery stays hidden
	DefaultVisibilityTimeout = 60 * time.Second
	// DefaultPollInterval bounds one RabbitMQ receive
	DefaultPollInterval = 5 * time.Second
)

// Config represents the complete application configuration
type Config struct {
	App      AppConfig      `yaml:"app"`
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Storage  StorageConfig  `yaml:"storage"`
	Worker   WorkerConfig   `yaml:"worker"`
	Sentry   SentryConfig   `yaml:"sentry"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// DatabaseConfig holds PostgreSQL connection configuration for the rendition ledger
type DatabaseConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

// QueueConfig selects the job queue backend
type QueueConfig struct {
	Backend  string         `yaml:"backend"`
	SQS      SQSConfig      `yaml:"sqs"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Redis    RedisConfig    `yaml:"redis"`
}

// AWSConfig holds credentials and endpoint shared by AWS clients
type AWSConfig struct {
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

// SDKConfig converts the section to the shared AWS loader settings
func (c AWSConfig) SDKConfig() awsconfig.Config {
	return awsconfig.Config{
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}
}

// SQSConfig holds SQS queue configuration
type SQSConfig struct {
	AWS               AWSConfig     `yaml:"aws"`
	QueueURL          string        `yaml:"queue_url"`
	QueueName         string        `yaml:"queue_name"`
	WaitTime          time.Duration `yaml:"wait_time"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

// RabbitMQConfig holds RabbitMQ connection and exchange/queue configuration
type RabbitMQConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      RabbitQueue      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
	Consumer   ConsumerConfig   `yaml:"consumer"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// RabbitQueue holds RabbitMQ queue configuration
type RabbitQueue struct {
	Name       string `yaml:"name"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
	Exclusive  bool   `yaml:"exclusive"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	Heartbeat         time.Duration `yaml:"heartbeat"`
	ConnectionTimeout time.Duration `yaml:"connection_timeout"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// ConsumerConfig holds RabbitMQ consumer settings
type ConsumerConfig struct {
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
	PollInterval      time.Duration `yaml:"poll_interval"`
}

// RedisConfig holds Redis Streams queue configuration
type RedisConfig struct {
	Addr              string        `yaml:"addr"`
	Password          string        `yaml:"password"`
	DB                int           `yaml:"db"`
	Stream            string        `yaml:"stream"`
	Group             string        `yaml:"group"`
	Consumer          string        `yaml:"consumer"`
	MaxLen            int64         `yaml:"max_len"`
	BlockTimeout      time.Duration `yaml:"block_timeout"`
	VisibilityTimeout time.Duration `yaml:"visibility_timeout"`
}

// StorageConfig selects the object storage backend
type StorageConfig struct {
	Backend string       `yaml:"backend"`
	S3      S3Config     `yaml:"s3"`
	Minio   MinioConfig  `yaml:"minio"`
	Local   LocalStorage `yaml:"local"`
}

// S3Config holds S3 storage configuration
type S3Config struct {
	AWS          AWSConfig `yaml:"aws"`
	Bucket       string    `yaml:"bucket"`
	ACL          string    `yaml:"acl"`
	StorageClass string    `yaml:"storage_class"`
	UsePathStyle bool      `yaml:"use_path_style"`
}

// MinioConfig holds MinIO storage configuration
type MinioConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// LocalStorage holds local directory storage configuration
type LocalStorage struct {
	Root string `yaml:"root"`
}

// WorkerConfig holds worker service configuration
type WorkerConfig struct {
	ScratchDir          string        `yaml:"scratch_dir"`
	ReceiveErrorBackoff time.Duration `yaml:"receive_error_backoff"`
	DecodeFailurePolicy string        `yaml:"decode_failure_policy"`
	ShutdownTimeout     time.Duration `yaml:"shutdown_timeout"`
	JPEGQuality         int           `yaml:"jpeg_quality"`
}

// SentryConfig holds error reporting configuration
type SentryConfig struct {
	DSN              string  `yaml:"dsn"`
	Environment      string  `yaml:"environment"`
	TracesSampleRate float64 `yaml:"traces_sample_rate"`
}

// Load reads and parses the configuration file.
// ${VAR} references are expanded from the environment before parsing.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.Queue.Backend == "" {
		c.Queue.Backend = QueueBackendSQS
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageBackendS3
	}
	if c.Queue.SQS.WaitTime == 0 {
		c.Queue.SQS.WaitTime = DefaultSQSWaitTime
	}

	rabbit := &c.Queue.RabbitMQ
	if rabbit.Connection.RetryAttempts == 0 {
		rabbit.Connection.RetryAttempts = 3
	}
	if rabbit.Connection.RetryInterval == 0 {
		rabbit.Connection.RetryInterval = 2 * time.Second
	}
	if rabbit.Consumer.VisibilityTimeout == 0 {
		rabbit.Consumer.VisibilityTimeout = DefaultVisibilityTimeout
	}
	if rabbit.Consumer.PollInterval == 0 {
		rabbit.Consumer.PollInterval = DefaultPollInterval
	}
	if c.Worker.DecodeFailurePolicy == "" {
		c.Worker.DecodeFailurePolicy = DecodePolicyFatal
	}
	if c.Worker.ShutdownTimeout == 0 {
		c.Worker.ShutdownTimeout = 30 * time.Second
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Sentry.Environment == "" {
		c.Sentry.Environment = c.App.Environment
	}
}

// ValidateAPIConfig checks the settings used by the api service
func (c *Config) ValidateAPIConfig() error {
	if c.Server.Port < MinPort || c.Server.Port > MaxPort {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	return c.validateQueue()
}

// ValidateWorkerConfig checks the settings used by the worker service
func (c *Config) ValidateWorkerConfig() error {
	if err := c.validateQueue(); err != nil {
		return err
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if c.Worker.ReceiveErrorBackoff < 0 {
		return errors.New("worker receive_error_backoff must not be negative")
	}

	if c.Worker.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}

	if c.Worker.JPEGQuality < 0 || c.Worker.JPEGQuality > 100 {
		return fmt.Errorf("invalid worker jpeg_quality: %d (must be between 0 and 100)", c.Worker.JPEGQuality)
	}

	switch c.Worker.DecodeFailurePolicy {
	case DecodePolicyFatal, DecodePolicySkip:
	default:
		return fmt.Errorf("invalid worker decode_failure_policy: %q (must be %q or %q)",
			c.Worker.DecodeFailurePolicy, DecodePolicyFatal, DecodePolicySkip)
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if !c.Database.Enabled {
		return nil
	}

	if c.Database.Host == "" {
		return errors.New("database host is required")
	}

	if c.Database.Port < MinPort || c.Database.Port > MaxPort {
		return fmt.Errorf("invalid database port: %d (must be between %d and %d)", c.Database.Port, MinPort, MaxPort)
	}

	if c.Database.Database == "" {
		return errors.New("database name is required")
	}

	return nil
}

func (c *Config) validateQueue() error {
	switch c.Queue.Backend {
	case QueueBackendSQS:
		if c.Queue.SQS.QueueURL == "" && c.Queue.SQS.QueueName == "" {
			return errors.New("sqs queue_url or queue_name is required")
		}
		if c.Queue.SQS.WaitTime < 0 {
			return errors.New("sqs wait_time must not be negative")
		}

	case QueueBackendRabbitMQ:
		r := c.Queue.RabbitMQ
		if r.Host == "" {
			return errors.New("rabbitmq host is required")
		}
		if r.Port < MinPort || r.Port > MaxPort {
			return fmt.Errorf("invalid rabbitmq port: %d (must be between %d and %d)", r.Port, MinPort, MaxPort)
		}
		if r.Exchange.Name == "" {
			return errors.New("rabbitmq exchange name is required")
		}
		if r.Queue.Name == "" {
			return errors.New("rabbitmq queue name is required")
		}
		if r.Consumer.VisibilityTimeout <= 0 {
			return errors.New("rabbitmq consumer visibility_timeout must be positive")
		}
		if r.Consumer.PollInterval <= 0 {
			return errors.New("rabbitmq consumer poll_interval must be positive")
		}

	case QueueBackendRedis:
		r := c.Queue.Redis
		if r.Addr == "" {
			return errors.New("redis addr is required")
		}
		if r.Stream == "" || r.Group == "" {
			return errors.New("redis stream and group are required")
		}

	default:
		return fmt.Errorf("unknown queue backend: %q", c.Queue.Backend)
	}

	return nil
}

func (c *Config) validateStorage() error {
	switch c.Storage.Backend {
	case StorageBackendS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("s3 bucket is required")
		}

	case StorageBackendMinio:
		if c.Storage.Minio.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if c.Storage.Minio.Bucket == "" {
			return errors.New("minio bucket is required")
		}

	case StorageBackendLocal:
		if c.Storage.Local.Root == "" {
			return errors.New("local storage root is required")
		}

	default:
		return fmt.Errorf("unknown storage backend: %q", c.Storage.Backend)
	}

	return nil
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("THUMBNAILER_TEST_DB_PASSWORD", "s3cret")

	tests := []struct {
		name      string
		filePath  string
		wantErr   bool
		errString string
	}{
		{
			name:     "valid config file",
			filePath: "testdata/valid_config.yaml",
			wantErr:  false,
		},
		{
			name:      "non-existent file",
			filePath:  "testdata/nonexistent.yaml",
			wantErr:   true,
			errString: "failed to read config file",
		},
		{
			name:      "malformed yaml",
			filePath:  "testdata/malformed.yaml",
			wantErr:   true,
			errString: "failed to parse config file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load(tt.filePath)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "thumbnail-worker", cfg.App.Name)
				assert.Equal(t, "s3cret", cfg.Database.Password)
				assert.Equal(t, QueueBackendSQS, cfg.Queue.Backend)
				assert.Equal(t, "thumbnail-jobs", cfg.Queue.SQS.QueueName)
				assert.Equal(t, 20*time.Second, cfg.Queue.SQS.WaitTime)
				assert.Equal(t, "thumbnail_queue", cfg.Queue.RabbitMQ.Queue.Name)
				assert.Equal(t, 60*time.Second, cfg.Queue.RabbitMQ.Consumer.VisibilityTimeout)
				assert.Equal(t, "thumbnails", cfg.Storage.S3.Bucket)
				assert.Equal(t, "public-read", cfg.Storage.S3.ACL)
				assert.Equal(t, time.Duration(0), cfg.Worker.ReceiveErrorBackoff)
				assert.Equal(t, DecodePolicyFatal, cfg.Worker.DecodeFailurePolicy)
				assert.Equal(t, "development", cfg.Sentry.Environment)
			}
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("testdata/minimal_config.yaml")
	require.NoError(t, err)

	assert.Equal(t, QueueBackendSQS, cfg.Queue.Backend)
	assert.Equal(t, StorageBackendS3, cfg.Storage.Backend)
	assert.Equal(t, DecodePolicyFatal, cfg.Worker.DecodeFailurePolicy)
	assert.Equal(t, 30*time.Second, cfg.Worker.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.False(t, cfg.Database.Enabled)

	// Queue polling must never default to a busy loop
	assert.Equal(t, DefaultSQSWaitTime, cfg.Queue.SQS.WaitTime)
	assert.Equal(t, 3, cfg.Queue.RabbitMQ.Connection.RetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.Queue.RabbitMQ.Connection.RetryInterval)
	assert.Equal(t, DefaultVisibilityTimeout, cfg.Queue.RabbitMQ.Consumer.VisibilityTimeout)
	assert.Equal(t, DefaultPollInterval, cfg.Queue.RabbitMQ.Consumer.PollInterval)

	require.NoError(t, cfg.ValidateAPIConfig())
	require.NoError(t, cfg.ValidateWorkerConfig())
}

func validConfig() *Config {
	return &Config{
		Server: ServerConfig{Port: 8080},
		Database: DatabaseConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     5432,
			Database: "thumbnails_db",
		},
		Queue: QueueConfig{
			Backend: QueueBackendSQS,
			SQS:     SQSConfig{QueueName: "thumbnail-jobs"},
		},
		Storage: StorageConfig{
			Backend: StorageBackendS3,
			S3:      S3Config{Bucket: "thumbnails"},
		},
		Worker: WorkerConfig{
			DecodeFailurePolicy: DecodePolicyFatal,
			ShutdownTimeout:     30 * time.Second,
			JPEGQuality:         85,
		},
	}
}

func TestConfig_ValidateAPIConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:      "invalid server port - too low",
			mutate:    func(c *Config) { c.Server.Port = 0 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "invalid server port - too high",
			mutate:    func(c *Config) { c.Server.Port = 70000 },
			wantErr:   true,
			errString: "invalid server port",
		},
		{
			name:      "empty database host",
			mutate:    func(c *Config) { c.Database.Host = "" },
			wantErr:   true,
			errString: "database host is required",
		},
		{
			name:      "empty database name",
			mutate:    func(c *Config) { c.Database.Database = "" },
			wantErr:   true,
			errString: "database name is required",
		},
		{
			name: "disabled database is not checked",
			mutate: func(c *Config) {
				c.Database = DatabaseConfig{Enabled: false}
			},
		},
		{
			name:      "unknown queue backend",
			mutate:    func(c *Config) { c.Queue.Backend = "kafka" },
			wantErr:   true,
			errString: "unknown queue backend",
		},
		{
			name:      "sqs without queue",
			mutate:    func(c *Config) { c.Queue.SQS = SQSConfig{} },
			wantErr:   true,
			errString: "sqs queue_url or queue_name is required",
		},
		{
			name: "empty rabbitmq host",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRabbitMQ
				c.Queue.RabbitMQ = RabbitMQConfig{Port: 5672}
			},
			wantErr:   true,
			errString: "rabbitmq host is required",
		},
		{
			name: "empty rabbitmq exchange name",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRabbitMQ
				c.Queue.RabbitMQ = RabbitMQConfig{Host: "localhost", Port: 5672}
			},
			wantErr:   true,
			errString: "rabbitmq exchange name is required",
		},
		{
			name: "empty rabbitmq queue name",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRabbitMQ
				c.Queue.RabbitMQ = RabbitMQConfig{
					Host:     "localhost",
					Port:     5672,
					Exchange: ExchangeConfig{Name: "thumbnail_exchange"},
				}
			},
			wantErr:   true,
			errString: "rabbitmq queue name is required",
		},
		{
			name: "rabbitmq without visibility timeout",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRabbitMQ
				c.Queue.RabbitMQ = RabbitMQConfig{
					Host:     "localhost",
					Port:     5672,
					Exchange: ExchangeConfig{Name: "thumbnail_exchange"},
					Queue:    RabbitQueue{Name: "thumbnail_queue"},
					Consumer: ConsumerConfig{PollInterval: time.Second},
				}
			},
			wantErr:   true,
			errString: "rabbitmq consumer visibility_timeout must be positive",
		},
		{
			name: "rabbitmq without poll interval",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRabbitMQ
				c.Queue.RabbitMQ = RabbitMQConfig{
					Host:     "localhost",
					Port:     5672,
					Exchange: ExchangeConfig{Name: "thumbnail_exchange"},
					Queue:    RabbitQueue{Name: "thumbnail_queue"},
					Consumer: ConsumerConfig{VisibilityTimeout: time.Minute},
				}
			},
			wantErr:   true,
			errString: "rabbitmq consumer poll_interval must be positive",
		},
		{
			name: "rabbitmq complete",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRabbitMQ
				c.Queue.RabbitMQ = RabbitMQConfig{
					Host:     "localhost",
					Port:     5672,
					Exchange: ExchangeConfig{Name: "thumbnail_exchange"},
					Queue:    RabbitQueue{Name: "thumbnail_queue"},
					Consumer: ConsumerConfig{VisibilityTimeout: time.Minute, PollInterval: time.Second},
				}
			},
		},
		{
			name: "redis without group",
			mutate: func(c *Config) {
				c.Queue.Backend = QueueBackendRedis
				c.Queue.Redis = RedisConfig{Addr: "localhost:6379", Stream: "jobs"}
			},
			wantErr:   true,
			errString: "redis stream and group are required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateAPIConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateWorkerConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(c *Config)
		wantErr   bool
		errString string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name:   "server port is not required",
			mutate: func(c *Config) { c.Server.Port = 0 },
		},
		{
			name:      "unknown storage backend",
			mutate:    func(c *Config) { c.Storage.Backend = "gdrive" },
			wantErr:   true,
			errString: "unknown storage backend",
		},
		{
			name:      "s3 without bucket",
			mutate:    func(c *Config) { c.Storage.S3.Bucket = "" },
			wantErr:   true,
			errString: "s3 bucket is required",
		},
		{
			name: "minio without endpoint",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendMinio
				c.Storage.Minio = MinioConfig{Bucket: "thumbs"}
			},
			wantErr:   true,
			errString: "minio endpoint is required",
		},
		{
			name: "local without root",
			mutate: func(c *Config) {
				c.Storage.Backend = StorageBackendLocal
			},
			wantErr:   true,
			errString: "local storage root is required",
		},
		{
			name:      "negative receive backoff",
			mutate:    func(c *Config) { c.Worker.ReceiveErrorBackoff = -time.Second },
			wantErr:   true,
			errString: "receive_error_backoff",
		},
		{
			name:      "zero shutdown timeout",
			mutate:    func(c *Config) { c.Worker.ShutdownTimeout = 0 },
			wantErr:   true,
			errString: "shutdown_timeout",
		},
		{
			name:      "jpeg quality out of range",
			mutate:    func(c *Config) { c.Worker.JPEGQuality = 101 },
			wantErr:   true,
			errString: "invalid worker jpeg_quality",
		},
		{
			name:      "unknown decode policy",
			mutate:    func(c *Config) { c.Worker.DecodeFailurePolicy = "retry" },
			wantErr:   true,
			errString: "invalid worker decode_failure_policy",
		},
		{
			name:   "skip decode policy",
			mutate: func(c *Config) { c.Worker.DecodeFailurePolicy = DecodePolicySkip },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.ValidateWorkerConfig()

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errString)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestLoad_ValidateIntegration(t *testing.T) {
	t.Run("load and validate valid config", func(t *testing.T) {
		cfg, err := Load("testdata/valid_config.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		require.NoError(t, cfg.ValidateAPIConfig())
		require.NoError(t, cfg.ValidateWorkerConfig())
	})

	t.Run("load config with invalid port", func(t *testing.T) {
		cfg, err := Load("testdata/invalid_port.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateAPIConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid server port")
	})

	t.Run("load config with missing database", func(t *testing.T) {
		cfg, err := Load("testdata/missing_database.yaml")
		require.NoError(t, err)
		require.NotNil(t, cfg)

		err = cfg.ValidateWorkerConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database name is required")
	})
}

func TestPortConstants(t *testing.T) {
	assert.Equal(t, 1, MinPort)
	assert.Equal(t, 65535, MaxPort)
}

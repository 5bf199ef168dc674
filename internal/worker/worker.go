package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/getsentry/sentry-go"
)

// ErrorReporter forwards job failures to an error tracker
type ErrorReporter interface {
	CaptureException(exception error) *sentry.EventID
}

// RenditionRecorder stores the renditions of a completed job
type RenditionRecorder interface {
	RecordRenditions(ctx context.Context, original string, results []domain.RenditionResult) error
}

// Config holds worker configuration
type Config struct {
	Logger              *slog.Logger
	Queue               Queue
	Pipeline            *Pipeline
	Recorder            RenditionRecorder // optional
	Reporter            ErrorReporter     // defaults to the current sentry hub
	WorkerID            string
	ReceiveErrorBackoff time.Duration
	DecodeFailurePolicy string
}

// Worker consumes thumbnail jobs from a queue one at a time
type Worker struct {
	logger              *slog.Logger
	queue               Queue
	pipeline            *Pipeline
	recorder            RenditionRecorder
	reporter            ErrorReporter
	workerID            string
	receiveErrorBackoff time.Duration
	decodeFailurePolicy string
	wg                  sync.WaitGroup
	stopChan            chan struct{}
	stopOnce            sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	reporter := cfg.Reporter
	if reporter == nil {
		reporter = sentry.CurrentHub()
	}

	policy := cfg.DecodeFailurePolicy
	if policy == "" {
		policy = domain.DecodePolicyFatal
	}

	return &Worker{
		logger:              cfg.Logger.With(slog.String("worker_id", cfg.WorkerID)),
		queue:               cfg.Queue,
		pipeline:            cfg.Pipeline,
		recorder:            cfg.Recorder,
		reporter:            reporter,
		workerID:            cfg.WorkerID,
		receiveErrorBackoff: cfg.ReceiveErrorBackoff,
		decodeFailurePolicy: policy,
		stopChan:            make(chan struct{}),
	}
}

// Start runs the consumer loop until ctx is canceled, Stop is called,
// or a message cannot be decoded under the fatal decode policy.
func (w *Worker) Start(ctx context.Context) error {
	w.wg.Add(1)
	defer w.wg.Done()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.logger.Info("Starting worker",
		slog.Duration("receive_error_backoff", w.receiveErrorBackoff),
		slog.String("decode_failure_policy", w.decodeFailurePolicy),
	)

	return w.consume(ctx)
}

// Stop gracefully stops the worker, waiting for the in-flight job to resolve
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

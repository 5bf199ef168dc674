package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
)

// Queue is the message source of the worker.
// Receive returns a nil message and a nil error when no message is available.
type Queue interface {
	Receive(ctx context.Context) (*domain.Message, error)
	Delete(ctx context.Context, handle string) error
}

// consume receives and processes messages strictly one at a time
func (w *Worker) consume(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Consumer stopped - context canceled")
			return nil
		default:
		}

		if err := w.processNext(ctx); err != nil {
			w.logger.Error("Consumer stopped on fatal error",
				slog.Any("error", err),
			)
			return err
		}
	}
}

// processNext performs one receive and, when a message arrives, resolves it
// completely before returning. Only fatal errors are returned.
func (w *Worker) processNext(ctx context.Context) error {
	w.logger.Debug("Waiting for message")

	msg, err := w.queue.Receive(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		w.logger.Error("Failed to receive message",
			slog.Any("error", fmt.Errorf("%w: %v", domain.ErrTransport, err)),
		)
		w.waitAfterReceiveError(ctx)
		return nil
	}

	if msg == nil {
		return nil
	}

	// The in-flight job is resolved even if shutdown starts meanwhile
	return w.handleMessage(context.WithoutCancel(ctx), msg)
}

// ack deletes the message of a successful job; failures are only logged
func (w *Worker) ack(ctx context.Context, msg *domain.Message) {
	if err := w.queue.Delete(ctx, msg.Handle); err != nil {
		w.logger.Error("Failed to delete message",
			slog.String("handle", msg.Handle),
			slog.Any("error", fmt.Errorf("%w: %v", domain.ErrAck, err)),
		)
		return
	}

	w.logger.Info("Deleted thumbnail job",
		slog.String("handle", msg.Handle),
	)
}

func (w *Worker) waitAfterReceiveError(ctx context.Context) {
	if w.receiveErrorBackoff <= 0 {
		return
	}

	timer := time.NewTimer(w.receiveErrorBackoff)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

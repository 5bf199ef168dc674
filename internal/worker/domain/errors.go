package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport is returned when the queue cannot be reached during receive
	ErrTransport = errors.New("queue transport error")

	// ErrAck is returned when a message could not be deleted after a successful job
	ErrAck = errors.New("failed to acknowledge message")

	// ErrInvalidJob is returned when a job is structurally unusable
	ErrInvalidJob = errors.New("invalid job")
)

// DecodeError is returned when a message body is neither JSON nor base64-wrapped JSON
type DecodeError struct {
	Stage DecodeStage
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message (%s): %v", e.Stage, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// DownloadError is returned when the original image could not be fetched
type DownloadError struct {
	Original string
	Err      error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %q: %v", e.Original, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// RenditionError tags a failed rendition with the stage that failed and its destination key
type RenditionError struct {
	Stage Stage
	Key   string
	Err   error
}

func (e *RenditionError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Stage, e.Key, e.Err)
}

func (e *RenditionError) Unwrap() error {
	return e.Err
}

// JobError aggregates every failed rendition of a job
type JobError struct {
	Original string
	Failures []*RenditionError
}

func (e *JobError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("job %q: %d rendition(s) failed: %s", e.Original, len(e.Failures), strings.Join(msgs, "; "))
}

func (e *JobError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// NewDecodeError creates a new decode error
func NewDecodeError(stage DecodeStage, err error) error {
	return &DecodeError{Stage: stage, Err: err}
}

// IsDecodeError reports whether err carries a DecodeError
func IsDecodeError(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}

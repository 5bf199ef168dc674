package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/thumbnailer/internal/worker/domain"
	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/require"
)

var (
	errBoom         = errors.New("boom")
	errNotFound     = errors.New("object not found")
	errUploadFailed = errors.New("upload failed")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStore keeps originals and uploads in memory and writes scratch files into dir
type fakeStore struct {
	mu        sync.Mutex
	dir       string
	originals map[string]string
	uploaded  map[string]string
	failKeys  map[string]bool
	downloads []string
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	return &fakeStore{
		dir:       t.TempDir(),
		originals: map[string]string{},
		uploaded:  map[string]string{},
		failKeys:  map[string]bool{},
	}
}

func (s *fakeStore) Download(_ context.Context, remoteKey string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	content, ok := s.originals[remoteKey]
	if !ok {
		return "", errNotFound
	}

	f, err := os.CreateTemp(s.dir, "original-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(content); err != nil {
		return "", err
	}
	s.downloads = append(s.downloads, remoteKey)
	return f.Name(), nil
}

func (s *fakeStore) Upload(_ context.Context, localPath, destination string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failKeys[destination] {
		return errUploadFailed
	}

	data, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	s.uploaded[destination] = string(data)
	return nil
}

func (s *fakeStore) uploadedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.uploaded))
	for k := range s.uploaded {
		keys = append(keys, k)
	}
	return keys
}

// fakeRenderer writes a small marker file per rendition and fails chosen suffixes
type fakeRenderer struct {
	mu          sync.Mutex
	dir         string
	failSuffix  map[string]bool
	calls       int
	renderedFor []string
}

func newFakeRenderer(t *testing.T) *fakeRenderer {
	t.Helper()
	return &fakeRenderer{
		dir:        t.TempDir(),
		failSuffix: map[string]bool{},
	}
}

func (r *fakeRenderer) Render(_ context.Context, d domain.ThumbnailDescription, sourcePath string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.failSuffix[d.Suffix] {
		return "", errBoom
	}

	if _, err := os.Stat(sourcePath); err != nil {
		return "", err
	}

	f, err := os.CreateTemp(r.dir, "rendition-*")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString("thumb:" + d.Suffix); err != nil {
		return "", err
	}
	r.renderedFor = append(r.renderedFor, d.Suffix)
	return f.Name(), nil
}

func (r *fakeRenderer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type receiveResult struct {
	msg *domain.Message
	err error
}

// fakeQueue replays scripted receive results, then calls onEmpty once
type fakeQueue struct {
	mu        sync.Mutex
	results   []receiveResult
	deleted   []string
	deleteErr error
	onEmpty   func()
	receives  int
}

func (q *fakeQueue) push(handle string, body []byte) {
	q.results = append(q.results, receiveResult{msg: &domain.Message{Handle: handle, Body: body}})
}

func (q *fakeQueue) Receive(ctx context.Context) (*domain.Message, error) {
	q.mu.Lock()
	q.receives++
	if len(q.results) > 0 {
		next := q.results[0]
		q.results = q.results[1:]
		q.mu.Unlock()
		return next.msg, next.err
	}
	onEmpty := q.onEmpty
	q.onEmpty = nil
	q.mu.Unlock()

	if onEmpty != nil {
		onEmpty()
	}

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Millisecond):
	}
	return nil, nil
}

func (q *fakeQueue) Delete(_ context.Context, handle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.deleted = append(q.deleted, handle)
	return q.deleteErr
}

func (q *fakeQueue) deletedHandles() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.deleted...)
}

type fakeReporter struct {
	mu       sync.Mutex
	captured []error
}

func (r *fakeReporter) CaptureException(exception error) *sentry.EventID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.captured = append(r.captured, exception)
	return nil
}

func (r *fakeReporter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.captured)
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded map[string][]domain.RenditionResult
	err      error
}

func (r *fakeRecorder) RecordRenditions(_ context.Context, original string, results []domain.RenditionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recorded == nil {
		r.recorded = map[string][]domain.RenditionResult{}
	}
	r.recorded[original] = results
	return r.err
}

func requireEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries, "scratch files left in %s", dir)
}

package download

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/kb-newspaper-scraper/internal/archive"
	"github.com/JakeFAU/kb-newspaper-scraper/internal/storage/local"
)

type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

type requestRecorder struct {
	mu  sync.Mutex
	req *http.Request
}

func (r *requestRecorder) record(req *http.Request) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.req = req.Clone(context.Background())
}

func (r *requestRecorder) last() *http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.req
}

type countingLimiter struct {
	calls atomic.Int32
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.calls.Add(1)
	return nil
}

func newStore(t *testing.T) (*local.Store, string) {
	t.Helper()
	root := t.TempDir()
	store, err := local.New(local.Config{BaseDir: root})
	require.NoError(t, err)
	return store, root
}

func TestFetchToPath_SucceedsThenSkips(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	rec := &requestRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		rec.record(r)
		_, _ = w.Write([]byte("jp2-bytes"))
	}))
	defer srv.Close()

	store, root := newStore(t)
	limiter := &countingLimiter{}
	engine := New(Config{UserAgent: "kbscrape-test", Referer: "https://tidningar.kb.se/"}, store,
		WithSleeper(&recordingSleeper{}), WithLimiter(limiter))

	loc := archive.NewImageLocator(srv.URL + "/iiif/bib1_1_1_1_1.jp2")
	first := engine.FetchToPath(context.Background(), loc, filepath.Join("Title", "1900-01-01"))
	require.Equal(t, archive.OutcomeSucceeded, first.Kind, "err: %v", first.Err)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, int64(len("jp2-bytes")), first.Bytes)
	req := rec.last()
	require.NotNil(t, req)
	assert.Equal(t, AcceptHeader, req.Header.Get("Accept"))
	assert.Equal(t, "https://tidningar.kb.se/", req.Header.Get("Referer"))
	assert.Equal(t, "kbscrape-test", req.Header.Get("User-Agent"))

	full := filepath.Join(root, "Title", "1900-01-01", "bib1_1_1_1_1.jp2")
	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "jp2-bytes", string(data))

	second := engine.FetchToPath(context.Background(), loc, filepath.Join("Title", "1900-01-01"))
	assert.Equal(t, archive.OutcomeSkipped, second.Kind)
	assert.Equal(t, 0, second.Attempts)
	assert.Equal(t, int32(1), hits.Load(), "skip must not touch the network")
	assert.Equal(t, int32(1), limiter.calls.Load())

	again, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestFetchToPath_FileWrittenConcurrentlyIsKept(t *testing.T) {
	t.Parallel()

	store, root := newStore(t)
	full := filepath.Join(root, "Title", "1900-01-01", "bib1_1_1_1_1.jp2")

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		// Another run stores the same page while this response is in flight.
		if err := os.MkdirAll(filepath.Dir(full), 0o750); err == nil {
			_ = os.WriteFile(full, []byte("first-writer"), 0o600)
		}
		_, _ = w.Write([]byte("jp2-bytes"))
	}))
	defer srv.Close()

	sleeper := &recordingSleeper{}
	engine := New(Config{}, store, WithSleeper(sleeper))
	out := engine.FetchToPath(context.Background(),
		archive.NewImageLocator(srv.URL+"/bib1_1_1_1_1.jp2"), filepath.Join("Title", "1900-01-01"))

	assert.Equal(t, archive.OutcomeSkipped, out.Kind, "err: %v", out.Err)
	assert.Equal(t, int32(1), hits.Load())
	assert.Empty(t, sleeper.delays)

	data, err := os.ReadFile(full)
	require.NoError(t, err)
	assert.Equal(t, "first-writer", string(data))
}

func TestFetchToPath_RetryBound(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	store, root := newStore(t)
	sleeper := &recordingSleeper{}
	engine := New(Config{MaxAttempts: 3, RetryDelay: 2 * time.Second}, store, WithSleeper(sleeper))

	out := engine.FetchToPath(context.Background(), archive.NewImageLocator(srv.URL+"/bib2.jp2"), "dir")
	require.Equal(t, archive.OutcomeFailedAfterRetries, out.Kind)
	assert.True(t, out.Failed())
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, int32(3), hits.Load())
	assert.Equal(t, []time.Duration{2 * time.Second, 2 * time.Second}, sleeper.delays)

	var fetchErr *archive.FetchError
	require.ErrorAs(t, out.Err, &fetchErr)
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.StatusCode)
	assert.Equal(t, 3, fetchErr.Attempts)

	_, err := os.Stat(filepath.Join(root, "dir", "bib2.jp2"))
	assert.True(t, os.IsNotExist(err))
}

func TestFetchToPath_RecoversOnLaterAttempt(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	sleeper := &recordingSleeper{}
	engine := New(Config{RetryDelay: time.Second}, store, WithSleeper(sleeper))

	out := engine.FetchToPath(context.Background(), archive.NewImageLocator(srv.URL+"/bib3.jp2"), "d")
	require.Equal(t, archive.OutcomeSucceeded, out.Kind)
	assert.Equal(t, 3, out.Attempts)
	assert.Len(t, sleeper.delays, 2)
}

func TestFetchToPath_TransportFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	store, _ := newStore(t)
	engine := New(Config{MaxAttempts: 2}, store, WithSleeper(&recordingSleeper{}))

	out := engine.FetchToPath(context.Background(), archive.NewImageLocator(addr+"/bib4.jp2"), "d")
	require.Equal(t, archive.OutcomeFailedAfterRetries, out.Kind)
	assert.Equal(t, 2, out.Attempts)
	var fetchErr *archive.FetchError
	require.ErrorAs(t, out.Err, &fetchErr)
	assert.Zero(t, fetchErr.StatusCode)
	assert.Error(t, fetchErr.Err)
}

func TestFetchToPath_EmptyFilename(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t)
	engine := New(Config{}, store)

	out := engine.FetchToPath(context.Background(), archive.NewImageLocator("https://data.kb.se/"), "d")
	require.Equal(t, archive.OutcomeFailedAfterRetries, out.Kind)
	assert.Zero(t, out.Attempts)
	assert.True(t, errors.Is(out.Err, ErrEmptyFilename))
}

func TestFetchToPath_NormalizesEscapedAddress(t *testing.T) {
	t.Parallel()

	rec := &requestRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	store, _ := newStore(t)
	engine := New(Config{}, store)

	escaped := archive.ImageLocator{Address: srv.URL + `\/iiif\/bib5_1.jp2`}
	out := engine.FetchToPath(context.Background(), escaped, "d")
	require.Equal(t, archive.OutcomeSucceeded, out.Kind, "err: %v", out.Err)
	assert.Equal(t, "/iiif/bib5_1.jp2", rec.last().URL.Path)
	assert.Equal(t, "bib5_1.jp2", out.Locator.Filename)
}

func TestFetchToPath_CanceledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store, _ := newStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := New(Config{MaxAttempts: 3, RetryDelay: time.Hour}, store)

	out := engine.FetchToPath(ctx, archive.NewImageLocator(srv.URL+"/bib6.jp2"), "d")
	require.Equal(t, archive.OutcomeFailedAfterRetries, out.Kind)
	assert.Equal(t, 1, out.Attempts)
	assert.Zero(t, hits.Load())
}

func TestFetchToPath_EndToEndUnknownIssue(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("page"))
	}))
	defer srv.Close()

	store, root := newStore(t)
	core, logs := observer.New(zapcore.InfoLevel)
	engine := New(Config{}, store, WithLogger(zap.New(core)))

	dir := archive.IssueDir(archive.Issue{})
	out := engine.FetchToPath(context.Background(), archive.NewImageLocator(srv.URL+"/bib1_1_1_1_1.jp2"), dir)
	require.Equal(t, archive.OutcomeSucceeded, out.Kind)

	_, err := os.Stat(filepath.Join(root, "Unknown", "Unknown_Date", "bib1_1_1_1_1.jp2"))
	require.NoError(t, err)

	entries := logs.FilterMessage("image stored").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "succeeded", entries[0].ContextMap()["outcome"])
}

func TestFixedRetryPolicy(t *testing.T) {
	t.Parallel()

	p := NewFixedRetryPolicy(3, time.Second)
	ctx := context.Background()
	transient := errors.New("boom")

	assert.True(t, p.ShouldRetry(ctx, transient, 1))
	assert.True(t, p.ShouldRetry(ctx, transient, 2))
	assert.False(t, p.ShouldRetry(ctx, transient, 3))
	assert.False(t, p.ShouldRetry(ctx, nil, 1))
	assert.Equal(t, time.Second, p.Backoff(1))
	assert.Equal(t, time.Second, p.Backoff(2))

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.False(t, p.ShouldRetry(canceled, context.Canceled, 1))

	assert.Equal(t, 1, NewFixedRetryPolicy(0, -time.Second).MaxAttempts())
	assert.Zero(t, NewFixedRetryPolicy(0, -time.Second).Backoff(1))
}

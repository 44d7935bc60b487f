package downloader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/melbahja/got"
	"igloader/pkg/logger"
	"igloader/pkg/ratelimit"
	"igloader/pkg/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// MockClient is a mock implementation of the Instagram client
type MockClient struct {
	downloadDelay   time.Duration
	downloadError   error
	downloadCounter int32
	inFlight        int32
	maxInFlight     int32
}

func (m *MockClient) DownloadMedia(ctx context.Context, url string) ([]byte, error) {
	atomic.AddInt32(&m.downloadCounter, 1)
	current := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)
	for {
		max := atomic.LoadInt32(&m.maxInFlight)
		if current <= max || atomic.CompareAndSwapInt32(&m.maxInFlight, max, current) {
			break
		}
	}

	if m.downloadDelay > 0 {
		time.Sleep(m.downloadDelay)
	}
	if m.downloadError != nil {
		return nil, m.downloadError
	}
	return []byte("mock photo data from " + url), nil
}

func (m *MockClient) GetDownloadCount() int {
	return int(atomic.LoadInt32(&m.downloadCounter))
}

// MockVideoFetcher writes fixed content to the destination path
type MockVideoFetcher struct {
	mu    sync.Mutex
	dests []string
}

func (m *MockVideoFetcher) FetchToFile(ctx context.Context, url, dest string) (int64, error) {
	m.mu.Lock()
	m.dests = append(m.dests, dest)
	m.mu.Unlock()

	data := []byte("mock video")
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}

func newStore(t *testing.T) (*storage.Manager, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewManager(dir)
	require.NoError(t, err)
	return store, dir
}

func photoJobs(n int) []Job {
	jobs := make([]Job, n)
	for i := range jobs {
		jobs[i] = Job{
			Name: fmt.Sprintf("post_%d.jpg", i+1),
			URL:  fmt.Sprintf("https://example.com/photo%d.jpg", i),
		}
	}
	return jobs
}

func TestWorkerPoolBasicFunctionality(t *testing.T) {
	mockClient := &MockClient{downloadDelay: 5 * time.Millisecond}
	store, dir := newStore(t)

	pool := NewWorkerPool(context.Background(), 3, mockClient, nil, store, ratelimit.Unlimited{}, logger.NewTestLogger())

	jobs := photoJobs(10)
	results := pool.Run(jobs)

	require.Len(t, results, len(jobs))
	for i, result := range results {
		assert.Equal(t, jobs[i], result.Job, "results must come back in job order")
		assert.True(t, result.Written)
		assert.False(t, result.Skipped)
		assert.NoError(t, result.Error)
		assert.Greater(t, result.Size, int64(0))
	}

	assert.Equal(t, len(jobs), mockClient.GetDownloadCount())

	data, err := os.ReadFile(filepath.Join(dir, "post_3.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "mock photo data from https://example.com/photo2.jpg", string(data))
}

func TestWorkerPoolWithErrors(t *testing.T) {
	mockClient := &MockClient{downloadError: errors.New("network error")}
	store, _ := newStore(t)
	log := logger.NewTestLogger()

	pool := NewWorkerPool(context.Background(), 2, mockClient, nil, store, nil, log)
	results := pool.Run(photoJobs(4))

	for _, result := range results {
		assert.False(t, result.Written)
		require.Error(t, result.Error)
		assert.Contains(t, result.Error.Error(), "download failed")
	}
	assert.Equal(t, 0, store.Count())
	assert.Len(t, log.GetMessagesByLevel("ERROR"), 4)
}

func TestWorkerPoolConcurrency(t *testing.T) {
	mockClient := &MockClient{downloadDelay: 30 * time.Millisecond}
	store, _ := newStore(t)

	pool := NewWorkerPool(context.Background(), 3, mockClient, nil, store, nil, logger.NewNopLogger())

	start := time.Now()
	pool.Run(photoJobs(6))
	elapsed := time.Since(start)

	assert.LessOrEqual(t, atomic.LoadInt32(&mockClient.maxInFlight), int32(3))
	assert.Greater(t, atomic.LoadInt32(&mockClient.maxInFlight), int32(1))
	assert.Less(t, elapsed, 6*30*time.Millisecond, "jobs should overlap")
}

func TestWorkerPoolDuplicateDetection(t *testing.T) {
	mockClient := &MockClient{}
	store, _ := newStore(t)

	_, err := store.Save(bytes.NewReader([]byte("existing")), "post_1.jpg")
	require.NoError(t, err)

	pool := NewWorkerPool(context.Background(), 2, mockClient, nil, store, nil, logger.NewNopLogger())
	results := pool.Run(photoJobs(2))

	assert.True(t, results[0].Skipped)
	assert.False(t, results[0].Written)
	assert.True(t, results[1].Written)
	assert.Equal(t, 1, mockClient.GetDownloadCount())
}

func TestWorkerPoolVideos(t *testing.T) {
	mockClient := &MockClient{}
	videos := &MockVideoFetcher{}
	store, dir := newStore(t)

	pool := NewWorkerPool(context.Background(), 2, mockClient, videos, store, ratelimit.PerMinute(100), logger.NewNopLogger())
	results := pool.Run([]Job{
		{Name: "post_1.jpg", URL: "https://example.com/1.jpg"},
		{Name: "post_2.mp4", URL: "https://example.com/2.mp4", IsVideo: true},
	})

	require.Len(t, results, 2)
	assert.True(t, results[1].Written)
	assert.Equal(t, int64(len("mock video")), results[1].Size)
	assert.Equal(t, 1, mockClient.GetDownloadCount())

	require.Len(t, videos.dests, 1)
	assert.Equal(t, dir, filepath.Dir(videos.dests[0]))
	assert.True(t, strings.HasPrefix(filepath.Base(videos.dests[0]), "post_2.mp4."))
	assert.True(t, strings.HasSuffix(videos.dests[0], ".part"))

	_, err := os.Stat(filepath.Join(dir, "post_2.mp4"))
	assert.NoError(t, err)
	_, err = os.Stat(videos.dests[0])
	assert.True(t, os.IsNotExist(err))
}

func TestWorkerPoolVideoFallsBackToClient(t *testing.T) {
	mockClient := &MockClient{}
	store, _ := newStore(t)

	pool := NewWorkerPool(context.Background(), 1, mockClient, nil, store, nil, logger.NewNopLogger())
	results := pool.Run([]Job{{Name: "clip.mp4", URL: "https://example.com/clip.mp4", IsVideo: true}})

	assert.True(t, results[0].Written)
	assert.Equal(t, 1, mockClient.GetDownloadCount())
}

func TestWorkerPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store, _ := newStore(t)
	pool := NewWorkerPool(ctx, 2, &MockClient{}, nil, store, nil, logger.NewNopLogger())
	results := pool.Run(photoJobs(3))

	require.Len(t, results, 3)
	for _, result := range results {
		assert.False(t, result.Written && result.Skipped)
	}
}

func TestGotFetcher(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 4096)
	var sawHeader atomic.Bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-IG-App-ID") == "app" {
			sawHeader.Store(true)
		}
		http.ServeContent(w, r, "clip.mp4", time.Unix(0, 0), bytes.NewReader(payload))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "clip.mp4.part")
	fetcher := NewGotFetcher(map[string]string{"X-IG-App-ID": "app"}, 2)

	n, err := fetcher.FetchToFile(context.Background(), server.URL+"/clip.mp4", dest)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)
	assert.True(t, sawHeader.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestGotFetcherError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	dest := filepath.Join(t.TempDir(), "clip.mp4.part")
	_, err := NewGotFetcher(nil, 1).FetchToFile(context.Background(), url+"/clip.mp4", dest)
	assert.Error(t, err)
}

func TestGotFetcherUserAgentPerFetcher(t *testing.T) {
	payload := []byte("video bytes")
	defaultAgent := got.UserAgent

	var mu sync.Mutex
	agents := map[string]bool{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		agents[r.Header.Get("User-Agent")] = true
		mu.Unlock()
		http.ServeContent(w, r, "clip.mp4", time.Unix(0, 0), bytes.NewReader(payload))
	}))
	defer server.Close()

	first := NewGotFetcher(map[string]string{"User-Agent": "agent-one"}, 1)
	second := NewGotFetcher(map[string]string{"User-Agent": "agent-two"}, 1)
	assert.Equal(t, defaultAgent, got.UserAgent)

	dir := t.TempDir()
	_, err := first.FetchToFile(context.Background(), server.URL+"/clip.mp4", filepath.Join(dir, "one.part"))
	require.NoError(t, err)
	_, err = second.FetchToFile(context.Background(), server.URL+"/clip.mp4", filepath.Join(dir, "two.part"))
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, agents["agent-one"], "agents seen: %v", agents)
	assert.True(t, agents["agent-two"], "agents seen: %v", agents)
}

package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"igloader/pkg/logger"
	"igloader/pkg/ratelimit"
)

// Job is a single media file to fetch
type Job struct {
	// Name is the file name inside the target directory
	Name    string
	URL     string
	IsVideo bool
}

// Result represents the outcome of a job
type Result struct {
	Job      Job
	Written  bool
	Skipped  bool
	Size     int64
	Duration time.Duration
	Error    error
}

// MediaFetcher downloads a media file into memory
type MediaFetcher interface {
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

// FileFetcher downloads a media file straight to a path on disk
type FileFetcher interface {
	FetchToFile(ctx context.Context, url, dest string) (int64, error)
}

// Storage is the subset of storage.Manager the pool writes through
type Storage interface {
	Exists(name string) bool
	Save(r io.Reader, name string) (int64, error)
	TempPath(name string) string
	Adopt(tempFile, name string) error
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan Job
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	photos      MediaFetcher
	videos      FileFetcher
	store       Storage
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. Photos are fetched
// through photos; videos through videos when it is non-nil. rateLimiter is
// waited on before each video fetch since those bypass the API client.
func NewWorkerPool(
	ctx context.Context,
	numWorkers int,
	photos MediaFetcher,
	videos FileFetcher,
	store Storage,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	ctx, cancel := context.WithCancel(ctx)

	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan Job, numWorkers*2),
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		photos:      photos,
		videos:      videos,
		store:       store,
		rateLimiter: rateLimiter,
		logger:      log,
	}
}

// Start starts all workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for queued jobs to finish and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit adds a new job to the queue
func (wp *WorkerPool) Submit(job Job) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down")
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

// Run processes jobs to completion and returns their results in job order.
// It starts and stops the pool itself; a pool is used for one Run only.
func (wp *WorkerPool) Run(jobs []Job) []Result {
	index := make(map[string]int, len(jobs))
	for i, job := range jobs {
		index[job.Name] = i
	}

	wp.Start()
	go func() {
		defer wp.Stop()
		for _, job := range jobs {
			if err := wp.Submit(job); err != nil {
				return
			}
		}
	}()

	results := make([]Result, len(jobs))
	seen := make([]bool, len(jobs))
	for result := range wp.Results() {
		i := index[result.Job.Name]
		results[i] = result
		seen[i] = true
	}

	for i, ok := range seen {
		if !ok {
			results[i] = Result{Job: jobs[i], Error: fmt.Errorf("job %s was not processed", jobs[i].Name)}
		}
	}

	return results
}

// worker is the main worker routine
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)

		select {
		case wp.resultQueue <- result:
		case <-wp.ctx.Done():
			return
		}
	}
}

// processJob handles a single job
func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if wp.store.Exists(job.Name) {
		result.Skipped = true
		result.Duration = time.Since(start)
		logger.LogDownload(wp.logger, job.Name, mediaType(job), job.Name, true, nil)
		return result
	}

	var err error
	if job.IsVideo && wp.videos != nil {
		result.Size, err = wp.fetchVideo(job)
	} else {
		result.Size, err = wp.fetchPhoto(job)
	}

	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err
		wp.logger.ErrorWithFields("Worker failed to download media", map[string]interface{}{
			"worker_id": workerID,
			"file":      job.Name,
			"error":     err.Error(),
			"duration":  result.Duration,
		})
		return result
	}

	result.Written = true
	logger.LogDownload(wp.logger, job.Name, mediaType(job), job.Name, false, nil)

	return result
}

func (wp *WorkerPool) fetchPhoto(job Job) (int64, error) {
	data, err := wp.photos.DownloadMedia(wp.ctx, job.URL)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}

	n, err := wp.store.Save(bytes.NewReader(data), job.Name)
	if err != nil {
		return 0, fmt.Errorf("save failed: %w", err)
	}
	return n, nil
}

func (wp *WorkerPool) fetchVideo(job Job) (int64, error) {
	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	tmp := wp.store.TempPath(job.Name)
	n, err := wp.videos.FetchToFile(wp.ctx, job.URL, tmp)
	if err != nil {
		return 0, fmt.Errorf("download failed: %w", err)
	}

	if err := wp.store.Adopt(tmp, job.Name); err != nil {
		return 0, fmt.Errorf("save failed: %w", err)
	}
	return n, nil
}

func mediaType(job Job) string {
	if job.IsVideo {
		return "video"
	}
	return "photo"
}

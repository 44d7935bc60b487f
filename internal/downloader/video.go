package downloader

import (
	"context"
	"fmt"
	"os"

	"github.com/melbahja/got"
	errs "igloader/pkg/errors"
)

// GotFetcher downloads large media in parallel byte ranges with got
type GotFetcher struct {
	headers []got.GotHeader
	chunks  uint
}

// NewGotFetcher creates a fetcher that sends headers with every request and
// splits each file into at most chunks ranges. A User-Agent in headers is
// sent per download and overrides got's package default.
func NewGotFetcher(headers map[string]string, chunks int) *GotFetcher {
	if chunks < 1 {
		chunks = 1
	}

	f := &GotFetcher{chunks: uint(chunks)}
	for key, value := range headers {
		f.headers = append(f.headers, got.GotHeader{Key: key, Value: value})
	}
	return f
}

// FetchToFile downloads url into dest and returns the file size
func (f *GotFetcher) FetchToFile(ctx context.Context, url, dest string) (int64, error) {
	dl := got.NewDownload(ctx, url, dest)
	dl.Concurrency = f.chunks
	dl.Header = f.headers

	if err := dl.Init(); err != nil {
		os.Remove(dest)
		return 0, errs.New(errs.ErrorTypeNetwork, 0, "video init failed: %v", err).WithCause(err)
	}

	if err := dl.Start(); err != nil {
		os.Remove(dest)
		return 0, errs.New(errs.ErrorTypeNetwork, 0, "video download failed: %v", err).WithCause(err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, fmt.Errorf("stat downloaded video: %w", err)
	}
	return info.Size(), nil
}

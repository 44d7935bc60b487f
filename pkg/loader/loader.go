package loader

import (
	"context"
	"fmt"
	"strings"

	"igloader/internal/downloader"
	errs "igloader/pkg/errors"
	"igloader/pkg/instagram"
	"igloader/pkg/logger"
	"igloader/pkg/metadata"
	"igloader/pkg/ratelimit"
	"igloader/pkg/retrieval"
	"igloader/pkg/storage"
)

// Client is the part of the Instagram client the loader uses
type Client interface {
	FetchPost(ctx context.Context, shortcode string) (*instagram.Post, error)
	FetchUserProfile(ctx context.Context, username string) (*instagram.Profile, error)
	DownloadMedia(ctx context.Context, url string) ([]byte, error)
}

// Options controls how posts are written to disk
type Options struct {
	// FileNamePattern names the files of a post; it must contain {shortcode}
	FileNamePattern string
	SaveMetadata    bool
	SaveCaption     bool
	// SkipVideos stores the cover image of videos instead of the video
	SkipVideos  bool
	Concurrency int
}

// Loader retrieves single posts into target directories
type Loader struct {
	client  Client
	videos  downloader.FileFetcher
	limiter ratelimit.Limiter
	opts    Options
	logger  logger.Logger
}

// New creates a Loader. videos may be nil, in which case videos are
// downloaded through client like photos. limiter throttles the video
// downloads that bypass client.
func New(client Client, videos downloader.FileFetcher, limiter ratelimit.Limiter, opts Options, log logger.Logger) *Loader {
	if opts.FileNamePattern == "" {
		opts.FileNamePattern = "{shortcode}"
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if log == nil {
		log = logger.GetLogger()
	}

	return &Loader{
		client:  client,
		videos:  videos,
		limiter: limiter,
		opts:    opts,
		logger:  log.WithField("component", "loader"),
	}
}

// Retrieve loads the post's metadata and downloads it into target
func (l *Loader) Retrieve(ctx context.Context, shortcode, target string) retrieval.Outcome {
	post, err := l.LoadPostMetadata(ctx, shortcode)
	if err != nil {
		return retrieval.Failed(err)
	}

	wrote, err := l.DownloadPost(ctx, post, target)
	if err != nil {
		return retrieval.Failed(err)
	}

	if wrote {
		return retrieval.WrittenTo(target)
	}
	return retrieval.PresentIn(target)
}

// LoadPostMetadata fetches the post and makes sure its owner is known
func (l *Loader) LoadPostMetadata(ctx context.Context, shortcode string) (*instagram.Post, error) {
	post, err := l.client.FetchPost(ctx, shortcode)
	if err != nil {
		return nil, err
	}
	if post.Shortcode == "" {
		post.Shortcode = shortcode
	}

	owner := &post.Owner
	switch {
	case owner.Username == "":
		return nil, errs.New(errs.ErrorTypeProfileNotFound, 0, "owner of post %s is unknown", shortcode)
	case owner.ID == "":
		profile, err := l.client.FetchUserProfile(ctx, owner.Username)
		if err != nil {
			return nil, err
		}
		owner.ID = profile.ID
		if owner.FullName == "" {
			owner.FullName = profile.FullName
		}
	}

	l.logger.DebugWithFields("post metadata loaded", map[string]interface{}{
		"shortcode": post.Shortcode,
		"typename":  post.Typename,
		"owner":     owner.Username,
		"items":     len(post.Items()),
	})

	return post, nil
}

// DownloadPost writes the post's media and sidecar files into target.
// It reports whether at least one media file was newly written.
func (l *Loader) DownloadPost(ctx context.Context, post *instagram.Post, target string) (bool, error) {
	store, err := storage.NewManager(target)
	if err != nil {
		return false, err
	}

	base := l.baseName(post)
	items := post.Items()
	jobs := make([]downloader.Job, 0, len(items))
	names := make([]string, 0, len(items))

	for _, item := range items {
		job := downloader.Job{URL: item.URL, IsVideo: item.IsVideo}
		if item.IsVideo && l.opts.SkipVideos {
			job = downloader.Job{URL: item.DisplayURL}
		}

		stem := base
		if item.Index > 0 {
			stem = fmt.Sprintf("%s_%d", base, item.Index)
		}
		job.Name = stem + extension(job.IsVideo)

		jobs = append(jobs, job)
		names = append(names, job.Name)
	}

	pool := downloader.NewWorkerPool(ctx, l.opts.Concurrency, l.client, l.videos, store, l.limiter, l.logger)
	results := pool.Run(jobs)

	wrote := false
	var failures []string
	var firstErr error
	for _, result := range results {
		if result.Error != nil {
			failures = append(failures, result.Job.Name)
			if firstErr == nil {
				firstErr = result.Error
			}
			continue
		}
		wrote = wrote || result.Written
	}

	if firstErr != nil {
		l.logger.WarnWithFields("post download incomplete", map[string]interface{}{
			"shortcode": post.Shortcode,
			"failed":    strings.Join(failures, ","),
			"written":   wrote,
		})
		return wrote, firstErr
	}

	if err := l.writeSidecars(store, post, base, names, wrote); err != nil {
		return wrote, err
	}

	l.logger.DebugWithFields("post stored", map[string]interface{}{
		"shortcode":    post.Shortcode,
		"written":      wrote,
		"files_in_dir": store.Count(),
	})

	return wrote, nil
}

// writeSidecars stores the metadata JSON and caption text when media was
// written or when they are missing
func (l *Loader) writeSidecars(store *storage.Manager, post *instagram.Post, base string, names []string, wrote bool) error {
	meta := metadata.FromPost(post, names)

	if l.opts.SaveMetadata && (wrote || !store.Exists(base+".json")) {
		if err := meta.Save(store, base+".json"); err != nil {
			return err
		}
	}

	if l.opts.SaveCaption && (wrote || !store.Exists(base+".txt")) {
		if err := meta.SaveCaption(store, base+".txt"); err != nil {
			return err
		}
	}

	return nil
}

// baseName expands the file name pattern for post
func (l *Loader) baseName(post *instagram.Post) string {
	r := strings.NewReplacer(
		"{shortcode}", post.Shortcode,
		"{id}", post.ID,
		"{owner}", instagram.SanitizeUsername(post.Owner.Username),
		"{date}", post.TakenAt().Format("2006-01-02_15-04-05"),
	)
	return r.Replace(l.opts.FileNamePattern)
}

func extension(isVideo bool) string {
	if isVideo {
		return ".mp4"
	}
	return ".jpg"
}

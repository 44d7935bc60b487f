// Package instagram provides a client for the parts of Instagram's web API
// needed to resolve and download a single post.
//
// Every request goes through the client's rate limiter and retry policy and
// fails with a typed *errors.Error from igloader/pkg/errors, so callers can
// classify failures with errors.As:
//
//	client := instagram.NewClientWithOptions(instagram.Options{
//	    Timeout:   30 * time.Second,
//	    SessionID: sessionID,
//	    CSRFToken: csrfToken,
//	    Retry:     retry.FromConfig(cfg.Retry, log),
//	    Limiter:   ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute),
//	}, log)
//
//	post, err := client.FetchPost(ctx, "CxYz123")
//	for _, item := range post.Items() {
//	    data, err := client.DownloadMedia(ctx, item.URL)
//	    // ...
//	}
package instagram

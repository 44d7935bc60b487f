// Package retry provides backoff and retry logic for the transient upstream
// failures the Instagram client sees.
//
// Only typed errors from igloader/pkg/errors whose type is retryable
// (network, rate_limit, server_error) are retried. Everything else is
// returned after the first attempt. When attempts run out the last error is
// wrapped, so callers can still classify it with errors.As.
//
//	policy := retry.FromConfig(cfg.Retry, log)
//	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
//		return client.get(ctx, url)
//	}, policy)
//
// Rate-limit errors use their own, slower, exponential backoff.
package retry

// Package ratelimit throttles requests to Instagram.
//
// PerMinute builds the limiter shared by every retrieval in the process.
// It is a sliding window over the last minute. TokenBucket refills on a fixed
// period and throttles CDN video fetches when rate_limit.media_burst is set.
//
//	limiter := ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit

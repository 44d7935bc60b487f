package instagram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	errs "igloader/pkg/errors"
	"igloader/pkg/logger"
	"igloader/pkg/ratelimit"
	"igloader/pkg/retry"
)

// DefaultUserAgent is sent when no user agent is configured
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"

// defaultMaxBodyBytes caps any single response read into memory
const defaultMaxBodyBytes = 64 << 20

// Options configures a Client
type Options struct {
	// Timeout bounds each HTTP round trip
	Timeout time.Duration
	// BaseURL overrides https://www.instagram.com, mainly for tests
	BaseURL   string
	UserAgent string
	AppID     string
	// SessionID and CSRFToken are the web session cookies; both or neither
	SessionID string
	CSRFToken string
	// Retry is applied to every request; nil means a single attempt
	Retry *retry.Policy
	// Limiter is waited on before every attempt; nil means unlimited
	Limiter ratelimit.Limiter
	// MaxBodyBytes rejects larger responses; zero means 64 MiB
	MaxBodyBytes int64
}

// Client represents an Instagram web API client
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	cookies    []*http.Cookie
	baseURL    string
	policy     *retry.Policy
	limiter    ratelimit.Limiter
	maxBody    int64
	logger     logger.Logger
}

// NewClientWithOptions creates a client from explicit options
func NewClientWithOptions(opts Options, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.BaseURL == "" {
		opts.BaseURL = BaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.AppID == "" {
		opts.AppID = DefaultAppID
	}
	if opts.Retry == nil {
		opts.Retry = &retry.Policy{MaxAttempts: 1, Logger: log}
	}
	if opts.Limiter == nil {
		opts.Limiter = ratelimit.Unlimited{}
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		headers: map[string]string{
			"User-Agent":      opts.UserAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"X-IG-App-ID":     opts.AppID,
			"Referer":         opts.BaseURL + "/",
		},
		baseURL: opts.BaseURL,
		policy:  opts.Retry,
		limiter: opts.Limiter,
		maxBody: opts.MaxBodyBytes,
		logger:  log.WithField("component", "instagram"),
	}
	c.SetSession(opts.SessionID, opts.CSRFToken)

	return c
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetSession attaches the web session cookies. Empty values clear the session.
func (c *Client) SetSession(sessionID, csrfToken string) {
	if sessionID == "" || csrfToken == "" {
		c.cookies = nil
		delete(c.headers, "X-CSRFToken")
		return
	}

	c.cookies = []*http.Cookie{
		{Name: "sessionid", Value: sessionID},
		{Name: "csrftoken", Value: csrfToken},
	}
	c.headers["X-CSRFToken"] = csrfToken
}

// Authenticated reports whether session cookies are attached
func (c *Client) Authenticated() bool {
	return len(c.cookies) > 0
}

// BaseURL returns the Instagram base URL the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Limiter returns the rate limiter shared by all requests of this client
func (c *Client) Limiter() ratelimit.Limiter {
	return c.limiter
}

// Headers returns a copy of the headers sent with every request
func (c *Client) Headers() map[string]string {
	out := make(map[string]string, len(c.headers)+1)
	for k, v := range c.headers {
		out[k] = v
	}
	if len(c.cookies) > 0 {
		req := &http.Request{Header: http.Header{}}
		for _, ck := range c.cookies {
			req.AddCookie(ck)
		}
		out["Cookie"] = req.Header.Get("Cookie")
	}
	return out
}

// doRequest performs a single HTTP round trip with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err).WithCause(err)
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// Get performs a single rate-limited GET request. The caller closes the body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err).WithCause(err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "rate limiter wait aborted: %v", err).WithCause(err)
	}

	return c.doRequest(req)
}

// getBody fetches url with retries and returns the body of a 200 response
func (c *Client) getBody(ctx context.Context, url string) ([]byte, int, error) {
	var status int

	body, err := retry.DoWithResult(ctx, func() ([]byte, error) {
		resp, err := c.Get(ctx, url)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		status = resp.StatusCode

		if err := c.checkResponseStatus(resp); err != nil {
			return nil, err
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
		if err != nil {
			return nil, errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err).WithCause(err)
		}
		if int64(len(data)) > c.maxBody {
			return nil, errs.New(errs.ErrorTypeBadResponse, resp.StatusCode, "response body exceeds %d bytes", c.maxBody)
		}
		return data, nil
	}, c.policy)

	return body, status, err
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, url string, target interface{}) error {
	body, status, err := c.getBody(ctx, url)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       status,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.New(errs.ErrorTypeParsing, status, "failed to parse JSON: %v", err).WithCause(err)
	}

	return nil
}

// checkResponseStatus maps non-200 responses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	fields := map[string]interface{}{
		"status": resp.StatusCode,
	}
	if resp.Request != nil {
		fields["url"] = resp.Request.URL.String()
	}

	errorType := errs.TypeForStatus(resp.StatusCode)
	switch errorType {
	case errs.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication error", fields)
		return errs.New(errorType, resp.StatusCode, "authentication required")
	case errs.ErrorTypeNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return errs.New(errorType, resp.StatusCode, "resource not found")
	case errs.ErrorTypeRateLimit:
		url := ""
		if resp.Request != nil {
			url = resp.Request.URL.Path
		}
		logger.LogRateLimit(c.logger, url, retryAfter(resp))
		return errs.New(errorType, resp.StatusCode, "rate limit exceeded")
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
		return errs.New(errorType, resp.StatusCode, "server error")
	default:
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", fields)
			return errs.New(errs.ErrorTypeUnknown, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
		}
		// 2xx other than 200 and unfollowed redirects
		return errs.New(errs.ErrorTypeBadResponse, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// retryAfter reads a Retry-After header given in seconds
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// FetchPost fetches a single post by shortcode
func (c *Client) FetchPost(ctx context.Context, shortcode string) (*Post, error) {
	if !IsValidShortcode(shortcode) {
		return nil, errs.New(errs.ErrorTypeNotFound, 0, "%q is not a post shortcode", shortcode)
	}
	url := GetPostQueryURL(c.baseURL, shortcode)

	c.logger.DebugWithFields("fetching post", map[string]interface{}{
		"shortcode": shortcode,
		"url":       url,
	})

	var response PostResponse
	if err := c.GetJSON(ctx, url, &response); err != nil {
		c.logger.ErrorWithFields("failed to fetch post", map[string]interface{}{
			"shortcode": shortcode,
			"error":     err.Error(),
		})
		return nil, err
	}

	if response.RequiresToLogin {
		c.logger.WarnWithFields("authentication required for post", map[string]interface{}{
			"shortcode": shortcode,
		})
		return nil, errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "Instagram requires authentication to view this post")
	}

	if response.Data.ShortcodeMedia == nil {
		return nil, errs.New(errs.ErrorTypeBadResponse, http.StatusOK, "Fetching Post metadata failed")
	}

	c.logger.DebugWithFields("successfully fetched post", map[string]interface{}{
		"shortcode": shortcode,
		"typename":  response.Data.ShortcodeMedia.Typename,
	})

	return response.Data.ShortcodeMedia, nil
}

// FetchUserProfile fetches the Instagram user profile data
func (c *Client) FetchUserProfile(ctx context.Context, username string) (*Profile, error) {
	url := GetProfileURL(c.baseURL, username)

	c.logger.DebugWithFields("fetching user profile", map[string]interface{}{
		"username": username,
		"url":      url,
	})

	var response ProfileResponse
	if err := c.GetJSON(ctx, url, &response); err != nil {
		var apiErr *errs.Error
		if errors.As(err, &apiErr) && apiErr.Type == errs.ErrorTypeNotFound {
			return nil, errs.New(errs.ErrorTypeProfileNotFound, apiErr.Code, "profile %s does not exist", username).WithCause(err)
		}
		c.logger.ErrorWithFields("failed to fetch user profile", map[string]interface{}{
			"username": username,
			"error":    err.Error(),
		})
		return nil, err
	}

	if response.RequiresToLogin {
		return nil, errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "Instagram requires authentication to view this profile")
	}
	if response.Data.User == nil || response.Data.User.ID == "" {
		return nil, errs.New(errs.ErrorTypeProfileNotFound, http.StatusOK, "profile %s does not exist", username)
	}

	return response.Data.User, nil
}

// DownloadMedia downloads a media file into memory
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	c.logger.DebugWithFields("downloading media", map[string]interface{}{
		"url": mediaURL,
	})

	data, _, err := c.getBody(ctx, mediaURL)
	if err != nil {
		c.logger.ErrorWithFields("failed to download media", map[string]interface{}{
			"url":   mediaURL,
			"error": err.Error(),
		})
		return nil, fmt.Errorf("download %s: %w", mediaURL, err)
	}

	c.logger.DebugWithFields("successfully downloaded media", map[string]interface{}{
		"url":  mediaURL,
		"size": len(data),
	})

	return data, nil
}

package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html/charset"
	"golang.org/x/time/rate"

	"racefeed/internal/checkpoint"
	"racefeed/internal/logging"
	"racefeed/internal/services"
)

const (
	defaultMaxRetries  = 3
	defaultBackoffUnit = time.Second
	defaultHTTPTimeout = 60 * time.Second
	maxBodyBytes       = 64 << 20
)

// Config describes a platform client.
type Config struct {
	Platform  string
	BaseURL   string
	UserAgent string
	// MinInterval is the courtesy delay between two requests. Zero disables pacing.
	MinInterval time.Duration
	// MaxRetries bounds in-place retries of transient failures.
	MaxRetries int
	// BackoffUnit scales the quadratic backoff: unit * n^2 before retry n.
	BackoffUnit time.Duration
	// Transient flags response bodies that are platform error payloads.
	Transient   checkpoint.TransientDetector
	Checkpoints *checkpoint.Store
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client fetches platform resources with caching, pacing and retries.
type Client struct {
	platform    string
	baseURL     *url.URL
	userAgent   string
	limiter     *rate.Limiter
	maxRetries  int
	backoffUnit time.Duration
	transient   checkpoint.TransientDetector
	checkpoints *checkpoint.Store
	http        *http.Client
	logger      *slog.Logger
}

// errPaceAborted reports that the limiter gave up waiting because the
// context would expire before the next request slot.
var errPaceAborted = errors.New("request slot beyond context deadline")

// New creates a Client from the supplied configuration.
func New(cfg Config) (*Client, error) {
	platform := strings.TrimSpace(cfg.Platform)
	if platform == "" {
		return nil, errors.New("fetch: platform is required")
	}
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("fetch: invalid base url %q", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	unit := cfg.BackoffUnit
	if unit <= 0 {
		unit = defaultBackoffUnit
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	// one request per interval, no bursts: cache hits never touch the limiter
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	return &Client{
		platform:    platform,
		baseURL:     base,
		userAgent:   strings.TrimSpace(cfg.UserAgent),
		limiter:     rate.NewLimiter(limit, 1),
		maxRetries:  maxRetries,
		backoffUnit: unit,
		transient:   cfg.Transient,
		checkpoints: cfg.Checkpoints,
		http:        client,
		logger:      logging.NewComponentLogger(logger, "fetch").With(logging.Platform(platform)),
	}, nil
}

// Resolve joins a relative path onto the base URL; absolute URLs pass through.
func (c *Client) Resolve(path string) string {
	ref, err := url.Parse(strings.TrimSpace(path))
	if err != nil {
		return path
	}
	if ref.IsAbs() {
		return ref.String()
	}
	ref.Path = strings.TrimPrefix(ref.Path, "/")
	return c.baseURL.ResolveReference(ref).String()
}

// Get fetches path with query params.
func (c *Client) Get(ctx context.Context, key checkpoint.Key, path string, params url.Values) ([]byte, error) {
	return c.Do(ctx, key, checkpoint.Request{Method: http.MethodGet, URL: c.Resolve(path), Params: params})
}

// Do executes req, consulting and filling the checkpoint raw namespace.
func (c *Client) Do(ctx context.Context, key checkpoint.Key, req checkpoint.Request) ([]byte, error) {
	if c.checkpoints != nil {
		body, ok, err := c.checkpoints.LoadRaw(key, req)
		if err != nil {
			return nil, services.Wrap(services.KindRetry, c.platform, "fetch", "read checkpoint", err).WithURL(req.URL)
		}
		if ok {
			return body, nil
		}
	}

	for attempt := 0; ; attempt++ {
		body, status, err := c.send(ctx, req)
		switch {
		case err != nil && (ctx.Err() != nil || errors.Is(err, errPaceAborted)):
			return nil, services.Wrap(services.KindRetry, c.platform, "fetch", "request cancelled", ctx.Err()).WithURL(req.URL)
		case err == nil && status == http.StatusTooManyRequests:
			return nil, services.Wrap(services.KindRetryDelayed, c.platform, "fetch", "throttled by platform (429)", nil).WithURL(req.URL)
		case err == nil && status >= 200 && status < 300 && (c.transient == nil || !c.transient(body)):
			if c.checkpoints != nil {
				if _, err := c.checkpoints.StoreRaw(key, req, body, c.transient); err != nil {
					return nil, services.Wrap(services.KindRetry, c.platform, "fetch", "write checkpoint", err).WithURL(req.URL)
				}
			}
			return body, nil
		case err == nil && status < 500 && (status < 200 || status >= 300):
			return nil, services.Wrap(services.KindFatal, c.platform, "fetch", fmt.Sprintf("unexpected status %d", status), nil).WithURL(req.URL)
		}

		reason := describeFailure(status, err, body)
		if attempt >= c.maxRetries {
			return nil, services.Wrap(services.KindRetry, c.platform, "fetch",
				fmt.Sprintf("gave up after %d retries: %s", attempt, reason), err).WithURL(req.URL)
		}
		backoff := c.backoffUnit * time.Duration((attempt+1)*(attempt+1))
		c.logger.Warn("transient platform failure, retrying",
			logging.String("url", req.URL),
			logging.String("reason", reason),
			logging.Int("attempt", attempt+1),
			logging.Duration("backoff", backoff),
			logging.EventType("fetch_retry"),
			logging.Hint("platform returned an error payload or 5xx"),
		)
		if err := SleepWithContext(ctx, backoff); err != nil {
			return nil, services.Wrap(services.KindRetry, c.platform, "fetch", "request cancelled", err).WithURL(req.URL)
		}
	}
}

func describeFailure(status int, err error, body []byte) string {
	if err != nil {
		return err.Error()
	}
	if status >= 500 {
		return fmt.Sprintf("status %d", status)
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return "transient payload: " + snippet
}

func (c *Client) send(ctx context.Context, req checkpoint.Request) ([]byte, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", errPaceAborted, err)
	}

	target, err := url.Parse(req.URL)
	if err != nil {
		return nil, 0, fmt.Errorf("parse url: %w", err)
	}
	if len(req.Params) > 0 {
		query := target.Query()
		for k, values := range req.Params {
			for _, v := range values {
				query.Add(k, v)
			}
		}
		target.RawQuery = query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != "" {
		body = strings.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if req.Body != "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	reader, err := charset.NewReader(io.LimitReader(resp.Body, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode charset: %w", err)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), resp.StatusCode, nil
}

// SleepWithContext blocks for the given duration, returning early if the
// context is cancelled.
func SleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

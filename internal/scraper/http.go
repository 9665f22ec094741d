package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/90.0.4430.93 Safari/537.36"
	DefaultAcceptLanguage = "en-US,en;q=0.9"
)

// Only idempotent requests are retried, and only on these statuses.
var (
	retryMethods = map[string]bool{
		http.MethodHead:    true,
		http.MethodGet:     true,
		http.MethodOptions: true,
	}
	retryStatuses = map[int]bool{
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
)

// ClientOptions configures the transport session.
type ClientOptions struct {
	UserAgent      string
	AcceptLanguage string
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// Attempts is the total number of tries, the first one included.
	Attempts int
	// RetryWait is the base of the exponential backoff, RetryMaxWait its cap.
	RetryWait    time.Duration
	RetryMaxWait time.Duration
	// RequestsPerSecond throttles every attempt made by the client. Zero disables it.
	RequestsPerSecond float64
	CloudflareBypass  bool
}

// DefaultClientOptions returns the stock session settings:
// 3 attempts, backoff factor 0.3s, 10s per request.
func DefaultClientOptions() ClientOptions {
	return ClientOptions{
		UserAgent:      DefaultUserAgent,
		AcceptLanguage: DefaultAcceptLanguage,
		Timeout:        10 * time.Second,
		Attempts:       3,
		RetryWait:      300 * time.Millisecond,
		RetryMaxWait:   2 * time.Second,
	}
}

// Client is an HTTP session with fixed identity headers and a retry policy
// for transient server errors.
type Client struct {
	http    *resty.Client
	limiter *rate.Limiter
}

// StatusError is returned by Get when the final attempt did not answer 2xx.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("get %s: %s", e.URL, e.Status)
}

// NewClient builds a resty-backed Client for listing requests.
//
// Parameters (fields of opts):
//   - UserAgent, AcceptLanguage: sent on every request; empty falls back to the defaults.
//   - Timeout: deadline of a single attempt; zero falls back to 10s.
//   - Attempts: total tries including the first; values below 1 mean a single try.
//   - RetryWait, RetryMaxWait: base and cap of the exponential backoff between tries.
//   - RequestsPerSecond: when positive, every attempt waits on a shared limiter.
//   - CloudflareBypass: wraps the transport with cloudflare-bp-go.
//
// Retries happen only for HEAD/GET/OPTIONS, and only on 500, 502, 503 and
// 504 or on transport errors while the request context is still live.
func NewClient(opts ClientOptions) *Client {
	def := DefaultClientOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.AcceptLanguage == "" {
		opts.AcceptLanguage = def.AcceptLanguage
	}
	if opts.Timeout <= 0 {
		opts.Timeout = def.Timeout
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	client := resty.New()
	client.SetLogger(slogLogger{})
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", opts.UserAgent)
	client.SetHeader("Accept-Language", opts.AcceptLanguage)
	client.SetRetryCount(opts.Attempts - 1)
	client.SetRetryWaitTime(opts.RetryWait)
	client.SetRetryMaxWaitTime(opts.RetryMaxWait)
	client.AddRetryCondition(shouldRetry)
	client.AddRetryHook(func(res *resty.Response, err error) {
		if res == nil || res.Request == nil {
			return
		}
		slog.Debug("retrying request", "url", res.Request.URL, "status", res.StatusCode(), "error", err)
	})
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	c := &Client{http: client}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return c.limiter.Wait(req.Context())
		})
	}
	return c
}

// Get issues a GET request and returns the body of a 2xx response. Any
// transport failure, or a non-2xx status once retries are exhausted, is
// returned as an error.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	res, err := c.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if !res.IsSuccess() {
		return nil, &StatusError{URL: url, Code: res.StatusCode(), Status: res.Status()}
	}
	return res.Body(), nil
}

// shouldRetry replaces resty's default of retrying every transport error:
// non-idempotent methods are never retried, and a canceled context ends the
// attempts early.
func shouldRetry(res *resty.Response, err error) bool {
	if res == nil || res.Request == nil {
		return false
	}
	if !retryMethods[res.Request.Method] {
		return false
	}
	if err != nil {
		return res.Request.Context().Err() == nil
	}
	return retryStatuses[res.StatusCode()]
}

// slogLogger routes resty's internal messages to slog.
type slogLogger struct{}

func (slogLogger) Errorf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }
func (slogLogger) Warnf(format string, v ...any)  { slog.Debug(fmt.Sprintf(format, v...)) }
func (slogLogger) Debugf(format string, v ...any) { slog.Debug(fmt.Sprintf(format, v...)) }

// sleepCtx sleeps for the given duration or returns early if the context is canceled.
func sleepCtx(ctx context.Context, dur time.Duration) error {
	if dur <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(dur)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

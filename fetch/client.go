package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/shirou/gopsutil/mem"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

const (
	// DefaultMaxConcurrentFetches bounds how many Fetch calls a Client built
	// by New runs at once, the concurrency half of the "memory/CPU
	// backpressure for concurrent fetches" this client is meant to apply
	// alongside DefaultMaxSizeForHost's per-response sizing.
	DefaultMaxConcurrentFetches = 16

	// DefaultFetchRate and DefaultFetchBurst pace outbound requests so a
	// burst of queued fetches (e.g. a snapshot restoration fanning out
	// chunk requests) doesn't open them all in the same instant.
	DefaultFetchRate  = 50
	DefaultFetchBurst = 10
)

// Response is the bounded result of a fetch call: status, headers and a
// body already read in full (subject to the request's Abort.MaxSize).
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a bounded HTTP client. The zero value is ready to use, with no
// rate or concurrency limiting — New applies this package's defaults for
// both.
type Client struct {
	// Transport, if set, overrides http.DefaultTransport. Tests substitute
	// a fake transport here instead of spinning up a real listener.
	Transport http.RoundTripper

	// Limiter paces outbound requests; nil (the zero value) means
	// unrated.
	Limiter *rate.Limiter

	// Concurrency bounds the number of Fetch calls in flight at once; nil
	// (the zero value) means unbounded.
	Concurrency *semaphore.Weighted
}

// New returns a Client using http.DefaultTransport, bounded to
// DefaultMaxConcurrentFetches concurrent requests paced at DefaultFetchRate
// per second.
func New() *Client {
	return &Client{
		Limiter:     rate.NewLimiter(rate.Limit(DefaultFetchRate), DefaultFetchBurst),
		Concurrency: semaphore.NewWeighted(DefaultMaxConcurrentFetches),
	}
}

// Fetch performs req under the limits described by abort: MaxDuration bounds
// the whole round trip (including redirects), MaxRedirects caps the number
// of redirects followed (307/308 preserve the method and body, everything
// else downgrades to GET per net/http's default CheckRedirect semantics),
// and the response body is streamed through a counting reader that aborts
// with ErrSizeLimit once MaxSize is exceeded. abort may be nil, in which
// case NewAbort()'s defaults apply.
func (c *Client) Fetch(ctx context.Context, req *http.Request, abort *Abort) (*Response, error) {
	if abort == nil {
		abort = NewAbort()
	}
	if abort.isAborted() {
		return nil, ErrAborted
	}

	reqCtx, cancel := abort.bind(ctx)
	defer cancel()
	req = req.WithContext(reqCtx)

	if c.Concurrency != nil {
		if err := c.Concurrency.Acquire(reqCtx, 1); err != nil {
			return nil, err
		}
		defer c.Concurrency.Release(1)
	}
	if c.Limiter != nil {
		if err := c.Limiter.Wait(reqCtx); err != nil {
			return nil, err
		}
	}

	redirects := abort.boundedRedirects()
	httpClient := &http.Client{
		Transport: c.Transport,
		CheckRedirect: func(r *http.Request, via []*http.Request) error {
			if len(via) > redirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		if abort.isAborted() {
			return nil, ErrAborted
		}
		if reqCtx.Err() == context.DeadlineExceeded {
			return nil, context.DeadlineExceeded
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBounded(resp.Body, abort.boundedSize())
	if err != nil {
		return nil, err
	}

	log.Trace("fetch: completed request", "url", req.URL.String(), "status", resp.StatusCode, "bytes", len(body))
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Get is a convenience wrapper around Fetch for a GET request.
func (c *Client) Get(ctx context.Context, url string, abort *Abort) (*Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, req, abort)
}

// Post is a convenience wrapper around Fetch for a POST request with the
// given content type and body.
func (c *Client) Post(ctx context.Context, url, contentType string, body []byte, abort *Abort) (*Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	return c.Fetch(ctx, req, abort)
}

// readBounded copies r into memory, returning ErrSizeLimit the instant more
// than limit bytes have been read — the stream is never fully buffered
// past that point.
func readBounded(r io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(r, limit+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, ErrSizeLimit
	}
	return body, nil
}

// DefaultMaxSizeForHost scales DefaultMaxSize down when the host is under
// memory pressure, mirrored from go-ethereum's resource-aware admission
// sampling: below 10% available memory the cap is quartered, below 25% it
// is halved. Sampling failure (e.g. inside a restricted container) falls
// back to the unscaled default rather than erroring the caller.
func DefaultMaxSizeForHost() int64 {
	stat, err := mem.VirtualMemory()
	if err != nil || stat.Total == 0 {
		return DefaultMaxSize
	}
	availableFrac := float64(stat.Available) / float64(stat.Total)
	switch {
	case availableFrac < 0.10:
		return DefaultMaxSize / 4
	case availableFrac < 0.25:
		return DefaultMaxSize / 2
	default:
		return DefaultMaxSize
	}
}

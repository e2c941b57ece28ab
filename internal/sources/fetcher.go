package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrTimeout is returned when the upstream did not answer within the deadline.
var ErrTimeout = errors.New("upstream deadline exceeded")

// ErrBodyTooLarge is wrapped in a TransportError when the upstream body is
// larger than FetcherConfig.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("upstream body too large")

// TransportError wraps failures below HTTP: DNS, connect, TLS, reset body.
type TransportError struct {
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Response is a completed upstream exchange. Non-2xx statuses are returned
// here as well; callers decide what to do with them.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

type HTTPFetcher struct {
	client *http.Client
	config FetcherConfig
}

func NewHTTPFetcher(config FetcherConfig) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{},
		config: config,
	}
}

// WithClient swaps the HTTP client, mainly for tests.
func (f *HTTPFetcher) WithClient(client *http.Client) *HTTPFetcher {
	f.client = client
	return f
}

type fetchResult struct {
	resp *Response
	err  error
}

// Fetch issues a single GET. A timer started at call time supervises the
// request: when it fires the request is cancelled, its result discarded and
// ErrTimeout returned, whatever the transport is doing. Cancellation of ctx
// by the caller is deliberately not propagated.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	reqCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	timer := time.NewTimer(f.config.Timeout)
	defer timer.Stop()

	done := make(chan fetchResult, 1)
	go func() {
		resp, err := f.do(reqCtx, url)
		done <- fetchResult{resp: resp, err: err}
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-timer.C:
		return nil, fmt.Errorf("fetch %s after %v: %w", url, f.config.Timeout, ErrTimeout)
	}
}

func (f *HTTPFetcher) do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	limit := f.config.MaxBodyBytes
	var body io.Reader = resp.Body
	if limit > 0 {
		// One byte past the limit tells an oversized body from one that fits exactly.
		body = io.LimitReader(resp.Body, limit+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, limit)}
	}

	return &Response{
		Status: resp.StatusCode,
		Header: resp.Header.Clone(),
		Body:   data,
	}, nil
}

// OK reports whether the upstream answered with a 2xx status.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

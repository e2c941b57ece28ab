// Package formatter turns a feed request into a rendered feed document.
//
// Handle runs the stages ValidateID, ResolveFeed, ResolveProviderURL,
// CacheLookup, Fetch, ValidateUpstreamStatus, Parse, LoadTemplate,
// BuildContext, Render, CacheStore and Respond. Every stage may end the
// request with an *Error whose Kind decides the response status.
package formatter

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/johnrirwin/feedformatter/internal/cache"
	"github.com/johnrirwin/feedformatter/internal/logging"
	"github.com/johnrirwin/feedformatter/internal/metrics"
	"github.com/johnrirwin/feedformatter/internal/registry"
	"github.com/johnrirwin/feedformatter/internal/render"
	"github.com/johnrirwin/feedformatter/internal/sources"
)

const (
	ContentType = "application/rss+xml; charset=utf-8"

	HeaderCache      = "X-Cache"
	HeaderRenderedAt = "X-Feed-Rendered-At"
)

// Cache status reported in HeaderCache.
const (
	CacheHit    = "HIT"
	CacheMiss   = "MISS"
	CacheBypass = "BYPASS"
)

// Entry is what the response cache stores: the rendered body and the headers
// that belong to it.
type Entry struct {
	Body    []byte            `json:"body"`
	Headers map[string]string `json:"headers"`
}

type Request struct {
	Method string
	Path   string
	ID     string
	// Fresh skips the cache lookup. The result is still stored.
	Fresh bool
}

type Output struct {
	Body    []byte
	Headers map[string]string
	// Cache is HIT, MISS or BYPASS, or empty when caching is disabled.
	Cache string
}

type Service struct {
	registry  *registry.Registry
	fetcher   sources.Fetcher
	templates *render.TemplateStore
	cache     cache.Cache[Entry]
	logger    *logging.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(reg *registry.Registry, fetcher sources.Fetcher, templates *render.TemplateStore, logger *logging.Logger) *Service {
	return &Service{
		registry:  reg,
		fetcher:   fetcher,
		templates: templates,
		logger:    logger,
		now:       time.Now,
	}
}

// WithCache enables the response cache. A nil cache disables it.
func (s *Service) WithCache(c cache.Cache[Entry]) *Service {
	s.cache = c
	return s
}

func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CacheKey identifies a response in the cache. The query string is not part
// of the key.
func CacheKey(method, path string) string {
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + path
}

// Handle runs the pipeline for one request. Failures are logged here; the
// caller only needs StatusFor and Message to answer the client.
func (s *Service) Handle(ctx context.Context, req Request) (*Output, error) {
	out, feedLabel, err := s.handle(ctx, req)
	if err != nil {
		s.logFailure(err)
	}
	s.metrics.ObserveRequest(feedLabel, StatusFor(err))
	return out, err
}

func (s *Service) handle(ctx context.Context, req Request) (*Output, string, error) {
	// Only a missing id is invalid; the registry decides everything else.
	if req.ID == "" {
		return nil, "invalid", &Error{Kind: KindInvalidRequest, FeedID: req.ID}
	}

	entry, ok := s.registry.Lookup(req.ID)
	if !ok {
		return nil, "unknown", &Error{Kind: KindNotFound, FeedID: req.ID}
	}
	cfg := entry.Config

	url, err := cfg.ProviderURL()
	if err != nil {
		return nil, cfg.ID, &Error{Kind: KindConfiguration, FeedID: cfg.ID, Err: err}
	}

	key := CacheKey(req.Method, req.Path)
	cacheStatus := ""
	if s.cache != nil {
		switch {
		case req.Fresh:
			cacheStatus = CacheBypass
			s.metrics.ObserveCache(metrics.CacheBypass)
		default:
			if cached, hit := s.cache.Get(key); hit {
				s.metrics.ObserveCache(metrics.CacheHit)
				s.logger.Debug("Serving feed from cache", logging.WithFields(map[string]interface{}{
					"feed": cfg.ID,
					"key":  key,
				}))
				return &Output{Body: cached.Body, Headers: cached.Headers, Cache: CacheHit}, cfg.ID, nil
			}
			cacheStatus = CacheMiss
			s.metrics.ObserveCache(metrics.CacheMiss)
		}
	}

	started := s.now()
	resp, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		kind := KindUpstreamTransport
		outcome := "transport_error"
		switch {
		case errors.Is(err, sources.ErrTimeout):
			kind = KindUpstreamTimeout
			outcome = "timeout"
		case errors.Is(err, sources.ErrBodyTooLarge):
			outcome = "too_large"
		}
		s.metrics.ObserveUpstream(outcome, s.now().Sub(started))
		return nil, cfg.ID, &Error{Kind: kind, FeedID: cfg.ID, URL: url, Err: err}
	}
	if !resp.OK() {
		s.metrics.ObserveUpstream("bad_status", s.now().Sub(started))
		return nil, cfg.ID, &Error{Kind: KindUpstreamStatus, FeedID: cfg.ID, URL: url, Status: resp.Status, Err: errUpstreamStatus}
	}
	s.metrics.ObserveUpstream("ok", s.now().Sub(started))

	feed, err := sources.ParseFeed(resp.Body)
	if err != nil {
		kind := KindMalformedPayload
		if errors.Is(err, sources.ErrInvalidEncoding) {
			kind = KindInvalidEncoding
		}
		return nil, cfg.ID, &Error{Kind: kind, FeedID: cfg.ID, URL: url, Status: resp.Status, Err: err}
	}

	defaults := s.registry.Defaults()
	tmpl, err := s.templates.Load(cfg.TemplateName(defaults))
	if err != nil {
		return nil, cfg.ID, &Error{Kind: KindTemplate, FeedID: cfg.ID, URL: url, Status: resp.Status, Err: err}
	}

	renderStart := s.now()
	body, err := tmpl.Render(render.BuildContext(feed, cfg, defaults, entry.Preprocessor))
	if err != nil {
		return nil, cfg.ID, &Error{Kind: KindTemplate, FeedID: cfg.ID, URL: url, Status: resp.Status, Err: err}
	}
	s.metrics.ObserveRender(tmpl.Name(), s.now().Sub(renderStart))

	rendered := Entry{
		Body: body,
		Headers: map[string]string{
			"Content-Type":   ContentType,
			HeaderRenderedAt: s.now().UTC().Format(http.TimeFormat),
		},
	}
	if s.cache != nil {
		s.cache.Set(key, rendered)
	}

	s.logger.Info("Rendered feed", logging.WithFields(map[string]interface{}{
		"feed":     cfg.ID,
		"url":      url,
		"items":    len(feed.Playlist),
		"template": tmpl.Name(),
		"cache":    cacheStatus,
	}))

	return &Output{Body: rendered.Body, Headers: rendered.Headers, Cache: cacheStatus}, cfg.ID, nil
}

var errUpstreamStatus = errors.New("upstream returned a non-2xx status")

func (s *Service) logFailure(err error) {
	var fe *Error
	if !errors.As(err, &fe) {
		s.logger.Error("Feed request failed", logging.WithError(err))
		return
	}

	fields := map[string]interface{}{
		"feed":   fe.FeedID,
		"kind":   fe.Kind.String(),
		"status": fe.Kind.Status(),
	}
	if fe.URL != "" {
		fields["url"] = fe.URL
	}
	if fe.Status != 0 {
		fields["upstream_status"] = fe.Status
	}
	if fe.Err != nil {
		fields["error"] = fe.Err.Error()
	}

	if fe.Kind.Status() >= http.StatusInternalServerError {
		s.logger.Error("Feed request failed", logging.WithFields(fields))
		return
	}
	s.logger.Warn("Feed request rejected", logging.WithFields(fields))
}

package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/hlog"

	"github.com/johnrirwin/feedformatter/internal/formatter"
	"github.com/johnrirwin/feedformatter/internal/logging"
)

const (
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 15 * time.Second
)

type Server struct {
	feeds        *formatter.Service
	logger       *logging.Logger
	metrics      http.Handler
	readTimeout  time.Duration
	writeTimeout time.Duration
	server       *http.Server
}

func New(feeds *formatter.Service, logger *logging.Logger) *Server {
	return &Server{
		feeds:        feeds,
		logger:       logger,
		readTimeout:  defaultReadTimeout,
		writeTimeout: defaultWriteTimeout,
	}
}

// WithMetricsHandler mounts h at /metrics.
func (s *Server) WithMetricsHandler(h http.Handler) *Server {
	s.metrics = h
	return s
}

// WithTimeouts overrides the read and write timeouts. Zero keeps the default.
func (s *Server) WithTimeouts(read, write time.Duration) *Server {
	if read > 0 {
		s.readTimeout = read
	}
	if write > 0 {
		s.writeTimeout = write
	}
	return s
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(hlog.NewHandler(s.logger.Zerolog()))
	r.Use(hlog.RequestIDHandler("request_id", "Request-Id"))
	r.Use(hlog.RemoteAddrHandler("remote_ip"))
	r.Use(hlog.UserAgentHandler("user_agent"))
	r.Use(hlog.AccessHandler(accessLogFn))
	r.Use(corsMiddleware)

	r.Get("/feeds/{id}", s.handleFeed)
	r.Get("/feeds", s.handleMissingID)
	r.Get("/feeds/", s.handleMissingID)

	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	return r
}

// Start serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  s.readTimeout,
		WriteTimeout: s.writeTimeout,
	}

	s.logger.Info("HTTP server starting", logging.WithField("addr", addr))
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func accessLogFn(r *http.Request, status, size int, duration time.Duration) {
	hlog.FromRequest(r).Info().
		Int("status", status).
		Int("size", size).
		Dur("duration", duration).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Msg("http")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	req := formatter.Request{
		Method: r.Method,
		Path:   r.URL.Path,
		ID:     chi.URLParam(r, "id"),
		Fresh:  r.URL.Query().Get("fresh") == "1",
	}

	out, err := s.feeds.Handle(r.Context(), req)
	if err != nil {
		s.writeError(w, formatter.StatusFor(err), formatter.Message(err))
		return
	}

	for k, v := range out.Headers {
		w.Header().Set(k, v)
	}
	if out.Cache != "" {
		w.Header().Set(formatter.HeaderCache, out.Cache)
	}
	w.WriteHeader(http.StatusOK)
	w.Write(out.Body)
}

func (s *Server) handleMissingID(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, http.StatusUnprocessableEntity, "feed id is required")
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	http.Error(w, message, status)
}

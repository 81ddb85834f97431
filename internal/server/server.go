// Package server exposes locator sessions over HTTP. Each session owns one
// controller and its in-memory map, list and status surfaces.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/store-locator/internal/locator"
	"github.com/sells-group/store-locator/internal/metrics"
	"github.com/sells-group/store-locator/internal/view"
)

// Options configures a Server.
type Options struct {
	Geocoder           locator.GeocodingPort
	Search             locator.SearchPort
	Center             locator.Coordinate
	Zoom               int
	DefaultRadiusMiles float64
	AllowedOrigins     []string
	ShutdownTimeout    time.Duration
	// SessionTTL expires sessions idle this long. Zero disables the reaper.
	SessionTTL   time.Duration
	ReapInterval time.Duration
}

type session struct {
	id       string
	surfaces *view.Surfaces
	disp     *locator.Dispatcher
	created  time.Time
	lastUsed atomic.Int64 // unix nanos
}

func (sess *session) touch(now time.Time) { sess.lastUsed.Store(now.UnixNano()) }

func (sess *session) idleSince() time.Time { return time.Unix(0, sess.lastUsed.Load()) }

// Server holds the live sessions.
type Server struct {
	opts     Options
	validate *validator.Validate

	mu       sync.RWMutex
	sessions map[string]*session

	nowFunc func() time.Time
}

// New creates a Server with no sessions.
func New(opts Options) *Server {
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.ReapInterval <= 0 {
		opts.ReapInterval = time.Minute
	}
	return &Server{
		opts:     opts,
		validate: validator.New(),
		sessions: make(map[string]*session),
		nowFunc:  time.Now,
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGet)
			r.Delete("/", s.handleDelete)
			r.Put("/address", s.handleAddress)
			r.Post("/search", s.handleSearch)
			r.Post("/select/{index}", s.handleSelect)
			r.Get("/markers.geojson", s.handleGeoJSON)
		})
	})
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zap.L().Info("starting server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		return eris.Wrap(srv.Shutdown(shutdownCtx), "server shutdown")
	})
	if s.opts.SessionTTL > 0 {
		g.Go(func() error {
			s.runReaper(gctx)
			return nil
		})
	}
	return g.Wait()
}

// Len returns the number of live sessions.
func (s *Server) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) newSession() *session {
	surfaces := view.NewSurfaces(s.opts.Center, s.opts.Zoom)
	ctrl := locator.New(surfaces.Ports(s.opts.Geocoder, s.opts.Search))
	sess := &session{
		id:       uuid.NewString(),
		surfaces: surfaces,
		disp:     locator.NewDispatcher(ctrl, s.opts.DefaultRadiusMiles),
		created:  s.nowFunc(),
	}
	sess.touch(sess.created)

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	metrics.ActiveSessions.Inc()
	return sess
}

func (s *Server) lookup(id string) (*session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.touch(s.nowFunc())
	}
	return sess, ok
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	metrics.ActiveSessions.Dec()
	return true
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

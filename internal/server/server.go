// Package server exposes story sessions over HTTP: a JSON API on gin plus a single
// embedded page that drives it.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Yates-Labs/storyprompt/internal/config"
	"github.com/Yates-Labs/storyprompt/internal/narrative"
	"github.com/Yates-Labs/storyprompt/internal/session"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// LLMFactory builds the vendor adapter for one generation request.
type LLMFactory func(cfg narrative.LLMConfig) (narrative.LLM, error)

// Server routes HTTP requests to sessions held in a session.Store.
type Server struct {
	store    *session.Store
	cfg      *config.Config
	log      *zap.Logger
	newLLM   LLMFactory
	registry *prometheus.Registry
	metrics  *narrative.Metrics
	now      func() time.Time
	engine   *gin.Engine
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger sets the request and error logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) { s.log = log }
}

// WithLLMFactory replaces narrative.NewLLM, mostly for tests.
func WithLLMFactory(f LLMFactory) Option {
	return func(s *Server) { s.newLLM = f }
}

// WithRegistry sets the registry served on /metrics.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithClock sets the time source used for exports and filenames.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New wires the routes. The store and config must not be nil.
func New(store *session.Store, cfg *config.Config, opts ...Option) *Server {
	s := &Server{
		store:  store,
		cfg:    cfg,
		log:    zap.NewNop(),
		newLLM: narrative.NewLLM,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = narrative.NewMetrics(s.registry)
	s.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "storyprompt_sessions_active",
			Help: "Number of sessions currently held in memory.",
		},
		func() float64 { return float64(store.Len()) },
	))

	s.engine = s.routes()
	return s
}

// Handler returns the gin engine as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	router := gin.New()
	router.Use(ZapLoggingMiddleware(s.log))
	router.Use(RecoveryMiddleware(s.log))

	router.GET("/", s.handleIndex)
	router.GET("/health", handleHealth)
	router.HEAD("/health", handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := router.Group("/api")
	api.GET("/catalogue", s.handleCatalogue)
	api.GET("/options", s.handleOptions)
	api.GET("/names", s.handleNames)

	sessions := api.Group("/sessions")
	sessions.POST("", s.handleCreateSession)

	one := sessions.Group("/:id", s.loadSession)
	one.GET("", s.handleGetSession)
	one.PATCH("", s.handleUpdateSession)
	one.DELETE("", s.handleDeleteSession)

	one.POST("/elements", s.handleAddElement)
	one.POST("/elements/resample", s.handleResample)
	one.PUT("/elements/:index", s.handleEditElement)
	one.DELETE("/elements/:index", s.handleRemoveElement)

	one.POST("/prompt", s.handlePrompt)

	one.POST("/stories", s.handleGenerate)
	one.GET("/stories", s.handleListStories)
	one.DELETE("/stories", s.handleResetStories)
	one.GET("/stories/download", s.handleDownload)
	one.PUT("/stories/:story/rating", s.handleRate)

	return router
}

// Run serves on the configured address until ctx is cancelled, pruning idle
// sessions in the background.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.cfg.VendorTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.pruneLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Starting HTTP server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func (s *Server) pruneLoop(ctx context.Context) {
	idle := s.cfg.SessionIdleTimeout
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.Prune(s.now().Add(-idle)); n > 0 {
				s.log.Info("Pruned idle sessions", zap.Int("count", n), zap.Int("remaining", s.store.Len()))
			}
		}
	}
}

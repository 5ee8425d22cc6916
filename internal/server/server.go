// Package server provides the HTTP server and routing for riskcast.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/tourguard/riskcast/internal/database"
	"github.com/tourguard/riskcast/internal/modules/prediction"
	"github.com/tourguard/riskcast/internal/modules/riskmodel"
	"github.com/tourguard/riskcast/internal/training"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	Coordinator *training.Coordinator
	Predictions *prediction.Service
	Holder      *riskmodel.Holder
	DB          *database.DB // optional; reported by /api/ml/health
	Clock       func() time.Time
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	port        int
	coordinator *training.Coordinator
	predictions *prediction.Service
	holder      *riskmodel.Holder
	db          *database.DB
	clock       func() time.Time
	systemStats func() (cpu, mem float64)
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		port:        cfg.Port,
		coordinator: cfg.Coordinator,
		predictions: cfg.Predictions,
		holder:      cfg.Holder,
		db:          cfg.DB,
		clock:       cfg.Clock,
	}
	s.systemStats = s.hostStats

	s.setupMiddleware()
	s.setupRoutes(cfg.DevMode)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupMiddleware configures middleware shared by every route
func (s *Server) setupMiddleware() {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

// setupRoutes configures all routes. The progress streams sit outside the
// request timeout and compression so they can stay open.
func (s *Server) setupRoutes(devMode bool) {
	s.router.Get("/api/ml/train/progress", s.handleProgressSSE)
	s.router.Get("/api/ml/train/progress/ws", s.handleProgressWS)

	s.router.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		if !devMode {
			r.Use(middleware.Compress(5))
		}

		r.Get("/", s.handleRoot)
		r.Get("/health", s.handleHealth)

		r.Route("/api/ml", func(r chi.Router) {
			r.Get("/health", s.handleMLHealth)

			r.Post("/train", s.handleTrain)
			r.Get("/train/status", s.handleTrainStatus)

			r.Route("/predict", func(r chi.Router) {
				r.Post("/risk", s.handlePredictRisk)
				r.Post("/hotspots", s.handlePredictHotspots)
				r.Post("/entity", s.handlePredictEntity)
				r.Post("/tourist", s.handlePredictEntity)
				r.Post("/batch", s.handlePredictBatch)
			})
		})
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

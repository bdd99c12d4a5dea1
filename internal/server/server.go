package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/memoraos/neuralmap/internal/engine"
	"github.com/memoraos/neuralmap/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Prober reports whether the graph backend answers.
type Prober interface {
	Healthy(ctx context.Context) bool
}

// Options wires a Server. DB, Provider and Gatherer are optional.
type Options struct {
	Scene          *engine.Scene
	DB             *store.DB
	Provider       Prober
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	Version        string
	Log            *zap.Logger
}

// Server is the neuralmap HTTP API server.
type Server struct {
	scene    *engine.Scene
	db       *store.DB
	provider Prober
	gatherer prometheus.Gatherer
	origins  []string
	version  string
	started  time.Time
	log      *zap.Logger
	upgrader websocket.Upgrader
	router   chi.Router
}

// New creates a Server around a running scene.
func New(opts Options) *Server {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	s := &Server{
		scene:    opts.Scene,
		db:       opts.DB,
		provider: opts.Provider,
		gatherer: opts.Gatherer,
		origins:  opts.AllowedOrigins,
		version:  opts.Version,
		started:  time.Now(),
		log:      opts.Log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(s.log))
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/frame", s.handleFrame)
		r.Post("/events", s.handleEvent)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/snapshots", s.handleListSnapshots)
		r.Get("/snapshots/{snapshotID}", s.handleGetSnapshot)
		r.Get("/ws", s.handleWebSocket)
	})

	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}

	r.Get("/*", spaHandler())

	s.router = r
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, o := range s.origins {
		if o == "*" || o == origin {
			return true
		}
	}
	// Same host is always fine.
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// requestLogger logs one line per request at debug level, or warn for 5xx.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			}
			if ww.Status() >= http.StatusInternalServerError {
				log.Warn("request failed", fields...)
				return
			}
			log.Debug("request", fields...)
		})
	}
}

package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/BioHazard786/huddle/internal/directory"
	"github.com/BioHazard786/huddle/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the relay's HTTP surface.
type Options struct {
	// AllowedOrigins lists browser origins allowed to open the websocket.
	// "*" or an empty list allows all.
	AllowedOrigins []string

	// Gatherer backs /metrics. Nil disables the endpoint.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status       string `json:"status"`
	Rooms        int    `json:"rooms"`
	Participants int    `json:"participants"`
	Version      string `json:"version"`
}

// NewRouter builds the relay's routes around hub.
func NewRouter(hub *directory.Hub, opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins(opts.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler(hub))
	r.Get("/ws", ServeWs(hub, newUpgrader(opts.AllowedOrigins), logger))
	if opts.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}

func newUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  64 * 1024,
		WriteBufferSize: 64 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// Non-browser clients (the CLI) send no origin.
			if origin == "" || allowAll(allowed) {
				return true
			}
			return slices.Contains(allowed, origin)
		},
	}
}

// ServeWs returns an http.HandlerFunc that handles websocket requests.
func ServeWs(hub *directory.Hub, upgrader websocket.Upgrader, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("failed to upgrade connection", "error", err)
			return
		}

		directory.NewClient(hub, conn, logger).Serve()
	}
}

func healthHandler(hub *directory.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		resp := HealthResponse{Status: "ok", Version: version.Version}
		status := http.StatusOK

		stats, err := hub.Stats(ctx)
		if err != nil {
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
		}
		resp.Rooms = stats.Rooms
		resp.Participants = stats.Participants

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(resp)
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func allowAll(allowed []string) bool {
	return len(allowed) == 0 || slices.Contains(allowed, "*")
}

func corsOrigins(allowed []string) []string {
	if allowAll(allowed) {
		return []string{"*"}
	}
	return allowed
}

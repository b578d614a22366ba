package server

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/wordrush/internal/auth"
	"github.com/gokatarajesh/wordrush/internal/config"
	"github.com/gokatarajesh/wordrush/internal/logging"
	httperrors "github.com/gokatarajesh/wordrush/pkg/http/errors"
)

// Routes mounts a feature's endpoints.
type Routes interface {
	Register(mux *http.ServeMux)
}

// PingFunc checks one upstream dependency.
type PingFunc func(ctx context.Context) error

// Deps are the collaborators the base routes need.
type Deps struct {
	Verifier auth.TokenVerifier
	Gatherer prometheus.Gatherer
	// Pings are checked by /v1/ping, keyed by dependency name.
	Pings map[string]PingFunc
}

// NewHTTPServer wires base routes (health, metrics, ping) plus the feature
// routes behind CORS, request ids and bearer auth.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, deps Deps, routes ...Routes) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	mux.HandleFunc("GET /v1/ping", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pingDependencies(ctx, deps.Pings); err != nil {
			logging.FromContext(r.Context()).Error().Err(err).Msg("dependency ping failed")
			httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, "upstream error")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	for _, r := range routes {
		r.Register(mux)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   cfg.CORS.AllowedMethods,
		AllowedHeaders:   cfg.CORS.AllowedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           cfg.CORS.MaxAge,
	})

	var handler http.Handler = mux
	if deps.Verifier != nil {
		handler = auth.AuthMiddleware(deps.Verifier, logger)(handler)
	}
	handler = logging.RequestID(logger)(handler)
	handler = c.Handler(handler)

	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

type pingError struct {
	name string
	err  error
}

func (e *pingError) Error() string { return e.name + ": " + e.err.Error() }
func (e *pingError) Unwrap() error { return e.err }

func pingDependencies(ctx context.Context, pings map[string]PingFunc) error {
	for name, ping := range pings {
		if ping == nil {
			continue
		}
		if err := ping(ctx); err != nil {
			return &pingError{name: name, err: err}
		}
	}
	return nil
}

package server

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/dsa-logbook/internal/auth"
	"github.com/gokatarajesh/dsa-logbook/internal/auth/jwt"
	"github.com/gokatarajesh/dsa-logbook/internal/config"
	"github.com/gokatarajesh/dsa-logbook/internal/logging"
	"github.com/gokatarajesh/dsa-logbook/internal/question"
	httperrors "github.com/gokatarajesh/dsa-logbook/pkg/http/errors"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the API routes need. Tokens and Pingers may be empty.
type Deps struct {
	Questions *question.HTTPHandler
	Tokens    *jwt.Manager
	Pingers   map[string]Pinger
	Metrics   http.Handler
}

// NewHTTPServer wires health, metrics and logbook routes.
func NewHTTPServer(cfg *config.App, logger zerolog.Logger, deps Deps) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: NewHandler(cfg, logger, deps),
	}
}

// NewHandler builds the routed, middleware-wrapped handler tree.
func NewHandler(cfg *config.App, logger zerolog.Logger, deps Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	metrics := deps.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("/metrics", metrics)

	mux.HandleFunc("/v1/ping", func(w http.ResponseWriter, r *http.Request) {
		if name, err := pingDependencies(r.Context(), deps.Pingers); err != nil {
			l := logging.FromContextOr(r.Context(), logger)
			l.Error().Err(err).Str("dependency", name).Msg("dependency ping failed")
			httperrors.RespondBadGateway(w, httperrors.ErrCodeUpstreamError, "Upstream dependency unavailable")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"pong":true}`))
	})

	if deps.Questions != nil {
		guard := auth.RequireOwnerForWrites(deps.Tokens, logger)
		questions := guard(http.HandlerFunc(deps.Questions.HandleQuestions))
		fetchTitle := guard(http.HandlerFunc(deps.Questions.FetchTitle))

		// The /api prefix mirrors the paths used by the web client.
		for _, prefix := range []string{"", "/api"} {
			mux.Handle(prefix+"/questions", questions)
			mux.Handle(prefix+"/fetch-title", fetchTitle)
		}
	}

	var h http.Handler = mux
	h = corsMiddleware(cfg.CORS)(h)
	h = recoverMiddleware(h)
	h = logging.Middleware(logger)(h)
	return h
}

func pingDependencies(ctx context.Context, pingers map[string]Pinger) (string, error) {
	for name, p := range pingers {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			return name, err
		}
	}
	return "", nil
}

func corsMiddleware(cfg config.CORS) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	wildcard := false
	for _, o := range cfg.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			wildcard = true
		}
		allowed[o] = struct{}{}
	}
	methods := strings.Join(cfg.AllowedMethods, ", ")
	headers := strings.Join(cfg.AllowedHeaders, ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			_, ok := allowed[origin]
			if ok || wildcard {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				// Credentials are only shared with explicitly listed origins.
				if cfg.AllowCredentials && ok {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				l := logging.FromContext(r.Context())
				l.Error().Interface("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				httperrors.RespondInternalError(w, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

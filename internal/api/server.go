package api

import (
	"net/http"
	"time"

	"github.com/oriys/airgate/internal/airquality"
	"github.com/oriys/airgate/internal/logging"
	"github.com/oriys/airgate/internal/observability"
)

// ServerConfig contains dependencies for the HTTP server.
type ServerConfig struct {
	Resolver       *airquality.Resolver
	Lookups        *logging.Logger
	AllowedOrigins []string
	Now            func() time.Time
}

// NewHandler builds the routed handler wrapped with the middleware chain.
func NewHandler(cfg ServerConfig) http.Handler {
	mux := http.NewServeMux()

	h := &Handler{
		Resolver: cfg.Resolver,
		Lookups:  cfg.Lookups,
		Now:      cfg.Now,
	}
	h.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = observability.HTTPMiddleware(handler)
	if len(cfg.AllowedOrigins) > 0 {
		handler = CORSMiddleware(cfg.AllowedOrigins)(handler)
	}
	handler = RequestIDMiddleware(handler)
	return handler
}

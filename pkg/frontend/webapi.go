package frontend

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"time"

	"github.com/arl/statsviz"

	"github.com/lightldap/lightldap/internal/monitoring"
	"github.com/lightldap/lightldap/pkg/assets"
)

// NewRouter registers the status page, metrics, expvar and (optionally)
// statsviz endpoints on a fresh mux.
func NewRouter(opts ...Option) *http.ServeMux {
	options := newOptions(opts...)
	log := options.Logger

	router := http.NewServeMux()

	assets.NewAPI(log).RegisterEndpoints(router)
	(&statusAPI{report: options.Status, logger: log}).RegisterEndpoints(router)
	monitoring.NewAPI(log).RegisterEndpoints(router)
	router.Handle("/debug/vars", expvar.Handler())

	if options.Config.Internals {
		if err := statsviz.Register(
			router,
			statsviz.Root("/internals"),
			statsviz.SendFrequency(1000*time.Millisecond),
		); err != nil {
			log.Error().Err(err).Msg("could not register internals")
		}
	}

	return router
}

// RunAPI serves the web API until the context is done.
func RunAPI(opts ...Option) {
	options := newOptions(opts...)
	log := options.Logger
	cfg := options.Config

	monitoring.NewCollector(&log)

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           NewRouter(opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-options.Context.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	var err error
	if cfg.TLS {
		log.Info().Str("address", cfg.Listen).Msg("Starting HTTPS server")
		err = srv.ListenAndServeTLS(cfg.Cert, cfg.Key)
	} else {
		log.Info().Str("address", cfg.Listen).Msg("Starting HTTP server")
		err = srv.ListenAndServe()
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("error starting API server")
	}
}

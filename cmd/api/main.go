package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/terminally-online/warden/internal/api"
	"github.com/terminally-online/warden/internal/config"
	"github.com/terminally-online/warden/internal/factory"
	"github.com/terminally-online/warden/internal/logger"
	"github.com/terminally-online/warden/internal/metrics"
)

func main() {
	cfgPath := flag.String("config", "warden.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Resolve(*cfgPath, isFlagSet("config"))
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("failed to load config")
	}

	flags := &config.Flags{}
	log, err := logger.New(logger.Options{
		Service: "warden-api",
		Level:   cfg.GetLogLevel(flags),
		Format:  cfg.GetLogFormat(flags),
	})
	if err != nil {
		stderrLog := zerolog.New(os.Stderr)
		stderrLog.Fatal().Err(err).Msg("failed to create logger")
	}

	if err := run(cfg, flags, log); err != nil {
		log.Fatal().Stack().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, flags *config.Flags, log zerolog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	requestTimeout, err := cfg.GetRequestTimeout()
	if err != nil {
		return err
	}
	rateWindow, err := cfg.GetRateWindow()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	sess, closeSession, err := factory.NewSession(ctx, cfg, flags, log, m)
	if err != nil {
		return err
	}
	defer closeSession()

	// A failed first load is reported through /state; the server still
	// starts so the directory can be reloaded once the provider recovers.
	if err := sess.Mount(ctx); err != nil {
		log.Warn().Err(err).Msg("initial directory load failed")
	}

	limiter := api.NewRateLimiter(cfg.GetRateLimit(), rateWindow, clockwork.NewRealClock())
	defer limiter.Stop()

	handler := api.NewHandler(sess, reg, requestTimeout, log)

	server := &http.Server{
		Addr:         ":" + cfg.GetPort(),
		Handler:      corsMiddleware(cfg.GetAllowedOrigins())(limiter.Middleware(handler)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: requestTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Str("provider", cfg.GetProvider(flags)).Msg("starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
	return nil
}

func corsMiddleware(allowedOrigins string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if allowedOrigins == "*" {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "86400")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

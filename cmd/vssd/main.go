/*
vssd is the VSS server process. It takes exactly one positional
argument, the path to a YAML config file, and runs until SIGINT or
SIGTERM. Startup fails loudly (non-zero exit) if the config can't be
loaded, the backing store can't be opened, or the listener can't bind.
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/warp/vss/internal/acceptor"
	"github.com/warp/vss/internal/api"
	"github.com/warp/vss/internal/auth"
	"github.com/warp/vss/internal/config"
	"github.com/warp/vss/internal/errreport"
	"github.com/warp/vss/internal/metrics"
	"github.com/warp/vss/internal/store/sqlite"
	"github.com/warp/vss/internal/tracing"
	"github.com/warp/vss/internal/vsslog"
)

func main() {
	cmd := &cobra.Command{
		Use:   "vssd <config-file>",
		Short: "VSS server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
		SilenceUsage: true,
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := vsslog.Init(vsslog.Config{
		Level:      vsslog.Level(cfg.LogLevel),
		JSONOutput: cfg.LogJSON,
		OutputPath: cfg.LogOutputPath,
	}); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	logger := vsslog.WithComponent("vssd")

	// Sentry comes up before anything that can fail a request, so every
	// error branch from here on can report.
	if err := errreport.Init(errreport.Config{
		DSN:         cfg.Sentry.DSN,
		Environment: cfg.Sentry.Environment,
		SampleRate:  cfg.Sentry.SampleRate,
	}); err != nil {
		return fmt.Errorf("init error reporting: %w", err)
	}

	ctx := context.Background()
	tracingShutdown, err := tracing.Init(ctx, tracing.Config{
		Enabled:     cfg.TracingEnabled,
		Endpoint:    cfg.TracingEndpoint,
		ServiceName: cfg.TracingServiceName,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	engine, err := sqlite.New(cfg.DatabaseDSN, cfg.MaxOpenConns)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	verifier, err := buildVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}

	handler := api.NewHandler(engine, verifier)
	router := api.NewRouter(handler, logger)

	var dispatcher http.Handler = router
	if cfg.TracingEnabled {
		dispatcher = tracing.Wrap(router, "vss")
	}

	if cfg.MetricsEnabled {
		startMetricsListener(cfg.MetricsAddr, logger)
	}

	shutdownHooks := func(ctx context.Context) error {
		errreport.Flush(2 * time.Second)
		return tracingShutdown(ctx)
	}

	acc, err := acceptor.New(
		cfg.ListenAddr,
		dispatcher,
		acceptor.TLSConfig{CertFile: cfg.TLSCertFile, KeyFile: cfg.TLSKeyFile, CAFile: cfg.TLSCAFile},
		logger,
		shutdownHooks,
	)
	if err != nil {
		return fmt.Errorf("init acceptor: %w", err)
	}

	logger.Info().Str("listen_addr", cfg.ListenAddr).Msg("starting vssd")
	return acc.Run()
}

// buildVerifier loads key material from disk and hands it to the auth
// factory; a missing or unreadable key file fails startup.
func buildVerifier(cfg config.AuthConfig) (auth.Verifier, error) {
	factoryCfg := auth.Config{Scheme: cfg.Scheme}

	if cfg.BearerPublicKeyFile != "" {
		raw, err := os.ReadFile(cfg.BearerPublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read bearer public key: %w", err)
		}
		factoryCfg.BearerPublicKeyPEM = raw
	}

	if len(cfg.SignatureKeyFiles) > 0 {
		keys := make(map[string][]byte, len(cfg.SignatureKeyFiles))
		for keyID, path := range cfg.SignatureKeyFiles {
			raw, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("read signature key %q: %w", keyID, err)
			}
			keys[keyID] = raw
		}
		factoryCfg.SignatureKeysPEM = keys
	}

	return auth.New(factoryCfg)
}

// startMetricsListener serves /metrics on its own address, off the main
// request path.
func startMetricsListener(addr string, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error().Err(err).Msg("metrics listener stopped")
		}
	}()
}

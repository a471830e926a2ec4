/*
Package acceptor is the Connection Acceptor: binds a listener, serves
h until SIGINT/SIGTERM, and lets in-flight requests drain before
returning. SIGHUP re-opens the log file in place without interrupting
the listener, grounded on the logger's own Reopen contract.

TLS, when configured, is served by the same single http.Server via
ListenAndServeTLS, using a certificate loaded at startup and an optional
client-CA pool for mutual TLS; otherwise it serves plaintext.
*/
package acceptor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/warp/vss/internal/vsslog"
)

// TLSConfig names the certificate material for HTTPS. Zero value means
// "serve plaintext."
type TLSConfig struct {
	CertFile string
	KeyFile  string
	CAFile   string // optional; enables mutual TLS when set
}

// Acceptor owns the listening http.Server and its shutdown lifecycle.
type Acceptor struct {
	server   *http.Server
	tls      TLSConfig
	logger   zerolog.Logger
	shutdown func(context.Context) error // tracing/error-report flush hooks, etc.
}

// New builds an Acceptor serving handler on addr.
func New(addr string, handler http.Handler, tlsCfg TLSConfig, logger zerolog.Logger, shutdown func(context.Context) error) (*Acceptor, error) {
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if tlsCfg.CertFile != "" {
		tlsConf, err := buildTLSConfig(tlsCfg)
		if err != nil {
			return nil, err
		}
		server.TLSConfig = tlsConf
	}

	if shutdown == nil {
		shutdown = func(context.Context) error { return nil }
	}
	return &Acceptor{server: server, tls: tlsCfg, logger: logger, shutdown: shutdown}, nil
}

func buildTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("acceptor: load TLS certificate: %w", err)
	}
	tlsConf := &tls.Config{Certificates: []tls.Certificate{cert}}

	if cfg.CAFile != "" {
		caBytes, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("acceptor: read client CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("acceptor: no certificates found in %s", cfg.CAFile)
		}
		tlsConf.ClientCAs = pool
		tlsConf.ClientAuth = tls.RequireAndVerifyClientCert
	}
	return tlsConf, nil
}

// Run serves until SIGINT/SIGTERM, then drains in-flight requests and
// returns. SIGHUP triggers a log reopen without affecting the listener.
func (a *Acceptor) Run() error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	serveErr := make(chan error, 1)
	go func() {
		var err error
		if a.tls.CertFile != "" {
			err = a.server.ListenAndServeTLS("", "")
		} else {
			err = a.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()

	for {
		select {
		case sig := <-signals:
			switch sig {
			case syscall.SIGHUP:
				if err := vsslog.Reopen(); err != nil {
					a.logger.Error().Err(err).Msg("log reopen failed")
				}
				continue
			default:
				return a.gracefulShutdown()
			}
		case err, ok := <-serveErr:
			if !ok {
				return nil
			}
			return fmt.Errorf("acceptor: serve: %w", err)
		}
	}
}

func (a *Acceptor) gracefulShutdown() error {
	shutdownID := uuid.New().String()
	a.logger.Info().Str("shutdown_id", shutdownID).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("acceptor: shutdown: %w", err)
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Str("shutdown_id", shutdownID).Msg("shutdown hooks failed")
	}
	a.logger.Info().Str("shutdown_id", shutdownID).Msg("stopped")
	return nil
}

/*
Package errreport forwards error events to Sentry.

PURPOSE:
  One process-wide client, configured at startup. Every capture helper is
  a no-op until Init has run with a non-empty DSN, so callers report
  unconditionally and deployment decides whether anything leaves the
  process.

LEVELS:
  Internal failures are captured at error level; authentication failures
  and rejected requests are warnings. A missing key is a normal client
  outcome and is never reported.

SEE ALSO:
  - internal/api/handlers.go: captures on the dispatcher's error paths
  - cmd/vssd/main.go: Init at startup, Flush on shutdown
*/
package errreport

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// Config enables event reporting when DSN is non-empty.
type Config struct {
	DSN         string
	Environment string
	// SampleRate is the fraction of events to send, in (0, 1]. Zero means
	// the SDK default of 1.
	SampleRate float64
}

// Init configures the global Sentry client. An empty DSN leaves reporting
// disabled; every capture helper then does nothing.
func Init(cfg Config) error {
	if cfg.DSN == "" {
		return nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("errreport: init sentry: %w", err)
	}
	return nil
}

// Warningf reports a formatted message at warning level.
func Warningf(format string, args ...any) {
	message(sentry.LevelWarning, fmt.Sprintf(format, args...))
}

// Errorf reports a formatted message at error level.
func Errorf(format string, args ...any) {
	message(sentry.LevelError, fmt.Sprintf(format, args...))
}

// CaptureError reports err as an exception event.
func CaptureError(err error) {
	sentry.CaptureException(err)
}

func message(level sentry.Level, msg string) {
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		sentry.CaptureMessage(msg)
	})
}

// Flush drains buffered events, bounded by timeout. Call once on
// shutdown so events reported just before exit aren't lost.
func Flush(timeout time.Duration) {
	sentry.Flush(timeout)
}

package server

import "github.com/getsentry/sentry-go"

// ErrorReporter forwards unexpected failures to an error tracking service.
type ErrorReporter interface {
	Report(err error, operation string)
}

type noopReporter struct{}

func (noopReporter) Report(error, string) {}

type sentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter reports through the given Sentry hub.
func NewSentryReporter(hub *sentry.Hub) ErrorReporter {
	return &sentryReporter{hub: hub}
}

func (r *sentryReporter) Report(err error, operation string) {
	if err == nil || r.hub == nil {
		return
	}
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("operation", operation)
		hub.CaptureException(err)
	})
}

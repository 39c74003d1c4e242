package main

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/lixenwraith/vi-motion/engine"
)

// faultReporter forwards recovered entity panics to Sentry when a DSN is set
type faultReporter struct {
	hub *sentry.Hub
}

func newFaultReporter(dsn, simID string) (*faultReporter, error) {
	if dsn == "" {
		return &faultReporter{}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{Dsn: dsn, Release: "vi-motion"}); err != nil {
		return nil, err
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("sim", simID)
	})
	return &faultReporter{hub: hub}, nil
}

func (r *faultReporter) report(f engine.Fault) {
	if r.hub == nil {
		return
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("entity", f.Entity.String())
		r.hub.CaptureException(f.Err)
	})
}

func (r *faultReporter) flush() {
	if r.hub != nil {
		r.hub.Flush(2 * time.Second)
	}
}

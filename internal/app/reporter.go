package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/core"
)

// Reporter periodically logs hub sizes.
type Reporter struct {
	cron *cron.Cron
	hub  *core.Hub
	log  *zerolog.Logger
}

// NewReporter schedules the stats job. An empty spec disables reporting.
func NewReporter(hub *core.Hub, spec string, logger *zerolog.Logger) (*Reporter, error) {
	r := &Reporter{hub: hub, log: logger}
	if spec == "" {
		return r, nil
	}

	r.cron = cron.New()
	if _, err := r.cron.AddFunc(spec, r.report); err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	return r, nil
}

// Start begins running scheduled reports in the background.
func (r *Reporter) Start() {
	if r.cron != nil {
		r.cron.Start()
	}
}

// Stop halts the schedule and waits for a running report to finish.
func (r *Reporter) Stop() {
	if r.cron != nil {
		<-r.cron.Stop().Done()
	}
}

func (r *Reporter) report() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	st, err := r.hub.Stats(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("stats unavailable")
		return
	}
	r.log.Info().
		Int("messages", st.Messages).
		Int("waiters", st.Waiters).
		Int("sockets", st.Sockets).
		Msg("relay stats")
}

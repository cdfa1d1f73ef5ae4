package story

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// defaultSweepSpec runs the expiry sweep every ten minutes.
const defaultSweepSpec = "*/10 * * * *"

const sweepTimeout = 30 * time.Second

// Sweeper runs the periodic story expiry job.
type Sweeper struct {
	log  *slog.Logger
	svc  *Service
	cron *cron.Cron
}

// NewSweeper schedules the expiry sweep. Pass an empty spec to use the
// default ten-minute cadence.
func NewSweeper(log *slog.Logger, svc *Service, spec string) (*Sweeper, error) {
	if log == nil {
		log = slog.Default()
	}
	if spec == "" {
		spec = defaultSweepSpec
	}

	sw := &Sweeper{log: log, svc: svc, cron: cron.New()}
	if _, err := sw.cron.AddFunc(spec, sw.run); err != nil {
		return nil, err
	}
	return sw, nil
}

// Start begins running the schedule in its own goroutine.
func (sw *Sweeper) Start() {
	sw.cron.Start()
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (sw *Sweeper) Stop() {
	ctx := sw.cron.Stop()
	<-ctx.Done()
}

func (sw *Sweeper) run() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := sw.svc.Sweep(ctx); err != nil {
		sw.log.ErrorContext(ctx, "story sweep failed", slog.String("error", err.Error()))
	}
}

// Package schedule fires ingestion runs on a cron cadence.
package schedule

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Daemon fires a job on a cron cadence. Ticks never overlap: one that
// lands while the previous run is still going is skipped.
type Daemon struct {
	spec string
	job  Job
	cron *cron.Cron

	mu      sync.Mutex
	running bool
}

func New(spec string, job Job) *Daemon {
	return &Daemon{spec: spec, job: job, cron: cron.New()}
}

// Start validates the cron spec, optionally fires the job once right
// away, then keeps firing on the cadence until ctx is canceled. It
// blocks until shutdown, waiting out any run still in flight.
func (d *Daemon) Start(ctx context.Context, runOnStart bool) error {
	if _, err := d.cron.AddFunc(d.spec, func() { d.fire(ctx) }); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", d.spec, err)
	}

	log.Printf("Schedule: running on %q", d.spec)
	if runOnStart {
		d.fire(ctx)
	}
	d.cron.Start()

	<-ctx.Done()
	stopped := d.cron.Stop()
	<-stopped.Done()
	return nil
}

func (d *Daemon) fire(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		log.Printf("Schedule: previous run still going, skipping tick")
		return
	}
	d.running = true
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if err := d.job(ctx); err != nil {
		log.Printf("Schedule: run failed: %v", err)
	}
}

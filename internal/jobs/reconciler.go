package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/telavista/visit-server-go/internal/repository"
	"github.com/telavista/visit-server-go/internal/service"
)

// Reconciler periodically sweeps the encounter table: it force-ends
// encounters whose participants have gone silent and purges expired
// handoff tokens. The sweep is safe to run on any cadence.
type Reconciler struct {
	lifecycle   *service.LifecycleService
	handoffRepo repository.HandoffRepository
	interval    time.Duration
	done        chan struct{}
}

func NewReconciler(
	lifecycle *service.LifecycleService,
	handoffRepo repository.HandoffRepository,
	interval time.Duration,
) *Reconciler {
	return &Reconciler{
		lifecycle:   lifecycle,
		handoffRepo: handoffRepo,
		interval:    interval,
		done:        make(chan struct{}),
	}
}

func (r *Reconciler) Start() {
	go r.run()
	log.Info().Dur("interval", r.interval).Msg("stale reconciler started")
}

func (r *Reconciler) Stop() {
	close(r.done)
	log.Info().Msg("stale reconciler stopped")
}

func (r *Reconciler) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.sweep()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

func (r *Reconciler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := r.lifecycle.TidyStale(ctx, time.Now()); err != nil {
		log.Error().Err(err).Msg("failed to reconcile stale encounters")
	}

	count, err := r.handoffRepo.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to purge handoff tokens")
	} else if count > 0 {
		log.Info().Int64("count", count).Msg("purged expired handoff tokens")
	}
}

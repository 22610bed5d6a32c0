package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/memeforge/internal/logging"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/repomanager"
)

// Step is a stage of one in-flight generation.
type Step int

const (
	StepPending Step = iota
	StepSafetyChecked
	StepGenerated
	StepCaptioned
	StepUploaded
	StepCommitted
	StepRolledBack
)

func (s Step) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepSafetyChecked:
		return "safety_checked"
	case StepGenerated:
		return "generated"
	case StepCaptioned:
		return "captioned"
	case StepUploaded:
		return "uploaded"
	case StepCommitted:
		return "committed"
	case StepRolledBack:
		return "rolled_back"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var sagaTransitions = map[Step][]Step{
	StepPending:       {StepSafetyChecked},
	StepSafetyChecked: {StepGenerated},
	StepGenerated:     {StepCaptioned},
	StepCaptioned:     {StepUploaded, StepRolledBack},
	StepUploaded:      {StepCommitted, StepRolledBack},
}

// generationSaga tracks a single generation. Advancing out of order is a
// programming error and panics.
type generationSaga struct {
	step Step
}

func (g *generationSaga) advance(to Step) {
	for _, next := range sagaTransitions[g.step] {
		if next == to {
			g.step = to
			return
		}
	}
	panic(fmt.Sprintf("generation saga: invalid transition %s -> %s", g.step, to))
}

const reconcileBatch = 100

// Reconciler removes objects left behind by generations that crashed between
// upload and commit.
type Reconciler struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	log         logging.Logger
	now         func() time.Time
}

func NewReconciler(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, log logging.Logger) *Reconciler {
	return &Reconciler{
		db:          db,
		repomanager: m,
		store:       store,
		log:         log.With("module", "reconciler"),
		now:         time.Now,
	}
}

// ReconcileOrphans deletes the objects of sagas left open for longer than
// grace and marks them rolled back. It returns how many were cleaned.
// Objects that fail to delete stay open and are retried on the next run.
func (r *Reconciler) ReconcileOrphans(ctx context.Context, grace time.Duration) (int, error) {
	if grace <= 0 {
		return 0, fmt.Errorf("grace period must be positive, got %s", grace)
	}

	repo := r.repomanager.Sagas(r.db)
	before := r.now().Add(-grace)
	cleaned := 0

	for {
		stale, err := repo.ListStale(ctx, before, reconcileBatch)
		if err != nil {
			return cleaned, err
		}

		progress := 0
		for _, s := range stale {
			if err := r.store.Delete(ctx, s.StorageKey); err != nil {
				r.log.Warn(ctx, "orphan delete failed", "meme_id", s.MemeID, "key", s.StorageKey, "error", err)
				continue
			}
			if err := repo.SetState(ctx, s.MemeID, models.SagaRolledBack); err != nil {
				return cleaned, err
			}
			progress++
		}
		cleaned += progress
		orphansCleaned.Add(float64(progress))

		if len(stale) < reconcileBatch || progress == 0 {
			break
		}
	}

	if cleaned > 0 {
		r.log.Info(ctx, "orphans reconciled", "cleaned", cleaned)
	}
	return cleaned, nil
}

// Run calls ReconcileOrphans every interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context, interval, grace time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := r.ReconcileOrphans(ctx, grace); err != nil && ctx.Err() == nil {
				r.log.Error(ctx, "reconcile failed", "error", err)
			}
		}
	}
}

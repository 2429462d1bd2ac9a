package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/veritas/internal/cluster"
	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/pipeline"
)

// Task names
const (
	TaskCluster          = "cluster"
	TaskReverify         = "reverify"
	TaskPriorityReverify = "priority-reverify"
)

// ClusterRunner runs one clustering pass
type ClusterRunner interface {
	Run(ctx context.Context) (*cluster.RunSummary, error)
}

// ClusterTask runs a clustering pass and reports the claims it looked at
type ClusterTask struct {
	runner ClusterRunner
}

func NewClusterTask(r ClusterRunner) *ClusterTask {
	return &ClusterTask{runner: r}
}

func (t *ClusterTask) Name() string { return TaskCluster }

func (t *ClusterTask) Run(ctx context.Context) (int, error) {
	summary, err := t.runner.Run(ctx)
	if err != nil {
		return 0, err
	}
	return summary.ClaimsProcessed, nil
}

// ReviewStore is the persistence port of the re-verification tasks
type ReviewStore interface {
	FindClaimsForReview(ctx context.Context, q model.ReviewQuery) ([]model.Claim, error)
	UpdateClaim(ctx context.Context, id string, patch model.ClaimPatch) error
}

// Verifier produces a fresh verdict for a claim text
type Verifier interface {
	Verify(ctx context.Context, text string, opts pipeline.Options) (*model.Result, error)
}

// ReverifyOptions tune a re-verification task
type ReverifyOptions struct {
	Window   time.Duration // only claims created within Window; zero means any age
	Limit    int
	Delay    time.Duration // pause between claims
	Priority bool          // only urgent, viral or high-view claims
	MinViews int
}

// ReverifyTask re-runs verification on claims that never reached a firm
// verdict and updates them in place.
type ReverifyTask struct {
	store    ReviewStore
	verifier Verifier
	opts     ReverifyOptions
	log      logger.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewReverifyTask creates the periodic re-verification task
func NewReverifyTask(store ReviewStore, verifier Verifier, opts ReverifyOptions, log logger.Logger) *ReverifyTask {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	return &ReverifyTask{
		store:    store,
		verifier: verifier,
		opts:     opts,
		log:      logger.OrNop(log).With(logger.Component("reverify")),
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// NewPriorityTask creates the re-verification task restricted to urgent, viral
// and high-view claims
func NewPriorityTask(store ReviewStore, verifier Verifier, opts ReverifyOptions, log logger.Logger) *ReverifyTask {
	opts.Priority = true
	return NewReverifyTask(store, verifier, opts, log)
}

func (t *ReverifyTask) Name() string {
	if t.opts.Priority {
		return TaskPriorityReverify
	}
	return TaskReverify
}

// Run re-verifies each due claim and reports how many were updated.
// Per-claim failures are joined; the remaining claims still run.
func (t *ReverifyTask) Run(ctx context.Context) (int, error) {
	q := model.ReviewQuery{
		Statuses: []model.ClaimStatus{model.StatusUnverified, model.StatusPending},
		Priority: t.opts.Priority,
		MinViews: t.opts.MinViews,
		Limit:    t.opts.Limit,
	}
	if t.opts.Window > 0 {
		q.Since = t.now().Add(-t.opts.Window)
	}

	claims, err := t.store.FindClaimsForReview(ctx, q)
	if err != nil {
		return 0, fmt.Errorf("find claims for review: %w", err)
	}
	t.log.Debug("Claims due for re-verification", logger.Int("count", len(claims)), logger.Bool("priority", t.opts.Priority))

	updated := 0
	var errs []error
	for i, claim := range claims {
		if i > 0 && t.opts.Delay > 0 {
			if err := t.sleep(ctx, t.opts.Delay); err != nil {
				return updated, err
			}
		}
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		ok, err := t.reverify(ctx, claim)
		if err != nil {
			errs = append(errs, fmt.Errorf("claim %s: %w", claim.ID, err))
			continue
		}
		if ok {
			updated++
		}
	}
	return updated, errors.Join(errs...)
}

// reverify verifies one claim and patches it. A fallback result leaves the claim untouched.
func (t *ReverifyTask) reverify(ctx context.Context, claim model.Claim) (bool, error) {
	result, err := t.verifier.Verify(ctx, claim.Text, pipeline.Options{
		Category:  string(claim.Category),
		Language:  claim.Language,
		NoPersist: true,
		Metrics:   claim.Metrics,
	})
	if err != nil {
		return false, err
	}
	if result.Error != "" {
		t.log.Warn("Re-verification fell back, claim left unchanged",
			logger.String("claim", claim.ID), logger.String("error", result.Error))
		return false, nil
	}

	status := result.Assessment.Status()
	patch := model.ClaimPatch{
		Status:      &status,
		Verdict:     &result.Verdict,
		Confidence:  &result.Confidence,
		Explanation: &result.Explanation,
		Evidence:    append([]model.Evidence{}, result.Evidence...),
	}
	if err := t.store.UpdateClaim(ctx, claim.ID, patch); err != nil {
		return false, err
	}

	t.log.Info("Claim re-verified",
		logger.String("claim", claim.ID),
		logger.String("verdict", string(result.Verdict)),
		logger.Float64("confidence", result.Confidence))
	return true, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Package pipeline runs one claim through collection, preprocessing, retrieval,
// inference, formatting and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ppiankov/veritas/internal/collect"
	"github.com/ppiankov/veritas/internal/inference"
	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

// ErrEmptyClaim is the only error Verify returns
var ErrEmptyClaim = errors.New("claim text is empty")

// Stage names used for timings
const (
	StageCollection    = "collection"
	StagePreprocessing = "preprocessing"
	StageRetrieval     = "retrieval"
	StageInference     = "inference"
	StageFormatting    = "formatting"
	StagePersisted     = "persisted"
)

// EvidenceCollector gathers evidence for a claim
type EvidenceCollector interface {
	Collect(ctx context.Context, claim string) (*collect.Collection, error)
}

// ClaimSaver persists verified claims
type ClaimSaver interface {
	SaveClaim(ctx context.Context, c *model.Claim) error
}

// Options tune one verification
type Options struct {
	Category  string
	Language  string
	AIOnly    bool // skip collection and run only the generative tier
	NoPersist bool
	Metrics   model.Metrics
}

// RunContext is the working state of one verification
type RunContext struct {
	Claim        string
	CleanedClaim string
	Category     model.Category
	Collected    []model.Evidence
	Cleaned      []model.Evidence
	Retrieved    []model.Evidence
	Breakdown    map[string]int
	Outcome      inference.Outcome
	Timings      map[string]time.Duration
	Steps        int
	start        time.Time
}

func (rc *RunContext) timeStage(name string, started time.Time) {
	rc.Timings[name] = time.Since(started)
	rc.Steps++
}

// Pipeline verifies claims
type Pipeline struct {
	collector EvidenceCollector
	engine    *inference.Engine
	store     ClaimSaver
	flags     model.FlagPolicy
	log       logger.Logger
	now       func() time.Time
}

// New creates a pipeline. collector and store may be nil: without a collector no
// evidence is gathered, without a store nothing is persisted.
func New(collector EvidenceCollector, engine *inference.Engine, store ClaimSaver, flags model.FlagPolicy, log logger.Logger) *Pipeline {
	return &Pipeline{
		collector: collector,
		engine:    engine,
		store:     store,
		flags:     flags,
		log:       logger.OrNop(log).With(logger.Component("pipeline")),
		now:       time.Now,
	}
}

// Verify runs the claim through every stage. Only blank input is rejected; any
// failure inside the stages produces a fallback result instead of an error.
func (p *Pipeline) Verify(ctx context.Context, text string, opts Options) (*model.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyClaim
	}

	rc := &RunContext{
		Claim:     text,
		Category:  model.NormalizeCategory(opts.Category),
		Breakdown: map[string]int{},
		Timings:   map[string]time.Duration{},
		start:     time.Now(),
	}

	if err := p.run(ctx, rc, opts); err != nil {
		p.log.Warn("Verification failed, returning fallback result",
			logger.String("claim", truncate(text, 80)), logger.Error(err))
		return fallbackResult(rc, err, p.now()), nil
	}

	started := time.Now()
	result := formatResult(rc, p.now())
	rc.timeStage(StageFormatting, started)

	if !opts.NoPersist && !opts.AIOnly && p.store != nil {
		started = time.Now()
		claim := p.claimRecord(rc, result, opts)
		if err := p.store.SaveClaim(ctx, claim); err != nil {
			p.log.Warn("Failed to persist claim", logger.Error(err))
		} else {
			result.ClaimID = claim.ID
			rc.timeStage(StagePersisted, started)
		}
	}

	finishSummary(rc, result)
	p.log.Info("Claim verified",
		logger.String("verdict", string(result.Verdict)),
		logger.Float64("confidence", result.Confidence),
		logger.String("method", result.Pipeline.VerificationMethod),
		logger.Int("evidence", len(result.Evidence)),
		logger.Duration("elapsed", time.Since(rc.start)))
	return result, nil
}

// run executes collection through inference
func (p *Pipeline) run(ctx context.Context, rc *RunContext, opts Options) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if opts.AIOnly {
		rc.CleanedClaim = similarity.Normalize(rc.Claim)
		started := time.Now()
		rc.Outcome = p.engine.Only(inference.SourceGenerative).Classify(ctx, inference.Request{
			Claim:    rc.Claim,
			Category: rc.Category,
		})
		rc.timeStage(StageInference, started)
		return ctx.Err()
	}

	started := time.Now()
	if p.collector != nil {
		collection, err := p.collector.Collect(ctx, rc.Claim)
		if err != nil {
			return fmt.Errorf("collect evidence: %w", err)
		}
		rc.Collected = collection.Evidence
		for method, n := range collection.Breakdown {
			rc.Breakdown[string(method)] = n
		}
	}
	rc.timeStage(StageCollection, started)

	started = time.Now()
	rc.CleanedClaim = similarity.Normalize(rc.Claim)
	rc.Cleaned = preprocessEvidence(rc.Collected)
	rc.timeStage(StagePreprocessing, started)

	started = time.Now()
	rc.Retrieved = retrieveEvidence(rc.CleanedClaim, rc.Cleaned)
	rc.timeStage(StageRetrieval, started)

	if err := ctx.Err(); err != nil {
		return err
	}

	started = time.Now()
	rc.Outcome = p.engine.Classify(ctx, inference.Request{
		Claim:    rc.CleanedClaim,
		Category: rc.Category,
		Evidence: rc.Retrieved,
	})
	rc.timeStage(StageInference, started)
	return nil
}

func (p *Pipeline) claimRecord(rc *RunContext, result *model.Result, opts Options) *model.Claim {
	c := &model.Claim{
		Text:        rc.Claim,
		CleanedText: rc.CleanedClaim,
		Language:    opts.Language,
		Category:    rc.Category,
		Status:      result.Assessment.Status(),
		Verdict:     result.Verdict,
		Confidence:  result.Confidence,
		Explanation: result.Explanation,
		Evidence:    result.Evidence,
		Metrics:     opts.Metrics,
		CreatedAt:   result.Timestamp,
	}
	p.flags.Apply(c)
	return c
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

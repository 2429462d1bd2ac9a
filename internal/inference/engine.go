package inference

import (
	"context"
	"fmt"

	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
)

// Engine asks its tiers in order and returns the first verdict
type Engine struct {
	tiers []Tier
	log   logger.Logger
}

// NewEngine creates an engine over the ordered tiers. Nil tiers are skipped.
func NewEngine(log logger.Logger, tiers ...Tier) *Engine {
	var live []Tier
	for _, t := range tiers {
		if t != nil {
			live = append(live, t)
		}
	}
	return &Engine{tiers: live, log: logger.OrNop(log).With(logger.Component("inference"))}
}

// NewDefaultEngine builds the standard tier chain: exact, fuzzy, classifier
// (when a command is configured), pattern, generative (when gen is non-nil).
func NewDefaultEngine(cfg model.InferenceConfig, gen StructuredGenerator, log logger.Logger) (*Engine, error) {
	facts := DefaultFacts()
	if cfg.FactsFile != "" {
		loaded, err := LoadFacts(cfg.FactsFile)
		if err != nil {
			return nil, err
		}
		facts = loaded
	}

	tiers := []Tier{NewExactTier(facts), NewFuzzyTier(facts)}
	if len(cfg.ClassifierCommand) > 0 {
		classifier, err := NewProcessClassifier(cfg.ClassifierCommand, cfg.ClassifierTimeout)
		if err != nil {
			return nil, fmt.Errorf("classifier: %w", err)
		}
		tiers = append(tiers, NewModelTier(classifier))
	}
	tiers = append(tiers, PatternTier{})
	if gen != nil {
		tiers = append(tiers, NewGenerativeTier(gen))
	}
	return NewEngine(log, tiers...), nil
}

// Tiers returns the tier names in order
func (e *Engine) Tiers() []string {
	names := make([]string, len(e.tiers))
	for i, t := range e.tiers {
		names[i] = t.Name()
	}
	return names
}

// Only returns an engine restricted to the named tiers, keeping their order
func (e *Engine) Only(names ...string) *Engine {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[n] = true
	}
	var tiers []Tier
	for _, t := range e.tiers {
		if want[t.Name()] {
			tiers = append(tiers, t)
		}
	}
	return &Engine{tiers: tiers, log: e.log}
}

// Classify never fails: tier errors are logged and treated as abstentions,
// and the fallback outcome is returned when nothing answers.
func (e *Engine) Classify(ctx context.Context, req Request) Outcome {
	for _, tier := range e.tiers {
		if ctx.Err() != nil {
			break
		}

		out, err := tier.TryClassify(ctx, req)
		if err != nil {
			e.log.Warn("Inference tier failed", logger.String("tier", tier.Name()), logger.Error(err))
			continue
		}
		if out == nil {
			continue
		}

		out.Confidence = model.ClampConfidence(out.Confidence)
		if out.Source == "" {
			out.Source = tier.Name()
		}
		e.log.Debug("Inference tier answered",
			logger.String("tier", tier.Name()),
			logger.String("assessment", string(out.Assessment)),
			logger.Float64("confidence", out.Confidence))
		return *out
	}
	return FallbackOutcome()
}

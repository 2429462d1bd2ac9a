package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/veritas/internal/model"
)

// Channel is one evidence source consulted by the Collector
type Channel interface {
	Name() string
	Collect(ctx context.Context, claim string) ([]model.Evidence, error)
}

// SimilarClaimFinder is the slice of the claim store the store channel needs
type SimilarClaimFinder interface {
	FindSimilarClaims(ctx context.Context, text string, minSimilarity float64) ([]model.Claim, error)
}

// maxReusedClaims bounds how many prior claims lend their evidence
const maxReusedClaims = 5

// StoreSource reuses evidence attached to previously verified, similar claims
type StoreSource struct {
	finder        SimilarClaimFinder
	minSimilarity float64
	now           func() time.Time
}

// NewStoreSource creates the store channel
func NewStoreSource(finder SimilarClaimFinder, minSimilarity float64) *StoreSource {
	if minSimilarity <= 0 {
		minSimilarity = 0.6
	}
	return &StoreSource{finder: finder, minSimilarity: minSimilarity, now: time.Now}
}

// Name identifies the channel
func (s *StoreSource) Name() string { return string(model.MethodDB) }

// Collect returns the evidence of similar stored claims, tagged with their claim ID
func (s *StoreSource) Collect(ctx context.Context, claim string) ([]model.Evidence, error) {
	claims, err := s.finder.FindSimilarClaims(ctx, claim, s.minSimilarity)
	if err != nil {
		return nil, fmt.Errorf("find similar claims: %w", err)
	}

	now := s.now()
	var out []model.Evidence
	used := 0
	for _, c := range claims {
		if len(c.Evidence) == 0 {
			continue
		}
		if used == maxReusedClaims {
			break
		}
		used++
		for _, ev := range c.Evidence {
			ev.ID = uuid.NewString()
			ev.Method = model.MethodDB
			ev.SourceClaimID = c.ID
			ev.RetrievedAt = now
			out = append(out, ev)
		}
	}
	return out, nil
}

// APISource is a third-party fact-check API (e.g. a claim review search service)
type APISource interface {
	Channel
}

// NoopAPISource is the API channel used when no API is configured
type NoopAPISource struct{}

// Name identifies the channel
func (NoopAPISource) Name() string { return string(model.MethodAPI) }

// Collect returns no evidence
func (NoopAPISource) Collect(ctx context.Context, claim string) ([]model.Evidence, error) {
	return nil, nil
}

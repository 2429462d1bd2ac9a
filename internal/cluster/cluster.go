// Package cluster groups verified claims that retell the same narrative.
//
// A pass loads a batch of unclustered claims, fingerprints them, lets each one
// join the closest active cluster when it is similar enough, and greedily
// groups the rest. Only groups with at least two members become clusters.
// Claims are never moved out of a cluster once assigned.
package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ppiankov/veritas/internal/logger"
	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

const (
	DefaultBatchSize = 100
	DefaultThreshold = 0.85

	// MinClusterSize is the smallest group that becomes a cluster
	MinClusterSize = 2
)

// Store is the persistence port used by a clustering pass
type Store interface {
	FindUnclusteredClaims(ctx context.Context, limit int) ([]model.Claim, error)
	UpdateClaim(ctx context.Context, id string, patch model.ClaimPatch) error
	ListClusters(ctx context.Context, f model.ClusterFilter) ([]model.Cluster, error)
	ClaimsInCluster(ctx context.Context, clusterID string) ([]model.Claim, error)
	SaveCluster(ctx context.Context, c *model.Cluster) error
	AssignClusterToClaims(ctx context.Context, ids []string, clusterID string) error
}

// Options tune a Clusterer
type Options struct {
	BatchSize int
	Threshold float64
}

// RunSummary reports what one pass did
type RunSummary struct {
	ClaimsProcessed int
	Fingerprinted   int
	ClustersCreated int
	ClustersGrown   int
	ClaimsAssigned  int
	Elapsed         time.Duration
}

// Clusterer runs clustering passes. Passes are serialized.
type Clusterer struct {
	store    Store
	embedder similarity.Embedder
	namer    Namer
	opts     Options
	log      logger.Logger

	mu sync.Mutex
}

// New creates a Clusterer. A nil embedder falls back to the hash embedder and
// a nil namer to the fixed fallback names.
func New(store Store, embedder similarity.Embedder, namer Namer, opts Options, log logger.Logger) *Clusterer {
	if embedder == nil {
		embedder = similarity.NewHashEmbedder(similarity.DefaultDimension)
	}
	if namer == nil {
		namer = FallbackNamer{}
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		opts.Threshold = DefaultThreshold
	}
	return &Clusterer{
		store:    store,
		embedder: embedder,
		namer:    namer,
		opts:     opts,
		log:      logger.OrNop(log).With(logger.Component("cluster")),
	}
}

// Run executes one clustering pass
func (c *Clusterer) Run(ctx context.Context) (*RunSummary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := time.Now()
	summary := &RunSummary{}

	claims, err := c.store.FindUnclusteredClaims(ctx, c.opts.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("load unclustered claims: %w", err)
	}
	summary.ClaimsProcessed = len(claims)
	if len(claims) == 0 {
		summary.Elapsed = time.Since(start)
		return summary, nil
	}

	n, err := c.fingerprint(ctx, claims)
	summary.Fingerprinted = n
	if err != nil {
		return nil, err
	}

	rest, err := c.grow(ctx, claims, summary)
	if err != nil {
		return nil, err
	}

	for _, group := range groupClaims(rest, c.opts.Threshold) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := c.create(ctx, group); err != nil {
			return nil, err
		}
		summary.ClustersCreated++
		summary.ClaimsAssigned += len(group)
	}

	summary.Elapsed = time.Since(start)
	c.log.Info("Clustering pass finished",
		logger.Int("claims", summary.ClaimsProcessed),
		logger.Int("created", summary.ClustersCreated),
		logger.Int("grown", summary.ClustersGrown),
		logger.Int("assigned", summary.ClaimsAssigned),
		logger.Duration("elapsed", summary.Elapsed))
	return summary, nil
}

// fingerprint computes and persists missing fingerprints in place
func (c *Clusterer) fingerprint(ctx context.Context, claims []model.Claim) (int, error) {
	count := 0
	for i := range claims {
		if len(claims[i].Fingerprint) > 0 {
			continue
		}
		vec, err := c.embedder.Embed(ctx, claims[i].Text)
		if err != nil {
			return count, fmt.Errorf("embed claim %s: %w", claims[i].ID, err)
		}
		claims[i].Fingerprint = vec
		if err := c.store.UpdateClaim(ctx, claims[i].ID, model.ClaimPatch{Fingerprint: vec}); err != nil {
			return count, fmt.Errorf("save fingerprint %s: %w", claims[i].ID, err)
		}
		count++
	}
	return count, nil
}

// grow attaches candidates to the closest active cluster above the threshold
// and returns the candidates that found no home.
func (c *Clusterer) grow(ctx context.Context, claims []model.Claim, summary *RunSummary) ([]model.Claim, error) {
	clusters, err := c.store.ListClusters(ctx, model.ClusterFilter{Status: model.ClusterActive})
	if err != nil {
		return nil, fmt.Errorf("list active clusters: %w", err)
	}
	if len(clusters) == 0 {
		return claims, nil
	}

	joins := make(map[int][]model.Claim)
	var rest []model.Claim
	for _, claim := range claims {
		best, bestSim := -1, c.opts.Threshold
		for i := range clusters {
			sim := similarity.CosineSimilarity(claim.Fingerprint, clusters[i].Centroid)
			if sim > bestSim {
				best, bestSim = i, sim
			}
		}
		if best < 0 {
			rest = append(rest, claim)
			continue
		}
		joins[best] = append(joins[best], claim)
	}

	for i := range clusters {
		joined := joins[i]
		if len(joined) == 0 {
			continue
		}
		cl := &clusters[i]
		members, err := c.store.ClaimsInCluster(ctx, cl.ID)
		if err != nil {
			return nil, fmt.Errorf("load cluster %s members: %w", cl.ID, err)
		}
		members = append(members, joined...)

		cl.ClaimIDs = mergeIDs(cl.ClaimIDs, joined)
		summarize(cl, members)
		if err := c.save(ctx, cl, ids(joined)); err != nil {
			return nil, err
		}

		summary.ClustersGrown++
		summary.ClaimsAssigned += len(joined)
		c.log.Debug("Cluster grown", logger.String("cluster", cl.ID), logger.Int("joined", len(joined)))
	}
	return rest, nil
}

// create names and stores a new cluster for group
func (c *Clusterer) create(ctx context.Context, group []model.Claim) error {
	texts := make([]string, len(group))
	for i, claim := range group {
		texts[i] = claim.Text
	}

	name, description := c.namer.Name(ctx, texts)
	cl := &model.Cluster{
		Name:        name,
		Description: description,
		ClaimIDs:    ids(group),
		Category:    group[0].Category,
		Status:      model.ClusterActive,
	}
	summarize(cl, group)
	return c.save(ctx, cl, cl.ClaimIDs)
}

func (c *Clusterer) save(ctx context.Context, cl *model.Cluster, assign []string) error {
	if err := c.store.SaveCluster(ctx, cl); err != nil {
		return fmt.Errorf("save cluster: %w", err)
	}
	if err := c.store.AssignClusterToClaims(ctx, assign, cl.ID); err != nil {
		return fmt.Errorf("assign claims to cluster %s: %w", cl.ID, err)
	}
	return nil
}

// groupClaims links claims greedily in input order: each unassigned claim
// seeds a group and pulls in every later unassigned claim whose cosine with
// the seed exceeds threshold. Groups smaller than MinClusterSize are dropped.
func groupClaims(claims []model.Claim, threshold float64) [][]model.Claim {
	var groups [][]model.Claim
	taken := make([]bool, len(claims))

	for i := range claims {
		if taken[i] {
			continue
		}
		taken[i] = true
		group := []model.Claim{claims[i]}

		for j := i + 1; j < len(claims); j++ {
			if taken[j] {
				continue
			}
			if similarity.CosineSimilarity(claims[i].Fingerprint, claims[j].Fingerprint) > threshold {
				group = append(group, claims[j])
				taken[j] = true
			}
		}

		if len(group) >= MinClusterSize {
			groups = append(groups, group)
		}
	}
	return groups
}

func ids(claims []model.Claim) []string {
	out := make([]string, len(claims))
	for i, c := range claims {
		out[i] = c.ID
	}
	return out
}

// mergeIDs appends the ids of joined that are not already present
func mergeIDs(existing []string, joined []model.Claim) []string {
	seen := make(map[string]struct{}, len(existing))
	out := append([]string(nil), existing...)
	for _, id := range existing {
		seen[id] = struct{}{}
	}
	for _, c := range joined {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c.ID)
	}
	return out
}

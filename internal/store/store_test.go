package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/veritas/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "veritas.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func saveClaim(t *testing.T, s *SQLiteStore, text string, status model.ClaimStatus, created time.Time) *model.Claim {
	t.Helper()
	c := &model.Claim{Text: text, Status: status, CreatedAt: created}
	require.NoError(t, s.SaveClaim(context.Background(), c))
	return c
}

func saveClaimWithEvidence(t *testing.T, s *SQLiteStore, text string, created time.Time) *model.Claim {
	t.Helper()
	c := &model.Claim{
		Text:      text,
		Status:    model.StatusDebunked,
		CreatedAt: created,
		Evidence:  []model.Evidence{{Source: "Snopes", Snippet: "rated false by fact-checkers", Stance: model.StanceRefutes}},
	}
	require.NoError(t, s.SaveClaim(context.Background(), c))
	return c
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(context.Background()))
	saveClaim(t, s, "in memory claim", model.StatusPending, time.Now())
	claims, err := s.RecentClaims(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestSaveAndGetClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var evidence []model.Evidence
	for i := 0; i < 7; i++ {
		evidence = append(evidence, model.Evidence{ID: string(rune('a' + i)), Source: "Snopes", Snippet: "snippet"})
	}
	c := &model.Claim{
		Text:        "Vaccines cause autism",
		CleanedText: "vaccines cause autism",
		Category:    model.CategoryHealth,
		Status:      model.StatusDebunked,
		Verdict:     model.VerdictFalse,
		Confidence:  1.7,
		Explanation: model.Explanation{Short: "No."},
		Evidence:    evidence,
		Metrics:     model.Metrics{Views: 10, Shares: 2},
		Flags:       model.Flags{Sensitive: true},
		Fingerprint: []float64{0.6, 0.8},
	}
	require.NoError(t, s.SaveClaim(ctx, c))
	require.NotEmpty(t, c.ID)

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "Vaccines cause autism", got.Text)
	assert.Equal(t, model.CategoryHealth, got.Category)
	assert.Equal(t, model.VerdictFalse, got.Verdict)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Len(t, got.Evidence, MaxEvidence)
	assert.Equal(t, "No.", got.Explanation.Short)
	assert.True(t, got.Flags.Sensitive)
	assert.Equal(t, []float64{0.6, 0.8}, got.Fingerprint)
	assert.Equal(t, 12, got.Metrics.Reach())
	assert.WithinDuration(t, c.CreatedAt, got.CreatedAt, time.Microsecond)

	_, err = s.GetClaim(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateClaim(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := saveClaim(t, s, "Climate change is a hoax", model.StatusPending, time.Now())

	status := model.StatusDebunked
	verdict := model.VerdictFalse
	conf := 0.94
	require.NoError(t, s.UpdateClaim(ctx, c.ID, model.ClaimPatch{
		Status:     &status,
		Verdict:    &verdict,
		Confidence: &conf,
		Flags:      &model.Flags{Urgent: true},
	}))

	got, err := s.GetClaim(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDebunked, got.Status)
	assert.Equal(t, model.VerdictFalse, got.Verdict)
	assert.Equal(t, 0.94, got.Confidence)
	assert.True(t, got.Flags.Urgent)
	assert.Equal(t, "Climate change is a hoax", got.Text)

	assert.ErrorIs(t, s.UpdateClaim(ctx, "missing", model.ClaimPatch{}), ErrNotFound)
}

func TestFindSimilarClaims(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	match := saveClaimWithEvidence(t, s, "Vaccines cause autism", now)
	saveClaim(t, s, "Vaccines cause autism in kids", model.StatusPending, now)
	near := saveClaimWithEvidence(t, s, "vaccines cause autism today", now)
	saveClaimWithEvidence(t, s, "The Earth is flat", now)
	saveClaim(t, s, "Vaccines cause autism", model.StatusDebunked, now)

	got, err := s.FindSimilarClaims(ctx, "vaccines cause autism", 0.6)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, match.ID, got[0].ID)
	assert.Equal(t, near.ID, got[1].ID)

	none, err := s.FindSimilarClaims(ctx, "is it on", 0.6)
	require.NoError(t, err)
	assert.Empty(t, none)

	// 0.75 similarity does not exceed a 0.75 floor
	strict, err := s.FindSimilarClaims(ctx, "vaccines cause autism", 0.75)
	require.NoError(t, err)
	require.Len(t, strict, 1)
	assert.Equal(t, match.ID, strict[0].ID)
}

func TestFindSimilarClaims_SkipsClaimsWithoutEvidence(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	withEvidence := saveClaimWithEvidence(t, s, "Vaccines cause autism", base)
	for i := 1; i <= 2*similarLimit; i++ {
		saveClaim(t, s, "Vaccines cause autism", model.StatusDebunked, base.Add(time.Duration(i)*time.Minute))
	}

	got, err := s.FindSimilarClaims(ctx, "Vaccines cause autism", 0.6)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, withEvidence.ID, got[0].ID)
	assert.NotEmpty(t, got[0].Evidence)
}

func TestClusters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	a := saveClaim(t, s, "claim a", model.StatusDebunked, base)
	b := saveClaim(t, s, "claim b", model.StatusDebunked, base.Add(time.Hour))
	other := saveClaim(t, s, "claim c", model.StatusDebunked, base.Add(2*time.Hour))

	unclustered, err := s.FindUnclusteredClaims(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unclustered, 3)
	assert.Equal(t, a.ID, unclustered[0].ID)

	first := &model.Cluster{Name: "First", ClaimIDs: []string{a.ID, b.ID}, Keywords: []string{"claim"}, FirstSeen: base, LastSeen: base.Add(time.Hour)}
	require.NoError(t, s.SaveCluster(ctx, first))
	require.NoError(t, s.AssignClusterToClaims(ctx, first.ClaimIDs, first.ID))

	second := &model.Cluster{Name: "Second", ClaimIDs: []string{a.ID, other.ID}, FirstSeen: base, LastSeen: base.Add(3 * time.Hour)}
	require.NoError(t, s.SaveCluster(ctx, second))
	require.NoError(t, s.AssignClusterToClaims(ctx, second.ClaimIDs, second.ID))

	// a claim never moves to a second cluster
	got, err := s.GetClaim(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ClusterID)

	members, err := s.ClaimsInCluster(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	unclustered, err = s.FindUnclusteredClaims(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, unclustered)

	require.NoError(t, s.SetClusterStatus(ctx, first.ID, model.ClusterResolved))
	first.Name = "First renamed"
	first.Status = model.ClusterActive
	require.NoError(t, s.SaveCluster(ctx, first))

	loaded, err := s.GetCluster(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "First renamed", loaded.Name)
	assert.Equal(t, model.ClusterResolved, loaded.Status)
	assert.Equal(t, []string{"claim"}, loaded.Keywords)
	assert.Equal(t, model.RiskLow, loaded.RiskLevel)

	all, err := s.ListClusters(ctx, model.ClusterFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Second", all[0].Name)

	active, err := s.ListClusters(ctx, model.ClusterFilter{Status: model.ClusterActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)

	_, err = s.GetCluster(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetClusterStatus(ctx, "missing", model.ClusterResolved), ErrNotFound)
}

func TestFindClaimsForReview(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	old := saveClaim(t, s, "old unverified", model.StatusUnverified, now.Add(-30*24*time.Hour))
	recent := saveClaim(t, s, "recent unverified", model.StatusUnverified, now.Add(-time.Hour))
	pending := saveClaim(t, s, "recent pending", model.StatusPending, now.Add(-time.Minute))
	saveClaim(t, s, "recent verified", model.StatusVerified, now)

	due, err := s.FindClaimsForReview(ctx, model.ReviewQuery{
		Statuses: []model.ClaimStatus{model.StatusUnverified, model.StatusPending},
		Since:    now.Add(-7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, recent.ID, due[0].ID)
	assert.Equal(t, pending.ID, due[1].ID)

	urgent := true
	require.NoError(t, s.UpdateClaim(ctx, old.ID, model.ClaimPatch{Flags: &model.Flags{Urgent: urgent}}))
	require.NoError(t, s.UpdateClaim(ctx, pending.ID, model.ClaimPatch{Metrics: &model.Metrics{Views: 500}}))

	priority, err := s.FindClaimsForReview(ctx, model.ReviewQuery{Priority: true, MinViews: 100, Limit: 10})
	require.NoError(t, err)
	require.Len(t, priority, 2)
	assert.Equal(t, old.ID, priority[0].ID)
	assert.Equal(t, pending.ID, priority[1].ID)
}

func TestAuditLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, s.LogAction(ctx, model.AuditEntry{Actor: "cluster", Action: "start", CreatedAt: base}))
	require.NoError(t, s.LogAction(ctx, model.AuditEntry{
		Actor: "cluster", Action: "run", Target: "pass",
		Details:   map[string]any{"processed": 3},
		CreatedAt: base.Add(time.Second),
	}))

	entries, err := s.RecentActions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "run", entries[0].Action)
	assert.Equal(t, float64(3), entries[0].Details["processed"])
	assert.Nil(t, entries[1].Details)
}

func TestConcurrentWrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.SaveClaim(ctx, &model.Claim{Text: "concurrent claim"}))
			_, err := s.FindSimilarClaims(ctx, "concurrent claim", 0.5)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	claims, err := s.RecentClaims(ctx, 100)
	require.NoError(t, err)
	assert.Len(t, claims, 20)
}

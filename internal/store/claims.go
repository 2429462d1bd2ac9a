package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

const (
	// MaxEvidence is the number of evidence items persisted per claim
	MaxEvidence = 5

	similarCandidates = 200
	similarLimit      = 10
)

const claimColumns = `id, text, cleaned_text, language, category, status, verdict, confidence,
	explanation, evidence, cluster_id, views, shares, urgent, viral, sensitive,
	fingerprint, created_at, updated_at`

// SaveClaim inserts a new claim. A missing ID and timestamps are filled in.
func (s *SQLiteStore) SaveClaim(ctx context.Context, c *model.Claim) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Status == "" {
		c.Status = model.StatusPending
	}
	if c.Category == "" {
		c.Category = model.CategoryOther
	}
	c.Confidence = model.ClampConfidence(c.Confidence)
	if len(c.Evidence) > MaxEvidence {
		c.Evidence = c.Evidence[:MaxEvidence]
	}

	args, err := claimArgs(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO claims (`+claimColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		return fmt.Errorf("insert claim: %w", err)
	}
	return nil
}

// GetClaim loads one claim
func (s *SQLiteStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getClaim(ctx, id)
}

func (s *SQLiteStore) getClaim(ctx context.Context, id string) (*model.Claim, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = ?`, id)
	c, err := scanClaim(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateClaim applies a partial update
func (s *SQLiteStore) UpdateClaim(ctx context.Context, id string, patch model.ClaimPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.getClaim(ctx, id)
	if err != nil {
		return err
	}

	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.Verdict != nil {
		c.Verdict = *patch.Verdict
	}
	if patch.Confidence != nil {
		c.Confidence = model.ClampConfidence(*patch.Confidence)
	}
	if patch.Explanation != nil {
		c.Explanation = *patch.Explanation
	}
	if patch.Evidence != nil {
		c.Evidence = patch.Evidence
		if len(c.Evidence) > MaxEvidence {
			c.Evidence = c.Evidence[:MaxEvidence]
		}
	}
	if patch.Fingerprint != nil {
		c.Fingerprint = patch.Fingerprint
	}
	if patch.Flags != nil {
		c.Flags = *patch.Flags
	}
	if patch.Metrics != nil {
		c.Metrics = *patch.Metrics
	}
	c.UpdatedAt = s.now()

	explanation, err := encodeJSON(c.Explanation)
	if err != nil {
		return err
	}
	evidence, err := encodeJSON(c.Evidence)
	if err != nil {
		return err
	}
	fingerprint, err := encodeFingerprint(c.Fingerprint)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `UPDATE claims SET
		status = ?, verdict = ?, confidence = ?, explanation = ?, evidence = ?, fingerprint = ?,
		urgent = ?, viral = ?, sensitive = ?, views = ?, shares = ?, updated_at = ?
		WHERE id = ?`,
		string(c.Status), string(c.Verdict), c.Confidence, explanation, evidence, fingerprint,
		boolInt(c.Flags.Urgent), boolInt(c.Flags.Viral), boolInt(c.Flags.Sensitive),
		c.Metrics.Views, c.Metrics.Shares, formatTime(c.UpdatedAt), id)
	if err != nil {
		return fmt.Errorf("update claim %s: %w", id, err)
	}
	return nil
}

// FindSimilarClaims returns verified claims carrying evidence whose text similarity
// to text exceeds minSimilarity, most similar first. Candidates are prefiltered by key term.
func (s *SQLiteStore) FindSimilarClaims(ctx context.Context, text string, minSimilarity float64) ([]model.Claim, error) {
	terms := similarity.KeyTerms(text)
	if len(terms) == 0 {
		return nil, nil
	}

	likes := make([]string, len(terms))
	args := make([]any, 0, len(terms)+2)
	args = append(args, string(model.StatusPending))
	for i, term := range terms {
		likes[i] = "LOWER(text) LIKE ?"
		args = append(args, "%"+term+"%")
	}
	args = append(args, similarCandidates)

	query := `SELECT ` + claimColumns + ` FROM claims
		WHERE status != ? AND evidence NOT IN ('', 'null', '[]')
		AND (` + strings.Join(likes, " OR ") + `)
		ORDER BY created_at DESC LIMIT ?`

	s.mu.RLock()
	candidates, err := s.queryClaims(ctx, query, args...)
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	type scored struct {
		claim model.Claim
		sim   float64
	}
	var matches []scored
	for _, c := range candidates {
		if sim := similarity.TextSimilarity(text, c.Text); sim > minSimilarity {
			matches = append(matches, scored{c, sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].sim > matches[j].sim })

	out := make([]model.Claim, 0, min(len(matches), similarLimit))
	for i, m := range matches {
		if i == similarLimit {
			break
		}
		out = append(out, m.claim)
	}
	return out, nil
}

// FindUnclusteredClaims returns up to limit claims with no cluster, oldest first
func (s *SQLiteStore) FindUnclusteredClaims(ctx context.Context, limit int) ([]model.Claim, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims
		WHERE cluster_id = '' ORDER BY created_at ASC LIMIT ?`, limit)
}

// ClaimsInCluster returns the members of a cluster, oldest first
func (s *SQLiteStore) ClaimsInCluster(ctx context.Context, clusterID string) ([]model.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims
		WHERE cluster_id = ? ORDER BY created_at ASC`, clusterID)
}

// FindClaimsForReview returns claims due for re-verification, oldest first
func (s *SQLiteStore) FindClaimsForReview(ctx context.Context, q model.ReviewQuery) ([]model.Claim, error) {
	var where []string
	var args []any

	if len(q.Statuses) > 0 {
		where = append(where, "status IN ("+placeholders(len(q.Statuses))+")")
		for _, st := range q.Statuses {
			args = append(args, string(st))
		}
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, formatTime(q.Since))
	}
	if q.Priority {
		cond := "urgent = 1 OR viral = 1"
		if q.MinViews > 0 {
			cond += " OR views >= ?"
			args = append(args, q.MinViews)
		}
		where = append(where, "("+cond+")")
	}

	query := `SELECT ` + claimColumns + ` FROM claims`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryClaims(ctx, query, args...)
}

// RecentClaims returns the newest claims first
func (s *SQLiteStore) RecentClaims(ctx context.Context, limit int) ([]model.Claim, error) {
	if limit <= 0 {
		limit = 20
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryClaims(ctx, `SELECT `+claimColumns+` FROM claims ORDER BY created_at DESC LIMIT ?`, limit)
}

func (s *SQLiteStore) queryClaims(ctx context.Context, query string, args ...any) ([]model.Claim, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClaim(row rowScanner) (*model.Claim, error) {
	var (
		c                                  model.Claim
		category, status, verdict          string
		explanation, evidence, fingerprint string
		urgent, viral, sensitive           int
		createdAt, updatedAt               string
	)
	err := row.Scan(&c.ID, &c.Text, &c.CleanedText, &c.Language, &category, &status, &verdict, &c.Confidence,
		&explanation, &evidence, &c.ClusterID, &c.Metrics.Views, &c.Metrics.Shares, &urgent, &viral, &sensitive,
		&fingerprint, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Category = model.Category(category)
	c.Status = model.ClaimStatus(status)
	c.Verdict = model.Verdict(verdict)
	c.Flags = model.Flags{Urgent: urgent == 1, Viral: viral == 1, Sensitive: sensitive == 1}
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	if err := decodeJSON(explanation, &c.Explanation); err != nil {
		return nil, fmt.Errorf("claim %s explanation: %w", c.ID, err)
	}
	if err := decodeJSON(evidence, &c.Evidence); err != nil {
		return nil, fmt.Errorf("claim %s evidence: %w", c.ID, err)
	}
	if err := decodeJSON(fingerprint, &c.Fingerprint); err != nil {
		return nil, fmt.Errorf("claim %s fingerprint: %w", c.ID, err)
	}
	return &c, nil
}

func claimArgs(c *model.Claim) ([]any, error) {
	explanation, err := encodeJSON(c.Explanation)
	if err != nil {
		return nil, err
	}
	evidence, err := encodeJSON(c.Evidence)
	if err != nil {
		return nil, err
	}
	fingerprint, err := encodeFingerprint(c.Fingerprint)
	if err != nil {
		return nil, err
	}
	return []any{
		c.ID, c.Text, c.CleanedText, c.Language, string(c.Category), string(c.Status), string(c.Verdict), c.Confidence,
		explanation, evidence, c.ClusterID, c.Metrics.Views, c.Metrics.Shares,
		boolInt(c.Flags.Urgent), boolInt(c.Flags.Viral), boolInt(c.Flags.Sensitive),
		fingerprint, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	}, nil
}

func encodeFingerprint(v []float64) (string, error) {
	if len(v) == 0 {
		return "", nil
	}
	return encodeJSON(v)
}

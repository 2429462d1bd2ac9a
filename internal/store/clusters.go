package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ppiankov/veritas/internal/model"
)

const clusterColumns = `id, name, description, claim_ids, centroid, category, keywords,
	first_seen, last_seen, total_claims, verified_true, verified_false, total_reach,
	risk_level, status, created_at, updated_at`

// SaveCluster inserts or replaces a cluster. The operator-driven status of an
// existing cluster is kept.
func (s *SQLiteStore) SaveCluster(ctx context.Context, c *model.Cluster) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = model.ClusterActive
	}
	if c.RiskLevel == "" {
		c.RiskLevel = model.RiskLow
	}

	claimIDs, err := encodeJSON(c.ClaimIDs)
	if err != nil {
		return err
	}
	keywords, err := encodeJSON(c.Keywords)
	if err != nil {
		return err
	}
	centroid, err := encodeFingerprint(c.Centroid)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.ExecContext(ctx, `INSERT INTO clusters (`+clusterColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			claim_ids = excluded.claim_ids,
			centroid = excluded.centroid,
			category = excluded.category,
			keywords = excluded.keywords,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			total_claims = excluded.total_claims,
			verified_true = excluded.verified_true,
			verified_false = excluded.verified_false,
			total_reach = excluded.total_reach,
			risk_level = excluded.risk_level,
			updated_at = excluded.updated_at`,
		c.ID, c.Name, c.Description, claimIDs, centroid, string(c.Category), keywords,
		formatTime(c.FirstSeen), formatTime(c.LastSeen),
		c.Metrics.TotalClaims, c.Metrics.VerifiedTrue, c.Metrics.VerifiedFalse, c.Metrics.TotalReach,
		string(c.RiskLevel), string(c.Status), formatTime(c.CreatedAt), formatTime(c.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save cluster: %w", err)
	}
	return nil
}

// SetClusterStatus changes a cluster's operator status
func (s *SQLiteStore) SetClusterStatus(ctx context.Context, id string, status model.ClusterStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE clusters SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(s.now()), id)
	if err != nil {
		return fmt.Errorf("update cluster status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	return nil
}

// AssignClusterToClaims links claims to a cluster. Claims that already belong
// to another cluster are left alone.
func (s *SQLiteStore) AssignClusterToClaims(ctx context.Context, ids []string, clusterID string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, 0, len(ids)+3)
	args = append(args, clusterID, formatTime(s.now()))
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, clusterID)

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `UPDATE claims SET cluster_id = ?, updated_at = ?
		WHERE id IN (`+placeholders(len(ids))+`) AND (cluster_id = '' OR cluster_id = ?)`, args...)
	if err != nil {
		return fmt.Errorf("assign cluster: %w", err)
	}
	return nil
}

// GetCluster loads one cluster
func (s *SQLiteStore) GetCluster(ctx context.Context, id string) (*model.Cluster, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+clusterColumns+` FROM clusters WHERE id = ?`, id)
	c, err := scanCluster(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("cluster %s: %w", id, ErrNotFound)
	}
	return c, err
}

// ListClusters returns clusters, most recently seen first
func (s *SQLiteStore) ListClusters(ctx context.Context, f model.ClusterFilter) ([]model.Cluster, error) {
	query := `SELECT ` + clusterColumns + ` FROM clusters`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY last_seen DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query clusters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.Cluster
	for rows.Next() {
		c, err := scanCluster(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCluster(row rowScanner) (*model.Cluster, error) {
	var (
		c                            model.Cluster
		claimIDs, centroid, keywords string
		category, risk, status       string
		firstSeen, lastSeen          string
		createdAt, updatedAt         string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Description, &claimIDs, &centroid, &category, &keywords,
		&firstSeen, &lastSeen, &c.Metrics.TotalClaims, &c.Metrics.VerifiedTrue, &c.Metrics.VerifiedFalse,
		&c.Metrics.TotalReach, &risk, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.Category = model.Category(category)
	c.RiskLevel = model.RiskLevel(risk)
	c.Status = model.ClusterStatus(status)
	c.FirstSeen = parseTime(firstSeen)
	c.LastSeen = parseTime(lastSeen)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)

	if err := decodeJSON(claimIDs, &c.ClaimIDs); err != nil {
		return nil, fmt.Errorf("cluster %s claim ids: %w", c.ID, err)
	}
	if err := decodeJSON(keywords, &c.Keywords); err != nil {
		return nil, fmt.Errorf("cluster %s keywords: %w", c.ID, err)
	}
	if err := decodeJSON(centroid, &c.Centroid); err != nil {
		return nil, fmt.Errorf("cluster %s centroid: %w", c.ID, err)
	}
	return &c, nil
}

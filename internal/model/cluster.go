package model

import "time"

// Cluster is a named group of claims that retell the same narrative
type Cluster struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	ClaimIDs    []string       `json:"claim_ids"`
	Centroid    []float64      `json:"centroid,omitempty"`
	Category    Category       `json:"category,omitempty"`
	Keywords    []string       `json:"keywords"`
	FirstSeen   time.Time      `json:"first_seen"`
	LastSeen    time.Time      `json:"last_seen"`
	Metrics     ClusterMetrics `json:"metrics"`
	RiskLevel   RiskLevel      `json:"risk_level"`
	Status      ClusterStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ClusterMetrics aggregates member claim outcomes
type ClusterMetrics struct {
	TotalClaims   int `json:"total_claims"`
	VerifiedTrue  int `json:"verified_true"`
	VerifiedFalse int `json:"verified_false"`
	TotalReach    int `json:"total_reach"`
}

// RiskLevel grades how much harm a narrative is likely to cause
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// ClusterStatus is driven by operators, never by the clustering step
type ClusterStatus string

const (
	ClusterActive     ClusterStatus = "active"
	ClusterMonitoring ClusterStatus = "monitoring"
	ClusterResolved   ClusterStatus = "resolved"
)

// ClusterView is the query shape exposed to callers
type ClusterView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ClaimIDs    []string  `json:"claim_ids"`
	Keywords    []string  `json:"keywords"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// View returns the public projection of the cluster
func (c Cluster) View() ClusterView {
	return ClusterView{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ClaimIDs:    c.ClaimIDs,
		Keywords:    c.Keywords,
		FirstSeen:   c.FirstSeen,
		LastSeen:    c.LastSeen,
	}
}

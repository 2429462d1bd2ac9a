package model

import "time"

// ClaimPatch is a partial claim update. Nil fields are left unchanged.
type ClaimPatch struct {
	Status      *ClaimStatus
	Verdict     *Verdict
	Confidence  *float64
	Explanation *Explanation
	Evidence    []Evidence // replaces the stored list when non-nil
	Fingerprint []float64  // replaces the stored fingerprint when non-nil
	Flags       *Flags
	Metrics     *Metrics
}

// ReviewQuery selects claims due for re-verification
type ReviewQuery struct {
	Statuses []ClaimStatus
	Since    time.Time // only claims created at or after Since; zero means no bound
	Priority bool      // only urgent, viral or high-view claims
	MinViews int       // view count that counts as high-view when Priority is set
	Limit    int
}

// ClusterFilter narrows a cluster listing
type ClusterFilter struct {
	Status ClusterStatus // empty means any status
	Limit  int
}

// AuditEntry is one recorded agent or operator action
type AuditEntry struct {
	ID        string         `json:"id"`
	Actor     string         `json:"actor"`
	Action    string         `json:"action"`
	Target    string         `json:"target,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

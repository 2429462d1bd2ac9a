package model

import "time"

// Result is the verification outcome returned to callers.
// It is always renderable, even when the pipeline failed.
type Result struct {
	ClaimID           string      `json:"claim_id,omitempty"`
	Claim             string      `json:"claim"`
	Classification    string      `json:"classification"` // e.g. "✅ Supported (Confidence: 95%)"
	Verdict           Verdict     `json:"verdict"`
	Assessment        Assessment  `json:"assessment"`
	Confidence        float64     `json:"confidence"`
	ConfidencePercent int         `json:"confidence_percent"`
	Emoji             string      `json:"emoji"`
	Label             string      `json:"label"`
	Reasoning         string      `json:"reasoning"`
	Explanation       Explanation `json:"explanation"`
	Evidence          []Evidence  `json:"evidence"`
	Pipeline          RunSummary  `json:"pipeline"`
	Error             string      `json:"error,omitempty"`
	Timestamp         time.Time   `json:"timestamp"`
}

// RunSummary describes how the pipeline produced a result
type RunSummary struct {
	StepsCompleted     int              `json:"steps_completed"`
	TotalTimeMs        int64            `json:"total_time_ms"`
	EvidenceSources    []string         `json:"evidence_sources"`
	VerificationMethod string           `json:"verification_method"` // Source tag of the tier that fired
	StageTimingsMs     map[string]int64 `json:"stage_timings_ms,omitempty"`
	SourceBreakdown    map[string]int   `json:"source_breakdown,omitempty"`
}

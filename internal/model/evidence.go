package model

import "time"

// Evidence is one retrieved snippet bearing on a claim
type Evidence struct {
	ID            string           `json:"id"`
	Source        string           `json:"source"` // Site or provenance name (e.g. "Snopes")
	URL           string           `json:"url,omitempty"`
	Title         string           `json:"title,omitempty"`
	Snippet       string           `json:"snippet"`
	Rating        string           `json:"rating,omitempty"`       // Rating text shown on the search result
	PageVerdict   string           `json:"page_verdict,omitempty"` // Verdict token found on the article page
	Stance        Stance           `json:"stance"`
	Relevance     float64          `json:"relevance"`
	Method        CollectionMethod `json:"method"`
	SourceClaimID string           `json:"source_claim_id,omitempty"` // Set when reused from a stored claim
	RetrievedAt   time.Time        `json:"retrieved_at"`
}

// Stance classifies how a piece of evidence bears on the claim
type Stance string

const (
	StanceSupports Stance = "supports"
	StanceRefutes  Stance = "refutes"
	StanceNeutral  Stance = "neutral"
)

// ParseStance normalizes stance labels coming from classifiers
func ParseStance(s string) Stance {
	switch ParseAssessment(s) {
	case Supported:
		return StanceSupports
	case Refuted:
		return StanceRefutes
	default:
		return StanceNeutral
	}
}

// CollectionMethod records which channel produced the evidence
type CollectionMethod string

const (
	MethodScrape CollectionMethod = "scrape"
	MethodDB     CollectionMethod = "db"
	MethodAPI    CollectionMethod = "api"
)

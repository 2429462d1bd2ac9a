package model

import (
	"strings"
	"time"
)

// Claim represents a factual statement submitted for verification
type Claim struct {
	ID          string      `json:"id" yaml:"id"`
	Text        string      `json:"text" yaml:"text"`                                     // Raw text as submitted
	CleanedText string      `json:"cleaned_text,omitempty" yaml:"cleaned_text,omitempty"` // Normalized text used for matching
	Language    string      `json:"language,omitempty" yaml:"language,omitempty"`
	Category    Category    `json:"category" yaml:"category"`
	Status      ClaimStatus `json:"status" yaml:"status"`
	Verdict     Verdict     `json:"verdict,omitempty" yaml:"verdict,omitempty"` // Only meaningful when Status != pending
	Confidence  float64     `json:"confidence" yaml:"confidence"`
	Explanation Explanation `json:"explanation" yaml:"explanation"`
	Evidence    []Evidence  `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	ClusterID   string      `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
	Metrics     Metrics     `json:"metrics" yaml:"metrics"`
	Flags       Flags       `json:"flags" yaml:"flags"`
	Fingerprint []float64   `json:"fingerprint,omitempty" yaml:"-"`
	CreatedAt   time.Time   `json:"created_at" yaml:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" yaml:"updated_at"`
}

// Explanation holds the four explanation registers
type Explanation struct {
	Short  string `json:"short" yaml:"short"`
	Medium string `json:"medium" yaml:"medium"`
	Long   string `json:"long" yaml:"long"`
	ELI5   string `json:"eli5" yaml:"eli5"`
}

// Metrics are the engagement counters attached to a claim
type Metrics struct {
	Views  int `json:"views" yaml:"views"`
	Shares int `json:"shares" yaml:"shares"`
}

// Reach is the total engagement used for cluster aggregates
func (m Metrics) Reach() int {
	return m.Views + m.Shares
}

// Flags mark claims that need operator attention
type Flags struct {
	Urgent    bool `json:"urgent" yaml:"urgent"`
	Viral     bool `json:"viral" yaml:"viral"`
	Sensitive bool `json:"sensitive" yaml:"sensitive"`
}

// ClaimStatus is the lifecycle status of a claim
type ClaimStatus string

const (
	StatusPending    ClaimStatus = "pending"
	StatusInProgress ClaimStatus = "in_progress"
	StatusVerified   ClaimStatus = "verified"
	StatusDebunked   ClaimStatus = "debunked"
	StatusUnverified ClaimStatus = "unverified"
)

// Verdict is the externally visible verdict vocabulary
type Verdict string

const (
	VerdictTrue       Verdict = "true"
	VerdictFalse      Verdict = "false"
	VerdictMisleading Verdict = "misleading" // human override only
	VerdictUnverified Verdict = "unverified"
	VerdictSatire     Verdict = "satire" // human override only
)

// Assessment is the internal 3-way verdict used during inference
type Assessment string

const (
	Supported     Assessment = "supported"
	Refuted       Assessment = "refuted"
	NotEnoughInfo Assessment = "not_enough_info"
)

// ToVerdict maps the internal assessment onto the external vocabulary
func (a Assessment) ToVerdict() Verdict {
	switch a {
	case Supported:
		return VerdictTrue
	case Refuted:
		return VerdictFalse
	default:
		return VerdictUnverified
	}
}

// Status returns the lifecycle status a finished verification leaves the claim in
func (a Assessment) Status() ClaimStatus {
	switch a {
	case Supported:
		return StatusVerified
	case Refuted:
		return StatusDebunked
	default:
		return StatusUnverified
	}
}

// Label is the human-readable assessment name
func (a Assessment) Label() string {
	switch a {
	case Supported:
		return "Supported"
	case Refuted:
		return "Refuted"
	default:
		return "Not Enough Information"
	}
}

// Emoji is the marker shown next to the label
func (a Assessment) Emoji() string {
	switch a {
	case Supported:
		return "✅"
	case Refuted:
		return "❌"
	default:
		return "⚪"
	}
}

// ParseAssessment normalizes verdict strings produced by classifiers and language models
func ParseAssessment(s string) Assessment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "supported", "supports", "true":
		return Supported
	case "refuted", "refutes", "false":
		return Refuted
	default:
		return NotEnoughInfo
	}
}

// Category is the closed set of claim categories
type Category string

const (
	CategoryPolitics      Category = "politics_governance"
	CategoryHealth        Category = "health_medicine"
	CategoryEnvironment   Category = "environment_climate"
	CategoryEconomics     Category = "economics_finance"
	CategoryScience       Category = "science_technology"
	CategoryFood          Category = "food_nutrition"
	CategorySocial        Category = "social_cultural"
	CategoryEntertainment Category = "entertainment_media"
	CategorySports        Category = "sports"
	CategoryCybersecurity Category = "technology_cybersecurity"
	CategoryOther         Category = "other"
)

var allCategories = map[Category]bool{
	CategoryPolitics:      true,
	CategoryHealth:        true,
	CategoryEnvironment:   true,
	CategoryEconomics:     true,
	CategoryScience:       true,
	CategoryFood:          true,
	CategorySocial:        true,
	CategoryEntertainment: true,
	CategorySports:        true,
	CategoryCybersecurity: true,
	CategoryOther:         true,
}

var categoryAliases = map[string]Category{
	"politics":            CategoryPolitics,
	"politics_government": CategoryPolitics,
	"government_politics": CategoryPolitics,
	"health":              CategoryHealth,
	"environment":         CategoryEnvironment,
	"climate_change":      CategoryEnvironment,
	"finance":             CategoryEconomics,
	"economics":           CategoryEconomics,
	"tech":                CategoryScience,
	"technology":          CategoryScience,
	"cybersecurity":       CategoryCybersecurity,
	"history":             CategorySocial,
}

// NormalizeCategory maps free-form category names onto the closed set.
// Unknown values become "other".
func NormalizeCategory(s string) Category {
	c := strings.TrimSpace(s)
	if alias, ok := categoryAliases[c]; ok {
		return alias
	}
	if allCategories[Category(c)] {
		return Category(c)
	}
	return CategoryOther
}

// ClampConfidence keeps a confidence value inside [0,1]
func ClampConfidence(c float64) float64 {
	if c < 0 || c != c {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

package cluster

import (
	"sort"
	"time"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/similarity"
)

// MaxKeywords caps the keyword list of a cluster
const MaxKeywords = 10

// summarize recomputes every derived field of cl from its members
func summarize(cl *model.Cluster, members []model.Claim) {
	members = uniqueClaims(members)

	vectors := make([][]float64, 0, len(members))
	texts := make([]string, 0, len(members))
	for _, m := range members {
		if len(m.Fingerprint) > 0 {
			vectors = append(vectors, m.Fingerprint)
		}
		texts = append(texts, m.Text)
	}
	if len(vectors) > 0 {
		cl.Centroid = similarity.Centroid(vectors)
	}

	cl.Keywords = keywords(texts, MaxKeywords)
	cl.FirstSeen, cl.LastSeen = seenRange(members, cl.FirstSeen, cl.LastSeen)
	cl.Metrics = metrics(members)
	if len(cl.ClaimIDs) > cl.Metrics.TotalClaims {
		cl.Metrics.TotalClaims = len(cl.ClaimIDs)
	}
	cl.RiskLevel = risk(cl.Metrics)
}

func uniqueClaims(claims []model.Claim) []model.Claim {
	seen := make(map[string]struct{}, len(claims))
	out := make([]model.Claim, 0, len(claims))
	for _, c := range claims {
		if _, ok := seen[c.ID]; ok {
			continue
		}
		seen[c.ID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// keywords returns the most frequent key terms across texts, ties broken alphabetically
func keywords(texts []string, limit int) []string {
	counts := make(map[string]int)
	for _, text := range texts {
		for _, term := range similarity.KeyTerms(text) {
			counts[term]++
		}
	}

	terms := make([]string, 0, len(counts))
	for term := range counts {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})

	if len(terms) > limit {
		terms = terms[:limit]
	}
	return terms
}

// seenRange widens the existing first/last seen bounds by the members' creation times
func seenRange(members []model.Claim, first, last time.Time) (time.Time, time.Time) {
	for _, m := range members {
		if m.CreatedAt.IsZero() {
			continue
		}
		if first.IsZero() || m.CreatedAt.Before(first) {
			first = m.CreatedAt
		}
		if m.CreatedAt.After(last) {
			last = m.CreatedAt
		}
	}
	return first, last
}

func metrics(members []model.Claim) model.ClusterMetrics {
	m := model.ClusterMetrics{TotalClaims: len(members)}
	for _, c := range members {
		switch c.Verdict {
		case model.VerdictTrue:
			m.VerifiedTrue++
		case model.VerdictFalse:
			m.VerifiedFalse++
		}
		m.TotalReach += c.Metrics.Reach()
	}
	return m
}

// risk grades a cluster by the share of its claims verified false
func risk(m model.ClusterMetrics) model.RiskLevel {
	if m.TotalClaims == 0 {
		return model.RiskLow
	}
	share := float64(m.VerifiedFalse) / float64(m.TotalClaims)
	switch {
	case share >= 0.75:
		return model.RiskCritical
	case share >= 0.5:
		return model.RiskHigh
	case share >= 0.25:
		return model.RiskMedium
	default:
		return model.RiskLow
	}
}

package pool

import (
	"regexp"
	"sort"
	"strings"

	"github.com/promptforge-dev/promptforge/pkg/models"
)

var tokenRe = regexp.MustCompile(`[a-z0-9']+`)

// Select returns up to k examples ordered by similarity to the query text.
//
// The metric is deterministic and reproducible: normalized token-set overlap
// (Jaccard) with stopword removal, damped by the token-length difference
// between query and candidate. Ties break by ingestion index, lower first.
// An empty query returns the first min(k, size) canonical examples.
func (p *Pool) Select(query string, k int) []models.Example {
	if k <= 0 || len(p.examples) == 0 {
		return nil
	}
	if k > len(p.examples) {
		k = len(p.examples)
	}

	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		out := make([]models.Example, k)
		copy(out, p.examples[:k])
		return out
	}

	type scored struct {
		index int
		score float64
	}
	candidates := make([]scored, len(p.examples))
	for i, ex := range p.examples {
		candidates[i] = scored{index: i, score: similarity(queryTokens, tokenize(ex.OriginalIdea))}
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].index < candidates[b].index
	})

	out := make([]models.Example, 0, k)
	for _, c := range candidates[:k] {
		out = append(out, p.examples[c.index])
	}
	return out
}

// tokenize lowercases, splits on word boundaries and strips stopwords.
func tokenize(text string) []string {
	var out []string
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		if !stopwords[tok] {
			out = append(out, tok)
		}
	}
	return out
}

// similarity computes Jaccard overlap of the token sets, damped by
// 1 / (1 + |len_candidate − len_query| / max(len_query, 1)).
func similarity(queryTokens, candidateTokens []string) float64 {
	querySet := toSet(queryTokens)
	candidateSet := toSet(candidateTokens)
	if len(querySet) == 0 || len(candidateSet) == 0 {
		return 0
	}

	intersection := 0
	for tok := range querySet {
		if candidateSet[tok] {
			intersection++
		}
	}
	union := len(querySet) + len(candidateSet) - intersection
	jaccard := float64(intersection) / float64(union)

	lenQuery := len(queryTokens)
	lenCandidate := len(candidateTokens)
	diff := lenCandidate - lenQuery
	if diff < 0 {
		diff = -diff
	}
	maxQuery := lenQuery
	if maxQuery < 1 {
		maxQuery = 1
	}
	damping := 1.0 / (1.0 + float64(diff)/float64(maxQuery))

	return jaccard * damping
}

func toSet(tokens []string) map[string]bool {
	set := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		set[tok] = true
	}
	return set
}

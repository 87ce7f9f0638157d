// Package pool holds the curated exemplar corpus and serves k-nearest-neighbor
// queries over it. The pool is loaded once at startup, normalized and
// deduplicated during construction, and immutable afterwards — concurrent
// queries need no locking. Restart to refresh.
package pool

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/promptforge-dev/promptforge/pkg/models"
)

// Pool is the in-memory, deduplicated, normalized example collection.
type Pool struct {
	examples []models.Example
}

// corpusFile matches the two accepted file shapes: a bare JSON array, or an
// object with an examples key plus optional metadata.
type corpusFile struct {
	Metadata map[string]any    `json:"metadata,omitempty"`
	Examples []json.RawMessage `json:"examples"`
}

// Load reads the corpus from path and builds the pool. A missing or unreadable
// file is an error; callers treat it as a degradation (knn_disabled) and fall
// back to an empty pool rather than failing startup.
func Load(path string) (*Pool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read example pool: %w", err)
	}

	raws, err := decodeCorpus(data)
	if err != nil {
		return nil, err
	}

	examples := make([]models.Example, 0, len(raws))
	malformed := 0
	for i, raw := range raws {
		var ex models.Example
		if err := json.Unmarshal(raw, &ex); err != nil {
			malformed++
			slog.Warn("Rejecting malformed example entry", "index", i, "error", err)
			continue
		}
		examples = append(examples, ex)
	}
	if malformed > 0 {
		slog.Warn("Corpus contained malformed entries", "rejected", malformed)
	}

	p := New(examples)
	slog.Info("Example pool loaded", "path", path, "examples", p.Size())
	return p, nil
}

// decodeCorpus accepts either a bare array or the {metadata, examples} wrapper.
func decodeCorpus(data []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var raws []json.RawMessage
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("failed to parse example pool: %w", err)
		}
		return raws, nil
	}

	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse example pool: %w", err)
	}
	return file.Examples, nil
}

// New builds a pool from parsed examples: normalize, drop invalid entries,
// deduplicate by io_hash, keep ingestion order for deterministic tie-breaking.
func New(examples []models.Example) *Pool {
	kept := make([]models.Example, 0, len(examples))
	seen := make(map[string]bool, len(examples))
	duplicates, dropped := 0, 0

	for i, ex := range examples {
		ex.OriginalIdea = strings.TrimSpace(ex.OriginalIdea)
		ex.ImprovedPrompt = strings.TrimSpace(ex.ImprovedPrompt)
		ex.Guardrails = trimNonEmpty(ex.Guardrails)

		if ex.OriginalIdea == "" || ex.ImprovedPrompt == "" || len(ex.Guardrails) == 0 {
			dropped++
			slog.Warn("Dropping incomplete example", "index", i)
			continue
		}

		framework, rewritten := models.NormalizeFramework(string(ex.Framework))
		if rewritten {
			slog.Warn("Rewriting unknown example framework to default",
				"index", i, "framework", ex.Framework, "default", framework)
		}
		ex.Framework = framework

		// io_hash is always derived from the pair, never trusted from the file.
		ex.IOHash = models.ComputeIOHash(ex.OriginalIdea, ex.ImprovedPrompt)
		if seen[ex.IOHash] {
			duplicates++
			continue
		}
		seen[ex.IOHash] = true
		kept = append(kept, ex)
	}

	if duplicates > 0 || dropped > 0 {
		slog.Warn("Example pool normalization summary",
			"kept", len(kept), "duplicates", duplicates, "dropped", dropped)
	}

	return &Pool{examples: kept}
}

// Empty returns a pool with no examples. KNN over it returns nil.
func Empty() *Pool {
	return &Pool{}
}

// Size returns the number of examples in the pool.
func (p *Pool) Size() int {
	return len(p.examples)
}

// Examples returns the normalized examples in ingestion order.
func (p *Pool) Examples() []models.Example {
	return p.examples
}

func trimNonEmpty(in []string) []string {
	var out []string
	for _, s := range in {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package usecases

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/0xcro3dile/workspace-rag/internal/domain/entities"
)

// Ranker defaults.
const (
	DefaultTopK         = 8
	DefaultPoolSize     = 40
	DefaultPerSourceCap = 2
)

// RankerConfig bounds the working set produced by DiversityRanker.
type RankerConfig struct {
	TopK         int // K: max evidence items returned
	PoolSize     int // N: max candidates considered
	PerSourceCap int // max items per source in the first pass
}

// DiversityRanker turns a similarity-ordered candidate list into a bounded,
// deduplicated, source-balanced working set. It holds no state between calls.
type DiversityRanker struct {
	cfg RankerConfig
}

// NewDiversityRanker creates a ranker, filling zero fields with defaults.
func NewDiversityRanker(cfg RankerConfig) *DiversityRanker {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.PerSourceCap <= 0 {
		cfg.PerSourceCap = DefaultPerSourceCap
	}
	return &DiversityRanker{cfg: cfg}
}

// Config returns the effective configuration.
func (r *DiversityRanker) Config() RankerConfig {
	return r.cfg
}

// Rank selects up to K candidates in two passes. The first pass enforces the
// per-source cap; the second backfills ignoring the cap. Duplicate content is
// never selected twice. Within each pass the input order is kept.
func (r *DiversityRanker) Rank(candidates []entities.RetrievalCandidate) []entities.RetrievalCandidate {
	if len(candidates) > r.cfg.PoolSize {
		candidates = candidates[:r.cfg.PoolSize]
	}
	if len(candidates) == 0 {
		return nil
	}

	prints := make([]string, len(candidates))
	for i, c := range candidates {
		prints[i] = Fingerprint(c.Content)
	}

	out := make([]entities.RetrievalCandidate, 0, r.cfg.TopK)
	seen := make(map[string]bool)
	taken := make([]bool, len(candidates))
	perSource := make(map[string]int)

	for i, c := range candidates {
		if len(out) >= r.cfg.TopK {
			break
		}
		if seen[prints[i]] || perSource[c.SourceID] >= r.cfg.PerSourceCap {
			continue
		}
		seen[prints[i]] = true
		taken[i] = true
		perSource[c.SourceID]++
		out = append(out, c)
	}

	for i, c := range candidates {
		if len(out) >= r.cfg.TopK {
			break
		}
		if taken[i] || seen[prints[i]] {
			continue
		}
		seen[prints[i]] = true
		out = append(out, c)
	}

	return out
}

// Fingerprint hashes text after lowercasing and collapsing whitespace, so
// copies that differ only in case or spacing compare equal.
func Fingerprint(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:])
}

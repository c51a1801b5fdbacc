package domain

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gopkg.in/yaml.v3"
)

// Severity scale bounds.
const (
	MinSeverity = 1
	MaxSeverity = 5
)

// DefaultSimilarityThreshold is the best-match similarity a description must
// exceed to keep its matched level; anything at or below scores MinSeverity.
const DefaultSimilarityThreshold = 0.3

// Embedder turns text into a vector. Implementations return a zero-length or
// all-zero vector for text they cannot represent; that is not an error.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// AnchorSet assigns keyword phrases to severity levels.
type AnchorSet struct {
	Version string           `yaml:"version"`
	Levels  map[int][]string `yaml:"levels"`
}

// DefaultAnchors returns the built-in keyword anchors.
func DefaultAnchors() AnchorSet {
	return AnchorSet{
		Version: "lapd-severity/1",
		Levels: map[int][]string{
			5: {"murder", "homicide", "rape", "sexual", "kidnap", "child abuse", "arson"},
			4: {"robbery", "weapon", "assault", "intimate partner", "battery", "shots fired"},
			3: {"burglary", "stolen", "theft", "break"},
			2: {"vandalism", "threat", "trespassing", "forge", "fraud", "shoplifting", "stalking"},
			1: {"disturb", "drunk", "minor", "petty"},
		},
	}
}

// LoadAnchors decodes a YAML anchor set and validates it.
//
//	version: custom/1
//	levels:
//	  5: [murder, homicide]
//	  ...
func LoadAnchors(r io.Reader) (AnchorSet, error) {
	var set AnchorSet
	if err := yaml.NewDecoder(r).Decode(&set); err != nil {
		return AnchorSet{}, fmt.Errorf("decode anchors: %w", err)
	}
	if err := set.Validate(); err != nil {
		return AnchorSet{}, err
	}
	return set.normalized(), nil
}

// Validate checks that the set covers exactly levels 1-5, each with at least
// one non-blank keyword.
func (a AnchorSet) Validate() error {
	if len(a.Levels) != MaxSeverity-MinSeverity+1 {
		return fmt.Errorf("anchors: want levels %d-%d, got %d levels", MinSeverity, MaxSeverity, len(a.Levels))
	}
	for level := MinSeverity; level <= MaxSeverity; level++ {
		keywords, ok := a.Levels[level]
		if !ok {
			return fmt.Errorf("anchors: level %d missing", level)
		}
		if len(keywords) == 0 {
			return fmt.Errorf("anchors: level %d has no keywords", level)
		}
		for _, kw := range keywords {
			if strings.TrimSpace(kw) == "" {
				return fmt.Errorf("anchors: level %d has a blank keyword", level)
			}
		}
	}
	return nil
}

func (a AnchorSet) normalized() AnchorSet {
	out := AnchorSet{Version: a.Version, Levels: make(map[int][]string, len(a.Levels))}
	for level, keywords := range a.Levels {
		norm := make([]string, len(keywords))
		for i, kw := range keywords {
			norm[i] = strings.ToLower(strings.TrimSpace(kw))
		}
		out.Levels[level] = norm
	}
	return out
}

// SeverityTable maps lowercase crime descriptions to a level in 1-5.
type SeverityTable map[string]int

// Lookup finds the level for a description in any letter case.
func (t SeverityTable) Lookup(desc string) (int, bool) {
	level, ok := t[strings.ToLower(desc)]
	return level, ok
}

// ScoreStats summarizes one scoring pass.
type ScoreStats struct {
	Unique    int // unique lowercase descriptions scored
	Fallbacks int // descriptions below the threshold, scored MinSeverity
}

// Scorer assigns severity levels by nearest-anchor semantic similarity.
type Scorer struct {
	embedder  Embedder
	threshold float64
	anchors   [MaxSeverity + 1][][]float64 // indexed by level
}

// NewScorer embeds every anchor keyword once so they can be reused for all
// descriptions.
func NewScorer(ctx context.Context, embedder Embedder, set AnchorSet, threshold float64) (*Scorer, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	set = set.normalized()

	s := &Scorer{embedder: embedder, threshold: threshold}
	for level := MinSeverity; level <= MaxSeverity; level++ {
		for _, kw := range set.Levels[level] {
			vec, err := embedder.Embed(ctx, kw)
			if err != nil {
				return nil, fmt.Errorf("embed anchor %q: %w", kw, err)
			}
			s.anchors[level] = append(s.anchors[level], vec)
		}
	}
	return s, nil
}

// Score scores each unique lowercase description once.
func (s *Scorer) Score(ctx context.Context, descriptions []string) (SeverityTable, ScoreStats, error) {
	unique := make(map[string]struct{}, len(descriptions))
	for _, d := range descriptions {
		unique[strings.ToLower(d)] = struct{}{}
	}
	keys := make([]string, 0, len(unique))
	for k := range unique {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	table := make(SeverityTable, len(keys))
	stats := ScoreStats{Unique: len(keys)}
	for _, desc := range keys {
		level, best, err := s.ScoreOne(ctx, desc)
		if err != nil {
			return nil, ScoreStats{}, err
		}
		if best <= s.threshold {
			stats.Fallbacks++
		}
		table[desc] = level
	}
	return table, stats, nil
}

// ScoreOne returns the level for a single description and the best similarity
// that produced it. Levels are visited in ascending order and only a strictly
// greater similarity replaces the running best, so exact ties resolve to the
// lower level.
func (s *Scorer) ScoreOne(ctx context.Context, desc string) (int, float64, error) {
	vec, err := s.embedder.Embed(ctx, strings.ToLower(desc))
	if err != nil {
		return 0, 0, fmt.Errorf("embed description %q: %w", desc, err)
	}

	bestLevel, bestSim := MinSeverity, 0.0
	for level := MinSeverity; level <= MaxSeverity; level++ {
		levelMax := 0.0
		for _, anchor := range s.anchors[level] {
			if sim := CosineSimilarity(vec, anchor); sim > levelMax {
				levelMax = sim
			}
		}
		if levelMax > bestSim {
			bestSim = levelMax
			bestLevel = level
		}
	}

	if bestSim <= s.threshold {
		return MinSeverity, bestSim, nil
	}
	return bestLevel, bestSim, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector is empty, all zero, or the lengths differ.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}

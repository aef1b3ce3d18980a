package detector

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Detector scans free-form text for sensitive tokens using the built-in
// pattern catalog plus any caller-supplied custom patterns. Detection is
// deterministic for a given configuration and input, and the returned spans
// are guaranteed to be mutually non-overlapping.
type Detector struct {
	rules      []compiledRule
	custom     []*regexp.Regexp
	exclusions map[string]struct{}
	minLength  int
	logger     *zap.Logger
}

type compiledRule struct {
	def     patternDef
	pattern *regexp.Regexp
}

// New compiles the configured patterns and returns a ready detector.
// Unknown catalog names and invalid custom expressions are reported up front
// so detection itself cannot fail.
func New(cfg Config, logger *zap.Logger) (*Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	names := cfg.Patterns
	if len(names) == 0 {
		names = PatternNames()
	}

	byName := make(map[string]patternDef, len(catalog))
	for _, def := range catalog {
		byName[def.Name] = def
	}

	flags := "(?i)"
	if cfg.CaseSensitive {
		flags = ""
	}

	rules := make([]compiledRule, 0, len(names))
	for _, name := range names {
		def, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown detection pattern: %s", name)
		}
		pattern, err := regexp.Compile(flags + def.Expr)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %s: %w", name, err)
		}
		rules = append(rules, compiledRule{def: def, pattern: pattern})
	}

	custom := make([]*regexp.Regexp, 0, len(cfg.CustomPatterns))
	for _, expr := range cfg.CustomPatterns {
		pattern, err := regexp.Compile(flags + expr)
		if err != nil {
			return nil, fmt.Errorf("invalid custom pattern %q: %w", expr, err)
		}
		custom = append(custom, pattern)
	}

	exclusions := make(map[string]struct{}, len(cfg.Exclusions))
	for _, value := range cfg.Exclusions {
		exclusions[strings.ToLower(value)] = struct{}{}
	}

	minLength := cfg.MinLength
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	logger.Debug("Token detector initialized",
		zap.Int("catalog_rules", len(rules)),
		zap.Int("custom_patterns", len(custom)),
		zap.Int("min_length", minLength),
	)

	return &Detector{
		rules:      rules,
		custom:     custom,
		exclusions: exclusions,
		minLength:  minLength,
		logger:     logger,
	}, nil
}

// DetectTokens returns every sensitive token found in text, ordered by start
// index with overlaps already resolved. Text with no matches yields an empty
// slice, not an error.
func (d *Detector) DetectTokens(text string) []DetectedToken {
	if text == "" {
		return nil
	}

	var candidates []DetectedToken

	for _, rule := range d.rules {
		for _, span := range d.matchSpans(rule.pattern, text) {
			value := text[span[0]:span[1]]
			if d.excluded(value) {
				continue
			}
			candidates = append(candidates, DetectedToken{
				Value:      value,
				Type:       rule.def.Type,
				StartIndex: span[0],
				EndIndex:   span[1],
				Confidence: scoreConfidence(rule.def.Weight, value),
			})
		}
	}

	for _, pattern := range d.custom {
		for _, span := range d.matchSpans(pattern, text) {
			value := text[span[0]:span[1]]
			if d.excluded(value) {
				continue
			}
			candidates = append(candidates, DetectedToken{
				Value:      value,
				Type:       TypeCustom,
				StartIndex: span[0],
				EndIndex:   span[1],
				Confidence: customConfidence,
			})
		}
	}

	resolved := resolveOverlaps(candidates)

	if len(resolved) > 0 {
		d.logger.Debug("Sensitive tokens detected",
			zap.Int("count", len(resolved)),
		)
	}

	return resolved
}

// HasSensitiveTokens reports whether text contains at least one detection.
func (d *Detector) HasSensitiveTokens(text string) bool {
	return len(d.DetectTokens(text)) > 0
}

// GetDetectionStats aggregates the detections for text.
func (d *Detector) GetDetectionStats(text string) Stats {
	tokens := d.DetectTokens(text)

	stats := Stats{
		TotalTokens: len(tokens),
		ByType:      make(map[TokenType]int),
	}

	var sum float64
	for _, token := range tokens {
		stats.ByType[token.Type]++
		sum += token.Confidence
		if token.Confidence >= highConfidenceThreshold {
			stats.HighConfidenceCount++
		}
	}
	if len(tokens) > 0 {
		stats.AverageConfidence = sum / float64(len(tokens))
	}

	return stats
}

// matchSpans runs a global match and returns the [start, end) span of the
// first capturing group when present, otherwise of the whole match. Matches
// shorter than the configured minimum length are dropped here.
func (d *Detector) matchSpans(pattern *regexp.Regexp, text string) [][2]int {
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return nil
	}

	spans := make([][2]int, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		if len(m) >= 4 && m[2] >= 0 {
			start, end = m[2], m[3]
		}
		if end-start < d.minLength {
			continue
		}
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

func (d *Detector) excluded(value string) bool {
	_, ok := d.exclusions[strings.ToLower(value)]
	return ok
}

// customConfidence is the fixed score assigned to caller-supplied patterns.
const customConfidence = 0.7

// scoreConfidence derives a [0,1] confidence from the pattern's base weight
// and heuristics over the matched value: long values and high-entropy values
// score up, short and low-entropy values score down.
func scoreConfidence(base float64, value string) float64 {
	confidence := base

	if len(value) > 50 {
		confidence += 0.1
	} else if len(value) < 16 {
		confidence -= 0.1
	}

	entropy := shannonEntropy(value)
	if entropy > 4 {
		confidence += 0.1
	} else if entropy < 2 {
		confidence -= 0.2
	}

	return math.Max(0, math.Min(1, confidence))
}

// shannonEntropy returns the entropy of s in bits per byte.
func shannonEntropy(s string) float64 {
	if s == "" {
		return 0
	}

	freq := make(map[byte]int)
	for i := 0; i < len(s); i++ {
		freq[s[i]]++
	}

	var entropy float64
	length := float64(len(s))
	for _, count := range freq {
		p := float64(count) / length
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// resolveOverlaps keeps the higher-confidence side of every overlapping pair.
// Candidates are considered strongest first, so a weak span only survives when
// no stronger span claims any part of its range. Ties keep the earlier
// candidate, which for catalog matches means catalog order. The result is
// sorted by start index and contains no overlapping spans.
func resolveOverlaps(candidates []DetectedToken) []DetectedToken {
	if len(candidates) == 0 {
		return nil
	}

	ordered := make([]DetectedToken, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Confidence > ordered[j].Confidence
	})

	accepted := make([]DetectedToken, 0, len(ordered))
	for _, candidate := range ordered {
		conflict := false
		for _, prev := range accepted {
			if overlaps(prev, candidate) {
				conflict = true
				break
			}
		}
		if !conflict {
			accepted = append(accepted, candidate)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		return accepted[i].StartIndex < accepted[j].StartIndex
	})
	return accepted
}

// overlaps reports whether the two spans intersect in any way: contained,
// containing, or partially overlapping.
func overlaps(a, b DetectedToken) bool {
	return a.StartIndex < b.EndIndex && b.StartIndex < a.EndIndex
}

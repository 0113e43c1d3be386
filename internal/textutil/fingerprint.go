package textutil

import (
	"math"
	"strings"
)

// minTokenLength drops short stopword-like tokens ("a", "to", "of") that
// would inflate similarity between unrelated headlines.
const minTokenLength = 3

// Fingerprint is a term-frequency vector used to compare headlines: feed
// aggregators surface the same story under different URLs, and title
// overlap is what catches those duplicates.
type Fingerprint struct {
	counts map[string]float64
	norm   float64
}

// NewFingerprint builds a fingerprint from text. Returns nil when the text
// yields no usable tokens.
func NewFingerprint(text string) *Fingerprint {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]float64, len(tokens))
	for _, token := range tokens {
		counts[token]++
	}
	var sum float64
	for _, count := range counts {
		sum += count * count
	}
	return &Fingerprint{counts: counts, norm: math.Sqrt(sum)}
}

// Tokenize lowercases text and splits it on non-alphanumeric runs,
// discarding tokens shorter than minTokenLength.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	tokens := fields[:0]
	for _, field := range fields {
		if len(field) >= minTokenLength {
			tokens = append(tokens, field)
		}
	}
	return tokens
}

// CosineSimilarity returns the cosine of the angle between two fingerprint
// vectors, or 0 when either is nil or empty.
func CosineSimilarity(a, b *Fingerprint) float64 {
	if a == nil || b == nil || a.norm == 0 || b.norm == 0 {
		return 0
	}
	small, large := a, b
	if len(large.counts) < len(small.counts) {
		small, large = large, small
	}
	var dot float64
	for token, count := range small.counts {
		dot += count * large.counts[token]
	}
	if dot == 0 {
		return 0
	}
	return dot / (a.norm * b.norm)
}

// Package tracker concatenates candidate passages with a separator token
// and measures, per passage, how much of its vocabulary survives
// compression.
//
// Retention is a word-overlap measure, not an alignment: a word counts as
// retained if its lowercase form appears anywhere in the compressed text,
// so ratios are upper bounds on true per-passage retention. Shared
// vocabulary across passages is counted for every passage that contains
// it.
package tracker

import "strings"

// Span is a half-open byte range [Start, End) of one passage inside the
// combined text produced by Prepare.
type Span struct {
	Start int
	End   int
}

// Stats reports word retention for one passage.
type Stats struct {
	OriginalWords int     `json:"original_length"`
	RetainedWords int     `json:"retained_count"`
	Ratio         float64 `json:"retention_ratio"`
}

// Tracker joins passages with a separator and analyzes retention.
type Tracker struct {
	separator string
}

// New creates a Tracker using the given separator token.
func New(separator string) *Tracker {
	return &Tracker{separator: separator}
}

// Separator returns the separator token.
func (t *Tracker) Separator() string {
	return t.separator
}

// Prepare joins passages with " <separator> " and records each passage's
// span in the combined string. The span arithmetic must exactly mirror
// the concatenation; Retention slices the combined string by these spans.
func (t *Tracker) Prepare(contexts []string) (string, []Span) {
	var b strings.Builder
	spans := make([]Span, 0, len(contexts))
	glue := " " + t.separator + " "

	for i, context := range contexts {
		if i > 0 {
			b.WriteString(glue)
		}
		start := b.Len()
		b.WriteString(context)
		spans = append(spans, Span{Start: start, End: b.Len()})
	}

	return b.String(), spans
}

// Retention reports, for each passage span, how many of the original
// passage's words (with repetition) appear anywhere in the compressed
// text, case-insensitively. The denominator is floored at 1 so empty
// passages yield a ratio of 0 rather than dividing by zero.
func (t *Tracker) Retention(original, compressed string, spans []Span) map[int]Stats {
	cleaned := strings.TrimSpace(strings.ReplaceAll(compressed, t.separator, " "))

	retained := make(map[string]bool)
	for _, w := range strings.Fields(cleaned) {
		retained[strings.ToLower(w)] = true
	}

	stats := make(map[int]Stats, len(spans))
	for i, span := range spans {
		words := strings.Fields(original[span.Start:span.End])

		count := 0
		for _, w := range words {
			if retained[strings.ToLower(w)] {
				count++
			}
		}

		denom := len(words)
		if denom < 1 {
			denom = 1
		}
		stats[i] = Stats{
			OriginalWords: len(words),
			RetainedWords: count,
			Ratio:         float64(count) / float64(denom),
		}
	}

	return stats
}

// Package dataset loads and filters a local export of the MS MARCO
// question-answering validation split.
package dataset

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// noAnswerSentinels are ground-truth strings that mean the example has
// no usable answer and must be filtered out.
var noAnswerSentinels = map[string]bool{
	"no answer":          true,
	"no answer present":  true,
	"no answer present.": true,
}

// Passages holds the candidate passages for one query, with a binary
// relevance flag per passage. Slices are index-aligned.
type Passages struct {
	PassageText []string `json:"passage_text"`
	IsSelected  []int    `json:"is_selected"`
	URL         []string `json:"url,omitempty"`
}

// Example is one benchmark query. Immutable once loaded.
type Example struct {
	QueryID   int64    `json:"query_id"`
	Query     string   `json:"query"`
	QueryType string   `json:"query_type"`
	Passages  Passages `json:"passages"`
	Answers   []string `json:"answers"`

	// WellFormedAnswers is present in the v2.1 export but unused for
	// scoring; the scorer compares against Answers.
	WellFormedAnswers []string `json:"wellFormedAnswers,omitempty"`
}

// GroundTruth returns the first answer, or "" when absent.
func (e Example) GroundTruth() string {
	if len(e.Answers) == 0 {
		return ""
	}
	return e.Answers[0]
}

// HasValidAnswer reports whether the example carries a non-empty ground
// truth that is not a "no answer" sentinel.
func (e Example) HasValidAnswer() bool {
	answer := e.GroundTruth()
	if answer == "" {
		return false
	}
	return !noAnswerSentinels[strings.ToLower(strings.TrimSpace(answer))]
}

// FilterConfig windows the matching examples.
type FilterConfig struct {
	// QueryType must match the example's query_type exactly.
	QueryType string

	// MaxExamples caps how many examples are collected.
	MaxExamples int

	// Start skips that many matching examples before collecting.
	Start int
}

// Filter keeps examples matching the query type with a valid answer,
// skips the first Start matches, then collects up to MaxExamples in
// input order.
func Filter(examples []Example, cfg FilterConfig) []Example {
	var out []Example
	matched := 0

	for _, ex := range examples {
		if len(out) >= cfg.MaxExamples {
			break
		}
		if ex.QueryType != cfg.QueryType {
			continue
		}
		if !ex.HasValidAnswer() {
			continue
		}

		matched++
		if matched <= cfg.Start {
			continue
		}
		out = append(out, ex)
	}

	return out
}

// Loader reads examples from a local JSON export.
type Loader struct {
	path string
}

// NewLoader creates a loader for the given file.
func NewLoader(path string) *Loader {
	return &Loader{path: path}
}

// Load reads all examples from the file. Both a top-level JSON array and
// newline-delimited JSON objects are accepted; the format is sniffed
// from the first non-space byte.
func (l *Loader) Load() ([]Example, error) {
	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset %s: %w", l.path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	first, err := peekNonSpace(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset %s: %w", l.path, err)
	}

	if first == '[' {
		var examples []Example
		if err := json.NewDecoder(r).Decode(&examples); err != nil {
			return nil, fmt.Errorf("failed to decode dataset %s: %w", l.path, err)
		}
		return examples, nil
	}

	// Newline-delimited objects.
	var examples []Example
	dec := json.NewDecoder(r)
	for {
		var ex Example
		if err := dec.Decode(&ex); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode dataset %s (record %d): %w", l.path, len(examples)+1, err)
		}
		examples = append(examples, ex)
	}
	return examples, nil
}

// peekNonSpace returns the first non-whitespace byte without consuming it.
func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.Peek(1)
		if err != nil {
			return 0, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			if _, err := r.ReadByte(); err != nil {
				return 0, err
			}
		default:
			return b[0], nil
		}
	}
}

package runner

import (
	"encoding/json"
	"fmt"

	"github.com/scaledown-ai/lingoeval/internal/compression"
)

// OriginalResult is the uncompressed baseline for one example.
type OriginalResult struct {
	Context    string `json:"context"`
	Response   string `json:"response"`
	TokenCount int    `json:"token_count"`
}

// MethodResult bundles one compression method's outcome for one example.
type MethodResult struct {
	CompressionResult *compression.Result `json:"compression_result"`
	Response          string              `json:"response"`
	Context           string              `json:"context"`
}

// Record is the per-example output bundle. Method results are serialized
// as top-level keys next to the fixed fields, which is the layout the
// evaluator consumes (records as mappings keyed by method name).
type Record struct {
	QueryID     int64    `json:"query_id"`
	Query       string   `json:"query"`
	GroundTruth string   `json:"ground_truth"`
	Contexts    []string `json:"contexts"`
	IsSelected  []int    `json:"is_selected"`

	Original OriginalResult `json:"original"`

	Methods map[string]MethodResult `json:"-"`
}

// reservedKeys are record fields that can never collide with a
// compression method name.
var reservedKeys = map[string]bool{
	"query_id":     true,
	"query":        true,
	"ground_truth": true,
	"contexts":     true,
	"is_selected":  true,
	"original":     true,
}

// MarshalJSON flattens method results into top-level keys.
func (r Record) MarshalJSON() ([]byte, error) {
	type fixed Record // drop methods, avoid recursion

	base, err := json.Marshal(fixed(r))
	if err != nil {
		return nil, err
	}

	out := make(map[string]json.RawMessage)
	if err := json.Unmarshal(base, &out); err != nil {
		return nil, err
	}

	for name, method := range r.Methods {
		if reservedKeys[name] {
			return nil, fmt.Errorf("method name %q collides with a record field", name)
		}
		raw, err := json.Marshal(method)
		if err != nil {
			return nil, err
		}
		out[name] = raw
	}

	return json.Marshal(out)
}

// UnmarshalJSON reverses the flattening: unknown top-level keys become
// method results.
func (r *Record) UnmarshalJSON(data []byte) error {
	type fixed Record
	var f fixed
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	*r = Record(f)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	for key, value := range raw {
		if reservedKeys[key] {
			continue
		}
		var method MethodResult
		if err := json.Unmarshal(value, &method); err != nil {
			return fmt.Errorf("method block %q: %w", key, err)
		}
		if r.Methods == nil {
			r.Methods = make(map[string]MethodResult)
		}
		r.Methods[key] = method
	}

	return nil
}

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v2"
)

// Filters are encoded as an externally tagged union: parameterless rules
// are a bare string ("Unique"), parameterized rules are a single-key object
// whose value is the parameter or a parameter tuple ({"ChannelCV": [[1, 2], 0.6]}).

// MarshalJSON implements json.Marshaler
func (pf PeptideFilter) MarshalJSON() ([]byte, error) {
	v, err := pf.encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler
func (pf *PeptideFilter) UnmarshalJSON(data []byte) error {
	tag, params, err := splitTagged(data)
	if err != nil {
		return fmt.Errorf("peptide filter: %w", err)
	}

	kind := PeptideFilterKind(tag)
	switch kind {
	case PeptideFilterUnique, PeptideFilterTryptic:
		if params != nil {
			return fmt.Errorf("peptide filter %s takes no parameters", tag)
		}
		*pf = PeptideFilter{Kind: kind}
	case PeptideFilterTotalIntensity:
		var threshold float64
		if err := decodeParam(params, &threshold); err != nil {
			return fmt.Errorf("peptide filter %s: %w", tag, err)
		}
		*pf = TotalIntensityFilter(threshold)
	case PeptideFilterChannelIntensity:
		var channel int
		var threshold float64
		if err := decodeTuple(params, &channel, &threshold); err != nil {
			return fmt.Errorf("peptide filter %s: %w", tag, err)
		}
		*pf = ChannelIntensityFilter(channel, threshold)
	case PeptideFilterChannelCV:
		var channels []int
		var threshold float64
		if err := decodeTuple(params, &channels, &threshold); err != nil {
			return fmt.Errorf("peptide filter %s: %w", tag, err)
		}
		*pf = ChannelCVFilter(channels, threshold)
	default:
		return fmt.Errorf("unknown peptide filter %q", tag)
	}
	return nil
}

func (pf PeptideFilter) encode() (interface{}, error) {
	switch pf.Kind {
	case PeptideFilterUnique, PeptideFilterTryptic:
		return string(pf.Kind), nil
	case PeptideFilterTotalIntensity:
		return map[string]interface{}{string(pf.Kind): pf.Threshold}, nil
	case PeptideFilterChannelIntensity:
		return map[string]interface{}{string(pf.Kind): []interface{}{pf.Channel, pf.Threshold}}, nil
	case PeptideFilterChannelCV:
		channels := pf.Channels
		if channels == nil {
			channels = []int{}
		}
		return map[string]interface{}{string(pf.Kind): []interface{}{channels, pf.Threshold}}, nil
	default:
		return nil, fmt.Errorf("unknown peptide filter %q", pf.Kind)
	}
}

// MarshalJSON implements json.Marshaler
func (pf ProteinFilter) MarshalJSON() ([]byte, error) {
	v, err := pf.encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler
func (pf *ProteinFilter) UnmarshalJSON(data []byte) error {
	tag, params, err := splitTagged(data)
	if err != nil {
		return fmt.Errorf("protein filter: %w", err)
	}

	kind := ProteinFilterKind(tag)
	switch kind {
	case ProteinFilterExcludeReverse:
		if params != nil {
			return fmt.Errorf("protein filter %s takes no parameters", tag)
		}
		*pf = ExcludeReverseFilter()
	case ProteinFilterSequenceCounts:
		var threshold uint32
		if err := decodeParam(params, &threshold); err != nil {
			return fmt.Errorf("protein filter %s: %w", tag, err)
		}
		*pf = SequenceCountsFilter(threshold)
	default:
		return fmt.Errorf("unknown protein filter %q", tag)
	}
	return nil
}

func (pf ProteinFilter) encode() (interface{}, error) {
	switch pf.Kind {
	case ProteinFilterExcludeReverse:
		return string(pf.Kind), nil
	case ProteinFilterSequenceCounts:
		return map[string]interface{}{string(pf.Kind): pf.Threshold}, nil
	default:
		return nil, fmt.Errorf("unknown protein filter %q", pf.Kind)
	}
}

// MarshalJSON writes empty rule lists as [] rather than null
func (f Filter) MarshalJSON() ([]byte, error) {
	type plain Filter
	out := plain(f)
	if out.PeptideFilters == nil {
		out.PeptideFilters = []PeptideFilter{}
	}
	if out.ProteinFilters == nil {
		out.ProteinFilters = []ProteinFilter{}
	}
	return json.Marshal(out)
}

// splitTagged separates a tagged value into its tag and raw parameter.
// params is nil for the bare-string form.
func splitTagged(data []byte) (string, json.RawMessage, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", nil, fmt.Errorf("empty value")
	}

	if data[0] == '"' {
		var tag string
		if err := json.Unmarshal(data, &tag); err != nil {
			return "", nil, err
		}
		return tag, nil, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", nil, fmt.Errorf("expected a string or single-key object: %w", err)
	}
	if len(obj) != 1 {
		return "", nil, fmt.Errorf("expected a single-key object, got %d keys", len(obj))
	}
	for tag, params := range obj {
		return tag, params, nil
	}
	return "", nil, nil
}

func decodeParam(params json.RawMessage, dst interface{}) error {
	if params == nil {
		return fmt.Errorf("missing parameter")
	}
	if err := json.Unmarshal(params, dst); err != nil {
		return fmt.Errorf("invalid parameter %s: %w", string(params), err)
	}
	return nil
}

func decodeTuple(params json.RawMessage, dsts ...interface{}) error {
	if params == nil {
		return fmt.Errorf("missing parameters")
	}
	var items []json.RawMessage
	if err := json.Unmarshal(params, &items); err != nil {
		return fmt.Errorf("parameters must be an array: %w", err)
	}
	if len(items) != len(dsts) {
		return fmt.Errorf("expected %d parameters, got %d", len(dsts), len(items))
	}
	for i, item := range items {
		if err := json.Unmarshal(item, dsts[i]); err != nil {
			return fmt.Errorf("invalid parameter %d (%s): %w", i+1, string(item), err)
		}
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler
func (pf PeptideFilter) MarshalYAML() (interface{}, error) {
	return pf.encode()
}

// UnmarshalYAML implements yaml.Unmarshaler
func (pf *PeptideFilter) UnmarshalYAML(unmarshal func(interface{}) error) error {
	data, err := yamlToJSON(unmarshal)
	if err != nil {
		return fmt.Errorf("peptide filter: %w", err)
	}
	return pf.UnmarshalJSON(data)
}

// MarshalYAML implements yaml.Marshaler
func (pf ProteinFilter) MarshalYAML() (interface{}, error) {
	return pf.encode()
}

// UnmarshalYAML implements yaml.Unmarshaler
func (pf *ProteinFilter) UnmarshalYAML(unmarshal func(interface{}) error) error {
	data, err := yamlToJSON(unmarshal)
	if err != nil {
		return fmt.Errorf("protein filter: %w", err)
	}
	return pf.UnmarshalJSON(data)
}

// yamlToJSON decodes a YAML node generically and re-encodes it as JSON so
// both document formats share one decoder.
func yamlToJSON(unmarshal func(interface{}) error) ([]byte, error) {
	var raw interface{}
	if err := unmarshal(&raw); err != nil {
		return nil, err
	}
	normalized, err := normalizeYAML(raw)
	if err != nil {
		return nil, err
	}
	return json.Marshal(normalized)
}

func normalizeYAML(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("keys must be strings, got %v", k)
			}
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			m[key] = n
		}
		return m, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			n, err := normalizeYAML(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return v, nil
	}
}

// ParseFilterJSON decodes a JSON filter document. Unknown fields are rejected.
func ParseFilterJSON(data []byte) (*Filter, error) {
	f := NewFilter()
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("failed to decode filter: unexpected data after the filter document")
	}
	return f, nil
}

// ParseFilterYAML decodes a YAML filter document. Unknown fields are rejected.
func ParseFilterYAML(data []byte) (*Filter, error) {
	f := NewFilter()
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("failed to decode filter: %w", err)
	}
	return f, nil
}

// EncodeYAML renders the filter as a YAML document
func (f *Filter) EncodeYAML() ([]byte, error) {
	out := *f
	if out.PeptideFilters == nil {
		out.PeptideFilters = []PeptideFilter{}
	}
	if out.ProteinFilters == nil {
		out.ProteinFilters = []ProteinFilter{}
	}
	return yaml.Marshal(&out)
}

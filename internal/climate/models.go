package climate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// AnalysisType selects which backend analysis the dashboard shows.
type AnalysisType string

const (
	AnalysisRaw      AnalysisType = "raw"
	AnalysisWeighted AnalysisType = "weighted"
	AnalysisTrends   AnalysisType = "trends"
)

// AnalysisTypes lists the supported modes in display order.
var AnalysisTypes = []AnalysisType{AnalysisRaw, AnalysisWeighted, AnalysisTrends}

// ParseAnalysisType returns the AnalysisType named by s.
func ParseAnalysisType(s string) (AnalysisType, error) {
	for _, t := range AnalysisTypes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown analysis type %q", s)
}

// Valid reports whether t is one of the enumerated modes.
func (t AnalysisType) Valid() bool {
	_, err := ParseAnalysisType(string(t))
	return err == nil
}

// Location is a monitoring site as served by /locations.
type Location struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Region    string  `json:"region,omitempty"`
	Country   string  `json:"country,omitempty"`
}

// Metric describes a measured quantity as served by /metrics.
// Filters reference metrics by Name.
type Metric struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Unit        string `json:"unit,omitempty"`
	Description string `json:"description,omitempty"`
}

// Quality is the quality rating attached to an observation. The backend
// sends either a label ("excellent", "good", ...) or a numeric score; both
// are kept in their textual form.
type Quality string

func (q *Quality) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*q = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*q = Quality(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("quality must be a string or a number: %w", err)
	}
	*q = Quality(n.String())
	return nil
}

// Observation is a single data point returned by the raw and weighted paths.
type Observation struct {
	ID            int      `json:"id"`
	LocationID    int      `json:"location_id"`
	LocationName  string   `json:"location_name,omitempty"`
	Date          string   `json:"date"`
	Metric        string   `json:"metric"`
	Value         float64  `json:"value"`
	Unit          string   `json:"unit,omitempty"`
	Quality       Quality  `json:"quality"`
	WeightedValue *float64 `json:"weighted_value,omitempty"` // weighted path only
	QualityWeight *float64 `json:"quality_weight,omitempty"` // weighted path only

	// Extra holds the fields this struct does not model, and the fields whose
	// value did not fit it, as sent by the backend. They are written back
	// when the observation is encoded.
	Extra map[string]json.RawMessage `json:"-"`
}

// FieldError lists observation fields whose value had an unexpected type.
// The observation is still decoded; the raw values are kept in Extra.
type FieldError struct {
	Fields []string
}

func (e *FieldError) Error() string {
	return "unexpected value type for " + strings.Join(e.Fields, ", ")
}

// UnmarshalJSON decodes field by field, so one badly typed value does not
// discard the rest of the record. It returns a *FieldError in that case.
func (o *Observation) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return fmt.Errorf("observation must be an object: %w", err)
	}

	*o = Observation{}
	var bad []string
	for key, raw := range fields {
		known, err := o.decodeField(key, raw)
		if known && err == nil {
			continue
		}
		if known {
			bad = append(bad, key)
		}
		if o.Extra == nil {
			o.Extra = make(map[string]json.RawMessage)
		}
		o.Extra[key] = raw
	}

	if len(bad) > 0 {
		sort.Strings(bad)
		return &FieldError{Fields: bad}
	}
	return nil
}

func (o *Observation) decodeField(key string, raw json.RawMessage) (bool, error) {
	var target any
	switch key {
	case "id":
		target = &o.ID
	case "location_id":
		target = &o.LocationID
	case "location_name":
		target = &o.LocationName
	case "date":
		target = &o.Date
	case "metric":
		target = &o.Metric
	case "value":
		target = &o.Value
	case "unit":
		target = &o.Unit
	case "quality":
		target = &o.Quality
	case "weighted_value":
		return true, decodeOptional(raw, &o.WeightedValue)
	case "quality_weight":
		return true, decodeOptional(raw, &o.QualityWeight)
	default:
		return false, nil
	}
	return true, json.Unmarshal(raw, target)
}

// decodeOptional leaves *dst as it was when raw does not decode.
func decodeOptional(raw json.RawMessage, dst **float64) error {
	var v *float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// MarshalJSON encodes the typed fields, then Extra on top of them.
func (o Observation) MarshalJSON() ([]byte, error) {
	type plain Observation
	base, err := json.Marshal(plain(o))
	if err != nil || len(o.Extra) == 0 {
		return base, err
	}

	merged := make(map[string]json.RawMessage, len(o.Extra)+10)
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for key, raw := range o.Extra {
		merged[key] = raw
	}
	return json.Marshal(merged)
}

// TrendResult is the aggregate returned by the trends path. Its contents are
// produced by the backend and are not interpreted here.
type TrendResult map[string]any

// Envelope is a decoded backend response body before normalization.
type Envelope struct {
	Data json.RawMessage `json:"data,omitempty"`
	Meta json.RawMessage `json:"meta,omitempty"`
}

// HasData reports whether the envelope carries a non-null data field.
func (e Envelope) HasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

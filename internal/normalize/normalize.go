package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/i474232898/ecovision/internal/climate"
)

// Slot names the orchestrator slot an outcome belongs to.
type Slot int

const (
	SlotSeries Slot = iota
	SlotTrend
)

func (s Slot) String() string {
	if s == SlotTrend {
		return "trend"
	}
	return "series"
}

// Fallback records which tolerant branch produced an outcome.
type Fallback int

const (
	// FallbackNone: the payload had the expected data field and shape.
	FallbackNone Fallback = iota
	// FallbackMissingData: the data field was absent or null.
	FallbackMissingData
	// FallbackMalformedData: the data field had the wrong JSON shape.
	FallbackMalformedData
	// FallbackInvalidRecords: some records had badly typed fields (kept, raw
	// values in Extra) or were not objects (dropped).
	FallbackInvalidRecords
)

func (f Fallback) String() string {
	switch f {
	case FallbackMissingData:
		return "missing-data"
	case FallbackMalformedData:
		return "malformed-data"
	case FallbackInvalidRecords:
		return "invalid-records"
	default:
		return "none"
	}
}

// ShapeError describes a payload that did not match its mode. It is reported
// in the Outcome for logging and never returned as an error.
type ShapeError struct {
	Mode     climate.AnalysisType
	Fallback Fallback
	Err      error
}

func (e *ShapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s payload: %s: %v", e.Mode, e.Fallback, e.Err)
	}
	return fmt.Sprintf("%s payload: %s", e.Mode, e.Fallback)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// Outcome is a normalized payload. For raw and weighted modes Series is
// always non-nil; for trends Trend is nil when the slot must stay untouched.
type Outcome struct {
	Mode     climate.AnalysisType
	Series   []climate.Observation
	Trend    climate.TrendResult
	Fallback Fallback
	Shape    *ShapeError
}

// Slot returns the slot this outcome may be written to.
func (o Outcome) Slot() Slot {
	if o.Mode == climate.AnalysisTrends {
		return SlotTrend
	}
	return SlotSeries
}

// Normalize maps a payload into its canonical shape for mode. Missing or
// malformed data never fails: raw and weighted fall back to an empty series,
// trends falls back to leaving the trend slot as it is. Series records are
// decoded one by one and kept in backend order; values are not checked.
func Normalize(mode climate.AnalysisType, env climate.Envelope) (Outcome, error) {
	switch mode {
	case climate.AnalysisRaw, climate.AnalysisWeighted:
		return series(mode, env), nil
	case climate.AnalysisTrends:
		return trend(env), nil
	default:
		return Outcome{}, fmt.Errorf("normalize: unknown analysis type %q", mode)
	}
}

func series(mode climate.AnalysisType, env climate.Envelope) Outcome {
	out := Outcome{Mode: mode, Series: []climate.Observation{}}
	if !env.HasData() {
		out.Fallback = FallbackMissingData
		out.Shape = &ShapeError{Mode: mode, Fallback: FallbackMissingData}
		return out
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(env.Data, &elems); err != nil {
		out.Fallback = FallbackMalformedData
		out.Shape = &ShapeError{Mode: mode, Fallback: FallbackMalformedData, Err: err}
		return out
	}

	var problems []error
	for i, raw := range elems {
		if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
			problems = append(problems, fmt.Errorf("record %d dropped: null", i))
			continue
		}

		var rec climate.Observation
		err := json.Unmarshal(raw, &rec)
		var fe *climate.FieldError
		switch {
		case err == nil:
		case errors.As(err, &fe):
			problems = append(problems, fmt.Errorf("record %d: %w", i, err))
		default:
			problems = append(problems, fmt.Errorf("record %d dropped: %w", i, err))
			continue
		}
		out.Series = append(out.Series, rec)
	}

	if len(problems) > 0 {
		out.Fallback = FallbackInvalidRecords
		out.Shape = &ShapeError{Mode: mode, Fallback: FallbackInvalidRecords, Err: errors.Join(problems...)}
	}
	return out
}

func trend(env climate.Envelope) Outcome {
	out := Outcome{Mode: climate.AnalysisTrends}
	if !env.HasData() {
		out.Fallback = FallbackMissingData
		out.Shape = &ShapeError{Mode: out.Mode, Fallback: FallbackMissingData}
		return out
	}

	var result climate.TrendResult
	if err := json.Unmarshal(env.Data, &result); err != nil {
		out.Fallback = FallbackMalformedData
		out.Shape = &ShapeError{Mode: out.Mode, Fallback: FallbackMalformedData, Err: err}
		return out
	}
	if result == nil {
		result = climate.TrendResult{}
	}
	out.Trend = result
	return out
}

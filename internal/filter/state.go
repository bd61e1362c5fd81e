package filter

import (
	"github.com/go-playground/validator/v10"

	"github.com/i474232898/ecovision/internal/climate"
)

var validate = validator.New()

// State is the user's filter selection. Every field except AnalysisType is
// optional; the empty string means "no restriction".
type State struct {
	LocationID string `json:"locationId"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	Metric     string `json:"metric"`
	// QualityThreshold is kept as typed by the user (a score or a quality
	// label) and forwarded as-is.
	QualityThreshold string               `json:"qualityThreshold"`
	AnalysisType     climate.AnalysisType `json:"analysisType" validate:"required,oneof=raw weighted trends"`
}

// Default returns the startup filters: everything unset, raw analysis.
func Default() State {
	return State{AnalysisType: climate.AnalysisRaw}
}

// Validate checks the only constrained field, AnalysisType.
func (s State) Validate() error {
	return validate.Struct(s)
}

// Patch is a staged edit of one or more filter fields. Nil fields are left
// unchanged; a pointer to "" clears the field.
type Patch struct {
	LocationID       *string               `json:"locationId,omitempty"`
	StartDate        *string               `json:"startDate,omitempty"`
	EndDate          *string               `json:"endDate,omitempty"`
	Metric           *string               `json:"metric,omitempty"`
	QualityThreshold *string               `json:"qualityThreshold,omitempty"`
	AnalysisType     *climate.AnalysisType `json:"analysisType,omitempty" validate:"omitempty,oneof=raw weighted trends"`
}

// Validate rejects a patch that would switch to an unknown analysis type.
func (p Patch) Validate() error {
	return validate.Struct(p)
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.LocationID == nil && p.StartDate == nil && p.EndDate == nil &&
		p.Metric == nil && p.QualityThreshold == nil && p.AnalysisType == nil
}

// Apply returns a copy of s with the patch applied. s itself is not modified.
func (s State) Apply(p Patch) State {
	if p.LocationID != nil {
		s.LocationID = *p.LocationID
	}
	if p.StartDate != nil {
		s.StartDate = *p.StartDate
	}
	if p.EndDate != nil {
		s.EndDate = *p.EndDate
	}
	if p.Metric != nil {
		s.Metric = *p.Metric
	}
	if p.QualityThreshold != nil {
		s.QualityThreshold = *p.QualityThreshold
	}
	if p.AnalysisType != nil {
		s.AnalysisType = *p.AnalysisType
	}
	return s
}

// SetLocation returns a patch selecting a location id; "" means all locations.
func SetLocation(id string) Patch { return Patch{LocationID: &id} }

// SetStartDate returns a patch setting the inclusive start date.
func SetStartDate(d string) Patch { return Patch{StartDate: &d} }

// SetEndDate returns a patch setting the inclusive end date.
func SetEndDate(d string) Patch { return Patch{EndDate: &d} }

// SetMetric returns a patch selecting a metric by name; "" means all metrics.
func SetMetric(name string) Patch { return Patch{Metric: &name} }

// SetQualityThreshold returns a patch setting the quality lower bound, a
// score or a label.
func SetQualityThreshold(v string) Patch { return Patch{QualityThreshold: &v} }

// SetAnalysisType returns a patch switching the analysis mode.
func SetAnalysisType(t climate.AnalysisType) Patch { return Patch{AnalysisType: &t} }

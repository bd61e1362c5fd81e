package filter

import "strings"

// Query field names understood by the backend.
const (
	FieldLocationID       = "location_id"
	FieldStartDate        = "start_date"
	FieldEndDate          = "end_date"
	FieldMetric           = "metric"
	FieldQualityThreshold = "quality_threshold"
)

// BuildQuery converts a filter snapshot into query parameters. Only non-empty
// fields are included; AnalysisType never is, it selects the resource instead.
// Values are not validated: date order and numeric ranges are the backend's
// concern.
func BuildQuery(s State) map[string]string {
	q := make(map[string]string, 5)
	put := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			q[key] = v
		}
	}

	put(FieldLocationID, s.LocationID)
	put(FieldStartDate, s.StartDate)
	put(FieldEndDate, s.EndDate)
	put(FieldMetric, s.Metric)
	put(FieldQualityThreshold, s.QualityThreshold)

	return q
}

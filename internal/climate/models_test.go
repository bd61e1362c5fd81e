package climate

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseAnalysisType(t *testing.T) {
	for _, name := range []string{"raw", "weighted", "trends"} {
		got, err := ParseAnalysisType(name)
		if err != nil {
			t.Fatalf("ParseAnalysisType(%q): unexpected error: %v", name, err)
		}
		if string(got) != name || !got.Valid() {
			t.Fatalf("ParseAnalysisType(%q) = %q", name, got)
		}
	}

	if _, err := ParseAnalysisType("summary"); err == nil {
		t.Fatal("expected error for unknown analysis type")
	}
	if AnalysisType("").Valid() {
		t.Fatal("empty analysis type must not be valid")
	}
}

// TestQualityAcceptsLabelsAndScores verifies that observations decode whether
// the backend sends a quality label or a numeric score.
func TestQualityAcceptsLabelsAndScores(t *testing.T) {
	body := `[
		{"id":1,"location_id":1,"date":"2025-01-01","metric":"temperature","value":3.5,"quality":"excellent"},
		{"id":2,"location_id":1,"date":"2025-01-02","metric":"temperature","value":4.0,"quality":0.8},
		{"id":3,"location_id":1,"date":"2025-01-03","metric":"temperature","value":4.5,"quality":null}
	]`

	var obs []Observation
	if err := json.Unmarshal([]byte(body), &obs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []Quality{"excellent", "0.8", ""}
	for i, w := range want {
		if obs[i].Quality != w {
			t.Errorf("obs[%d].Quality = %q, want %q", i, obs[i].Quality, w)
		}
	}

	if err := json.Unmarshal([]byte(`[{"quality":{"a":1}}]`), &obs); err == nil {
		t.Fatal("expected error for object quality")
	}
}

func TestEnvelopeHasData(t *testing.T) {
	cases := map[string]bool{
		`{}`:                 false,
		`{"data":null}`:      false,
		`{"data":[]}`:        true,
		`{"data":{}}`:        true,
		`{"data":{"a":1.2}}`: true,
	}
	for body, want := range cases {
		var env Envelope
		if err := json.Unmarshal([]byte(body), &env); err != nil {
			t.Fatalf("%s: unexpected error: %v", body, err)
		}
		if got := env.HasData(); got != want {
			t.Errorf("%s: HasData() = %v, want %v", body, got, want)
		}
	}
}

func TestObservationRoundTripsUnknownFields(t *testing.T) {
	body := `{"id":4,"location_id":2,"date":"2025-03-01","metric":"rainfall","value":"trace","quality":"good","station":"KSNA"}`

	var obs Observation
	err := json.Unmarshal([]byte(body), &obs)
	var fe *FieldError
	if !errors.As(err, &fe) || len(fe.Fields) != 1 || fe.Fields[0] != "value" {
		t.Fatalf("expected field error for value, got %v", err)
	}
	if obs.ID != 4 || obs.Metric != "rainfall" || obs.Quality != "good" {
		t.Fatalf("typed fields not decoded: %+v", obs)
	}
	if string(obs.Extra["station"]) != `"KSNA"` || string(obs.Extra["value"]) != `"trace"` {
		t.Fatalf("extra = %v", obs.Extra)
	}

	out, err := json.Marshal(obs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got, want map[string]any
	if err := json.Unmarshal(out, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := json.Unmarshal([]byte(body), &want); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip = %s, want %s", out, body)
	}
}

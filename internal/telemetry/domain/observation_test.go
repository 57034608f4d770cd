package telemetry

import (
	"math"
	"testing"
	"time"
)

func TestObservationValidate(t *testing.T) {
	valid := Observation{
		RouterID:  "router-a",
		KPI:       "CPU",
		Value:     42,
		Timestamp: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid observation rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Observation)
	}{
		{"empty router", func(o *Observation) { o.RouterID = "" }},
		{"empty kpi", func(o *Observation) { o.KPI = "" }},
		{"NaN value", func(o *Observation) { o.Value = math.NaN() }},
		{"infinite value", func(o *Observation) { o.Value = math.Inf(1) }},
		{"zero timestamp", func(o *Observation) { o.Timestamp = time.Time{} }},
	}
	for _, tc := range cases {
		obs := valid
		tc.mutate(&obs)
		if err := obs.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

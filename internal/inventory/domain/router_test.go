package inventory

import "testing"

func TestStandardThresholdValueFor(t *testing.T) {
	threshold := StandardThreshold{CPU: 80, RAM: 4096, Traffic: 900}

	cases := []struct {
		kpi   string
		value float64
		unit  string
	}{
		{"CPU", 80, "%"},
		{"cpu_usage", 80, "%"},
		{"RAM", 4096, "MB"},
		{"memory", 4096, "MB"},
		{" TRAFFIC ", 900, "Mbps"},
		{"traffic_mbps", 900, "Mbps"},
	}
	for _, tc := range cases {
		value, unit, ok := threshold.ValueFor(tc.kpi)
		if !ok {
			t.Fatalf("%s: expected a mapping", tc.kpi)
		}
		if value != tc.value || unit != tc.unit {
			t.Fatalf("%s: got (%v, %s), want (%v, %s)", tc.kpi, value, unit, tc.value, tc.unit)
		}
	}

	if _, _, ok := threshold.ValueFor("TEMPERATURE"); ok {
		t.Fatal("unknown KPI must not map to a threshold")
	}
}

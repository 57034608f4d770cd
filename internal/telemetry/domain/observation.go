package telemetry

import (
	"context"
	"errors"
	"math"
	"time"
)

// Observation is one validated telemetry sample for a router KPI. The
// interface id is empty for router-level quantities such as CPU or RAM.
type Observation struct {
	RouterID    string    `json:"router_id"`
	InterfaceID string    `json:"interface_id,omitempty"`
	KPI         string    `json:"kpi"`
	Value       float64   `json:"value"`
	Timestamp   time.Time `json:"timestamp"`
}

// Validate checks the observation at the boundary so consumers never
// re-interpret loosely shaped records.
func (o Observation) Validate() error {
	if o.RouterID == "" {
		return errors.New("observation: empty router id")
	}
	if o.KPI == "" {
		return errors.New("observation: empty kpi")
	}
	if math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return errors.New("observation: value not finite")
	}
	if o.Timestamp.IsZero() {
		return errors.New("observation: zero timestamp")
	}
	return nil
}

// LatestReader supplies the most recent value for a (router, interface, KPI)
// tuple within a recency window. A missing or stale value returns ok=false,
// not an error.
type LatestReader interface {
	Latest(ctx context.Context, routerID, interfaceID, kpi string, notBefore time.Time) (Observation, bool, error)
}

package inventory

import (
	"strings"
	"time"
)

// Router is a monitored device.
type Router struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Hostname  string    `json:"hostname"`
	CreatedAt time.Time `json:"created_at"`
}

// Interface is one port on a router.
type Interface struct {
	ID       string `json:"id"`
	RouterID string `json:"router_id"`
	Name     string `json:"name"`
}

// StandardThreshold is the per-router fallback threshold set, consulted for
// KPIs that have no explicit threshold rule. Kept for backward compatibility
// with pre-rule deployments.
type StandardThreshold struct {
	ID      string
	Name    string
	CPU     float64
	RAM     float64
	Traffic float64
}

// ValueFor maps a KPI name onto the matching standard threshold and unit.
// Unknown KPIs return ok=false.
func (t StandardThreshold) ValueFor(kpi string) (value float64, unit string, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(kpi)) {
	case "CPU", "CPU_USAGE":
		return t.CPU, "%", true
	case "RAM", "MEMORY", "MEMORY_USAGE":
		return t.RAM, "MB", true
	case "TRAFFIC", "TRAFFIC_MBPS", "INTERFACE_TRAFFIC":
		return t.Traffic, "Mbps", true
	default:
		return 0, "", false
	}
}

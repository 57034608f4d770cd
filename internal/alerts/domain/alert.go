package alerts

import "time"

const (
	StatusActive       = "active"
	StatusAcknowledged = "acknowledged"
	StatusResolved     = "resolved"
	StatusDismissed    = "dismissed"
)

const (
	TypeRule      = "rule"
	TypeThreshold = "threshold"
)

// ActorSystem identifies transitions performed by the evaluator itself.
const ActorSystem = "system"

// Alert represents one raised condition on a router or interface.
type Alert struct {
	ID             string    `json:"id"`
	RuleID         string    `json:"rule_id,omitempty"`
	Type           string    `json:"type"`
	RouterID       string    `json:"router_id"`
	InterfaceID    string    `json:"interface_id,omitempty"`
	KPI            string    `json:"kpi"`
	Severity       Severity  `json:"severity"`
	Status         string    `json:"status"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	MetricName     string    `json:"metric_name"`
	CurrentValue   float64   `json:"current_value"`
	ThresholdValue float64   `json:"threshold_value"`
	Unit           string    `json:"unit,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	AcknowledgedAt time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     time.Time `json:"resolved_at,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Open reports whether the alert still demands attention.
func (a Alert) Open() bool {
	return a.Status == StatusActive || a.Status == StatusAcknowledged
}

// Terminal reports whether the alert reached a final status.
func (a Alert) Terminal() bool {
	return a.Status == StatusResolved || a.Status == StatusDismissed
}

// CanAcknowledge rejects acknowledge on anything but an active alert.
func (a Alert) CanAcknowledge() error {
	if a.Status != StatusActive {
		return ErrAlertNotActive
	}
	return nil
}

// CanResolve rejects resolve on terminal alerts.
func (a Alert) CanResolve() error {
	if a.Terminal() {
		return ErrAlertTerminal
	}
	return nil
}

// CanDismiss rejects dismiss on terminal alerts.
func (a Alert) CanDismiss() error {
	if a.Terminal() {
		return ErrAlertTerminal
	}
	return nil
}

// HistoryEntry is one append-only record of an alert status transition.
// Every status change, including creation, writes exactly one entry in the
// same transaction as the change itself.
type HistoryEntry struct {
	ID             string    `json:"id"`
	AlertID        string    `json:"alert_id"`
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	Actor          string    `json:"actor"`
	Comment        string    `json:"comment,omitempty"`
	At             time.Time `json:"at"`
}

// Summary aggregates open alerts for the dashboard.
type Summary struct {
	TotalActive int            `json:"total_active"`
	BySeverity  map[string]int `json:"by_severity"`
	ByType      map[string]int `json:"by_type"`
}

// Filter narrows alert listings.
type Filter struct {
	Status   string
	Severity Severity
	RouterID string
	Type     string
}

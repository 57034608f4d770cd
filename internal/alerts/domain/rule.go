package alerts

import (
	"errors"
	"time"
)

type Operator string

const (
	OperatorGreater        Operator = ">"
	OperatorGreaterOrEqual Operator = ">="
	OperatorLess           Operator = "<"
	OperatorLessOrEqual    Operator = "<="
	OperatorEqual          Operator = "=="
	OperatorNotEqual       Operator = "!="
)

// Valid returns true when the operator is supported.
func (o Operator) Valid() bool {
	switch o {
	case OperatorGreater, OperatorGreaterOrEqual, OperatorLess, OperatorLessOrEqual, OperatorEqual, OperatorNotEqual:
		return true
	default:
		return false
	}
}

// Apply evaluates the operator against (value, threshold).
func (o Operator) Apply(value, threshold float64) bool {
	switch o {
	case OperatorGreater:
		return value > threshold
	case OperatorGreaterOrEqual:
		return value >= threshold
	case OperatorLess:
		return value < threshold
	case OperatorLessOrEqual:
		return value <= threshold
	case OperatorEqual:
		return value == threshold
	case OperatorNotEqual:
		return value != threshold
	default:
		return false
	}
}

// DefaultCooldownMinutes applies when a rule does not set its own cooldown.
const DefaultCooldownMinutes = 5

// ThresholdRule binds a KPI to a comparison, severity and cooldown. Rules
// are configured by operators and read-only to the evaluator. An empty
// RouterID/InterfaceID leaves the rule unscoped for that dimension.
type ThresholdRule struct {
	ID              string
	Name            string
	Description     string
	KPI             string
	Operator        Operator
	Threshold       float64
	Severity        Severity
	RouterID        string
	InterfaceID     string
	Active          bool
	CooldownMinutes int
	EmailRecipients []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Validate checks rule invariants.
func (r ThresholdRule) Validate() error {
	if r.ID == "" {
		return errors.New("threshold rule: empty id")
	}
	if r.Name == "" {
		return errors.New("threshold rule: empty name")
	}
	if r.KPI == "" {
		return errors.New("threshold rule: empty kpi")
	}
	if !r.Operator.Valid() {
		return errors.New("threshold rule: invalid operator")
	}
	if r.Severity != "" && !r.Severity.Valid() {
		return errors.New("threshold rule: invalid severity")
	}
	if r.CooldownMinutes < 0 {
		return errors.New("threshold rule: negative cooldown")
	}
	return nil
}

// Cooldown returns the dedup window for the rule.
func (r ThresholdRule) Cooldown() time.Duration {
	minutes := r.CooldownMinutes
	if minutes <= 0 {
		minutes = DefaultCooldownMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// MatchesScope reports whether the rule applies to the given router and
// interface. Unscoped dimensions match everything.
func (r ThresholdRule) MatchesScope(routerID, interfaceID string) bool {
	if r.RouterID != "" && r.RouterID != routerID {
		return false
	}
	if r.InterfaceID != "" && r.InterfaceID != interfaceID {
		return false
	}
	return true
}

// ScopeSpecificity ranks how narrowly the rule is scoped. Interface-scoped
// rules shadow router-scoped ones, which shadow unscoped ones.
func (r ThresholdRule) ScopeSpecificity() int {
	specificity := 0
	if r.RouterID != "" {
		specificity++
	}
	if r.InterfaceID != "" {
		specificity++
	}
	return specificity
}

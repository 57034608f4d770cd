package alerts

import "strings"

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid returns true when the severity is supported.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	default:
		return false
	}
}

// SeverityAtLeast returns true when value ranks at or above target.
func SeverityAtLeast(value, target Severity) bool {
	return severityRank(value) >= severityRank(target)
}

func severityRank(value Severity) int {
	switch Severity(strings.TrimSpace(strings.ToLower(string(value)))) {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// ExcessPercent returns how far value exceeds threshold, in percent of the
// threshold. Returns 0 for a zero threshold.
func ExcessPercent(value, threshold float64) float64 {
	if threshold == 0 {
		return 0
	}
	return (value - threshold) / threshold * 100
}

// SeverityFromExcess maps a percentage-over-threshold to a severity tier:
// >= 100 critical, >= 50 high, >= 20 medium, below that low.
func SeverityFromExcess(pct float64) Severity {
	switch {
	case pct >= 100:
		return SeverityCritical
	case pct >= 50:
		return SeverityHigh
	case pct >= 20:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// SeverityResolver decides the severity of a triggered alert.
type SeverityResolver interface {
	Resolve(value, threshold float64) Severity
}

// RuleSeverity resolves to the severity configured on a threshold rule.
type RuleSeverity struct {
	Severity Severity
}

// Resolve implements SeverityResolver.
func (r RuleSeverity) Resolve(_, _ float64) Severity {
	if !r.Severity.Valid() {
		return SeverityMedium
	}
	return r.Severity
}

// ExcessSeverity resolves severity from the percentage the observed value
// exceeds the threshold by. Used for standard-threshold alerts which carry
// no configured severity.
type ExcessSeverity struct{}

// Resolve implements SeverityResolver.
func (ExcessSeverity) Resolve(value, threshold float64) Severity {
	return SeverityFromExcess(ExcessPercent(value, threshold))
}

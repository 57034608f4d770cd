package alerts

import (
	"testing"
	"time"
)

func validRule() ThresholdRule {
	return ThresholdRule{
		ID:        "rule-1",
		Name:      "CPU High",
		KPI:       "CPU",
		Operator:  OperatorGreater,
		Threshold: 80,
		Severity:  SeverityHigh,
		Active:    true,
	}
}

func TestThresholdRuleValidate(t *testing.T) {
	if err := validRule().Validate(); err != nil {
		t.Fatalf("valid rule rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*ThresholdRule)
	}{
		{"empty id", func(r *ThresholdRule) { r.ID = "" }},
		{"empty name", func(r *ThresholdRule) { r.Name = "" }},
		{"empty kpi", func(r *ThresholdRule) { r.KPI = "" }},
		{"bad operator", func(r *ThresholdRule) { r.Operator = "~" }},
		{"bad severity", func(r *ThresholdRule) { r.Severity = "extreme" }},
		{"negative cooldown", func(r *ThresholdRule) { r.CooldownMinutes = -1 }},
	}
	for _, tc := range cases {
		rule := validRule()
		tc.mutate(&rule)
		if err := rule.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}

	rule := validRule()
	rule.Severity = ""
	if err := rule.Validate(); err != nil {
		t.Fatalf("empty severity is allowed, got %v", err)
	}
}

func TestOperatorApply(t *testing.T) {
	cases := []struct {
		op        Operator
		value     float64
		threshold float64
		want      bool
	}{
		{OperatorGreater, 81, 80, true},
		{OperatorGreater, 80, 80, false},
		{OperatorGreaterOrEqual, 80, 80, true},
		{OperatorLess, 79, 80, true},
		{OperatorLessOrEqual, 80, 80, true},
		{OperatorEqual, 80, 80, true},
		{OperatorEqual, 80.1, 80, false},
		{OperatorNotEqual, 80.1, 80, true},
		{Operator("~"), 81, 80, false},
	}
	for _, tc := range cases {
		if got := tc.op.Apply(tc.value, tc.threshold); got != tc.want {
			t.Fatalf("%s.Apply(%v, %v) = %v, want %v", tc.op, tc.value, tc.threshold, got, tc.want)
		}
	}
}

func TestRuleCooldownDefault(t *testing.T) {
	rule := validRule()
	if got := rule.Cooldown(); got != DefaultCooldownMinutes*time.Minute {
		t.Fatalf("expected default cooldown, got %v", got)
	}
	rule.CooldownMinutes = 10
	if got := rule.Cooldown(); got != 10*time.Minute {
		t.Fatalf("expected 10m cooldown, got %v", got)
	}
}

func TestRuleScope(t *testing.T) {
	unscoped := validRule()
	if !unscoped.MatchesScope("router-a", "eth0") {
		t.Fatal("unscoped rule must match any tuple")
	}
	if unscoped.ScopeSpecificity() != 0 {
		t.Fatal("unscoped specificity must be 0")
	}

	routerScoped := validRule()
	routerScoped.RouterID = "router-a"
	if !routerScoped.MatchesScope("router-a", "") || routerScoped.MatchesScope("router-b", "") {
		t.Fatal("router-scoped rule must match only its router")
	}
	if routerScoped.ScopeSpecificity() != 1 {
		t.Fatal("router-scoped specificity must be 1")
	}

	ifaceScoped := routerScoped
	ifaceScoped.InterfaceID = "eth0"
	if !ifaceScoped.MatchesScope("router-a", "eth0") || ifaceScoped.MatchesScope("router-a", "eth1") {
		t.Fatal("interface-scoped rule must match only its interface")
	}
	if ifaceScoped.ScopeSpecificity() != 2 {
		t.Fatal("interface-scoped specificity must be 2")
	}
}

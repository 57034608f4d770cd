package alerts

import (
	"errors"
	"testing"
)

func TestAlertStatusPredicates(t *testing.T) {
	cases := []struct {
		status   string
		open     bool
		terminal bool
	}{
		{StatusActive, true, false},
		{StatusAcknowledged, true, false},
		{StatusResolved, false, true},
		{StatusDismissed, false, true},
	}
	for _, tc := range cases {
		alert := Alert{Status: tc.status}
		if alert.Open() != tc.open {
			t.Fatalf("%s: Open() = %v, want %v", tc.status, alert.Open(), tc.open)
		}
		if alert.Terminal() != tc.terminal {
			t.Fatalf("%s: Terminal() = %v, want %v", tc.status, alert.Terminal(), tc.terminal)
		}
	}
}

func TestAlertTransitionGuards(t *testing.T) {
	active := Alert{Status: StatusActive}
	if err := active.CanAcknowledge(); err != nil {
		t.Fatalf("active alert must be acknowledgeable: %v", err)
	}
	if err := active.CanResolve(); err != nil {
		t.Fatalf("active alert must be resolvable: %v", err)
	}

	acked := Alert{Status: StatusAcknowledged}
	if err := acked.CanAcknowledge(); !errors.Is(err, ErrAlertNotActive) {
		t.Fatalf("double acknowledge must fail with ErrAlertNotActive, got %v", err)
	}
	if err := acked.CanResolve(); err != nil {
		t.Fatalf("acknowledged alert must be resolvable: %v", err)
	}
	if err := acked.CanDismiss(); err != nil {
		t.Fatalf("acknowledged alert must be dismissible: %v", err)
	}

	for _, status := range []string{StatusResolved, StatusDismissed} {
		terminal := Alert{Status: status}
		if err := terminal.CanResolve(); !errors.Is(err, ErrAlertTerminal) {
			t.Fatalf("%s: resolve must fail with ErrAlertTerminal, got %v", status, err)
		}
		if err := terminal.CanDismiss(); !errors.Is(err, ErrAlertTerminal) {
			t.Fatalf("%s: dismiss must fail with ErrAlertTerminal, got %v", status, err)
		}
		if err := terminal.CanAcknowledge(); !errors.Is(err, ErrAlertNotActive) {
			t.Fatalf("%s: acknowledge must fail with ErrAlertNotActive, got %v", status, err)
		}
	}
}

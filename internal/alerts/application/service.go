package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	alerts "router-supervisor/internal/alerts/domain"
	inventory "router-supervisor/internal/inventory/domain"
	"router-supervisor/internal/observability/metrics"
	telemetry "router-supervisor/internal/telemetry/domain"
)

// RuleStore enumerates configured threshold rules. Read-only to the service.
type RuleStore interface {
	ListActiveByKPI(ctx context.Context, kpi string) ([]alerts.ThresholdRule, error)
}

// AlertStore persists alerts and their transition history. Every mutation
// that changes an alert status must write its history entry in the same
// transaction.
type AlertStore interface {
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
	FindOpen(ctx context.Context, routerID, interfaceID, kpi string) (*alerts.Alert, error)
	Create(ctx context.Context, alert *alerts.Alert, entry alerts.HistoryEntry) error
	UpdateCurrentValue(ctx context.Context, id string, value float64, at time.Time) error
	MarkAcknowledged(ctx context.Context, id string, at time.Time, entry alerts.HistoryEntry) error
	MarkResolved(ctx context.Context, id string, value float64, at time.Time, entry alerts.HistoryEntry) error
	MarkDismissed(ctx context.Context, id string, at time.Time, entry alerts.HistoryEntry) error
	ListActiveForScope(ctx context.Context, routerID, interfaceID, kpi string) ([]alerts.Alert, error)
	List(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, error)
	Summary(ctx context.Context) (alerts.Summary, error)
}

// ThresholdReader loads the per-router standard threshold fallback.
type ThresholdReader interface {
	StandardThreshold(ctx context.Context, routerID string) (*inventory.StandardThreshold, error)
}

// RouterReader loads router metadata for alert titles.
type RouterReader interface {
	Get(ctx context.Context, id string) (*inventory.Router, error)
}

// AlertNotifier publishes alert lifecycle events. Delivery is best-effort;
// implementations log their own failures and never block alert persistence.
type AlertNotifier interface {
	Notify(ctx context.Context, event AlertEvent)
}

// AlertEvent represents a lifecycle update.
type AlertEvent struct {
	Type       string       `json:"type"`
	Alert      alerts.Alert `json:"alert"`
	Recipients []string     `json:"recipients,omitempty"`
}

// Clock provides time.
type Clock interface {
	Now() time.Time
}

// Service evaluates observations against threshold rules and manages the
// alert lifecycle. It is designed to be fed by a single sequential poller;
// concurrent evaluation of the same (router, interface, KPI) tuple is not
// race-free.
type Service struct {
	rules      RuleStore
	alerts     AlertStore
	thresholds ThresholdReader
	routers    RouterReader
	notifier   AlertNotifier
	clock      Clock
	logger     zerolog.Logger
}

// ServiceOption customizes the alert service.
type ServiceOption func(*Service)

// WithNotifier assigns a notifier.
func WithNotifier(notifier AlertNotifier) ServiceOption {
	return func(s *Service) {
		s.notifier = notifier
	}
}

// WithClock assigns a clock.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService constructs the alert service from explicit store handles.
func NewService(rules RuleStore, alertStore AlertStore, thresholds ThresholdReader, routers RouterReader, opts ...ServiceOption) (*Service, error) {
	if rules == nil || alertStore == nil {
		return nil, errors.New("alerts: nil store")
	}
	if thresholds == nil {
		return nil, errors.New("alerts: nil threshold reader")
	}
	service := &Service{
		rules:      rules,
		alerts:     alertStore,
		thresholds: thresholds,
		routers:    routers,
		clock:      systemClock{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service, nil
}

// HandleObservation evaluates one observation. Custom rules preempt the
// standard-threshold fallback; when nothing triggers, active alerts for the
// same tuple whose stored threshold is satisfied again are auto-resolved.
func (s *Service) HandleObservation(ctx context.Context, obs telemetry.Observation) error {
	if s == nil {
		return errors.New("alerts: nil service")
	}
	if err := obs.Validate(); err != nil {
		metrics.IncEvaluation(metrics.ResultError)
		return err
	}

	rules, err := s.rules.ListActiveByKPI(ctx, obs.KPI)
	if err != nil {
		metrics.IncEvaluation(metrics.ResultError)
		return err
	}

	applicable := selectRules(rules, obs.RouterID, obs.InterfaceID)
	var triggered bool
	if len(applicable) > 0 {
		triggered, err = s.evaluateRules(ctx, obs, applicable)
	} else {
		triggered, err = s.evaluateStandard(ctx, obs)
	}
	if err != nil {
		metrics.IncEvaluation(metrics.ResultError)
		return err
	}
	metrics.IncEvaluation(metrics.ResultSuccess)

	if triggered {
		return nil
	}
	return s.autoResolve(ctx, obs)
}

// Acknowledge moves an active alert to acknowledged.
func (s *Service) Acknowledge(ctx context.Context, id, actor, comment string) (*alerts.Alert, error) {
	alert, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := alert.CanAcknowledge(); err != nil {
		return nil, err
	}
	at := s.clock.Now().UTC()
	entry := s.historyEntry(alert.ID, alert.Status, alerts.StatusAcknowledged, actor, comment, at)
	if err := s.alerts.MarkAcknowledged(ctx, alert.ID, at, entry); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusAcknowledged
	alert.AcknowledgedAt = at
	alert.UpdatedAt = at
	s.notify(ctx, "acknowledged", *alert, nil)
	return alert, nil
}

// Resolve moves an active or acknowledged alert to resolved.
func (s *Service) Resolve(ctx context.Context, id, actor, comment string) (*alerts.Alert, error) {
	alert, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := alert.CanResolve(); err != nil {
		return nil, err
	}
	at := s.clock.Now().UTC()
	entry := s.historyEntry(alert.ID, alert.Status, alerts.StatusResolved, actor, comment, at)
	if err := s.alerts.MarkResolved(ctx, alert.ID, alert.CurrentValue, at, entry); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusResolved
	alert.ResolvedAt = at
	alert.UpdatedAt = at
	s.notify(ctx, "resolved", *alert, nil)
	return alert, nil
}

// Dismiss moves an active or acknowledged alert to dismissed.
func (s *Service) Dismiss(ctx context.Context, id, actor string) (*alerts.Alert, error) {
	alert, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := alert.CanDismiss(); err != nil {
		return nil, err
	}
	at := s.clock.Now().UTC()
	entry := s.historyEntry(alert.ID, alert.Status, alerts.StatusDismissed, actor, "", at)
	if err := s.alerts.MarkDismissed(ctx, alert.ID, at, entry); err != nil {
		return nil, err
	}
	alert.Status = alerts.StatusDismissed
	alert.ResolvedAt = at
	alert.UpdatedAt = at
	s.notify(ctx, "dismissed", *alert, nil)
	return alert, nil
}

// ListAlerts returns alerts matching the filter.
func (s *Service) ListAlerts(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	return s.alerts.List(ctx, filter)
}

// Summary aggregates open alerts by severity and type.
func (s *Service) Summary(ctx context.Context) (alerts.Summary, error) {
	if s == nil {
		return alerts.Summary{}, errors.New("alerts: nil service")
	}
	return s.alerts.Summary(ctx)
}

func (s *Service) load(ctx context.Context, id string) (*alerts.Alert, error) {
	if s == nil {
		return nil, errors.New("alerts: nil service")
	}
	if id == "" {
		return nil, errors.New("alerts: alert id required")
	}
	alert, err := s.alerts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert == nil {
		return nil, alerts.ErrNotFound
	}
	return alert, nil
}

func (s *Service) evaluateRules(ctx context.Context, obs telemetry.Observation, rules []alerts.ThresholdRule) (bool, error) {
	for _, rule := range rules {
		if !rule.Operator.Apply(obs.Value, rule.Threshold) {
			continue
		}
		if err := s.raise(ctx, obs, raiseSpec{
			rule:       &rule,
			threshold:  rule.Threshold,
			severity:   alerts.RuleSeverity{Severity: rule.Severity},
			recipients: rule.EmailRecipients,
		}); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *Service) evaluateStandard(ctx context.Context, obs telemetry.Observation) (bool, error) {
	threshold, err := s.thresholds.StandardThreshold(ctx, obs.RouterID)
	if err != nil {
		return false, err
	}
	if threshold == nil {
		// unconfigured KPI, nothing to evaluate
		return false, nil
	}
	value, unit, ok := threshold.ValueFor(obs.KPI)
	if !ok {
		return false, nil
	}
	if obs.Value <= value {
		return false, nil
	}
	if err := s.raise(ctx, obs, raiseSpec{
		threshold: value,
		unit:      unit,
		severity:  alerts.ExcessSeverity{},
	}); err != nil {
		return false, err
	}
	return true, nil
}

type raiseSpec struct {
	rule       *alerts.ThresholdRule
	threshold  float64
	unit       string
	severity   alerts.SeverityResolver
	recipients []string
}

func (s *Service) raise(ctx context.Context, obs telemetry.Observation, spec raiseSpec) error {
	open, err := s.alerts.FindOpen(ctx, obs.RouterID, obs.InterfaceID, obs.KPI)
	if err != nil {
		return err
	}
	if open != nil {
		// one open alert per tuple; refresh its value instead of duplicating
		metrics.IncSuppressed()
		return s.alerts.UpdateCurrentValue(ctx, open.ID, obs.Value, s.observedAt(obs))
	}

	at := s.observedAt(obs)
	severity := spec.severity.Resolve(obs.Value, spec.threshold)
	alert := &alerts.Alert{
		ID:             newAlertID(),
		Type:           alerts.TypeThreshold,
		RouterID:       obs.RouterID,
		InterfaceID:    obs.InterfaceID,
		KPI:            obs.KPI,
		Severity:       severity,
		Status:         alerts.StatusActive,
		MetricName:     obs.KPI,
		CurrentValue:   obs.Value,
		ThresholdValue: spec.threshold,
		Unit:           spec.unit,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
	if spec.rule != nil {
		alert.RuleID = spec.rule.ID
		alert.Type = alerts.TypeRule
	}
	alert.Title, alert.Description = s.describe(ctx, obs, spec, severity)

	entry := s.historyEntry(alert.ID, "", alerts.StatusActive, alerts.ActorSystem, "", at)
	if err := s.alerts.Create(ctx, alert, entry); err != nil {
		return err
	}
	metrics.IncAlertCreated(string(severity))
	s.logger.Warn().
		Str("alert_id", alert.ID).
		Str("router_id", alert.RouterID).
		Str("kpi", alert.KPI).
		Float64("value", alert.CurrentValue).
		Float64("threshold", alert.ThresholdValue).
		Str("severity", string(severity)).
		Msg("alert created")
	s.notify(ctx, "created", *alert, spec.recipients)
	return nil
}

func (s *Service) autoResolve(ctx context.Context, obs telemetry.Observation) error {
	active, err := s.alerts.ListActiveForScope(ctx, obs.RouterID, obs.InterfaceID, obs.KPI)
	if err != nil {
		return err
	}
	for i := range active {
		alert := active[i]
		if obs.Value > alert.ThresholdValue {
			continue
		}
		at := s.observedAt(obs)
		comment := fmt.Sprintf("auto-resolved: value %.2f back within threshold %.2f", obs.Value, alert.ThresholdValue)
		entry := s.historyEntry(alert.ID, alert.Status, alerts.StatusResolved, alerts.ActorSystem, comment, at)
		if err := s.alerts.MarkResolved(ctx, alert.ID, obs.Value, at, entry); err != nil {
			return err
		}
		alert.Status = alerts.StatusResolved
		alert.CurrentValue = obs.Value
		alert.ResolvedAt = at
		alert.UpdatedAt = at
		metrics.IncAutoResolved()
		s.logger.Info().
			Str("alert_id", alert.ID).
			Float64("value", obs.Value).
			Float64("threshold", alert.ThresholdValue).
			Msg("alert auto-resolved")
		s.notify(ctx, "resolved", alert, nil)
	}
	return nil
}

func (s *Service) describe(ctx context.Context, obs telemetry.Observation, spec raiseSpec, severity alerts.Severity) (string, string) {
	routerName := obs.RouterID
	if s.routers != nil {
		if router, err := s.routers.Get(ctx, obs.RouterID); err == nil && router != nil && router.Name != "" {
			routerName = router.Name
		}
	}

	if spec.rule != nil {
		title := fmt.Sprintf("Rule %q triggered on %s", spec.rule.Name, routerName)
		if obs.InterfaceID != "" {
			title += fmt.Sprintf(" (%s)", obs.InterfaceID)
		}
		description := fmt.Sprintf(
			"Alert rule %q was triggered.\nCondition: %s %s %g\nCurrent value: %g",
			spec.rule.Name, obs.KPI, spec.rule.Operator, spec.rule.Threshold, obs.Value,
		)
		if spec.rule.Description != "" {
			description += "\nRule description: " + spec.rule.Description
		}
		if obs.InterfaceID != "" {
			description += "\nInterface: " + obs.InterfaceID
		}
		return title, description
	}

	pct := alerts.ExcessPercent(obs.Value, spec.threshold)
	title := fmt.Sprintf("%s threshold exceeded on %s", obs.KPI, routerName)
	if obs.InterfaceID != "" {
		title += fmt.Sprintf(" (%s)", obs.InterfaceID)
	}
	description := fmt.Sprintf(
		"The %s threshold was exceeded on router %s.\nCurrent value: %.2f %s\nConfigured threshold: %.2f %s\nExcess: +%.1f%%",
		obs.KPI, routerName, obs.Value, spec.unit, spec.threshold, spec.unit, pct,
	)
	if obs.InterfaceID != "" {
		description += "\nInterface: " + obs.InterfaceID
	}
	return title, description
}

func (s *Service) historyEntry(alertID, previous, next, actor, comment string, at time.Time) alerts.HistoryEntry {
	if actor == "" {
		actor = alerts.ActorSystem
	}
	return alerts.HistoryEntry{
		ID:             "hist-" + uuid.NewString(),
		AlertID:        alertID,
		PreviousStatus: previous,
		NewStatus:      next,
		Actor:          actor,
		Comment:        comment,
		At:             at,
	}
}

func (s *Service) notify(ctx context.Context, eventType string, alert alerts.Alert, recipients []string) {
	if s == nil {
		return
	}
	metrics.IncAlertEvent(eventType)
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, AlertEvent{Type: eventType, Alert: alert, Recipients: recipients})
}

func (s *Service) observedAt(obs telemetry.Observation) time.Time {
	if obs.Timestamp.IsZero() {
		return s.clock.Now().UTC()
	}
	return obs.Timestamp.UTC()
}

// selectRules keeps rules matching the observation scope, narrowed to the
// most specific tier: interface-scoped rules shadow router-scoped ones,
// which shadow unscoped ones.
func selectRules(rules []alerts.ThresholdRule, routerID, interfaceID string) []alerts.ThresholdRule {
	var matched []alerts.ThresholdRule
	best := -1
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if !rule.MatchesScope(routerID, interfaceID) {
			continue
		}
		specificity := rule.ScopeSpecificity()
		switch {
		case specificity > best:
			best = specificity
			matched = append(matched[:0], rule)
		case specificity == best:
			matched = append(matched, rule)
		}
	}
	return matched
}

func newAlertID() string {
	return "alert-" + uuid.NewString()
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

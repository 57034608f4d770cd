package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	alertapp "router-supervisor/internal/alerts/application"
	alerts "router-supervisor/internal/alerts/domain"
	inventory "router-supervisor/internal/inventory/domain"
	"router-supervisor/internal/observability/metrics"
)

// RouterReader loads router metadata for display names.
type RouterReader interface {
	Get(ctx context.Context, id string) (*inventory.Router, error)
}

// AlertReader loads alert records for escalation rechecks.
type AlertReader interface {
	GetByID(ctx context.Context, id string) (*alerts.Alert, error)
}

// Clock provides time for scheduling.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier sends alert notifications via a channel. Delivery is best-effort;
// failures are logged and counted, never surfaced to the evaluator.
type Notifier struct {
	routers        RouterReader
	alerts         AlertReader
	channel        Channel
	template       *Template
	escalation     time.Duration
	clock          Clock
	logger         zerolog.Logger
	mu             sync.Mutex
	timers         map[string]*time.Timer
	sent           map[string]sendRecord
	cooldown       time.Duration
	dedupeWindow   time.Duration
	requestTimeout time.Duration
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation configures escalation delay for unhandled high severity alerts.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithLogger assigns a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

// WithRequestTimeout overrides the default timeout for escalation checks.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.requestTimeout = timeout
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same alert and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// NewNotifier constructs an alert notifier.
func NewNotifier(routers RouterReader, alertReader AlertReader, channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if alertReader == nil {
		return nil, errors.New("alert notifier: nil alert reader")
	}
	if channel == nil {
		return nil, errors.New("alert notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		routers:        routers,
		alerts:         alertReader,
		channel:        channel,
		template:       template,
		clock:          systemClock{},
		logger:         zerolog.Nop(),
		timers:         make(map[string]*time.Timer),
		sent:           make(map[string]sendRecord),
		requestTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify implements AlertNotifier.
func (n *Notifier) Notify(ctx context.Context, event alertapp.AlertEvent) {
	if n == nil || n.channel == nil {
		return
	}
	n.dispatch(ctx, event.Type, event.Alert, event.Recipients)

	switch event.Type {
	case "created":
		n.scheduleEscalation(event.Alert)
	case "resolved", "dismissed":
		n.cancelEscalation(event.Alert.ID)
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[string]*time.Timer)
	n.mu.Unlock()
	for _, timer := range timers {
		if timer != nil {
			timer.Stop()
		}
	}
}

func (n *Notifier) dispatch(ctx context.Context, eventType string, alert alerts.Alert, recipients []string) {
	data := n.buildTemplateData(ctx, eventType, alert, recipients)
	content, err := n.template.Render(data)
	if err != nil {
		return
	}
	if !n.shouldSend(alert.ID, eventType, content) {
		return
	}
	if err := n.channel.Send(ctx, content); err != nil {
		metrics.IncNotifyFailure()
		n.logger.Warn().Err(err).
			Str("alert_id", alert.ID).
			Str("event", eventType).
			Msg("notification delivery failed")
		return
	}
	n.markSent(alert.ID, eventType, content)
}

func (n *Notifier) scheduleEscalation(alert alerts.Alert) {
	if n == nil || n.escalation <= 0 || alert.ID == "" {
		return
	}
	if !alerts.SeverityAtLeast(alert.Severity, alerts.SeverityHigh) {
		return
	}
	n.mu.Lock()
	if existing, ok := n.timers[alert.ID]; ok {
		if existing != nil {
			existing.Stop()
		}
	}
	timer := time.AfterFunc(n.escalation, func() {
		n.runEscalation(alert.ID)
	})
	n.timers[alert.ID] = timer
	n.mu.Unlock()
}

func (n *Notifier) cancelEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	timer := n.timers[alertID]
	delete(n.timers, alertID)
	n.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (n *Notifier) runEscalation(alertID string) {
	if n == nil || alertID == "" {
		return
	}
	n.mu.Lock()
	delete(n.timers, alertID)
	n.mu.Unlock()

	ctx := context.Background()
	if n.requestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.requestTimeout)
		defer cancel()
	}

	alert, err := n.alerts.GetByID(ctx, alertID)
	if err != nil || alert == nil {
		return
	}
	// only still-active alerts escalate; ack, resolve or dismiss stops it
	if alert.Status != alerts.StatusActive {
		return
	}
	if !alerts.SeverityAtLeast(alert.Severity, alerts.SeverityHigh) {
		return
	}
	n.dispatch(ctx, "escalated", *alert, nil)
}

func (n *Notifier) buildTemplateData(ctx context.Context, eventType string, alert alerts.Alert, recipients []string) TemplateData {
	routerName := alert.RouterID
	if n.routers != nil {
		if router, err := n.routers.Get(ctx, alert.RouterID); err == nil && router != nil && router.Name != "" {
			routerName = router.Name
		}
	}

	threshold := formatFloat(alert.ThresholdValue)
	if alert.Unit != "" {
		threshold += " " + alert.Unit
	}
	startAt := alert.CreatedAt
	if startAt.IsZero() {
		startAt = n.clock.Now()
	}

	return TemplateData{
		Router:       routerName,
		RouterID:     alert.RouterID,
		Interface:    alert.InterfaceID,
		KPI:          alert.KPI,
		TriggerValue: formatFloat(alert.CurrentValue),
		Threshold:    threshold,
		StartTime:    startAt.UTC().Format(time.RFC3339),
		Status:       alert.Status,
		Severity:     string(alert.Severity),
		Suggestion:   suggestionFor(alert.Severity),
		Recipients:   strings.Join(recipients, ", "),
		Event:        eventType,
		EventLabel:   eventLabel(eventType),
	}
}

func eventLabel(event string) string {
	switch event {
	case "created":
		return "Triggered"
	case "acknowledged":
		return "Acknowledged"
	case "resolved":
		return "Resolved"
	case "dismissed":
		return "Dismissed"
	case "escalated":
		return "Escalated"
	default:
		return event
	}
}

func suggestionFor(severity alerts.Severity) string {
	switch severity {
	case alerts.SeverityCritical, alerts.SeverityHigh:
		return "Investigate immediately and mitigate risk."
	case alerts.SeverityMedium:
		return "Verify the condition and take action if needed."
	default:
		return "Monitor the alert condition."
	}
}

func formatFloat(value float64) string {
	return fmt.Sprintf("%.2f", value)
}

func (n *Notifier) shouldSend(alertID, eventType, content string) bool {
	if n == nil {
		return false
	}
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alertID, eventType)
	now := n.clock.Now().UTC()
	hash := hashContent(content)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alertID, eventType, content string) {
	if n == nil {
		return
	}
	key := notificationKey(alertID, eventType)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashContent(content),
	}
	n.mu.Unlock()
}

func notificationKey(alertID, eventType string) string {
	return alertID + "|" + eventType
}

func hashContent(content string) string {
	sum := sha1.Sum([]byte(content))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

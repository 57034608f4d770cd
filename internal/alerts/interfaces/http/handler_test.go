package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	alertapp "router-supervisor/internal/alerts/application"
	alerts "router-supervisor/internal/alerts/domain"
	"router-supervisor/internal/auth"
	inventory "router-supervisor/internal/inventory/domain"
)

type stubStores struct {
	mu      sync.Mutex
	alerts  map[string]*alerts.Alert
	history []alerts.HistoryEntry
}

func newStubStores(seed ...*alerts.Alert) *stubStores {
	s := &stubStores{alerts: make(map[string]*alerts.Alert)}
	for _, alert := range seed {
		s.alerts[alert.ID] = alert
	}
	return s
}

func (s *stubStores) ListActiveByKPI(_ context.Context, _ string) ([]alerts.ThresholdRule, error) {
	return nil, nil
}

func (s *stubStores) StandardThreshold(_ context.Context, _ string) (*inventory.StandardThreshold, error) {
	return nil, nil
}

func (s *stubStores) GetByID(_ context.Context, id string) (*alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *alert
	return &copied, nil
}

func (s *stubStores) FindOpen(_ context.Context, _, _, _ string) (*alerts.Alert, error) {
	return nil, nil
}

func (s *stubStores) Create(_ context.Context, alert *alerts.Alert, entry alerts.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *alert
	s.alerts[alert.ID] = &copied
	s.history = append(s.history, entry)
	return nil
}

func (s *stubStores) UpdateCurrentValue(_ context.Context, id string, value float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.alerts[id]; ok {
		alert.CurrentValue = value
		alert.UpdatedAt = at
	}
	return nil
}

func (s *stubStores) MarkAcknowledged(_ context.Context, id string, at time.Time, entry alerts.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.alerts[id]; ok {
		alert.Status = alerts.StatusAcknowledged
		alert.AcknowledgedAt = at
	}
	s.history = append(s.history, entry)
	return nil
}

func (s *stubStores) MarkResolved(_ context.Context, id string, value float64, at time.Time, entry alerts.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.alerts[id]; ok {
		alert.Status = alerts.StatusResolved
		alert.CurrentValue = value
		alert.ResolvedAt = at
	}
	s.history = append(s.history, entry)
	return nil
}

func (s *stubStores) MarkDismissed(_ context.Context, id string, at time.Time, entry alerts.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alert, ok := s.alerts[id]; ok {
		alert.Status = alerts.StatusDismissed
		alert.ResolvedAt = at
	}
	s.history = append(s.history, entry)
	return nil
}

func (s *stubStores) ListActiveForScope(_ context.Context, _, _, _ string) ([]alerts.Alert, error) {
	return nil, nil
}

func (s *stubStores) List(_ context.Context, filter alerts.Filter) ([]alerts.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []alerts.Alert
	for _, alert := range s.alerts {
		if filter.Status != "" && alert.Status != filter.Status {
			continue
		}
		if filter.RouterID != "" && alert.RouterID != filter.RouterID {
			continue
		}
		out = append(out, *alert)
	}
	return out, nil
}

func (s *stubStores) Summary(_ context.Context) (alerts.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := alerts.Summary{BySeverity: map[string]int{}, ByType: map[string]int{}}
	for _, alert := range s.alerts {
		if alert.Open() {
			summary.TotalActive++
			summary.BySeverity[string(alert.Severity)]++
			summary.ByType[alert.Type]++
		}
	}
	return summary, nil
}

func activeAlert(id string) *alerts.Alert {
	return &alerts.Alert{
		ID:             id,
		Type:           alerts.TypeRule,
		RouterID:       "router-a",
		KPI:            "CPU",
		Severity:       alerts.SeverityHigh,
		Status:         alerts.StatusActive,
		CurrentValue:   95,
		ThresholdValue: 80,
		CreatedAt:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func newTestHandler(t *testing.T, stores *stubStores) *Handler {
	t.Helper()
	service, err := alertapp.NewService(stores, stores, stores, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler, err := NewHandler(service)
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	return handler
}

func TestListAlertsEndpoint(t *testing.T) {
	stores := newStubStores(activeAlert("alert-1"))
	handler := newTestHandler(t, stores)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?status=active", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var list []alerts.Alert
	if err := json.Unmarshal(resp.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(list) != 1 || list[0].ID != "alert-1" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestListAlertsRejectsInvalidSeverity(t *testing.T) {
	handler := newTestHandler(t, newStubStores())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts?severity=extreme", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestSummaryEndpoint(t *testing.T) {
	stores := newStubStores(activeAlert("alert-1"), activeAlert("alert-2"))
	handler := newTestHandler(t, stores)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/alerts/summary", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	var summary alerts.Summary
	if err := json.Unmarshal(resp.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if summary.TotalActive != 2 {
		t.Fatalf("expected 2 active, got %d", summary.TotalActive)
	}
	if summary.BySeverity["high"] != 2 {
		t.Fatalf("unexpected severity breakdown: %v", summary.BySeverity)
	}
}

func TestAcknowledgeEndpointRecordsActor(t *testing.T) {
	stores := newStubStores(activeAlert("alert-1"))
	handler := newTestHandler(t, stores)

	body := strings.NewReader(`{"comment":"on it"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/acknowledge", body)
	req = req.WithContext(auth.WithIdentity(req.Context(), auth.RoleOperator, "op-7"))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	var alert alerts.Alert
	if err := json.Unmarshal(resp.Body.Bytes(), &alert); err != nil {
		t.Fatalf("decode alert: %v", err)
	}
	if alert.Status != alerts.StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", alert.Status)
	}
	if len(stores.history) != 1 {
		t.Fatalf("expected 1 history row, got %d", len(stores.history))
	}
	if stores.history[0].Actor != "op-7" {
		t.Fatalf("expected actor op-7, got %s", stores.history[0].Actor)
	}
	if stores.history[0].Comment != "on it" {
		t.Fatalf("expected comment recorded, got %q", stores.history[0].Comment)
	}
}

func TestResolveOnTerminalReturnsConflict(t *testing.T) {
	resolved := activeAlert("alert-1")
	resolved.Status = alerts.StatusResolved
	stores := newStubStores(resolved)
	handler := newTestHandler(t, stores)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/resolve", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.Code)
	}
	if len(stores.history) != 0 {
		t.Fatalf("terminal rejection must not write history, got %d rows", len(stores.history))
	}
}

func TestActionOnMissingAlertReturnsNotFound(t *testing.T) {
	handler := newTestHandler(t, newStubStores())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-missing/dismiss", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

func TestUnknownActionReturnsNotFound(t *testing.T) {
	stores := newStubStores(activeAlert("alert-1"))
	handler := newTestHandler(t, stores)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts/alert-1/escalate", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

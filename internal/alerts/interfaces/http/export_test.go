package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	alertapp "router-supervisor/internal/alerts/application"
	alerts "router-supervisor/internal/alerts/domain"
)

func exportFixture() []alerts.Alert {
	return []alerts.Alert{
		{
			ID:             "alert-1",
			Type:           alerts.TypeRule,
			RouterID:       "router-a",
			KPI:            "CPU",
			Severity:       alerts.SeverityHigh,
			Status:         alerts.StatusActive,
			CurrentValue:   95,
			ThresholdValue: 80,
			Unit:           "%",
			CreatedAt:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			ID:             "alert-2",
			Type:           alerts.TypeThreshold,
			RouterID:       "router-b",
			InterfaceID:    "eth0",
			KPI:            "TRAFFIC",
			Severity:       alerts.SeverityCritical,
			Status:         alerts.StatusResolved,
			CurrentValue:   1950,
			ThresholdValue: 900,
			Unit:           "Mbps",
			CreatedAt:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			ResolvedAt:     time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC),
		},
	}
}

func TestBuildAlertsCSV(t *testing.T) {
	payload, err := BuildAlertsCSV(exportFixture())
	if err != nil {
		t.Fatalf("build csv: %v", err)
	}
	content := string(payload)
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,router_id") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
	if !strings.Contains(content, "alert-1,router-a,,CPU,rule,high,active,95.00,80.00") {
		t.Fatalf("missing alert-1 row in:\n%s", content)
	}
	if !strings.Contains(content, "2026-03-10T08:30:00Z") {
		t.Fatalf("missing resolved timestamp in:\n%s", content)
	}
}

func TestBuildAlertsXLSX(t *testing.T) {
	payload, err := BuildAlertsXLSX(exportFixture())
	if err != nil {
		t.Fatalf("build xlsx: %v", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	got, err := f.GetCellValue("alerts", "A2")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "alert-1" {
		t.Fatalf("expected alert-1 in A2, got %q", got)
	}
	got, err = f.GetCellValue("alerts", "F3")
	if err != nil {
		t.Fatalf("read cell: %v", err)
	}
	if got != "critical" {
		t.Fatalf("expected critical in F3, got %q", got)
	}
}

func TestBuildAlertsPDF(t *testing.T) {
	payload, err := BuildAlertsPDF(exportFixture())
	if err != nil {
		t.Fatalf("build pdf: %v", err)
	}
	if !bytes.HasPrefix(payload, []byte("%PDF")) {
		t.Fatalf("expected PDF magic bytes, got %q", payload[:8])
	}
}

func TestExportEndpointCSV(t *testing.T) {
	stores := newStubStores(activeAlert("alert-1"))
	service, err := alertapp.NewService(stores, stores, stores, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler := NewExportHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.csv", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Type"); got != "text/csv" {
		t.Fatalf("expected text/csv, got %s", got)
	}
	if !strings.Contains(resp.Body.String(), "alert-1") {
		t.Fatalf("expected alert-1 in export, got:\n%s", resp.Body.String())
	}
}

func TestExportEndpointUnknownFormat(t *testing.T) {
	stores := newStubStores()
	service, err := alertapp.NewService(stores, stores, stores, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	handler := NewExportHandler(service)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/exports/alerts.txt", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}
}

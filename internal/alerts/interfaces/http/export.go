package http

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	alertapp "router-supervisor/internal/alerts/application"
	alerts "router-supervisor/internal/alerts/domain"
)

// ExportHandler serves alert report downloads.
type ExportHandler struct {
	service *alertapp.Service
}

// NewExportHandler constructs an export handler.
func NewExportHandler(service *alertapp.Service) *ExportHandler {
	return &ExportHandler{service: service}
}

// ServeHTTP handles GET /api/v1/exports/alerts.{csv,xlsx,pdf}.
func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "export not ready", http.StatusServiceUnavailable)
		return
	}

	query := r.URL.Query()
	filter := alerts.Filter{
		Status:   query.Get("status"),
		Severity: alerts.Severity(query.Get("severity")),
		RouterID: query.Get("router_id"),
		Type:     query.Get("type"),
	}
	if filter.Severity != "" && !filter.Severity.Valid() {
		http.Error(w, "invalid severity", http.StatusBadRequest)
		return
	}

	list, err := h.service.ListAlerts(r.Context(), filter)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	switch r.URL.Path {
	case "/api/v1/exports/alerts.csv":
		payload, err := BuildAlertsCSV(list)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.csv"`)
		_, _ = w.Write(payload)
	case "/api/v1/exports/alerts.xlsx":
		payload, err := BuildAlertsXLSX(list)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.xlsx"`)
		_, _ = w.Write(payload)
	case "/api/v1/exports/alerts.pdf":
		payload, err := BuildAlertsPDF(list)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="alerts.pdf"`)
		_, _ = w.Write(payload)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

var exportHeader = []string{"id", "router_id", "interface_id", "kpi", "type", "severity", "status", "current_value", "threshold_value", "unit", "created_at", "resolved_at"}

// BuildAlertsCSV renders an alert list as CSV.
func BuildAlertsCSV(list []alerts.Alert) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, alert := range list {
		record := []string{
			alert.ID,
			alert.RouterID,
			alert.InterfaceID,
			alert.KPI,
			alert.Type,
			string(alert.Severity),
			alert.Status,
			strconv.FormatFloat(alert.CurrentValue, 'f', 2, 64),
			strconv.FormatFloat(alert.ThresholdValue, 'f', 2, 64),
			alert.Unit,
			alert.CreatedAt.Format(time.RFC3339),
			formatOptionalTime(alert.ResolvedAt),
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsXLSX renders an alert list as a workbook.
func BuildAlertsXLSX(list []alerts.Alert) ([]byte, error) {
	f := excelize.NewFile()
	sheet := "alerts"
	f.SetSheetName("Sheet1", sheet)

	for col, title := range exportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(sheet, cell, title)
	}
	for i, alert := range list {
		row := i + 2
		values := []any{
			alert.ID,
			alert.RouterID,
			alert.InterfaceID,
			alert.KPI,
			alert.Type,
			string(alert.Severity),
			alert.Status,
			alert.CurrentValue,
			alert.ThresholdValue,
			alert.Unit,
			alert.CreatedAt.Format(time.RFC3339),
			formatOptionalTime(alert.ResolvedAt),
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(sheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAlertsPDF renders an alert list as a compact PDF table.
func BuildAlertsPDF(list []alerts.Alert) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Alert Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", time.Now().UTC().Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Alerts: %d", len(list)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(45, 6, "Router", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "KPI", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Severity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Status", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Value", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Threshold", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Created", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 9)
	for _, alert := range list {
		pdf.CellFormat(45, 6, alert.RouterID, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, alert.KPI, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, string(alert.Severity), "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, alert.Status, "1", 0, "C", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", alert.CurrentValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.2f", alert.ThresholdValue), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 6, alert.CreatedAt.Format(time.RFC3339), "1", 0, "C", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatOptionalTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.Format(time.RFC3339)
}

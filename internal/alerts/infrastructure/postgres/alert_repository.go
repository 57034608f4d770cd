package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	alerts "router-supervisor/internal/alerts/domain"
)

const alertColumns = `id, rule_id, type, router_id, interface_id, kpi, severity, status,
	title, description, metric_name, current_value, threshold_value, unit,
	created_at, acknowledged_at, resolved_at, updated_at`

// AlertRepository is a Postgres repository for alerts and their history.
// Status changes and the matching history row commit in one transaction.
type AlertRepository struct {
	db *sql.DB
}

// NewAlertRepository constructs a repository.
func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new alert with its creation history row.
func (r *AlertRepository) Create(ctx context.Context, alert *alerts.Alert, entry alerts.HistoryEntry) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	if alert == nil {
		return errors.New("alert repo: nil alert")
	}
	if alert.ID == "" || alert.RouterID == "" || alert.KPI == "" {
		return errors.New("alert repo: missing fields")
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}
	if alert.UpdatedAt.IsZero() {
		alert.UpdatedAt = alert.CreatedAt
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO alerts (
	id, rule_id, type, router_id, interface_id, kpi, severity, status,
	title, description, metric_name, current_value, threshold_value, unit,
	created_at, acknowledged_at, resolved_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8,
	$9, $10, $11, $12, $13, $14,
	$15, $16, $17, $18
)`,
		alert.ID,
		nullableString(alert.RuleID),
		alert.Type,
		alert.RouterID,
		nullableString(alert.InterfaceID),
		alert.KPI,
		string(alert.Severity),
		alert.Status,
		alert.Title,
		alert.Description,
		alert.MetricName,
		alert.CurrentValue,
		alert.ThresholdValue,
		alert.Unit,
		alert.CreatedAt,
		nullableTime(alert.AcknowledgedAt),
		nullableTime(alert.ResolvedAt),
		alert.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// GetByID fetches an alert by id. A missing alert returns (nil, nil).
func (r *AlertRepository) GetByID(ctx context.Context, id string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE id = $1`, id)
	return scanAlert(row)
}

// FindOpen returns the active or acknowledged alert for a tuple, if any.
func (r *AlertRepository) FindOpen(ctx context.Context, routerID, interfaceID, kpi string) (*alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	if routerID == "" || kpi == "" {
		return nil, errors.New("alert repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE router_id = $1 AND COALESCE(interface_id, '') = $2 AND kpi = $3
	AND status IN ('active', 'acknowledged')
ORDER BY created_at DESC
LIMIT 1`, routerID, interfaceID, kpi)
	return scanAlert(row)
}

// UpdateCurrentValue refreshes the observed value of an open alert.
func (r *AlertRepository) UpdateCurrentValue(ctx context.Context, id string, value float64, at time.Time) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	_, err := r.db.ExecContext(ctx, `
UPDATE alerts
SET current_value = $1, updated_at = $2
WHERE id = $3`, value, at, id)
	return err
}

// MarkAcknowledged moves an active alert to acknowledged.
func (r *AlertRepository) MarkAcknowledged(ctx context.Context, id string, at time.Time, entry alerts.HistoryEntry) error {
	return r.transition(ctx, entry, `
UPDATE alerts
SET status = $1, acknowledged_at = $2, updated_at = $3
WHERE id = $4 AND status = $5`,
		alerts.StatusAcknowledged, at, at, id, alerts.StatusActive)
}

// MarkResolved moves an open alert to resolved.
func (r *AlertRepository) MarkResolved(ctx context.Context, id string, value float64, at time.Time, entry alerts.HistoryEntry) error {
	return r.transition(ctx, entry, `
UPDATE alerts
SET status = $1, current_value = $2, resolved_at = $3, updated_at = $4
WHERE id = $5 AND status IN ('active', 'acknowledged')`,
		alerts.StatusResolved, value, at, at, id)
}

// MarkDismissed moves an open alert to dismissed.
func (r *AlertRepository) MarkDismissed(ctx context.Context, id string, at time.Time, entry alerts.HistoryEntry) error {
	return r.transition(ctx, entry, `
UPDATE alerts
SET status = $1, resolved_at = $2, updated_at = $3
WHERE id = $4 AND status IN ('active', 'acknowledged')`,
		alerts.StatusDismissed, at, at, id)
}

// transition applies a guarded status update plus its history row in one
// transaction. A guard miss means the alert moved concurrently; the caller
// already checked legality, so the stale update surfaces as a conflict.
func (r *AlertRepository) transition(ctx context.Context, entry alerts.HistoryEntry, query string, args ...any) error {
	if r == nil || r.db == nil {
		return errors.New("alert repo: nil db")
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrAlertTerminal
	}
	if err := insertHistory(ctx, tx, entry); err != nil {
		return err
	}
	return tx.Commit()
}

// ListActiveForScope lists active alerts for one (router, interface, KPI)
// tuple. Acknowledged alerts are excluded: an operator who acknowledged an
// alert owns its resolution, so the recovery sweep must not touch it.
func (r *AlertRepository) ListActiveForScope(ctx context.Context, routerID, interfaceID, kpi string) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+alertColumns+`
FROM alerts
WHERE router_id = $1 AND COALESCE(interface_id, '') = $2 AND kpi = $3
	AND status = 'active'
ORDER BY created_at DESC`, routerID, interfaceID, kpi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	query := `
SELECT ` + alertColumns + `
FROM alerts
WHERE 1 = 1`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Severity != "" {
		args = append(args, string(filter.Severity))
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	if filter.RouterID != "" {
		args = append(args, filter.RouterID)
		query += fmt.Sprintf(" AND router_id = $%d", len(args))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAlerts(rows)
}

// Summary aggregates open alerts by severity and type.
func (r *AlertRepository) Summary(ctx context.Context) (alerts.Summary, error) {
	summary := alerts.Summary{
		BySeverity: make(map[string]int),
		ByType:     make(map[string]int),
	}
	if r == nil || r.db == nil {
		return summary, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT severity, type, COUNT(*)
FROM alerts
WHERE status IN ('active', 'acknowledged')
GROUP BY severity, type`)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var severity, alertType string
		var count int
		if err := rows.Scan(&severity, &alertType, &count); err != nil {
			return summary, err
		}
		summary.TotalActive += count
		summary.BySeverity[severity] += count
		summary.ByType[alertType] += count
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

// ListHistory returns the transition history of one alert, oldest first.
func (r *AlertRepository) ListHistory(ctx context.Context, alertID string) ([]alerts.HistoryEntry, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("alert repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, alert_id, previous_status, new_status, actor, comment, at
FROM alert_history
WHERE alert_id = $1
ORDER BY at ASC, id ASC`, alertID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []alerts.HistoryEntry
	for rows.Next() {
		var entry alerts.HistoryEntry
		var previous sql.NullString
		var comment sql.NullString
		if err := rows.Scan(&entry.ID, &entry.AlertID, &previous, &entry.NewStatus, &entry.Actor, &comment, &entry.At); err != nil {
			return nil, err
		}
		entry.PreviousStatus = previous.String
		entry.Comment = comment.String
		entry.At = entry.At.UTC()
		result = append(result, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func insertHistory(ctx context.Context, tx *sql.Tx, entry alerts.HistoryEntry) error {
	if entry.ID == "" || entry.AlertID == "" || entry.NewStatus == "" {
		return errors.New("alert repo: invalid history entry")
	}
	if entry.At.IsZero() {
		entry.At = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
INSERT INTO alert_history (id, alert_id, previous_status, new_status, actor, comment, at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.ID,
		entry.AlertID,
		nullableString(entry.PreviousStatus),
		entry.NewStatus,
		entry.Actor,
		nullableString(entry.Comment),
		entry.At,
	)
	return err
}

type alertScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row alertScanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var ruleID sql.NullString
	var interfaceID sql.NullString
	var severity string
	var acknowledgedAt sql.NullTime
	var resolvedAt sql.NullTime
	if err := row.Scan(
		&alert.ID,
		&ruleID,
		&alert.Type,
		&alert.RouterID,
		&interfaceID,
		&alert.KPI,
		&severity,
		&alert.Status,
		&alert.Title,
		&alert.Description,
		&alert.MetricName,
		&alert.CurrentValue,
		&alert.ThresholdValue,
		&alert.Unit,
		&alert.CreatedAt,
		&acknowledgedAt,
		&resolvedAt,
		&alert.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	alert.RuleID = ruleID.String
	alert.InterfaceID = interfaceID.String
	alert.Severity = alerts.Severity(severity)
	alert.CreatedAt = alert.CreatedAt.UTC()
	alert.UpdatedAt = alert.UpdatedAt.UTC()
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = acknowledgedAt.Time.UTC()
	}
	if resolvedAt.Valid {
		alert.ResolvedAt = resolvedAt.Time.UTC()
	}
	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]alerts.Alert, error) {
	var result []alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func nullableTime(value time.Time) sql.NullTime {
	if value.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: value, Valid: true}
}

func nullableString(value string) sql.NullString {
	if value == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

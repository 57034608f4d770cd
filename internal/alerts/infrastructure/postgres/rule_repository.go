package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	alerts "router-supervisor/internal/alerts/domain"
	"router-supervisor/internal/audit"
	"router-supervisor/internal/auth"
)

const ruleColumns = `id, name, description, kpi, operator, threshold, severity,
	router_id, interface_id, active, cooldown_minutes, email_recipients,
	created_at, updated_at`

// RuleRepository is a Postgres repository for threshold rules.
type RuleRepository struct {
	db *sql.DB
}

// NewRuleRepository constructs a repository.
func NewRuleRepository(db *sql.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

// Create inserts a threshold rule. A rule with the same name, KPI and scope
// is rejected with ErrDuplicateRule.
func (r *RuleRepository) Create(ctx context.Context, rule *alerts.ThresholdRule) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if rule == nil {
		return errors.New("rule repo: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	if rule.Severity == "" {
		rule.Severity = alerts.SeverityMedium
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = rule.CreatedAt
	}

	duplicate, err := r.exists(ctx, rule.Name, rule.KPI, rule.RouterID, rule.InterfaceID, "")
	if err != nil {
		return err
	}
	if duplicate {
		return alerts.ErrDuplicateRule
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO threshold_rules (
	id, name, description, kpi, operator, threshold, severity,
	router_id, interface_id, active, cooldown_minutes, email_recipients,
	created_at, updated_at
) VALUES (
	$1, $2, $3, $4, $5, $6, $7,
	$8, $9, $10, $11, $12,
	$13, $14
)`,
		rule.ID,
		rule.Name,
		rule.Description,
		rule.KPI,
		string(rule.Operator),
		rule.Threshold,
		string(rule.Severity),
		nullableString(rule.RouterID),
		nullableString(rule.InterfaceID),
		rule.Active,
		rule.CooldownMinutes,
		joinRecipients(rule.EmailRecipients),
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return err
	}
	logRuleAudit(ctx, r.db, "threshold_rule.create", rule)
	return nil
}

// Update rewrites a threshold rule in place.
func (r *RuleRepository) Update(ctx context.Context, rule *alerts.ThresholdRule) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if rule == nil {
		return errors.New("rule repo: nil rule")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	duplicate, err := r.exists(ctx, rule.Name, rule.KPI, rule.RouterID, rule.InterfaceID, rule.ID)
	if err != nil {
		return err
	}
	if duplicate {
		return alerts.ErrDuplicateRule
	}
	rule.UpdatedAt = time.Now().UTC()

	result, err := r.db.ExecContext(ctx, `
UPDATE threshold_rules
SET name = $1, description = $2, kpi = $3, operator = $4, threshold = $5,
	severity = $6, router_id = $7, interface_id = $8, active = $9,
	cooldown_minutes = $10, email_recipients = $11, updated_at = $12
WHERE id = $13`,
		rule.Name,
		rule.Description,
		rule.KPI,
		string(rule.Operator),
		rule.Threshold,
		string(rule.Severity),
		nullableString(rule.RouterID),
		nullableString(rule.InterfaceID),
		rule.Active,
		rule.CooldownMinutes,
		joinRecipients(rule.EmailRecipients),
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	logRuleAudit(ctx, r.db, "threshold_rule.update", rule)
	return nil
}

// Delete removes a threshold rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	if r == nil || r.db == nil {
		return errors.New("rule repo: nil db")
	}
	if id == "" {
		return errors.New("rule repo: invalid query")
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM threshold_rules WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return alerts.ErrNotFound
	}
	logRuleAudit(ctx, r.db, "threshold_rule.delete", &alerts.ThresholdRule{ID: id})
	return nil
}

// GetByID loads a rule by id. A missing rule returns (nil, nil).
func (r *RuleRepository) GetByID(ctx context.Context, id string) (*alerts.ThresholdRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	if id == "" {
		return nil, errors.New("rule repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT `+ruleColumns+`
FROM threshold_rules
WHERE id = $1
LIMIT 1`, id)
	return scanRule(row)
}

// List returns all rules, newest first.
func (r *RuleRepository) List(ctx context.Context) ([]alerts.ThresholdRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM threshold_rules
ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

// ListActiveByKPI returns active rules for a KPI, oldest first so older
// rules win ties within a scope tier.
func (r *RuleRepository) ListActiveByKPI(ctx context.Context, kpi string) ([]alerts.ThresholdRule, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("rule repo: nil db")
	}
	if kpi == "" {
		return nil, errors.New("rule repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ruleColumns+`
FROM threshold_rules
WHERE kpi = $1 AND active = TRUE
ORDER BY created_at ASC`, kpi)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRules(rows)
}

func (r *RuleRepository) exists(ctx context.Context, name, kpi, routerID, interfaceID, excludeID string) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (
	SELECT 1 FROM threshold_rules
	WHERE name = $1 AND kpi = $2
		AND COALESCE(router_id, '') = $3 AND COALESCE(interface_id, '') = $4
		AND id <> $5
)`, name, kpi, routerID, interfaceID, excludeID).Scan(&found)
	return found, err
}

type ruleScanner interface {
	Scan(dest ...any) error
}

func scanRule(row ruleScanner) (*alerts.ThresholdRule, error) {
	var rule alerts.ThresholdRule
	var op string
	var severity string
	var routerID sql.NullString
	var interfaceID sql.NullString
	var recipients sql.NullString
	if err := row.Scan(
		&rule.ID,
		&rule.Name,
		&rule.Description,
		&rule.KPI,
		&op,
		&rule.Threshold,
		&severity,
		&routerID,
		&interfaceID,
		&rule.Active,
		&rule.CooldownMinutes,
		&recipients,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	rule.Operator = alerts.Operator(op)
	rule.Severity = alerts.Severity(severity)
	rule.RouterID = routerID.String
	rule.InterfaceID = interfaceID.String
	rule.EmailRecipients = splitRecipients(recipients.String)
	rule.CreatedAt = rule.CreatedAt.UTC()
	rule.UpdatedAt = rule.UpdatedAt.UTC()
	return &rule, nil
}

func collectRules(rows *sql.Rows) ([]alerts.ThresholdRule, error) {
	var result []alerts.ThresholdRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func joinRecipients(recipients []string) sql.NullString {
	var kept []string
	for _, recipient := range recipients {
		recipient = strings.TrimSpace(recipient)
		if recipient != "" {
			kept = append(kept, recipient)
		}
	}
	if len(kept) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: strings.Join(kept, ","), Valid: true}
}

func splitRecipients(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func logRuleAudit(ctx context.Context, db *sql.DB, action string, rule *alerts.ThresholdRule) {
	if db == nil || rule == nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"name":             rule.Name,
		"kpi":              rule.KPI,
		"operator":         rule.Operator,
		"threshold":        rule.Threshold,
		"severity":         rule.Severity,
		"router_id":        rule.RouterID,
		"interface_id":     rule.InterfaceID,
		"active":           rule.Active,
		"cooldown_minutes": rule.CooldownMinutes,
	})
	repo := audit.NewRepository(db)
	if repo == nil {
		return
	}
	_ = repo.Log(ctx, audit.Entry{
		Actor:        auth.SubjectFromContext(ctx),
		Role:         string(auth.RoleFromContext(ctx)),
		Action:       action,
		ResourceType: "threshold_rule",
		ResourceID:   rule.ID,
		Metadata:     meta,
		CreatedAt:    time.Now().UTC(),
	})
}

package integration_test

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	alertapp "router-supervisor/internal/alerts/application"
	alerts "router-supervisor/internal/alerts/domain"
	alertrepo "router-supervisor/internal/alerts/infrastructure/postgres"
	inventoryrepo "router-supervisor/internal/inventory/infrastructure/postgres"
	telemetry "router-supervisor/internal/telemetry/domain"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func TestAlertLifecycle_Postgres(t *testing.T) {
	dsn := os.Getenv("PG_DSN")
	if dsn == "" {
		t.Skip("PG_DSN not set")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if !tableExists(db, "threshold_rules") ||
		!tableExists(db, "alerts") ||
		!tableExists(db, "alert_history") ||
		!tableExists(db, "routers") ||
		!tableExists(db, "standard_thresholds") {
		t.Skip("missing tables; run migrations")
	}

	ctx := context.Background()
	routerID := "router-it-alert"

	_, _ = db.ExecContext(ctx, "DELETE FROM alert_history")
	_, _ = db.ExecContext(ctx, "DELETE FROM alerts")
	_, _ = db.ExecContext(ctx, "DELETE FROM threshold_rules")
	_, _ = db.ExecContext(ctx, "DELETE FROM routers WHERE id = $1", routerID)

	if _, err := db.ExecContext(ctx, `
INSERT INTO routers (id, name, hostname, created_at)
VALUES ($1, $2, $3, NOW())`, routerID, "it-edge-01", "it-edge-01.example.net"); err != nil {
		t.Fatalf("insert router: %v", err)
	}

	ruleRepo := alertrepo.NewRuleRepository(db)
	rule := &alerts.ThresholdRule{
		ID:              "rule-it-1",
		Name:            "CPU High",
		KPI:             "CPU",
		Operator:        alerts.OperatorGreater,
		Threshold:       80,
		Severity:        alerts.SeverityHigh,
		Active:          true,
		CooldownMinutes: 5,
	}
	if err := ruleRepo.Create(ctx, rule); err != nil {
		t.Fatalf("create rule: %v", err)
	}
	if err := ruleRepo.Create(ctx, rule); err == nil {
		t.Fatal("expected duplicate rule rejection")
	}

	alertRepo := alertrepo.NewAlertRepository(db)
	routerRepo := inventoryrepo.NewRouterRepository(db)
	service, err := alertapp.NewService(ruleRepo, alertRepo, routerRepo, routerRepo)
	if err != nil {
		t.Fatalf("new alert service: %v", err)
	}

	t0 := time.Now().UTC().Truncate(time.Second)
	obs := telemetry.Observation{RouterID: routerID, KPI: "CPU", Value: 95, Timestamp: t0}
	if err := service.HandleObservation(ctx, obs); err != nil {
		t.Fatalf("handle observation: %v", err)
	}

	open, err := alertRepo.FindOpen(ctx, routerID, "", "CPU")
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if open == nil {
		t.Fatal("expected open alert after breach")
	}
	if open.Severity != alerts.SeverityHigh || open.CurrentValue != 95 || open.ThresholdValue != 80 {
		t.Fatalf("unexpected alert: %+v", open)
	}
	if history, err := alertRepo.ListHistory(ctx, open.ID); err != nil || len(history) != 1 {
		t.Fatalf("expected 1 history row, got %d (err %v)", len(history), err)
	}

	// repeated breach is suppressed, value refreshed
	obs.Value = 97
	obs.Timestamp = t0.Add(time.Minute)
	if err := service.HandleObservation(ctx, obs); err != nil {
		t.Fatalf("handle repeat observation: %v", err)
	}
	var alertCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alerts").Scan(&alertCount); err != nil {
		t.Fatalf("count alerts: %v", err)
	}
	if alertCount != 1 {
		t.Fatalf("expected 1 alert after suppression, got %d", alertCount)
	}
	refreshed, err := alertRepo.GetByID(ctx, open.ID)
	if err != nil || refreshed == nil {
		t.Fatalf("reload alert: %v", err)
	}
	if refreshed.CurrentValue != 97 {
		t.Fatalf("expected refreshed value 97, got %v", refreshed.CurrentValue)
	}

	// operator acknowledge takes the alert out of the recovery sweep
	acked, err := service.Acknowledge(ctx, open.ID, "op-it", "checking")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if acked.Status != alerts.StatusAcknowledged {
		t.Fatalf("expected acknowledged, got %s", acked.Status)
	}

	obs.Value = 60
	obs.Timestamp = t0.Add(10 * time.Minute)
	if err := service.HandleObservation(ctx, obs); err != nil {
		t.Fatalf("handle recovery observation: %v", err)
	}
	survivor, err := alertRepo.GetByID(ctx, open.ID)
	if err != nil || survivor == nil {
		t.Fatalf("reload alert: %v", err)
	}
	if survivor.Status != alerts.StatusAcknowledged {
		t.Fatalf("acknowledged alert must survive recovery, got %s", survivor.Status)
	}
	if history, err := alertRepo.ListHistory(ctx, open.ID); err != nil || len(history) != 2 {
		t.Fatalf("expected create+ack history only, got %d rows (err %v)", len(history), err)
	}

	// the acknowledging operator resolves it
	resolved, err := service.Resolve(ctx, open.ID, "op-it", "recovered")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if resolved.Status != alerts.StatusResolved {
		t.Fatalf("expected resolved, got %s", resolved.Status)
	}
	history, err := alertRepo.ListHistory(ctx, open.ID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("expected create+ack+resolve history, got %d rows", len(history))
	}
	if history[2].Actor != "op-it" {
		t.Fatalf("expected operator actor on resolution, got %s", history[2].Actor)
	}

	// terminal guard holds at the database level too
	if _, err := service.Resolve(ctx, open.ID, "op-it", "again"); err == nil {
		t.Fatal("expected terminal rejection")
	}
	if history, err := alertRepo.ListHistory(ctx, open.ID); err != nil || len(history) != 3 {
		t.Fatalf("history must be unchanged after rejection, got %d (err %v)", len(history), err)
	}

	// fresh breach after resolution opens a new alert
	obs.Value = 90
	obs.Timestamp = t0.Add(12 * time.Minute)
	if err := service.HandleObservation(ctx, obs); err != nil {
		t.Fatalf("handle re-breach observation: %v", err)
	}
	reopened, err := alertRepo.FindOpen(ctx, routerID, "", "CPU")
	if err != nil {
		t.Fatalf("find open: %v", err)
	}
	if reopened == nil || reopened.ID == open.ID {
		t.Fatal("expected a new open alert after resolution")
	}
}

func tableExists(db *sql.DB, name string) bool {
	var exists bool
	err := db.QueryRow(`
SELECT EXISTS (
	SELECT 1 FROM information_schema.tables
	WHERE table_schema = 'public' AND table_name = $1
)`, name).Scan(&exists)
	return err == nil && exists
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	telemetry "router-supervisor/internal/telemetry/domain"
)

// LatestReader reads the newest stored sample per (router, interface, KPI)
// tuple. Samples older than notBefore are treated as absent, not as errors.
type LatestReader struct {
	db *sql.DB
}

// NewLatestReader constructs a LatestReader.
func NewLatestReader(db *sql.DB) *LatestReader {
	return &LatestReader{db: db}
}

// Latest implements telemetry.LatestReader.
func (r *LatestReader) Latest(ctx context.Context, routerID, interfaceID, kpi string, notBefore time.Time) (telemetry.Observation, bool, error) {
	if r == nil || r.db == nil {
		return telemetry.Observation{}, false, errors.New("telemetry latest: nil db")
	}
	if routerID == "" || kpi == "" {
		return telemetry.Observation{}, false, errors.New("telemetry latest: invalid arguments")
	}

	row := r.db.QueryRowContext(ctx, `
SELECT value, ts
FROM telemetry_samples
WHERE router_id = $1 AND COALESCE(interface_id, '') = $2 AND kpi = $3
ORDER BY ts DESC
LIMIT 1`, routerID, interfaceID, kpi)

	var value sql.NullFloat64
	var ts time.Time
	if err := row.Scan(&value, &ts); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return telemetry.Observation{}, false, nil
		}
		return telemetry.Observation{}, false, err
	}
	if !value.Valid {
		return telemetry.Observation{}, false, nil
	}
	ts = ts.UTC()
	if !notBefore.IsZero() && ts.Before(notBefore) {
		// stale sample, the collector stopped reporting
		return telemetry.Observation{}, false, nil
	}

	return telemetry.Observation{
		RouterID:    routerID,
		InterfaceID: interfaceID,
		KPI:         kpi,
		Value:       value.Float64,
		Timestamp:   ts,
	}, true, nil
}

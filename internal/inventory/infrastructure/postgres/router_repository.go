package postgres

import (
	"context"
	"database/sql"
	"errors"

	inventory "router-supervisor/internal/inventory/domain"
)

// RouterRepository is a Postgres repository for monitored routers and
// their standard threshold assignments.
type RouterRepository struct {
	db *sql.DB
}

// NewRouterRepository constructs a repository.
func NewRouterRepository(db *sql.DB) *RouterRepository {
	return &RouterRepository{db: db}
}

// Get fetches a router by id. A missing router returns (nil, nil).
func (r *RouterRepository) Get(ctx context.Context, id string) (*inventory.Router, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("router repo: nil db")
	}
	if id == "" {
		return nil, errors.New("router repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, hostname, created_at
FROM routers
WHERE id = $1
LIMIT 1`, id)
	var router inventory.Router
	if err := row.Scan(&router.ID, &router.Name, &router.Hostname, &router.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	router.CreatedAt = router.CreatedAt.UTC()
	return &router, nil
}

// List returns all routers ordered by name.
func (r *RouterRepository) List(ctx context.Context) ([]inventory.Router, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("router repo: nil db")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, name, hostname, created_at
FROM routers
ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Router
	for rows.Next() {
		var router inventory.Router
		if err := rows.Scan(&router.ID, &router.Name, &router.Hostname, &router.CreatedAt); err != nil {
			return nil, err
		}
		router.CreatedAt = router.CreatedAt.UTC()
		result = append(result, router)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ListInterfaces returns the interfaces of one router.
func (r *RouterRepository) ListInterfaces(ctx context.Context, routerID string) ([]inventory.Interface, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("router repo: nil db")
	}
	if routerID == "" {
		return nil, errors.New("router repo: invalid query")
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, router_id, name
FROM router_interfaces
WHERE router_id = $1
ORDER BY name ASC`, routerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []inventory.Interface
	for rows.Next() {
		var iface inventory.Interface
		if err := rows.Scan(&iface.ID, &iface.RouterID, &iface.Name); err != nil {
			return nil, err
		}
		result = append(result, iface)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// StandardThreshold loads the fallback threshold set assigned to a router.
// A router without an assignment returns (nil, nil).
func (r *RouterRepository) StandardThreshold(ctx context.Context, routerID string) (*inventory.StandardThreshold, error) {
	if r == nil || r.db == nil {
		return nil, errors.New("router repo: nil db")
	}
	if routerID == "" {
		return nil, errors.New("router repo: invalid query")
	}
	row := r.db.QueryRowContext(ctx, `
SELECT t.id, t.name, t.cpu, t.ram, t.traffic
FROM standard_thresholds t
JOIN routers r ON r.standard_threshold_id = t.id
WHERE r.id = $1
LIMIT 1`, routerID)
	var threshold inventory.StandardThreshold
	if err := row.Scan(&threshold.ID, &threshold.Name, &threshold.CPU, &threshold.RAM, &threshold.Traffic); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &threshold, nil
}

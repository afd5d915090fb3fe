package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

// ErrOutcomeExists is returned when a trigger already has a terminal status.
var ErrOutcomeExists = errors.New("trigger outcome already recorded")

// Postgres wraps a postgres DB connection. It backs the location directory
// and the playback outcome audit trail.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS locations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL DEFAULT '',
    location_type TEXT NOT NULL DEFAULT '',
    time_zone TEXT NOT NULL DEFAULT 'UTC',
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS playback_outcomes (
    trigger_id TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    detail TEXT NOT NULL DEFAULT '',
    reported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_locations_active ON locations (active) WHERE active = true;
CREATE INDEX IF NOT EXISTS idx_playback_outcomes_reported_at ON playback_outcomes (reported_at);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Locations returns the active locations ordered by ID.
func (p *Postgres) Locations(ctx context.Context) ([]models.Location, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, location_type, time_zone, active FROM locations WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query locations: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.TimeZone, &l.Active); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// LocationsByID returns the locations with the given IDs, active or not.
func (p *Postgres) LocationsByID(ctx context.Context, ids []string) ([]models.Location, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT id, name, location_type, time_zone, active FROM locations WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query locations by id: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []models.Location
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.Name, &l.Type, &l.TimeZone, &l.Active); err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpsertLocation inserts or updates a location row.
func (p *Postgres) UpsertLocation(ctx context.Context, l models.Location) error {
	const stmt = `INSERT INTO locations (id, name, location_type, time_zone, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location_type = EXCLUDED.location_type, time_zone = EXCLUDED.time_zone, active = EXCLUDED.active`
	if _, err := p.DB.ExecContext(ctx, stmt, l.ID, l.Name, l.Type, l.TimeZone, l.Active); err != nil {
		return fmt.Errorf("upsert location %s: %w", l.ID, err)
	}
	return nil
}

// RecordOutcome appends a terminal trigger status to the audit table. A
// second outcome for the same trigger returns ErrOutcomeExists.
func (p *Postgres) RecordOutcome(ctx context.Context, o models.TriggerOutcome) error {
	_, err := p.DB.ExecContext(ctx,
		`INSERT INTO playback_outcomes (trigger_id, status, detail, reported_at) VALUES ($1, $2, $3, $4)`,
		o.TriggerID, string(o.Status), o.Detail, o.ReportedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrOutcomeExists
		}
		return fmt.Errorf("insert outcome %s: %w", o.TriggerID, err)
	}
	return nil
}

// Outcome returns the recorded outcome for a trigger, or models.ErrNotFound.
func (p *Postgres) Outcome(ctx context.Context, triggerID string) (models.TriggerOutcome, error) {
	var o models.TriggerOutcome
	var status string
	err := p.DB.QueryRowContext(ctx,
		`SELECT trigger_id, status, detail, reported_at FROM playback_outcomes WHERE trigger_id = $1`, triggerID).
		Scan(&o.TriggerID, &status, &o.Detail, &o.ReportedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TriggerOutcome{}, models.ErrNotFound
	}
	if err != nil {
		return models.TriggerOutcome{}, fmt.Errorf("query outcome %s: %w", triggerID, err)
	}
	o.Status = models.TriggerStatus(status)
	return o, nil
}

var _ LocationDirectory = (*Postgres)(nil)

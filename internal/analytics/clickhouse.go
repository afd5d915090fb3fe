package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/patrickwarner/openadtrigger/internal/models"
)

const createTriggersTable = `CREATE TABLE IF NOT EXISTS playback_triggers (
       trigger_id         String,
       campaign_id        String,
       advertiser_id      String,
       creative_id        String,
       location_id        String,
       fired_at           DateTime64(3, 'UTC'),
       matched_conditions Array(String),
       resolved_priority  Int32
   ) ENGINE=MergeTree() ORDER BY (location_id, fired_at)`

const createStatusTable = `CREATE TABLE IF NOT EXISTS playback_trigger_status (
       trigger_id  String,
       status      LowCardinality(String),
       detail      String,
       reported_at DateTime64(3, 'UTC')
   ) ENGINE=MergeTree() ORDER BY (trigger_id, reported_at)`

const recentTriggersQuery = `SELECT t.trigger_id, t.campaign_id, t.advertiser_id, t.creative_id, t.location_id,
       t.fired_at, t.matched_conditions, t.resolved_priority, s.status
   FROM playback_triggers AS t
   LEFT JOIN (
       SELECT trigger_id, argMin(status, reported_at) AS status
       FROM playback_trigger_status GROUP BY trigger_id
   ) AS s ON t.trigger_id = s.trigger_id
   WHERE (? = '' OR t.location_id = ?)
   ORDER BY t.fired_at DESC
   LIMIT ?`

// ClickHouseLog writes triggers and their outcomes to ClickHouse.
type ClickHouseLog struct {
	DB *sql.DB
}

// InitClickHouse connects to ClickHouse and ensures the trigger tables exist.
func InitClickHouse(dsn string, maxOpen, maxIdle int, lifetime time.Duration) (*ClickHouseLog, error) {
	conn, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	conn.SetMaxOpenConns(maxOpen)
	conn.SetMaxIdleConns(maxIdle)
	conn.SetConnMaxLifetime(lifetime)
	if err := conn.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	l := NewClickHouseLog(conn)
	if err := l.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to ClickHouse")
	return l, nil
}

// NewClickHouseLog wraps an open connection without touching the schema.
func NewClickHouseLog(conn *sql.DB) *ClickHouseLog {
	return &ClickHouseLog{DB: conn}
}

func (l *ClickHouseLog) ensureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTriggersTable, createStatusTable} {
		if _, err := l.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clickhouse create table: %w", err)
		}
	}
	return nil
}

// RecordTrigger inserts one trigger row.
func (l *ClickHouseLog) RecordTrigger(ctx context.Context, t models.PlaybackTrigger) error {
	if l == nil || l.DB == nil {
		return ErrUnavailable
	}
	matched := t.MatchedConditions
	if matched == nil {
		matched = []string{}
	}
	stmt := `INSERT INTO playback_triggers (trigger_id, campaign_id, advertiser_id, creative_id, location_id, fired_at, matched_conditions, resolved_priority) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := l.DB.ExecContext(ctx, stmt, t.ID, t.CampaignID, t.AdvertiserID, t.CreativeID, t.LocationID, t.FiredAt.UTC(), matched, int32(t.ResolvedPriority)); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("trigger_id", t.ID))
		return fmt.Errorf("insert trigger %s: %w", t.ID, err)
	}
	return nil
}

// RecordStatus appends an outcome row. An unknown trigger returns
// models.ErrNotFound; a trigger that already has an outcome is rejected with
// ErrStatusConflict.
func (l *ClickHouseLog) RecordStatus(ctx context.Context, o models.TriggerOutcome) error {
	if l == nil || l.DB == nil {
		return ErrUnavailable
	}
	if !models.TriggerPending.CanTransition(o.Status) {
		return ErrStatusConflict
	}
	var fired uint64
	if err := l.DB.QueryRowContext(ctx, `SELECT count() FROM playback_triggers WHERE trigger_id = ?`, o.TriggerID).Scan(&fired); err != nil {
		return fmt.Errorf("check trigger %s: %w", o.TriggerID, err)
	}
	if fired == 0 {
		return models.ErrNotFound
	}
	var existing uint64
	if err := l.DB.QueryRowContext(ctx, `SELECT count() FROM playback_trigger_status WHERE trigger_id = ?`, o.TriggerID).Scan(&existing); err != nil {
		return fmt.Errorf("check status %s: %w", o.TriggerID, err)
	}
	if existing > 0 {
		return ErrStatusConflict
	}
	reported := o.ReportedAt
	if reported.IsZero() {
		reported = time.Now()
	}
	stmt := `INSERT INTO playback_trigger_status (trigger_id, status, detail, reported_at) VALUES (?, ?, ?, ?)`
	if _, err := l.DB.ExecContext(ctx, stmt, o.TriggerID, string(o.Status), o.Detail, reported.UTC()); err != nil {
		zap.L().Error("clickhouse insert failed", zap.Error(err), zap.String("trigger_id", o.TriggerID))
		return fmt.Errorf("insert status %s: %w", o.TriggerID, err)
	}
	return nil
}

// RecentTriggers returns the newest triggers for a location with their first
// reported outcome, or pending when none was reported.
func (l *ClickHouseLog) RecentTriggers(ctx context.Context, locationID string, limit int) ([]models.PlaybackTrigger, error) {
	if l == nil || l.DB == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	rows, err := l.DB.QueryContext(ctx, recentTriggersQuery, locationID, locationID, limit)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			zap.L().Warn("rows close", zap.Error(err))
		}
	}()

	var out []models.PlaybackTrigger
	for rows.Next() {
		var (
			t        models.PlaybackTrigger
			priority int32
			status   sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.CampaignID, &t.AdvertiserID, &t.CreativeID, &t.LocationID, &t.FiredAt, &t.MatchedConditions, &priority, &status); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		t.ResolvedPriority = int(priority)
		t.Status = models.TriggerPending
		if status.Valid && status.String != "" {
			t.Status = models.TriggerStatus(status.String)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// Close terminates the ClickHouse connection.
func (l *ClickHouseLog) Close() {
	if l != nil && l.DB != nil {
		if err := l.DB.Close(); err != nil {
			zap.L().Error("clickhouse close", zap.Error(err))
		}
	}
}

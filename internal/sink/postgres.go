package sink

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
)

// Schema creates the sink tables. Replayed rows are ignored via their keys.
const Schema = `
CREATE TABLE IF NOT EXISTS biometric_samples (
	source       TEXT        NOT NULL,
	recorded_at  TIMESTAMPTZ NOT NULL,
	heart_rate   INTEGER     NOT NULL,
	hrv          INTEGER     NOT NULL,
	stress_level INTEGER     NOT NULL,
	PRIMARY KEY (source, recorded_at)
);
CREATE TABLE IF NOT EXISTS warning_events (
	id                       TEXT PRIMARY KEY,
	opened_at                TIMESTAMPTZ NOT NULL,
	warning_level            TEXT        NOT NULL,
	regulation_score_at_open INTEGER     NOT NULL,
	sensor_snapshot          JSONB       NOT NULL,
	resolved_at              TIMESTAMPTZ,
	resolution_strategy_id   TEXT
);
CREATE TABLE IF NOT EXISTS strategies (
	id                   TEXT PRIMARY KEY,
	name                 TEXT    NOT NULL,
	description          TEXT    NOT NULL DEFAULT '',
	category             TEXT    NOT NULL,
	effectiveness_rating INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS strategy_resolutions (
	warning_event_id TEXT PRIMARY KEY,
	strategy_id      TEXT        NOT NULL,
	warning_level    TEXT        NOT NULL,
	score_at_open    INTEGER     NOT NULL,
	opened_at        TIMESTAMPTZ NOT NULL,
	resolved_at      TIMESTAMPTZ NOT NULL
);
`

// PostgresSink writes to PostgreSQL. Each sample batch is one transaction.
type PostgresSink struct {
	db     *sql.DB
	source string
	logger *zap.Logger
}

// NewPostgresSink wraps an open database. source tags every stored sample.
func NewPostgresSink(db *sql.DB, source string, logger *zap.Logger) *PostgresSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresSink{db: db, source: source, logger: logger}
}

// OpenPostgres connects with dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate creates missing tables.
func (p *PostgresSink) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (p *PostgresSink) Close() error {
	return p.db.Close()
}

func (p *PostgresSink) InsertSamples(ctx context.Context, samples []models.BiometricSample) error {
	if len(samples) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	query := `
		INSERT INTO biometric_samples (source, recorded_at, heart_rate, hrv, stress_level)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (source, recorded_at) DO NOTHING
	`
	inserted := int64(0)
	for _, s := range samples {
		res, err := tx.ExecContext(ctx, query, p.source, s.Timestamp.UTC(), s.HeartRate, s.HRV, s.StressLevel)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert sample: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += n
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}

	if skipped := int64(len(samples)) - inserted; skipped > 0 {
		p.logger.Debug("duplicate samples ignored", zap.Int64("skipped", skipped))
	}
	return nil
}

func (p *PostgresSink) InsertWarning(ctx context.Context, event models.WarningEvent) error {
	snapshot, err := json.Marshal(event.SensorSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode sensor snapshot: %w", err)
	}

	query := `
		INSERT INTO warning_events (
			id, opened_at, warning_level, regulation_score_at_open,
			sensor_snapshot, resolved_at, resolution_strategy_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = p.db.ExecContext(ctx, query,
		event.ID,
		event.OpenedAt.UTC(),
		event.WarningLevel.String(),
		event.RegulationScoreAtOpen,
		snapshot,
		nullTime(event.ResolvedAt),
		nullString(event.ResolutionStrategyID),
	)
	if err != nil {
		return fmt.Errorf("failed to insert warning event: %w", err)
	}
	return nil
}

func (p *PostgresSink) UpdateWarning(ctx context.Context, event models.WarningEvent) error {
	query := `
		UPDATE warning_events
		SET resolved_at = $2, resolution_strategy_id = $3
		WHERE id = $1
	`
	res, err := p.db.ExecContext(ctx, query,
		event.ID,
		nullTime(event.ResolvedAt),
		nullString(event.ResolutionStrategyID),
	)
	if err != nil {
		return fmt.Errorf("failed to update warning event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("warning event %s not found", event.ID)
	}
	return nil
}

func (p *PostgresSink) QueryStrategies(ctx context.Context) ([]models.Strategy, error) {
	query := `
		SELECT id, name, description, category, effectiveness_rating
		FROM strategies
		ORDER BY name
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query strategies: %w", err)
	}
	defer rows.Close()

	var out []models.Strategy
	for rows.Next() {
		var s models.Strategy
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.Category, &s.EffectivenessRating); err != nil {
			return nil, fmt.Errorf("failed to scan strategy: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate strategies: %w", err)
	}
	return out, nil
}

func (p *PostgresSink) InsertResolution(ctx context.Context, res models.Resolution) error {
	query := `
		INSERT INTO strategy_resolutions (
			warning_event_id, strategy_id, warning_level, score_at_open, opened_at, resolved_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (warning_event_id) DO NOTHING
	`
	_, err := p.db.ExecContext(ctx, query,
		res.WarningEventID,
		res.StrategyID,
		res.WarningLevel.String(),
		res.ScoreAtOpen,
		res.OpenedAt.UTC(),
		res.ResolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolution: %w", err)
	}
	return nil
}

// IsPermanent reports whether retrying err cannot help: a PostgreSQL data
// or integrity error, or a 4xx from the ingestion API other than 408 and 429.
func IsPermanent(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 400 && statusErr.Code < 500 &&
			statusErr.Code != 408 && statusErr.Code != 429
	}
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code.Class() {
	case "22", "23":
		return true
	}
	return false
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

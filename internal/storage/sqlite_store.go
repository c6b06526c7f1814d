package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"PostPilot/internal/domain"
	"PostPilot/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS processed_items (
    id          TEXT PRIMARY KEY,
    status      TEXT NOT NULL,
    recorded_at TIMESTAMP NOT NULL
)`

// SQLiteStore persists the processed ledger. The unique constraint on id is
// the idempotence primitive: Record never overwrites an existing row.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ ports.ProcessedStore = (*SQLiteStore)(nil)

// Open creates (or reuses) the ledger at path and ensures the schema.
func Open(path string, logger *slog.Logger) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Has reports whether id already carries a terminal record.
func (s *SQLiteStore) Has(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("1").From("processed_items").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("build has query: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query ledger for %s: %w", id, err)
	}
	return true, nil
}

// Record writes the terminal status for id. Returns false and leaves the
// existing row untouched when id was already recorded.
func (s *SQLiteStore) Record(ctx context.Context, id string, status domain.Status) (bool, error) {
	query, args, err := sq.Insert("processed_items").
		Columns("id", "status", "recorded_at").
		Values(id, string(status), time.Now().UTC()).
		Suffix("ON CONFLICT(id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build record query: %w", err)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("record %s as %s: %w", id, status, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected for %s: %w", id, err)
	}

	if affected == 0 {
		if s.logger != nil {
			s.logger.Warn("ledger already holds a record, keeping it", "id", id, "rejected_status", status)
		}
		return false, nil
	}
	return true, nil
}

// Get loads a single record; sql.ErrNoRows when absent.
func (s *SQLiteStore) Get(ctx context.Context, id string) (domain.ProcessedRecord, error) {
	query, args, err := sq.Select("id", "status", "recorded_at").
		From("processed_items").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return domain.ProcessedRecord{}, fmt.Errorf("build get query: %w", err)
	}

	var rec domain.ProcessedRecord
	var status string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&rec.ID, &status, &rec.RecordedAt)
	if err != nil {
		return domain.ProcessedRecord{}, err
	}
	rec.Status = domain.Status(status)
	return rec, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Package sqlite provides a SQLite-backed drop ledger.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thecardroom/nftgen/internal/platform/storage/sqlitemigrate"
	"github.com/thecardroom/nftgen/internal/services/drop/storage"
	"github.com/thecardroom/nftgen/internal/services/drop/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists ledger state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens the ledger at path, creating its directory, and applies the
// embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(cleanPath), 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	dsn := cleanPath + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlitemigrate.Apply(ctx, sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return nil
}

// CreateRun inserts a run record.
func (s *Store) CreateRun(ctx context.Context, run storage.Run) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	runID := strings.TrimSpace(run.ID)
	if runID == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(run.Drop) == "" {
		return fmt.Errorf("drop name is required")
	}
	status := run.Status
	if status == "" {
		status = storage.RunRunning
	}
	startedAt := run.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO runs (
		   run_id, drop_name, network, policy_id, mode, seed,
		   requested, accepted, status, error, started_at, finished_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		run.Drop,
		run.Network,
		run.PolicyID,
		run.Mode,
		run.Seed,
		run.Requested,
		run.Accepted,
		string(status),
		run.Error,
		toMillis(startedAt),
		toMillis(run.FinishedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status storage.RunStatus, accepted int, runErr string, finishedAt time.Time) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if status != storage.RunCompleted && status != storage.RunFailed {
		return fmt.Errorf("invalid final status %q", status)
	}
	if finishedAt.IsZero() {
		finishedAt = time.Now()
	}
	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE runs
		    SET status = ?, accepted = ?, error = ?, finished_at = ?
		  WHERE run_id = ?`,
		string(status), accepted, runErr, toMillis(finishedAt), strings.TrimSpace(runID),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

const runColumns = `run_id, drop_name, network, policy_id, mode, seed,
		        requested, accepted, status, error, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (storage.Run, error) {
	var (
		run        storage.Run
		status     string
		startedAt  int64
		finishedAt int64
	)
	if err := row.Scan(
		&run.ID,
		&run.Drop,
		&run.Network,
		&run.PolicyID,
		&run.Mode,
		&run.Seed,
		&run.Requested,
		&run.Accepted,
		&status,
		&run.Error,
		&startedAt,
		&finishedAt,
	); err != nil {
		return storage.Run{}, err
	}
	run.Status = storage.RunStatus(status)
	run.StartedAt = fromMillis(startedAt)
	run.FinishedAt = fromMillis(finishedAt)
	return run, nil
}

// GetRun returns one run by id.
func (s *Store) GetRun(ctx context.Context, runID string) (storage.Run, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Run{}, err
	}
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return storage.Run{}, fmt.Errorf("run id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Run{}, storage.ErrNotFound
		}
		return storage.Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns the most recently started runs first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]storage.Run, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+runColumns+`
		   FROM runs
		  ORDER BY started_at DESC, run_id ASC
		  LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := make([]storage.Run, 0, limit)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// RecordAsset inserts one accepted asset.
func (s *Store) RecordAsset(ctx context.Context, asset storage.Asset) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(asset.RunID) == "" {
		return fmt.Errorf("run id is required")
	}
	if asset.Sequence <= 0 {
		return fmt.Errorf("sequence must be greater than zero")
	}
	if strings.TrimSpace(asset.TokenName) == "" {
		return fmt.Errorf("token name is required")
	}
	createdAt := asset.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO assets (
		   run_id, sequence, token_name, nft_name, fingerprint, combination_key,
		   image_path, image_sha256, metadata_path, created_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		asset.RunID,
		asset.Sequence,
		asset.TokenName,
		asset.NFTName,
		asset.Fingerprint,
		asset.CombinationKey,
		asset.ImagePath,
		asset.ImageSHA256,
		asset.MetadataPath,
		toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		if isForeignKeyViolation(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("record asset: %w", err)
	}
	return nil
}

// ListAssets returns a run's assets in sequence order.
func (s *Store) ListAssets(ctx context.Context, runID string) ([]storage.Asset, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT run_id, sequence, token_name, nft_name, fingerprint, combination_key,
		        image_path, image_sha256, metadata_path, created_at
		   FROM assets
		  WHERE run_id = ?
		  ORDER BY sequence ASC`,
		strings.TrimSpace(runID),
	)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var assets []storage.Asset
	for rows.Next() {
		var asset storage.Asset
		var createdAt int64
		if err := rows.Scan(
			&asset.RunID,
			&asset.Sequence,
			&asset.TokenName,
			&asset.NFTName,
			&asset.Fingerprint,
			&asset.CombinationKey,
			&asset.ImagePath,
			&asset.ImageSHA256,
			&asset.MetadataPath,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		asset.CreatedAt = fromMillis(createdAt)
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	return assets, nil
}

func sqliteCode(err error) (int, bool) {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code(), true
	}
	return 0, false
}

func isUniqueViolation(err error) bool {
	if code, ok := sqliteCode(err); ok {
		switch code {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func isForeignKeyViolation(err error) bool {
	if code, ok := sqliteCode(err); ok && code == sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint failed")
}

var _ storage.Ledger = (*Store)(nil)

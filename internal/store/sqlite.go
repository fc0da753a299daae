package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/plotfit/plotfit/internal/analytics"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS datasets (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name VARCHAR(100) NOT NULL UNIQUE,
    date VARCHAR(20),
    serial_id VARCHAR(64),
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    dataset_id INTEGER NOT NULL REFERENCES datasets(id) ON DELETE CASCADE,
    x REAL NOT NULL,
    y REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_points_dataset ON points(dataset_id, id);
`

// SQLiteStore persists datasets in an embedded SQLite database
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single writer avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply sqlite schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) CreateDataset(ctx context.Context, ds *Dataset) error {
	now := s.now().UTC()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO datasets (name, date, serial_id, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		ds.Name, nullString(ds.Date), nullString(ds.SerialID), ds.CreatedAt, ds.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDatasetExists, ds.Name)
		}
		return fmt.Errorf("failed to insert dataset: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read dataset id: %w", err)
	}
	ds.ID = id
	return nil
}

func (s *SQLiteStore) GetDataset(ctx context.Context, name string) (*Dataset, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, date, serial_id, created_at, updated_at FROM datasets WHERE name = ?`, name)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return ds, err
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]*Dataset, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, date, serial_id, created_at, updated_at FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets: %w", err)
	}
	defer rows.Close()

	datasets := make([]*Dataset, 0)
	for rows.Next() {
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}
	// ORDER BY uses SQLite collation; keep byte order consistent with other backends
	sortDatasets(datasets)
	return datasets, rows.Err()
}

func (s *SQLiteStore) UpdateDataset(ctx context.Context, name string, update DatasetUpdate) (*Dataset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx,
		`SELECT id, name, date, serial_id, created_at, updated_at FROM datasets WHERE name = ?`, name)
	ds, err := scanDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if err != nil {
		return nil, err
	}

	update.apply(ds, s.now().UTC())
	_, err = tx.ExecContext(ctx,
		`UPDATE datasets SET name = ?, date = ?, serial_id = ?, updated_at = ? WHERE id = ?`,
		ds.Name, nullString(ds.Date), nullString(ds.SerialID), ds.UpdatedAt, ds.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatasetExists, ds.Name)
		}
		return nil, fmt.Errorf("failed to update dataset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *SQLiteStore) DeleteDataset(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete dataset: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	return nil
}

func (s *SQLiteStore) DatasetExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM datasets WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check dataset existence: %w", err)
	}
	return true, nil
}

func (s *SQLiteStore) AddPoint(ctx context.Context, dataset string, x, y float64) (*Point, error) {
	datasetID, err := s.datasetID(ctx, s.db, dataset)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO points (dataset_id, x, y) VALUES (?, ?, ?)`, datasetID, x, y)
	if err != nil {
		return nil, fmt.Errorf("failed to insert point: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read point id: %w", err)
	}
	return &Point{ID: id, X: x, Y: y}, nil
}

func (s *SQLiteStore) AddPoints(ctx context.Context, dataset string, samples []analytics.Sample) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	datasetID, err := s.datasetID(ctx, tx, dataset)
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO points (dataset_id, x, y) VALUES (?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, datasetID, sample.X, sample.Y); err != nil {
			return 0, fmt.Errorf("failed to insert point: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(samples), nil
}

func (s *SQLiteStore) ListPoints(ctx context.Context, dataset string) ([]Point, error) {
	datasetID, err := s.datasetID(ctx, s.db, dataset)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, x, y FROM points WHERE dataset_id = ? ORDER BY id`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to list points: %w", err)
	}
	defer rows.Close()

	points := make([]Point, 0)
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.X, &p.Y); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *SQLiteStore) GetPoint(ctx context.Context, dataset string, id int64) (*Point, error) {
	datasetID, err := s.datasetID(ctx, s.db, dataset)
	if err != nil {
		return nil, err
	}

	var p Point
	err = s.db.QueryRowContext(ctx, `SELECT id, x, y FROM points WHERE id = ? AND dataset_id = ?`, id, datasetID).
		Scan(&p.ID, &p.X, &p.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get point: %w", err)
	}
	return &p, nil
}

func (s *SQLiteStore) UpdatePoint(ctx context.Context, dataset string, id int64, update PointUpdate) (*Point, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	datasetID, err := s.datasetID(ctx, tx, dataset)
	if err != nil {
		return nil, err
	}

	var p Point
	err = tx.QueryRowContext(ctx, `SELECT id, x, y FROM points WHERE id = ? AND dataset_id = ?`, id, datasetID).
		Scan(&p.ID, &p.X, &p.Y)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	update.apply(&p)
	if _, err := tx.ExecContext(ctx, `UPDATE points SET x = ?, y = ? WHERE id = ?`, p.X, p.Y, p.ID); err != nil {
		return nil, fmt.Errorf("failed to update point: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *SQLiteStore) DeletePoint(ctx context.Context, dataset string, id int64) error {
	datasetID, err := s.datasetID(ctx, s.db, dataset)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM points WHERE id = ? AND dataset_id = ?`, id, datasetID)
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %d", ErrPointNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLiteStore) datasetID(ctx context.Context, q queryRower, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM datasets WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrDatasetNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up dataset: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDataset(row rowScanner) (*Dataset, error) {
	var (
		ds       Dataset
		date     sql.NullString
		serialID sql.NullString
	)
	if err := row.Scan(&ds.ID, &ds.Name, &date, &serialID, &ds.CreatedAt, &ds.UpdatedAt); err != nil {
		return nil, err
	}
	ds.Date = date.String
	ds.SerialID = serialID.String
	return &ds, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}

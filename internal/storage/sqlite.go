package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry creates or opens a SQLite database.
func NewSQLiteRegistry(path string) (*SQLiteRegistry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteRegistry{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}

func (s *SQLiteRegistry) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS gsn_leaves (
			name TEXT PRIMARY KEY,
			leaf_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			perspective_id INTEGER NOT NULL,
			score_rate REAL NOT NULL,
			second_goal TEXT,
			leaf_text TEXT,
			payload BLOB
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leaves_perspective ON gsn_leaves(perspective_id);`,
		`CREATE INDEX IF NOT EXISTS idx_leaves_leaf_id ON gsn_leaves(leaf_id);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

const upsertLeaf = `
	INSERT INTO gsn_leaves (name, leaf_id, kind, perspective_id, score_rate, second_goal, leaf_text, payload)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(name) DO UPDATE SET
		leaf_id=excluded.leaf_id,
		kind=excluded.kind,
		perspective_id=excluded.perspective_id,
		score_rate=excluded.score_rate,
		second_goal=excluded.second_goal,
		leaf_text=excluded.leaf_text,
		payload=excluded.payload
`

const selectLeaf = `SELECT name, leaf_id, kind, perspective_id, score_rate, second_goal, leaf_text, payload FROM gsn_leaves`

func (s *SQLiteRegistry) Register(ctx context.Context, rec Record) error {
	rec = normalize(rec)
	_, err := s.db.ExecContext(ctx, upsertLeaf,
		rec.Name, rec.ID, string(rec.Kind), rec.PerspectiveID, rec.ScoreRate, rec.SecondGoal, rec.LeafText, rec.Payload)
	if err != nil {
		return fmt.Errorf("register %s: %w", rec.Name, err)
	}
	return nil
}

func (s *SQLiteRegistry) Lookup(ctx context.Context, leafID string) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectLeaf+" WHERE leaf_id = ? ORDER BY name LIMIT 1", leafID)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("leaf %q: %w", leafID, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup leaf %q: %w", leafID, err)
	}
	return rec, nil
}

func (s *SQLiteRegistry) GetByName(ctx context.Context, name string) (Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectLeaf+" WHERE name = ?", name)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("get %s: %w", name, err)
	}
	return rec, true, nil
}

func (s *SQLiteRegistry) LookupByPerspective(ctx context.Context, perspectiveID int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, selectLeaf+" WHERE perspective_id = ? ORDER BY leaf_id", perspectiveID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaves: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaf: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (s *SQLiteRegistry) ReplacePerspective(ctx context.Context, perspectiveID int, recs []Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM gsn_leaves WHERE perspective_id = ?", perspectiveID); err != nil {
		return fmt.Errorf("clear perspective %d: %w", perspectiveID, err)
	}

	stmt, err := tx.PrepareContext(ctx, upsertLeaf)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		rec = normalize(rec)
		if rec.PerspectiveID != perspectiveID {
			return fmt.Errorf("record %s belongs to perspective %d, not %d", rec.Name, rec.PerspectiveID, perspectiveID)
		}
		if _, err := stmt.ExecContext(ctx,
			rec.Name, rec.ID, string(rec.Kind), rec.PerspectiveID, rec.ScoreRate, rec.SecondGoal, rec.LeafText, rec.Payload); err != nil {
			return fmt.Errorf("register %s: %w", rec.Name, err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var rec Record
	var kind string
	var secondGoal, leafText sql.NullString
	if err := row.Scan(&rec.Name, &rec.ID, &kind, &rec.PerspectiveID, &rec.ScoreRate, &secondGoal, &leafText, &rec.Payload); err != nil {
		return Record{}, err
	}
	rec.Kind = DatasetKind(kind)
	rec.SecondGoal = secondGoal.String
	rec.LeafText = leafText.String
	return rec, nil
}

package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	conn *sql.DB
}

func newSQLiteStore(path string) (*sqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping registry database: %w", err)
	}

	s := &sqliteStore{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if DebugLog != nil {
		DebugLog("sqlite registry open at %s", path)
	}
	return s, nil
}

func (s *sqliteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'VALIDATED',
		model TEXT NOT NULL DEFAULT '',
		dataset TEXT NOT NULL DEFAULT '',
		max_duration TEXT NOT NULL DEFAULT '',
		document TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
	`

	_, err := s.conn.Exec(schema)
	return err
}

func (s *sqliteStore) Close() error {
	return s.conn.Close()
}

func (s *sqliteStore) RecordRun(rec *Record) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)

	if rec.Name != "" {
		if DebugLog != nil {
			DebugLog("superseding older runs named %s with a different fingerprint", rec.Name)
		}
		_, err = tx.Exec(`
			UPDATE runs
			SET status = 'SUPERSEDED', updated_at = ?
			WHERE name = ? AND fingerprint != ? AND status != 'SUPERSEDED'
		`, now, rec.Name, rec.Fingerprint)
		if err != nil {
			return err
		}
	}

	var existingID, existingStatus string
	err = tx.QueryRow(`
		SELECT run_id, status FROM runs
		WHERE name = ? AND fingerprint = ?
		ORDER BY updated_at DESC LIMIT 1
	`, rec.Name, rec.Fingerprint).Scan(&existingID, &existingStatus)

	switch {
	case err == sql.ErrNoRows:
		rec.RunID = newRunID(rec.RunID)
		_, err = tx.Exec(`
			INSERT INTO runs (run_id, name, fingerprint, status, model, dataset, max_duration, document, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rec.RunID, rec.Name, rec.Fingerprint, rec.Status, rec.Model, rec.Dataset, rec.MaxDuration, rec.Document, now, now)
		if err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		if statusRank(rec.Status) < statusRank(existingStatus) {
			rec.Status = existingStatus
		}
		rec.RunID = existingID
		_, err = tx.Exec(`
			UPDATE runs
			SET status = ?, document = ?, updated_at = ?
			WHERE run_id = ?
		`, rec.Status, rec.Document, now, existingID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *sqliteStore) UpdateStatus(runID, status string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.conn.Exec(`
		UPDATE runs SET status = ?, updated_at = ? WHERE run_id = ?
	`, status, now, runID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

func (s *sqliteStore) QueryRuns(filter Filter) ([]Record, error) {
	query := `
		SELECT run_id, name, fingerprint, status, model, dataset, max_duration, document, created_at, updated_at
		FROM runs
	`
	var conds []string
	var args []interface{}

	if filter.Name != "" {
		conds = append(conds, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY updated_at DESC, created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		var created, updated string
		if err := rows.Scan(&r.RunID, &r.Name, &r.Fingerprint, &r.Status, &r.Model, &r.Dataset,
			&r.MaxDuration, &r.Document, &created, &updated); err != nil {
			return nil, err
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, created)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updated)
		records = append(records, r)
	}

	return records, rows.Err()
}

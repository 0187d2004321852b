package registry

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/tunekit/tunekit/pkg/config"
)

const postgresDBName = "tunekit"

type postgresStore struct {
	conn *sql.DB
}

// newPostgresStore connects through the maintenance database first so a
// fresh server gets the tunekit database created on first use.
func newPostgresStore(cfg *config.Registry) (*postgresStore, error) {
	dbName := cfg.Name
	if dbName == "" {
		dbName = postgresDBName
	}

	adminConnStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password)

	adminConn, err := sql.Open("postgres", adminConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer adminConn.Close()

	if err := adminConn.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	var exists bool
	err = adminConn.QueryRow("SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check database existence: %w", err)
	}

	if !exists {
		if _, err := adminConn.Exec(fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
		if DebugLog != nil {
			DebugLog("created registry database %s", dbName)
		}
	}

	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, dbName)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &postgresStore{conn: conn}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *postgresStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		fingerprint VARCHAR(64) NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'VALIDATED',
		model VARCHAR(255) NOT NULL DEFAULT '',
		dataset VARCHAR(255) NOT NULL DEFAULT '',
		max_duration VARCHAR(32) NOT NULL DEFAULT '',
		document TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMP NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_runs_name ON runs(name);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
	`

	_, err := s.conn.Exec(schema)
	return err
}

func (s *postgresStore) Close() error {
	return s.conn.Close()
}

func (s *postgresStore) RecordRun(rec *Record) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if rec.Name != "" {
		if DebugLog != nil {
			DebugLog("superseding older runs named %s with a different fingerprint", rec.Name)
		}
		_, err = tx.Exec(`
			UPDATE runs
			SET status = 'SUPERSEDED', updated_at = NOW()
			WHERE name = $1 AND fingerprint != $2 AND status != 'SUPERSEDED'
		`, rec.Name, rec.Fingerprint)
		if err != nil {
			return err
		}
	}

	var existingID, existingStatus string
	err = tx.QueryRow(`
		SELECT run_id, status FROM runs
		WHERE name = $1 AND fingerprint = $2
		ORDER BY updated_at DESC LIMIT 1
	`, rec.Name, rec.Fingerprint).Scan(&existingID, &existingStatus)

	switch {
	case err == sql.ErrNoRows:
		rec.RunID = newRunID(rec.RunID)
		_, err = tx.Exec(`
			INSERT INTO runs (run_id, name, fingerprint, status, model, dataset, max_duration, document, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		`, rec.RunID, rec.Name, rec.Fingerprint, rec.Status, rec.Model, rec.Dataset, rec.MaxDuration, rec.Document)
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
			SET status = $1, document = $2, updated_at = NOW()
			WHERE run_id = $3
		`, rec.Status, rec.Document, existingID)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *postgresStore) UpdateStatus(runID, status string) error {
	res, err := s.conn.Exec(`
		UPDATE runs SET status = $1, updated_at = NOW() WHERE run_id = $2
	`, status, runID)
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

func (s *postgresStore) QueryRuns(filter Filter) ([]Record, error) {
	query := `
		SELECT run_id, name, fingerprint, status, model, dataset, max_duration, document, created_at, updated_at
		FROM runs
	`
	var conds []string
	var args []interface{}

	if filter.Name != "" {
		args = append(args, filter.Name)
		conds = append(conds, fmt.Sprintf("name = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	for i, cond := range conds {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}

	query += " ORDER BY updated_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.RunID, &r.Name, &r.Fingerprint, &r.Status, &r.Model, &r.Dataset,
			&r.MaxDuration, &r.Document, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// Package registry persists validated and submitted runs. Two backends
// share one Store surface: Postgres for shared team registries, SQLite
// for a local file.
package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tunekit/tunekit/pkg/config"
)

var DebugLog func(string, ...interface{})

const (
	StatusValidated  = "VALIDATED"
	StatusSubmitted  = "SUBMITTED"
	StatusSuperseded = "SUPERSEDED"
)

// Record is one registered run configuration.
type Record struct {
	RunID       string
	Name        string
	Fingerprint string
	Status      string
	Model       string
	Dataset     string
	MaxDuration string
	Document    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Filter narrows QueryRuns. Zero values match everything.
type Filter struct {
	Name   string
	Status string
	Limit  int
}

// Store is the registry surface both backends implement. RecordRun
// deduplicates by fingerprint: re-recording the same name with the same
// fingerprint touches the existing row, a different fingerprint
// supersedes the older rows and inserts a new one.
type Store interface {
	RecordRun(rec *Record) error
	UpdateStatus(runID, status string) error
	QueryRuns(filter Filter) ([]Record, error)
	Close() error
}

// Open connects the backend the tool config selects.
func Open(cfg *config.Registry) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return newPostgresStore(cfg)
	case "sqlite":
		return newSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown registry driver: %s", cfg.Driver)
	}
}

func newRunID(existing string) string {
	if existing != "" {
		return existing
	}
	return uuid.New().String()
}

// statusRank orders the lifecycle so a re-record never downgrades a
// SUBMITTED run back to VALIDATED. SUPERSEDED ranks lowest: recording a
// superseded fingerprint again brings it back.
func statusRank(status string) int {
	switch status {
	case StatusValidated:
		return 1
	case StatusSubmitted:
		return 2
	}
	return 0
}

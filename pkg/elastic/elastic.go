// Package elastic ships run records to an Elasticsearch index for
// dashboards and search across a team's submissions.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/tunekit/tunekit/pkg/registry"
)

var DebugLog func(string, ...interface{})

type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

type Client struct {
	es    *es8.Client
	index string
}

type runDocument struct {
	RunID       string    `json:"run_id"`
	Name        string    `json:"name"`
	Fingerprint string    `json:"fingerprint"`
	Status      string    `json:"status"`
	Model       string    `json:"model"`
	Dataset     string    `json:"dataset"`
	MaxDuration string    `json:"max_duration"`
	Document    string    `json:"document"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("elasticsearch URL is required")
	}
	index := cfg.Index
	if strings.TrimSpace(index) == "" {
		index = "tunekit_runs"
	}

	es, err := es8.NewClient(es8.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Lightweight ping
	if _, err := es.Info(); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return &Client{es: es, index: index}, nil
}

// IndexRuns bulk-indexes run records, keyed by run id so re-submissions
// overwrite the previous document.
func (c *Client) IndexRuns(ctx context.Context, records []registry.Record) error {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     c.es,
		Index:      c.index,
		NumWorkers: 4,
	})
	if err != nil {
		return fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	var failed int64
	for _, rec := range records {
		doc := runDocument{
			RunID:       rec.RunID,
			Name:        rec.Name,
			Fingerprint: rec.Fingerprint,
			Status:      rec.Status,
			Model:       rec.Model,
			Dataset:     rec.Dataset,
			MaxDuration: rec.MaxDuration,
			Document:    rec.Document,
			CreatedAt:   rec.CreatedAt,
			UpdatedAt:   rec.UpdatedAt,
		}
		body, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to serialize run %s: %w", rec.RunID, err)
		}

		item := esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: rec.RunID,
			Body:       bytes.NewReader(body),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
				atomic.AddInt64(&failed, 1)
				if DebugLog != nil {
					DebugLog("failed to index run %s: %v (%s)", item.DocumentID, err, resp.Error.Reason)
				}
			},
		}
		if err := bi.Add(ctx, item); err != nil {
			return fmt.Errorf("bulk add failed: %w", err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk indexer close failed: %w", err)
	}
	if n := atomic.LoadInt64(&failed); n > 0 {
		return fmt.Errorf("%d run(s) failed to index", n)
	}

	return nil
}

// IndexRun indexes a single run record.
func (c *Client) IndexRun(ctx context.Context, rec registry.Record) error {
	return c.IndexRuns(ctx, []registry.Record{rec})
}

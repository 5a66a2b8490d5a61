// Package partner implements the enrichment-service client. Subject ids are
// sharded into fixed-size batches executed concurrently with a bounded
// connection count; a failed batch degrades the output instead of failing
// the job.
package partner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/vietddude/sheetsync/internal/core/domain"
	"github.com/vietddude/sheetsync/internal/core/retry"
)

// Config holds enrichment-service client configuration.
type Config struct {
	URL           string        `yaml:"url"`
	Timeout       time.Duration `yaml:"timeout"`
	BatchSize     int           `yaml:"batch_size"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// Client talks to the partner API. Safe for concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	retryCfg   retry.Config
}

// NewClient creates a partner client with pooled connections.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 5
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryCfg: retry.Config{
			MaxAttempts:     3,
			InitialDelay:    2 * time.Second,
			MaxDelay:        30 * time.Second,
			BackoffMultiple: 2.0,
			Jitter:          500 * time.Millisecond,
		},
	}
}

// FetchRecords returns enrichment records for the given subject ids. Batches
// run concurrently; batches that still fail after retries are logged and
// skipped so the remaining records can merge.
func (c *Client) FetchRecords(ctx context.Context, subjectIDs []int64) ([]domain.EnrichmentRecord, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	batches := splitBatches(subjectIDs, c.cfg.BatchSize)

	var (
		mu      sync.Mutex
		records []domain.EnrichmentRecord
		failed  int
	)

	sem := make(chan struct{}, c.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for _, batch := range batches {
		wg.Add(1)
		go func(ids []int64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			recs, err := retry.Do(ctx, c.retryCfg, "partner fetch", func(ctx context.Context) ([]domain.EnrichmentRecord, error) {
				return c.fetchBatch(ctx, ids)
			})

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				slog.Error("Partner batch failed", "batch_size", len(ids), "error", err)
				return
			}
			records = append(records, recs...)
		}(batch)
	}
	wg.Wait()

	if failed == len(batches) {
		return nil, fmt.Errorf("all %d partner batches failed", failed)
	}

	slog.Info("Fetched partner records",
		"records", len(records),
		"batches", len(batches),
		"failed_batches", failed,
	)
	return records, nil
}

// HealthCheck probes the service with an empty id list. Not on the sync hot
// path.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.fetchBatch(ctx, []int64{})
	if err != nil {
		slog.Warn("Partner health check failed", "error", err)
		return false
	}
	return true
}

func (c *Client) fetchBatch(ctx context.Context, ids []int64) ([]domain.EnrichmentRecord, error) {
	body, err := json.Marshal(map[string][]int64{"users": ids})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.Transient(fmt.Errorf("partner request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("partner status %d: %s", resp.StatusCode, payload)
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, domain.Transient(err)
		}
		return nil, err
	}

	var records []domain.EnrichmentRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return records, nil
}

func splitBatches(ids []int64, size int) [][]int64 {
	var batches [][]int64
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}

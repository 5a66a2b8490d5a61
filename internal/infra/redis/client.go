// Package redis persists the last outcome of every job so restarts and
// external dashboards can see sync history beyond process memory.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// Client wraps Redis operations for the outcome store.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	TTL      time.Duration `yaml:"ttl"`
}

// StoredOutcome is the persisted form of a finished run.
type StoredOutcome struct {
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	SheetTab   string    `json:"sheet_tab"`
	Rows       int       `json:"rows"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 7 * 24 * time.Hour
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb, ttl: cfg.TTL}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func outcomeKey(job string) string {
	return fmt.Sprintf("sheetsync:outcome:%s", job)
}

// SaveOutcome stores the outcome under the job's key, replacing the previous
// run.
func (c *Client) SaveOutcome(ctx context.Context, out domain.SyncOutcome) error {
	stored := StoredOutcome{
		RunID:      out.RunID,
		Job:        out.JobName,
		SheetTab:   out.SheetTab,
		Rows:       out.RowCount,
		DurationMS: out.Duration.Milliseconds(),
		FinishedAt: out.FinishedAt,
	}
	if out.Err != nil {
		stored.Error = out.Err.Error()
	}

	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal outcome: %w", err)
	}
	if err := c.rdb.Set(ctx, outcomeKey(out.JobName), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// GetOutcome returns the stored outcome for one job, or nil when none exists.
func (c *Client) GetOutcome(ctx context.Context, job string) (*StoredOutcome, error) {
	val, err := c.rdb.Get(ctx, outcomeKey(job)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get failed: %w", err)
	}

	var stored StoredOutcome
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		return nil, fmt.Errorf("unmarshal outcome: %w", err)
	}
	return &stored, nil
}

// GetOutcomes returns the stored outcomes for the given jobs, skipping jobs
// with no stored run.
func (c *Client) GetOutcomes(ctx context.Context, jobs []string) (map[string]StoredOutcome, error) {
	result := make(map[string]StoredOutcome, len(jobs))
	for _, job := range jobs {
		stored, err := c.GetOutcome(ctx, job)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			result[job] = *stored
		}
	}
	return result, nil
}

// Record implements the scheduler's outcome sink. Persistence is best effort;
// a failed save never affects the sync loop.
func (c *Client) Record(out domain.SyncOutcome) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.SaveOutcome(ctx, out); err != nil {
		slog.Warn("Failed to persist outcome", "job", out.JobName, "error", err)
	}
}

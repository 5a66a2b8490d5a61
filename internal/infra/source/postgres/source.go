// Package postgres implements the source capability over PostgreSQL using
// sqlx, optionally reached through an SSH tunnel.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/vietddude/sheetsync/internal/core/domain"
	"github.com/vietddude/sheetsync/internal/infra/source"
	"github.com/vietddude/sheetsync/internal/infra/source/tunnel"
)

const (
	historyQuery = `
		SELECT user_id, label, datetime
		FROM funnel_history
		WHERE user_id = ANY($1)
		ORDER BY datetime`

	stateQuery = `
		SELECT DISTINCT ON (user_id) user_id, label, datetime
		FROM user_funnel
		WHERE user_id = ANY($1)
		ORDER BY user_id, datetime DESC`
)

// Factory opens tunneled or direct PostgreSQL connections per JobSpec.
type Factory struct{}

// NewFactory creates a postgres source factory.
func NewFactory() *Factory {
	return &Factory{}
}

// Open connects to the job's database, setting up the SSH tunnel first when
// the job requires one. Connection errors are transient and retryable.
func (f *Factory) Open(ctx context.Context, spec domain.JobSpec) (source.Conn, error) {
	host := spec.Database.Host
	port := spec.Database.Port

	var fwd tunnel.Forwarder
	if spec.Tunnel != nil {
		fwd = tunnel.New(*spec.Tunnel)
		localPort, err := fwd.Start(ctx)
		if err != nil {
			return nil, fmt.Errorf("tunnel for %s: %w", spec.Name, err)
		}
		host = "127.0.0.1"
		port = localPort
	}

	sslMode := spec.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=15",
		host, port, spec.Database.User, spec.Database.Password, spec.Database.Name, sslMode,
	)

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		closeForwarder(fwd)
		return nil, fmt.Errorf("open %s: %w", spec.Database.Name, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		closeForwarder(fwd)
		return nil, domain.Transient(fmt.Errorf("ping %s: %w", spec.Database.Name, err))
	}

	slog.Info("Connected to source database",
		"job", spec.Name,
		"database", spec.Database.Name,
		"tunneled", spec.Tunnel != nil,
	)

	return &Conn{db: db, fwd: fwd, spec: spec}, nil
}

func closeForwarder(fwd tunnel.Forwarder) {
	if fwd != nil {
		_ = fwd.Stop()
	}
}

// Conn is one open source connection.
type Conn struct {
	db   *sqlx.DB
	fwd  tunnel.Forwarder
	spec domain.JobSpec
}

// FetchRows runs the job query and returns column names plus data rows.
func (c *Conn) FetchRows(ctx context.Context) ([]string, [][]any, error) {
	rows, err := c.db.QueryxContext(ctx, c.spec.Query)
	if err != nil {
		return nil, nil, domain.Transient(fmt.Errorf("query %s: %w", c.spec.Database.Name, err))
	}
	defer rows.Close()

	headers, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("columns: %w", err)
	}

	var data [][]any
	for rows.Next() {
		row, err := rows.SliceScan()
		if err != nil {
			return nil, nil, fmt.Errorf("scan: %w", err)
		}
		for i, v := range row {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			}
		}
		data = append(data, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, domain.Transient(fmt.Errorf("rows: %w", err))
	}

	slog.Debug("Fetched rows", "job", c.spec.Name, "count", len(data))
	return headers, data, nil
}

type funnelRow struct {
	SubjectID int64     `db:"user_id"`
	Label     string    `db:"label"`
	Timestamp time.Time `db:"datetime"`
}

// FetchFunnel loads the event history and latest state for the given
// subjects in two indexed queries.
func (c *Conn) FetchFunnel(ctx context.Context, subjectIDs []int64) ([]domain.HistoryEvent, []domain.StateEvent, error) {
	if len(subjectIDs) == 0 {
		return nil, nil, nil
	}

	var historyRows []funnelRow
	if err := c.db.SelectContext(ctx, &historyRows, historyQuery, pq.Array(subjectIDs)); err != nil {
		return nil, nil, domain.Transient(fmt.Errorf("funnel history: %w", err))
	}

	var stateRows []funnelRow
	if err := c.db.SelectContext(ctx, &stateRows, stateQuery, pq.Array(subjectIDs)); err != nil {
		return nil, nil, domain.Transient(fmt.Errorf("funnel state: %w", err))
	}

	history := make([]domain.HistoryEvent, len(historyRows))
	for i, r := range historyRows {
		history[i] = domain.HistoryEvent{SubjectID: r.SubjectID, Label: r.Label, Timestamp: r.Timestamp}
	}
	states := make([]domain.StateEvent, len(stateRows))
	for i, r := range stateRows {
		states[i] = domain.StateEvent{SubjectID: r.SubjectID, Label: r.Label, Timestamp: r.Timestamp}
	}

	return history, states, nil
}

// Close releases the database pool and tears down the tunnel if any.
func (c *Conn) Close() error {
	err := c.db.Close()
	if c.fwd != nil {
		if terr := c.fwd.Stop(); terr != nil && err == nil {
			err = terr
		}
	}
	slog.Debug("Source connection closed", "job", c.spec.Name)
	return err
}

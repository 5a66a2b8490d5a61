// Package source defines the relational-source capability consumed by the
// sync pipeline.
package source

import (
	"context"

	"github.com/vietddude/sheetsync/internal/core/domain"
)

// Conn is an open connection to one job's source database. Owned exclusively
// by the job that opened it and released at the end of the run.
type Conn interface {
	// FetchRows runs the job's query and returns the header and data rows.
	FetchRows(ctx context.Context) (headers []string, rows [][]any, err error)

	// FetchFunnel returns the funnel event history and current-state rows
	// for the given subject ids.
	FetchFunnel(ctx context.Context, subjectIDs []int64) ([]domain.HistoryEvent, []domain.StateEvent, error)

	// Close releases the connection and any tunnel behind it.
	Close() error
}

// Factory opens source connections. Safe to call concurrently; retryable.
type Factory interface {
	Open(ctx context.Context, spec domain.JobSpec) (Conn, error)
}

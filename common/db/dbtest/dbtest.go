// Package dbtest records the statements a repository sends to a db.Executor.
package dbtest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
)

// Call is one statement with its arguments.
type Call struct {
	Query string
	Args  []any
}

// Recorder is a db.Executor that records ExecContext calls and reports
// Affected rows for each of them. Queries are not supported.
type Recorder struct {
	Affected int64
	Err      error

	mu    sync.Mutex
	calls []Call
}

func (r *Recorder) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Query: query, Args: args})
	r.mu.Unlock()
	if r.Err != nil {
		return nil, r.Err
	}
	return result(r.Affected), nil
}

func (r *Recorder) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("dbtest: QueryContext is not supported")
}

func (r *Recorder) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

// Calls returns the recorded statements in order.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Last returns the most recent statement.
func (r *Recorder) Last() Call {
	calls := r.Calls()
	if len(calls) == 0 {
		return Call{}
	}
	return calls[len(calls)-1]
}

type result int64

func (n result) LastInsertId() (int64, error) { return 0, nil }
func (n result) RowsAffected() (int64, error) { return int64(n), nil }

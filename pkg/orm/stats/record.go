// Package stats carries per-statement execution telemetry from the
// executor to pluggable sinks.
package stats

import (
	"context"
	"time"
)

// Record describes one executed statement.
type Record struct {
	// ConnName is the logical connection name.
	ConnName string `json:"conn_name"`
	// ConnID identifies the physical connection checkout.
	ConnID string `json:"conn_id"`
	SQL    string `json:"sql"`
	// Params is a description of the bound values: an entity snapshot for
	// entity operations, the parameter list for raw SQL.
	Params string `json:"params"`
	// Rows is the affected row count for writes and the returned row
	// count for reads.
	Rows      int64     `json:"rows"`
	StartedAt time.Time `json:"started_at"`

	// Acquire is the time spent checking out the connection.
	Acquire time.Duration `json:"acquire"`
	// Connect is the time from the start of the call until the statement
	// was prepared, bound and ready to execute.
	Connect time.Duration `json:"connect"`
	// Exec is the time spent inside the database call.
	Exec  time.Duration `json:"exec"`
	Total time.Duration `json:"total"`

	// Err is the failure description, empty on success.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the statement failed.
func (r Record) Failed() bool {
	return r.Err != ""
}

// Sink receives one Record per executed statement. Record is called
// synchronously on the caller's goroutine; implementations must not
// block for long and report their own failures instead of returning them.
type Sink interface {
	Record(ctx context.Context, rec Record)
}

// Reader exposes recently recorded statements, newest first.
type Reader interface {
	Recent(ctx context.Context, n int) ([]Record, error)
}

// Nop discards every record.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(context.Context, Record) {}

// Multi fans a record out to several sinks in order.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(ctx context.Context, rec Record) {
	for _, s := range m {
		if s != nil {
			s.Record(ctx, rec)
		}
	}
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record)

// Record implements Sink.
func (f SinkFunc) Record(ctx context.Context, rec Record) {
	f(ctx, rec)
}

package crud

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Configuration errors. They are programmer errors and always surface
// wrapped in a *ConfigError.
var (
	// ErrNoTable is returned when no table name is declared or supplied
	ErrNoTable = errors.New("no table name")

	// ErrNoColumns is returned when an entity declares no columns
	ErrNoColumns = errors.New("no columns declared")

	// ErrNoPrimaryKey is returned when an operation needs a primary key the entity does not declare
	ErrNoPrimaryKey = errors.New("no primary key declared")

	// ErrUnboundColumn is returned when a column has no property to bind from
	ErrUnboundColumn = errors.New("column has no bindable property")

	// ErrNoConnection is returned when no logical connection can be resolved
	ErrNoConnection = errors.New("no connection resolved")
)

// Execution errors, classified from driver errors by ConvertDBError
var (
	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")

	// ErrDeadlock is returned when the database aborted the statement to break a deadlock
	ErrDeadlock = errors.New("deadlock detected")

	// ErrMapping is returned when a result row cannot be written onto an entity
	ErrMapping = errors.New("result mapping failed")
)

// ConfigError reports an entity mapping that cannot be executed
type ConfigError struct {
	Entity string
	Err    error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Entity == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("entity %s: %v", e.Entity, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ExecError wraps a failure that happened while talking to the database.
// The message is prefixed with the logical connection name.
type ExecError struct {
	Conn string
	Err  error
}

// Error implements the error interface
func (e *ExecError) Error() string {
	return e.Conn + ": " + e.Err.Error()
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// ConvertDBError classifies driver errors from pgx, lib/pq and
// go-sqlite3. The original error stays in the chain.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifySQLState(pgErr.Code, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return classifySQLState(string(pqErr.Code), err)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		switch liteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
		case sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
		case sqlite3.ErrConstraintCheck:
			return fmt.Errorf("%w: %w", ErrCheckViolation, err)
		case sqlite3.ErrConstraintNotNull:
			return fmt.Errorf("%w: %w", ErrNotNullViolation, err)
		}
	}

	return err
}

func classifySQLState(code string, err error) error {
	switch code {
	case "23505": // unique_violation
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case "23503": // foreign_key_violation
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	case "23514": // check_violation
		return fmt.Errorf("%w: %w", ErrCheckViolation, err)
	case "23502": // not_null_violation
		return fmt.Errorf("%w: %w", ErrNotNullViolation, err)
	case "40P01": // deadlock_detected
		return fmt.Errorf("%w: %w", ErrDeadlock, err)
	}
	return err
}

// IsConfigError returns true if err is a configuration error
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsDeadlock returns true if the error is ErrDeadlock
func IsDeadlock(err error) bool {
	return errors.Is(err, ErrDeadlock)
}

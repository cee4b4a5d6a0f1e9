package command

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fluxorio/dbflux/pkg/logging"
)

// ErrNestedTransaction is returned when a transaction command appears as a
// member of another transaction
var ErrNestedTransaction = errors.New("command: nested transactions are not supported")

// TxState tracks the transaction command's lifecycle
type TxState int

const (
	TxNotStarted TxState = iota
	TxRunning
	TxCommitted
	TxRolledBack
)

// String returns the state name
func (s TxState) String() string {
	switch s {
	case TxNotStarted:
		return "not_started"
	case TxRunning:
		return "running"
	case TxCommitted:
		return "committed"
	case TxRolledBack:
		return "rolled_back"
	default:
		return "unknown"
	}
}

// TxOutcome is the result value of a transaction command: either committed,
// or rolled back at a member index with its cause. The rollback attempt is
// a distinct observable step: RollbackErr records its own failure, which is
// logged but never masks Cause
type TxOutcome struct {
	State       TxState
	At          int   // Index of the failed member when rolled back
	Cause       error // Member failure that triggered the rollback
	RollbackErr error // Failure of the rollback itself, if any
}

// execer is the subset of database/sql shared by *sql.Conn and *sql.Tx.
// Update, query and batch commands run against either; the transaction
// command additionally needs BeginTx and therefore a real connection
type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// beginner is satisfied by *sql.Conn
type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Run executes cmd against conn and returns its typed result:
// int64 for updates, the mapper's value for queries, []int64 for batches
// and TxOutcome for transactions. The exhaustive Kind switch is the single
// dispatch point of the engine.
// logger may be nil
func Run(ctx context.Context, conn *sql.Conn, cmd *Command, logger logging.Logger) (interface{}, error) {
	return run(ctx, conn, cmd, logging.OrNop(logger))
}

func run(ctx context.Context, e execer, cmd *Command, log logging.Logger) (interface{}, error) {
	switch cmd.kind {
	case KindUpdate:
		return runUpdate(ctx, e, cmd)
	case KindQuery:
		return runQuery(ctx, e, cmd)
	case KindBatch:
		return runBatch(ctx, e, cmd, log)
	case KindTransaction:
		return runTransaction(ctx, e, cmd, log)
	default:
		return nil, &CommandError{SQL: cmd.sql, Err: errors.New("unknown command kind")}
	}
}

func runUpdate(ctx context.Context, e execer, cmd *Command) (interface{}, error) {
	result, err := e.ExecContext(ctx, cmd.sql, cmd.args...)
	if err != nil {
		return nil, &CommandError{SQL: cmd.sql, Err: err}
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, &CommandError{SQL: cmd.sql, Err: err}
	}
	return affected, nil
}

func runQuery(ctx context.Context, e execer, cmd *Command) (interface{}, error) {
	rows, err := e.QueryContext(ctx, cmd.sql, cmd.args...)
	if err != nil {
		return nil, &CommandError{SQL: cmd.sql, Err: err}
	}
	defer rows.Close()

	// The mapper consumes the result set exactly once
	value, err := cmd.mapper(rows)
	if err != nil {
		return nil, &CommandError{SQL: cmd.sql, Err: err}
	}
	if err := rows.Err(); err != nil {
		return nil, &CommandError{SQL: cmd.sql, Err: err}
	}
	return value, nil
}

func runBatch(ctx context.Context, e execer, cmd *Command, log logging.Logger) (interface{}, error) {
	if len(cmd.paramSets) == 0 {
		log.Debugf("empty batch, returning empty result")
		return []int64{}, nil
	}

	stmt, err := e.PrepareContext(ctx, cmd.sql)
	if err != nil {
		return nil, &CommandError{SQL: cmd.sql, Err: err}
	}
	defer stmt.Close()

	results := make([]int64, 0, len(cmd.paramSets))
	for _, params := range cmd.paramSets {
		res, err := stmt.ExecContext(ctx, params...)
		if err != nil {
			return nil, &CommandError{SQL: cmd.sql, Err: err}
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, &CommandError{SQL: cmd.sql, Err: err}
		}
		results = append(results, affected)
	}
	log.Debugf("batch executed: %s, %d sets", truncateSQL(cmd.sql, 30), len(results))
	return results, nil
}

// runTransaction drives the state machine NotStarted -> Running ->
// {Committed, RolledBack}. Members run sequentially against the tx; the
// first failure aborts the remainder and triggers a rollback. A rollback
// failure is logged and recorded in the outcome, never raised in place of
// the member failure
func runTransaction(ctx context.Context, e execer, cmd *Command, log logging.Logger) (interface{}, error) {
	b, ok := e.(beginner)
	if !ok {
		return TxOutcome{State: TxNotStarted}, ErrNestedTransaction
	}

	outcome := TxOutcome{State: TxNotStarted}

	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return outcome, &CommandError{Err: err}
	}
	outcome.State = TxRunning
	log.Debugf("transaction started with %d commands", len(cmd.members))

	for i, member := range cmd.members {
		if member.kind == KindTransaction {
			outcome = rollback(tx, outcome, i, ErrNestedTransaction, log)
			return outcome, &TransactionAbortedError{Index: i, Err: ErrNestedTransaction}
		}
		if _, err := run(ctx, tx, member, log); err != nil {
			log.Errorf("transaction command %d/%d failed: %s: %v",
				i+1, len(cmd.members), member.Describe(), err)
			outcome = rollback(tx, outcome, i, err, log)
			return outcome, &TransactionAbortedError{Index: i, Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		outcome = rollback(tx, outcome, len(cmd.members), err, log)
		return outcome, &CommandError{Err: err}
	}
	outcome.State = TxCommitted
	log.Debugf("transaction committed")
	return outcome, nil
}

// rollback performs the Running -> RolledBack transition as its own
// observable step
func rollback(tx *sql.Tx, outcome TxOutcome, at int, cause error, log logging.Logger) TxOutcome {
	outcome.State = TxRolledBack
	outcome.At = at
	outcome.Cause = cause
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		outcome.RollbackErr = err
		log.Errorf("transaction rollback failed: %v", err)
	} else {
		log.Debugf("transaction rolled back")
	}
	return outcome
}

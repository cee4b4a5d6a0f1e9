package command

import (
	"fmt"
)

// CommandError is an execution-time failure of a single command.
// SQL carries the statement text for diagnostics; Err is the driver error
type CommandError struct {
	SQL string
	Err error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command failed [%s]: %v", truncateSQL(e.SQL, 50), e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// TransactionAbortedError reports that a member command failed mid-transaction
// and the transaction was rolled back. Index is the zero-based position of
// the failed member
type TransactionAbortedError struct {
	Index int
	Err   error
}

func (e *TransactionAbortedError) Error() string {
	return fmt.Sprintf("transaction aborted at command %d: %v", e.Index, e.Err)
}

func (e *TransactionAbortedError) Unwrap() error {
	return e.Err
}

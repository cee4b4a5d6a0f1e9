package command

import (
	"database/sql"
	"fmt"
)

// Kind discriminates the closed set of command variants. The execution
// engine switches on it exhaustively; adding a Kind requires extending Run
type Kind int

const (
	KindUpdate Kind = iota
	KindQuery
	KindBatch
	KindTransaction
)

// String returns the variant name for logs
func (k Kind) String() string {
	switch k {
	case KindUpdate:
		return "update"
	case KindQuery:
		return "query"
	case KindBatch:
		return "batch"
	case KindTransaction:
		return "transaction"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// RowMapper maps a result set to a caller-defined value. It is invoked
// exactly once per query with the open rows; the engine closes the rows
// afterwards. A mapper that finds no rows decides its own "no rows"
// representation rather than relying on a silent nil sentinel
type RowMapper func(rows *sql.Rows) (interface{}, error)

// Command is an immutable description of one database operation.
// It is a tagged union over {update, query, batch, transaction}: only the
// fields relevant to Kind are set. Commands are stateless and safely
// re-executable; running one twice performs the operation twice
type Command struct {
	kind      Kind
	sql       string
	args      []interface{}
	mapper    RowMapper       // query only
	paramSets [][]interface{} // batch only
	members   []*Command      // transaction only
}

// Update describes an INSERT/UPDATE/DELETE with positional parameters.
// Its result is the affected-row count (int64)
func Update(sqlText string, args ...interface{}) *Command {
	return &Command{kind: KindUpdate, sql: sqlText, args: args}
}

// Query describes a SELECT whose result set is streamed through mapper.
// Its result is whatever the mapper returns
func Query(sqlText string, mapper RowMapper, args ...interface{}) *Command {
	return &Command{kind: KindQuery, sql: sqlText, mapper: mapper, args: args}
}

// Batch describes one statement executed once per parameter set.
// Its result is the per-set affected-row counts ([]int64)
func Batch(sqlText string, paramSets [][]interface{}) *Command {
	return &Command{kind: KindBatch, sql: sqlText, paramSets: paramSets}
}

// Transaction describes an ordered sequence of commands run as one atomic
// unit of work. Its result is the transaction outcome (TxOutcome)
func Transaction(members ...*Command) *Command {
	return &Command{kind: KindTransaction, members: members}
}

// Kind returns the variant tag
func (c *Command) Kind() Kind {
	return c.kind
}

// SQL returns the statement text (empty for transactions)
func (c *Command) SQL() string {
	return c.sql
}

// Describe returns a short self-description for logs and diagnostics
func (c *Command) Describe() string {
	switch c.kind {
	case KindUpdate:
		return fmt.Sprintf("update[%s]", truncateSQL(c.sql, 50))
	case KindQuery:
		return fmt.Sprintf("query[%s]", truncateSQL(c.sql, 50))
	case KindBatch:
		return fmt.Sprintf("batch[%s, %d sets]", truncateSQL(c.sql, 30), len(c.paramSets))
	case KindTransaction:
		return fmt.Sprintf("transaction[%d commands]", len(c.members))
	default:
		return c.kind.String()
	}
}

// ReadOnly reports whether the command performs no writes. A transaction is
// read-only only if every member is; nothing in the engine branches on the
// composite case
func (c *Command) ReadOnly() bool {
	switch c.kind {
	case KindQuery:
		return true
	case KindTransaction:
		for _, m := range c.members {
			if !m.ReadOnly() {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// RequiresTransaction is a usage signal: callers may want to wrap the
// command transactionally. The command never self-wraps
func (c *Command) RequiresTransaction() bool {
	return c.kind == KindBatch || c.kind == KindTransaction
}

// Noop reports whether executing the command would not touch a connection
// at all (an empty batch short-circuits to an empty result)
func (c *Command) Noop() bool {
	return c.kind == KindBatch && len(c.paramSets) == 0
}

func truncateSQL(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testConn opens a private in-memory database and hands out one connection
func testConn(t *testing.T) (*sql.DB, *sql.Conn) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", t.Name())
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })

	conn, err := sqlDB.Conn(context.Background())
	if err != nil {
		t.Fatalf("conn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if _, err := conn.ExecContext(context.Background(),
		`CREATE TABLE logs (id INTEGER PRIMARY KEY, msg TEXT NOT NULL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return sqlDB, conn
}

func countLogs(t *testing.T, conn *sql.Conn) int {
	t.Helper()
	var n int
	row := conn.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM logs`)
	if err := row.Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func TestRun_Update(t *testing.T) {
	_, conn := testConn(t)

	result, err := Run(context.Background(), conn,
		Update(`INSERT INTO logs(msg) VALUES(?)`, "hello"), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if affected := result.(int64); affected != 1 {
		t.Errorf("affected = %d, want 1", affected)
	}
	if n := countLogs(t, conn); n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}

func TestRun_UpdateFailure(t *testing.T) {
	_, conn := testConn(t)

	_, err := Run(context.Background(), conn,
		Update(`INSERT INTO missing(msg) VALUES(?)`, "x"), nil)
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("Run() error = %v, want *CommandError", err)
	}
	if cmdErr.SQL == "" {
		t.Error("CommandError.SQL should carry the statement text")
	}
	if cmdErr.Unwrap() == nil {
		t.Error("CommandError should wrap the driver error")
	}
}

func TestRun_QueryWithMapper(t *testing.T) {
	_, conn := testConn(t)

	for i := 0; i < 7; i++ {
		if _, err := Run(context.Background(), conn,
			Update(`INSERT INTO logs(msg) VALUES(?)`, fmt.Sprintf("m%d", i)), nil); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	result, err := Run(context.Background(), conn,
		Query(`SELECT COUNT(*) AS total FROM logs`, func(rows *sql.Rows) (interface{}, error) {
			if !rows.Next() {
				return nil, errors.New("no rows")
			}
			var total int
			if err := rows.Scan(&total); err != nil {
				return nil, err
			}
			return total, nil
		}), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if total := result.(int); total != 7 {
		t.Errorf("total = %d, want 7", total)
	}
}

func TestRun_QueryMapperError(t *testing.T) {
	_, conn := testConn(t)

	mapFail := errors.New("mapper exploded")
	_, err := Run(context.Background(), conn,
		Query(`SELECT 1`, func(rows *sql.Rows) (interface{}, error) {
			return nil, mapFail
		}), nil)
	if !errors.Is(err, mapFail) {
		t.Errorf("Run() error = %v, want wrapped mapper error", err)
	}
}

func TestRun_Batch(t *testing.T) {
	_, conn := testConn(t)

	result, err := Run(context.Background(), conn,
		Batch(`INSERT INTO logs(msg) VALUES(?)`, [][]interface{}{
			{"a"}, {"b"}, {"c"},
		}), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	counts := result.([]int64)
	if len(counts) != 3 {
		t.Fatalf("counts = %v, want 3 entries", counts)
	}
	for i, c := range counts {
		if c != 1 {
			t.Errorf("counts[%d] = %d, want 1", i, c)
		}
	}
	if n := countLogs(t, conn); n != 3 {
		t.Errorf("rows = %d, want 3", n)
	}
}

func TestRun_EmptyBatchNeverTouchesConnection(t *testing.T) {
	cmd := Batch(`INSERT INTO logs(msg) VALUES(?)`, nil)
	if !cmd.Noop() {
		t.Error("empty batch should be a noop")
	}

	// A nil connection proves the connection is never used
	result, err := Run(context.Background(), nil, cmd, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if counts := result.([]int64); len(counts) != 0 {
		t.Errorf("counts = %v, want empty", counts)
	}
}

func TestRun_TransactionCommits(t *testing.T) {
	_, conn := testConn(t)

	result, err := Run(context.Background(), conn, Transaction(
		Update(`INSERT INTO logs(msg) VALUES(?)`, "a"),
		Update(`INSERT INTO logs(msg) VALUES(?)`, "b"),
	), nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	outcome := result.(TxOutcome)
	if outcome.State != TxCommitted {
		t.Errorf("outcome = %s, want committed", outcome.State)
	}
	if n := countLogs(t, conn); n != 2 {
		t.Errorf("rows = %d, want 2", n)
	}
}

func TestRun_TransactionRollsBackOnMemberFailure(t *testing.T) {
	_, conn := testConn(t)

	executedC := false
	_, err := Run(context.Background(), conn, Transaction(
		Update(`INSERT INTO logs(msg) VALUES(?)`, "a"),
		Update(`INSERT INTO missing(msg) VALUES(?)`, "b"),
		Query(`SELECT 1`, func(rows *sql.Rows) (interface{}, error) {
			executedC = true
			return nil, nil
		}),
	), nil)

	var aborted *TransactionAbortedError
	if !errors.As(err, &aborted) {
		t.Fatalf("Run() error = %v, want *TransactionAbortedError", err)
	}
	if aborted.Index != 1 {
		t.Errorf("failed index = %d, want 1", aborted.Index)
	}
	if executedC {
		t.Error("command after the failure must not execute")
	}
	// A's insert must have been rolled back
	if n := countLogs(t, conn); n != 0 {
		t.Errorf("rows = %d, want 0 after rollback", n)
	}
}

func TestRun_TransactionOutcomeRecordsRollback(t *testing.T) {
	_, conn := testConn(t)

	result, err := Run(context.Background(), conn, Transaction(
		Update(`INSERT INTO missing(msg) VALUES(?)`, "x"),
	), nil)
	if err == nil {
		t.Fatal("Run() should fail")
	}
	outcome := result.(TxOutcome)
	if outcome.State != TxRolledBack {
		t.Errorf("outcome = %s, want rolled_back", outcome.State)
	}
	if outcome.At != 0 {
		t.Errorf("outcome.At = %d, want 0", outcome.At)
	}
	if outcome.Cause == nil {
		t.Error("outcome.Cause should carry the member failure")
	}
	if outcome.RollbackErr != nil {
		t.Errorf("rollback itself should succeed, got %v", outcome.RollbackErr)
	}
}

func TestRun_NestedTransactionRejected(t *testing.T) {
	_, conn := testConn(t)

	_, err := Run(context.Background(), conn, Transaction(
		Transaction(Update(`INSERT INTO logs(msg) VALUES(?)`, "x")),
	), nil)
	if !errors.Is(err, ErrNestedTransaction) {
		t.Errorf("Run() error = %v, want ErrNestedTransaction", err)
	}
}

func TestCommand_Describe(t *testing.T) {
	long := "SELECT * FROM logs WHERE msg LIKE '%something long enough to truncate in descriptions%'"
	cases := []struct {
		cmd  *Command
		want string
	}{
		{Update(`DELETE FROM logs`), "update[DELETE FROM logs]"},
		{Query(long, nil), "query[" + long[:50] + "...]"},
		{Batch(`INSERT INTO logs(msg) VALUES(?)`, [][]interface{}{{"a"}, {"b"}}), "batch[INSERT INTO logs(msg) VALUES(?), 2 sets]"},
		{Transaction(Update(`DELETE FROM logs`)), "transaction[1 commands]"},
	}
	for _, tc := range cases {
		if got := tc.cmd.Describe(); got != tc.want {
			t.Errorf("Describe() = %q, want %q", got, tc.want)
		}
	}
}

func TestCommand_Flags(t *testing.T) {
	if !Query(`SELECT 1`, nil).ReadOnly() {
		t.Error("query should be read-only")
	}
	if Update(`DELETE FROM logs`).ReadOnly() {
		t.Error("update should not be read-only")
	}
	if !Batch(`X`, nil).RequiresTransaction() {
		t.Error("batch should signal requires-transaction")
	}
	if Update(`X`).RequiresTransaction() {
		t.Error("update should not signal requires-transaction")
	}
	// Composite read-only: all members read-only
	if !Transaction(Query(`SELECT 1`, nil)).ReadOnly() {
		t.Error("all-query transaction should report read-only")
	}
	if Transaction(Query(`SELECT 1`, nil), Update(`X`)).ReadOnly() {
		t.Error("mixed transaction should not report read-only")
	}
}

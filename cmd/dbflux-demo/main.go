// Command dbflux-demo exercises the full facade surface against an
// in-memory SQLite database: direct updates, mapped queries, batches,
// an atomic transaction with rollback, and the command queue.
//
// PostgreSQL drivers (lib/pq and pgx) are registered so the same binary
// can point at a real database via DBFLUX_DATABASE_DSN / _DRIVER
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/fluxorio/dbflux/pkg/command"
	"github.com/fluxorio/dbflux/pkg/config"
	"github.com/fluxorio/dbflux/pkg/dbflux"
	"github.com/fluxorio/dbflux/pkg/logging"
	"github.com/fluxorio/dbflux/pkg/mapper"
	obs "github.com/fluxorio/dbflux/pkg/observability/prometheus"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "dbflux-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.NewDevelopment("dbflux-demo")

	shutdownTracing, err := setupTracing()
	if err != nil {
		return err
	}
	defer shutdownTracing()

	cfg := config.Default()
	cfg.Database.Driver = "sqlite3"
	cfg.Database.DSN = "file:demo?mode=memory&cache=shared"
	cfg.Database.MaxOpenConns = 4
	cfg.Database.MaxIdleConns = 2
	cfg.Queue.DrainInterval = config.Duration(50 * time.Millisecond)
	if err := config.ApplyEnvOverrides("DBFLUX", cfg); err != nil {
		return err
	}

	database, err := dbflux.New(cfg,
		dbflux.WithLogger(logger),
		dbflux.WithMetrics(obs.GetMetrics()),
	)
	if err != nil {
		return err
	}
	ctx := context.Background()
	defer database.Shutdown(ctx)

	if _, err := database.ExecuteUpdate(
		`CREATE TABLE players (id INTEGER PRIMARY KEY, name TEXT NOT NULL, coins INTEGER NOT NULL DEFAULT 0)`,
	).Await(ctx); err != nil {
		return err
	}

	// Direct asynchronous update
	affected, err := database.ExecuteUpdate(
		`INSERT INTO players (name, coins) VALUES (?, ?)`, "haniel", 100,
	).Await(ctx)
	if err != nil {
		return err
	}
	logger.Infof("inserted %d row(s)", affected)

	// Batch insert
	counts, err := database.ExecuteBatch(
		`INSERT INTO players (name, coins) VALUES (?, ?)`,
		[][]interface{}{
			{"alice", 50},
			{"bob", 75},
			{"carol", 25},
		},
	).Await(ctx)
	if err != nil {
		return err
	}
	logger.Infof("batch inserted %d row(s)", len(counts))

	// Atomic transaction: both transfers commit or neither does
	outcome, err := database.ExecuteTransaction(
		command.Update(`UPDATE players SET coins = coins - ? WHERE name = ?`, 30, "haniel"),
		command.Update(`UPDATE players SET coins = coins + ? WHERE name = ?`, 30, "alice"),
	).Await(ctx)
	if err != nil {
		return err
	}
	logger.Infof("transaction outcome: %s", outcome.State)

	// Mapped query
	result, err := database.ExecuteQuery(
		`SELECT name, coins FROM players ORDER BY coins DESC`,
		func(rows *sql.Rows) (interface{}, error) {
			return mapper.All(rows, func(rows *sql.Rows) (string, error) {
				var name string
				var coins int
				if err := rows.Scan(&name, &coins); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s=%d", name, coins), nil
			})
		},
	).Await(ctx)
	if err != nil {
		return err
	}
	logger.Infof("leaderboard: %v", result)

	// Deferred execution through the command queue
	queued := database.Enqueue(command.Update(
		`INSERT INTO players (name, coins) VALUES (?, ?)`, "dave", 10,
	))
	if _, err := queued.Await(ctx); err != nil {
		return err
	}

	info := database.Info()
	logger.Infof("%s (success rate %.2f)", info.Status(), info.SuccessRate())
	return nil
}

// setupTracing installs a stdout span exporter as the global provider
func setupTracing() (func(), error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(provider)
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}, nil
}

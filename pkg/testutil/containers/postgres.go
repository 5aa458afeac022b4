//go:build integration

package containers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// schema mirrors the production DDL. Kept inline so integration tests run
// against the exact table shapes the stores expect.
const schema = `
CREATE TABLE IF NOT EXISTS registration_steps (
	id          UUID PRIMARY KEY,
	code        VARCHAR(50)  NOT NULL,
	title       VARCHAR(100) NOT NULL,
	description TEXT         NOT NULL DEFAULT '',
	action_type TEXT         NOT NULL,
	data_scope  TEXT         NOT NULL,
	step_order  INTEGER      NOT NULL,
	is_active   BOOLEAN      NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ  NOT NULL,
	updated_at  TIMESTAMPTZ  NOT NULL,
	CONSTRAINT registration_steps_code_key UNIQUE (code),
	CONSTRAINT registration_steps_step_order_key UNIQUE (step_order),
	CONSTRAINT registration_steps_data_scope_key UNIQUE (data_scope),
	CONSTRAINT registration_steps_step_order_positive CHECK (step_order >= 1)
);

CREATE TABLE IF NOT EXISTS registrations (
	id              UUID PRIMARY KEY,
	user_id         UUID        NOT NULL,
	current_step_id UUID        NOT NULL REFERENCES registration_steps (id),
	status          TEXT        NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL,
	CONSTRAINT registrations_user_id_key UNIQUE (user_id)
);

CREATE TABLE IF NOT EXISTS registration_completed_steps (
	registration_id UUID NOT NULL REFERENCES registrations (id) ON DELETE CASCADE,
	step_id         UUID NOT NULL,
	PRIMARY KEY (registration_id, step_id)
);
`

// PostgresContainer wraps a testcontainers PostgreSQL instance with the
// schema applied.
type PostgresContainer struct {
	Container testcontainers.Container
	DB        *sql.DB
	DSN       string
}

// NewPostgresContainer starts a PostgreSQL container and applies the schema.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("manasik_test"),
		tcpostgres.WithUsername("manasik"),
		tcpostgres.WithPassword("manasik"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to get postgres connection string: %v", err)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("failed to open postgres connection: %v", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to ping postgres: %v", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		_ = container.Terminate(ctx)
		t.Fatalf("failed to apply schema: %v", err)
	}

	return &PostgresContainer{Container: container, DB: db, DSN: dsn}
}

// TruncateTables removes all rows from the given tables. Use between tests
// for isolation; pass tables in dependency order.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	if len(tables) == 0 {
		return nil
	}
	query := fmt.Sprintf("TRUNCATE TABLE %s CASCADE", strings.Join(tables, ", "))
	if _, err := p.DB.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("truncate tables: %w", err)
	}
	return nil
}

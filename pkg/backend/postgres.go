package backend

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.18.0"

	"github.com/lightldap/lightldap/pkg/handler"
)

type PostgresBackend struct{}

func NewPostgresHandler(ctx context.Context, opts ...Option) (handler.BackendHandler, error) {
	return NewDatabaseHandler(ctx, PostgresBackend{}, opts...)
}

func (b PostgresBackend) GetDriverName() string {
	return "postgres"
}

func (b PostgresBackend) GetDBSystem() attribute.KeyValue {
	return semconv.DBSystemPostgreSQL
}

func (b PostgresBackend) PrepareDSN(dsn string) (string, error) {
	return dsn, nil
}

func (b PostgresBackend) GetPrepareSymbol() string {
	return "$1"
}

// Create db/schema if necessary
func (b PostgresBackend) CreateSchema(ctx context.Context, db *sql.DB) error {
	return execAll(ctx, db, `
CREATE TABLE IF NOT EXISTS users (
	user_id TEXT PRIMARY KEY,
	email TEXT NOT NULL DEFAULT '',
	display_name TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	creation_date TIMESTAMPTZ NOT NULL DEFAULT now(),
	passbcrypt TEXT NOT NULL DEFAULT '',
	passsha256 TEXT NOT NULL DEFAULT '',
	otpsecret TEXT NOT NULL DEFAULT '',
	disabled BOOLEAN NOT NULL DEFAULT false)
`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(email) WHERE email <> ''`,
	)
}

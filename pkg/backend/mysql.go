package backend

import (
	"context"
	"database/sql"

	"github.com/go-sql-driver/mysql"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.18.0"

	"github.com/lightldap/lightldap/pkg/handler"
)

type MysqlBackend struct{}

func NewMysqlHandler(ctx context.Context, opts ...Option) (handler.BackendHandler, error) {
	return NewDatabaseHandler(ctx, MysqlBackend{}, opts...)
}

func (b MysqlBackend) GetDriverName() string {
	return "mysql"
}

func (b MysqlBackend) GetDBSystem() attribute.KeyValue {
	return semconv.DBSystemMySQL
}

// PrepareDSN turns on parseTime so creation_date scans into a time.Time.
func (b MysqlBackend) PrepareDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", err
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (b MysqlBackend) GetPrepareSymbol() string {
	return "?"
}

// Create db/schema if necessary
func (b MysqlBackend) CreateSchema(ctx context.Context, db *sql.DB) error {
	return execAll(ctx, db, `
CREATE TABLE IF NOT EXISTS users (
	user_id VARCHAR(255) PRIMARY KEY,
	email VARCHAR(255) NOT NULL DEFAULT '',
	display_name VARCHAR(255) NOT NULL DEFAULT '',
	first_name VARCHAR(255) NOT NULL DEFAULT '',
	last_name VARCHAR(255) NOT NULL DEFAULT '',
	creation_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	passbcrypt VARCHAR(255) NOT NULL DEFAULT '',
	passsha256 VARCHAR(64) NOT NULL DEFAULT '',
	otpsecret VARCHAR(255) NOT NULL DEFAULT '',
	disabled BOOLEAN NOT NULL DEFAULT FALSE)
`)
}

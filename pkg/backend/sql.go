package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/GeertJohan/yubigo"
	"github.com/rs/zerolog"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
	"github.com/lightldap/lightldap/pkg/stats"
)

// SqlBackend is the dialect specific part of a database datastore.
type SqlBackend interface {
	// Name used by database/sql when loading the driver
	GetDriverName() string
	// Value of the db.system span attribute
	GetDBSystem() attribute.KeyValue
	// Rewrites the configured DSN into what the driver needs
	PrepareDSN(dsn string) (string, error)
	// Create db/schema if necessary
	CreateSchema(ctx context.Context, db *sql.DB) error
	// Placeholder for the single query argument
	GetPrepareSymbol() string
}

type databaseHandler struct {
	root        handler.BaseDN
	log         *zerolog.Logger
	tracer      trace.Tracer
	yubikeyAuth *yubigo.YubiAuth
	sqlBackend  SqlBackend
	db          *sql.DB
}

// NewDatabaseHandler opens the configured database through otelsql and makes
// sure the users table exists.
func NewDatabaseHandler(ctx context.Context, sqlBackend SqlBackend, opts ...Option) (handler.BackendHandler, error) {
	options := NewOptions(opts...)

	dsn, err := sqlBackend.PrepareDSN(options.Backend.Database)
	if err != nil {
		return nil, fmt.Errorf("invalid %s connection string: %w", sqlBackend.GetDriverName(), err)
	}

	db, err := otelsql.Open(sqlBackend.GetDriverName(), dsn,
		otelsql.WithAttributes(sqlBackend.GetDBSystem()),
		otelsql.WithDBName("lightldap"),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s database: %w", sqlBackend.GetDriverName(), err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to communicate with %s database: %w", sqlBackend.GetDriverName(), err)
	}

	if err := sqlBackend.CreateSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to create schema: %w", err)
	}

	options.Logger.Info().Str("driver", sqlBackend.GetDriverName()).Msg("Database datastore ready")

	return &databaseHandler{
		root:        options.Root,
		log:         options.Logger,
		tracer:      options.Tracer,
		yubikeyAuth: options.YubiAuth,
		sqlBackend:  sqlBackend,
		db:          db,
	}, nil
}

func (h *databaseHandler) findUser(ctx context.Context, id string) (config.User, error) {
	ctx, span := h.tracer.Start(ctx, "backend.databaseHandler.findUser")
	defer span.End()

	var user config.User
	err := h.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT user_id, passbcrypt, passsha256, otpsecret, disabled FROM users WHERE user_id = %s`, h.sqlBackend.GetPrepareSymbol()),
		id,
	).Scan(&user.Name, &user.PassBcrypt, &user.PassSHA256, &user.OTPSecret, &user.Disabled)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return user, fmt.Errorf("%w: %s", ErrUserNotFound, id)
	case err != nil:
		return user, err
	}
	return user, nil
}

func (h *databaseHandler) Bind(ctx context.Context, req handler.BindRequest) error {
	ctx, span := h.tracer.Start(ctx, "backend.databaseHandler.Bind")
	defer span.End()

	stats.Backend.Add("sql_bind_reqs", 1)

	id, err := userIDFromBindName(req.Name, h.root)
	if err != nil {
		return err
	}

	user, err := h.findUser(ctx, id)
	if err != nil {
		return err
	}
	if user.Disabled {
		return fmt.Errorf("%w: %s", ErrUserDisabled, id)
	}

	if err := checkPassword(user, req.Password, h.yubikeyAuth); err != nil {
		stats.Backend.Add("sql_bind_failures", 1)
		return err
	}
	return nil
}

func (h *databaseHandler) ListUsers(ctx context.Context, req handler.ListUsersRequest) ([]handler.User, error) {
	ctx, span := h.tracer.Start(ctx, "backend.databaseHandler.ListUsers")
	defer span.End()

	stats.Backend.Add("sql_list_reqs", 1)

	rows, err := h.db.QueryContext(ctx,
		`SELECT user_id, email, display_name, first_name, last_name, creation_date FROM users ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]handler.User, 0)
	for rows.Next() {
		var u handler.User
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.FirstName, &u.LastName, &u.CreationDate); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("users", len(users)))
	return users, nil
}

// Close releases the connection pool.
func (h *databaseHandler) Close() error {
	return h.db.Close()
}

func execAll(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, s := range statements {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

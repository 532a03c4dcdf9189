package backend

import (
	"context"
	"fmt"
	"strings"

	"github.com/GeertJohan/yubigo"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
	"github.com/lightldap/lightldap/pkg/stats"
)

type configHandler struct {
	root        handler.BaseDN
	users       func() []config.User
	log         *zerolog.Logger
	tracer      trace.Tracer
	yubikeyAuth *yubigo.YubiAuth
}

// NewConfigHandler serves the [[users]] of the configuration file.
func NewConfigHandler(opts ...Option) handler.BackendHandler {
	options := NewOptions(opts...)

	return &configHandler{
		root:        options.Root,
		users:       options.Users,
		log:         options.Logger,
		tracer:      options.Tracer,
		yubikeyAuth: options.YubiAuth,
	}
}

func (h *configHandler) findUser(id string) (config.User, bool) {
	for _, u := range h.users() {
		if strings.EqualFold(u.Name, id) {
			return u, true
		}
	}
	return config.User{}, false
}

func (h *configHandler) Bind(ctx context.Context, req handler.BindRequest) error {
	_, span := h.tracer.Start(ctx, "backend.configHandler.Bind")
	defer span.End()

	stats.Backend.Add("config_bind_reqs", 1)

	id, err := userIDFromBindName(req.Name, h.root)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("user", id))

	user, found := h.findUser(id)
	if !found {
		return fmt.Errorf("%w: %s", ErrUserNotFound, id)
	}
	if user.Disabled {
		return fmt.Errorf("%w: %s", ErrUserDisabled, id)
	}

	if err := checkPassword(user, req.Password, h.yubikeyAuth); err != nil {
		stats.Backend.Add("config_bind_failures", 1)
		return err
	}

	h.log.Debug().Str("user", id).Msg("config bind success")
	return nil
}

func (h *configHandler) ListUsers(ctx context.Context, req handler.ListUsersRequest) ([]handler.User, error) {
	_, span := h.tracer.Start(ctx, "backend.configHandler.ListUsers")
	defer span.End()

	stats.Backend.Add("config_list_reqs", 1)

	configured := h.users()
	users := make([]handler.User, 0, len(configured))
	for _, u := range configured {
		users = append(users, userFromConfig(u))
	}
	span.SetAttributes(attribute.Int("users", len(users)))

	return users, nil
}

func userFromConfig(u config.User) handler.User {
	display := u.DisplayName
	if display == "" {
		display = strings.TrimSpace(u.GivenName + " " + u.SN)
	}
	if display == "" {
		display = u.Name
	}

	return handler.User{
		ID:           u.Name,
		Email:        u.Mail,
		DisplayName:  display,
		FirstName:    u.GivenName,
		LastName:     u.SN,
		CreationDate: u.CreationDate,
	}
}

package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/glauth/ldap"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lightldap/lightldap/internal/monitoring"
	"github.com/lightldap/lightldap/pkg/stats"
)

// LdapHandler answers the operations of a single connection. It is not safe
// for concurrent use: operations of one connection are handled in order.
type LdapHandler struct {
	backend BackendHandler
	root    BaseDN

	bound   bool
	boundDN string

	log     *zerolog.Logger
	tracer  trace.Tracer
	monitor monitoring.MonitorInterface
}

// NewLdapHandler creates an unauthenticated handler.
func NewLdapHandler(opts ...Option) *LdapHandler {
	options := newOptions(opts...)

	return &LdapHandler{
		backend: options.Backend,
		root:    options.Root,
		log:     options.Logger,
		tracer:  options.Tracer,
		monitor: options.Monitor,
	}
}

// BoundDN returns the principal of the last successful bind.
func (h *LdapHandler) BoundDN() (string, bool) {
	return h.boundDN, h.bound
}

func (h *LdapHandler) observe(operation string, code ldap.LDAPResultCode, start time.Time) {
	if h.monitor == nil {
		return
	}
	if err := h.monitor.SetResponseTimeMetric(
		map[string]string{"operation": operation, "status": fmt.Sprintf("%v", code)},
		time.Since(start).Seconds(),
	); err != nil {
		h.log.Error().Err(err).Msg("failed to set metric")
	}
}

// Bind checks the credentials against the backend. The reason for a failure
// is logged but never returned to the client.
func (h *LdapHandler) Bind(ctx context.Context, req SimpleBindRequest) LdapMsg {
	ctx, span := h.tracer.Start(ctx, "handler.LdapHandler.Bind")
	defer span.End()

	var result ldap.LDAPResultCode = ldap.LDAPResultInvalidCredentials
	start := time.Now()
	defer func() { h.observe("bind", result, start) }()

	stats.Frontend.Add("bind_reqs", 1)
	h.log.Debug().Str("binddn", req.DN).Msg("Bind request")

	if err := h.backend.Bind(ctx, BindRequest{Name: req.DN, Password: req.Password}); err != nil {
		stats.Frontend.Add("bind_errors", 1)
		h.log.Debug().Str("binddn", req.DN).Err(err).Msg("invalid creds")
		return req.GenInvalidCred()
	}

	h.bound = true
	h.boundDN = req.DN
	result = ldap.LDAPResultSuccess
	span.SetAttributes(attribute.String("binddn", req.DN))

	stats.Frontend.Add("bind_successes", 1)
	h.log.Debug().Str("binddn", req.DN).Msg("bind success")
	return req.GenSuccess()
}

// Search returns one entry per backend user followed by a done message, or a
// single done message carrying an error.
func (h *LdapHandler) Search(ctx context.Context, req SearchRequest) []LdapMsg {
	ctx, span := h.tracer.Start(ctx, "handler.LdapHandler.Search")
	defer span.End()

	var result ldap.LDAPResultCode = ldap.LDAPResultSuccess
	start := time.Now()
	defer func() { h.observe("search", result, start) }()

	stats.Frontend.Add("search_reqs", 1)
	h.log.Debug().Str("basedn", req.Base).Strs("attributes", req.Attributes).Str("filter", req.Filter).Msg("Search request")

	base, err := ParseDistinguishedName(req.Base)
	if err != nil {
		result = ldap.LDAPResultOperationsError
		stats.Frontend.Add("search_errors", 1)
		return []LdapMsg{req.GenError(result, fmt.Sprintf("Could not parse base DN: %q", req.Base))}
	}

	if !IsSubtree(base, h.root.DN) {
		h.log.Debug().Str("basedn", req.Base).Str("root", h.root.Text).Msg("search base outside of directory")
		stats.Frontend.Add("search_successes", 1)
		return []LdapMsg{req.GenSuccess()}
	}

	users, err := h.backend.ListUsers(ctx, ListUsersRequest{})
	if err != nil {
		result = ldap.LDAPResultOther
		stats.Frontend.Add("search_errors", 1)
		h.log.Debug().Str("basedn", req.Base).Err(err).Msg("could not list users")
		return []LdapMsg{req.GenError(result, fmt.Sprintf("Error during search for %q: %s", req.Base, err))}
	}
	span.SetAttributes(attribute.Int("users", len(users)))

	msgs := make([]LdapMsg, 0, len(users)+1)
	for _, u := range users {
		entry, err := MakeSearchResultEntry(u, h.root.Text, req.Attributes)
		if err != nil {
			result = ldap.LDAPResultNoSuchAttribute
			stats.Frontend.Add("search_errors", 1)
			return []LdapMsg{req.GenError(result, err.Error())}
		}
		msgs = append(msgs, req.GenResultEntry(entry))
	}

	stats.Frontend.Add("search_successes", 1)
	return append(msgs, req.GenSuccess())
}

// Whoami reports the bound principal.
func (h *LdapHandler) Whoami(ctx context.Context, req WhoamiRequest) LdapMsg {
	_, span := h.tracer.Start(ctx, "handler.LdapHandler.Whoami")
	defer span.End()

	start := time.Now()
	stats.Frontend.Add("whoami_reqs", 1)

	if !h.bound {
		stats.Frontend.Add("whoami_errors", 1)
		h.observe("whoami", ldap.LDAPResultOperationsError, start)
		return req.GenOpError("Unauthenticated")
	}

	stats.Frontend.Add("whoami_successes", 1)
	h.observe("whoami", ldap.LDAPResultSuccess, start)
	return req.GenSuccess("dn: " + h.boundDN)
}

// HandleLdapMessage dispatches one decoded operation. It returns false only
// for unbind, which has no response.
func (h *LdapHandler) HandleLdapMessage(ctx context.Context, op ServerOp) ([]LdapMsg, bool) {
	switch req := op.(type) {
	case SimpleBindRequest:
		return []LdapMsg{h.Bind(ctx, req)}, true
	case SearchRequest:
		return h.Search(ctx, req), true
	case WhoamiRequest:
		return []LdapMsg{h.Whoami(ctx, req)}, true
	case UnbindRequest:
		stats.Frontend.Add("unbind_reqs", 1)
		return nil, false
	default:
		h.log.Error().Str("op", fmt.Sprintf("%T", op)).Msg("unexpected operation")
		return nil, false
	}
}

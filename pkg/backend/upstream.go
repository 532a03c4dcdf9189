package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/glauth/ldap"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/lightldap/lightldap/internal/tls"
	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
	"github.com/lightldap/lightldap/pkg/stats"
)

const createTimestampLayout = "20060102150405Z"

var ErrNoHealthyServers = errors.New("no healthy servers")

type upstreamStatus int

const (
	Down upstreamStatus = iota
	Up
)

type upstreamServer struct {
	Scheme   string
	Hostname string
	Port     int
	Status   upstreamStatus
	Ping     time.Duration
}

func (s upstreamServer) address() string {
	return net.JoinHostPort(s.Hostname, strconv.Itoa(s.Port))
}

type upstreamHandler struct {
	backend config.Backend
	root    handler.BaseDN
	log     *zerolog.Logger
	tracer  trace.Tracer

	lock    sync.Mutex
	servers []upstreamServer
}

// NewUpstreamHandler forwards binds to another LDAP server and lists users
// through a service account. It fails when none of the servers answers.
func NewUpstreamHandler(ctx context.Context, opts ...Option) (handler.BackendHandler, error) {
	options := NewOptions(opts...)

	h := &upstreamHandler{
		backend: options.Backend,
		root:    options.Root,
		log:     options.Logger,
		tracer:  options.Tracer,
	}

	for _, u := range options.Backend.Servers {
		s, err := parseURL(u)
		if err != nil {
			return nil, fmt.Errorf("could not parse server url %s: %w", u, err)
		}
		h.servers = append(h.servers, s)
	}

	if err := h.ping(); err != nil {
		return nil, err
	}
	go h.monitorServers(ctx)

	return h, nil
}

// monitorServers re-checks server health every minute until ctx is done.
func (h *upstreamHandler) monitorServers(ctx context.Context) {
	ticker := time.NewTicker(60 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.ping(); err != nil {
				h.log.Error().Err(err).Msg("upstream health check failed")
			}
		}
	}
}

func (h *upstreamHandler) dial(s upstreamServer) (*ldap.Conn, error) {
	var l *ldap.Conn
	var err error

	switch s.Scheme {
	case "ldaps":
		tlsCfg, cerr := tls.ClientConfig(s.Hostname, nil, h.backend.Insecure)
		if cerr != nil {
			return nil, cerr
		}
		l, err = ldap.DialTLS("tcp", s.address(), tlsCfg)
	default:
		l, err = ldap.Dial("tcp", s.address())
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (h *upstreamHandler) ping() error {
	h.lock.Lock()
	servers := append([]upstreamServer(nil), h.servers...)
	h.lock.Unlock()

	healthy := false
	for k, s := range servers {
		start := time.Now()
		l, err := h.dial(s)
		if err != nil {
			h.log.Warn().Str("hostname", s.Hostname).Int("port", s.Port).Err(err).Msg("server ping failed")
			servers[k].Ping = 0
			servers[k].Status = Down
			continue
		}
		l.Close()
		healthy = true
		servers[k].Ping = time.Since(start)
		servers[k].Status = Up
	}

	h.lock.Lock()
	h.servers = servers
	h.lock.Unlock()

	h.log.Debug().Interface("servers", servers).Msg("Server health")
	if b, err := json.Marshal(servers); err == nil {
		stats.Backend.Set("servers", stats.Stringer(string(b)))
	}

	if !healthy {
		return ErrNoHealthyServers
	}
	return nil
}

func (h *upstreamHandler) getBestServer() (upstreamServer, error) {
	h.lock.Lock()
	defer h.lock.Unlock()

	return bestServer(h.servers)
}

func bestServer(servers []upstreamServer) (upstreamServer, error) {
	var favorite upstreamServer
	found := false
	for _, s := range servers {
		if s.Status != Up {
			continue
		}
		if !found || s.Ping < favorite.Ping {
			favorite = s
			found = true
		}
	}
	if !found {
		return upstreamServer{}, ErrNoHealthyServers
	}
	return favorite, nil
}

func (h *upstreamHandler) connect(ctx context.Context) (*ldap.Conn, error) {
	_, span := h.tracer.Start(ctx, "backend.upstreamHandler.connect")
	defer span.End()

	s, err := h.getBestServer()
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("server", s.address()))

	l, err := h.dial(s)
	if err != nil {
		// mark it down so the next operation picks another server
		h.lock.Lock()
		for k := range h.servers {
			if h.servers[k].address() == s.address() {
				h.servers[k].Status = Down
			}
		}
		h.lock.Unlock()
		return nil, err
	}
	return l, nil
}

// upstreamBindDN turns a bare user id into a DN under the base.
func (h *upstreamHandler) upstreamBindDN(name string) string {
	if strings.Contains(name, "=") {
		return name
	}
	return fmt.Sprintf("uid=%s,%s", name, h.root.Text)
}

func (h *upstreamHandler) Bind(ctx context.Context, req handler.BindRequest) error {
	ctx, span := h.tracer.Start(ctx, "backend.upstreamHandler.Bind")
	defer span.End()

	stats.Backend.Add("upstream_bind_reqs", 1)

	if req.Name == "" || req.Password == "" {
		// an empty password would be an unauthenticated bind upstream
		return fmt.Errorf("%w: empty name or password", ErrInvalidCredentials)
	}

	l, err := h.connect(ctx)
	if err != nil {
		return err
	}
	defer l.Close()

	if err := l.Bind(h.upstreamBindDN(req.Name), req.Password); err != nil {
		stats.Backend.Add("upstream_bind_failures", 1)
		return fmt.Errorf("%w: %s", ErrInvalidCredentials, err)
	}
	return nil
}

func (h *upstreamHandler) ListUsers(ctx context.Context, req handler.ListUsersRequest) ([]handler.User, error) {
	ctx, span := h.tracer.Start(ctx, "backend.upstreamHandler.ListUsers")
	defer span.End()

	stats.Backend.Add("upstream_list_reqs", 1)

	l, err := h.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer l.Close()

	if h.backend.BindDN != "" {
		if err := l.Bind(h.backend.BindDN, h.backend.BindPassword); err != nil {
			return nil, fmt.Errorf("service account bind failed: %w", err)
		}
	}

	search := ldap.NewSearchRequest(
		h.root.Text,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0,
		0,
		false,
		h.backend.UserFilter,
		[]string{"uid", "mail", "cn", "givenName", "sn", "createTimestamp"},
		nil,
	)

	sr, err := l.Search(search)
	if err != nil {
		return nil, err
	}

	users := make([]handler.User, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		users = append(users, userFromEntry(e))
	}
	span.SetAttributes(attribute.Int("users", len(users)))

	return users, nil
}

func userFromEntry(e *ldap.Entry) handler.User {
	u := handler.User{
		ID:          e.GetAttributeValue("uid"),
		Email:       e.GetAttributeValue("mail"),
		DisplayName: e.GetAttributeValue("cn"),
		FirstName:   e.GetAttributeValue("givenName"),
		LastName:    e.GetAttributeValue("sn"),
	}
	if u.ID == "" {
		u.ID = u.DisplayName
	}
	if ts := e.GetAttributeValue("createTimestamp"); ts != "" {
		if t, err := time.Parse(createTimestampLayout, ts); err == nil {
			u.CreationDate = t
		}
	}
	return u
}

func parseURL(ldapurl string) (upstreamServer, error) {
	u, err := url.Parse(ldapurl)
	if err != nil {
		return upstreamServer{}, err
	}

	var port int
	switch u.Scheme {
	case "ldaps":
		port = 636
	case "ldap":
		port = 389
	default:
		return upstreamServer{}, fmt.Errorf("unknown LDAP scheme: %s", u.Scheme)
	}

	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return upstreamServer{}, err
		}
	}
	if u.Hostname() == "" {
		return upstreamServer{}, fmt.Errorf("missing hostname in %s", ldapurl)
	}

	return upstreamServer{Scheme: u.Scheme, Hostname: u.Hostname(), Port: port}, nil
}

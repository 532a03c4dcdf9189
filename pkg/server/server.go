package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"plugin"
	"sync"

	"github.com/GeertJohan/yubigo"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lightldap/lightldap/internal/monitoring"
	_tls "github.com/lightldap/lightldap/internal/tls"
	"github.com/lightldap/lightldap/pkg/backend"
	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
)

type LdapSvc struct {
	c        *config.Config
	root     handler.BaseDN
	yubiAuth *yubigo.YubiAuth
	backend  handler.BackendHandler
	limiter  *bindLimiter

	ldapstls *tls.Config
	monitor  monitoring.MonitorInterface
	watcher  *monitoring.LDAPMonitorWatcher
	tracer   trace.Tracer
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	listeners map[net.Listener]struct{}
	conns     map[net.Conn]struct{}

	statsMu sync.Mutex
	stats   *monitoring.LDAPStats
}

func NewServer(opts ...Option) (*LdapSvc, error) {
	options := newOptions(opts...)

	if options.Config == nil {
		return nil, errors.New("no configuration provided")
	}

	s := LdapSvc{
		log:       options.Logger,
		c:         options.Config,
		monitor:   options.Monitor,
		tracer:    options.Tracer,
		backend:   options.Backend,
		listeners: make(map[net.Listener]struct{}),
		conns:     make(map[net.Conn]struct{}),
	}
	if s.tracer == nil {
		s.tracer = noop.NewTracerProvider().Tracer("server")
	}
	s.ctx, s.cancel = context.WithCancel(options.Context)

	var err error

	s.root, err = handler.ParseBaseDN(s.c.Backend.BaseDN)
	if err != nil {
		return nil, err
	}

	if len(s.c.YubikeyClientID) > 0 && len(s.c.YubikeySecret) > 0 {
		s.yubiAuth, err = yubigo.NewYubiAuth(s.c.YubikeyClientID, s.c.YubikeySecret)

		if err != nil {
			return nil, errors.New("Yubikey Auth failed")
		}
	}

	if s.backend == nil {
		s.backend, err = s.newBackend()
		if err != nil {
			return nil, err
		}
		s.log.Info().Str("datastore", s.c.Backend.Datastore).Str("basedn", s.root.Text).Msg("Loading backend")
	}

	s.limiter = newBindLimiter(s.c.Behaviors)

	if tlsConfig := options.LDAPSTLSConfig; tlsConfig != nil {
		s.ldapstls = tlsConfig
		s.log.Info().
			Str("tls.min_version", tls.VersionName(tlsConfig.MinVersion)).
			Str("tls.max_version", tls.VersionName(tlsConfig.MaxVersion)).
			Interface("tls.cipher_suites", _tls.CipherSuiteNames(tlsConfig.CipherSuites)).
			Msg("enabling LDAPS")
	}

	if s.monitor != nil {
		s.watcher = monitoring.NewLDAPMonitorWatcher(&s, s.monitor, &s.log)
	}

	return &s, nil
}

func (s *LdapSvc) newBackend() (handler.BackendHandler, error) {
	common := []backend.Option{
		backend.Backend(s.c.Backend),
		backend.Root(s.root),
		backend.Logger(&s.log),
		backend.Tracer(s.tracer),
		backend.YubiAuth(s.yubiAuth),
	}

	switch s.c.Backend.Datastore {
	case "config":
		return backend.NewConfigHandler(append(common,
			// read through the pointer so a reloaded configuration is seen
			backend.Users(func() []config.User { return s.c.Users }),
		)...), nil
	case "ldap":
		return backend.NewUpstreamHandler(s.ctx, common...)
	case "postgres":
		return backend.NewPostgresHandler(s.ctx, common...)
	case "mysql":
		return backend.NewMysqlHandler(s.ctx, common...)
	case "plugin":
		plug, err := plugin.Open(s.c.Backend.Plugin)
		if err != nil {
			return nil, fmt.Errorf("unable to load specified backend plugin: %s", err)
		}
		nph, err := plug.Lookup(s.c.Backend.PluginHandler)
		if err != nil {
			return nil, fmt.Errorf("unable to find '%s' in loaded backend plugin", s.c.Backend.PluginHandler)
		}
		initFunc, ok := nph.(func(...backend.Option) handler.BackendHandler)
		if !ok {
			return nil, errors.New("loaded backend plugin lacks a proper constructor function")
		}
		return initFunc(common...), nil
	default:
		return nil, fmt.Errorf("unsupported backend %s - must be one of %v", s.c.Backend.Datastore, config.Datastores)
	}
}

// ListenAndServe listens on the TCP network address s.c.LDAP.Listen
func (s *LdapSvc) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.c.LDAP.Listen)
	if err != nil {
		return err
	}
	s.log.Info().Str("address", ln.Addr().String()).Msg("LDAP server listening")
	return s.Serve(ln)
}

// ListenAndServeTLS listens on the TCP network address s.c.LDAPS.Listen
func (s *LdapSvc) ListenAndServeTLS() error {
	if s.ldapstls == nil {
		return errors.New("no TLS configuration for LDAPS")
	}
	listener, err := tls.Listen("tcp", s.c.LDAPS.Listen, s.ldapstls)
	if err != nil {
		return err
	}
	s.log.Info().Str("address", listener.Addr().String()).Msg("LDAPS server listening")
	return s.Serve(listener)
}

// Serve accepts connections on ln until Shutdown is called. It returns nil
// after a shutdown and the accept error otherwise.
func (s *LdapSvc) Serve(ln net.Listener) error {
	if !s.track(ln) {
		ln.Close()
		return nil
	}
	defer s.untrack(ln)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			s.log.Error().Err(err).Msg("Error accepting network connection")
			return err
		}

		if !s.remember(conn) {
			conn.Close()
			return nil
		}
		s.countConn()
		go s.handleConnection(conn)
	}
}

// Shutdown closes the listeners and every open connection, then waits for
// the connection handlers to return.
func (s *LdapSvc) Shutdown() {
	s.cancel()

	s.mu.Lock()
	for ln := range s.listeners {
		ln.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	if closer, ok := s.backend.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			s.log.Error().Err(err).Msg("could not close backend")
		}
	}
}

func (s *LdapSvc) track(ln net.Listener) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.listeners[ln] = struct{}{}
	return true
}

func (s *LdapSvc) untrack(ln net.Listener) {
	s.mu.Lock()
	delete(s.listeners, ln)
	s.mu.Unlock()
}

func (s *LdapSvc) remember(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx.Err() != nil {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *LdapSvc) forget(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// SetStats turns the operation counters read by the monitor watcher on or off.
func (s *LdapSvc) SetStats(enable bool) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if enable {
		s.stats = &monitoring.LDAPStats{}
	} else {
		s.stats = nil
	}
}

func (s *LdapSvc) GetStats() monitoring.LDAPStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.stats == nil {
		return monitoring.LDAPStats{}
	}
	return *s.stats
}

func (s *LdapSvc) countConn() {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.stats != nil {
		s.stats.Conns++
	}
}

func (s *LdapSvc) countOp(op handler.ServerOp) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	if s.stats == nil {
		return
	}
	switch op.(type) {
	case handler.SimpleBindRequest:
		s.stats.Binds++
	case handler.SearchRequest:
		s.stats.Searches++
	case handler.UnbindRequest:
		s.stats.Unbinds++
	case handler.WhoamiRequest:
		s.stats.Whoamis++
	}
}

package backend

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/glauth/ldap"
	"github.com/google/go-cmp/cmp"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		want    upstreamServer
		wantErr bool
	}{
		{url: "ldap://ldap.example.com", want: upstreamServer{Scheme: "ldap", Hostname: "ldap.example.com", Port: 389}},
		{url: "ldaps://ldap.example.com", want: upstreamServer{Scheme: "ldaps", Hostname: "ldap.example.com", Port: 636}},
		{url: "ldap://10.0.0.1:3893", want: upstreamServer{Scheme: "ldap", Hostname: "10.0.0.1", Port: 3893}},
		{url: "ldaps://[::1]:10636", want: upstreamServer{Scheme: "ldaps", Hostname: "::1", Port: 10636}},
		{url: "http://ldap.example.com", wantErr: true},
		{url: "ldap://ldap.example.com:port", wantErr: true},
		{url: "ldap://", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := parseURL(tt.url)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("parseURL (-want +got):\n%s", diff)
			}
		})
	}
}

func TestServerAddress(t *testing.T) {
	for _, tt := range []struct {
		server upstreamServer
		want   string
	}{
		{upstreamServer{Hostname: "ldap.example.com", Port: 389}, "ldap.example.com:389"},
		{upstreamServer{Hostname: "::1", Port: 10636}, "[::1]:10636"},
	} {
		if got := tt.server.address(); got != tt.want {
			t.Errorf("address() = %q, want %q", got, tt.want)
		}
	}
}

func TestBestServer(t *testing.T) {
	servers := []upstreamServer{
		{Hostname: "down", Status: Down},
		{Hostname: "slow", Status: Up, Ping: 30 * time.Millisecond},
		{Hostname: "fast", Status: Up, Ping: 2 * time.Millisecond},
	}
	got, err := bestServer(servers)
	if err != nil {
		t.Fatal(err)
	}
	if got.Hostname != "fast" {
		t.Errorf("expected the fastest healthy server, got %s", got.Hostname)
	}

	if _, err := bestServer(servers[:1]); !errors.Is(err, ErrNoHealthyServers) {
		t.Errorf("expected ErrNoHealthyServers, got %v", err)
	}
}

func TestUserFromEntry(t *testing.T) {
	entry := &ldap.Entry{
		DN: "uid=bob,ou=people,dc=example,dc=com",
		Attributes: []*ldap.EntryAttribute{
			{Name: "uid", Values: []string{"bob"}},
			{Name: "mail", Values: []string{"bob@example.com"}},
			{Name: "cn", Values: []string{"Bob Smith"}},
			{Name: "givenName", Values: []string{"Bob"}},
			{Name: "sn", Values: []string{"Smith"}},
			{Name: "createTimestamp", Values: []string{"20230501120000Z"}},
		},
	}

	want := handler.User{
		ID:           "bob",
		Email:        "bob@example.com",
		DisplayName:  "Bob Smith",
		FirstName:    "Bob",
		LastName:     "Smith",
		CreationDate: time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if diff := cmp.Diff(want, userFromEntry(entry)); diff != "" {
		t.Errorf("userFromEntry (-want +got):\n%s", diff)
	}

	// no uid: fall back to cn, bad timestamp is ignored
	entry = &ldap.Entry{
		DN: "cn=svc,dc=example,dc=com",
		Attributes: []*ldap.EntryAttribute{
			{Name: "cn", Values: []string{"svc"}},
			{Name: "createTimestamp", Values: []string{"yesterday"}},
		},
	}
	if diff := cmp.Diff(handler.User{ID: "svc", DisplayName: "svc"}, userFromEntry(entry)); diff != "" {
		t.Errorf("userFromEntry (-want +got):\n%s", diff)
	}
}

func TestUpstreamBindDN(t *testing.T) {
	h := &upstreamHandler{root: testRoot(t)}

	if got := h.upstreamBindDN("bob"); got != "uid=bob,dc=example,dc=com" {
		t.Errorf("got %q", got)
	}
	if got := h.upstreamBindDN("cn=bob,ou=people,dc=example,dc=com"); got != "cn=bob,ou=people,dc=example,dc=com" {
		t.Errorf("DNs must be forwarded untouched, got %q", got)
	}
}

func TestUpstreamRejectsEmptyCredentials(t *testing.T) {
	h := &upstreamHandler{root: testRoot(t), tracer: NewOptions().Tracer}

	for _, req := range []handler.BindRequest{
		{Name: "bob"},
		{Password: "dogood"},
	} {
		if err := h.Bind(context.Background(), req); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("%+v: expected ErrInvalidCredentials, got %v", req, err)
		}
	}
}

func TestNewUpstreamHandlerHealth(t *testing.T) {
	up, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer up.Close()
	go func() {
		for {
			conn, err := up.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	gone, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	goneURL := "ldap://" + gone.Addr().String()
	gone.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t.Run("one reachable server", func(t *testing.T) {
		h, err := NewUpstreamHandler(ctx,
			Backend(config.Backend{Servers: []string{goneURL, "ldap://" + up.Addr().String()}}),
			Root(testRoot(t)),
		)
		if err != nil {
			t.Fatal(err)
		}
		best, err := h.(*upstreamHandler).getBestServer()
		if err != nil {
			t.Fatal(err)
		}
		if best.address() != up.Addr().String() {
			t.Errorf("expected %s to be picked, got %s", up.Addr(), best.address())
		}
	})

	t.Run("no reachable server", func(t *testing.T) {
		_, err := NewUpstreamHandler(ctx, Backend(config.Backend{Servers: []string{goneURL}}), Root(testRoot(t)))
		if !errors.Is(err, ErrNoHealthyServers) {
			t.Errorf("expected ErrNoHealthyServers, got %v", err)
		}
	})

	t.Run("bad url", func(t *testing.T) {
		if _, err := NewUpstreamHandler(ctx, Backend(config.Backend{Servers: []string{"ftp://x"}})); err == nil {
			t.Error("expected an error for a bad server url")
		}
	})
}

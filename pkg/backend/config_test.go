package backend

import (
	"context"
	"encoding/hex"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
)

// sha256 of "dogood"
const dogood = "6478579e37aff45f013e14eeb30b3cc56c72ccdc310123bcdf53e0333e3f416a"

func bcryptHex(t *testing.T, pw string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return hex.EncodeToString(hash)
}

func newTestConfigHandler(t *testing.T, users []config.User) handler.BackendHandler {
	t.Helper()
	return NewConfigHandler(
		Root(testRoot(t)),
		Users(func() []config.User { return users }),
	)
}

func TestConfigBind(t *testing.T) {
	key, err := totp.Generate(totp.GenerateOpts{Issuer: "lightldap", AccountName: "otpuser"})
	if err != nil {
		t.Fatal(err)
	}

	users := []config.User{
		{Name: "bob", PassSHA256: dogood},
		{Name: "carol", PassBcrypt: bcryptHex(t, "s3cret")},
		{Name: "dave", PassSHA256: dogood, PassAppSHA256: []string{sha256Hex("app-one")}, PassAppBcrypt: []string{bcryptHex(t, "app-two")}},
		{Name: "otpuser", PassSHA256: dogood, OTPSecret: key.Secret()},
		{Name: "eve", PassSHA256: dogood, Disabled: true},
		{Name: "nopass"},
	}
	h := newTestConfigHandler(t, users)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		bindName string
		password string
		wantErr  error
	}{
		{"sha256", "bob", "dogood", nil},
		{"sha256 mismatch", "bob", "dobad", ErrInvalidCredentials},
		{"dn form", "cn=bob,dc=example,dc=com", "dogood", nil},
		{"uid dn form", "uid=bob,dc=example,dc=com", "dogood", nil},
		{"name is case insensitive", "BOB", "dogood", nil},
		{"dn outside of base", "cn=bob,dc=other,dc=com", "dogood", ErrInvalidBindName},
		{"bcrypt", "carol", "s3cret", nil},
		{"bcrypt mismatch", "carol", "secret", ErrInvalidCredentials},
		{"app password sha256", "dave", "app-one", nil},
		{"app password bcrypt", "dave", "app-two", nil},
		{"main password with app passwords", "dave", "dogood", nil},
		{"totp appended to password", "otpuser", "dogood" + code, nil},
		{"totp missing", "otpuser", "dogood", ErrInvalidCredentials},
		{"totp wrong", "otpuser", "dogood000000", ErrInvalidCredentials},
		{"disabled", "eve", "dogood", ErrUserDisabled},
		{"no password hash", "nopass", "", ErrInvalidCredentials},
		{"unknown user", "mallory", "dogood", ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.Bind(context.Background(), handler.BindRequest{Name: tt.bindName, Password: tt.password})
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestConfigListUsers(t *testing.T) {
	created := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)
	users := []config.User{
		{Name: "zed", Mail: "zed@example.com", DisplayName: "Zed", CreationDate: created},
		{Name: "amy", GivenName: "Amy", SN: "Pond"},
		{Name: "solo"},
	}
	h := newTestConfigHandler(t, users)

	got, err := h.ListUsers(context.Background(), handler.ListUsersRequest{})
	if err != nil {
		t.Fatal(err)
	}

	// configuration order, not sorted
	want := []handler.User{
		{ID: "zed", Email: "zed@example.com", DisplayName: "Zed", CreationDate: created},
		{ID: "amy", DisplayName: "Amy Pond", FirstName: "Amy", LastName: "Pond"},
		{ID: "solo", DisplayName: "solo"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListUsers (-want +got):\n%s", diff)
	}
}

func TestConfigSeesReloadedUsers(t *testing.T) {
	cfg := &config.Config{Users: []config.User{{Name: "bob", PassSHA256: dogood}}}
	h := NewConfigHandler(
		Root(testRoot(t)),
		Users(func() []config.User { return cfg.Users }),
	)

	if err := h.Bind(context.Background(), handler.BindRequest{Name: "jim", Password: "dogood"}); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected jim to be unknown, got %v", err)
	}

	cfg.Users = append(cfg.Users, config.User{Name: "jim", PassSHA256: dogood})

	if err := h.Bind(context.Background(), handler.BindRequest{Name: "jim", Password: "dogood"}); err != nil {
		t.Fatalf("expected jim to bind after reload, got %v", err)
	}
	users, err := h.ListUsers(context.Background(), handler.ListUsersRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Errorf("expected 2 users after reload, got %d", len(users))
	}
}

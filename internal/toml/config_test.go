package toml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/lightldap/lightldap/pkg/config"
)

const simpleConfig = `
debug = true

[ldap]
  enabled = true
  listen = "127.0.0.1:3893"

[ldaps]
  enabled = false

[backend]
  datastore = "config"
  basedn = "dc=example,dc=com"

[behaviors]
  limitfailedbinds = true
  numberoffailedbinds = 5

[[users]]
  name = "hackers"
  mail = "hackers@example.com"
  givenname = "Hack"
  sn = "Ers"
  passsha256 = "6478579e37aff45f013e14eeb30b3cc56c72ccdc310123bcdf53e0333e3f416a"
  creationdate = 2023-04-05T06:07:08Z
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func load(location string) (*config.Config, error) {
	logger := zerolog.Nop()
	return NewConfig(location, map[string]interface{}{}, &logger)
}

func TestNewConfigFromFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "simple.cfg", simpleConfig)

	cfg, err := load(path)
	if err != nil {
		t.Fatal(err)
	}

	if !cfg.Debug || !cfg.LDAP.Enabled || cfg.LDAPS.Enabled {
		t.Errorf("unexpected listener settings %+v %+v", cfg.LDAP, cfg.LDAPS)
	}
	if cfg.Backend.BaseDN != "dc=example,dc=com" || cfg.Backend.Datastore != "config" {
		t.Errorf("unexpected backend %+v", cfg.Backend)
	}
	if cfg.Behaviors.NumberOfFailedBinds != 5 || cfg.Behaviors.BlockFailedBindsFor != 60 {
		t.Errorf("unexpected behaviors %+v", cfg.Behaviors)
	}
	if cfg.Backend.UserFilter != "(objectClass=person)" {
		t.Errorf("unexpected default user filter %q", cfg.Backend.UserFilter)
	}
	if len(cfg.Users) != 1 || cfg.Users[0].GivenName != "Hack" {
		t.Fatalf("unexpected users %+v", cfg.Users)
	}
	if !cfg.Users[0].CreationDate.Equal(time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)) {
		t.Errorf("unexpected creation date %v", cfg.Users[0].CreationDate)
	}
	if cfg.ConfigFile != path {
		t.Errorf("ConfigFile = %q", cfg.ConfigFile)
	}
}

func TestNewConfigFlagsOverrideFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "simple.cfg", simpleConfig)
	logger := zerolog.Nop()

	cfg, err := NewConfig(path, map[string]interface{}{"--ldap": "0.0.0.0:389"}, &logger)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LDAP.Listen != "0.0.0.0:389" {
		t.Errorf("listen = %q", cfg.LDAP.Listen)
	}
}

func TestNewConfigRejects(t *testing.T) {
	tests := map[string]struct {
		from, to string
		message  string
	}{
		"bad base dn":     {`basedn = "dc=example,dc=com"`, `basedn = "example.com"`, "invalid value for basedn"},
		"bad datastore":   {`datastore = "config"`, `datastore = "owncloud"`, "invalid datastore owncloud"},
		"no listener":     {`enabled = true`, `enabled = false`, "no server configuration found"},
		"ldaps w/o cert":  {"[ldaps]\n  enabled = false", "[ldaps]\n  enabled = true\n  listen = \":636\"", "no certificate or key"},
		"unknown key":     {"debug = true", "debug = true\nverbose = true", "unknown configuration keys"},
		"sql without dsn": {`datastore = "config"`, `datastore = "postgres"`, "connection string"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			content := strings.Replace(simpleConfig, tt.from, tt.to, 1)
			path := writeFile(t, t.TempDir(), "bad.cfg", content)

			_, err := load(path)
			if err == nil || !strings.Contains(err.Error(), tt.message) {
				t.Fatalf("expected error containing %q, got %v", tt.message, err)
			}
		})
	}
}

func TestNewConfigMissingFile(t *testing.T) {
	if _, err := load(filepath.Join(t.TempDir(), "nope.cfg")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestNewConfigFromDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "00-server.cfg", `
[ldap]
  enabled = true
  listen = "127.0.0.1:3893"
[ldaps]
  enabled = false
[backend]
  datastore = "config"
  basedn = "dc=example,dc=com"
[[users]]
  name = "alice"
`)
	writeFile(t, dir, "10-users.cfg", `
[[users]]
  name = "bob"
[backend]
  userfilter = "(objectClass=inetOrgPerson)"
`)
	writeFile(t, dir, "README.md", "not a config file")

	cfg, err := load(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(cfg.Users) != 2 || cfg.Users[0].Name != "alice" || cfg.Users[1].Name != "bob" {
		t.Fatalf("unexpected users %+v", cfg.Users)
	}
	if cfg.Backend.UserFilter != "(objectClass=inetOrgPerson)" || cfg.Backend.BaseDN != "dc=example,dc=com" {
		t.Errorf("unexpected backend %+v", cfg.Backend)
	}
}

func TestNewConfigFromDirectoryConflict(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cfg", "debug = true\n")
	writeFile(t, dir, "b.cfg", "debug = false\n")

	_, err := load(dir)
	if err == nil || !strings.Contains(err.Error(), "set more than once") {
		t.Fatalf("expected a merge conflict, got %v", err)
	}
}

func TestDuplicateUsers(t *testing.T) {
	content := simpleConfig + "\n[[users]]\n  name = \"hackers\"\n"
	path := writeFile(t, t.TempDir(), "dup.cfg", content)

	if _, err := load(path); err == nil || !strings.Contains(err.Error(), "duplicate user") {
		t.Fatalf("expected duplicate user error, got %v", err)
	}
}

func TestSplitS3URL(t *testing.T) {
	bucket, key, err := splitS3URL("s3://configs/lightldap/prod.cfg")
	if err != nil || bucket != "configs" || key != "lightldap/prod.cfg" {
		t.Fatalf("got %q %q %v", bucket, key, err)
	}

	for _, bad := range []string{"s3://configs", "s3:///key", "s3://bucket/"} {
		if _, _, err := splitS3URL(bad); err == nil {
			t.Errorf("splitS3URL(%q) should fail", bad)
		}
	}
}

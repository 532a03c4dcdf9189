package toml

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/GeertJohan/yubigo"
	"github.com/rs/zerolog"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
)

// NewConfig reads the config location (file, directory or s3:// url) and
// applies the cli flags on top of it.
func NewConfig(location string, args map[string]interface{}, logger *zerolog.Logger) (*config.Config, error) {
	cfg, err := parseConfig(location, args, logger)
	if err != nil {
		return nil, err
	}
	cfg.ConfigFile = location

	handleArgs(cfg, args)
	setDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	if len(cfg.YubikeyClientID) > 0 && len(cfg.YubikeySecret) > 0 {
		if _, err := yubigo.NewYubiAuth(cfg.YubikeyClientID, cfg.YubikeySecret); err != nil {
			return nil, fmt.Errorf("invalid yubikey credentials: %w", err)
		}
	}

	return cfg, nil
}

func parseConfig(location string, args map[string]interface{}, logger *zerolog.Logger) (*config.Config, error) {
	if strings.HasPrefix(location, "s3://") {
		data, err := fetchS3(location, args)
		if err != nil {
			return nil, err
		}
		return decode(data)
	}

	fInfo, err := os.Stat(location)
	if err != nil {
		return nil, fmt.Errorf("non-existent config path: %s", location)
	}

	if !fInfo.IsDir() {
		data, err := os.ReadFile(location)
		if err != nil {
			return nil, err
		}
		return decode(data)
	}

	return parseDirectory(location, logger)
}

func decode(data []byte) (*config.Config, error) {
	cfg := new(config.Config)
	cfg.LDAPS.Enabled = true

	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown configuration keys: %v", undecoded)
	}
	return cfg, nil
}

// parseDirectory merges every *.cfg and *.toml file of a directory in name
// order. Tables are merged key by key, arrays of tables ([[users]]) are
// concatenated and a scalar set twice is an error.
func parseDirectory(dir string, logger *zerolog.Logger) (*config.Config, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".cfg" && ext != ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	merged := make(map[string]interface{})
	for _, name := range names {
		bs, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		fragment := make(map[string]interface{})
		if err := toml.Unmarshal(bs, &fragment); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if err := mergeTables(merged, fragment, ""); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		logger.Debug().Str("file", name).Msg("merged config fragment")
	}

	buf := new(bytes.Buffer)
	if err := toml.NewEncoder(buf).Encode(merged); err != nil {
		return nil, err
	}
	return decode(buf.Bytes())
}

func mergeTables(dst, src map[string]interface{}, path string) error {
	for k, v := range src {
		key := strings.TrimPrefix(path+"."+k, ".")

		existing, ok := dst[k]
		if !ok {
			dst[k] = v
			continue
		}

		switch s := v.(type) {
		case map[string]interface{}:
			d, ok := existing.(map[string]interface{})
			if !ok {
				return fmt.Errorf("config key %s is both a table and a value", key)
			}
			if err := mergeTables(d, s, key); err != nil {
				return err
			}
		case []map[string]interface{}:
			d, ok := existing.([]map[string]interface{})
			if !ok {
				return fmt.Errorf("config key %s is both an array of tables and a value", key)
			}
			dst[k] = append(d, s...)
		default:
			return fmt.Errorf("config key %s is set more than once", key)
		}
	}
	return nil
}

func handleArgs(cfg *config.Config, args map[string]interface{}) {
	if ldap, ok := args["--ldap"].(string); ok && ldap != "" {
		cfg.LDAP.Enabled = true
		cfg.LDAP.Listen = ldap
	}

	if ldaps, ok := args["--ldaps"].(string); ok && ldaps != "" {
		cfg.LDAPS.Enabled = true
		cfg.LDAPS.Listen = ldaps
	}
	if ldapsCert, ok := args["--ldaps-cert"].(string); ok && ldapsCert != "" {
		cfg.LDAPS.Cert = ldapsCert
	}
	if ldapsKey, ok := args["--ldaps-key"].(string); ok && ldapsKey != "" {
		cfg.LDAPS.Key = ldapsKey
	}
}

func setDefaults(cfg *config.Config) {
	if cfg.Backend.Datastore == "" {
		cfg.Backend.Datastore = "config"
	}
	if cfg.Backend.UserFilter == "" {
		cfg.Backend.UserFilter = "(objectClass=person)"
	}

	b := &cfg.Behaviors
	if b.NumberOfFailedBinds == 0 {
		b.NumberOfFailedBinds = 3
	}
	if b.PeriodOfFailedBinds == 0 {
		b.PeriodOfFailedBinds = 10
	}
	if b.BlockFailedBindsFor == 0 {
		b.BlockFailedBindsFor = 60
	}
	if b.PruneSourceTableEvery == 0 {
		b.PruneSourceTableEvery = 600
	}
	if b.PruneSourcesOlderThan == 0 {
		b.PruneSourcesOlderThan = 600
	}
}

func validateConfig(cfg *config.Config) error {
	if !cfg.LDAP.Enabled && !cfg.LDAPS.Enabled {
		return fmt.Errorf("no server configuration found: please provide either LDAP or LDAPS configuration")
	}

	if cfg.LDAPS.Enabled {
		hasFiles := len(cfg.LDAPS.Cert) > 0 && len(cfg.LDAPS.Key) > 0
		hasPEM := len(cfg.LDAPS.CertPEM) > 0 && len(cfg.LDAPS.KeyPEM) > 0
		if !hasFiles && !hasPEM {
			return fmt.Errorf("LDAPS was enabled but no certificate or key were specified: please disable LDAPS or use the 'cert' and 'key' options")
		}
		if len(cfg.LDAPS.Listen) == 0 {
			return fmt.Errorf("no LDAPS bind address was specified: please disable LDAPS or use the 'listen' option")
		}
	}

	if cfg.LDAP.Enabled && len(cfg.LDAP.Listen) == 0 {
		return fmt.Errorf("no LDAP bind address was specified: please disable LDAP or use the 'listen' option")
	}

	if cfg.API.Enabled && cfg.API.TLS && (cfg.API.Cert == "" || cfg.API.Key == "") {
		return fmt.Errorf("API TLS was enabled but no certificate or key were specified")
	}

	if _, err := handler.ParseBaseDN(cfg.Backend.BaseDN); err != nil {
		return err
	}

	valid := false
	for _, d := range config.Datastores {
		if cfg.Backend.Datastore == d {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid datastore %s - must be one of %s", cfg.Backend.Datastore, strings.Join(config.Datastores, ", "))
	}

	switch cfg.Backend.Datastore {
	case "ldap":
		if len(cfg.Backend.Servers) == 0 {
			return fmt.Errorf("the ldap datastore needs at least one entry in 'servers'")
		}
	case "postgres", "mysql":
		if cfg.Backend.Database == "" {
			return fmt.Errorf("the %s datastore needs a 'database' connection string", cfg.Backend.Datastore)
		}
	case "plugin":
		if cfg.Backend.Plugin == "" || cfg.Backend.PluginHandler == "" {
			return fmt.Errorf("the plugin datastore needs both 'plugin' and 'pluginhandler'")
		}
	}

	seen := make(map[string]bool, len(cfg.Users))
	for _, u := range cfg.Users {
		if u.Name == "" {
			return fmt.Errorf("every [[users]] entry needs a name")
		}
		if seen[u.Name] {
			return fmt.Errorf("duplicate user %s", u.Name)
		}
		seen[u.Name] = true
	}

	return nil
}

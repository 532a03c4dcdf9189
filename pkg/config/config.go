package config

import "time"

// config file
type (
	Backend struct {
		BaseDN        string
		Datastore     string
		Servers       []string // For ldap datastore only
		Insecure      bool     // For ldap datastore only
		BindDN        string   // Service account used to list users, ldap datastore only
		BindPassword  string
		UserFilter    string
		Database      string // DSN, for postgres and mysql datastores
		Plugin        string // Path to plugin library, for plugin datastore only
		PluginHandler string // Name of plugin's constructor
	}

	LDAP struct {
		Enabled bool
		Listen  string
	}

	LDAPS struct {
		Enabled   bool
		Listen    string
		Cert      string
		Key       string
		CertPEM   string
		KeyPEM    string
		LegacyTLS bool
	}

	API struct {
		Cert      string
		Enabled   bool
		Internals bool
		Key       string
		Listen    string
		TLS       bool
	}

	// Durations are read as a number of seconds.
	Behaviors struct {
		LimitFailedBinds      bool
		NumberOfFailedBinds   int
		PeriodOfFailedBinds   time.Duration
		BlockFailedBindsFor   time.Duration
		PruneSourceTableEvery time.Duration
		PruneSourcesOlderThan time.Duration
	}

	User struct {
		Name          string
		DisplayName   string
		Mail          string
		GivenName     string
		SN            string
		PassSHA256    string
		PassBcrypt    string
		PassAppSHA256 []string
		PassAppBcrypt []string
		OTPSecret     string
		Yubikey       string
		Disabled      bool
		CreationDate  time.Time
	}

	Tracing struct {
		Enabled      bool
		GRPCEndpoint string
		HTTPEndpoint string
	}

	Config struct {
		API                API
		Backend            Backend
		Behaviors          Behaviors
		Debug              bool
		Syslog             bool
		StructuredLog      bool
		WatchConfig        bool
		YubikeyClientID    string
		YubikeySecret      string
		LDAP               LDAP
		LDAPS              LDAPS
		Users              []User
		Tracing            Tracing
		ConfigFile         string
		AwsAccessKeyId     string
		AwsSecretAccessKey string
		AwsRegion          string
	}
)

// Datastores lists the accepted values of backend.datastore.
var Datastores = []string{"config", "ldap", "postgres", "mysql", "plugin"}

package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	docopt "github.com/docopt/docopt-go"
	"github.com/fsnotify/fsnotify"
	"github.com/jinzhu/copier"
	"github.com/rs/zerolog"

	"github.com/lightldap/lightldap/internal/monitoring"
	_tls "github.com/lightldap/lightldap/internal/tls"
	"github.com/lightldap/lightldap/internal/toml"
	"github.com/lightldap/lightldap/internal/tracing"
	"github.com/lightldap/lightldap/internal/version"
	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/frontend"
	"github.com/lightldap/lightldap/pkg/logging"
	"github.com/lightldap/lightldap/pkg/server"
	"github.com/lightldap/lightldap/pkg/stats"
)

var usage = `lightldap: a read-only LDAP directory of users

Usage:
  lightldap [options] -c <file|s3 url>
  lightldap -h --help
  lightldap --version

Options:
  -c, --config <file>       Config file or directory.
  -K <aws_key_id>           AWS Key ID.
  -S <aws_secret_key>       AWS Secret Key.
  -r <aws_region>           AWS Region [default: us-east-1].
  --aws_endpoint_url <url>  Custom S3 endpoint.
  --ldap <address>          Listen address for the LDAP server.
  --ldaps <address>         Listen address for the LDAPS server.
  --ldaps-cert <cert-file>  Path to cert file for the LDAPS server.
  --ldaps-key <key-file>    Path to key file for the LDAPS server.
  --check-config            Check configuration file and exit.
  -h, --help                Show this screen.
  --version                 Show version.
`

var (
	log  zerolog.Logger
	args map[string]interface{}

	activeConfig = &config.Config{}
)

func main() {
	var err error
	if args, err = parseArgs(os.Args[1:]); err != nil {
		fmt.Println("Could not parse command-line arguments")
		fmt.Println(err)
		os.Exit(1)
	}
	checkConfig := args["--check-config"] == true

	nop := zerolog.Nop()
	cfg, err := toml.NewConfig(getConfigLocation(), args, &nop)
	if err != nil {
		fmt.Println("Configuration file error")
		fmt.Println(err)
		os.Exit(1)
	}

	if checkConfig {
		fmt.Println("Config file seems ok")
		return
	}

	if err := copier.Copy(activeConfig, cfg); err != nil {
		fmt.Println("Could not load configuration")
		fmt.Println(err)
		os.Exit(1)
	}

	log = logging.InitLogging(activeConfig.Debug, activeConfig.Syslog, activeConfig.StructuredLog)

	if cfg.Debug {
		log.Info().Msg("Debugging enabled")
	}
	if cfg.Syslog {
		log.Info().Msg("Syslog enabled")
	}

	log.Info().Str("version", version.Version).Msg("AP start")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := startService(ctx); err != nil {
		log.Error().Err(err).Msg("could not run server")
		os.Exit(1)
	}

	log.Info().Msg("AP exit")
}

// startService runs the LDAP listeners and the web API until ctx is done or
// a listener fails.
func startService(ctx context.Context) error {
	stats.General.Set("version", stats.Stringer(version.Version))

	monitor := monitoring.NewMonitor(&log)
	tracer := tracing.NewTracer(
		tracing.NewConfig(
			activeConfig.Tracing.Enabled,
			activeConfig.Tracing.GRPCEndpoint,
			activeConfig.Tracing.HTTPEndpoint,
			&log,
		),
	)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("could not flush traces")
		}
	}()

	var err error
	var ldapstlsConfig *tls.Config
	if c := activeConfig.LDAPS; c.Enabled {
		ldapstlsConfig, err = _tls.ServerConfig(c.Cert, c.Key, c.CertPEM, c.KeyPEM, c.LegacyTLS)
		if err != nil {
			return fmt.Errorf("unable to configure TLS for LDAPS: %w", err)
		}
	}

	s, err := server.NewServer(
		server.Logger(log),
		server.Config(activeConfig),
		server.LDAPSTLSConfig(ldapstlsConfig),
		server.Monitor(monitor),
		server.Tracer(tracer),
		server.Context(ctx),
	)
	if err != nil {
		return fmt.Errorf("could not create server: %w", err)
	}
	defer s.Shutdown()

	if activeConfig.API.Enabled {
		log.Info().Msg("Web API enabled")

		go frontend.RunAPI(
			frontend.Logger(log),
			frontend.Config(&activeConfig.API),
			frontend.Context(ctx),
			frontend.Status(serverStatus),
		)
	}

	startConfigWatcher(ctx)

	errs := make(chan error, 2)
	if activeConfig.LDAP.Enabled {
		go func() {
			if err := s.ListenAndServe(); err != nil {
				errs <- fmt.Errorf("could not start LDAP server: %w", err)
			}
		}()
	}
	if activeConfig.LDAPS.Enabled {
		go func() {
			if err := s.ListenAndServeTLS(); err != nil {
				errs <- fmt.Errorf("could not start LDAPS server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errs:
		return err
	}
}

func serverStatus() frontend.ServerStatus {
	st := frontend.ServerStatus{
		Version:   version.Version,
		BaseDN:    activeConfig.Backend.BaseDN,
		Datastore: activeConfig.Backend.Datastore,
	}
	if activeConfig.LDAP.Enabled {
		st.LDAP = activeConfig.LDAP.Listen
	}
	if activeConfig.LDAPS.Enabled {
		st.LDAPS = activeConfig.LDAPS.Listen
	}
	return st
}

func startConfigWatcher(ctx context.Context) {
	configFileLocation := getConfigLocation()
	if !activeConfig.WatchConfig || strings.HasPrefix(configFileLocation, "s3://") {
		return
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error().Err(err).Msg("could not start config-watcher")
		return
	}

	ticker := time.NewTicker(1 * time.Second)
	go func() {
		defer watcher.Close()
		defer ticker.Stop()

		isChanged, isRemoved := false, false
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-watcher.Events:
				log.Info().Str("e", event.Op.String()).Msg("watcher got event")
				if event.Op&fsnotify.Write == fsnotify.Write {
					isChanged = true
				} else if event.Op&fsnotify.Remove == fsnotify.Remove { // vim edit file with rename/remove
					isChanged, isRemoved = true, true
				} else if event.Op&fsnotify.Create == fsnotify.Create { // only when watching a directory
					isChanged = true
				}
			case err := <-watcher.Errors:
				log.Error().Err(err).Msg("watcher error")
			case <-ticker.C:
				// wakeup, try finding removed config
			}
			if _, err := os.Stat(configFileLocation); !os.IsNotExist(err) && (isRemoved || isChanged) {
				if isRemoved {
					log.Info().Str("file", configFileLocation).Msg("rewatching config")
					watcher.Add(configFileLocation) // overwrite
					isChanged, isRemoved = true, false
				}
				if isChanged {
					reloadConfig(configFileLocation)
					isChanged = false
				}
			}
		}
	}()

	if err := watcher.Add(configFileLocation); err != nil {
		log.Error().Err(err).Str("file", configFileLocation).Msg("could not watch config")
	}
}

// reloadConfig swaps in a new configuration. Listeners and the base DN keep
// their startup values; users are picked up by the next operation.
func reloadConfig(location string) {
	cfg, err := toml.NewConfig(location, args, &log)
	if err != nil {
		log.Info().Err(err).Msg("Could not reload config. Holding on to old config")
		return
	}
	if cfg.Backend.BaseDN != activeConfig.Backend.BaseDN {
		log.Warn().Str("basedn", cfg.Backend.BaseDN).Msg("basedn changes need a restart")
	}

	log.Info().Msg("Config was reloaded")
	if err := copier.Copy(activeConfig, cfg); err != nil {
		log.Info().Err(err).Msg("Could not save reloaded config. Holding on to old config")
	}
}

func parseArgs(argv []string) (map[string]interface{}, error) {
	return docopt.Parse(usage, argv, true, version.GetVersion(), false)
}

func getConfigLocation() string {
	location, _ := args["--config"].(string)
	return location
}

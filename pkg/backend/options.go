package backend

import (
	"github.com/GeertJohan/yubigo"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lightldap/lightldap/pkg/config"
	"github.com/lightldap/lightldap/pkg/handler"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Backend  config.Backend
	Root     handler.BaseDN
	Users    func() []config.User
	Logger   *zerolog.Logger
	Tracer   trace.Tracer
	YubiAuth *yubigo.YubiAuth
}

// NewOptions applies opts over the defaults. Plugins use it to read the
// options the server hands them.
func NewOptions(opts ...Option) Options {
	nop := zerolog.Nop()
	opt := Options{
		Logger: &nop,
		Tracer: noop.NewTracerProvider().Tracer("backend"),
		Users:  func() []config.User { return nil },
	}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// Backend is the [backend] section of the configuration.
func Backend(val config.Backend) Option {
	return func(o *Options) {
		o.Backend = val
	}
}

// Root is the parsed base DN bind names are resolved against.
func Root(val handler.BaseDN) Option {
	return func(o *Options) {
		o.Root = val
	}
}

// Users returns the current [[users]] list; it is called on every operation
// so a reloaded configuration is picked up.
func Users(val func() []config.User) Option {
	return func(o *Options) {
		o.Users = val
	}
}

// Logger provides a function to set the logger option.
func Logger(val *zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = val
	}
}

// Tracer provides a function to set the tracer option.
func Tracer(val trace.Tracer) Option {
	return func(o *Options) {
		o.Tracer = val
	}
}

// YubiAuth provides a function to set the yubiauth option.
func YubiAuth(val *yubigo.YubiAuth) Option {
	return func(o *Options) {
		o.YubiAuth = val
	}
}

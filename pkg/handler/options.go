package handler

import (
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/lightldap/lightldap/internal/monitoring"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Backend BackendHandler
	Root    BaseDN
	Logger  *zerolog.Logger
	Tracer  trace.Tracer
	Monitor monitoring.MonitorInterface
}

// newOptions initializes the available default options.
func newOptions(opts ...Option) Options {
	nop := zerolog.Nop()
	opt := Options{
		Logger: &nop,
		Tracer: noop.NewTracerProvider().Tracer("handler"),
	}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// Backend is the user store the handler answers from
func Backend(val BackendHandler) Option {
	return func(o *Options) {
		o.Backend = val
	}
}

// Root sets the directory root searches are scoped to.
func Root(val BaseDN) Option {
	return func(o *Options) {
		o.Root = val
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

// Monitor provides a function to set the monitor option.
func Monitor(val monitoring.MonitorInterface) Option {
	return func(o *Options) {
		o.Monitor = val
	}
}

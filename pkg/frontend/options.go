package frontend

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/lightldap/lightldap/pkg/config"
)

// Option defines a single option function.
type Option func(o *Options)

// Options defines the available options for this package.
type Options struct {
	Logger  zerolog.Logger
	Config  *config.API
	Context context.Context
	Status  StatusFunc
}

// newOptions initializes the available default options.
func newOptions(opts ...Option) Options {
	opt := Options{
		Logger:  zerolog.Nop(),
		Config:  new(config.API),
		Context: context.Background(),
	}

	for _, o := range opts {
		o(&opt)
	}

	return opt
}

// Logger provides a function to set the logger option.
func Logger(val zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = val
	}
}

// Config provides a function to set the config option.
func Config(val *config.API) Option {
	return func(o *Options) {
		o.Config = val
	}
}

// Context stops the API server when done.
func Context(val context.Context) Option {
	return func(o *Options) {
		o.Context = val
	}
}

// Status provides the payload of the /status endpoint.
func Status(val StatusFunc) Option {
	return func(o *Options) {
		o.Status = val
	}
}

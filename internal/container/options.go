package container

import (
	"context"
	"log/slog"
)

// Options configures a Container or RootContainer.
//
// Defaults:
// - Logger:  slog.Default()
// - Context: context.Background()
//
// Context is the parent of the contexts events are published with.

type Options struct {
	Logger  *slog.Logger
	Context context.Context
}

// Option mutates Options.

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Logger:  slog.Default(),
		Context: context.Background(),
	}
}

func WithLogger(l *slog.Logger) Option       { return func(o *Options) { o.Logger = l } }
func WithContext(ctx context.Context) Option { return func(o *Options) { o.Context = ctx } }

func buildOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Context == nil {
		o.Context = context.Background()
	}
	return o
}

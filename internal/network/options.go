package network

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Options configures layers and fetchers.
//
// Defaults:
// - Client:   http.DefaultClient
// - Dialer:   websocket.DefaultDialer
// - Timeout:  30s per request, applied when the context has no deadline
// - Validate: false
// - Logger:   slog.Default()
// - Context:  context.Background(), parent of every fetch
//
// All options are safe to leave zero-valued to use defaults.

type Options struct {
	Client  *http.Client
	Dialer  *websocket.Dialer
	Headers http.Header
	Timeout time.Duration
	// Validate parses printed queries before sending them.
	Validate bool
	Logger   *slog.Logger
	Context  context.Context
}

// Option mutates Options.

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Client:  http.DefaultClient,
		Dialer:  websocket.DefaultDialer,
		Headers: http.Header{},
		Timeout: 30 * time.Second,
		Logger:  slog.Default(),
		Context: context.Background(),
	}
}

func buildOptions(opts []Option) *Options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func WithHTTPClient(c *http.Client) Option   { return func(o *Options) { o.Client = c } }
func WithDialer(d *websocket.Dialer) Option  { return func(o *Options) { o.Dialer = d } }
func WithHeader(key, value string) Option    { return func(o *Options) { o.Headers.Add(key, value) } }
func WithTimeout(d time.Duration) Option     { return func(o *Options) { o.Timeout = d } }
func WithValidation(enable bool) Option      { return func(o *Options) { o.Validate = enable } }
func WithLogger(l *slog.Logger) Option       { return func(o *Options) { o.Logger = l } }
func WithContext(ctx context.Context) Option { return func(o *Options) { o.Context = ctx } }

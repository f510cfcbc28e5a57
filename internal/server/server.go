// Package server serves a GraphQL schema over HTTP and over websockets
// speaking graphql-transport-ws, so that the network layers have a real
// backend to talk to.
package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	eventbus "github.com/hanpama/genrelay/internal/eventbus"
	events "github.com/hanpama/genrelay/internal/events"
	executor "github.com/hanpama/genrelay/internal/executor"
	reqid "github.com/hanpama/genrelay/internal/reqid"
	schema "github.com/hanpama/genrelay/internal/schema"
)

// Handler is an http.Handler that serves a GraphQL endpoint. Websocket
// upgrade requests are handed to the graphql-transport-ws session loop.
type Handler struct {
	schema *schema.Schema
	exec   *executor.Executor
	opt    Options
}

// Options configures a Handler.
//
// Defaults:
// - Timeout:     10s per operation
// - InitTimeout: 10s for a websocket client to send connection_init
// - Logger:      slog.Default()
type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses.
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled and
	// websocket upgrades must come from the same host.
	CORS CORSOptions

	InitTimeout time.Duration
	Logger      *slog.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option     { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                     { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option        { return func(o *Options) { o.MaxBodyBytes = n } }
func WithInitTimeout(d time.Duration) Option { return func(o *Options) { o.InitTimeout = d } }
func WithLogger(l *slog.Logger) Option       { return func(o *Options) { o.Logger = l } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL handler resolving sch through runtime.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, InitTimeout: 10 * time.Second, Logger: slog.Default()}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{schema: sch, exec: executor.NewExecutor(runtime, sch), opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if websocket.IsWebSocketUpgrade(r) {
		h.serveWS(w, r)
		return
	}

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	req, batch, status, msg := parseRequest(r, h.opt.MaxBodyBytes)
	if msg != "" {
		writeJSON(w, status, errorResponse(msg), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	ctx, cancel, rid := h.operationContext(r.Context())
	defer cancel()
	w.Header().Set("X-Request-Id", strconv.FormatInt(rid, 10))

	if batch != nil {
		out := make([]specResult, len(batch))
		for i := range batch {
			out[i], _ = h.execute(ctx, "http", batch[i])
		}
		writeJSON(w, http.StatusOK, out, h.opt.Pretty)
		return
	}
	res, _ := h.execute(ctx, "http", req)
	writeJSON(w, http.StatusOK, res, h.opt.Pretty)
}

// operationContext applies the default timeout and a fresh request id.
func (h *Handler) operationContext(parent context.Context) (context.Context, context.CancelFunc, int64) {
	ctx, cancel := parent, context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
	}
	ctx, rid := reqid.NewContext(ctx)
	return ctx, cancel, rid
}

// execute validates and runs one request. requestError reports that the
// document failed to parse or validate and nothing was executed.
func (h *Handler) execute(ctx context.Context, transport string, req Request) (res specResult, requestError bool) {
	start := time.Now()
	var errs []error
	eventbus.Publish(ctx, events.OperationStart{Transport: transport, OperationName: req.OperationName, Query: req.Query})
	defer func() {
		eventbus.Publish(ctx, events.OperationFinish{
			Transport:     transport,
			OperationName: req.OperationName,
			Errors:        errs,
			Duration:      time.Since(start),
		})
	}()

	doc, gqlErrs := h.schema.ParseQuery(req.Query)
	if len(gqlErrs) > 0 {
		res.Errors = make([]specError, len(gqlErrs))
		for i, e := range gqlErrs {
			se := specError{Message: e.Message}
			for _, loc := range e.Locations {
				se.Locations = append(se.Locations, specLocation{Line: loc.Line, Column: loc.Column})
			}
			res.Errors[i] = se
			errs = append(errs, e)
		}
		return res, true
	}

	result := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	for _, e := range result.Errors {
		errs = append(errs, e)
	}
	if len(result.Errors) > 0 {
		h.opt.Logger.Debug("server: operation finished with errors", "operation", req.OperationName, "errors", len(result.Errors))
	}
	return toSpecResult(result), false
}

// ------------------ Request parsing ------------------

// Request is a GraphQL request body.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// parseRequest returns either a single request or a batch. A non-empty msg
// reports a malformed request answered with status.
func parseRequest(r *http.Request, maxBody int64) (req Request, batch []Request, status int, msg string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return req, nil, http.StatusBadRequest, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return req, nil, http.StatusBadRequest, "invalid 'variables' JSON"
			}
		}
		return Request{Query: q, Variables: vars, OperationName: r.URL.Query().Get("operationName")}, nil, 0, ""
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return req, nil, http.StatusUnsupportedMediaType, "unsupported Content-Type"
	}
	defer r.Body.Close()
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return req, nil, http.StatusBadRequest, "failed to read body"
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return req, nil, http.StatusRequestEntityTooLarge, "body too large"
	}

	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &batch); err != nil {
			return req, nil, http.StatusBadRequest, "invalid JSON"
		}
		if len(batch) == 0 {
			return req, nil, http.StatusBadRequest, "empty batch"
		}
		return req, batch, 0, ""
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, http.StatusBadRequest, "invalid JSON"
	}
	if req.Query == "" {
		return req, nil, http.StatusBadRequest, "missing 'query'"
	}
	return req, nil, 0, ""
}

// ------------------ Response formatting ------------------

type specLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type specError struct {
	Message    string         `json:"message"`
	Locations  []specLocation `json:"locations,omitempty"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type specResult struct {
	Data   any         `json:"data"`
	Errors []specError `json:"errors,omitempty"`
}

func errorResponse(message string) specResult {
	return specResult{Errors: []specError{{Message: message}}}
}

func toSpecResult(res *executor.ExecutionResult) specResult {
	out := specResult{Data: res.Data}
	if len(res.Errors) == 0 {
		return out
	}
	out.Errors = make([]specError, len(res.Errors))
	for i, e := range res.Errors {
		se := specError{Message: e.Message, Extensions: e.Extensions}
		if len(e.Path) > 0 {
			se.Path = make([]any, len(e.Path))
			for j, pe := range e.Path {
				se.Path[j] = pe
			}
		}
		out.Errors[i] = se
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" || !originAllowed(opts.AllowedOrigins, origin) {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func originAllowed(allowed []string, origin string) bool {
	return contains(allowed, "*") || contains(allowed, origin)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package config loads genrelay settings from HCL files.
//
//	endpoint  = "http://localhost:8080/graphql"
//	transport = "http"
//	timeout   = "10s"
//	headers   = { Authorization = "Bearer ..." }
//
//	serve {
//	  listen       = ":8080"
//	  cors_origins = ["http://localhost:3000"]
//	}
//
//	mock "factions" {
//	  argument = "empire"
//	  data     = { id = "idA", name = "Galactic Empire" }
//	}
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
)

// ErrInvalid reports a configuration value outside its allowed set.
var ErrInvalid = errors.New("config: invalid value")

// Transports understood by the network layer.
const (
	TransportHTTP = "http"
	TransportWS   = "ws"
	TransportMock = "mock"
)

// Config is the decoded configuration.
//
// Defaults:
// - Transport:  "mock" without an endpoint, "http" otherwise
// - LogLevel:   "info"
// - LogFormat:  "text"
// - Timeout:    30s
// - Listen:     ":8080"
//
// Empty OTelEndpoint disables tracing.

type Config struct {
	Endpoint     string
	Transport    string
	LogLevel     string
	LogFormat    string
	OTelEndpoint string
	Timeout      time.Duration
	Headers      map[string]string
	Mocks        []Mock

	// Listen and CORSOrigins configure the serve command.
	Listen      string
	CORSOrigins []string
}

// Mock is canned client-shaped data for one root call. A nil Argument
// stands for a call without an identifying argument.
type Mock struct {
	Field    string
	Argument any
	Data     map[string]any
}

type hclFile struct {
	Endpoint     string            `hcl:"endpoint,optional"`
	Transport    string            `hcl:"transport,optional"`
	LogLevel     string            `hcl:"log_level,optional"`
	LogFormat    string            `hcl:"log_format,optional"`
	OTelEndpoint string            `hcl:"otel_endpoint,optional"`
	Timeout      string            `hcl:"timeout,optional"`
	Headers      map[string]string `hcl:"headers,optional"`
	Serve        *hclServe         `hcl:"serve,block"`
	Mocks        []*hclMock        `hcl:"mock,block"`
}

type hclServe struct {
	Listen      string   `hcl:"listen,optional"`
	CORSOrigins []string `hcl:"cors_origins,optional"`
}

type hclMock struct {
	Field    string         `hcl:"field,label"`
	Argument hcl.Expression `hcl:"argument,optional"`
	Data     hcl.Expression `hcl:"data"`
}

func Default() *Config {
	return &Config{
		Transport: TransportMock,
		LogLevel:  "info",
		LogFormat: "text",
		Timeout:   30 * time.Second,
		Headers:   map[string]string{},
		Listen:    ":8080",
	}
}

// Load reads and decodes the HCL file at path.
func Load(path string) (*Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return Parse(src, path)
}

// Parse decodes HCL source. filename is used in diagnostics.
func Parse(src []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", filename, diags)
	}
	var raw hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", filename, diags)
	}

	cfg := Default()
	cfg.Endpoint = raw.Endpoint
	if raw.Endpoint != "" {
		cfg.Transport = TransportHTTP
	}
	if raw.Transport != "" {
		cfg.Transport = raw.Transport
	}
	if raw.LogLevel != "" {
		cfg.LogLevel = raw.LogLevel
	}
	if raw.LogFormat != "" {
		cfg.LogFormat = raw.LogFormat
	}
	cfg.OTelEndpoint = raw.OTelEndpoint
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("%w: timeout %q: %v", ErrInvalid, raw.Timeout, err)
		}
		cfg.Timeout = d
	}
	for k, v := range raw.Headers {
		cfg.Headers[k] = v
	}
	if raw.Serve != nil {
		if raw.Serve.Listen != "" {
			cfg.Listen = raw.Serve.Listen
		}
		cfg.CORSOrigins = raw.Serve.CORSOrigins
	}

	for _, m := range raw.Mocks {
		mock, err := decodeMock(m)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		cfg.Mocks = append(cfg.Mocks, mock)
	}
	return cfg, cfg.Validate()
}

func decodeMock(m *hclMock) (Mock, error) {
	out := Mock{Field: m.Field}
	if m.Argument != nil {
		v, diags := m.Argument.Value(nil)
		if diags.HasErrors() {
			return out, fmt.Errorf("mock %q argument: %w", m.Field, diags)
		}
		arg, err := ctyValueToInterface(v)
		if err != nil {
			return out, fmt.Errorf("mock %q argument: %w", m.Field, err)
		}
		out.Argument = arg
	}
	v, diags := m.Data.Value(nil)
	if diags.HasErrors() {
		return out, fmt.Errorf("mock %q data: %w", m.Field, diags)
	}
	data, err := ctyValueToInterface(v)
	if err != nil {
		return out, fmt.Errorf("mock %q data: %w", m.Field, err)
	}
	switch d := data.(type) {
	case nil:
	case map[string]any:
		out.Data = d
	default:
		return out, fmt.Errorf("%w: mock %q data must be an object, got %T", ErrInvalid, m.Field, data)
	}
	return out, nil
}

// Validate checks enumerated values and transport requirements.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportHTTP, TransportWS:
		if c.Endpoint == "" {
			return fmt.Errorf("%w: transport %q needs an endpoint", ErrInvalid, c.Transport)
		}
	case TransportMock:
	default:
		return fmt.Errorf("%w: transport %q", ErrInvalid, c.Transport)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	}
	return nil
}

// ctyValueToInterface converts an evaluated HCL value to plain Go data.
// Whole numbers become int so they compare equal to Go literals.
func ctyValueToInterface(val cty.Value) (any, error) {
	if !val.IsKnown() || val.IsNull() {
		return nil, nil
	}
	ty := val.Type()
	if ty.IsPrimitiveType() {
		switch ty {
		case cty.String:
			return val.AsString(), nil
		case cty.Number:
			bf := val.AsBigFloat()
			if bf.IsInt() {
				if i, acc := bf.Int64(); acc == 0 {
					return int(i), nil
				}
			}
			f, _ := bf.Float64()
			return f, nil
		case cty.Bool:
			return val.True(), nil
		}
		return nil, fmt.Errorf("unsupported primitive type: %s", ty.FriendlyName())
	}
	if ty.IsObjectType() || ty.IsMapType() {
		out := make(map[string]any, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			k, v := it.Element()
			item, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out[k.AsString()] = item
		}
		return out, nil
	}
	if ty.IsTupleType() || ty.IsListType() || ty.IsSetType() {
		out := make([]any, 0, val.LengthInt())
		for it := val.ElementIterator(); it.Next(); {
			_, v := it.Element()
			item, err := ctyValueToInterface(v)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported cty.Type for conversion: %s", ty.FriendlyName())
}

// Package network sends query sets to a GraphQL server and feeds the
// responses into a record cache. A Fetcher implements the container fetch
// interface over a pluggable Layer: HTTP, websocket or mock data.
package network

import (
	"context"
	"fmt"
	"time"

	eventbus "github.com/hanpama/genrelay/internal/eventbus"
	events "github.com/hanpama/genrelay/internal/events"
	language "github.com/hanpama/genrelay/internal/language"
	printer "github.com/hanpama/genrelay/internal/printer"
	query "github.com/hanpama/genrelay/internal/query"
	reqid "github.com/hanpama/genrelay/internal/reqid"
)

// Layer sends one root query and returns the server-shaped value of its root
// field.
type Layer interface {
	Send(ctx context.Context, root *query.Root) (any, error)
}

// graphqlRequest is the standard GraphQL request body.
type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []GraphQLError `json:"errors,omitempty"`
}

// exchange prints root, optionally validates it, applies the request
// timeout, and publishes request events around roundTrip.
func exchange(
	ctx context.Context,
	opts *Options,
	endpoint string,
	root *query.Root,
	roundTrip func(ctx context.Context, req graphqlRequest) (*graphqlResponse, int, error),
) (any, error) {
	printed, err := printer.Print(root)
	if err != nil {
		return nil, err
	}
	if opts.Validate {
		if err := language.ValidateQuery(printed.Text); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
	}
	if _, ok := ctx.Deadline(); !ok && opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	ctx, _ = reqid.NewContext(ctx)
	start := time.Now()
	status := 0
	eventbus.Publish(ctx, events.RequestStart{Name: root.Name, Endpoint: endpoint, Query: printed.Text})
	defer func() {
		eventbus.Publish(ctx, events.RequestFinish{
			Name:     root.Name,
			Endpoint: endpoint,
			Status:   status,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	var resp *graphqlResponse
	resp, status, err = roundTrip(ctx, graphqlRequest{Query: printed.Text, Variables: printed.Variables})
	if err != nil {
		return nil, err
	}
	if len(resp.Errors) > 0 {
		err = &ResponseError{Query: root.Name, Errors: resp.Errors}
		return nil, err
	}
	opts.Logger.Debug("network: response received", "query", root.Name, "endpoint", endpoint, "duration", time.Since(start))
	return resp.Data[root.FieldName], nil
}

package network

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	query "github.com/hanpama/genrelay/internal/query"
)

// HTTPLayer posts {"query","variables"} JSON to a GraphQL endpoint.
type HTTPLayer struct {
	endpoint string
	opts     *Options
}

func NewHTTPLayer(endpoint string, opts ...Option) *HTTPLayer {
	return &HTTPLayer{endpoint: endpoint, opts: buildOptions(opts)}
}

func (l *HTTPLayer) Send(ctx context.Context, root *query.Root) (any, error) {
	return exchange(ctx, l.opts, l.endpoint, root, l.post)
}

func (l *HTTPLayer) post(ctx context.Context, body graphqlRequest) (*graphqlResponse, int, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.endpoint, bytes.NewReader(buf))
	if err != nil {
		return nil, 0, err
	}
	for k, vs := range l.opts.Headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := l.opts.Client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	var out graphqlResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, resp.StatusCode, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
		}
		return nil, resp.StatusCode, fmt.Errorf("network: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && len(out.Errors) == 0 {
		return nil, resp.StatusCode, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode)
	}
	return &out, resp.StatusCode, nil
}

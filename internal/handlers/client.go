// Package handlers implements the typed service operations from spec §4.7:
// inference and vector-db calls translated into HTTP requests against a
// resolved service endpoint.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/endpoint"
)

// defaultHandlerTimeout is the deadline applied to handler operations absent
// an overriding context deadline (spec §5).
const defaultHandlerTimeout = 15 * time.Second

type httpCaller struct {
	resolver *endpoint.Resolver
	http     *http.Client
}

func newCaller(resolver *endpoint.Resolver) httpCaller {
	return httpCaller{resolver: resolver, http: &http.Client{Timeout: defaultHandlerTimeout}}
}

// do resolves svcID to an endpoint and issues an HTTP request against it,
// decoding a successful JSON response into out (if non-nil).
func (c httpCaller) do(ctx context.Context, svcID, method, path string, body, out any) error {
	ep, err := c.resolver.Resolve(ctx, svcID)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	url := fmt.Sprintf("http://%s%s", ep, path)
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return apierr.New(apierr.KindTimeout, "request to service timed out")
		}
		return apierr.Wrap(apierr.KindUpstreamFailure, fmt.Sprintf("request to %s failed", svcID), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return apierr.Upstream(resp.StatusCode, string(respBody))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return apierr.Wrap(apierr.KindUpstreamFailure, "malformed response body", err)
		}
	}
	return nil
}

// doText is like do but returns the raw response body instead of decoding
// it as JSON, for endpoints (e.g. /metrics) that return plain text.
func (c httpCaller) doText(ctx context.Context, svcID, method, path string) (string, error) {
	ep, err := c.resolver.Resolve(ctx, svcID)
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("http://%s%s", ep, path)
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", apierr.New(apierr.KindTimeout, "request to service timed out")
		}
		return "", apierr.Wrap(apierr.KindUpstreamFailure, fmt.Sprintf("request to %s failed", svcID), err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return "", apierr.Upstream(resp.StatusCode, string(respBody))
	}
	return string(respBody), nil
}

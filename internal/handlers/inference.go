package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/clusterinfer/orchestrator/internal/apierr"
	"github.com/clusterinfer/orchestrator/internal/endpoint"
	"github.com/clusterinfer/orchestrator/internal/jobclient"
)

const readinessRetryInterval = 1 * time.Second
const readinessMaxWait = 60 * time.Second

// InferenceHandler translates typed LLM-server operations into HTTP calls
// against a resolved service endpoint (spec §4.7).
type InferenceHandler struct {
	caller httpCaller
	jc     *jobclient.Client
}

func NewInferenceHandler(resolver *endpoint.Resolver, jc *jobclient.Client) *InferenceHandler {
	return &InferenceHandler{caller: newCaller(resolver), jc: jc}
}

// ListModels issues GET /v1/models.
func (h *InferenceHandler) ListModels(ctx context.Context, svcID string) (map[string]any, error) {
	var out map[string]any
	if err := h.caller.do(ctx, svcID, "GET", "/v1/models", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMetrics issues GET /metrics.
func (h *InferenceHandler) GetMetrics(ctx context.Context, svcID string) (string, error) {
	return h.caller.doText(ctx, svcID, "GET", "/metrics")
}

// Prompt issues POST /v1/completions or /v1/chat/completions depending on
// body shape (a "messages" key selects the chat variant), first ensuring
// the endpoint passes a readiness probe.
func (h *InferenceHandler) Prompt(ctx context.Context, svcID string, body map[string]any) (map[string]any, error) {
	if err := h.awaitReady(ctx, svcID); err != nil {
		return nil, err
	}

	path := "/v1/completions"
	if _, isChat := body["messages"]; isChat {
		path = "/v1/chat/completions"
	}

	var out map[string]any
	if err := h.caller.do(ctx, svcID, "POST", path, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// awaitReady probes GET /health (falling back to /v1/models) until it
// succeeds, retrying every second up to min(job's remaining time, 60s).
func (h *InferenceHandler) awaitReady(ctx context.Context, svcID string) error {
	deadline := time.Now().Add(readinessMaxWait)
	if h.jc != nil {
		if jobID, err := h.caller.resolver.SchedulerJobID(svcID); err == nil {
			if meta, err := h.jc.Status(ctx, jobID); err == nil {
				remaining := time.Until(meta.SubmitTime.Add(time.Duration(meta.TimeLimitMins) * time.Minute))
				if remaining > 0 && remaining < readinessMaxWait {
					deadline = time.Now().Add(remaining)
				}
			}
		}
	}

	var lastErr error
	for {
		if err := h.probe(ctx, svcID); err == nil {
			return nil
		} else {
			lastErr = err
		}

		if time.Now().After(deadline) {
			return apierr.Wrap(apierr.KindTimeout, "readiness probe did not succeed in time", lastErr)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readinessRetryInterval):
		}
	}
}

func (h *InferenceHandler) probe(ctx context.Context, svcID string) error {
	err := h.caller.do(ctx, svcID, "GET", "/health", nil, nil)
	if err == nil {
		return nil
	}
	if !isUpstreamNotFound(err) {
		return err
	}
	return h.caller.do(ctx, svcID, "GET", "/v1/models", nil, nil)
}

func isUpstreamNotFound(err error) bool {
	var apiErr *apierr.Error
	if apierr.As(err, &apiErr) {
		return apiErr.Kind == apierr.KindUpstreamFailure && apiErr.UpstreamStatus == 404
	}
	return strings.Contains(err.Error(), "404")
}

package handlers

import (
	"context"
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/endpoint"
)

// Distance is a vector-db similarity metric.
type Distance string

const (
	DistanceCosine Distance = "Cosine"
	DistanceEuclid Distance = "Euclid"
	DistanceDot    Distance = "Dot"
)

// Point is a single vector-db upsert entry.
type Point struct {
	ID      any            `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload,omitempty"`
}

// VectorDBHandler translates typed vector-store operations into HTTP calls
// against a resolved service endpoint (spec §4.7).
type VectorDBHandler struct {
	caller httpCaller
}

func NewVectorDBHandler(resolver *endpoint.Resolver) *VectorDBHandler {
	return &VectorDBHandler{caller: newCaller(resolver)}
}

func (h *VectorDBHandler) ListCollections(ctx context.Context, svcID string) (map[string]any, error) {
	var out map[string]any
	if err := h.caller.do(ctx, svcID, "GET", "/collections", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *VectorDBHandler) GetCollectionInfo(ctx context.Context, svcID, name string) (map[string]any, error) {
	var out map[string]any
	if err := h.caller.do(ctx, svcID, "GET", "/collections/"+name, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *VectorDBHandler) CreateCollection(ctx context.Context, svcID, name string, vectorSize int, distance Distance) error {
	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": string(distance),
		},
	}
	return h.caller.do(ctx, svcID, "PUT", "/collections/"+name, body, nil)
}

func (h *VectorDBHandler) DeleteCollection(ctx context.Context, svcID, name string) error {
	return h.caller.do(ctx, svcID, "DELETE", "/collections/"+name, nil, nil)
}

func (h *VectorDBHandler) UpsertPoints(ctx context.Context, svcID, name string, points []Point) error {
	body := map[string]any{"points": points}
	return h.caller.do(ctx, svcID, "PUT", fmt.Sprintf("/collections/%s/points", name), body, nil)
}

func (h *VectorDBHandler) SearchPoints(ctx context.Context, svcID, name string, queryVector []float32, limit int) ([]map[string]any, error) {
	body := map[string]any{
		"vector": queryVector,
		"limit":  limit,
	}
	var out struct {
		Result []map[string]any `json:"result"`
	}
	if err := h.caller.do(ctx, svcID, "POST", fmt.Sprintf("/collections/%s/points/search", name), body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

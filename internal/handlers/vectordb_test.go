package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clusterinfer/orchestrator/internal/endpoint"
	"github.com/clusterinfer/orchestrator/internal/registry"
)

func TestVectorDBListCollections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections", r.URL.Path)
		w.Write([]byte(`{"result":{"collections":[{"name":"docs"}]}}`))
	}))
	defer srv.Close()

	reg := registry.New()
	runningServiceAt(t, reg, "svc1", srv)
	h := NewVectorDBHandler(endpoint.New(reg, nil))

	out, err := h.ListCollections(context.Background(), "svc1")
	require.NoError(t, err)
	assert.NotNil(t, out["result"])
}

func TestVectorDBCreateCollectionSendsVectorParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs", r.URL.Path)
		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		vectors := body["vectors"].(map[string]any)
		assert.Equal(t, float64(768), vectors["size"])
		assert.Equal(t, "Cosine", vectors["distance"])
	}))
	defer srv.Close()

	reg := registry.New()
	runningServiceAt(t, reg, "svc1", srv)
	h := NewVectorDBHandler(endpoint.New(reg, nil))

	err := h.CreateCollection(context.Background(), "svc1", "docs", 768, DistanceCosine)
	require.NoError(t, err)
}

func TestVectorDBUpsertPoints(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/collections/docs/points", r.URL.Path)
	}))
	defer srv.Close()

	reg := registry.New()
	runningServiceAt(t, reg, "svc1", srv)
	h := NewVectorDBHandler(endpoint.New(reg, nil))

	err := h.UpsertPoints(context.Background(), "svc1", "docs", []Point{{ID: 1, Vector: []float32{0.1, 0.2}}})
	require.NoError(t, err)
}

func TestVectorDBSearchPointsReturnsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/docs/points/search", r.URL.Path)
		w.Write([]byte(`{"result":[{"id":1,"score":0.9}]}`))
	}))
	defer srv.Close()

	reg := registry.New()
	runningServiceAt(t, reg, "svc1", srv)
	h := NewVectorDBHandler(endpoint.New(reg, nil))

	out, err := h.SearchPoints(context.Background(), "svc1", "docs", []float32{0.1, 0.2}, 10)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, float64(1), out[0]["id"])
}

func TestVectorDBDeleteCollection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
	}))
	defer srv.Close()

	reg := registry.New()
	runningServiceAt(t, reg, "svc1", srv)
	h := NewVectorDBHandler(endpoint.New(reg, nil))

	err := h.DeleteCollection(context.Background(), "svc1", "docs")
	require.NoError(t, err)
}

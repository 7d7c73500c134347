package recipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/clusterinfer/orchestrator/internal/apierr"
)

func writeRecipe(t *testing.T, root, relPath string, spec Spec) {
	t.Helper()
	full := filepath.Join(root, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))

	data, err := yaml.Marshal(spec)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(full, data, 0o644))
}

func TestLoaderListAllAndLoad(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "inference/vllm-single-node.yaml", Spec{
		Name:     "vllm-single-node",
		Category: CategoryInference,
		Ports:    []int{8000},
		Resources: Resources{Nodes: 1, CPU: 8, MemoryGB: 64, GPU: 1, TimeLimitMinutes: 60},
	})

	loader, err := NewLoader(root, false)
	require.NoError(t, err)
	defer loader.Close()

	all := loader.ListAll()
	require.Len(t, all, 1)
	assert.Equal(t, "inference/vllm-single-node", all[0].ID)

	rec, err := loader.Load("inference/vllm-single-node")
	require.NoError(t, err)
	assert.Equal(t, CategoryInference, rec.Spec.Category)
}

func TestLoaderLoadUnknownRecipeFails(t *testing.T) {
	loader, err := NewLoader(t.TempDir(), false)
	require.NoError(t, err)
	defer loader.Close()

	_, err = loader.Load("inference/does-not-exist")
	require.Error(t, err)
	assert.Equal(t, apierr.KindRecipeNotFound, apierr.KindOf(err))
}

func TestLoaderGetRecipePort(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "vector-db/qdrant.yaml", Spec{
		Name:     "qdrant",
		Category: CategoryVectorDB,
		Ports:    []int{6333},
		Resources: Resources{Nodes: 1, CPU: 4, MemoryGB: 16, TimeLimitMinutes: 60},
	})

	loader, err := NewLoader(root, false)
	require.NoError(t, err)
	defer loader.Close()

	port, err := loader.GetRecipePort("vector-db/qdrant")
	require.NoError(t, err)
	assert.Equal(t, 6333, port)
}

func TestLoaderGetRecipePortFailsWithoutPorts(t *testing.T) {
	root := t.TempDir()
	writeRecipe(t, root, "simple/noop.yaml", Spec{
		Name:      "noop",
		Category:  CategorySimple,
		Resources: Resources{Nodes: 1, TimeLimitMinutes: 10},
	})

	loader, err := NewLoader(root, false)
	require.NoError(t, err)
	defer loader.Close()

	_, err = loader.GetRecipePort("simple/noop")
	require.Error(t, err)
}

func TestLoadThenMarshalRoundTrip(t *testing.T) {
	root := t.TempDir()
	original := Spec{
		Name:     "vllm-single-node",
		Category: CategoryInference,
		Image:    "vllm/vllm-openai:latest",
		Ports:    []int{8000},
		Environment: map[string]string{"MODEL_NAME": "meta-llama/Llama-3.1-8B-Instruct"},
		Resources: Resources{Nodes: 1, CPU: 8, MemoryGB: 64, GPU: 1, TimeLimitMinutes: 60},
	}
	writeRecipe(t, root, "inference/vllm-single-node.yaml", original)

	loader, err := NewLoader(root, false)
	require.NoError(t, err)
	defer loader.Close()

	rec, err := loader.Load("inference/vllm-single-node")
	require.NoError(t, err)
	assert.Equal(t, original, rec.Spec)

	out, err := Marshal(rec.Spec)
	require.NoError(t, err)

	var roundTripped Spec
	require.NoError(t, yaml.Unmarshal(out, &roundTripped))
	assert.Equal(t, rec.Spec, roundTripped)
}

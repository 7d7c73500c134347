package builder

import (
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// Registry maps (category, recipe name) to a script-building strategy. On
// deploy, a recipe-specific builder is used if registered; otherwise the
// category default applies (spec §4.3, §9: tagged lookup, not inheritance).
type Registry struct {
	byRecipe   map[string]Builder // "category/name" -> builder
	byCategory map[recipe.Category]Builder
}

// NewRegistry builds the default registry: one builder per category, plus
// the recipe-specialized overrides spec.md's supplemented features call for.
func NewRegistry() *Registry {
	r := &Registry{
		byRecipe: make(map[string]Builder),
		byCategory: map[recipe.Category]Builder{
			recipe.CategoryInference: InferenceBuilder{},
			recipe.CategoryVectorDB:  VectorDBBuilder{},
		},
	}

	r.Register("inference/vllm-tensor-parallel", TensorParallelBuilder{})
	r.Register("inference/vllm-replicas", ReplicaBuilder{})
	r.Register("vector-db/qdrant-persistent", PersistentVectorDBBuilder{})

	return r
}

// Register installs a recipe-specific builder, taking priority over the
// category default for that exact recipe ID.
func (r *Registry) Register(recipeID string, b Builder) {
	r.byRecipe[recipeID] = b
}

// Resolve returns the builder for (category, recipeID): the recipe-specific
// override if one is registered, else the category default.
func (r *Registry) Resolve(category recipe.Category, recipeID string) (Builder, error) {
	if b, ok := r.byRecipe[recipeID]; ok {
		return b, nil
	}
	if b, ok := r.byCategory[category]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("no builder registered for category %q (recipe %q)", category, recipeID)
}

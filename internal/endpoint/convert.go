package endpoint

import (
	"encoding/json"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// toSpec round-trips a service's stored JSON-shaped config map back into a
// recipe.Spec so the resolver can read its port fields.
func toSpec(cfg map[string]any) (recipe.Spec, error) {
	var spec recipe.Spec
	raw, err := json.Marshal(cfg)
	if err != nil {
		return spec, err
	}
	if err := json.Unmarshal(raw, &spec); err != nil {
		return spec, err
	}
	return spec, nil
}

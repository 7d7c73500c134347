package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/clusterinfer/orchestrator/internal/apierr"
)

// Merge applies a user override document onto a recipe's Spec, field by
// field: nested maps (environment, resources) merge key-by-key, scalar and
// array fields are replaced wholesale, and fields absent from overrides
// inherit the recipe's value. Overrides are expressed as the same JSON shape
// as Spec (camel/snake field names matching the `json` tags).
//
// The merge walks the override document with gjson and applies each leaf
// path onto the recipe's JSON projection with sjson, mirroring the teacher's
// own use of these libraries for targeted in-place JSON edits rather than a
// full unmarshal-mutate-marshal round trip.
func Merge(base Spec, overrides map[string]any) (DeploymentSpec, error) {
	if overrides == nil {
		overrides = map[string]any{}
	}
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return Spec{}, fmt.Errorf("marshal base recipe: %w", err)
	}

	overridesJSON, err := json.Marshal(overrides)
	if err != nil {
		return Spec{}, apierr.Wrap(apierr.KindValidation, "invalid override document", err)
	}

	merged := string(baseJSON)
	parsed := gjson.ParseBytes(overridesJSON)

	var walk func(prefix string, value gjson.Result) error
	walk = func(prefix string, value gjson.Result) error {
		if value.IsObject() {
			var walkErr error
			value.ForEach(func(key, val gjson.Result) bool {
				next := key.String()
				if prefix != "" {
					next = prefix + "." + next
				}
				if walkErr = walk(next, val); walkErr != nil {
					return false
				}
				return true
			})
			return walkErr
		}

		next, setErr := sjson.SetRaw(merged, prefix, value.Raw)
		if setErr != nil {
			return fmt.Errorf("apply override %s: %w", prefix, setErr)
		}
		merged = next
		return nil
	}

	if err := walk("", parsed); err != nil {
		return Spec{}, apierr.Wrap(apierr.KindValidation, "malformed deployment override", err)
	}

	merged, err = coerceEnvironmentToStrings(merged)
	if err != nil {
		return Spec{}, apierr.Wrap(apierr.KindValidation, "invalid environment override", err)
	}

	var out Spec
	if err := json.Unmarshal([]byte(merged), &out); err != nil {
		return Spec{}, apierr.Wrap(apierr.KindValidation, "malformed merged deployment spec", err)
	}

	if err := Validate(out); err != nil {
		return Spec{}, err
	}

	return out, nil
}

// coerceEnvironmentToStrings rewrites the merged document's "environment"
// object so every value is a JSON string, per spec §3 ("environment values
// coerced to string").
func coerceEnvironmentToStrings(mergedJSON string) (string, error) {
	env := gjson.Get(mergedJSON, "environment")
	if !env.Exists() || !env.IsObject() {
		return mergedJSON, nil
	}

	out := mergedJSON
	var walkErr error
	env.ForEach(func(key, val gjson.Result) bool {
		var strVal string
		switch val.Type {
		case gjson.String:
			strVal = val.String()
		default:
			strVal = val.Raw
		}
		next, err := sjson.Set(out, "environment."+key.String(), strVal)
		if err != nil {
			walkErr = err
			return false
		}
		out = next
		return true
	})
	return out, walkErr
}

// Validate checks the invariants spec §3 requires of a merged deployment
// spec: gpu divisible by gpu_per_replica, nodes >= 1, time_limit >= 1.
func Validate(s Spec) error {
	if s.Resources.Nodes < 1 {
		return apierr.New(apierr.KindValidation, "resources.nodes must be >= 1")
	}
	if s.Resources.TimeLimitMinutes < 1 {
		return apierr.New(apierr.KindValidation, "resources.time_limit_minutes must be >= 1")
	}
	if s.GPUPerReplica > 0 {
		if s.Resources.GPU%s.GPUPerReplica != 0 {
			return apierr.New(apierr.KindValidation, fmt.Sprintf(
				"gpu=%d is not divisible by gpu_per_replica=%d", s.Resources.GPU, s.GPUPerReplica))
		}
		if s.BasePort <= 0 {
			return apierr.New(apierr.KindValidation, "base_port must be set for a replica group")
		}
	}
	return nil
}

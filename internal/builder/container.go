package builder

import (
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// sharedContainerBuild renders an idempotent Apptainer pull-and-cache (or
// local build-and-cache, when the recipe names a container_def) so repeated
// submissions of the same recipe don't repull the same image.
func sharedContainerBuild(spec recipe.Spec) []string {
	cacheName := fmt.Sprintf("$APPTAINER_CACHEDIR_BASE/%s.sif", sanitizeImageName(spec.Image))

	lines := []string{
		fmt.Sprintf("export APPTAINER_TMPDIR=%s", "$APPTAINER_TMPDIR_BASE"),
		fmt.Sprintf("export APPTAINER_CACHEDIR=%s", "$APPTAINER_CACHEDIR_BASE"),
		fmt.Sprintf(`IMAGE_SIF=%s`, cacheName),
	}

	if spec.ContainerDef != "" {
		lines = append(lines,
			`if [ ! -f "$IMAGE_SIF" ]; then`,
			fmt.Sprintf(`  apptainer build "$IMAGE_SIF" %s`, spec.ContainerDef),
			`fi`,
		)
	} else {
		lines = append(lines,
			`if [ ! -f "$IMAGE_SIF" ]; then`,
			fmt.Sprintf(`  apptainer pull "$IMAGE_SIF" docker://%s`, spec.Image),
			`fi`,
		)
	}

	return lines
}

func sanitizeImageName(image string) string {
	out := make([]byte, 0, len(image))
	for i := 0; i < len(image); i++ {
		c := image[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}

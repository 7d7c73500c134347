package builder

import (
	"fmt"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// VectorDBBuilder is the category default for recipe category "vector-db":
// a single Qdrant-style vector store process with ephemeral storage.
type VectorDBBuilder struct{}

func (VectorDBBuilder) Directives(spec recipe.Spec, sched SchedulerDefaults, ctx RunContext) []string {
	return sharedDirectives(spec, sched, ctx)
}

func (VectorDBBuilder) Environment(spec recipe.Spec, ctx RunContext) []string {
	return sharedEnvironment(spec)
}

func (VectorDBBuilder) ContainerBuild(spec recipe.Spec) []string {
	return sharedContainerBuild(spec)
}

func (b VectorDBBuilder) Run(spec recipe.Spec, ctx RunContext) []string {
	return selectRun(b, spec, vectorDBCommand)
}

func (VectorDBBuilder) SupportsDistributed() bool { return false }

func vectorDBCommand(spec recipe.Spec, port int) string {
	return fmt.Sprintf("qdrant --uri 0.0.0.0:%d", port)
}

// PersistentVectorDBBuilder specializes VectorDBBuilder's container and run
// hooks to bind a persistent storage volume and skip reseeding on restart,
// leaving directives/environment to the shared category defaults.
type PersistentVectorDBBuilder struct {
	VectorDBBuilder
}

func (PersistentVectorDBBuilder) ContainerBuild(spec recipe.Spec) []string {
	lines := sharedContainerBuild(spec)
	lines = append(lines,
		`mkdir -p "$REMOTE_BASE_PATH/qdrant-storage/$SLURM_JOB_ID"`,
		`export APPTAINER_BIND="$REMOTE_BASE_PATH/qdrant-storage/$SLURM_JOB_ID:/qdrant/storage"`,
	)
	return lines
}

func (b PersistentVectorDBBuilder) Run(spec recipe.Spec, ctx RunContext) []string {
	return selectRun(b, spec, persistentVectorDBCommand)
}

func persistentVectorDBCommand(spec recipe.Spec, port int) string {
	// The storage bind is supplied through APPTAINER_BIND (see ContainerBuild):
	// anything placed after the image is taken as the in-container command.
	return fmt.Sprintf(`qdrant --uri 0.0.0.0:%d`, port)
}

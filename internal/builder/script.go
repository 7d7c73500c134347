// Package builder implements the Strategy pattern over recipe category and
// per-recipe specializations (spec §4.3): it turns a merged deployment spec
// into a batch script the workload manager can submit.
package builder

import (
	"fmt"
	"strings"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// SchedulerDefaults carries the orchestrator-wide fallbacks (account,
// partition, QOS) a deployment spec doesn't itself override.
type SchedulerDefaults struct {
	Account   string
	Partition string
	QOS       string
}

// RunContext carries per-deployment identifiers a builder needs beyond the
// spec itself: the job name the scheduler will see, and output paths.
type RunContext struct {
	JobName   string
	OutputLog string
	ErrorLog  string
}

// Script is a batch script broken into the four labeled sections §4.3
// requires. String() assembles them in order behind the scheduler shebang.
type Script struct {
	Shebang        string
	Directives     []string
	Environment    []string
	ContainerBuild []string
	Run            []string
}

func (s Script) String() string {
	var b strings.Builder
	b.WriteString(s.Shebang)
	b.WriteString("\n\n# --- directives ---\n")
	for _, d := range s.Directives {
		b.WriteString(d)
		b.WriteString("\n")
	}
	b.WriteString("\n# --- environment ---\n")
	for _, e := range s.Environment {
		b.WriteString(e)
		b.WriteString("\n")
	}
	b.WriteString("\n# --- container build ---\n")
	for _, c := range s.ContainerBuild {
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\n# --- run ---\n")
	for _, r := range s.Run {
		b.WriteString(r)
		b.WriteString("\n")
	}
	return b.String()
}

const slurmShebang = "#!/bin/bash"
const slurmDirectivePrefix = "#SBATCH"

// Builder is the capability set a script-building strategy exposes. Concrete
// builders compose the shared helpers in this package rather than inherit
// from one another; a recipe-specialized builder overrides one or two of
// these methods and delegates the rest.
type Builder interface {
	Directives(spec recipe.Spec, sched SchedulerDefaults, ctx RunContext) []string
	Environment(spec recipe.Spec, ctx RunContext) []string
	ContainerBuild(spec recipe.Spec) []string
	Run(spec recipe.Spec, ctx RunContext) []string
	SupportsDistributed() bool
}

// Build assembles the full Script for spec using builder b.
func Build(b Builder, spec recipe.Spec, sched SchedulerDefaults, ctx RunContext) Script {
	return Script{
		Shebang:        slurmShebang,
		Directives:     b.Directives(spec, sched, ctx),
		Environment:    b.Environment(spec, ctx),
		ContainerBuild: b.ContainerBuild(spec),
		Run:            b.Run(spec, ctx),
	}
}

func directive(format string, args ...any) string {
	return fmt.Sprintf("%s %s", slurmDirectivePrefix, fmt.Sprintf(format, args...))
}

package builder

import (
	"strconv"

	"github.com/clusterinfer/orchestrator/internal/recipe"
)

// sharedDirectives renders the scheduler directive lines common to every
// category builder: account, partition, QoS, nodes, tasks-per-node, CPUs,
// memory, GPUs, time limit, job name, output/error paths. Numeric fields are
// validated by recipe.Validate before a script is ever built, so this just
// renders them.
func sharedDirectives(spec recipe.Spec, sched SchedulerDefaults, ctx RunContext) []string {
	lines := make([]string, 0, 12)
	lines = append(lines, directive("--job-name=%s", ctx.JobName))
	if sched.Account != "" {
		lines = append(lines, directive("--account=%s", sched.Account))
	}
	if sched.Partition != "" {
		lines = append(lines, directive("--partition=%s", sched.Partition))
	}
	if sched.QOS != "" {
		lines = append(lines, directive("--qos=%s", sched.QOS))
	}
	lines = append(lines, directive("--nodes=%d", spec.Resources.Nodes))
	lines = append(lines, directive("--ntasks-per-node=1"))
	lines = append(lines, directive("--cpus-per-task=%d", spec.Resources.CPU))
	lines = append(lines, directive("--mem=%dG", spec.Resources.MemoryGB))
	if spec.Resources.GPU > 0 {
		lines = append(lines, directive("--gres=gpu:%d", spec.Resources.GPU))
	}
	lines = append(lines, directive("--time=%s", minutesToSlurmTime(spec.Resources.TimeLimitMinutes)))
	if ctx.OutputLog != "" {
		lines = append(lines, directive("--output=%s", ctx.OutputLog))
	}
	if ctx.ErrorLog != "" {
		lines = append(lines, directive("--error=%s", ctx.ErrorLog))
	}
	return lines
}

func minutesToSlurmTime(minutes int) string {
	hours := minutes / 60
	mins := minutes % 60
	return padTime(hours) + ":" + padTime(mins) + ":00"
}

func padTime(v int) string {
	s := strconv.Itoa(v)
	if v < 10 {
		return "0" + s
	}
	return s
}

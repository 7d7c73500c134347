// Package config reads the control plane's recognized environment variables
// (spec §6) into a typed Config. There is no config-file layer beyond the
// recipe catalog itself: flat, small configuration is read straight from the
// environment, matching the teacher's own preference for os.Getenv-backed
// helpers over a config-framework dependency.
package config

import (
	"os"
	"strconv"
	"strings"
)

// Orchestrator holds defaults for the orchestrator job and downstream
// deployments, plus the SSH/tunnel/scheduler wiring needed to reach SLURM.
type Orchestrator struct {
	Port        int
	Account     string
	Partition   string
	QOS         string
	Nodes       int
	CPUs        int
	TimeLimit   int // minutes

	ApptainerTmpdirBase    string
	ApptainerCachedirBase  string
	RemoteFakeHomeBase     string
	RemoteHFCacheDirname   string

	SlurmRESTHost      string
	SlurmRESTPort      int
	SlurmRESTLocalPort int

	SSHUser    string
	SSHHost    string
	SSHPort    int
	SSHKeyPath string

	SlurmJWT string

	RemoteBasePath string
	LocalBasePath  string

	RecipeRoot  string
	RecipeWatch bool

	ConcurrencyCap int
}

// Load reads the recognized environment variables into an Orchestrator
// config, applying the defaults spec.md §6 implies.
func Load() Orchestrator {
	return Orchestrator{
		Port:      envInt("ORCHESTRATOR_PORT", 8080),
		Account:   os.Getenv("ORCHESTRATOR_ACCOUNT"),
		Partition: os.Getenv("ORCHESTRATOR_PARTITION"),
		QOS:       os.Getenv("ORCHESTRATOR_QOS"),
		Nodes:     envInt("ORCHESTRATOR_NODES", 1),
		CPUs:      envInt("ORCHESTRATOR_CPUS", 4),
		TimeLimit: envInt("ORCHESTRATOR_TIME_LIMIT", 60),

		ApptainerTmpdirBase:   os.Getenv("APPTAINER_TMPDIR_BASE"),
		ApptainerCachedirBase: os.Getenv("APPTAINER_CACHEDIR_BASE"),
		RemoteFakeHomeBase:    os.Getenv("REMOTE_FAKE_HOME_BASE"),
		RemoteHFCacheDirname:  os.Getenv("REMOTE_HF_CACHE_DIRNAME"),

		SlurmRESTHost:      os.Getenv("SLURM_REST_HOST"),
		SlurmRESTPort:      envInt("SLURM_REST_PORT", 6820),
		SlurmRESTLocalPort: envInt("SLURM_REST_LOCAL_PORT", 16820),

		SSHUser:    os.Getenv("SSH_USER"),
		SSHHost:    os.Getenv("SSH_HOST"),
		SSHPort:    envInt("SSH_PORT", 22),
		SSHKeyPath: os.Getenv("SSH_KEY_PATH"),

		SlurmJWT: os.Getenv("SLURM_JWT"),

		RemoteBasePath: os.Getenv("REMOTE_BASE_PATH"),
		LocalBasePath:  os.Getenv("LOCAL_BASE_PATH"),

		RecipeRoot:  envDefault("ORCHESTRATOR_RECIPE_ROOT", "./recipes"),
		RecipeWatch: isTruthy(os.Getenv("ORCHESTRATOR_RECIPE_WATCH")),

		ConcurrencyCap: envInt("ORCHESTRATOR_CONCURRENCY_CAP", 128),
	}
}

// Gateway holds the subset of configuration the gateway process needs: where
// the orchestrator's facade is reachable through the same SSH tunnel.
type Gateway struct {
	ListenPort     int
	SSHUser        string
	SSHHost        string
	SSHPort        int
	SSHKeyPath     string
	OrchestratorHost string
	OrchestratorPort int
	ConcurrencyCap int
	RateLimitRPM   int
	RateLimitBurst int
}

// LoadGateway reads gateway-specific environment variables.
func LoadGateway() Gateway {
	return Gateway{
		ListenPort:       envInt("GATEWAY_PORT", 8090),
		SSHUser:          os.Getenv("SSH_USER"),
		SSHHost:          os.Getenv("SSH_HOST"),
		SSHPort:          envInt("SSH_PORT", 22),
		SSHKeyPath:       os.Getenv("SSH_KEY_PATH"),
		OrchestratorHost: envDefault("GATEWAY_ORCHESTRATOR_HOST", "127.0.0.1"),
		OrchestratorPort: envInt("GATEWAY_ORCHESTRATOR_PORT", 8080),
		ConcurrencyCap:   envInt("ORCHESTRATOR_CONCURRENCY_CAP", 128),
		RateLimitRPM:     envInt("GATEWAY_RATE_LIMIT_RPM", 0),
		RateLimitBurst:   envInt("GATEWAY_RATE_LIMIT_BURST", 5),
	}
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envDefault(name, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return fallback
}

func isTruthy(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

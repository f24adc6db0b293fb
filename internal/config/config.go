package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the runtime configuration for docassist, built entirely from
// environment variables per spec.md §6 — there is no YAML/JSON config file
// for this surface, so Load reads the process environment directly rather
// than a file plus overrides.
type Config struct {
	LLM   LLMConfig
	Git   GitConfig
	Tools ToolsConfig
	Cache CacheConfig
}

// LLMConfig selects and configures the provider the orchestrator (C7/C8)
// talks to.
type LLMConfig struct {
	// DefaultProvider is "openai" (or an OpenAI-compatible name) or "mock".
	DefaultProvider string

	OpenAIAPIKey  string
	OpenAIBaseURL string

	// MaxToolIterations is read from LLM_MAX_TOOL_ITERATIONS. serve does not
	// pass it to the orchestrator: a request that names no
	// max_tool_iterations gets orchestrator.DefaultMaxToolIterations.
	MaxToolIterations int
}

// GitConfig selects and configures the Git backends C10's gitadapter.Registry
// is built from.
type GitConfig struct {
	// DefaultService is "github", "forgejo", or "mock"; "mock" makes serve
	// register the mock Git backend. Git tools do not fall back to it: a call
	// whose arguments and repository_context both omit a service finds no
	// adapter and fails.
	DefaultService string

	GitHubToken string
	// GitHubBaseURL overrides the GitHub API root for GitHub Enterprise. Also
	// used to build a request-scoped Client when a Git tool call supplies its
	// own credential rather than relying on GitHubToken.
	GitHubBaseURL string

	ForgejoBaseURL  string
	ForgejoToken    string
	ForgejoUsername string
	ForgejoPassword string

	// EnableGitHubTools gates whether the three Git-write tools (C9)
	// register at startup at all, independent of whether any backend ends
	// up configured.
	EnableGitHubTools bool
}

// ToolsConfig restricts which MCP tools (C9) get registered.
type ToolsConfig struct {
	// Enabled is the MCP_TOOLS_ENABLED comma list of tool names. Empty
	// means "register everything this config otherwise allows."
	Enabled []string
}

// CacheConfig tunes C1's response cache.
type CacheConfig struct {
	TTLSeconds int
	MaxEntries int
}

// Load builds a Config from the process environment, applying defaults to
// anything left unset and rejecting a combination that can never produce a
// working provider or cache.
func Load() (*Config, error) {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if value := strings.TrimSpace(os.Getenv("DEFAULT_LLM_PROVIDER")); value != "" {
		cfg.LLM.DefaultProvider = value
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); value != "" {
		cfg.LLM.OpenAIAPIKey = value
	}
	if value := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")); value != "" {
		cfg.LLM.OpenAIBaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("LLM_MAX_TOOL_ITERATIONS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.LLM.MaxToolIterations = parsed
		}
	}

	if value := strings.TrimSpace(os.Getenv("DEFAULT_GIT_SERVICE")); value != "" {
		cfg.Git.DefaultService = value
	}
	if value := strings.TrimSpace(os.Getenv("GITHUB_TOKEN")); value != "" {
		cfg.Git.GitHubToken = value
	}
	if value := strings.TrimSpace(os.Getenv("GITHUB_BASE_URL")); value != "" {
		cfg.Git.GitHubBaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("FORGEJO_BASE_URL")); value != "" {
		cfg.Git.ForgejoBaseURL = value
	}
	if value := strings.TrimSpace(os.Getenv("FORGEJO_TOKEN")); value != "" {
		cfg.Git.ForgejoToken = value
	}
	if value := strings.TrimSpace(os.Getenv("FORGEJO_USERNAME")); value != "" {
		cfg.Git.ForgejoUsername = value
	}
	if value := strings.TrimSpace(os.Getenv("FORGEJO_PASSWORD")); value != "" {
		cfg.Git.ForgejoPassword = value
	}
	if value := strings.TrimSpace(os.Getenv("ENABLE_GITHUB_TOOLS")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			cfg.Git.EnableGitHubTools = parsed
		}
	}

	if value := strings.TrimSpace(os.Getenv("MCP_TOOLS_ENABLED")); value != "" {
		var names []string
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				names = append(names, name)
			}
		}
		cfg.Tools.Enabled = names
	}

	if value := strings.TrimSpace(os.Getenv("LLM_CACHE_TTL_SECONDS")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Cache.TTLSeconds = parsed
		}
	}
	if value := strings.TrimSpace(os.Getenv("LLM_CACHE_MAX_ENTRIES")); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			cfg.Cache.MaxEntries = parsed
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LLM.DefaultProvider == "" {
		cfg.LLM.DefaultProvider = "mock"
	}
	if cfg.LLM.MaxToolIterations == 0 {
		cfg.LLM.MaxToolIterations = 5
	}
	if cfg.Git.DefaultService == "" {
		cfg.Git.DefaultService = "mock"
	}
	if cfg.Cache.TTLSeconds == 0 {
		cfg.Cache.TTLSeconds = 300
	}
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 1000
	}
}

// ConfigValidationError collects every configuration problem found so a
// misconfigured deployment fails with one readable report instead of one
// issue per restart.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	var issues []string

	switch strings.ToLower(cfg.LLM.DefaultProvider) {
	case "mock":
	case "openai":
		if cfg.LLM.OpenAIAPIKey == "" {
			issues = append(issues, "OPENAI_API_KEY is required when DEFAULT_LLM_PROVIDER=openai")
		}
	default:
		if cfg.LLM.OpenAIAPIKey == "" {
			issues = append(issues, fmt.Sprintf("DEFAULT_LLM_PROVIDER=%q is treated as an OpenAI-compatible provider and requires OPENAI_API_KEY", cfg.LLM.DefaultProvider))
		}
	}
	if cfg.LLM.MaxToolIterations < 0 {
		issues = append(issues, "LLM_MAX_TOOL_ITERATIONS must be >= 0")
	}

	switch strings.ToLower(cfg.Git.DefaultService) {
	case "mock":
	case "github":
		if cfg.Git.GitHubToken == "" {
			issues = append(issues, "GITHUB_TOKEN is required when DEFAULT_GIT_SERVICE=github")
		}
	case "forgejo":
		if cfg.Git.ForgejoBaseURL == "" {
			issues = append(issues, "FORGEJO_BASE_URL is required when DEFAULT_GIT_SERVICE=forgejo")
		}
		if cfg.Git.ForgejoToken == "" && (cfg.Git.ForgejoUsername == "" || cfg.Git.ForgejoPassword == "") {
			issues = append(issues, "DEFAULT_GIT_SERVICE=forgejo requires FORGEJO_TOKEN or both FORGEJO_USERNAME and FORGEJO_PASSWORD")
		}
	default:
		issues = append(issues, fmt.Sprintf("DEFAULT_GIT_SERVICE must be \"github\", \"forgejo\", or \"mock\", got %q", cfg.Git.DefaultService))
	}

	if cfg.Cache.TTLSeconds < 0 {
		issues = append(issues, "LLM_CACHE_TTL_SECONDS must be >= 0")
	}
	if cfg.Cache.MaxEntries < 0 {
		issues = append(issues, "LLM_CACHE_MAX_ENTRIES must be >= 0")
	}

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

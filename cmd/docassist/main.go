// Package main provides the CLI entry point for docassist, a documentation
// assistant backend that wires an LLM provider, a Git hosting adapter
// (GitHub, Forgejo, or a mock), and a bounded tool-calling orchestrator
// behind a small HTTP API.
//
// # Basic Usage
//
// Start the server:
//
//	docassist serve --addr :8080
//
// # Environment Variables
//
// All configuration is read from the process environment — see
// internal/config for the full list (DEFAULT_LLM_PROVIDER, OPENAI_API_KEY,
// DEFAULT_GIT_SERVICE, GITHUB_TOKEN, FORGEJO_BASE_URL, MCP_TOOLS_ENABLED,
// and friends).
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached.
// Separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "docassist",
		Short: "docassist - documentation assistant LLM orchestration backend",
		Long: `docassist turns a prompt plus repository context into a grounded LLM
response, with a bounded tool-calling loop over a small MCP tool suite
(document analysis, sentiment, and Git issue/PR tools) and SSE streaming.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	rootCmd.AddCommand(buildServeCmd())
	return rootCmd
}

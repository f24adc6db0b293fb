package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haasonsaas/docassist/internal/cache"
	"github.com/haasonsaas/docassist/internal/config"
	"github.com/haasonsaas/docassist/internal/gitadapter"
	"github.com/haasonsaas/docassist/internal/httpapi"
	"github.com/haasonsaas/docassist/internal/observability"
	"github.com/haasonsaas/docassist/internal/orchestrator"
	"github.com/haasonsaas/docassist/internal/promptbuilder"
	"github.com/haasonsaas/docassist/internal/providers"
	"github.com/haasonsaas/docassist/internal/registry"
	"github.com/haasonsaas/docassist/internal/templates"
	"github.com/haasonsaas/docassist/internal/tools"
	"github.com/haasonsaas/docassist/pkg/models"
)

func buildServeCmd() *cobra.Command {
	var addr string
	var otelEndpoint string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the docassist HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), addr, otelEndpoint)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "address to listen on")
	cmd.Flags().StringVar(&otelEndpoint, "otel-endpoint", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"), "OTLP gRPC collector endpoint; empty disables tracing")
	return cmd
}

func runServe(ctx context.Context, addr, otelEndpoint string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	slog.Info("configuration loaded",
		"llm_provider", cfg.LLM.DefaultProvider,
		"git_service", cfg.Git.DefaultService,
		"tools_enabled", cfg.Tools.Enabled,
	)

	// NewTracer installs the global TracerProvider as a side effect when
	// otelEndpoint is set; the orchestrator's own otel.Tracer("orchestrator")
	// picks it up with no further plumbing.
	_, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "docassist",
		ServiceVersion: version,
		Endpoint:       otelEndpoint,
	})
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			slog.Warn("tracer shutdown failed", "error", err)
		}
	}()

	store, err := templates.NewStore(templates.Defaults())
	if err != nil {
		return fmt.Errorf("failed to build template store: %w", err)
	}
	if err := store.SetDefault("generic"); err != nil {
		return fmt.Errorf("failed to set default template: %w", err)
	}
	builder := promptbuilder.New(store, 0)

	respCache := cache.New(cache.Options{
		TTL:        time.Duration(cfg.Cache.TTLSeconds) * time.Second,
		MaxEntries: cfg.Cache.MaxEntries,
	})

	reg := registry.New(30 * time.Second)
	gitTools, err := buildGitTools(cfg.Git)
	if err != nil {
		return fmt.Errorf("failed to build git adapters: %w", err)
	}
	if err := tools.RegisterSelected(reg, gitTools, cfg.Tools.Enabled); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}

	provider := buildProvider(cfg.LLM)

	orch := orchestrator.New(provider, reg, respCache, builder, orchestrator.Config{})
	if err := orch.Metrics().Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("failed to register orchestrator metrics: %w", err)
	}

	api := httpapi.New(orch, reg, store, provider, slog.Default())
	mux := api.Mux()
	mux.Handle("GET /metrics", promhttp.Handler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("docassist listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	slog.Info("shutdown signal received, initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("docassist stopped gracefully")
	return nil
}

// buildProvider selects the LLM provider docassist talks to based on
// cfg.DefaultProvider: "mock" for a scripted, dependency-free provider,
// anything else treated as an OpenAI-compatible chat-completions endpoint.
func buildProvider(cfg config.LLMConfig) providers.LLMProvider {
	if strings.EqualFold(cfg.DefaultProvider, "mock") {
		return providers.NewMock(providers.MockConfig{})
	}
	return providers.NewRemoteChat(providers.RemoteChatConfig{
		APIKey:  cfg.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
	})
}

// buildGitTools builds the Git tool adapters for every backend cfg has
// credentials for, registering them under a gitadapter.Registry keyed by
// service. Returns nil when EnableGitHubTools is false, so the three
// Git-write tools never register at all.
func buildGitTools(cfg config.GitConfig) (*tools.GitTools, error) {
	if !cfg.EnableGitHubTools {
		return nil, nil
	}

	clients := map[models.GitService]gitadapter.Client{}

	if cfg.GitHubToken != "" {
		gh, err := gitadapter.NewGitHub(gitadapter.GitHubConfig{Token: cfg.GitHubToken, BaseURL: cfg.GitHubBaseURL})
		if err != nil {
			return nil, fmt.Errorf("github adapter: %w", err)
		}
		clients[models.GitServiceGitHub] = gh
	}
	if cfg.ForgejoBaseURL != "" {
		fj, err := gitadapter.NewForgejo(gitadapter.ForgejoConfig{
			BaseURL:  cfg.ForgejoBaseURL,
			Token:    cfg.ForgejoToken,
			Username: cfg.ForgejoUsername,
			Password: cfg.ForgejoPassword,
		})
		if err != nil {
			return nil, fmt.Errorf("forgejo adapter: %w", err)
		}
		clients[models.GitServiceForgejo] = fj
	}
	if strings.EqualFold(cfg.DefaultService, "mock") || len(clients) == 0 {
		clients[models.GitServiceMock] = gitadapter.NewMock(models.GitServiceMock, 1)
	}

	return tools.NewGitTools(gitadapter.NewRegistry(clients)).WithBaseURLs(cfg.GitHubBaseURL, cfg.ForgejoBaseURL), nil
}

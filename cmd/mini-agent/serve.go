package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/agent"
	"github.com/haasonsaas/nexus/internal/agent/providers"
	"github.com/haasonsaas/nexus/internal/config"
	"github.com/haasonsaas/nexus/internal/httpapi"
	"github.com/haasonsaas/nexus/internal/memory"
	"github.com/haasonsaas/nexus/internal/metrics"
	"github.com/haasonsaas/nexus/internal/sessions"
	"github.com/haasonsaas/nexus/internal/skills"
	"github.com/haasonsaas/nexus/internal/toolcontext"
	"github.com/haasonsaas/nexus/internal/tools/websearch"
)

const defaultSystemPrompt = `You are a careful, helpful assistant. Use the tools available to you when
they would produce a better answer than reasoning alone. Be concise.`

const defaultModel = "gpt-4o"

func buildServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "optional YAML config overlay path")
	return cmd
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	m := metrics.New()

	provider := metrics.Instrument(providers.NewOpenAIProvider(cfg.OpenAIAPIKey), m)

	registry := agent.NewToolRegistry()
	if cfg.TavilyAPIKey != "" {
		tool := websearch.New(websearch.Config{APIKey: cfg.TavilyAPIKey})
		if err := registry.Register(tool, 0); err != nil {
			return err
		}
		logger.Info("registered tool", "name", tool.Name())
	} else {
		logger.Info("TAVILY_API_KEY not set, web_search tool disabled")
	}

	skillRegistry, err := skills.Discover(ctx,
		filepath.Join(cfg.StorageRoot, "skills", "builtin"),
		filepath.Join(cfg.StorageRoot, "skills", "user"),
		filepath.Join(cfg.StorageRoot, "skills", "project"),
	)
	if err != nil {
		return err
	}
	if skillRegistry.Len() > 0 {
		if err := registry.Register(skills.NewSkillTool(skillRegistry), 0); err != nil {
			return err
		}
		logger.Info("registered tool", "name", "skill", "skill_count", skillRegistry.Len())
	}

	sessionStore, err := sessions.NewFileStore(filepath.Join(cfg.StorageRoot, "sessions"))
	if err != nil {
		return err
	}
	memoryIndex, err := memory.NewFileIndex(filepath.Join(cfg.StorageRoot, "memory"))
	if err != nil {
		return err
	}
	toolCtxStore, err := toolcontext.NewFileStore(filepath.Join(cfg.StorageRoot, "toolcontext"))
	if err != nil {
		return err
	}

	opts := agent.DefaultRuntimeOptions()
	opts.Logger = logger
	opts.MaxIterations = cfg.MaxIterations
	opts.MaxToolCalls = cfg.MaxToolCalls
	opts.ToolTimeout = cfg.ToolTimeout

	loop := agent.NewLoop(provider, registry, sessionStore, memoryIndex, toolCtxStore, defaultModel, defaultSystemPrompt, opts)

	server := httpapi.New(httpapi.Config{
		Loop:        loop,
		Sessions:    sessionStore,
		ToolContext: toolCtxStore,
		Memory:      memoryIndex,
		Registry:    registry,
		Skills:      skillRegistry,
		Metrics:     m,
		Logger:      logger,
	})

	serveCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(cfg.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-serveCtx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

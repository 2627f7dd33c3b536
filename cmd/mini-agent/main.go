// Package main provides the CLI entry point for mini-agent, a single-process
// LLM agent runtime: reasoning/acting loop, tool registry, and a streaming
// HTTP API, all backed by file-based session, memory, and tool-context
// stores.
//
// # Basic usage
//
// Start the server:
//
//	mini-agent serve
//
// # Environment variables
//
//   - OPENAI_API_KEY: OpenAI API key (required)
//   - OPENAI_BASE_URL: override the OpenAI API base URL
//   - TAVILY_API_KEY: enables the web_search tool when set
//   - MINI_AGENT_STORAGE_ROOT: root directory for session/memory/tool-context
//     stores (default .mini-agent/)
//   - MINI_AGENT_HTTP_ADDR: HTTP listen address (default :8080)
//   - MINI_AGENT_LOG_LEVEL: debug, info, warn, or error (default info)
//   - MINI_AGENT_MAX_ITERATIONS: reasoning/acting round cap per query
//   - MINI_AGENT_MAX_TOOL_CALLS: hard tool-call budget per query
//   - MINI_AGENT_TOOL_TIMEOUT: per-tool-call timeout (Go duration string)
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

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with all subcommands attached. This
// is separated from main() to facilitate testing.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mini-agent",
		Short: "mini-agent - a single-process LLM agent runtime",
		Long: `mini-agent runs a reasoning/acting loop against an LLM provider, executing
registered tools and streaming progress over HTTP as server-sent events.

Sessions, recall memory, and large tool results persist to disk under
MINI_AGENT_STORAGE_ROOT so a restarted process picks up where it left off.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/nexus/internal/config"
)

func buildConfigCmd() *cobra.Command {
	var configPath string

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			fmt.Printf("storage_root:   %s\n", cfg.StorageRoot)
			fmt.Printf("http_addr:      %s\n", cfg.HTTPAddr)
			fmt.Printf("log_level:      %s\n", cfg.LogLevel)
			fmt.Printf("max_iterations: %d\n", cfg.MaxIterations)
			fmt.Printf("max_tool_calls: %d\n", cfg.MaxToolCalls)
			fmt.Printf("tool_timeout:   %s\n", cfg.ToolTimeout)
			fmt.Printf("openai_api_key: %s\n", maskSecret(cfg.OpenAIAPIKey))
			fmt.Printf("tavily_api_key: %s\n", maskSecret(cfg.TavilyAPIKey))
			return nil
		},
	}
	showCmd.Flags().StringVar(&configPath, "config", "", "optional YAML config overlay path")

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect mini-agent configuration",
	}
	cmd.AddCommand(showCmd)
	return cmd
}

// maskSecret shows only enough of a secret to confirm it's set, never its
// value.
func maskSecret(s string) string {
	if s == "" {
		return "(unset)"
	}
	if len(s) <= 4 {
		return "****"
	}
	return s[:2] + "****" + s[len(s)-2:]
}

// Package cmd implements the mcpchat CLI using cobra.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpchat/internal/config"
	"github.com/crystaldolphin/mcpchat/internal/logging"
)

const version = "0.1.0"
const logo = "💬"

var cfgPath string

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:          "mcpchat",
	Short:        logo + " mcpchat: chat orchestrator over LLM providers and MCP tools",
	Long:         longDescription,
	SilenceUsage: true,
}

const longDescription = logo + ` mcpchat routes chat messages to Claude, OpenAI or Gemini, lets the
model call tools on connected MCP servers, and enforces a domain allow-list on
every URL the conversation or a tool call mentions.`

// Execute runs the root command and exits on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = version
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "Config file (default "+config.ConfigPath()+")")

	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(mcpCmd)
}

// loadConfig reads the config file, applies environment overrides and
// installs the default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	slog.SetDefault(logging.New(logging.ParseLevel(cfg.LogLevel)))
	return cfg, nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpchat/internal/config"
	"github.com/crystaldolphin/mcpchat/internal/config/provider"
	"github.com/crystaldolphin/mcpchat/internal/dependency"
	"github.com/crystaldolphin/mcpchat/internal/shared/llmutils"
	"github.com/crystaldolphin/mcpchat/internal/whitelist"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show mcpchat configuration status",
	RunE:  runStatus,
}

func runStatus(_ *cobra.Command, _ []string) error {
	path := cfgPath
	if path == "" {
		path = config.ConfigPath()
	}

	fmt.Printf("%s mcpchat Status\n\n", logo)

	cfgMark := "✗"
	if _, err := os.Stat(path); err == nil {
		cfgMark = "✓"
	}
	fmt.Printf("Config:    %s %s\n", path, cfgMark)

	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("  (could not load config: %v)\n", err)
		return nil
	}
	fmt.Printf("Listen:    %s\n", cfg.Server.Addr())
	fmt.Printf("Contexts:  %s\n\n", cfg.ContextsFile)

	fmt.Println("Providers:")
	for _, name := range provider.Names {
		pc := cfg.Providers.ByName(name)
		if pc.APIKey == "" {
			fmt.Printf("  %-10s (not set)\n", name)
			continue
		}
		if pc.Model != "" {
			fmt.Printf("  %-10s ✓ %s\n", name, pc.Model)
		} else {
			fmt.Printf("  %-10s ✓\n", name)
		}
	}

	fmt.Println("\nWhitelist:")
	if !cfg.Whitelist.Enabled {
		fmt.Println("  disabled")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		printWhitelist(ctx, cfg)
	}

	fmt.Println("\nMCP servers:")
	if len(cfg.MCPServers) == 0 {
		fmt.Println("  (none)")
	}
	for _, s := range cfg.MCPServers {
		target := s.URL
		if target == "" {
			target = strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
		}
		fmt.Printf("  %-16s %-6s %s\n", s.Name, llmutils.StringOrDefault(s.Type, "auto"), target)
	}
	return nil
}

func printWhitelist(ctx context.Context, cfg *config.Config) {
	container, err := dependency.New(ctx, cfg)
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return
	}
	defer container.Close(context.Background())

	fmt.Printf("  source:   %s\n", whitelist.Describe(container.WhitelistSource()))
	domains, err := container.Whitelist().AllowedDomains(ctx)
	if err != nil {
		fmt.Printf("  ✗ %v\n", err)
		return
	}
	fmt.Printf("  domains:  %d\n", len(domains))
	if len(cfg.Whitelist.EnforcedProviders) > 0 {
		fmt.Printf("  enforced: %s\n", strings.Join(cfg.Whitelist.EnforcedProviders, ", "))
	}
}

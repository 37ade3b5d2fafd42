package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crystaldolphin/mcpchat/internal/config"
	"github.com/crystaldolphin/mcpchat/internal/contexts"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize configuration and the contexts file",
	RunE:  runOnboard,
}

func runOnboard(_ *cobra.Command, _ []string) error {
	path := cfgPath
	if path == "" {
		path = config.ConfigPath()
	}

	var cfg *config.Config
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config already exists at %s\n", path)
		fmt.Printf("Press Enter to refresh (keep existing values) or Ctrl+C to cancel: ")
		fmt.Scanln()
		existing, loadErr := config.Load(path)
		if loadErr != nil {
			def := config.DefaultConfig()
			existing = &def
		}
		cfg = existing
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Printf("✓ Config refreshed at %s\n", path)
	} else {
		def := config.DefaultConfig()
		cfg = &def
		if err := config.Save(cfg, path); err != nil {
			return err
		}
		fmt.Printf("✓ Created config at %s\n", path)
	}

	if _, err := os.Stat(cfg.ContextsFile); os.IsNotExist(err) {
		if err := os.WriteFile(cfg.ContextsFile, []byte(contexts.Template), 0o644); err != nil {
			return fmt.Errorf("write contexts file: %w", err)
		}
		fmt.Printf("✓ Created %s\n", cfg.ContextsFile)
	}

	fmt.Printf("\n%s mcpchat is ready!\n\n", logo)
	fmt.Println("Next steps:")
	fmt.Printf("  1. Add a provider API key to %s (or set ANTHROPIC_API_KEY)\n", path)
	fmt.Println("  2. List allowed domains under whitelist.domains, or point whitelist.mongo at your database")
	fmt.Println("  3. Chat: mcpchat chat -m \"Hola\"")
	fmt.Println("  4. Serve: mcpchat serve")
	return nil
}

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/herbia/internal/llm"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/quota"
)

const redacted = "********"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage Herbia configuration",
	Long: `Manage Herbia configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (HERBIA_*, OPENAI_API_KEY, PLANTNET_API_KEY, ...)
3. Config file (~/.herbia/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long:  `Display the configuration after merging defaults, config file, env vars and flags. Secrets are masked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(viper.GetViper(), os.Getenv)
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(redactConfig(*cfg))
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		fmt.Println(string(yamlData))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.herbia/config.yaml with every available option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("find home directory: %w", err)
		}

		configPath := filepath.Join(home, ".herbia", "config.yaml")
		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  herbia config show\n")
		fmt.Printf("\nTo check credentials and backends:\n")
		fmt.Printf("  herbia config check\n\n")
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check the LLM provider, Pl@ntNet key and quota backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		cfg, err := loadConfig(viper.GetViper(), os.Getenv)
		if err != nil {
			return err
		}

		failures := 0
		report := func(name string, err error) {
			if err != nil {
				failures++
				fmt.Printf("✗ %-10s %v\n", name, err)
				return
			}
			fmt.Printf("✓ %s\n", name)
		}

		report("llm", checkProvider(ctx, cfg))
		if cfg.PlantNet.APIKey == "" {
			report("plantnet", fmt.Errorf("PLANTNET_API_KEY: %w", model.ErrMissingCredentials))
		} else {
			report("plantnet", nil)
		}
		report("quota", checkQuota(ctx, cfg))

		if failures > 0 {
			return fmt.Errorf("%d check(s) failed", failures)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configCheckCmd)
}

func writeDefaultConfig(configPath string) (err error) {
	if _, statErr := os.Stat(configPath); statErr == nil {
		return fmt.Errorf("config file already exists: %s\nUse 'herbia config show' to view it, or delete it first to recreate", configPath)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	header := `# Herbia Configuration File
#
# Configuration hierarchy (highest to lowest priority):
#   1. CLI flags
#   2. Environment variables (HERBIA_*, e.g. HERBIA_QUOTA_BACKEND=redis)
#   3. This config file
#   4. Built-in defaults

`
	footer := `
# API keys (recommended to use environment variables instead):
#   export OPENAI_API_KEY=sk-...
#   export GROQ_API_KEY=gsk_...
#   export ANTHROPIC_API_KEY=sk-ant-...
#   export GEMINI_API_KEY=...
#   export PLANTNET_API_KEY=...
#   export OLLAMA_BASE_URL=http://localhost:11434
`
	for _, chunk := range [][]byte{[]byte(header), yamlData, []byte(footer)} {
		if _, err := f.Write(chunk); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
	}
	return nil
}

// redactConfig masks credentials before display
func redactConfig(cfg model.Config) model.Config {
	if cfg.LLM.APIKey != "" {
		cfg.LLM.APIKey = redacted
	}
	if cfg.PlantNet.APIKey != "" {
		cfg.PlantNet.APIKey = redacted
	}
	if cfg.Quota.PostgresDSN != "" {
		cfg.Quota.PostgresDSN = redacted
	}
	return cfg
}

func checkProvider(ctx context.Context, cfg *model.Config) error {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("no provider configured")
	}
	return provider.Check(ctx)
}

func checkQuota(ctx context.Context, cfg *model.Config) error {
	counter, err := quota.NewCounter(ctx, cfg.Quota, logger.Nop())
	if err != nil {
		return err
	}
	defer func() { _ = counter.Close() }()

	gate := quota.NewGate(counter, cfg.Quota.DailyLimit)
	if _, err := counter.Count(ctx, gate.Today()); err != nil {
		return fmt.Errorf("read today's count: %w", err)
	}
	return nil
}

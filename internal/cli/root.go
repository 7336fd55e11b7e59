package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/herbia/internal/llm"
	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
	"github.com/ppiankov/herbia/internal/pipeline"
)

var (
	cfgFile string
	verbose bool

	// Set with -ldflags "-X github.com/ppiankov/herbia/internal/cli.version=..."
	version = "dev"
)

// Keys tagged omitempty are missing from the marshalled defaults but must still bind to env
var optionalKeys = []string{
	"http.http_proxy", "http.https_proxy", "http.no_proxy",
	"llm.api_key", "llm.base_url",
	"plantnet.api_key",
	"quota.redis_addr", "quota.postgres_dsn",
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "herbia",
	Short: "Herbia - plant suggestions and photo identification for walks and trips",
	Long: `Herbia suggests plants worth looking for along a route or around a place,
for a given month, and checks photos against the species you expected to find.

Suggestions blend research-grade observations near the route with short
descriptions and field hints written by a language model. When observations
are too sparse, the model suggests the whole list on its own.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("herbia %s\n", version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.herbia/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("log-mode", "", "logger mode (dev, prod)")
	rootCmd.PersistentFlags().String("llm-provider", "", "LLM provider (openai, groq, anthropic, ollama, gemini)")
	rootCmd.PersistentFlags().String("llm-model", "", "LLM model name")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("log.mode", rootCmd.PersistentFlags().Lookup("log-mode"))
	_ = viper.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))
	_ = viper.BindPFlag("llm.model", rootCmd.PersistentFlags().Lookup("llm-model"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := registerDefaults(viper.GetViper(), model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".herbia"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// HERBIA_LLM_PROVIDER overrides llm.provider
	viper.SetEnvPrefix("HERBIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	err := viper.ReadInConfig()
	switch {
	case err == nil && verbose:
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	case err != nil && cfgFile != "":
		fmt.Fprintf(os.Stderr, "Error reading config file %s: %v\n", cfgFile, err)
	}
}

// registerDefaults makes every config key known to v so env overrides apply to it
func registerDefaults(v *viper.Viper, defaults model.Config) error {
	data, err := yaml.Marshal(defaults)
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)
	for _, key := range optionalKeys {
		v.SetDefault(key, "")
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]interface{}) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]interface{}); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig decodes the merged configuration and fills API keys from their conventional env vars
func loadConfig(v *viper.Viper, getenv func(string) string) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		if name := llm.APIKeyEnv(cfg.LLM.Provider); name != "" {
			cfg.LLM.APIKey = getenv(name)
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = getenv("OLLAMA_BASE_URL")
	}
	if cfg.PlantNet.APIKey == "" {
		cfg.PlantNet.APIKey = getenv("PLANTNET_API_KEY")
	}
	if v.GetBool("verbose") {
		cfg.Log.Mode = "dev"
	}
	return &cfg, nil
}

// setup loads configuration and builds the logger and client bundle
func setup(ctx context.Context) (*model.Config, *logger.Logger, *pipeline.Services, error) {
	cfg, err := loadConfig(viper.GetViper(), os.Getenv)
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	services, err := pipeline.NewServices(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, err
	}
	return cfg, log, services, nil
}

package cmd

import (
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dlemos/formfill/internal/storage"
)

const (
	app = "formfill"
)

type Config struct {
	UserAgent string          `mapstructure:"user-agent"`
	Storage   *StorageConfig  `mapstructure:"storage"`
	Autofill  *AutofillConfig `mapstructure:"autofill"`
	Gemini    *GeminiConfig   `mapstructure:"gemini"`
}

type StorageConfig struct {
	Path string `mapstructure:"path"`
}

type AutofillConfig struct {
	MaxAttempts  int           `mapstructure:"max-attempts"`
	RetryDelay   time.Duration `mapstructure:"retry-delay"`
	MaxLogLength int           `mapstructure:"max-log-length"`
}

type GeminiConfig struct {
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "formfill fills web-page forms with values from your resume using Gemini",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("storage.path", "FORMFILL_STORAGE_PATH"); err != nil {
		log.Fatalf("binding FORMFILL_STORAGE_PATH environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is formfill.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		// An explicitly named config file must parse.
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app + ".yaml")

	// The default config file is optional; every knob has a default.
	_ = viper.ReadInConfig()
}

func getConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, err
	}

	if config.Storage == nil {
		config.Storage = &StorageConfig{}
	}
	if config.Autofill == nil {
		config.Autofill = &AutofillConfig{}
	}
	if config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}

	return config, nil
}

func openStore(config *Config) (*storage.Store, error) {
	return storage.Open(config.Storage.Path)
}

package cmd

import (
	"context"
	"log"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dlemos/formfill/internal/gemini"
	"github.com/dlemos/formfill/internal/logger"
	"github.com/dlemos/formfill/internal/resume"
	"github.com/dlemos/formfill/internal/secrets"
	"github.com/dlemos/formfill/internal/storage"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Store the resume, API key, and model used by autofill runs",
}

var setupResumeCmd = &cobra.Command{
	Use:   "resume <file>",
	Short: "Extract the resume's text and store it",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		setupResume(args[0])
	},
}

var setupKeyCmd = &cobra.Command{
	Use:   "key",
	Short: "Store the Gemini API key",
	Run: func(cmd *cobra.Command, _ []string) {
		setupKey(cmd)
	},
}

var setupModelCmd = &cobra.Command{
	Use:   "model",
	Short: "Pick and store the Gemini model used for mapping",
	Run: func(_ *cobra.Command, _ []string) {
		setupModel()
	},
}

func init() {
	rootCmd.AddCommand(setupCmd)
	setupCmd.AddCommand(setupResumeCmd, setupKeyCmd, setupModelCmd)

	setupKeyCmd.Flags().String("key-file", "", "read the API key from this file instead of prompting")
}

func setupResume(path string) {
	logger, store := setupEnv()
	defer store.Close()

	text, err := resume.ExtractText(path)
	if err != nil {
		logger.Fatal("extracting resume text", zap.Error(err))
	}

	filename := filepath.Base(path)
	if err := store.Set(storage.KeyResumeContent, text); err != nil {
		logger.Fatal("storing resume content", zap.Error(err))
	}
	if err := store.Set(storage.KeyResumeFilename, filename); err != nil {
		logger.Fatal("storing resume filename", zap.Error(err))
	}

	logger.Info("resume stored",
		zap.String("filename", filename),
		zap.Int("characters", len(text)),
	)
}

func setupKey(cmd *cobra.Command) {
	logger, store := setupEnv()
	defer store.Close()

	keyFile := cmd.Flag("key-file").Value.String()
	if keyFile == "" {
		keyFile = viper.GetString("gemini.api-key-file")
	}

	var inline string
	if keyFile == "" {
		prompt := promptui.Prompt{Label: "Gemini API key", Mask: '*'}
		value, err := prompt.Run()
		if err != nil {
			logger.Fatal("reading api key", zap.Error(err))
		}
		inline = value
	}

	key, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: inline,
		File:  keyFile,
	})
	if err != nil {
		logger.Fatal("loading api key", zap.Error(err))
	}

	if err := store.Set(storage.KeyAPIKey, key); err != nil {
		logger.Fatal("storing api key", zap.Error(err))
	}

	logger.Info("api key stored")
}

func setupModel() {
	logger, store := setupEnv()
	defer store.Close()

	models := fetchModels(store, logger)

	items := make([]string, 0, len(models))
	for _, m := range models {
		items = append(items, m.DisplayName+" ("+m.ID+")")
	}

	prompt := promptui.Select{
		Label: "Choose a model and press ENTER",
		Items: items,
	}

	idx, _, err := prompt.Run()
	if err != nil {
		logger.Fatal("selecting model", zap.Error(err))
	}

	if err := store.Set(storage.KeyModel, models[idx].ID); err != nil {
		logger.Fatal("storing model", zap.Error(err))
	}

	logger.Info("model stored", zap.String("model", models[idx].ID))
}

func fetchModels(store *storage.Store, logger *zap.Logger) []gemini.ModelInfo {
	ctx := context.Background()

	apiKey, ok, err := store.Get(storage.KeyAPIKey)
	if err != nil {
		logger.Fatal("reading api key", zap.Error(err))
	}
	if !ok {
		logger.Fatal("api key is required",
			zap.String("hint", "run 'formfill setup key' first"),
		)
	}

	generator, err := gemini.NewGenerator(ctx, apiKey, "", 0, logger)
	if err != nil {
		logger.Fatal("creating gemini client", zap.Error(err))
	}

	models, err := generator.ListModels(ctx)
	if err != nil {
		logger.Fatal("listing models", zap.Error(err))
	}

	if len(models) == 0 {
		logger.Fatal("no models available for this api key")
	}

	return models
}

func setupEnv() (*zap.Logger, *storage.Store) {
	zl, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		zl.Fatal("getting a config", zap.Error(err))
	}

	store, err := openStore(config)
	if err != nil {
		zl.Fatal("opening storage", zap.Error(err))
	}

	return zl, store
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/dlemos/formfill/internal/browser"
	"github.com/dlemos/formfill/internal/bus"
	"github.com/dlemos/formfill/internal/coordinator"
	"github.com/dlemos/formfill/internal/gemini"
	"github.com/dlemos/formfill/internal/logger"
	"github.com/dlemos/formfill/internal/panel"
	"github.com/dlemos/formfill/internal/scanner"
)

var runCmd = &cobra.Command{
	Use:   "run <url|file>",
	Short: "Open a page and fill its form fields from the stored resume",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		run(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("out", "o", "", "write the filled page to this file")
	runCmd.Flags().Bool("dry-run", false, "scan and print the discovered fields without filling")
}

// run is the main command for the cli.
func run(cmd *cobra.Command, target string) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	logger.Info("starting formfill", zap.String("version", version), zap.String("target", target))

	store, err := openStore(config)
	if err != nil {
		logger.Fatal("opening storage", zap.Error(err))
	}
	defer store.Close()

	router := bus.NewRouter()

	b := browser.New(router, logger)
	if config.UserAgent != "" {
		b.UserAgent = config.UserAgent
	}

	tab, err := b.OpenTab(target)
	if err != nil {
		logger.Fatal("opening the page", zap.Error(err))
	}

	if cmd.Flag("dry-run").Value.String() == "true" {
		dryRun(tab, logger)
		return
	}

	factory := func(ctx context.Context, apiKey, model string) (coordinator.Generator, error) {
		genLogger := logger.With(zap.String("provider", "gemini"), zap.String("model", model))
		return gemini.NewGenerator(ctx, apiKey, model, config.Gemini.Timeout, genLogger)
	}

	coord := coordinator.New(router, b, store, factory, coordinator.Config{
		MaxAttempts:  config.Autofill.MaxAttempts,
		RetryDelay:   config.Autofill.RetryDelay,
		MaxLogLength: config.Autofill.MaxLogLength,
	}, logger)
	coord.Attach()

	result, err := panel.New(router, logger).Trigger(ctx)
	if err != nil {
		logger.Fatal("autofill run failed to complete", zap.Error(err))
	}

	fmt.Println(panel.Render(result))

	if !result.Success {
		os.Exit(1)
	}

	if out := cmd.Flag("out").Value.String(); out != "" {
		html, err := tab.Document.Html()
		if err != nil {
			logger.Fatal("rendering the filled page", zap.Error(err))
		}
		if err := os.WriteFile(out, []byte(html), 0o644); err != nil {
			logger.Fatal("writing the filled page", zap.Error(err))
		}
		logger.Info("wrote filled page", zap.String("filename", out))
	}
}

func dryRun(tab *browser.Tab, logger *zap.Logger) {
	fields := scanner.Scan(tab.Document)
	logger.Info("discovered form fields", zap.Int("count", len(fields)))

	if len(fields) == 0 {
		fmt.Println("No form fields found on the page.")
		return
	}

	pretty, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		logger.Fatal("formatting fields", zap.Error(err))
	}
	fmt.Println(string(pretty))
}

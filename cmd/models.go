package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the Gemini models available to the stored API key",
	Run: func(_ *cobra.Command, _ []string) {
		logger, store := setupEnv()
		defer store.Close()

		for _, m := range fetchModels(store, logger) {
			fmt.Printf("%s\t%s\n", m.ID, m.DisplayName)
		}
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

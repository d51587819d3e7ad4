package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "shelfwise",
	Short: "LLM-assisted metadata curation for a document archive",
	Long:  "Proposes titles, correspondents, document types and tags for archived documents, validates each proposal with a second model pass, and queues anything unconfirmed for human review.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

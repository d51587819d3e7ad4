package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwise/shelfwise/internal/model"
)

var scanKind string

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the whole corpus for recurring entity suggestions",
	Long:  "Runs a bootstrap scan over every document, queueing entity suggestions for review. Progress is printed until the scan terminates; Ctrl-C cancels it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Manager.Start(ctx, model.SuggestionKind(scanKind)); err != nil {
			return err
		}

		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				env.Manager.Cancel()
				// Wait for the scan to land in a terminal state.
				for !env.Manager.Progress().Status.Terminal() {
					time.Sleep(100 * time.Millisecond)
				}
			case <-ticker.C:
			}

			p := env.Manager.Progress()
			fmt.Printf("\r%s: %d/%d processed, %d suggestions, %d errors, ETA %.0fs   ",
				p.Status, p.Processed, p.Total, p.SuggestionsFound, p.Errors, p.ETASeconds)

			if p.Status.Terminal() {
				fmt.Println()
				zap.L().Info("scan finished",
					zap.String("status", string(p.Status)),
					zap.Int("processed", p.Processed),
					zap.Int("suggestions", p.SuggestionsFound),
					zap.Int("errors", p.Errors),
				)
				return nil
			}
		}
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanKind, "kind", "", "suggestion kind to scan for (correspondent, document_type, tag; default all)")
	rootCmd.AddCommand(scanCmd)
}

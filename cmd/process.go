package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/loop"
	"github.com/shelfwise/shelfwise/internal/model"
)

var processKind string

var processCmd = &cobra.Command{
	Use:   "process <document-id>",
	Short: "Run the confirmation loop for one document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		kind := model.SuggestionKind(processKind)
		events, err := env.Processor.Stream(ctx, args[0], kind)
		if err != nil {
			return err
		}

		for ev := range events {
			switch {
			case ev.Type == loop.EventFailed:
				return fmt.Errorf("processing failed: %s", ev.Err)
			case ev.Result != nil:
				if ev.Result.NeedsReview {
					fmt.Printf("unconfirmed after %d attempts, queued for review: %s\n", ev.Result.Attempts, ev.Result.Value)
				} else if ev.Result.Value != "" {
					fmt.Printf("applied %s %q (%d attempts)\n", kind, ev.Result.Value, ev.Result.Attempts)
				} else {
					fmt.Printf("no %s suggested (%d attempts)\n", kind, ev.Result.Attempts)
				}
			case ev.Reasoning != "":
				fmt.Printf("[attempt %d] %s\n", ev.Attempt, ev.Reasoning)
			}
		}
		return nil
	},
}

func init() {
	processCmd.Flags().StringVar(&processKind, "kind", "title", "suggestion kind to process (title, correspondent, document_type, tag)")
	rootCmd.AddCommand(processCmd)
}

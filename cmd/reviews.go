package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/model"
)

var reviewsKind string

var reviewsCmd = &cobra.Command{
	Use:   "reviews",
	Short: "Manage the pending review queue",
}

var reviewsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending review items",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		items, err := env.Store.ListPendingReviews(cmd.Context(), model.SuggestionKind(reviewsKind))
		if err != nil {
			return err
		}

		if len(items) == 0 {
			fmt.Println("no pending reviews")
			return nil
		}
		for _, item := range items {
			fmt.Printf("%s  [%s] %q  doc=%s (%s)\n", item.ID, item.Kind, item.Value, item.DocumentID, item.DocumentTitle)
		}
		return nil
	},
}

var reviewsDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss a pending review item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Store.DeletePendingReview(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("dismissed", args[0])
		return nil
	},
}

func init() {
	reviewsListCmd.Flags().StringVar(&reviewsKind, "kind", "", "filter by suggestion kind")
	reviewsCmd.AddCommand(reviewsListCmd, reviewsDismissCmd)
	rootCmd.AddCommand(reviewsCmd)
}

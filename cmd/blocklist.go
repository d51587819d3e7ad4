package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfwise/shelfwise/internal/model"
)

var (
	blockScope  string
	blockReason string
)

var blocklistCmd = &cobra.Command{
	Use:   "blocklist",
	Short: "Manage the suggestion blocklist",
}

var blocklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blocklist entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		entries, err := env.Store.ListAllBlocked(cmd.Context())
		if err != nil {
			return err
		}

		if len(entries) == 0 {
			fmt.Println("blocklist is empty")
			return nil
		}
		for _, e := range entries {
			fmt.Printf("%s  [%s] %q", e.ID, e.Scope, e.Name)
			if e.Reason != "" {
				fmt.Printf("  (%s)", e.Reason)
			}
			fmt.Println()
		}
		return nil
	},
}

var blocklistAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Block a suggestion name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope := model.Scope(blockScope)
		if scope != model.ScopeGlobal && !model.SuggestionKind(scope).Valid() {
			return fmt.Errorf("unknown scope %q", blockScope)
		}

		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		entry, err := env.Registry.Add(cmd.Context(), args[0], scope, blockReason, "")
		if err != nil {
			return err
		}
		fmt.Printf("blocked %q under %s (%s)\n", entry.Name, entry.Scope, entry.ID)
		return nil
	},
}

var blocklistRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a blocklist entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context())
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Registry.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("removed", args[0])
		return nil
	},
}

func init() {
	blocklistAddCmd.Flags().StringVar(&blockScope, "scope", string(model.ScopeGlobal), "scope of the block (global, title, correspondent, document_type, tag)")
	blocklistAddCmd.Flags().StringVar(&blockReason, "reason", "", "why the name is blocked")
	blocklistCmd.AddCommand(blocklistListCmd, blocklistAddCmd, blocklistRemoveCmd)
	rootCmd.AddCommand(blocklistCmd)
}

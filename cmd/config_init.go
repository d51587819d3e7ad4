package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/shelfwise/shelfwise/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
	// config init must work before a config file exists.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		const path = "config.yaml"

		if !configInitForce {
			if _, err := os.Stat(path); err == nil {
				return eris.Errorf("%s already exists (use --force to overwrite)", path)
			}
		}

		v := viper.New()
		config.SetDefaults(v)

		data, err := yaml.Marshal(v.AllSettings())
		if err != nil {
			return eris.Wrap(err, "marshal defaults")
		}

		header := []byte("# shelfwise configuration. Every key can be overridden with a\n# SHELFWISE_-prefixed environment variable (dots become underscores).\n")
		if err := os.WriteFile(path, append(header, data...), 0o644); err != nil {
			return eris.Wrap(err, "write config")
		}

		fmt.Println("wrote", path)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite an existing config.yaml")
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/amaumene/trackarr/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "trackarr",
		Short:         "Track what you watch, read and listen to",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			cfg = loaded
			return nil
		},
	}

	root.PersistentFlags().String("config-dir", "", "directory for the database and tokens (CONFIG_DIR)")
	root.PersistentFlags().String("store", "", "store driver, bolt or sqlite (STORE_DRIVER)")
	root.PersistentFlags().String("log-level", "", "log level (LOG_LEVEL)")
	_ = viper.BindPFlag("CONFIG_DIR", root.PersistentFlags().Lookup("config-dir"))
	_ = viper.BindPFlag("STORE_DRIVER", root.PersistentFlags().Lookup("store"))
	_ = viper.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	configFn := func() *config.Config { return cfg }
	root.AddCommand(
		newServeCommand(configFn),
		newImportCommand(configFn),
		newTraktCommand(configFn),
	)
	return root
}

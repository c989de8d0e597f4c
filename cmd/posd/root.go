package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smoocho/pos-terminal/internal/config"
	"github.com/smoocho/pos-terminal/internal/logging"
)

// newRootCommand builds the posd CLI. Configuration is environment-driven;
// a .env file next to the binary is honored for development setups.
func newRootCommand() *cobra.Command {
	var cfg *config.Config

	cmd := &cobra.Command{
		Use:           "posd",
		Short:         "Offline-first POS terminal daemon",
		Long:          "posd runs the point-of-sale durability subsystem: the local store, offline operation queue, snapshot sync and backup manager.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			godotenv.Load()
			var err error
			cfg, err = config.Load()
			if err != nil {
				return err
			}
			logging.Init(os.Stderr, cfg.LogLevel)
			return nil
		},
	}

	cfgRef := func() *config.Config { return cfg }
	cmd.AddCommand(newServeCommand(cfgRef))
	cmd.AddCommand(newSyncCommand(cfgRef))
	cmd.AddCommand(newBackupCommand(cfgRef))
	cmd.AddCommand(newExportCommand(cfgRef))
	cmd.AddCommand(newImportCommand(cfgRef))

	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smoocho/pos-terminal/internal/config"
)

func newSyncCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Snapshot synchronization",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "now",
		Short: "Reconcile with the remote immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg(), true)
			if err != nil {
				return err
			}
			defer a.close()

			ran, err := a.reconciler.ForceSync(cmd.Context())
			if err != nil {
				return err
			}
			if !ran {
				fmt.Println("sync skipped: terminal is offline")
				return nil
			}
			fmt.Println("sync completed, lastSync:", a.reconciler.LastSyncTime().Format("2006-01-02 15:04:05"))
			return nil
		},
	})
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smoocho/pos-terminal/internal/config"
)

func newBackupCommand(cfg func() *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Backup management",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Take a backup of the local store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer a.close()

			b, err := a.backups.CreateBackup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("created %s (%d bytes)\n", b.ID, b.Size)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List retained backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer a.close()

			infos, err := a.backups.ListBackups(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("no backups")
				return nil
			}
			for _, info := range infos {
				fmt.Printf("%s  %s  %d bytes\n", info.ID, info.Timestamp.Format("2006-01-02 15:04:05"), info.Size)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "restore <id>",
		Short: "Restore the store from a retained backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.backups.RestoreFromBackup(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("restored", args[0])
			return nil
		},
	})

	return cmd
}

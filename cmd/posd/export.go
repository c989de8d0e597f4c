package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smoocho/pos-terminal/internal/config"
)

func newExportCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Export the store to a checksummed file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.backups.ExportData(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("exported %s (%d bytes, checksum %x)\n", res.Path, res.Size, res.Checksum)
			return nil
		},
	}
}

func newImportCommand(cfg func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Replace the store with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg(), false)
			if err != nil {
				return err
			}
			defer a.close()

			res, err := a.backups.ImportData(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("imported %d products, %d inventory items, %d settings, %d orders\n",
				res.Products, res.Inventory, res.Settings, res.Orders)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup too; this exists for provisioning
a fresh database explicitly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.FormatSuccess("database schema is up to date"))
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

func batchesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batches",
		Short: "Inspect committed case batches",
	}

	cmd.AddCommand(batchesListCmd())
	cmd.AddCommand(batchesShowCmd())
	cmd.AddCommand(batchesArchiveCmd())
	cmd.AddCommand(batchesPurgeCmd())
	return cmd
}

func batchesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List batches, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			limit, _ := cmd.Flags().GetInt("limit")
			batches, err := store.GetBatches(ctx, limit)
			if err != nil {
				return err
			}
			if len(batches) == 0 {
				fmt.Println(cli.FormatWarning("no batches committed yet"))
				return nil
			}

			fmt.Println(cli.TableHeaderStyle.Render(fmt.Sprintf(
				"%-22s %-10s %-10s %6s", "ID", "DATE", "STATUS", "CASES")))
			for _, b := range batches {
				line := fmt.Sprintf("%-22s %-10s %-10s %6d", b.ID, b.DateLabel, b.Status, b.TotalCases)
				if b.Status == model.BatchArchived {
					line = cli.SubtleStyle.Render(line)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "Maximum batches to list")
	return cmd
}

func batchesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <batch-id>",
		Short: "Show one batch and its cases",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			b, err := store.GetBatch(ctx, args[0])
			if err != nil {
				return err
			}

			content := fmt.Sprintf("created: %s\nstatus:  %s\ncases:   %d\nmodel:   %s\n%s",
				b.CreatedAt.Format("2006-01-02 15:04:05"), b.Status, b.TotalCases, b.ModelUsed, b.Summary)
			fmt.Println(cli.RenderBox(b.ID, content))

			cases, err := store.GetCases(ctx, service.CaseFilter{BatchID: b.ID})
			if err != nil {
				return err
			}
			for _, c := range cases {
				fmt.Println(cli.FormatCaseLine(c))
			}
			return nil
		},
	}
}

func batchesPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Delete every batch record (cases are kept; see reset)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := store.PurgeBatches(ctx)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("%d batches removed", n)))
			return nil
		},
	}
}

func batchesArchiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "archive <batch-id>",
		Short: "Archive a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ArchiveBatch(ctx, args[0]); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("batch archived: " + args[0]))
			return nil
		},
	}
}

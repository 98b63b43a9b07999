package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/ledger"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

func ledgerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "ledger",
		Aliases: []string{"ledgers"},
		Short:   "Manage work-order ledger pools",
		Long: `Load, inspect and clear the three ledger pools.

The primary and auxiliary pools are replaced on every load. The incremental
pool merges across loads: resubmitting an order number replaces that order's
block and keeps everything else.`,
	}

	cmd.AddCommand(ledgerLoadCmd())
	cmd.AddCommand(ledgerStatusCmd())
	cmd.AddCommand(ledgerShowCmd())
	cmd.AddCommand(ledgerClearCmd())
	return cmd
}

func parseKindArg(s string) (model.LedgerKind, error) {
	kind, ok := model.ParseLedgerKind(s)
	if !ok {
		return "", fmt.Errorf("unknown ledger pool %q (want primary, auxiliary or incremental)", s)
	}
	return kind, nil
}

func ledgerLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <pool> [file]",
		Short: "Load ledger text into a pool",
		Long:  `Load ledger text from a file, or from stdin when no file is given.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}

			var data []byte
			if len(args) == 2 {
				data, err = os.ReadFile(args[1])
			} else {
				data, err = io.ReadAll(os.Stdin)
			}
			if err != nil {
				return fmt.Errorf("failed to read ledger text: %w", err)
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng := newStorageOnlyEngine(store)
			res, err := eng.LoadLedger(ctx, kind, string(data))
			if err != nil {
				return err
			}

			if kind == model.LedgerIncremental {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"merged into %s pool: %d new, %d updated, %d total orders",
					kind, res.Added, res.Updated, res.Total)))
			} else {
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"replaced %s pool: %d orders", kind, res.Total)))
			}
			return nil
		},
	}
	return cmd
}

func ledgerStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show order counts per ledger pool",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var content string
			for _, kind := range model.LedgerKinds() {
				text, err := store.LoadLedger(ctx, kind)
				if err != nil {
					return err
				}
				state := "empty"
				if text != "" {
					state = fmt.Sprintf("%d orders, %d bytes", ledger.CountOrders(text), len(text))
				}
				content += fmt.Sprintf("%-12s %s\n", kind, state)
			}

			fmt.Println(cli.RenderBox("Ledger pools", content))
			return nil
		},
	}
}

func ledgerShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <pool>",
		Short: "Print a pool's raw ledger text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := parseKindArg(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			text, err := store.LoadLedger(ctx, kind)
			if err != nil {
				return err
			}
			if text == "" {
				fmt.Println(cli.FormatWarning(fmt.Sprintf("%s pool is empty", kind)))
				return nil
			}
			fmt.Println(text)
			return nil
		},
	}
}

func ledgerClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Wipe all three ledger pools",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ClearLedgers(ctx); err != nil {
				return err
			}

			withCases, _ := cmd.Flags().GetBool("cases")
			if withCases {
				n, err := store.PurgeCases(ctx)
				if err != nil {
					return err
				}
				fmt.Println(cli.FormatSuccess(fmt.Sprintf(
					"ledger pools cleared, %d cases removed", n)))
				return nil
			}

			fmt.Println(cli.FormatSuccess("ledger pools cleared"))
			return nil
		},
	}
	cmd.Flags().Bool("cases", false, "Also delete every case record")
	return cmd
}

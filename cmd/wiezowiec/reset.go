package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
)

func resetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all cases, batches and the autopilot job",
		Long: `Reset wipes the case queue, every batch and any persisted autopilot
progress. Ledger pools are kept unless --ledgers is given.

This is destructive: operator assignments and completion history are lost.`,
		RunE: runReset,
	}

	cmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
	cmd.Flags().Bool("ledgers", false, "Also clear the ledger pools")
	return cmd
}

func runReset(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	force, _ := cmd.Flags().GetBool("force")
	withLedgers, _ := cmd.Flags().GetBool("ledgers")

	store, err := initStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	cases, err := store.GetAllCases(ctx)
	if err != nil {
		return err
	}

	if !force {
		fmt.Printf("This will delete %d cases and all batches.\n", len(cases))
		if withLedgers {
			fmt.Println("The ledger pools will be cleared too.")
		}
		fmt.Print("\nAre you sure you want to continue? [y/N]: ")

		reader := bufio.NewReader(os.Stdin)
		response, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if strings.ToLower(strings.TrimSpace(response)) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	nCases, err := store.PurgeCases(ctx)
	if err != nil {
		return err
	}
	nBatches, err := store.PurgeBatches(ctx)
	if err != nil {
		return err
	}
	if err := store.ClearAutopilotJob(ctx); err != nil {
		return err
	}
	if withLedgers {
		if err := store.ClearLedgers(ctx); err != nil {
			return err
		}
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf(
		"reset complete: %d cases and %d batches removed", nCases, nBatches)))
	return nil
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/engine"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Score the order pool and print a prioritized report",
		Long: `Generate a priority report for the incremental order pool.

Orders already scored and not yet completed keep their previous score;
only new and completed orders are sent to the scoring service. Use
--commit to reconcile the result into the active case batch.`,
		RunE: runGenerate,
	}

	cmd.Flags().Bool("commit", false, "Commit the report as the new active batch")
	cmd.Flags().Bool("force", false, "Rescore every pool order, ignoring reusable results")

	_ = viper.BindPFlag("generate.commit", cmd.Flags().Lookup("commit"))
	_ = viper.BindPFlag("generate.force", cmd.Flags().Lookup("force"))

	return cmd
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	eng, cleanup, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Println(cli.FormatTitle("Scoring order pool..."))

	var bar *progressbar.ProgressBar
	rep, err := eng.GenerateReport(ctx, engine.GenerateOptions{
		Force: viper.GetBool("generate.force"),
		OnChunk: func(done, total int) {
			if bar == nil {
				bar = newChunkBar(total)
			}
			if err := bar.Set(done); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		},
	})
	if err != nil {
		return err
	}
	if bar != nil {
		fmt.Println()
	}

	printReport(rep)

	if !viper.GetBool("generate.commit") {
		fmt.Println(cli.FormatWarning("dry run; use --commit to update the case queue"))
		return nil
	}

	modelUsed := viper.GetString("scorer.model")
	if modelUsed == "" {
		modelUsed = "gemini-2.5-pro"
	}
	batch, summary, err := eng.CommitBatch(ctx, rep, modelUsed)
	if err != nil {
		return err
	}

	fmt.Println(cli.RenderBox("Batch "+batch.ID, fmt.Sprintf(
		"added:       %d\nreplaced:    %d\nreactivated: %d\nskipped:     %d",
		summary.Added, summary.Replaced, summary.Reactivated, summary.Skipped)))
	return nil
}

func newChunkBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Scoring chunks...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// printReport lists cases grouped per operator pool, model order preserved.
func printReport(rep *engine.Report) {
	byGroup := make(map[model.Group][]model.CaseRecord)
	for _, c := range rep.Cases {
		byGroup[c.Group] = append(byGroup[c.Group], c)
	}

	for _, g := range model.Groups() {
		cases := byGroup[g]
		if len(cases) == 0 {
			continue
		}
		fmt.Println(cli.FormatGroupBanner(g))
		for _, c := range cases {
			fmt.Println(cli.FormatCaseLine(c))
		}
		fmt.Println()
	}

	fmt.Printf("%d cases (%d rescored, %d carried forward)\n",
		len(rep.Cases), rep.Recomputed, rep.Reused)
	if len(rep.FailedOrders) > 0 {
		fmt.Println(cli.FormatError(fmt.Sprintf(
			"%d orders failed to score: %v", len(rep.FailedOrders), rep.FailedOrders)))
	}
}

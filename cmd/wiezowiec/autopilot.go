package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/engine"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
)

func autopilotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autopilot",
		Short: "Run a resumable chunked scoring job",
		Long: `Autopilot scores the order pool chunk by chunk, committing each chunk
as it completes. Progress is persisted, so an interrupted or paused run
resumes from the last completed chunk instead of starting over.`,
	}

	cmd.AddCommand(autopilotStartCmd())
	cmd.AddCommand(autopilotResumeCmd())
	cmd.AddCommand(autopilotPauseCmd())
	cmd.AddCommand(autopilotStatusCmd())
	cmd.AddCommand(autopilotClearCmd())
	return cmd
}

func autopilotRun(cmd *cobra.Command, resume bool) error {
	ctx := cmd.Context()

	eng, cleanup, err := initEngine(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	force, _ := cmd.Flags().GetBool("force")
	opts := engine.GenerateOptions{
		Force: force,
		OnChunk: func(done, total int) {
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("chunk %d/%d done", done, total)))
		},
	}

	var job *model.AutopilotJob
	if resume {
		job, err = eng.ResumeAutopilot(ctx, opts)
	} else {
		job, err = eng.StartAutopilot(ctx, opts)
	}
	if err != nil {
		return err
	}

	printJob(job)
	return nil
}

func autopilotStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new autopilot run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return autopilotRun(cmd, false)
		},
	}
	cmd.Flags().Bool("force", false, "Rescore every pool order, ignoring reusable results")
	return cmd
}

func autopilotResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a paused or interrupted run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return autopilotRun(cmd, true)
		},
	}
	cmd.Flags().Bool("force", false, "Rescore every pool order, ignoring reusable results")
	return cmd
}

func autopilotPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause",
		Short: "Request a cooperative stop after the current chunk",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			eng := newStorageOnlyEngine(store)
			if err := eng.PauseAutopilot(ctx); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("pause requested; the runner stops after the current chunk"))
			return nil
		},
	}
}

func autopilotStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted job state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			job, err := store.GetAutopilotJob(ctx)
			if err != nil {
				return err
			}
			printJob(job)
			return nil
		},
	}
}

func autopilotClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the persisted job, abandoning queued work",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.ClearAutopilotJob(ctx); err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess("autopilot job cleared"))
			return nil
		},
	}
}

func printJob(job *model.AutopilotJob) {
	content := fmt.Sprintf("state:     %s\nprocessed: %d/%d\nremaining: %d",
		job.State, job.Processed, job.Total, job.Remaining())
	if job.BatchID != "" {
		content += "\nbatch:     " + job.BatchID
	}
	if len(job.FailedOrders) > 0 {
		content += fmt.Sprintf("\nfailed:    %v", job.FailedOrders)
	}
	fmt.Println(cli.RenderBox("Autopilot", content))
}

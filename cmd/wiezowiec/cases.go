package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/szturchaczysko-cpu/wiezowiec/internal/cli"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/model"
	"github.com/szturchaczysko-cpu/wiezowiec/internal/service"
)

func casesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cases",
		Short: "List and work the case queue",
		Long: `List cases and drive their lifecycle: free cases are assigned to an
operator, started, and completed. Completed orders become eligible for
rescoring on the next generate run.`,
	}

	cmd.AddCommand(casesListCmd())
	cmd.AddCommand(casesShowCmd())
	cmd.AddCommand(caseTransitionCmd("assign", "Assign a free case to an operator", model.StatusAssigned, true))
	cmd.AddCommand(caseTransitionCmd("start", "Mark an assigned case as in progress", model.StatusInProgress, false))
	cmd.AddCommand(caseTransitionCmd("complete", "Mark an in-progress case as completed", model.StatusCompleted, false))
	return cmd
}

func casesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cases, highest score first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.CaseFilter{}
			if v, _ := cmd.Flags().GetString("group"); v != "" {
				g, ok := model.ParseGroup(v)
				if !ok {
					return fmt.Errorf("unknown group %q (want DE, FR or UKPL)", v)
				}
				filter.Group = g
			}
			if v, _ := cmd.Flags().GetString("status"); v != "" {
				st := model.CaseStatus(v)
				if !st.Valid() {
					return fmt.Errorf("unknown status %q", v)
				}
				filter.Status = st
			}
			filter.AssignedTo, _ = cmd.Flags().GetString("operator")
			filter.Limit, _ = cmd.Flags().GetInt("limit")

			cases, err := store.GetCases(ctx, filter)
			if err != nil {
				return err
			}
			if len(cases) == 0 {
				fmt.Println(cli.FormatWarning("no cases match"))
				return nil
			}
			for _, c := range cases {
				fmt.Println(cli.FormatCaseLine(c))
			}
			return nil
		},
	}
	cmd.Flags().String("group", "", "Filter by operator group (DE, FR, UKPL)")
	cmd.Flags().String("status", "", "Filter by status")
	cmd.Flags().String("operator", "", "Filter by assignee")
	cmd.Flags().Int("limit", 0, "Maximum cases to list")
	return cmd
}

func casesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <case-id>",
		Short: "Show one case with its source ledger block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			c, err := store.GetCase(ctx, args[0])
			if err != nil {
				return err
			}

			content := fmt.Sprintf("order:  %s\nscore:  %d %s %s\ngroup:  %s\nstatus: %s",
				c.OrderNumber, c.Score, c.PriorityIcon, c.PriorityLabel, c.Group, c.Status)
			if c.CommercialIndex != "" {
				content += "\nindex:  " + c.CommercialIndex
			}
			if c.AssignedTo != "" {
				content += "\nowner:  " + c.AssignedTo
			}
			content += "\n\n" + c.SourceLine
			fmt.Println(cli.RenderBox(c.ID, content))
			return nil
		},
	}
}

// caseTransitionCmd builds the assign/start/complete commands. All three
// validate the transition before writing so an operator cannot, say,
// complete a case nobody started.
func caseTransitionCmd(use, short string, target model.CaseStatus, needsOperator bool) *cobra.Command {
	usage := use + " <case-id>"
	if needsOperator {
		usage += " <operator>"
	}
	nargs := 1
	if needsOperator {
		nargs = 2
	}

	return &cobra.Command{
		Use:   usage,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			c, err := store.GetCase(ctx, args[0])
			if err != nil {
				return err
			}
			if !c.Status.CanTransition(target) {
				return fmt.Errorf("case %s is %s, cannot move to %s", c.ID, c.Status, target)
			}

			assignee := c.AssignedTo
			if needsOperator {
				assignee = args[1]
			}
			if err := store.UpdateCaseStatus(ctx, c.ID, target, assignee); err != nil {
				return err
			}

			fmt.Println(cli.FormatSuccess(fmt.Sprintf(
				"case %s (order %s) is now %s", c.ID, c.OrderNumber, target)))
			return nil
		},
	}
}

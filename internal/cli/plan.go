package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewPlanCmd создаёт группу команд для просмотра планов workflow.
func NewPlanCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect workflow plans",
	}

	cmd.AddCommand(
		newPlanListCmd(clientFn, outputFn),
		newPlanShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newPlanListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workflow plans",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plans, err := client.ListPlans()
			if err != nil {
				return err
			}

			headers := []string{"TYPE", "STEPS", "DESCRIPTION"}
			rows := make([][]string, len(plans))
			for i, p := range plans {
				rows[i] = []string{p.WorkflowType, strconv.Itoa(len(p.Steps)), p.Description}
			}

			out.Print(headers, rows, plans)
			return nil
		},
	}
}

func newPlanShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show TYPE",
		Short: "Show plan steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			plan, err := client.GetPlan(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP_ID", "UNIT", "MAX_RETRIES", "BACKOFF_MS", "TIMEOUT_MS", "OPTIONAL"}
			rows := make([][]string, len(plan.Steps))
			for i, s := range plan.Steps {
				rows[i] = []string{
					s.StepID,
					s.UnitName,
					strconv.Itoa(s.MaxRetries),
					strconv.Itoa(s.BackoffMs),
					strconv.Itoa(s.TimeoutMs),
					strconv.FormatBool(s.Optional),
				}
			}

			out.Print(headers, rows, plan)
			return nil
		},
	}
}

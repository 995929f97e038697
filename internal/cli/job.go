package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage jobs",
	}

	cmd.AddCommand(
		newJobListCmd(clientFn, outputFn),
		newJobSubmitCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobStateCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowType string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(ListJobsOpts{
				WorkflowType: workflowType,
				Status:       status,
				Limit:        limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "TYPE", "STATUS", "PROGRESS", "CREATED"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{j.ID, j.WorkflowType, j.Status, Progress(j.Progress), Timestamp(j.CreatedAt)}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowType, "type", "", "Filter by workflow type")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var payloadJSON string
	var payloadKVs []string
	var priority int
	var delayMs int
	var orgID string
	var userID string

	cmd := &cobra.Command{
		Use:   "submit WORKFLOW_TYPE",
		Short: "Submit a new job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateJobRequest{
				WorkflowType: args[0],
				Priority:     priority,
				DelayMs:      delayMs,
				OrgID:        orgID,
				UserID:       userID,
			}

			if payloadJSON != "" {
				if err := json.Unmarshal([]byte(payloadJSON), &req.Payload); err != nil {
					return fmt.Errorf("invalid payload JSON: %w", err)
				}
			}
			for _, kv := range payloadKVs {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid payload format %q, expected KEY=VALUE", kv)
				}
				if req.Payload == nil {
					req.Payload = make(map[string]any)
				}
				req.Payload[parts[0]] = parts[1]
			}

			job, err := client.CreateJob(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", job.ID))
			out.Print(
				[]string{"ID", "TYPE", "STATUS", "PRIORITY", "CREATED"},
				[][]string{{job.ID, job.WorkflowType, job.Status, strconv.Itoa(job.Priority), Timestamp(job.CreatedAt)}},
				job,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&payloadJSON, "payload", "", "Job payload as a JSON object")
	cmd.Flags().StringSliceVar(&payloadKVs, "set", nil, "Payload values as KEY=VALUE (repeatable)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Delivery priority (0-9)")
	cmd.Flags().IntVar(&delayMs, "delay-ms", 0, "Delay first delivery by N milliseconds")
	cmd.Flags().StringVar(&orgID, "org", "", "Organization ID")
	cmd.Flags().StringVar(&userID, "user", "", "User ID")

	return cmd
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "TYPE", "STATUS", "PROGRESS", "ERROR", "CREATED"},
				[][]string{{job.ID, job.WorkflowType, job.Status, Progress(job.Progress), job.Error, Timestamp(job.CreatedAt)}},
				job,
			)
			return nil
		},
	}
}

func newJobStateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "state ID",
		Short: "Show step-by-step job progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			state, err := client.GetJobState(args[0])
			if err != nil {
				return err
			}

			headers := []string{"STEP_ID", "UNIT", "STATUS", "RETRIES", "ERROR"}
			rows := make([][]string, len(state.StepResults))
			for i, r := range state.StepResults {
				rows[i] = []string{r.StepID, r.UnitName, r.Status, strconv.Itoa(r.RetryCount), r.Error}
			}

			out.Success(fmt.Sprintf("Job %s: %s (%d%%, step %d/%d)",
				state.JobID, state.Status, state.Progress, state.CurrentStepIndex, state.TotalSteps))
			out.Print(headers, rows, state)
			return nil
		},
	}
}

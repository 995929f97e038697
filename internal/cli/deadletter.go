package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewDeadLetterCmd создаёт группу команд для работы с dead letters.
func NewDeadLetterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "deadletter",
		Aliases: []string{"dlq"},
		Short:   "Inspect and replay dead letters",
	}

	cmd.AddCommand(
		newDeadLetterListCmd(clientFn, outputFn),
		newDeadLetterShowCmd(clientFn, outputFn),
		newDeadLetterRequeueCmd(clientFn, outputFn),
	)

	return cmd
}

func newDeadLetterListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead letters",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			letters, err := client.ListDeadLetters(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "JOB_ID", "TYPE", "ATTEMPTS", "REQUEUED", "CREATED"}
			rows := make([][]string, len(letters))
			for i, dl := range letters {
				requeued := ""
				if dl.RequeuedJobID != "" {
					requeued = dl.RequeuedJobID
				}
				rows[i] = []string{dl.ID, dl.JobID, dl.WorkflowType, strconv.Itoa(dl.AttemptsMade), requeued, Timestamp(dl.CreatedAt)}
			}

			out.Print(headers, rows, letters)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newDeadLetterShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show dead letter details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			dl, err := client.GetDeadLetter(args[0])
			if err != nil {
				return err
			}

			out.Print(
				[]string{"ID", "JOB_ID", "TYPE", "ATTEMPTS", "REASON"},
				[][]string{{dl.ID, dl.JobID, dl.WorkflowType, strconv.Itoa(dl.AttemptsMade), dl.Reason}},
				dl,
			)
			return nil
		},
	}
}

func newDeadLetterRequeueCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue ID",
		Short: "Requeue a dead letter as a fresh job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			result, err := client.RequeueDeadLetter(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Dead letter requeued, new job: %s", result.NewJobID))
			out.Print(
				[]string{"DEAD_LETTER_ID", "NEW_JOB_ID"},
				[][]string{{result.DeadLetterID, result.NewJobID}},
				result,
			)
			return nil
		},
	}
}

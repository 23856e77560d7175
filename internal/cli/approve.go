package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/taskmatch/pkg/model"
)

func newApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve <task_id>",
		Short: "Approve a task's pending assignment proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]

			resp, err := client.Post("/api/v1/tasks/"+taskID+"/approve", nil)
			if err != nil {
				return fmt.Errorf("approve: %w", err)
			}

			var task model.Task
			if err := json.Unmarshal(resp.Data, &task); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Task %s assigned to %s\n", task.ID, task.AssignedWorkerID)
			return nil
		},
	}
}

func newRejectCmd() *cobra.Command {
	var flagReason string

	cmd := &cobra.Command{
		Use:   "reject <task_id>",
		Short: "Reject a task's pending assignment proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			taskID := args[0]

			body := map[string]string{"reason": flagReason}
			resp, err := client.Post("/api/v1/tasks/"+taskID+"/reject", body)
			if err != nil {
				return fmt.Errorf("reject: %w", err)
			}

			var task model.Task
			if err := json.Unmarshal(resp.Data, &task); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Task %s proposal rejected (%d rejection(s) recorded)\n", task.ID, len(task.Rejections))
			return nil
		},
	}

	cmd.Flags().StringVar(&flagReason, "reason", "", "Why the proposal was declined")
	return cmd
}

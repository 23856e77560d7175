package cli

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/me/taskmatch/pkg/model"
)

func newTasksCmd() *cobra.Command {
	var flagStatus string

	cmd := &cobra.Command{
		Use:   "tasks <tenant_id>",
		Short: "List a tenant's tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := args[0]

			path := "/api/v1/tenants/" + tenantID + "/tasks"
			if flagStatus != "" {
				path += "?status=" + url.QueryEscape(flagStatus)
			}

			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			var tasks []model.Task
			if err := json.Unmarshal(resp.Data, &tasks); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(tasks) == 0 {
				fmt.Println("No tasks found.")
				return nil
			}

			fmt.Printf("%-24s  %-12s  %-8s  %-16s  %s\n", "ID", "STATUS", "PRIORITY", "WORKER", "TITLE")
			fmt.Printf("%-24s  %-12s  %-8s  %-16s  %s\n", "----", "------", "--------", "------", "-----")
			for _, task := range tasks {
				worker := task.AssignedWorkerID
				if worker == "" && task.Pending != nil {
					worker = task.Pending.WorkerID + " (pending)"
				}
				fmt.Printf("%-24s  %-12s  %-8s  %-16s  %s\n", task.ID, task.Status, task.Priority, worker, task.Title)
			}

			if resp.Pagination != nil && resp.Pagination.HasMore {
				fmt.Printf("\n(%d of %d shown)\n", len(tasks), resp.Pagination.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagStatus, "status", "", "Filter by status (UNASSIGNED, ASSIGNED, IN_PROGRESS, COMPLETED, CANCELLED)")
	return cmd
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/me/taskmatch/pkg/model"
)

func newTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <tenant_id>",
		Short: "Run an assignment batch for a tenant now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID := args[0]

			resp, err := client.Post("/api/v1/tenants/"+tenantID+"/assignments/run", nil)
			if err != nil {
				return fmt.Errorf("trigger run: %w", err)
			}

			var res model.BatchResult
			if err := json.Unmarshal(resp.Data, &res); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			fmt.Printf("Tenant:   %s\n", tenantID)
			fmt.Printf("  Tasks:    %d\n", res.TotalTasks)
			fmt.Printf("  Assigned: %d\n", res.Assigned)
			fmt.Printf("  Proposed: %d\n", res.Proposed)
			fmt.Printf("  Skipped:  %d\n", res.Skipped)
			if res.Failed > 0 {
				fmt.Printf("  Failed:   %d\n", res.Failed)
			}
			for _, id := range res.TaskIDs {
				fmt.Printf("    - %s\n", id)
			}
			return nil
		},
	}
}

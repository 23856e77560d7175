package cli

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/me/taskmatch/pkg/model"
)

func newRunsCmd() *cobra.Command {
	var (
		flagJob    string
		flagTenant string
		flagLimit  int
	)

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the assignment execution history",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if flagJob != "" {
				q.Set("job", flagJob)
			}
			if flagTenant != "" {
				q.Set("tenant_id", flagTenant)
			}
			if flagLimit > 0 {
				q.Set("limit", strconv.Itoa(flagLimit))
			}
			path := "/api/v1/runs"
			if enc := q.Encode(); enc != "" {
				path += "?" + enc
			}

			resp, err := client.Get(path)
			if err != nil {
				return fmt.Errorf("list runs: %w", err)
			}

			var runs []model.RunRecord
			if err := json.Unmarshal(resp.Data, &runs); err != nil {
				return fmt.Errorf("parse response: %w", err)
			}

			if len(runs) == 0 {
				fmt.Println("No runs found.")
				return nil
			}

			fmt.Printf("%-20s  %-10s  %-10s  %-16s  %-10s  %s\n", "JOB", "TENANT", "STATUS", "STARTED", "DURATION", "PROCESSED")
			fmt.Printf("%-20s  %-10s  %-10s  %-16s  %-10s  %s\n", "---", "------", "------", "-------", "--------", "---------")
			for _, run := range runs {
				processed := fmt.Sprintf("%d/%d", run.ProcessedCount, run.TargetCount)
				if run.FailedCount > 0 {
					processed += fmt.Sprintf(" (%d failed)", run.FailedCount)
				}
				fmt.Printf("%-20s  %-10s  %-10s  %-16s  %-10s  %s\n",
					run.JobName, run.TenantID, run.Status,
					humanize.Time(run.StartedAt),
					fmt.Sprintf("%dms", run.DurationMS),
					processed,
				)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&flagJob, "job", "", "Filter by job name")
	cmd.Flags().StringVar(&flagTenant, "tenant", "", "Filter by tenant")
	cmd.Flags().IntVar(&flagLimit, "limit", 0, "Max records to show")
	return cmd
}

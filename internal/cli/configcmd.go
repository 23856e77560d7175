package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/me/taskmatch/pkg/model"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change a tenant's auto-assignment configuration",
	}
	cmd.AddCommand(newConfigShowCmd(), newConfigEnableCmd(), newConfigDisableCmd())
	return cmd
}

func fetchConfig(tenantID string) (*model.AgentConfig, error) {
	resp, err := client.Get("/api/v1/tenants/" + tenantID + "/agent-config")
	if err != nil {
		return nil, fmt.Errorf("get agent config: %w", err)
	}
	var cfg model.AgentConfig
	if err := json.Unmarshal(resp.Data, &cfg); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &cfg, nil
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <tenant_id>",
		Short: "Show a tenant's configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := fetchConfig(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Tenant: %s\n", cfg.TenantID)
			fmt.Printf("  Enabled:            %t\n", cfg.Enabled)
			fmt.Printf("  Requires approval:  %t\n", cfg.RequiresApproval)
			fmt.Printf("  Frequency:          %dm\n", cfg.FrequencyMinutes)
			fmt.Printf("  Weights:            skill=%.2f avail=%.2f prox=%.2f load=%.2f\n",
				cfg.Weights.SkillMatch, cfg.Weights.Availability, cfg.Weights.Proximity, cfg.Weights.Workload)
			fmt.Printf("  Respect max load:   %t (cap %d)\n", cfg.RespectMaxWorkload, cfg.EffectiveMaxTasks())
			if len(cfg.Roles) > 0 {
				fmt.Printf("  Roles:              %s\n", strings.Join(cfg.Roles, ", "))
			}
			if len(cfg.SkillPriority) > 0 {
				fmt.Printf("  Skill priority:     %s\n", strings.Join(cfg.SkillPriority, " > "))
			}
			return nil
		},
	}
}

func setEnabled(tenantID string, enabled bool) error {
	cfg, err := fetchConfig(tenantID)
	if err != nil {
		// A tenant without stored configuration starts from the defaults.
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrNotFound {
			return err
		}
		cfg = model.DefaultAgentConfig(tenantID)
	}
	cfg.Enabled = enabled
	if _, err := client.Put("/api/v1/tenants/"+tenantID+"/agent-config", cfg); err != nil {
		return fmt.Errorf("update agent config: %w", err)
	}
	if enabled {
		fmt.Printf("Auto-assignment enabled for %s (every %dm)\n", tenantID, cfg.FrequencyMinutes)
	} else {
		fmt.Printf("Auto-assignment disabled for %s\n", tenantID)
	}
	return nil
}

func newConfigEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <tenant_id>",
		Short: "Enable auto-assignment for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setEnabled(args[0], true)
		},
	}
}

func newConfigDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <tenant_id>",
		Short: "Disable auto-assignment for a tenant",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setEnabled(args[0], false)
		},
	}
}

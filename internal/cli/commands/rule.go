package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/targetspro/adwatch/internal/api/client"
	"github.com/targetspro/adwatch/internal/models"
)

func NewRuleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Short:   "Alert rule management commands",
		Aliases: []string{"rules", "r"},
	}

	cmd.AddCommand(newRuleListCommand())
	cmd.AddCommand(newRuleCreateCommand())
	cmd.AddCommand(newRuleDeleteCommand())
	cmd.AddCommand(newRuleEnableCommand())
	cmd.AddCommand(newRuleDisableCommand())

	return cmd
}

func newRuleListCommand() *cobra.Command {
	var active string

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alert rules",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			rules, err := c.ListRules(active)
			if err != nil {
				return fmt.Errorf("failed to list rules: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tACCOUNT\tCOOLDOWN\tACTIVE")

			for _, rule := range rules {
				account := "all"
				if rule.AdAccountID != nil {
					account = fmt.Sprintf("%d", *rule.AdAccountID)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%dm\t%v\n",
					rule.ID,
					rule.RuleType,
					rule.Severity,
					account,
					rule.CooldownMinutes,
					rule.IsActive,
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&active, "active", "", "Filter by active state (true/false)")

	return cmd
}

func newRuleCreateCommand() *cobra.Command {
	var (
		name      string
		ruleType  string
		severity  string
		accountID uint
		cooldown  int
		configRaw string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an alert rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			rule := models.AlertRule{
				Name:            name,
				RuleType:        models.RuleType(ruleType),
				Severity:        models.Severity(severity),
				CooldownMinutes: cooldown,
				IsActive:        true,
			}
			if accountID != 0 {
				rule.AdAccountID = &accountID
			}
			if configRaw != "" {
				var config models.JSONMap
				if err := json.Unmarshal([]byte(configRaw), &config); err != nil {
					return fmt.Errorf("invalid config JSON: %v", err)
				}
				rule.Config = config
			}

			if err := c.CreateRule(&rule); err != nil {
				return fmt.Errorf("failed to create rule: %v", err)
			}

			fmt.Println("Rule created")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Rule name")
	cmd.Flags().StringVar(&ruleType, "type", "", "Rule type (balance_threshold/spend_spike/time_to_depletion/zero_spend/account_status_change)")
	cmd.Flags().StringVar(&severity, "severity", "warning", "Alert severity (info/warning/critical/emergency)")
	cmd.Flags().UintVar(&accountID, "account", 0, "Ad account ID (omit for an org-wide rule)")
	cmd.Flags().IntVar(&cooldown, "cooldown", 0, "Cooldown minutes between repeat alerts (0 uses the default)")
	cmd.Flags().StringVar(&configRaw, "config", "", "Rule config as JSON, e.g. '{\"threshold_amount\": 100}'")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newRuleDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [rule_id]",
		Short: "Delete an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DeleteRule(args[0]); err != nil {
				return fmt.Errorf("failed to delete rule: %v", err)
			}

			fmt.Printf("Rule %s deleted\n", args[0])
			return nil
		},
	}
}

func newRuleEnableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "enable [rule_id]",
		Short: "Enable an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.EnableRule(args[0]); err != nil {
				return fmt.Errorf("failed to enable rule: %v", err)
			}

			fmt.Printf("Rule %s enabled\n", args[0])
			return nil
		},
	}
}

func newRuleDisableCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "disable [rule_id]",
		Short: "Disable an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DisableRule(args[0]); err != nil {
				return fmt.Errorf("failed to disable rule: %v", err)
			}

			fmt.Printf("Rule %s disabled\n", args[0])
			return nil
		},
	}
}

package commands

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/targetspro/adwatch/internal/api/client"
)

func NewAlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alert",
		Short:   "Alert management commands",
		Aliases: []string{"alerts", "a"},
	}

	cmd.AddCommand(newAlertListCommand())
	cmd.AddCommand(newAlertAcknowledgeCommand())
	cmd.AddCommand(newAlertResolveCommand())
	cmd.AddCommand(newAlertDismissCommand())
	cmd.AddCommand(newAlertDispatchCommand())
	cmd.AddCommand(newAlertEscalateCommand())
	cmd.AddCommand(newAlertDeliveriesCommand())

	return cmd
}

func newAlertListCommand() *cobra.Command {
	var (
		status   string
		severity string
		limit    int
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alerts",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			alerts, err := c.ListAlerts(status, severity, limit)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tSTATUS\tTITLE\tCREATED")

			for _, alert := range alerts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					alert.ID,
					alert.Severity,
					alert.Status,
					alert.Title,
					alert.CreatedAt.Format(time.RFC3339),
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by alert status (pending/acknowledged/resolved/dismissed)")
	cmd.Flags().StringVar(&severity, "severity", "", "Filter by severity (info/warning/critical/emergency)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of alerts to return")

	return cmd
}

func newAlertAcknowledgeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "acknowledge [alert_id]",
		Short:   "Acknowledge an alert",
		Aliases: []string{"ack"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.AcknowledgeAlert(args[0]); err != nil {
				return fmt.Errorf("failed to acknowledge alert: %v", err)
			}

			fmt.Printf("Alert %s acknowledged\n", args[0])
			return nil
		},
	}
}

func newAlertResolveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve [alert_id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.ResolveAlert(args[0]); err != nil {
				return fmt.Errorf("failed to resolve alert: %v", err)
			}

			fmt.Printf("Alert %s resolved\n", args[0])
			return nil
		},
	}
}

func newAlertDismissCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss [alert_id]",
		Short: "Dismiss an alert without resolving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DismissAlert(args[0]); err != nil {
				return fmt.Errorf("failed to dismiss alert: %v", err)
			}

			fmt.Printf("Alert %s dismissed\n", args[0])
			return nil
		},
	}
}

func newAlertDispatchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dispatch [alert_id]",
		Short: "Re-send an alert's notifications",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			dispatched, failed, err := c.DispatchAlert(args[0])
			if err != nil {
				return fmt.Errorf("failed to dispatch alert: %v", err)
			}

			fmt.Printf("Alert %s: %d dispatched, %d failed\n", args[0], dispatched, failed)
			return nil
		},
	}
}

func newAlertEscalateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "escalate",
		Short: "Run one escalation sweep over stale pending alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			escalated, err := c.EscalateAlerts()
			if err != nil {
				return fmt.Errorf("failed to escalate alerts: %v", err)
			}

			fmt.Printf("%d alerts escalated\n", escalated)
			return nil
		},
	}
}

func newAlertDeliveriesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "deliveries [alert_id]",
		Short: "Show the delivery audit trail for an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			deliveries, err := c.ListDeliveries(args[0])
			if err != nil {
				return fmt.Errorf("failed to list deliveries: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tCHANNEL\tRECIPIENT\tSTATUS\tERROR")

			for _, d := range deliveries {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					d.ID,
					d.ChannelType,
					d.Recipient,
					d.Status,
					d.ErrorMessage,
				)
			}

			return w.Flush()
		},
	}
}

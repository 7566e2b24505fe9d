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

func NewChannelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "channel",
		Short:   "Notification channel management commands",
		Aliases: []string{"channels", "ch"},
	}

	cmd.AddCommand(newChannelListCommand())
	cmd.AddCommand(newChannelCreateCommand())
	cmd.AddCommand(newChannelDeleteCommand())

	return cmd
}

func newChannelListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Short:   "List notification channels",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			channels, err := c.ListChannels()
			if err != nil {
				return fmt.Errorf("failed to list channels: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tMIN SEVERITY\tQUIET HOURS\tENABLED")

			for _, ch := range channels {
				quiet := "-"
				if ch.ActiveHours != nil {
					quiet = fmt.Sprintf("%s-%s", ch.ActiveHours.Start, ch.ActiveHours.End)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%v\n",
					ch.ID,
					ch.ChannelType,
					ch.MinSeverity,
					quiet,
					ch.IsEnabled,
				)
			}

			return w.Flush()
		},
	}
}

func newChannelCreateCommand() *cobra.Command {
	var (
		name        string
		channelType string
		minSeverity string
		configRaw   string
		quietStart  string
		quietEnd    string
		timezone    string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a notification channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			channel := models.NotificationChannel{
				Name:        name,
				ChannelType: models.ChannelType(channelType),
				MinSeverity: models.Severity(minSeverity),
				IsEnabled:   true,
			}
			if configRaw != "" {
				var config models.JSONMap
				if err := json.Unmarshal([]byte(configRaw), &config); err != nil {
					return fmt.Errorf("invalid config JSON: %v", err)
				}
				channel.Config = config
			}
			if quietStart != "" || quietEnd != "" {
				channel.ActiveHours = &models.TimeWindow{
					Start:    quietStart,
					End:      quietEnd,
					Timezone: timezone,
				}
			}

			if err := c.CreateChannel(&channel); err != nil {
				return fmt.Errorf("failed to create channel: %v", err)
			}

			fmt.Println("Channel created")
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Channel name")
	cmd.Flags().StringVar(&channelType, "type", "", "Channel type (email/telegram/whatsapp/webhook)")
	cmd.Flags().StringVar(&minSeverity, "min-severity", "info", "Minimum severity delivered through this channel")
	cmd.Flags().StringVar(&configRaw, "config", "", "Channel config as JSON, e.g. '{\"recipients\": [\"ops@example.com\"]}'")
	cmd.Flags().StringVar(&quietStart, "quiet-start", "", "Quiet hours start (HH:MM)")
	cmd.Flags().StringVar(&quietEnd, "quiet-end", "", "Quiet hours end (HH:MM)")
	cmd.Flags().StringVar(&timezone, "timezone", "", "Quiet hours timezone (defaults to the org timezone)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("type")

	return cmd
}

func newChannelDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [channel_id]",
		Short: "Delete a notification channel",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			if err := c.DeleteChannel(args[0]); err != nil {
				return fmt.Errorf("failed to delete channel: %v", err)
			}

			fmt.Printf("Channel %s deleted\n", args[0])
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/targetspro/adwatch/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "adwatch",
	Short: "adwatch CLI - ad account alerting from the terminal",
	Long: `adwatch CLI is a command-line client for the adwatch alert server.
It manages alert rules and notification channels, and lets operators
inspect, acknowledge and re-dispatch alerts.`,
}

func init() {
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "adwatch server base URL")
	rootCmd.PersistentFlags().String("token", "", "API token (overrides ADWATCH_TOKEN)")
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
	viper.SetEnvPrefix("ADWATCH")
	viper.AutomaticEnv()

	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewAlertCommand())
	rootCmd.AddCommand(commands.NewRuleCommand())
	rootCmd.AddCommand(commands.NewChannelCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

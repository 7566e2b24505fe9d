package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/targetspro/adwatch/internal/api/client"
)

func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and print an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.NewClient()
			if err != nil {
				return fmt.Errorf("failed to create client: %v", err)
			}

			token, err := c.Login(username, password)
			if err != nil {
				return fmt.Errorf("login failed: %v", err)
			}

			// Print the token so it can be exported or saved to the config file.
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")

	return cmd
}

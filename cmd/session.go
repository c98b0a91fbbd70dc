package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionTTLHours int

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Session administration",
}

var sessionCreateCmd = &cobra.Command{
	Use:   "create <user-id>",
	Short: "Mint a session token for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initEnv(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer env.Close()

		token, err := env.store.CreateSession(cmd.Context(), args[0], time.Duration(sessionTTLHours)*time.Hour)
		if err != nil {
			return err
		}

		fmt.Println(token)
		return nil
	},
}

func init() {
	sessionCreateCmd.Flags().IntVar(&sessionTTLHours, "ttl-hours", 24*7, "session lifetime in hours")
	sessionCmd.AddCommand(sessionCreateCmd)
	rootCmd.AddCommand(sessionCmd)
}

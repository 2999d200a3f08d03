package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users and show contribution scores",
}

var userAddCmd = &cobra.Command{
	Use:   "add <login>",
	Short: "Add a user; adding an existing login is a no-op",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := s.EnsureUser(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "User #%d %s\n", u.ID, u.Login)
		return nil
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show [login]",
	Short: "Show a user's contribution and lists (default: the acting user)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		user, err := actingUser(ctx, s)
		if len(args) == 1 {
			user, err = s.UserByLogin(ctx, args[0])
		}
		if err != nil {
			return err
		}
		owned, err := s.Lists(ctx, user.ID)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User #%d %s\n", user.ID, user.Login)
		fmt.Fprintf(out, "Contribution: %d\n", user.Contribution)
		fmt.Fprintf(out, "Species lists: %d\n", len(owned))
		for _, l := range owned {
			fmt.Fprintf(out, "  #%-6d %s  %s\n", l.ID, l.When.Format(dateFmt), l.Title)
		}
		return nil
	},
}

func init() {
	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userShowCmd)

	rootCmd.AddCommand(userCmd)
}

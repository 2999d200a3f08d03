package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mycolist/internal/interest"
	"github.com/pdiddy/mycolist/pkg/types"
)

var interestCmd = &cobra.Command{
	Use:   "interest",
	Short: "Track or ignore names, observations and lists",
}

var interestSetCmd = &cobra.Command{
	Use:   "set <name|observation|species_list> <id> <on|off|delete>",
	Short: "Turn an interest on or off, or delete it",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		target, err := parseTarget(args[0], args[1])
		if err != nil {
			return err
		}
		var state interest.State
		switch args[2] {
		case "on":
			state = interest.StateOn
		case "off":
			state = interest.StateOff
		case "delete":
			state = interest.StateDelete
		default:
			return fmt.Errorf("unknown interest state %q: use on, off, or delete", args[2])
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		user, err := actingUser(ctx, s)
		if err != nil {
			return err
		}

		result, err := interest.NewService(s, app.logger).SetInterest(ctx, interest.Request{
			UserID: user.ID,
			Target: target,
			State:  state,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), result.Message)
		return nil
	},
}

var interestListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the acting user's interests",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()
		user, err := actingUser(ctx, s)
		if err != nil {
			return err
		}

		interests, err := interest.NewService(s, app.logger).List(ctx, user.ID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(interests) == 0 {
			fmt.Fprintln(out, "No interests.")
			return nil
		}
		for _, in := range interests {
			state := "ignoring"
			if in.State {
				state = "tracking"
			}
			name := in.TargetName
			if name == "" {
				name = "--"
			}
			fmt.Fprintf(out, "%-8s  %-12s  #%-6d  %s\n", state, in.Target.Type, in.Target.ID, name)
		}
		return nil
	},
}

func parseTarget(kind, id string) (types.Target, error) {
	n, err := parseID(id)
	if err != nil {
		return types.Target{}, err
	}
	switch t := types.TargetType(kind); t {
	case types.TargetName, types.TargetObservation, types.TargetSpeciesList:
		return types.Target{Type: t, ID: n}, nil
	default:
		return types.Target{}, fmt.Errorf("unknown target type %q: use name, observation, or species_list", kind)
	}
}

func init() {
	interestCmd.AddCommand(interestSetCmd)
	interestCmd.AddCommand(interestListCmd)

	rootCmd.AddCommand(interestCmd)
}

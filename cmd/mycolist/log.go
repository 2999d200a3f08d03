package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Read activity logs",
}

var logShowCmd = &cobra.Command{
	Use:   "show <name|observation|species_list> <id>",
	Short: "Show the activity log of an object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, err := parseTarget(args[0], args[1])
		if err != nil {
			return err
		}
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.Log(context.Background(), target)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No activity.")
			return nil
		}
		for _, e := range entries {
			var pairs []string
			for _, k := range slices.Sorted(maps.Keys(e.Args)) {
				pairs = append(pairs, k+"="+e.Args[k])
			}
			fmt.Fprintf(out, "%s  %-28s  %s\n", e.At.Format("2006-01-02 15:04:05"), e.Tag, strings.Join(pairs, " "))
		}
		return nil
	},
}

func init() {
	logCmd.AddCommand(logShowCmd)

	rootCmd.AddCommand(logCmd)
}

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mycolist/internal/specimen"
	"github.com/pdiddy/mycolist/pkg/types"
)

var specimenCmd = &cobra.Command{
	Use:   "specimen",
	Short: "Record herbarium specimens of observations",
}

var specimenAddCmd = &cobra.Command{
	Use:   "add <observation-id>",
	Short: "Record a specimen of an observation",
	Long: `Add records a specimen kept in a herbarium. A herbarium not yet known
is created with the acting user as its curator. The label defaults to the
observation's name and ID.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		obsID, err := parseID(args[0])
		if err != nil {
			return err
		}
		herbarium, _ := cmd.Flags().GetString("herbarium")
		label, _ := cmd.Flags().GetString("label")
		notes, _ := cmd.Flags().GetString("notes")
		when, err := whenFlag(cmd)
		if err != nil {
			return err
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

		req := specimen.AddRequest{
			UserID:        user.ID,
			ObservationID: obsID,
			HerbariumName: herbarium,
			Label:         label,
			Notes:         notes,
		}
		if when != nil {
			req.When = *when
		}
		result, err := specimen.NewService(s, app.logger).Add(ctx, req)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.NewHerbarium {
			fmt.Fprintf(out, "Created herbarium %q with %s as curator\n", result.Herbarium.Name, user.Login)
		}
		fmt.Fprintf(out, "Specimen #%d %q in %s\n", result.Specimen.ID, result.Specimen.HerbariumLabel, result.Herbarium.Name)
		return nil
	},
}

var specimenEditCmd = &cobra.Command{
	Use:   "edit <specimen-id>",
	Short: "Change a specimen's label, date or notes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		label, _ := cmd.Flags().GetString("label")
		notes, _ := cmd.Flags().GetString("notes")
		when, err := whenFlag(cmd)
		if err != nil {
			return err
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

		sp, err := specimen.NewService(s, app.logger).Edit(ctx, specimen.EditRequest{
			UserID:     user.ID,
			SpecimenID: id,
			Label:      label,
			When:       when,
			Notes:      notes,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Specimen #%d %q updated\n", sp.ID, sp.HerbariumLabel)
		return nil
	},
}

var specimenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the specimens of a herbarium or an observation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		herbarium, _ := cmd.Flags().GetString("herbarium")
		obsID, _ := cmd.Flags().GetInt64("observation")
		if (herbarium == "") == (obsID == 0) {
			return errors.New("pass exactly one of --herbarium or --observation")
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		svc := specimen.NewService(s, app.logger)
		var found []types.Specimen
		if herbarium != "" {
			found, err = svc.ByHerbarium(ctx, herbarium)
		} else {
			found, err = svc.ByObservation(ctx, obsID)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, "No specimens.")
			return nil
		}
		for _, sp := range found {
			fmt.Fprintf(out, "#%-6d  %s  %-30s  obs %v\n", sp.ID, sp.When.Format(dateFmt), truncate(sp.HerbariumLabel, 30), sp.ObservationIDs)
		}
		return nil
	},
}

func init() {
	specimenAddCmd.Flags().String("herbarium", "", "herbarium holding the specimen (required)")
	specimenAddCmd.Flags().String("label", "", "herbarium label (default: name and observation ID)")
	specimenAddCmd.Flags().String("when", "", "collection date, YYYY-MM-DD (default: observation date)")
	specimenAddCmd.Flags().String("notes", "", "specimen notes")
	_ = specimenAddCmd.MarkFlagRequired("herbarium")

	specimenEditCmd.Flags().String("label", "", "new herbarium label")
	specimenEditCmd.Flags().String("when", "", "new collection date, YYYY-MM-DD")
	specimenEditCmd.Flags().String("notes", "", "new notes")

	specimenListCmd.Flags().String("herbarium", "", "herbarium name")
	specimenListCmd.Flags().Int64("observation", 0, "observation ID")

	specimenCmd.AddCommand(specimenAddCmd)
	specimenCmd.AddCommand(specimenEditCmd)
	specimenCmd.AddCommand(specimenListCmd)

	rootCmd.AddCommand(specimenCmd)
}

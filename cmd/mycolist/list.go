package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mycolist/internal/lists"
	"github.com/pdiddy/mycolist/internal/materialize"
	"github.com/pdiddy/mycolist/internal/resolve"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

const dateFmt = "2006-01-02"

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Build, edit and inspect species lists",
	Long: `List builds species lists from lines of names. Lines come from
arguments, from a file (--file), or both. When a line needs a decision the
whole submission is refused: nothing is written, every prompt is printed,
and the submission is saved to a YAML file. Answer the prompts in the file's
choices section and run 'mycolist list resume <file>'.`,
}

// --- create subcommand ---

var listCreateCmd = &cobra.Command{
	Use:   "create [name lines...]",
	Short: "Create a species list from name lines",
	RunE:  runListCreate,
}

func runListCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, svc, user, err := listService(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sub, err := submissionFromFlags(ctx, cmd, args)
	if err != nil {
		return err
	}
	member, err := memberFromFlags(cmd)
	if err != nil {
		return err
	}
	details, err := detailsFromFlags(cmd)
	if err != nil {
		return err
	}
	if details.Title == "" {
		return errors.New("--title is required")
	}

	req := lists.CreateRequest{
		UserID:     user.ID,
		Title:      details.Title,
		Where:      details.Where,
		Notes:      details.Notes,
		Submission: sub,
		Member:     member,
	}
	if details.When != nil {
		req.When = *details.When
	}
	report, err := svc.Create(ctx, req)
	return reportSubmission(cmd, report, err, details, member)
}

// --- edit subcommand ---

var listEditCmd = &cobra.Command{
	Use:   "edit <list-id> [name lines...]",
	Short: "Change a species list and append name lines to it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runListEdit,
}

func runListEdit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	listID, err := parseID(args[0])
	if err != nil {
		return err
	}
	s, svc, user, err := listService(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	sub, err := submissionFromFlags(ctx, cmd, args[1:])
	if err != nil {
		return err
	}
	member, err := memberFromFlags(cmd)
	if err != nil {
		return err
	}
	details, err := detailsFromFlags(cmd)
	if err != nil {
		return err
	}
	details.ID = listID

	report, err := svc.Edit(ctx, lists.EditRequest{
		ListID:     listID,
		UserID:     user.ID,
		Title:      details.Title,
		When:       details.When,
		Where:      details.Where,
		Notes:      details.Notes,
		Submission: sub,
		Member:     member,
	})
	return reportSubmission(cmd, report, err, details, member)
}

// --- resume subcommand ---

var listResumeCmd = &cobra.Command{
	Use:   "resume <submission-file>",
	Short: "Resubmit a saved submission after answering its prompts",
	Args:  cobra.ExactArgs(1),
	RunE:  runListResume,
}

func runListResume(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	sf, err := lists.ReadSubmissionFile(args[0])
	if err != nil {
		return err
	}
	s, svc, user, err := listService(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := svc.Resume(ctx, user.ID, sf)
	if err == nil {
		// Answered; the file has served its purpose.
		os.Remove(args[0])
	}
	return reportSubmission(cmd, report, err, sf.List, sf.Member)
}

// --- show subcommand ---

var listShowCmd = &cobra.Command{
	Use:   "show [list-id]",
	Short: "Show a species list, or all lists without an ID",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runListShow,
}

func runListShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		all, err := s.Lists(ctx, 0)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Fprintln(out, "No species lists.")
			return nil
		}
		fmt.Fprintf(out, "%-6s  %-10s  %-30s  %s\n", "ID", "When", "Title", "Where")
		fmt.Fprintln(out, strings.Repeat("-", 70))
		for _, l := range all {
			fmt.Fprintf(out, "%-6d  %-10s  %-30s  %s\n", l.ID, l.When.Format(dateFmt), truncate(l.Title, 30), l.Where)
		}
		return nil
	}

	listID, err := parseID(args[0])
	if err != nil {
		return err
	}
	view, err := lists.NewService(s, app.cfg.Lists, app.logger, app.metrics).Show(ctx, listID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "#%d %s\n", view.List.ID, view.List.Title)
	fmt.Fprintf(out, "%s, %s\n", view.List.When.Format(dateFmt), view.List.Where)
	if view.List.Notes != "" {
		fmt.Fprintln(out, view.List.Notes)
	}
	fmt.Fprintln(out)
	for _, e := range view.Entries {
		flag := ""
		if e.Name.Deprecated {
			flag = " (deprecated)"
		}
		fmt.Fprintf(out, "%4d  obs #%-6d  %s%s\n", e.Position, e.Observation.ID, e.Name.SearchName, flag)
	}
	fmt.Fprintf(out, "\n%d observations\n", len(view.Entries))
	return nil
}

// --- export subcommand ---

var listExportCmd = &cobra.Command{
	Use:   "export <list-id>",
	Short: "Export a species list as YAML, JSON, CSV or a text report",
	Args:  cobra.ExactArgs(1),
	RunE:  runListExport,
}

func runListExport(cmd *cobra.Command, args []string) error {
	listID, err := parseID(args[0])
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	w := cmd.OutOrStdout()
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("creating export file: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := s.ExportList(context.Background(), listID, format, w); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported to %s\n", output)
	}
	return nil
}

// --- add / remove / delete subcommands ---

var listAddCmd = &cobra.Command{
	Use:   "add <list-id> <observation-id>",
	Short: "Add an existing observation to a species list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListEntry(cmd, args, func(ctx context.Context, svc *lists.Service, userID, listID, obsID int64) error {
			pos, err := svc.AddObservation(ctx, userID, listID, obsID)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Observation #%d is entry %d of list #%d\n", obsID, pos, listID)
			}
			return err
		})
	},
}

var listRemoveCmd = &cobra.Command{
	Use:   "remove <list-id> <observation-id>",
	Short: "Remove an observation from a species list",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withListEntry(cmd, args, func(ctx context.Context, svc *lists.Service, userID, listID, obsID int64) error {
			err := svc.RemoveObservation(ctx, userID, listID, obsID)
			if err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Removed observation #%d from list #%d\n", obsID, listID)
			}
			return err
		})
	},
}

func withListEntry(cmd *cobra.Command, args []string, fn func(context.Context, *lists.Service, int64, int64, int64) error) error {
	ctx := context.Background()
	listID, err := parseID(args[0])
	if err != nil {
		return err
	}
	obsID, err := parseID(args[1])
	if err != nil {
		return err
	}
	s, svc, user, err := listService(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, svc, user.ID, listID, obsID)
}

var listDeleteCmd = &cobra.Command{
	Use:   "delete <list-id>",
	Short: "Delete a species list; its observations remain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		listID, err := parseID(args[0])
		if err != nil {
			return err
		}
		s, svc, user, err := listService(ctx)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := svc.Delete(ctx, user.ID, listID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted list #%d\n", listID)
		return nil
	},
}

// --- shared helpers ---

// listService opens the store and returns the list service acting as the
// configured user. The caller closes the store.
func listService(ctx context.Context) (*store.Store, *lists.Service, *types.User, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, nil, err
	}
	user, err := actingUser(ctx, s)
	if err != nil {
		s.Close()
		return nil, nil, nil, err
	}
	return s, lists.NewService(s, app.cfg.Lists, app.logger, app.metrics), user, nil
}

// reportSubmission prints an accepted submission, or the prompts of a
// rejected one after saving it for resumption.
func reportSubmission(cmd *cobra.Command, report *lists.Report, err error, details lists.ListDetails, member materialize.Member) error {
	out := cmd.OutOrStdout()
	var rejected *resolve.RejectedError
	if errors.As(err, &rejected) {
		path, _ := cmd.Flags().GetString("save")
		if path == "" {
			path = "submission-" + rejected.Submission.ID + ".yaml"
		}
		if werr := lists.WriteSubmissionFile(path, lists.NewSubmissionFile(details, member, nil, rejected)); werr != nil {
			return errors.Join(err, werr)
		}
		for _, l := range rejected.Pending {
			fmt.Fprintf(out, "line %d: %s\n", l.Index+1, l.Prompt())
		}
		return fmt.Errorf("%w\nanswer the prompts in %s, then run 'mycolist list resume %s'", err, path, path)
	}
	if err != nil {
		return err
	}

	verb := "updated"
	if report.NewList {
		verb = "created"
	}
	fmt.Fprintf(out, "List #%d %q %s\n", report.List.ID, report.List.Title, verb)
	for _, n := range report.Result.Created {
		fmt.Fprintf(out, "  new name   #%-6d %s\n", n.ID, n.SearchName)
	}
	fmt.Fprintf(out, "Summary: %d observations, %d names created, %d reused, %d skipped, +%d contribution\n",
		len(report.Result.Observations), len(report.Result.Created), report.Result.Reused,
		report.Result.Skipped, report.Contribution)
	return nil
}

func submissionFromFlags(ctx context.Context, cmd *cobra.Command, args []string) (resolve.Submission, error) {
	sub := resolve.Submission{Lines: args}

	if file, _ := cmd.Flags().GetString("file"); file != "" {
		var r io.Reader = cmd.InOrStdin()
		if file != "-" {
			f, err := os.Open(file)
			if err != nil {
				return sub, fmt.Errorf("opening list file: %w", err)
			}
			defer f.Close()
			r = f
		}
		lines, err := lists.Upload(ctx, r)
		if err != nil {
			return sub, err
		}
		sub.Lines = append(sub.Lines, lines...)
	}

	sub.ChecklistIDs, _ = cmd.Flags().GetInt64Slice("checklist")
	sub.Choices.ApprovedNew, _ = cmd.Flags().GetStringArray("approve")
	sub.Choices.ApprovedDeprecated, _ = cmd.Flags().GetStringArray("approve-deprecated")
	sub.Choices.ChosenNames, _ = cmd.Flags().GetStringToInt64("choose")
	sub.Choices.ChosenApproved, _ = cmd.Flags().GetStringToInt64("choose-approved")
	return sub, nil
}

func memberFromFlags(cmd *cobra.Command) (materialize.Member, error) {
	var m materialize.Member
	flags := cmd.Flags()
	m.Notes, _ = flags.GetString("member-notes")
	m.Lat, _ = flags.GetString("lat")
	m.Long, _ = flags.GetString("long")
	m.Alt, _ = flags.GetString("alt")
	if flags.Changed("vote") {
		v, _ := flags.GetInt("vote")
		m.Vote = &v
	}
	if flags.Changed("collection-location") {
		v, _ := flags.GetBool("collection-location")
		m.IsCollectionLocation = &v
	}
	if flags.Changed("specimen") {
		v, _ := flags.GetBool("specimen")
		m.Specimen = &v
	}
	return m, m.Validate()
}

func detailsFromFlags(cmd *cobra.Command) (lists.ListDetails, error) {
	var d lists.ListDetails
	flags := cmd.Flags()
	d.Title, _ = flags.GetString("title")
	d.Where, _ = flags.GetString("where")
	d.Notes, _ = flags.GetString("notes")
	when, err := whenFlag(cmd)
	d.When = when
	return d, err
}

// whenFlag reads --when, nil when unset.
func whenFlag(cmd *cobra.Command) (*time.Time, error) {
	v, _ := cmd.Flags().GetString("when")
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(dateFmt, v)
	if err != nil {
		return nil, fmt.Errorf("invalid --when %q: use YYYY-MM-DD", v)
	}
	return &t, nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 3 {
		return string(r[:max(n, 0)])
	}
	return string(r[:n-3]) + "..."
}

func addSubmissionFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("title", "", "list title")
	flags.String("when", "", "list date (YYYY-MM-DD)")
	flags.String("where", "", "list location")
	flags.String("notes", "", "list notes")
	flags.String("file", "", "file of name lines, one per line ('-' for stdin)")
	flags.Int64Slice("checklist", nil, "catalog name IDs ticked on a checklist")
	flags.StringArray("approve", nil, "approve creating this new name (repeatable)")
	flags.StringArray("approve-deprecated", nil, "accept this deprecated name as is (repeatable)")
	flags.StringToInt64("choose", nil, "pick a candidate for an ambiguous name: name=id")
	flags.StringToInt64("choose-approved", nil, "replace a deprecated name with an accepted one: name=id")
	flags.String("save", "", "where to save a refused submission (default submission-<id>.yaml)")

	flags.String("member-notes", "", "notes for every new observation")
	flags.Int("vote", types.VoteMaximum, "confidence vote for every new naming")
	flags.String("lat", "", "latitude, decimal or degrees minutes seconds")
	flags.String("long", "", "longitude, decimal or degrees minutes seconds")
	flags.String("alt", "", "altitude, meters or feet (\"345 ft\")")
	flags.Bool("collection-location", false, "the location is where the specimens were collected")
	flags.Bool("specimen", false, "specimens were kept")
}

func init() {
	addSubmissionFlags(listCreateCmd)
	addSubmissionFlags(listEditCmd)
	listResumeCmd.Flags().String("save", "", "where to save the submission if it is refused again")

	listExportCmd.Flags().String("format", store.FormatYAML, "export format: yaml, json, csv, or txt")
	listExportCmd.Flags().StringP("output", "o", "", "write to this file instead of stdout")

	listCmd.AddCommand(listCreateCmd)
	listCmd.AddCommand(listEditCmd)
	listCmd.AddCommand(listResumeCmd)
	listCmd.AddCommand(listShowCmd)
	listCmd.AddCommand(listExportCmd)
	listCmd.AddCommand(listAddCmd)
	listCmd.AddCommand(listRemoveCmd)
	listCmd.AddCommand(listDeleteCmd)

	rootCmd.AddCommand(listCmd)
}

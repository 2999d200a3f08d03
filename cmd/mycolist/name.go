package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/mycolist/internal/names"
	"github.com/pdiddy/mycolist/internal/store"
	"github.com/pdiddy/mycolist/pkg/types"
)

var nameCmd = &cobra.Command{
	Use:   "name",
	Short: "Manage the taxonomic name catalog",
	Long: `Name imports, adds, finds and curates catalog names. Curation marks
names deprecated or joins them as synonyms; a synonym group keeps at most
one accepted name.`,
}

// --- import subcommand ---

var nameImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import catalog names from a YAML file",
	Long: `Import reads a YAML list of names:

  - name: Lepiota rachodes (Vittad.) Quél.
  - name: Chlorophyllum rachodes (Vittad.) Vellinga
  - name: Lepiota rachodes (Vittad.) Quél.
    synonym_of: Chlorophyllum rachodes (Vittad.) Vellinga

Records already in the catalog are skipped, so the same file can be
imported again.`,
	Args: cobra.ExactArgs(1),
	RunE: runNameImport,
}

func runNameImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening import file: %w", err)
	}
	defer f.Close()

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()
	user, err := actingUser(ctx, s)
	if err != nil {
		return err
	}

	summary, err := s.ImportNames(ctx, f, cmd.OutOrStdout(), user.ID)
	if err != nil {
		return err
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d name(s) failed to import", summary.Failed)
	}
	return nil
}

// --- add subcommand ---

var nameAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add one name to the catalog",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNameAdd,
}

func runNameAdd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	expr, err := names.Parse(strings.Join(args, " "))
	if err != nil {
		return err
	}
	if expr.Synonym != nil {
		return fmt.Errorf("add the names separately and link them with 'mycolist name synonym'")
	}
	if rank, _ := cmd.Flags().GetString("rank"); rank != "" {
		r, ok := types.ParseRank(rank)
		if !ok {
			return fmt.Errorf("unknown rank %q", rank)
		}
		expr.Rank = r
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

	var created types.Name
	err = s.InTx(ctx, func(tx *store.Tx) error {
		created, err = tx.CreateName(ctx, types.Name{
			TextName:   expr.TextName(),
			SearchName: expr.SearchName(),
			Author:     expr.Author,
			Rank:       expr.Rank,
			CreatedBy:  user.ID,
		})
		if err != nil {
			return err
		}
		return tx.AppendLog(ctx, nameTarget(created.ID), types.LogNameCreated, map[string]string{"user": user.Login})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created #%d %s (%s)\n", created.ID, created.SearchName, created.Rank)
	return nil
}

// --- find subcommand ---

var nameFindCmd = &cobra.Command{
	Use:   "find <text>",
	Short: "Find catalog names containing text",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNameFind,
}

func runNameFind(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	found, err := s.SearchNames(context.Background(), strings.Join(args, " "), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(found)
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "No names found.")
		return nil
	}
	fmt.Fprintf(out, "%-6s  %-10s  %-10s  %-6s  %s\n", "ID", "Rank", "Status", "Group", "Name")
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, n := range found {
		status := "accepted"
		if n.Deprecated {
			status = "deprecated"
		}
		group := ""
		if n.SynonymGroupID != 0 {
			group = strconv.FormatInt(n.SynonymGroupID, 10)
		}
		fmt.Fprintf(out, "%-6d  %-10s  %-10s  %-6s  %s\n", n.ID, n.Rank, status, group, n.SearchName)
	}
	fmt.Fprintf(out, "\n%d names\n", len(found))
	return nil
}

// --- deprecate subcommand ---

var nameDeprecateCmd = &cobra.Command{
	Use:   "deprecate <name-id>",
	Short: "Mark a name deprecated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return curate(cmd, func(ctx context.Context, tx *store.Tx, user *types.User) (string, error) {
			if err := tx.Deprecate(ctx, id); err != nil {
				return "", err
			}
			if err := tx.AppendLog(ctx, nameTarget(id), types.LogNameDeprecated, map[string]string{"user": user.Login}); err != nil {
				return "", err
			}
			return fmt.Sprintf("Deprecated #%d", id), nil
		})
	},
}

// --- synonym subcommand ---

var nameSynonymCmd = &cobra.Command{
	Use:   "synonym <deprecated-id> <preferred-id>",
	Short: "Deprecate a name in favor of a synonym",
	Long: `Synonym joins both names (and their existing synonyms) into one group,
deprecates the first and every other member, and makes the second the
group's accepted name.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		depID, err := parseID(args[0])
		if err != nil {
			return err
		}
		prefID, err := parseID(args[1])
		if err != nil {
			return err
		}
		return curate(cmd, func(ctx context.Context, tx *store.Tx, user *types.User) (string, error) {
			preferred, err := tx.NameByID(ctx, prefID)
			if err != nil {
				return "", err
			}
			group, err := tx.Synonymize(ctx, depID, prefID)
			if err != nil {
				return "", err
			}
			logArgs := map[string]string{"user": user.Login, "other": preferred.SearchName}
			if err := tx.AppendLog(ctx, nameTarget(depID), types.LogNameDeprecated, logArgs); err != nil {
				return "", err
			}
			if err := tx.AppendLog(ctx, nameTarget(prefID), types.LogNameApproved, map[string]string{"user": user.Login}); err != nil {
				return "", err
			}
			return fmt.Sprintf("#%d is now a synonym of #%d %s (group %d)", depID, prefID, preferred.SearchName, group), nil
		})
	},
}

// curate runs a catalog change as the acting user in one transaction and
// prints its message.
func curate(cmd *cobra.Command, fn func(context.Context, *store.Tx, *types.User) (string, error)) error {
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

	var msg string
	if err := s.InTx(ctx, func(tx *store.Tx) error {
		msg, err = fn(ctx, tx, user)
		return err
	}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func nameTarget(id int64) types.Target {
	return types.Target{Type: types.TargetName, ID: id}
}

func init() {
	nameAddCmd.Flags().String("rank", "", "rank, overriding the one read from the name")
	nameFindCmd.Flags().Int("limit", 50, "maximum number of names")
	nameFindCmd.Flags().Bool("json", false, "output names as JSON")

	nameCmd.AddCommand(nameImportCmd)
	nameCmd.AddCommand(nameAddCmd)
	nameCmd.AddCommand(nameFindCmd)
	nameCmd.AddCommand(nameDeprecateCmd)
	nameCmd.AddCommand(nameSynonymCmd)

	rootCmd.AddCommand(nameCmd)
}

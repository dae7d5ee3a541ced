package cli

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/treeup/internal/script"
	"github.com/roach88/treeup/internal/update"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Database string
}

// UpdateResult is the output of the update command.
type UpdateResult struct {
	Statement  string            `json:"statement"`
	Stores     []string          `json:"stores"`
	Primitives int               `json:"primitives"`
	Fragments  map[string]string `json:"fragments,omitempty"`
	Summary    map[string]any    `json:"summary,omitempty"`
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <statement-file>",
		Short: "Apply an update statement",
		Long: `Apply an update statement (YAML or CUE) to the databases it names.

Every primitive of the statement is checked before any database changes.
A rejected statement leaves every database untouched; the error code
names the reason (CONFLICTING_UPDATE, INVALID_UPDATE, ADDRESS_RESOLUTION).

Statements that only edit fragments open no database.

Exit codes:
  0 - Statement applied
  1 - Statement rejected
  2 - Command error (invalid paths, database not found, etc.)

Examples:
  treeup update --db ./treeup.db ./reorder.yaml
  treeup update --db ./treeup.db ./reorder.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runUpdate(ctx context.Context, opts *UpdateOptions, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd)

	stmt, err := script.LoadFile(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load statement", err)
	}

	st, err := openStore(opts.Database, false)
	if err != nil {
		return err
	}
	defer st.Close()

	names := statementStores(stmt)
	stores := make([]update.Store, 0, len(names))
	for _, name := range names {
		d, err := openDatabase(ctx, st, name)
		if err != nil {
			return err
		}
		stores = append(stores, d)
	}
	out.VerboseLog("applying %s to %s", file, strings.Join(names, ", "))

	res, err := script.Execute(ctx, stmt, stores, update.WithLogger(slog.Default()))
	if err != nil {
		return out.UpdateFailure(err)
	}

	result := UpdateResult{
		Statement:  res.Statement,
		Stores:     res.Stores,
		Primitives: res.Primitives,
		Fragments:  res.Fragments,
		Summary:    res.Summary,
	}
	if opts.Format == "json" {
		return out.Success(result)
	}
	w := cmd.OutOrStdout()
	on := strings.Join(result.Stores, ", ")
	if on == "" {
		on = "fragments only"
	}
	fmt.Fprintf(w, "Applied statement %s: %d primitive(s) on %s\n", result.Statement, result.Primitives, on)
	for _, label := range slices.Sorted(maps.Keys(result.Fragments)) {
		fmt.Fprintf(w, "  $%s = %s\n", label, result.Fragments[label])
	}
	return nil
}

// statementStores returns the databases a statement names, sorted.
func statementStores(stmt *script.Statement) []string {
	var names []string
	for _, ins := range stmt.Updates {
		if ins.Store != "" && !slices.Contains(names, ins.Store) {
			names = append(names, ins.Store)
		}
	}
	slices.Sort(names)
	return names
}

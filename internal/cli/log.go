package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/treeup/internal/store"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	Database string
}

// LogLine is one update log entry in command output.
type LogLine struct {
	Seq        int64  `json:"seq"`
	Statement  string `json:"statement"`
	Database   string `json:"database"`
	Generation uint64 `json:"generation"`
	Summary    string `json:"summary"`
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log [name]",
		Short: "Show the update log",
		Long: `Show the statements applied to a database, oldest first.

Each entry names the statement id, the generation the database reached
and the canonical JSON summary of the applied primitives. Without a name,
entries of every database are shown.

Examples:
  treeup log --db ./treeup.db
  treeup log --db ./treeup.db lib --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			return runLog(cmd.Context(), opts, name, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runLog(ctx context.Context, opts *LogOptions, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(opts.Database, false)
	if err != nil {
		return err
	}
	defer st.Close()

	if name != "" {
		if _, err := openDatabase(ctx, st, name); err != nil {
			return err
		}
	}
	entries, err := st.ReadLog(ctx, name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read update log", err)
	}
	lines := toLogLines(entries)

	if opts.Format == "json" {
		return newFormatter(opts.RootOptions, cmd).Success(lines)
	}
	w := cmd.OutOrStdout()
	if len(lines) == 0 {
		fmt.Fprintln(w, "No updates.")
		return nil
	}
	for _, l := range lines {
		fmt.Fprintf(w, "%d  %s  %s@%d  %s\n", l.Seq, l.Statement, l.Database, l.Generation, l.Summary)
	}
	return nil
}

func toLogLines(entries []store.LogEntry) []LogLine {
	lines := make([]LogLine, len(entries))
	for i, e := range entries {
		lines[i] = LogLine(e)
	}
	return lines
}

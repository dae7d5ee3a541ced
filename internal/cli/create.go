package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/treeup/internal/node"
	"github.com/roach88/treeup/internal/store"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Database string
}

// DatabaseSummary describes a database in command output.
type DatabaseSummary struct {
	Name       string `json:"name"`
	Generation uint64 `json:"generation"`
	Nodes      int    `json:"nodes"`
	Digest     string `json:"digest"`
}

func (s DatabaseSummary) String() string {
	return fmt.Sprintf("%s: %d nodes, generation %d, digest %s", s.Name, s.Nodes, s.Generation, s.Digest)
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <name> <file.xml>",
		Short: "Create a database from an XML file",
		Long: `Create a database from an XML file.

The SQLite file is created if it does not exist. Whitespace-only text
between elements is dropped.

Examples:
  treeup create --db ./treeup.db lib ./library.xml
  treeup create --db ./treeup.db lib ./library.xml --format json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd.Context(), opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runCreate(ctx context.Context, opts *CreateOptions, name, file string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	out := newFormatter(opts.RootOptions, cmd)

	f, err := os.Open(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read XML file", err)
	}
	defer f.Close()
	nodes, err := node.NewArena().Parse(f)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("failed to parse %s", file), err)
	}

	st, err := openStore(opts.Database, true)
	if err != nil {
		return err
	}
	defer st.Close()

	out.VerboseLog("creating database %s from %s", name, file)
	d, err := st.CreateDatabase(ctx, name, nodes...)
	if errors.Is(err, store.ErrExists) {
		return NewExitError(ExitCommandError, fmt.Sprintf("database %q already exists", name))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create database", err)
	}

	return out.Success(DatabaseSummary{
		Name:       d.Name(),
		Generation: d.Data().Generation(),
		Nodes:      d.Data().Len(),
		Digest:     d.Data().Digest(),
	})
}

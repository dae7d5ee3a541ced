package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Database  string
	Path      string
	Resources bool
}

// ShowResult is the output of the show command.
type ShowResult struct {
	DatabaseSummary
	XML       string   `json:"xml,omitempty"`
	Selected  []string `json:"selected,omitempty"`
	Resources []string `json:"resources,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show [name]",
		Short: "Print a database",
		Long: `Print a database as XML, or the nodes a path selects.

Without a name, list every database in the file.

Examples:
  treeup show --db ./treeup.db
  treeup show --db ./treeup.db lib
  treeup show --db ./treeup.db lib --path /lib/book[1]
  treeup show --db ./treeup.db lib --resources`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runList(cmd.Context(), opts, cmd)
			}
			return runShow(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Path, "path", "", "print only the nodes this path selects")
	cmd.Flags().BoolVar(&opts.Resources, "resources", false, "list stored binary resources")

	return cmd
}

func runList(ctx context.Context, opts *ShowOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(opts.Database, false)
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListDatabases(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list databases", err)
	}
	list := make([]DatabaseSummary, len(infos))
	for i, info := range infos {
		list[i] = DatabaseSummary(info)
	}

	out := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return out.Success(list)
	}
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No databases.")
		return nil
	}
	for _, s := range list {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}

func runShow(ctx context.Context, opts *ShowOptions, name string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openStore(opts.Database, false)
	if err != nil {
		return err
	}
	defer st.Close()

	d, err := openDatabase(ctx, st, name)
	if err != nil {
		return err
	}
	data := d.Data()
	res := ShowResult{DatabaseSummary: DatabaseSummary{
		Name:       name,
		Generation: data.Generation(),
		Nodes:      data.Len(),
		Digest:     data.Digest(),
	}}

	switch {
	case opts.Resources:
		res.Resources, err = st.Resources(ctx, name)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list resources", err)
		}
	case opts.Path != "":
		pres, err := data.Select(opts.Path)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid path", err)
		}
		res.Selected = make([]string, 0, len(pres))
		for _, pre := range pres {
			s, err := data.NodeXML(pre)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to serialize node", err)
			}
			res.Selected = append(res.Selected, s)
		}
	default:
		res.XML = data.XML()
	}

	out := newFormatter(opts.RootOptions, cmd)
	if opts.Format == "json" {
		return out.Success(res)
	}
	w := cmd.OutOrStdout()
	out.VerboseLog("%s", res.DatabaseSummary)
	switch {
	case opts.Resources:
		fmt.Fprintln(w, strings.Join(res.Resources, "\n"))
	case opts.Path != "":
		fmt.Fprintln(w, strings.Join(res.Selected, "\n"))
	default:
		fmt.Fprintln(w, res.XML)
	}
	return nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/treeup/internal/store"
)

// openStore opens the SQLite file at path. Unless create is set the file
// must already exist.
func openStore(path string, create bool) (*store.Store, error) {
	if !create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("database file not found: %s", path))
		}
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openDatabase opens a named database, mapping store.ErrNotFound to a
// command error.
func openDatabase(ctx context.Context, st *store.Store, name string) (*store.Database, error) {
	d, err := st.OpenDatabase(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("database %q not found", name))
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("failed to open database %q", name), err)
	}
	return d, nil
}

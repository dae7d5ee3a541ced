package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/treeup/internal/script"
	"github.com/roach88/treeup/internal/testutil"
	"github.com/roach88/treeup/internal/update"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs on fresh in-memory stores. Statement ids are drawn
// from a sequence named after the scenario so results are reproducible.
//
// An error is returned only when the scenario cannot run at all: bad store
// XML, or a statement that fails before validation (a path selecting
// nothing, a malformed payload). Outcome mismatches are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	stores, err := testutil.MemoryStores(scenario.Stores)
	if err != nil {
		return nil, fmt.Errorf("failed to create stores: %w", err)
	}

	result := NewResult()
	res, err := script.Execute(ctx, &scenario.Statement, stores,
		update.WithIDGenerator(testutil.NewStatementIDs(scenario.Name)),
		update.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	switch {
	case err == nil:
		result.Statement = res.Statement
		result.Fragments = res.Fragments
		result.Summary = res.Summary
	case update.CodeOf(err) != "":
		result.Error = string(update.CodeOf(err))
	default:
		return nil, fmt.Errorf("failed to execute statement: %w", err)
	}
	for _, s := range stores {
		result.Stores[s.Name()] = s.Data().XML()
	}

	if result.Error != scenario.Expect.Error {
		switch {
		case scenario.Expect.Error == "":
			result.AddError(fmt.Sprintf("statement failed: %v", err))
		case result.Error == "":
			result.AddError(fmt.Sprintf("expected error %s, statement applied", scenario.Expect.Error))
		default:
			result.AddError(fmt.Sprintf("expected error %s, got %s: %v", scenario.Expect.Error, result.Error, err))
		}
	}
	if result.Error != "" {
		checkUnchanged(result, scenario)
	}
	checkStores(result, scenario)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, stores) {
		result.AddError(msg)
	}
	return result, nil
}

// checkUnchanged verifies that a failed statement left every store as it
// was seeded.
func checkUnchanged(result *Result, scenario *Scenario) {
	for _, name := range sortedNames(scenario.Stores) {
		want, err := testutil.NormalizeXML(scenario.Stores[name])
		if err != nil {
			continue
		}
		if got := result.Stores[name]; got != want {
			result.AddError(fmt.Sprintf("store %s modified by failed statement:\n  want: %s\n  got:  %s", name, want, got))
		}
	}
}

func checkStores(result *Result, scenario *Scenario) {
	for _, name := range sortedNames(scenario.Expect.Stores) {
		want, err := testutil.NormalizeXML(scenario.Expect.Stores[name])
		if err != nil {
			result.AddError(fmt.Sprintf("expect.stores.%s: %v", name, err))
			continue
		}
		if got := result.Stores[name]; got != want {
			result.AddError(fmt.Sprintf("store %s:\n  want: %s\n  got:  %s", name, want, got))
		}
	}
}

func sortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

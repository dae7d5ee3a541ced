package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/treeup/internal/canon"
)

// Snapshot captures the observable outcome of a scenario.
// It serializes as canonical JSON for deterministic comparison.
type Snapshot struct {
	Scenario  string
	Error     string
	Stores    map[string]string
	Fragments map[string]string
	Summary   map[string]any
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON
// serialization. Empty fields are omitted.
func (s *Snapshot) toCanonicalMap() map[string]any {
	m := map[string]any{
		"scenario": s.Scenario,
		"stores":   s.Stores,
	}
	if s.Error != "" {
		m["error"] = s.Error
	}
	if len(s.Fragments) > 0 {
		m["fragments"] = s.Fragments
	}
	if s.Summary != nil {
		m["summary"] = s.Summary
	}
	return m
}

// Marshal returns the canonical JSON of the snapshot.
func (s *Snapshot) Marshal() ([]byte, error) {
	return canon.Marshal(s.toCanonicalMap())
}

// NewSnapshot builds the snapshot of a scenario result.
func NewSnapshot(name string, result *Result) *Snapshot {
	return &Snapshot{
		Scenario:  name,
		Error:     result.Error,
		Stores:    result.Stores,
		Fragments: result.Fragments,
		Summary:   result.Summary,
	}
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result, or an error if the scenario could not run.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}

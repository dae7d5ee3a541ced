package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/treeup/internal/update"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Store    string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (store %s)\n", e.Type, e.Store)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// resourceReader is implemented by stores holding binary resources.
type resourceReader interface {
	Resource(path string) ([]byte, bool)
}

// EvaluateAssertions evaluates all assertions against the final stores.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, stores []update.Store) []string {
	byName := make(map[string]update.Store, len(stores))
	for _, s := range stores {
		byName[s.Name()] = s
	}

	var errors []string
	for i, a := range assertions {
		s, ok := byName[a.Store]
		if !ok {
			errors = append(errors, fmt.Sprintf("assertion[%d]: unknown store %q", i, a.Store))
			continue
		}

		var err error
		switch a.Type {
		case AssertSelectCount:
			err = assertSelectCount(s, a)
		case AssertSelectValue:
			err = assertSelectValue(s, a)
		case AssertResource:
			err = assertResource(s, a)
		case AssertPrimitiveCount:
			err = assertPrimitiveCount(result, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

// assertSelectCount checks the number of nodes a path selects.
func assertSelectCount(s update.Store, a Assertion) error {
	pres, err := s.Data().Select(a.Path)
	if err != nil {
		return fmt.Errorf("select_count %s: %w", a.Path, err)
	}
	if len(pres) != a.Count {
		return &AssertionError{
			Type:     AssertSelectCount,
			Store:    a.Store,
			Expected: fmt.Sprintf("%s selects %d nodes", a.Path, a.Count),
			Actual:   fmt.Sprintf("%d nodes", len(pres)),
		}
	}
	return nil
}

// assertSelectValue checks that a path selects exactly one node and
// compares its value.
func assertSelectValue(s update.Store, a Assertion) error {
	d := s.Data()
	pres, err := d.Select(a.Path)
	if err != nil {
		return fmt.Errorf("select_value %s: %w", a.Path, err)
	}
	if len(pres) != 1 {
		return &AssertionError{
			Type:     AssertSelectValue,
			Store:    a.Store,
			Expected: fmt.Sprintf("%s selects one node", a.Path),
			Actual:   fmt.Sprintf("%d nodes", len(pres)),
		}
	}
	row, _ := d.Row(pres[0])
	if row.Value != a.Value {
		return &AssertionError{
			Type:     AssertSelectValue,
			Store:    a.Store,
			Expected: fmt.Sprintf("%s = %q", a.Path, a.Value),
			Actual:   fmt.Sprintf("%q", row.Value),
		}
	}
	return nil
}

// assertResource checks the content of a stored binary resource.
func assertResource(s update.Store, a Assertion) error {
	rr, ok := s.(resourceReader)
	if !ok {
		return fmt.Errorf("resource: store %s does not hold resources", a.Store)
	}
	data, ok := rr.Resource(a.Path)
	if !ok {
		return &AssertionError{
			Type:     AssertResource,
			Store:    a.Store,
			Expected: fmt.Sprintf("resource %s", a.Path),
			Actual:   "missing",
		}
	}
	if string(data) != a.Value {
		return &AssertionError{
			Type:     AssertResource,
			Store:    a.Store,
			Expected: fmt.Sprintf("%s = %q", a.Path, a.Value),
			Actual:   fmt.Sprintf("%q", data),
		}
	}
	return nil
}

// assertPrimitiveCount checks how many primitives (optionally of one kind)
// were applied to a store.
func assertPrimitiveCount(result *Result, a Assertion) error {
	n := 0
	for _, p := range result.primitives(a.Store) {
		if a.Kind == "" || p["kind"] == a.Kind {
			n++
		}
	}
	if n != a.Count {
		what := "primitives"
		if a.Kind != "" {
			what = a.Kind + " primitives"
		}
		return &AssertionError{
			Type:     AssertPrimitiveCount,
			Store:    a.Store,
			Expected: fmt.Sprintf("%d %s", a.Count, what),
			Actual:   fmt.Sprintf("%d", n),
		}
	}
	return nil
}

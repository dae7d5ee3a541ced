package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/treeup/internal/script"
	"github.com/roach88/treeup/internal/update"
)

// Scenario defines an update scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file
	// and prefixes the statement id.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Stores maps store names to their initial XML.
	Stores map[string]string `yaml:"stores"`

	// Statement is executed once against the stores.
	Statement script.Statement `yaml:"statement"`

	// Expect describes the outcome.
	Expect Expect `yaml:"expect"`

	// Assertions add checks on the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect specifies the expected outcome of a scenario.
type Expect struct {
	// Stores maps store names to their expected final XML. Formatting
	// whitespace is ignored. Stores not listed are not compared.
	Stores map[string]string `yaml:"stores,omitempty"`

	// Error is the expected error code (e.g. "CONFLICTING_UPDATE"). Empty
	// means the statement must apply.
	Error string `yaml:"error,omitempty"`
}

// Assertion checks the final state of a store.
type Assertion struct {
	// Type specifies the assertion type:
	// - "select_count": Path selects exactly Count nodes in Store
	// - "select_value": Path selects one node whose value is Value
	// - "resource": Store holds a binary resource at Path with content Value
	// - "primitive_count": Count primitives (of Kind, if set) were applied to Store
	Type string `yaml:"type"`

	// Store names the store to inspect.
	Store string `yaml:"store"`

	// Path is a selection path (select_*) or resource path (resource).
	Path string `yaml:"path,omitempty"`

	// Value is the expected node value or resource content.
	Value string `yaml:"value,omitempty"`

	// Kind restricts primitive_count to one operation kind.
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of nodes or primitives.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSelectCount    = "select_count"
	AssertSelectValue    = "select_value"
	AssertResource       = "resource"
	AssertPrimitiveCount = "primitive_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML. See LoadScenario.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Stores) == 0 {
		return fmt.Errorf("stores map is required and must be non-empty")
	}
	if err := s.Statement.Validate(); err != nil {
		return fmt.Errorf("statement: %w", err)
	}

	if s.Expect.Error == "" && len(s.Expect.Stores) == 0 {
		return fmt.Errorf("expect needs stores or error")
	}
	if s.Expect.Error != "" && !knownCode(s.Expect.Error) {
		return fmt.Errorf("expect.error: unknown error code %q", s.Expect.Error)
	}
	for name := range s.Expect.Stores {
		if _, ok := s.Stores[name]; !ok {
			return fmt.Errorf("expect.stores: unknown store %q", name)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], s.Stores); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, stores map[string]string) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if _, ok := stores[a.Store]; !ok {
		return fmt.Errorf("assertions[%d]: unknown store %q", index, a.Store)
	}

	switch a.Type {
	case AssertSelectCount:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for select_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for select_count", index)
		}
	case AssertSelectValue, AssertResource:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertPrimitiveCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for primitive_count", index)
		}
		if a.Kind != "" {
			if _, err := update.ParseKind(a.Kind); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func knownCode(code string) bool {
	switch update.ErrorCode(code) {
	case update.ErrCodeAlreadyFinished, update.ErrCodeConflictingUpdate,
		update.ErrCodeAddressResolution, update.ErrCodeApplyFailure,
		update.ErrCodeInvalidUpdate:
		return true
	}
	return false
}

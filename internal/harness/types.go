package harness

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: the expected outcome matched and
	// every assertion held.
	Pass bool `json:"pass"`

	// Statement is the id of the applied statement; empty on error.
	Statement string `json:"statement,omitempty"`

	// Error is the error code the statement failed with, if any.
	Error string `json:"error,omitempty"`

	// Stores maps store names to their final XML.
	Stores map[string]string `json:"stores"`

	// Fragments holds the declared fragments after the statement.
	Fragments map[string]string `json:"fragments,omitempty"`

	// Summary describes the applied primitives; nil on error.
	Summary map[string]any `json:"summary,omitempty"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Stores: make(map[string]string),
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// primitives returns the described primitives applied to store.
func (r *Result) primitives(store string) []map[string]any {
	if r.Summary == nil {
		return nil
	}
	stores, _ := r.Summary["stores"].(map[string]any)
	list, _ := stores[store].([]any)
	out := make([]map[string]any, 0, len(list))
	for _, p := range list {
		if m, ok := p.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

package harness

import "github.com/roach88/tracelayout/internal/export"

// Result is the outcome of a scenario.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Document is the compiled program, nil when compilation failed.
	Document *export.Document `json:"document,omitempty"`

	// ErrorCodes lists the codes of the compilation errors, in order.
	ErrorCodes []string `json:"error_codes,omitempty"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

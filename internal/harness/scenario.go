package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

// Scenario defines a layout scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is an inline CUE description.
	Spec string `yaml:"spec,omitempty"`

	// Specs lists description files (.cue, .json, .jsonc) unified in
	// order. Relative paths are resolved when the scenario is loaded.
	Specs []string `yaml:"specs,omitempty"`

	// Policy is the alignment policy: "always" (default) or "elide".
	Policy string `yaml:"policy,omitempty"`

	// ExpectError is the error code compilation must fail with. Scenarios
	// expecting an error carry no assertions.
	ExpectError string `yaml:"expect_error,omitempty"`

	// Assertions check the compiled operation trees.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Assertion checks one root scope of the compiled program.
type Assertion struct {
	// Type is one of operation, children, static_size or count.
	Type string `yaml:"type"`

	// Stream, Record and Scope select the tree. Record is empty for
	// packet scopes.
	Stream string `yaml:"stream"`
	Record string `yaml:"record,omitempty"`
	Scope  string `yaml:"scope"`

	// Path is an operation name such as _p_hdr_len (operation, children).
	Path string `yaml:"path,omitempty"`

	// Kind is align, write or compound (operation).
	Kind string `yaml:"kind,omitempty"`

	// Writer is the expected writer of a write (operation).
	Writer string `yaml:"writer,omitempty"`

	// Offset is the expected bit offset, "?" when unknown (operation).
	Offset *string `yaml:"offset,omitempty"`

	// Alignment is the expected alignment of an align (operation).
	Alignment uint `yaml:"alignment,omitempty"`

	// Ops is the expected child list (children).
	Ops []string `yaml:"ops,omitempty"`

	// Size is the expected static size in bits, "?" for none (static_size).
	Size string `yaml:"size,omitempty"`

	// Count is the expected number of operations (count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertOperation  = "operation"
	AssertChildren   = "children"
	AssertStaticSize = "static_size"
	AssertCount      = "count"
)

// LoadScenario reads and parses a scenario YAML file. Relative spec paths
// are resolved against the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to the provided base path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve spec paths relative to base path BEFORE validation
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return scenario, nil
}

// ParseScenario decodes a scenario without validating spec paths.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
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

	switch {
	case s.Spec == "" && len(s.Specs) == 0:
		return fmt.Errorf("one of spec or specs is required")
	case s.Spec != "" && len(s.Specs) > 0:
		return fmt.Errorf("spec and specs are mutually exclusive")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	if _, err := layout.ParseAlignPolicy(s.Policy); err != nil {
		return err
	}

	if s.ExpectError != "" {
		if len(s.Assertions) > 0 {
			return fmt.Errorf("expect_error scenarios take no assertions")
		}
		return nil
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Stream == "" {
		return fmt.Errorf("assertions[%d]: stream is required", index)
	}
	if _, err := scope.ParseRootScope(a.Scope); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}

	switch a.Type {
	case AssertOperation:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for operation", index)
		}
		if _, err := parseOpKind(a.Kind); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
		if a.Writer != "" && !validWriter(a.Writer) {
			return fmt.Errorf("assertions[%d]: unknown writer %q", index, a.Writer)
		}
	case AssertChildren:
		if a.Ops == nil {
			return fmt.Errorf("assertions[%d]: ops list is required for children", index)
		}
	case AssertStaticSize:
		if a.Size == "" {
			return fmt.Errorf("assertions[%d]: size is required for static_size", index)
		}
	case AssertCount:
		if a.Count <= 0 {
			return fmt.Errorf("assertions[%d]: count must be positive", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

func parseOpKind(s string) (layout.OpKind, error) {
	for _, k := range []layout.OpKind{layout.OpAlign, layout.OpWrite, layout.OpCompound} {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown operation kind %q (want align, write or compound)", s)
}

func validWriter(s string) bool {
	switch layout.WriteKind(s) {
	case layout.WriteInteger, layout.WriteEnumeration, layout.WriteReal, layout.WriteString, layout.WriteArrayLength:
		return true
	}
	_, ok := layout.ParseWriteKind(s)
	return ok
}

package cli

import (
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/store"
)

// policyValue adapts layout.AlignPolicy to a pflag.Value.
type policyValue struct {
	policy *layout.AlignPolicy
}

var (
	_ pflag.Value = policyValue{}
	_ pflag.Value = (*store.Compression)(nil)
)

func newPolicyValue(p *layout.AlignPolicy) policyValue {
	return policyValue{policy: p}
}

func (v policyValue) String() string {
	if v.policy == nil {
		return layout.AlignAlways.String()
	}
	return v.policy.String()
}

func (v policyValue) Set(s string) error {
	p, err := layout.ParseAlignPolicy(s)
	if err != nil {
		return err
	}
	*v.policy = p
	return nil
}

func (policyValue) Type() string { return "policy" }

// addPolicyFlag registers --policy on fs.
func addPolicyFlag(fs *pflag.FlagSet, p *layout.AlignPolicy) {
	fs.Var(newPolicyValue(p), "policy", "alignment policy (always|elide)")
}

// traceName returns name, or the base name of the description directory
// when name is empty.
func traceName(name, specsDir string) string {
	if name != "" {
		return name
	}
	if abs, err := filepath.Abs(specsDir); err == nil {
		return filepath.Base(abs)
	}
	return filepath.Base(filepath.Clean(specsDir))
}

package store

import (
	"context"
	"fmt"

	"github.com/roach88/tracelayout/internal/layout"
	"github.com/roach88/tracelayout/internal/scope"
)

// DriftKind classifies a difference between the ledger and a program.
type DriftKind string

const (
	// DriftMissing: the program has a scope the ledger does not.
	DriftMissing DriftKind = "missing"
	// DriftChanged: both have the scope with different fingerprints.
	DriftChanged DriftKind = "changed"
	// DriftExtra: the ledger has a scope the program does not.
	DriftExtra DriftKind = "extra"
)

// Drift is one scope whose layout differs from the recorded one.
type Drift struct {
	Key      Key
	Kind     DriftKind
	Recorded string // empty for DriftMissing
	Current  string // empty for DriftExtra
}

func (d Drift) String() string {
	switch d.Kind {
	case DriftMissing:
		return fmt.Sprintf("%s: %s (not recorded)", d.Kind, d.Key)
	case DriftExtra:
		return fmt.Sprintf("%s: %s (no longer produced)", d.Kind, d.Key)
	default:
		return fmt.Sprintf("%s: %s %.12s -> %.12s", d.Kind, d.Key, d.Recorded, d.Current)
	}
}

// Verify compares prog with the recording of trace. Drifts come in the
// program's emission order, followed by the extra ledger rows in
// recorded order. A trace that was never recorded reports every scope as
// missing.
func (s *Store) Verify(ctx context.Context, trace string, prog *scope.Program) ([]Drift, error) {
	recorded, err := s.ListLayouts(ctx, trace)
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	byKey := make(map[Key]Layout, len(recorded))
	for _, l := range recorded {
		byKey[l.Key] = l
	}

	var drifts []Drift
	seen := make(map[Key]bool, len(recorded))
	for _, row := range programRows(prog) {
		key := Key{Trace: trace, Stream: row.stream, Record: row.record, Scope: row.scope}
		seen[key] = true

		fp, err := layout.Fingerprint(row.tree)
		if err != nil {
			return nil, fmt.Errorf("verify: %s: %w", key, err)
		}
		l, ok := byKey[key]
		switch {
		case !ok:
			drifts = append(drifts, Drift{Key: key, Kind: DriftMissing, Current: fp})
		case l.Fingerprint != fp:
			drifts = append(drifts, Drift{Key: key, Kind: DriftChanged, Recorded: l.Fingerprint, Current: fp})
		}
	}

	for _, l := range recorded {
		if !seen[l.Key] {
			drifts = append(drifts, Drift{Key: l.Key, Kind: DriftExtra, Recorded: l.Fingerprint})
		}
	}
	return drifts, nil
}

package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tracelayout/internal/export"
)

// Snapshot renders the compiled program of a result as its text listing.
func Snapshot(result *Result) ([]byte, error) {
	if result.Document == nil {
		return nil, fmt.Errorf("result has no compiled program")
	}
	var buf bytes.Buffer
	if err := export.WriteText(&buf, result.Document); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RunWithGolden executes a scenario and compares the listing against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the listing doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return result, err
	}
	return result, nil
}

// AssertGolden compares the listing of an existing result against the
// golden file named name.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	listing, err := Snapshot(result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, listing)
	return nil
}

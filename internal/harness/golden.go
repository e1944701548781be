package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/facet/internal/bank"
)

// RunWithGolden executes a scenario and pins its canonical snapshot JSON
// against testdata/golden/{scenario.Name}.golden.
//
// A missing golden file is seeded from the current run, so a fresh
// checkout records its baseline on the first pass; later runs compare
// byte-for-byte. To re-record after an intentional scoring change:
//
//	go test ./internal/harness -update
//
// Returns the execution result so callers can layer further assertions.
func RunWithGolden(t *testing.T, pkg *bank.Package, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(pkg, scenario)
	if err != nil {
		return nil, err
	}
	if result.Snapshot == nil {
		return nil, fmt.Errorf("scenario %q did not finalize, nothing to pin", scenario.Name)
	}

	body, err := result.Snapshot.MarshalCanonical()
	if err != nil {
		return nil, err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(filepath.Join("testdata", "golden")),
		goldie.WithNameSuffix(".golden"),
	)
	if _, statErr := os.Stat(g.GoldenFileName(t, scenario.Name)); errors.Is(statErr, fs.ErrNotExist) {
		if err := g.Update(t, scenario.Name, body); err != nil {
			return nil, fmt.Errorf("failed to seed golden file: %w", err)
		}
	}
	g.Assert(t, scenario.Name, body)

	return result, nil
}

// CompareGolden checks body against dir/{name}.golden without a testing
// context, for callers outside go test. With update set the golden file
// is rewritten instead of compared.
func CompareGolden(dir, name string, body []byte, update bool) error {
	path := filepath.Join(dir, name+".golden")

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create golden dir: %w", err)
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("golden file %s not found (re-run with --update to record it)", path)
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}

	if !bytes.Equal(want, body) {
		return fmt.Errorf("snapshot for %q does not match %s", name, path)
	}
	return nil
}

package compiler

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/facet/internal/bank"
)

// ValidationFailure aggregates every schema violation found in one bank.
// Returned by LoadPackage when compilation succeeded but the authored
// content breaks the instrument's invariants.
type ValidationFailure struct {
	Bank   string
	Errors []bank.ValidationError
}

func (e *ValidationFailure) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("bank %q failed validation: %s", e.Bank, e.Errors[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "bank %q failed validation with %d errors:", e.Bank, len(e.Errors))
	for _, ve := range e.Errors {
		b.WriteString("\n  ")
		b.WriteString(ve.Error())
	}
	return b.String()
}

// LoadPackage loads, compiles, validates, and seals a bank authored as
// CUE files in dir. The returned package is ready for engine use; no
// unvalidated bank ever escapes this function.
//
// Pipeline: cue/load -> build -> CompilePackage -> bank.ValidatePackage
// -> Seal.
func LoadPackage(dir string) (*bank.Package, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("bank directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("accessing bank directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("scanning bank directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	pkg, err := CompilePackage(value.LookupPath(cue.ParsePath("bank")))
	if err != nil {
		return nil, err
	}

	if verrs := bank.ValidatePackage(pkg); len(verrs) > 0 {
		return nil, &ValidationFailure{Bank: pkg.Name, Errors: verrs}
	}

	if err := pkg.Seal(); err != nil {
		return nil, fmt.Errorf("sealing bank %q: %w", pkg.Name, err)
	}
	return pkg, nil
}

// findCUEFiles walks the directory and returns all .cue file paths.
func findCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

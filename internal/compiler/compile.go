package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/facet/internal/bank"
)

// CompilePackage parses a CUE value into an unsealed bank.Package.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the bank struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`bank: { name: "core", ... }`)
//	pkg, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))
//
// Compilation extracts structure only; semantic rules are enforced
// afterwards by bank.ValidatePackage, and sealing is the loader's job.
func CompilePackage(v cue.Value) (*bank.Package, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if !v.Exists() {
		return nil, &CompileError{
			Field:   "bank",
			Message: "bank document not found",
			Pos:     v.Pos(),
		}
	}

	pkg := &bank.Package{}

	name, err := requiredString(v, "name")
	if err != nil {
		return nil, err
	}
	pkg.Name = name

	version, err := requiredString(v, "version")
	if err != nil {
		return nil, err
	}
	pkg.Version = version

	pkg.Families, err = parseFamilies(v)
	if err != nil {
		return nil, err
	}
	pkg.Faces, err = parseFaces(v)
	if err != nil {
		return nil, err
	}
	pkg.Tells, err = parseTells(v)
	if err != nil {
		return nil, err
	}
	pkg.Questions, err = parseQuestions(v)
	if err != nil {
		return nil, err
	}
	pkg.ContrastPairs, err = parseContrastPairs(v)
	if err != nil {
		return nil, err
	}
	pkg.Profiles, err = parseProfiles(v)
	if err != nil {
		return nil, err
	}

	pkg.DefaultProfile, err = requiredString(v, "default_profile")
	if err != nil {
		return nil, err
	}

	return pkg, nil
}

// parseFamilies extracts the family list. Families are authored as bare
// name strings; authored order is canonical order.
func parseFamilies(v cue.Value) ([]bank.Family, error) {
	famVal := v.LookupPath(cue.ParsePath("families"))
	if !famVal.Exists() {
		return nil, &CompileError{
			Field:   "families",
			Message: "families list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := famVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var families []bank.Family
	for iter.Next() {
		name, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		families = append(families, bank.Family{Name: name})
	}
	return families, nil
}

// parseFaces extracts face definitions in authored order.
func parseFaces(v cue.Value) ([]bank.Face, error) {
	facesVal := v.LookupPath(cue.ParsePath("faces"))
	if !facesVal.Exists() {
		return nil, &CompileError{
			Field:   "faces",
			Message: "faces list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := facesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var faces []bank.Face
	for iter.Next() {
		fv := iter.Value()
		face := bank.Face{}

		if face.ID, err = requiredString(fv, "id"); err != nil {
			return nil, err
		}
		if face.Name, err = requiredString(fv, "name"); err != nil {
			return nil, err
		}
		if face.Family, err = requiredString(fv, "family"); err != nil {
			return nil, err
		}
		faces = append(faces, face)
	}
	return faces, nil
}

// parseTells extracts the tell registry. The contrast flag is optional
// and defaults to false.
func parseTells(v cue.Value) ([]bank.Tell, error) {
	tellsVal := v.LookupPath(cue.ParsePath("tells"))
	if !tellsVal.Exists() {
		return nil, &CompileError{
			Field:   "tells",
			Message: "tell registry is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := tellsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var tells []bank.Tell
	for iter.Next() {
		tv := iter.Value()
		tell := bank.Tell{}

		if tell.ID, err = requiredString(tv, "id"); err != nil {
			return nil, err
		}
		if tell.Face, err = requiredString(tv, "face"); err != nil {
			return nil, err
		}

		contrastVal := tv.LookupPath(cue.ParsePath("contrast"))
		if contrastVal.Exists() {
			contrast, err := contrastVal.Bool()
			if err != nil {
				return nil, formatCUEError(err)
			}
			tell.Contrast = contrast
		}
		tells = append(tells, tell)
	}
	return tells, nil
}

// parseQuestions extracts questions with their options.
func parseQuestions(v cue.Value) ([]bank.Question, error) {
	qsVal := v.LookupPath(cue.ParsePath("questions"))
	if !qsVal.Exists() {
		return nil, &CompileError{
			Field:   "questions",
			Message: "questions list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := qsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var questions []bank.Question
	for iter.Next() {
		qv := iter.Value()
		q := bank.Question{}

		if q.QID, err = requiredString(qv, "qid"); err != nil {
			return nil, err
		}
		if q.Family, err = requiredString(qv, "family"); err != nil {
			return nil, err
		}
		probe, err := requiredString(qv, "probe")
		if err != nil {
			return nil, err
		}
		q.Probe = bank.Probe(probe)
		if q.Text, err = requiredString(qv, "text"); err != nil {
			return nil, err
		}

		q.Options, err = parseOptions(qv, q.QID)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// parseOptions extracts one question's options. Tells are optional.
func parseOptions(qv cue.Value, qid string) ([]bank.Option, error) {
	optsVal := qv.LookupPath(cue.ParsePath("options"))
	if !optsVal.Exists() {
		return nil, &CompileError{
			Field:   fmt.Sprintf("questions.%s.options", qid),
			Message: "options are required",
			Pos:     qv.Pos(),
		}
	}

	iter, err := optsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var options []bank.Option
	for iter.Next() {
		ov := iter.Value()
		opt := bank.Option{}

		if opt.Key, err = requiredString(ov, "key"); err != nil {
			return nil, err
		}
		if opt.Text, err = requiredString(ov, "text"); err != nil {
			return nil, err
		}
		line, err := requiredString(ov, "line")
		if err != nil {
			return nil, err
		}
		opt.Line = bank.LineCOF(line)

		tellsVal := ov.LookupPath(cue.ParsePath("tells"))
		if tellsVal.Exists() {
			tellIter, err := tellsVal.List()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for tellIter.Next() {
				id, err := tellIter.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				opt.Tells = append(opt.Tells, id)
			}
		}
		options = append(options, opt)
	}
	return options, nil
}

// parseContrastPairs extracts the contrast matrix. The matrix is
// optional; a bank without one simply has no contrast-flagged pairs to
// document.
func parseContrastPairs(v cue.Value) ([]bank.ContrastPair, error) {
	pairsVal := v.LookupPath(cue.ParsePath("contrast_pairs"))
	if !pairsVal.Exists() {
		return nil, nil
	}

	iter, err := pairsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var pairs []bank.ContrastPair
	for iter.Next() {
		pv := iter.Value()
		pair := bank.ContrastPair{}

		if pair.A, err = requiredString(pv, "a"); err != nil {
			return nil, err
		}
		if pair.B, err = requiredString(pv, "b"); err != nil {
			return nil, err
		}
		pairs = append(pairs, pair)
	}
	return pairs, nil
}

// parseProfiles extracts constants profiles from the profiles struct,
// keyed by profile name. All thresholds are required integers; CUE's
// number kind is rejected so floats cannot sneak into scoring.
func parseProfiles(v cue.Value) ([]bank.ConstantsProfile, error) {
	profVal := v.LookupPath(cue.ParsePath("profiles"))
	if !profVal.Exists() {
		return nil, &CompileError{
			Field:   "profiles",
			Message: "at least one constants profile is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := profVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var profiles []bank.ConstantsProfile
	for iter.Next() {
		pv := iter.Value()
		c := bank.ConstantsProfile{Name: iter.Label()}

		fields := []struct {
			name string
			dst  *int
		}{
			{"lit_min_questions", &c.LitMinQuestions},
			{"lit_min_families", &c.LitMinFamilies},
			{"lit_min_signature", &c.LitMinSignature},
			{"lit_min_clean", &c.LitMinClean},
			{"lit_max_broken", &c.LitMaxBroken},
			{"lean_min_questions", &c.LeanMinQuestions},
			{"lean_min_families", &c.LeanMinFamilies},
			{"lean_min_signature", &c.LeanMinSignature},
			{"lean_min_clean", &c.LeanMinClean},
			{"per_screen_cap_pct", &c.PerScreenCapPct},
			{"max_tells_per_option", &c.MaxTellsPerOption},
		}
		for _, f := range fields {
			got, err := requiredInt(pv, f.name, c.Name)
			if err != nil {
				return nil, err
			}
			*f.dst = got
		}
		profiles = append(profiles, c)
	}
	return profiles, nil
}

// requiredString reads a mandatory string field from a CUE struct.
func requiredString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// requiredInt reads a mandatory integer threshold from a profile struct.
// Floats are forbidden; scoring is integer arithmetic end to end.
func requiredInt(v cue.Value, field, profile string) (int, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, &CompileError{
			Field:   fmt.Sprintf("profiles.%s.%s", profile, field),
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	if fv.IncompleteKind() != cue.IntKind {
		return 0, &CompileError{
			Field:   fmt.Sprintf("profiles.%s.%s", profile, field),
			Message: "thresholds must be integers - floats are forbidden",
			Pos:     fv.Pos(),
		}
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return int(n), nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

package bank

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E139)
const (
	// Shape errors (E100-E109): authored counts and canonical ordering
	ErrFamilyCount    = "E100" // bank must have exactly FamilyCount families
	ErrFaceCount      = "E101" // family must have exactly FacesPerFamily faces
	ErrQuestionCount  = "E102" // family must have exactly QuestionsPerFamily questions
	ErrProbeSlot      = "E103" // family questions must cover probes C, O, F in authored order
	ErrOptionArity    = "E104" // question must have exactly OptionsPerQuestion options
	ErrOptionKeyOrder = "E105" // option keys must be A then B
	ErrDuplicateID    = "E106" // duplicate family, face, question, tell, or profile identifier

	// Content errors (E110-E119): field-level legality
	ErrLineInvalid     = "E110" // option lineCOF outside {C, O, F}
	ErrTellBudget      = "E111" // option carries more tells than a profile allows
	ErrDuplicateTell   = "E112" // option credits the same face more than once
	ErrEmptyText       = "E113" // question or option text is empty
	ErrEmptyIdentifier = "E114" // blank name, qid, or registry ID

	// Reference errors (E120-E129): cross-entity integrity
	ErrUnknownFamily = "E120" // face or question names a family the bank lacks
	ErrUnknownFace   = "E121" // tell or contrast pair names a face the bank lacks
	ErrUnknownTell   = "E122" // option names a tell the registry lacks
	ErrContrastPair  = "E123" // contrast pair must join two distinct sibling faces

	// Profile errors (E130-E139)
	ErrProfileValue   = "E130" // threshold outside its legal range
	ErrDefaultProfile = "E131" // default profile absent from the profile set
)

// ValidationError is one schema violation found in an authored bank.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidatePackage checks an authored bank against the instrument's
// structural invariants. Returns all violations found (does not
// fail-fast), so an author sees the complete defect list in one pass.
// Works on sealed and unsealed packages alike; it builds its own
// lookups instead of relying on Seal's indexes.
func ValidatePackage(p *Package) []ValidationError {
	var errs []ValidationError

	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if strings.TrimSpace(p.Name) == "" {
		add("name", ErrEmptyIdentifier, "bank name is required")
	}
	if strings.TrimSpace(p.Version) == "" {
		add("version", ErrEmptyIdentifier, "bank version is required")
	}

	// Families
	if len(p.Families) != FamilyCount {
		add("families", ErrFamilyCount,
			"bank has %d families, want exactly %d", len(p.Families), FamilyCount)
	}
	familySet := make(map[string]bool, len(p.Families))
	for i, f := range p.Families {
		field := fmt.Sprintf("families[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			add(field, ErrEmptyIdentifier, "family name is required")
			continue
		}
		if familySet[f.Name] {
			add(field, ErrDuplicateID, "duplicate family %q", f.Name)
		}
		familySet[f.Name] = true
	}

	// Faces
	faceSet := make(map[string]bool, len(p.Faces))
	facesPerFamily := make(map[string]int)
	faceFamily := make(map[string]string, len(p.Faces))
	for i, f := range p.Faces {
		field := fmt.Sprintf("faces[%d]", i)
		if strings.TrimSpace(f.ID) == "" {
			add(field, ErrEmptyIdentifier, "face ID is required")
			continue
		}
		if faceSet[f.ID] {
			add(field, ErrDuplicateID, "duplicate face %q", f.ID)
		}
		faceSet[f.ID] = true
		faceFamily[f.ID] = f.Family
		if !familySet[f.Family] {
			add(field, ErrUnknownFamily,
				"face %q names unknown family %q", f.ID, f.Family)
			continue
		}
		facesPerFamily[f.Family]++
	}
	for _, f := range p.Families {
		if !familySet[f.Name] {
			continue
		}
		if n := facesPerFamily[f.Name]; n != FacesPerFamily {
			add("faces", ErrFaceCount,
				"family %q has %d faces, want exactly %d", f.Name, n, FacesPerFamily)
		}
	}

	// Tell registry
	tellSet := make(map[string]bool, len(p.Tells))
	tellFace := make(map[string]string, len(p.Tells))
	for i, tl := range p.Tells {
		field := fmt.Sprintf("tells[%d]", i)
		if strings.TrimSpace(tl.ID) == "" {
			add(field, ErrEmptyIdentifier, "tell ID is required")
			continue
		}
		if tellSet[tl.ID] {
			add(field, ErrDuplicateID, "duplicate tell %q", tl.ID)
		}
		tellSet[tl.ID] = true
		tellFace[tl.ID] = tl.Face
		if !faceSet[tl.Face] {
			add(field, ErrUnknownFace,
				"tell %q names unknown face %q", tl.ID, tl.Face)
		}
	}

	// Questions
	questionSet := make(map[string]bool, len(p.Questions))
	questionsPerFamily := make(map[string][]Probe)
	for i, q := range p.Questions {
		field := fmt.Sprintf("questions[%d]", i)
		if strings.TrimSpace(q.QID) == "" {
			add(field, ErrEmptyIdentifier, "qid is required")
			continue
		}
		if questionSet[q.QID] {
			add(field, ErrDuplicateID, "duplicate question %q", q.QID)
		}
		questionSet[q.QID] = true

		if !familySet[q.Family] {
			add(field, ErrUnknownFamily,
				"question %q names unknown family %q", q.QID, q.Family)
		} else {
			questionsPerFamily[q.Family] = append(questionsPerFamily[q.Family], q.Probe)
		}

		if !ValidProbes[q.Probe] {
			add(field+".probe", ErrProbeSlot,
				"question %q has probe %q, want one of C, O, F", q.QID, q.Probe)
		}
		if strings.TrimSpace(q.Text) == "" {
			add(field+".text", ErrEmptyText, "question %q has empty text", q.QID)
		}

		errs = append(errs, validateOptions(q, field, tellSet, tellFace)...)
	}
	for _, f := range p.Families {
		if !familySet[f.Name] {
			continue
		}
		probes := questionsPerFamily[f.Name]
		if len(probes) != QuestionsPerFamily {
			add("questions", ErrQuestionCount,
				"family %q has %d questions, want exactly %d", f.Name, len(probes), QuestionsPerFamily)
			continue
		}
		for slot, want := range ProbeOrder {
			if probes[slot] != want {
				add("questions", ErrProbeSlot,
					"family %q authors probe %q in slot %d, want %q (canonical order C, O, F)",
					f.Name, probes[slot], slot, want)
			}
		}
	}

	// Contrast matrix
	for i, pair := range p.ContrastPairs {
		field := fmt.Sprintf("contrast_pairs[%d]", i)
		if !faceSet[pair.A] {
			add(field, ErrUnknownFace, "contrast pair names unknown face %q", pair.A)
			continue
		}
		if !faceSet[pair.B] {
			add(field, ErrUnknownFace, "contrast pair names unknown face %q", pair.B)
			continue
		}
		if pair.A == pair.B {
			add(field, ErrContrastPair, "contrast pair joins face %q with itself", pair.A)
			continue
		}
		if faceFamily[pair.A] != faceFamily[pair.B] {
			add(field, ErrContrastPair,
				"contrast pair %q / %q crosses families %q and %q, want siblings",
				pair.A, pair.B, faceFamily[pair.A], faceFamily[pair.B])
		}
	}

	// Profiles
	if len(p.Profiles) == 0 {
		add("profiles", ErrDefaultProfile, "bank defines no constants profiles")
	}
	profileSet := make(map[string]bool, len(p.Profiles))
	for i, c := range p.Profiles {
		field := fmt.Sprintf("profiles[%d]", i)
		if strings.TrimSpace(c.Name) == "" {
			add(field, ErrEmptyIdentifier, "profile name is required")
			continue
		}
		if profileSet[c.Name] {
			add(field, ErrDuplicateID, "duplicate profile %q", c.Name)
		}
		profileSet[c.Name] = true
		errs = append(errs, validateProfile(c, field)...)
	}
	if p.DefaultProfile == "" {
		add("default_profile", ErrDefaultProfile, "default profile name is required")
	} else if len(p.Profiles) > 0 && !profileSet[p.DefaultProfile] {
		add("default_profile", ErrDefaultProfile,
			"default profile %q is not among the bank's profiles", p.DefaultProfile)
	}

	// Tell budgets depend on profiles, checked last so every profile is known.
	for i, q := range p.Questions {
		for j, opt := range q.Options {
			field := fmt.Sprintf("questions[%d].options[%d]", i, j)
			for _, c := range p.Profiles {
				if c.MaxTellsPerOption > 0 && len(opt.Tells) > c.MaxTellsPerOption {
					add(field, ErrTellBudget,
						"option %s of %q carries %d tells, profile %q allows %d",
						opt.Key, q.QID, len(opt.Tells), c.Name, c.MaxTellsPerOption)
				}
			}
		}
	}

	return errs
}

// validateOptions checks one question's options: arity, key order, line
// legality, tell references, and the one-tell-per-face rule.
func validateOptions(q Question, field string, tellKnown map[string]bool, tellFace map[string]string) []ValidationError {
	var errs []ValidationError

	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf(format, args...),
			Code:    code,
		})
	}

	if len(q.Options) != OptionsPerQuestion {
		add(field+".options", ErrOptionArity,
			"question %q has %d options, want exactly %d", q.QID, len(q.Options), OptionsPerQuestion)
	}

	wantKeys := []string{"A", "B"}
	for j, opt := range q.Options {
		optField := fmt.Sprintf("%s.options[%d]", field, j)
		if j < len(wantKeys) && opt.Key != wantKeys[j] {
			add(optField, ErrOptionKeyOrder,
				"question %q option %d has key %q, want %q", q.QID, j, opt.Key, wantKeys[j])
		}
		if strings.TrimSpace(opt.Text) == "" {
			add(optField+".text", ErrEmptyText,
				"question %q option %s has empty text", q.QID, opt.Key)
		}
		if !ValidLineCOF[opt.Line] {
			add(optField+".line", ErrLineInvalid,
				"question %q option %s has line %q, want one of C, O, F", q.QID, opt.Key, opt.Line)
		}

		creditedFaces := make(map[string]bool, len(opt.Tells))
		for _, id := range opt.Tells {
			if !tellKnown[id] {
				add(optField+".tells", ErrUnknownTell,
					"question %q option %s names unregistered tell %q", q.QID, opt.Key, id)
				continue
			}
			face := tellFace[id]
			if creditedFaces[face] {
				add(optField+".tells", ErrDuplicateTell,
					"question %q option %s credits face %q more than once", q.QID, opt.Key, face)
			}
			creditedFaces[face] = true
		}
	}

	return errs
}

// validateProfile range-checks one constants profile.
func validateProfile(c ConstantsProfile, field string) []ValidationError {
	var errs []ValidationError

	add := func(name, format string, args ...any) {
		errs = append(errs, ValidationError{
			Field:   field + "." + name,
			Message: fmt.Sprintf(format, args...),
			Code:    ErrProfileValue,
		})
	}

	thresholds := []struct {
		name string
		got  int
	}{
		{"lit_min_questions", c.LitMinQuestions},
		{"lit_min_families", c.LitMinFamilies},
		{"lit_min_signature", c.LitMinSignature},
		{"lit_min_clean", c.LitMinClean},
		{"lit_max_broken", c.LitMaxBroken},
		{"lean_min_questions", c.LeanMinQuestions},
		{"lean_min_families", c.LeanMinFamilies},
		{"lean_min_signature", c.LeanMinSignature},
		{"lean_min_clean", c.LeanMinClean},
	}
	for _, th := range thresholds {
		if th.got < 0 {
			add(th.name, "profile %q: %s is %d, want >= 0", c.Name, th.name, th.got)
		}
	}

	if c.PerScreenCapPct < 1 || c.PerScreenCapPct > 100 {
		add("per_screen_cap_pct",
			"profile %q: per_screen_cap_pct is %d, want 1..100", c.Name, c.PerScreenCapPct)
	}
	// Three is the instrument's authored ceiling: options never carry more.
	if c.MaxTellsPerOption < 1 || c.MaxTellsPerOption > 3 {
		add("max_tells_per_option",
			"profile %q: max_tells_per_option is %d, want 1..3", c.Name, c.MaxTellsPerOption)
	}

	return errs
}

package bank

import (
	"fmt"
)

// Package is a complete loaded question bank: seven families, fourteen
// faces, twenty-one questions, the tell registry, the contrast matrix,
// and the scoring profiles. A Package must be sealed before use; sealing
// builds the lookup indexes and fixes the content hash. Sealed packages
// are immutable and safe for concurrent readers.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	Families      []Family           `json:"families"`
	Faces         []Face             `json:"faces"`
	Questions     []Question         `json:"questions"`
	Tells         []Tell             `json:"tells"`
	ContrastPairs []ContrastPair     `json:"contrast_pairs"`
	Profiles      []ConstantsProfile `json:"profiles"`

	// DefaultProfile names the profile used when a session does not
	// request one explicitly.
	DefaultProfile string `json:"default_profile"`

	hash              string
	familyIndex       map[string]int
	faceIndex         map[string]int
	questionIndex     map[string]int
	tellIndex         map[string]int
	profileIndex      map[string]int
	questionsByFamily map[string][]int
	facesByFamily     map[string][]int
}

// Seal builds the package's lookup indexes and computes its content hash.
// Sealing fails on duplicate identifiers; deeper semantic checks (counts,
// references, probe coverage) are the compiler's job. Seal must be called
// exactly once, after which the package must not be mutated.
func (p *Package) Seal() error {
	if p.hash != "" {
		return fmt.Errorf("package %q already sealed", p.Name)
	}

	p.familyIndex = make(map[string]int, len(p.Families))
	for i, f := range p.Families {
		if _, dup := p.familyIndex[f.Name]; dup {
			return fmt.Errorf("duplicate family %q", f.Name)
		}
		p.familyIndex[f.Name] = i
	}

	p.faceIndex = make(map[string]int, len(p.Faces))
	p.facesByFamily = make(map[string][]int)
	for i, f := range p.Faces {
		if _, dup := p.faceIndex[f.ID]; dup {
			return fmt.Errorf("duplicate face %q", f.ID)
		}
		p.faceIndex[f.ID] = i
		p.facesByFamily[f.Family] = append(p.facesByFamily[f.Family], i)
	}

	p.questionIndex = make(map[string]int, len(p.Questions))
	p.questionsByFamily = make(map[string][]int)
	for i, q := range p.Questions {
		if _, dup := p.questionIndex[q.QID]; dup {
			return fmt.Errorf("duplicate question %q", q.QID)
		}
		p.questionIndex[q.QID] = i
		p.questionsByFamily[q.Family] = append(p.questionsByFamily[q.Family], i)
	}

	p.tellIndex = make(map[string]int, len(p.Tells))
	for i, t := range p.Tells {
		if _, dup := p.tellIndex[t.ID]; dup {
			return fmt.Errorf("duplicate tell %q", t.ID)
		}
		p.tellIndex[t.ID] = i
	}

	p.profileIndex = make(map[string]int, len(p.Profiles))
	for i, c := range p.Profiles {
		if _, dup := p.profileIndex[c.Name]; dup {
			return fmt.Errorf("duplicate profile %q", c.Name)
		}
		p.profileIndex[c.Name] = i
	}

	hash, err := HashDocument(p.CanonicalDocument())
	if err != nil {
		return fmt.Errorf("seal package %q: %w", p.Name, err)
	}
	p.hash = hash
	return nil
}

// Sealed reports whether Seal has completed.
func (p *Package) Sealed() bool {
	return p.hash != ""
}

// Hash returns the package's content hash. Empty until sealed.
func (p *Package) Hash() string {
	return p.hash
}

// FamilyNames returns family names in canonical (authored) order.
func (p *Package) FamilyNames() []string {
	names := make([]string, len(p.Families))
	for i, f := range p.Families {
		names[i] = f.Name
	}
	return names
}

// HasFamily reports whether the named family exists.
func (p *Package) HasFamily(name string) bool {
	_, ok := p.familyIndex[name]
	return ok
}

// Face returns the face with the given ID.
func (p *Package) Face(id string) (Face, bool) {
	i, ok := p.faceIndex[id]
	if !ok {
		return Face{}, false
	}
	return p.Faces[i], true
}

// FaceIDs returns face IDs in canonical (authored) order.
func (p *Package) FaceIDs() []string {
	ids := make([]string, len(p.Faces))
	for i, f := range p.Faces {
		ids[i] = f.ID
	}
	return ids
}

// FacesForFamily returns the family's faces in authored order.
func (p *Package) FacesForFamily(family string) []Face {
	idxs := p.facesByFamily[family]
	faces := make([]Face, 0, len(idxs))
	for _, i := range idxs {
		faces = append(faces, p.Faces[i])
	}
	return faces
}

// Question returns the question with the given qid.
func (p *Package) Question(qid string) (Question, bool) {
	i, ok := p.questionIndex[qid]
	if !ok {
		return Question{}, false
	}
	return p.Questions[i], true
}

// QuestionsForFamily returns the family's questions in authored order.
func (p *Package) QuestionsForFamily(family string) []Question {
	idxs := p.questionsByFamily[family]
	qs := make([]Question, 0, len(idxs))
	for _, i := range idxs {
		qs = append(qs, p.Questions[i])
	}
	return qs
}

// QuestionForProbe returns the family's question for the given probe.
func (p *Package) QuestionForProbe(family string, probe Probe) (Question, bool) {
	for _, i := range p.questionsByFamily[family] {
		if p.Questions[i].Probe == probe {
			return p.Questions[i], true
		}
	}
	return Question{}, false
}

// Tell returns the registry entry with the given ID.
func (p *Package) Tell(id string) (Tell, bool) {
	i, ok := p.tellIndex[id]
	if !ok {
		return Tell{}, false
	}
	return p.Tells[i], true
}

// Constants returns the named scoring profile. An empty name selects the
// package's default profile.
func (p *Package) Constants(name string) (ConstantsProfile, error) {
	if name == "" {
		name = p.DefaultProfile
	}
	i, ok := p.profileIndex[name]
	if !ok {
		return ConstantsProfile{}, fmt.Errorf("unknown constants profile %q", name)
	}
	return p.Profiles[i], nil
}

// CanonicalDocument assembles the package's content as a hashable Object.
// Array order follows authored order; key order is handled by canonical
// marshaling.
func (p *Package) CanonicalDocument() Object {
	families := make(Array, len(p.Families))
	for i, f := range p.Families {
		families[i] = Object{"name": String(f.Name)}
	}

	faces := make(Array, len(p.Faces))
	for i, f := range p.Faces {
		faces[i] = Object{
			"id":     String(f.ID),
			"name":   String(f.Name),
			"family": String(f.Family),
		}
	}

	questions := make(Array, len(p.Questions))
	for i, q := range p.Questions {
		options := make(Array, len(q.Options))
		for j, opt := range q.Options {
			tells := make(Array, len(opt.Tells))
			for k, id := range opt.Tells {
				tells[k] = String(id)
			}
			options[j] = Object{
				"key":   String(opt.Key),
				"text":  String(opt.Text),
				"line":  String(opt.Line),
				"tells": tells,
			}
		}
		questions[i] = Object{
			"qid":     String(q.QID),
			"family":  String(q.Family),
			"probe":   String(q.Probe),
			"text":    String(q.Text),
			"options": options,
		}
	}

	tells := make(Array, len(p.Tells))
	for i, t := range p.Tells {
		tells[i] = Object{
			"id":       String(t.ID),
			"face":     String(t.Face),
			"contrast": Bool(t.Contrast),
		}
	}

	contrast := make(Array, len(p.ContrastPairs))
	for i, pair := range p.ContrastPairs {
		contrast[i] = Object{
			"a": String(pair.A),
			"b": String(pair.B),
		}
	}

	profiles := make(Object, len(p.Profiles))
	for _, c := range p.Profiles {
		profiles[c.Name] = Object{
			"lit_min_questions":    Int(c.LitMinQuestions),
			"lit_min_families":     Int(c.LitMinFamilies),
			"lit_min_signature":    Int(c.LitMinSignature),
			"lit_min_clean":        Int(c.LitMinClean),
			"lit_max_broken":       Int(c.LitMaxBroken),
			"lean_min_questions":   Int(c.LeanMinQuestions),
			"lean_min_families":    Int(c.LeanMinFamilies),
			"lean_min_signature":   Int(c.LeanMinSignature),
			"lean_min_clean":       Int(c.LeanMinClean),
			"per_screen_cap_pct":   Int(c.PerScreenCapPct),
			"max_tells_per_option": Int(c.MaxTellsPerOption),
		}
	}

	return Object{
		"schema_version":  String(SchemaVersion),
		"name":            String(p.Name),
		"version":         String(p.Version),
		"families":        families,
		"faces":           faces,
		"questions":       questions,
		"tells":           tells,
		"contrast_pairs":  contrast,
		"profiles":        profiles,
		"default_profile": String(p.DefaultProfile),
	}
}

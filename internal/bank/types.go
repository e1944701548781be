package bank

// LineCOF classifies an option's effect on its family line:
// C (clean), O (bent, pressure without break), F (broken).
type LineCOF string

const (
	LineClean  LineCOF = "C"
	LineBent   LineCOF = "O"
	LineBroken LineCOF = "F"
)

// ValidLineCOF enumerates the legal lineCOF values.
var ValidLineCOF = map[LineCOF]bool{
	LineClean:  true,
	LineBent:   true,
	LineBroken: true,
}

// Probe identifies which of a family's three authored probes a question is.
// Every family authors exactly one question per probe.
type Probe string

const (
	ProbeClean  Probe = "C"
	ProbeBent   Probe = "O"
	ProbeBroken Probe = "F"
)

// ValidProbes enumerates the legal probe values.
var ValidProbes = map[Probe]bool{
	ProbeClean:  true,
	ProbeBent:   true,
	ProbeBroken: true,
}

// ProbeOrder is the authored probe order within a family screen.
var ProbeOrder = [3]Probe{ProbeClean, ProbeBent, ProbeBroken}

// Structural constants of the instrument. These are shape invariants of
// every bank, not tunable thresholds; tunables live in ConstantsProfile.
const (
	// FamilyCount is the number of behavioral families in a bank.
	FamilyCount = 7

	// FacesPerFamily is the number of sibling faces per family.
	FacesPerFamily = 2

	// QuestionsPerFamily is the number of authored questions per family.
	QuestionsPerFamily = 3

	// OptionsPerQuestion is the number of choices per question.
	OptionsPerQuestion = 2

	// PickedScreenQuestions is how many questions a picked family
	// contributes to a session's schedule.
	PickedScreenQuestions = 2

	// UnpickedScreenQuestions is how many questions a not-picked family
	// contributes to a session's schedule.
	UnpickedScreenQuestions = 3
)

// Family is one of the seven behavioral families in a bank.
type Family struct {
	Name string `json:"name"`
}

// Face is one of a family's two sibling identities. Evidence is credited
// to faces; verdicts about families are derived from face states.
type Face struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Family string `json:"family"`
}

// Tell is a registry entry binding a unit of observable evidence to a
// face. A contrast tell specifically separates two sibling faces.
type Tell struct {
	ID       string `json:"id"`
	Face     string `json:"face"`
	Contrast bool   `json:"contrast"`
}

// Option is one of a question's two choices. Tells lists registry IDs,
// at most one per face and at most the profile's per-option limit.
type Option struct {
	Key   string   `json:"key"`
	Text  string   `json:"text"`
	Line  LineCOF  `json:"line"`
	Tells []string `json:"tells,omitempty"`
}

// Question is a single screen prompt probing one family line.
type Question struct {
	QID     string   `json:"qid"`
	Family  string   `json:"family"`
	Probe   Probe    `json:"probe"`
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Option returns the question's option with the given key.
func (q Question) Option(key string) (Option, bool) {
	for _, opt := range q.Options {
		if opt.Key == key {
			return opt, true
		}
	}
	return Option{}, false
}

// ContrastPair names two sibling faces that contrast tells separate.
type ContrastPair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// ConstantsProfile is a named set of scoring thresholds. All values are
// integers; the per-screen cap is a percentage so that cap arithmetic
// stays in integer space end to end.
type ConstantsProfile struct {
	Name string `json:"name"`

	LitMinQuestions int `json:"lit_min_questions"`
	LitMinFamilies  int `json:"lit_min_families"`
	LitMinSignature int `json:"lit_min_signature"`
	LitMinClean     int `json:"lit_min_clean"`
	LitMaxBroken    int `json:"lit_max_broken"`

	LeanMinQuestions int `json:"lean_min_questions"`
	LeanMinFamilies  int `json:"lean_min_families"`
	LeanMinSignature int `json:"lean_min_signature"`
	LeanMinClean     int `json:"lean_min_clean"`

	// PerScreenCapPct bounds the share of a face's credited tells that may
	// come from a single family screen, expressed as a whole percentage.
	PerScreenCapPct int `json:"per_screen_cap_pct"`

	// MaxTellsPerOption bounds how many tells one option may carry.
	MaxTellsPerOption int `json:"max_tells_per_option"`
}

// MaxPerFace computes the per-family-screen credit cap for a face:
// floor(cap% x screenSize x maxTellsPerOption). Integer arithmetic only.
func (c ConstantsProfile) MaxPerFace(screenSize int) int {
	return c.PerScreenCapPct * screenSize * c.MaxTellsPerOption / 100
}

// DefaultConstants returns the baseline scoring profile.
func DefaultConstants() ConstantsProfile {
	return ConstantsProfile{
		Name:              "default",
		LitMinQuestions:   6,
		LitMinFamilies:    4,
		LitMinSignature:   2,
		LitMinClean:       4,
		LitMaxBroken:      1,
		LeanMinQuestions:  4,
		LeanMinFamilies:   3,
		LeanMinSignature:  1,
		LeanMinClean:      3,
		PerScreenCapPct:   40,
		MaxTellsPerOption: 3,
	}
}

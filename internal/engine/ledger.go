package engine

import (
	"fmt"

	"github.com/roach88/facet/internal/bank"
)

// LineState tracks one family's line across a session. Clean counts
// clean-option answers; BentSeen and BrokenSeen latch the first time the
// family takes an O or F option.
type LineState struct {
	Clean      int  `json:"clean"`
	BentSeen   bool `json:"bent_seen"`
	BrokenSeen bool `json:"broken_seen"`
}

// FaceLedger accumulates one face's credited evidence. Counters sum
// credited tells only; tells dropped by the concentration cap leave no
// trace here.
type FaceLedger struct {
	QuestionsHit    map[string]bool
	FamiliesHit     map[string]bool
	SignatureQIDs   map[string]bool
	Clean           int
	Bent            int
	Broken          int
	PerFamilyCounts map[string]int
	ContrastSeen    bool
}

func newFaceLedger() *FaceLedger {
	return &FaceLedger{
		QuestionsHit:    make(map[string]bool),
		FamiliesHit:     make(map[string]bool),
		SignatureQIDs:   make(map[string]bool),
		PerFamilyCounts: make(map[string]int),
	}
}

// CreditSummary reports how one answer's tells fared against the cap.
type CreditSummary struct {
	Credited int
	Dropped  int
}

// Ledger is a session's complete scoring state: a LineState per family
// and a FaceLedger per face. It is owned by the session and mutated only
// under the session lock.
type Ledger struct {
	pkg       *bank.Package
	constants bank.ConstantsProfile
	picked    map[string]bool

	lines map[string]*LineState  // by family name
	faces map[string]*FaceLedger // by face ID
}

// NewLedger creates a zeroed ledger covering every family and face in
// the bank.
func NewLedger(pkg *bank.Package, constants bank.ConstantsProfile, picked map[string]bool) *Ledger {
	l := &Ledger{
		pkg:       pkg,
		constants: constants,
		picked:    picked,
		lines:     make(map[string]*LineState),
		faces:     make(map[string]*FaceLedger),
	}
	for _, fam := range pkg.FamilyNames() {
		l.lines[fam] = &LineState{}
	}
	for _, id := range pkg.FaceIDs() {
		l.faces[id] = newFaceLedger()
	}
	return l
}

// screenSize is the number of questions the family contributes to this
// session's schedule: 2 if picked, 3 if not.
func (l *Ledger) screenSize(family string) int {
	if l.picked[family] {
		return bank.PickedScreenQuestions
	}
	return bank.UnpickedScreenQuestions
}

// Apply records a fresh answer: the family line updates per the chosen
// option's lineCOF, then each tell on the option is credited subject to
// the concentration cap.
func (l *Ledger) Apply(ans *Answer) CreditSummary {
	l.applyLine(ans.Family, ans.Line)
	return l.creditTells(ans)
}

func (l *Ledger) applyLine(family string, line bank.LineCOF) {
	ls := l.lines[family]
	switch line {
	case bank.LineClean:
		ls.Clean++
	case bank.LineBent:
		ls.BentSeen = true
	case bank.LineBroken:
		ls.BrokenSeen = true
	}
}

// reverseLine undoes the exactly-revertible part of a line update: the
// Clean counter. BentSeen and BrokenSeen stay latched - reverting them
// would require tracking every contributing answer, and the contract
// keeps the latch as a documented limitation instead.
func (l *Ledger) reverseLine(family string, line bank.LineCOF) {
	if line == bank.LineClean {
		l.lines[family].Clean--
	}
}

// creditTells credits the answer's tells to their faces. A face may
// take at most maxPerFace credits from one family screen; tells beyond
// the cap are dropped from ledger accounting and reported only through
// the returned summary.
func (l *Ledger) creditTells(ans *Answer) CreditSummary {
	var sum CreditSummary
	maxPerFace := l.constants.MaxPerFace(l.screenSize(ans.Family))

	for _, tellID := range ans.Tells {
		tell, ok := l.pkg.Tell(tellID)
		if !ok {
			// Sealed banks are validated at load; a dangling tell here is
			// an unreachable invariant violation, not a caller error.
			panic(fmt.Sprintf("bank %s: option tell %q not in registry", l.pkg.Name, tellID))
		}
		face, ok := l.pkg.Face(tell.Face)
		if !ok {
			panic(fmt.Sprintf("bank %s: tell %q references unknown face %q", l.pkg.Name, tellID, tell.Face))
		}

		fl := l.faces[face.ID]
		if fl.PerFamilyCounts[ans.Family] >= maxPerFace {
			sum.Dropped++
			continue
		}

		fl.QuestionsHit[ans.QID] = true
		fl.FamiliesHit[ans.Family] = true
		switch ans.Line {
		case bank.LineClean:
			fl.Clean++
		case bank.LineBent:
			fl.Bent++
		case bank.LineBroken:
			fl.Broken++
		}
		fl.PerFamilyCounts[ans.Family]++
		if face.Family == ans.Family {
			fl.SignatureQIDs[ans.QID] = true
		}
		if tell.Contrast {
			fl.ContrastSeen = true
		}
		sum.Credited++
	}
	return sum
}

// RebuildFaces wipes every face ledger and re-credits the given answers
// in submission order. Used on answer replacement, where cap decisions
// are order-dependent and must be recomputed from scratch. Line state is
// NOT rebuilt; the caller reverses the Clean counter explicitly.
//
// Returns per-qid credit summaries for the rebuilt state.
func (l *Ledger) RebuildFaces(ordered []*Answer) map[string]CreditSummary {
	for id := range l.faces {
		l.faces[id] = newFaceLedger()
	}

	out := make(map[string]CreditSummary, len(ordered))
	for _, ans := range ordered {
		out[ans.QID] = l.creditTells(ans)
	}
	return out
}

// Line returns a copy of the family's line state.
func (l *Ledger) Line(family string) LineState {
	if ls, ok := l.lines[family]; ok {
		return *ls
	}
	return LineState{}
}

// faceLedger returns the live ledger for a face. Finalize-time readers
// iterate faces in the bank's authored order for determinism.
func (l *Ledger) faceLedger(faceID string) *FaceLedger {
	return l.faces[faceID]
}

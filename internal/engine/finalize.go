package engine

import (
	"github.com/roach88/facet/internal/bank"
)

// FaceState is the gated classification of one face at finalize.
type FaceState string

const (
	FaceLit    FaceState = "LIT"
	FaceLean   FaceState = "LEAN"
	FaceCold   FaceState = "COLD"
	FaceGhost  FaceState = "GHOST"
	FaceAbsent FaceState = "ABSENT"
)

// Structural gate bounds. These are part of the gate definitions
// themselves, unlike the LIT/LEAN thresholds and the concentration cap,
// which are authored per constants profile.
const (
	ghostMinQuestions = 6
	ghostMaxFamilies  = 2
	coldMinQuestions  = 2
	coldMaxQuestions  = 3
	coldMinFamilies   = 2
)

// facePriority orders states for family-representative selection.
var facePriority = map[FaceState]int{
	FaceLit:    4,
	FaceLean:   3,
	FaceCold:   2,
	FaceGhost:  1,
	FaceAbsent: 0,
}

// verdictPriority orders line verdicts for anchor-family selection.
// A clean line outranks a bent one, which outranks a broken one.
var verdictPriority = map[bank.LineCOF]int{
	bank.LineClean:  2,
	bank.LineBent:   1,
	bank.LineBroken: 0,
}

// Evidence is the integer summary of one face's credited ledger, the
// sole input to the gate cascade. Derived quantities only; it carries
// no references back into the ledger.
type Evidence struct {
	Questions int  `json:"questions"`
	Families  int  `json:"families"`
	Signature int  `json:"signature"`
	Clean     int  `json:"clean"`
	Bent      int  `json:"bent"`
	Broken    int  `json:"broken"`
	Total     int  `json:"total"`
	MaxFamily int  `json:"max_family"`
	Contrast  bool `json:"contrast"`
}

// FamilyRep is the face chosen to represent a family in the snapshot.
// CoPresent reports whether the family's other face also cleared ABSENT.
type FamilyRep struct {
	Family    string    `json:"family"`
	FaceID    string    `json:"face_id"`
	State     FaceState `json:"state"`
	CoPresent bool      `json:"co_present"`
}

// finalResult is the computed outcome of a session, before snapshot
// assembly. Map iteration order is never relied on; consumers walk the
// bank's authored family and face order.
type finalResult struct {
	LineVerdicts map[string]bank.LineCOF
	FaceStates   map[string]FaceState
	FaceEvidence map[string]Evidence
	FamilyReps   []FamilyRep
	AnchorFamily string
}

// deriveEvidence reduces a face ledger to its gate inputs.
func deriveEvidence(fl *FaceLedger) Evidence {
	ev := Evidence{
		Questions: len(fl.QuestionsHit),
		Families:  len(fl.FamiliesHit),
		Signature: len(fl.SignatureQIDs),
		Clean:     fl.Clean,
		Bent:      fl.Bent,
		Broken:    fl.Broken,
		Contrast:  fl.ContrastSeen,
	}
	ev.Total = ev.Clean + ev.Bent + ev.Broken
	for _, n := range fl.PerFamilyCounts {
		if n > ev.MaxFamily {
			ev.MaxFamily = n
		}
	}
	return ev
}

// shareExceedsCap reports whether maxFamily/total > capPct/100, by
// cross-multiplication so no division is involved. Zero-total evidence
// never exceeds the cap.
func shareExceedsCap(maxFamily, total, capPct int) bool {
	return maxFamily*100 > capPct*total
}

// classifyFace runs the gate cascade; the first matching gate wins.
// GHOST is only reachable with credited evidence: with an empty ledger
// the BROKEN >= CLEAN disjunct would otherwise fire vacuously and no
// face could ever be ABSENT.
func classifyFace(ev Evidence, c bank.ConstantsProfile) FaceState {
	if ev.Total > 0 {
		if ev.Broken >= ev.Clean ||
			shareExceedsCap(ev.MaxFamily, ev.Total, c.PerScreenCapPct) ||
			(ev.Questions >= ghostMinQuestions && ev.Families <= ghostMaxFamilies) {
			return FaceGhost
		}
	}
	if ev.Questions >= c.LitMinQuestions &&
		ev.Families >= c.LitMinFamilies &&
		ev.Signature >= c.LitMinSignature &&
		ev.Clean >= c.LitMinClean &&
		ev.Broken <= c.LitMaxBroken &&
		ev.Broken < ev.Clean &&
		!shareExceedsCap(ev.MaxFamily, ev.Total, c.PerScreenCapPct) &&
		ev.Contrast {
		return FaceLit
	}
	if ev.Questions >= c.LeanMinQuestions &&
		ev.Families >= c.LeanMinFamilies &&
		ev.Signature >= c.LeanMinSignature &&
		ev.Clean >= c.LeanMinClean &&
		ev.Broken < ev.Clean {
		return FaceLean
	}
	if ev.Questions >= coldMinQuestions &&
		ev.Questions <= coldMaxQuestions &&
		ev.Families >= coldMinFamilies {
		return FaceCold
	}
	return FaceAbsent
}

// lineVerdict collapses a family's line state to a single verdict:
// broken dominates bent, bent dominates clean.
func lineVerdict(ls LineState) bank.LineCOF {
	switch {
	case ls.BrokenSeen:
		return bank.LineBroken
	case ls.BentSeen:
		return bank.LineBent
	default:
		return bank.LineClean
	}
}

// betterRep reports whether face A strictly beats face B for family
// representation: higher state priority, then more families hit, then
// more signature questions, then more clean credits. Equal on all four
// keeps B (callers walk faces in authored order, so the earlier face
// wins ties).
func betterRep(aState FaceState, a Evidence, bState FaceState, b Evidence) bool {
	if facePriority[aState] != facePriority[bState] {
		return facePriority[aState] > facePriority[bState]
	}
	if a.Families != b.Families {
		return a.Families > b.Families
	}
	if a.Signature != b.Signature {
		return a.Signature > b.Signature
	}
	return a.Clean > b.Clean
}

// computeFinal evaluates every gate and selection rule for a completed
// session. Pure with respect to its inputs; all iteration follows the
// bank's authored order so identical sessions produce identical results.
func computeFinal(pkg *bank.Package, constants bank.ConstantsProfile, led *Ledger, picked map[string]bool) finalResult {
	res := finalResult{
		LineVerdicts: make(map[string]bank.LineCOF, bank.FamilyCount),
		FaceStates:   make(map[string]FaceState),
		FaceEvidence: make(map[string]Evidence),
	}

	for _, id := range pkg.FaceIDs() {
		ev := deriveEvidence(led.faceLedger(id))
		res.FaceEvidence[id] = ev
		res.FaceStates[id] = classifyFace(ev, constants)
	}

	for _, fam := range pkg.FamilyNames() {
		res.LineVerdicts[fam] = lineVerdict(led.Line(fam))
		res.FamilyReps = append(res.FamilyReps, pickRep(pkg, fam, res.FaceStates, res.FaceEvidence))
	}

	res.AnchorFamily = pickAnchor(pkg, led, picked)
	return res
}

// pickRep chooses the family's representative face and the co-presence
// flag for its runner-up.
func pickRep(pkg *bank.Package, family string, states map[string]FaceState, evidence map[string]Evidence) FamilyRep {
	faces := pkg.FacesForFamily(family)

	best := faces[0].ID
	for _, f := range faces[1:] {
		if betterRep(states[f.ID], evidence[f.ID], states[best], evidence[best]) {
			best = f.ID
		}
	}

	coPresent := false
	for _, f := range faces {
		if f.ID != best && states[f.ID] != FaceAbsent {
			coPresent = true
		}
	}

	return FamilyRep{
		Family:    family,
		FaceID:    best,
		State:     states[best],
		CoPresent: coPresent,
	}
}

// pickAnchor selects the anchor family among the not-picked families by
// verdict priority, then clean count, then authored order. When every
// family was picked there are no not-picked candidates, so all families
// compete.
func pickAnchor(pkg *bank.Package, led *Ledger, picked map[string]bool) string {
	var candidates []string
	for _, fam := range pkg.FamilyNames() {
		if !picked[fam] {
			candidates = append(candidates, fam)
		}
	}
	if len(candidates) == 0 {
		candidates = pkg.FamilyNames()
	}

	best := candidates[0]
	bestLine := led.Line(best)
	for _, fam := range candidates[1:] {
		line := led.Line(fam)
		bestVerdict := verdictPriority[lineVerdict(bestLine)]
		verdict := verdictPriority[lineVerdict(line)]
		switch {
		case verdict > bestVerdict:
			best, bestLine = fam, line
		case verdict == bestVerdict && line.Clean > bestLine.Clean:
			best, bestLine = fam, line
		}
	}
	return best
}

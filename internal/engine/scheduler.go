package engine

import (
	"fmt"

	"github.com/roach88/facet/internal/bank"
)

// ScheduleEntry is one slot in a session's fixed question sequence.
// ScreenIndex is the 0-based position within the family's contribution.
type ScheduleEntry struct {
	QID         string     `json:"qid"`
	Family      string     `json:"family"`
	ScreenIndex int        `json:"screen_index"`
	Probe       bank.Probe `json:"probe"`
}

// Schedule is the fixed question sequence for one session. Entries are
// grouped per family in presentation order with probes in authored C, O,
// F order; the all-picked branch appends its extra F-probes at the end.
// No question repeats.
type Schedule struct {
	Picks             []string        `json:"picks"`
	PresentationOrder []string        `json:"presentation_order"`
	Entries           []ScheduleEntry `json:"entries"`

	index map[string]int
}

// Entry returns the schedule slot for qid.
func (s *Schedule) Entry(qid string) (ScheduleEntry, bool) {
	i, ok := s.index[qid]
	if !ok {
		return ScheduleEntry{}, false
	}
	return s.Entries[i], true
}

// Contains reports whether qid is scheduled.
func (s *Schedule) Contains(qid string) bool {
	_, ok := s.index[qid]
	return ok
}

// BuildSchedule derives the question sequence for a set of picked
// families. picks must already be validated and in canonical family
// order. The family presentation order comes from a single shuffle of
// all seven families; that shuffle is this function's only use of the
// random stream.
//
// Contribution per branch:
//   - 0 picks: every family contributes C, O, F (21 questions)
//   - all 7 picked: every family contributes C, O, then the first 4
//     families in presentation order append their F-probe (18)
//   - 1 pick: the picked family contributes C, O; not-picked families
//     contribute C, O, F, except the first 2 not-picked in presentation
//     order, which drop O (18)
//   - 2-6 picks: picked contribute C, O; not-picked contribute C, O, F
//     (21 - picks)
//
// Fails with E_SCHEDULER_IMPOSSIBLE if a required probe has no authored
// question.
func BuildSchedule(pkg *bank.Package, picks []string, stream *Stream) (*Schedule, error) {
	picked := make(map[string]bool, len(picks))
	for _, f := range picks {
		picked[f] = true
	}

	presentation := pkg.FamilyNames()
	Shuffle(stream, presentation)

	// Decide each family's probe list.
	probesFor := make(map[string][]bank.Probe, len(presentation))
	switch n := len(picks); {
	case n == 0:
		for _, fam := range presentation {
			probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBent, bank.ProbeBroken}
		}

	case n == bank.FamilyCount:
		for _, fam := range presentation {
			probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBent}
		}

	case n == 1:
		droppedBent := 0
		for _, fam := range presentation {
			switch {
			case picked[fam]:
				probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBent}
			case droppedBent < 2:
				probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBroken}
				droppedBent++
			default:
				probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBent, bank.ProbeBroken}
			}
		}

	default: // 2-6 picks
		for _, fam := range presentation {
			if picked[fam] {
				probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBent}
			} else {
				probesFor[fam] = []bank.Probe{bank.ProbeClean, bank.ProbeBent, bank.ProbeBroken}
			}
		}
	}

	sched := &Schedule{
		Picks:             append([]string(nil), picks...),
		PresentationOrder: presentation,
		index:             make(map[string]int),
	}

	screenCount := make(map[string]int, len(presentation))
	appendProbe := func(fam string, probe bank.Probe) error {
		q, ok := pkg.QuestionForProbe(fam, probe)
		if !ok {
			return &EngineError{
				Code:    ErrCodeSchedulerImpossible,
				Message: fmt.Sprintf("family %q has no authored %s-probe", fam, probe),
				Details: map[string]string{"family": fam, "probe": string(probe)},
			}
		}
		sched.index[q.QID] = len(sched.Entries)
		sched.Entries = append(sched.Entries, ScheduleEntry{
			QID:         q.QID,
			Family:      fam,
			ScreenIndex: screenCount[fam],
			Probe:       probe,
		})
		screenCount[fam]++
		return nil
	}

	for _, fam := range presentation {
		for _, probe := range probesFor[fam] {
			if err := appendProbe(fam, probe); err != nil {
				return nil, err
			}
		}
	}

	// All-picked branch: F-probes from the first 4 families in
	// presentation order, appended after every family screen.
	if len(picks) == bank.FamilyCount {
		for _, fam := range presentation[:4] {
			if err := appendProbe(fam, bank.ProbeBroken); err != nil {
				return nil, err
			}
		}
	}

	return sched, nil
}

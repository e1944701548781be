package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/facet/internal/bank"
	"github.com/roach88/facet/internal/testutil"
)

// optionAnswer builds the Answer a submission of (qid, key) would record.
func optionAnswer(t *testing.T, pkg *bank.Package, qid, key string) *Answer {
	t.Helper()
	q, ok := pkg.Question(qid)
	require.True(t, ok, "fixture question %s", qid)
	opt, ok := q.Option(key)
	require.True(t, ok, "fixture option %s/%s", qid, key)
	return &Answer{
		QID:       qid,
		Family:    q.Family,
		OptionKey: key,
		Line:      opt.Line,
		Tells:     opt.Tells,
	}
}

func newTestLedger(picked ...string) (*Ledger, *bank.Package) {
	pkg := testutil.NewTestPackage()
	pickedSet := make(map[string]bool, len(picked))
	for _, f := range picked {
		pickedSet[f] = true
	}
	return NewLedger(pkg, bank.DefaultConstants(), pickedSet), pkg
}

func TestLedgerLineTracking(t *testing.T) {
	led, pkg := newTestLedger()

	led.Apply(optionAnswer(t, pkg, "control_c", "A")) // clean
	led.Apply(optionAnswer(t, pkg, "control_o", "A")) // clean
	led.Apply(optionAnswer(t, pkg, "control_f", "B")) // broken

	line := led.Line("Control")
	assert.Equal(t, 2, line.Clean)
	assert.False(t, line.BentSeen)
	assert.True(t, line.BrokenSeen)

	led.Apply(optionAnswer(t, pkg, "pace_c", "B")) // bent
	assert.True(t, led.Line("Pace").BentSeen)
	assert.Equal(t, 0, led.Line("Pace").Clean)

	assert.Equal(t, LineState{}, led.Line("Stress"), "untouched family stays zeroed")
}

func TestLedgerReverseLineOnlyUndoesClean(t *testing.T) {
	led, pkg := newTestLedger()

	led.Apply(optionAnswer(t, pkg, "control_c", "A"))
	led.Apply(optionAnswer(t, pkg, "pace_c", "B"))

	led.reverseLine("Control", bank.LineClean)
	assert.Equal(t, 0, led.Line("Control").Clean, "clean reversal is exact")

	// Bent and broken are latches; reversal must not clear them.
	led.reverseLine("Pace", bank.LineBent)
	assert.True(t, led.Line("Pace").BentSeen)
}

func TestLedgerCreditsTells(t *testing.T) {
	led, pkg := newTestLedger()

	// pace_c option A carries a Visionary tell and a Sovereign cross tell.
	sum := led.Apply(optionAnswer(t, pkg, "pace_c", "A"))
	assert.Equal(t, CreditSummary{Credited: 2}, sum)

	visionary := led.faceLedger("Pace.Visionary")
	assert.True(t, visionary.QuestionsHit["pace_c"])
	assert.True(t, visionary.FamiliesHit["Pace"])
	assert.Equal(t, 1, visionary.Clean)
	assert.Equal(t, 1, visionary.PerFamilyCounts["Pace"])
	assert.True(t, visionary.SignatureQIDs["pace_c"], "home-family question is signature evidence")

	sovereign := led.faceLedger("Control.Sovereign")
	assert.True(t, sovereign.QuestionsHit["pace_c"])
	assert.True(t, sovereign.FamiliesHit["Pace"])
	assert.Empty(t, sovereign.SignatureQIDs, "cross-family evidence is never signature")
	assert.Equal(t, 1, sovereign.PerFamilyCounts["Pace"])
}

func TestLedgerCountsByLine(t *testing.T) {
	led, pkg := newTestLedger()

	led.Apply(optionAnswer(t, pkg, "control_c", "B")) // bent, Rebel tell
	led.Apply(optionAnswer(t, pkg, "control_f", "B")) // broken, Rebel tell

	rebel := led.faceLedger("Control.Rebel")
	assert.Equal(t, 0, rebel.Clean)
	assert.Equal(t, 1, rebel.Bent)
	assert.Equal(t, 1, rebel.Broken)
	assert.Equal(t, 2, rebel.PerFamilyCounts["Control"])
}

func TestLedgerContrastLatch(t *testing.T) {
	led, pkg := newTestLedger()

	led.Apply(optionAnswer(t, pkg, "control_c", "A"))
	assert.False(t, led.faceLedger("Control.Sovereign").ContrastSeen, "reset is not a contrast tell")

	led.Apply(optionAnswer(t, pkg, "control_o", "A"))
	assert.True(t, led.faceLedger("Control.Sovereign").ContrastSeen, "hold is a contrast tell")
}

func TestLedgerCapDropsBeyondMaxPerFace(t *testing.T) {
	pkg := testutil.NewTestPackage()
	led := NewLedger(pkg, testutil.TightConstants(), map[string]bool{"Control": true})

	// Tight cap on a picked screen allows one Sovereign credit from
	// Control; the second tell is dropped silently from the ledger but
	// reported in the summary.
	first := led.Apply(optionAnswer(t, pkg, "control_c", "A"))
	assert.Equal(t, CreditSummary{Credited: 1}, first)

	second := led.Apply(optionAnswer(t, pkg, "control_o", "A"))
	assert.Equal(t, CreditSummary{Dropped: 1}, second)

	sovereign := led.faceLedger("Control.Sovereign")
	assert.Equal(t, 1, sovereign.PerFamilyCounts["Control"], "cap bounds the per-family count")
	assert.False(t, sovereign.QuestionsHit["control_o"], "a dropped tell leaves no evidence")
	assert.False(t, sovereign.ContrastSeen, "the dropped contrast tell must not latch")

	// The line still moves: caps gate tell credit, not line grades.
	assert.Equal(t, 2, led.Line("Control").Clean)
}

func TestLedgerCapIsPerFamilyNotGlobal(t *testing.T) {
	pkg := testutil.NewTestPackage()
	led := NewLedger(pkg, testutil.TightConstants(), map[string]bool{"Control": true})

	led.Apply(optionAnswer(t, pkg, "control_c", "A"))
	sum := led.Apply(optionAnswer(t, pkg, "pace_c", "A"))

	// Sovereign is at its Control cap, but Pace is a fresh screen.
	assert.Equal(t, 2, sum.Credited, "Visionary and the Sovereign cross tell both credit")
	assert.Equal(t, 1, led.faceLedger("Control.Sovereign").PerFamilyCounts["Pace"])
}

func TestLedgerRebuildFacesMatchesFreshLedger(t *testing.T) {
	pkg := testutil.NewTestPackage()
	picked := map[string]bool{"Control": true}

	// A session that answered control_c with B, then replaced it with A.
	replaced, _ := newTestLedger("Control")
	oldAns := optionAnswer(t, pkg, "control_c", "B")
	replaced.Apply(oldAns)
	replaced.Apply(optionAnswer(t, pkg, "pace_c", "A"))
	replaced.Apply(optionAnswer(t, pkg, "truth_c", "A"))

	newAns := optionAnswer(t, pkg, "control_c", "A")
	replaced.reverseLine("Control", oldAns.Line)
	replaced.applyLine("Control", newAns.Line)
	sums := replaced.RebuildFaces([]*Answer{
		newAns,
		optionAnswer(t, pkg, "pace_c", "A"),
		optionAnswer(t, pkg, "truth_c", "A"),
	})
	assert.Len(t, sums, 3)

	// A session that answered A from the start.
	fresh := NewLedger(pkg, bank.DefaultConstants(), picked)
	fresh.Apply(optionAnswer(t, pkg, "control_c", "A"))
	fresh.Apply(optionAnswer(t, pkg, "pace_c", "A"))
	fresh.Apply(optionAnswer(t, pkg, "truth_c", "A"))

	for _, id := range pkg.FaceIDs() {
		assert.Equal(t,
			deriveEvidence(fresh.faceLedger(id)),
			deriveEvidence(replaced.faceLedger(id)),
			"face %s must look as if only the replacement was ever submitted", id)
	}

	// Rebel's bent credit from the old answer is gone entirely.
	assert.Empty(t, replaced.faceLedger("Control.Rebel").QuestionsHit)
}

func TestLedgerPanicsOnUnregisteredTell(t *testing.T) {
	led, _ := newTestLedger()
	assert.Panics(t, func() {
		led.Apply(&Answer{
			QID:    "control_c",
			Family: "Control",
			Line:   bank.LineClean,
			Tells:  []string{"Control.Sovereign.no-such-tell"},
		})
	})
}

package testutil

import (
	"fmt"
	"strings"

	"github.com/roach88/facet/internal/bank"
)

// familyFixture describes one authored family: two faces, three
// questions (one per probe), and the tell slugs their options carry.
// Index order throughout is the probe order C, O, F.
//
// cross, when set, names an extra Control.Sovereign tell carried by the
// family's clean-probe A option. Clean probes appear in every schedule
// regardless of picks, so an all-A walk yields Sovereign evidence
// spanning six families.
type familyFixture struct {
	name   string
	faceA  string
	faceB  string
	cross  string
	slugsA [3]string
	slugsB [3]string
	texts  [3]string
	optA   [3]string
	optB   [3]string
}

var familyFixtures = []familyFixture{
	{
		name: "Control", faceA: "Sovereign", faceB: "Rebel",
		slugsA: [3]string{"reset", "hold", "accept"},
		slugsB: [3]string{"grip", "push", "burn"},
		texts: [3]string{
			"When plans slip, you:",
			"Under pressure, you:",
			"When control is gone, you:",
		},
		optA: [3]string{"Reset the plan calmly", "Hold the line", "Accept and adapt"},
		optB: [3]string{"Tighten your grip", "Push harder", "Burn the map"},
	},
	{
		name: "Pace", cross: "even-keel", faceA: "Visionary", faceB: "Navigator",
		slugsA: [3]string{"leap", "surge", "glide"},
		slugsB: [3]string{"chart", "plot", "drift"},
		texts: [3]string{
			"Your natural tempo is:",
			"When deadlines compress, you:",
			"When the plan falls apart, you:",
		},
		optA: [3]string{"Big leaps, then rest", "Surge and ship", "Glide on instinct"},
		optB: [3]string{"A steady charted course", "Re-plot the route", "Drift until it settles"},
	},
	{
		name: "Boundary", cross: "fair-hold", faceA: "Equalizer", faceB: "Guardian",
		slugsA: [3]string{"split", "level", "yield"},
		slugsB: [3]string{"wall", "gate", "fortress"},
		texts: [3]string{
			"When asked for more than agreed, you:",
			"When someone crosses a line, you:",
			"When your limits give way, you:",
		},
		optA: [3]string{"Split the difference fairly", "Level about it at once", "Yield and renegotiate"},
		optB: [3]string{"Hold the wall", "Close the gate quietly", "Turn the place into a fortress"},
	},
	{
		name: "Truth", cross: "plain-read", faceA: "Architect", faceB: "Spotlight",
		slugsA: [3]string{"frame", "blueprint", "recheck"},
		slugsB: [3]string{"shine", "beam", "glare"},
		texts: [3]string{
			"When a claim sounds off, you:",
			"When your view is challenged, you:",
			"When the facts run out, you:",
		},
		optA: [3]string{"Frame what you actually know", "Lay out the blueprint", "Recheck from the start"},
		optB: [3]string{"Shine attention on it", "Turn up the beam", "Glare past the doubt"},
	},
	{
		name: "Recognition", cross: "quiet-credit", faceA: "Diplomat", faceB: "Provocateur",
		slugsA: [3]string{"nod", "bridge", "smooth"},
		slugsB: [3]string{"spark", "jab", "flare"},
		texts: [3]string{
			"When praise lands on you, you:",
			"When you feel overlooked, you:",
			"When the room goes cold, you:",
		},
		optA: [3]string{"Nod and pass it along", "Build a bridge back in", "Smooth it over"},
		optB: [3]string{"Spark a bigger moment", "Throw a sharp jab", "Flare to be seen"},
	},
	{
		name: "Bonding", cross: "steady-hand", faceA: "Anchor", faceB: "Catalyst",
		slugsA: [3]string{"stay", "root", "hold-fast"},
		slugsB: [3]string{"stir", "spin", "sever"},
		texts: [3]string{
			"When someone needs you, you:",
			"When a bond frays, you:",
			"When trust breaks, you:",
		},
		optA: [3]string{"Stay put and listen", "Return to the root of it", "Hold fast anyway"},
		optB: [3]string{"Stir them into motion", "Spin up something new", "Sever and move on"},
	},
	{
		name: "Stress", faceA: "Artisan", faceB: "Vault",
		slugsA: [3]string{"tinker", "shape", "mend"},
		slugsB: [3]string{"seal", "lock", "slam"},
		texts: [3]string{
			"When stress builds, you:",
			"When the load doubles, you:",
			"When you hit the wall, you:",
		},
		optA: [3]string{"Tinker until it eases", "Shape it into pieces", "Mend what you can"},
		optB: [3]string{"Seal it away", "Lock the door and grind", "Slam everything shut"},
	},
}

// probeSuffixes maps probe order C, O, F to qid suffixes.
var probeSuffixes = [3]string{"c", "o", "f"}

// bLines maps probe order to the line grade of each question's B option.
// A options are always clean.
var bLines = [3]bank.LineCOF{bank.LineBent, bank.LineBent, bank.LineBroken}

// TightConstants is the default profile with the concentration cap
// lowered to 30%, which shrinks MaxPerFace to 1 on picked screens and 2
// on not-picked screens. Use it to exercise cap drops that the default
// 40% cap never produces.
func TightConstants() bank.ConstantsProfile {
	c := bank.DefaultConstants()
	c.Name = "tight"
	c.PerScreenCapPct = 30
	return c
}

// NewTestPackage builds and seals the standard seven-family test bank.
//
// Layout per family: faces A and B, one question per probe, A options
// clean with a face-A tell, B options bent (C and O probes) or broken
// (F probe) with a face-B tell. The O-probe A tell and the F-probe B
// tell of each family are contrast tells.
//
// Control.Sovereign additionally carries cross-family tells (the cross
// fixture field), so an all-A walk lights it: seven questions over six
// families with two signature hits, all clean, under the 40% cap.
//
// Ships the "default" and "tight" constants profiles.
func NewTestPackage() *bank.Package {
	pkg := &bank.Package{
		Name:    "facet-test",
		Version: "1.0.0",
	}

	for _, fx := range familyFixtures {
		faceAID := fx.name + "." + fx.faceA
		faceBID := fx.name + "." + fx.faceB
		pkg.Families = append(pkg.Families, bank.Family{Name: fx.name})
		pkg.Faces = append(pkg.Faces,
			bank.Face{ID: faceAID, Name: fx.faceA, Family: fx.name},
			bank.Face{ID: faceBID, Name: fx.faceB, Family: fx.name},
		)

		for i := range probeSuffixes {
			aTells := []string{faceAID + "." + fx.slugsA[i]}
			if i == 0 && fx.cross != "" {
				aTells = append(aTells, "Control.Sovereign."+fx.cross)
			}
			pkg.Questions = append(pkg.Questions, bank.Question{
				QID:    strings.ToLower(fx.name) + "_" + probeSuffixes[i],
				Family: fx.name,
				Probe:  bank.ProbeOrder[i],
				Text:   fx.texts[i],
				Options: []bank.Option{
					{Key: "A", Text: fx.optA[i], Line: bank.LineClean, Tells: aTells},
					{Key: "B", Text: fx.optB[i], Line: bLines[i], Tells: []string{faceBID + "." + fx.slugsB[i]}},
				},
			})
		}

		for i := range fx.slugsA {
			pkg.Tells = append(pkg.Tells, bank.Tell{
				ID:       faceAID + "." + fx.slugsA[i],
				Face:     faceAID,
				Contrast: i == 1, // the O-probe A tell separates the pair
			})
		}
		for i := range fx.slugsB {
			pkg.Tells = append(pkg.Tells, bank.Tell{
				ID:       faceBID + "." + fx.slugsB[i],
				Face:     faceBID,
				Contrast: i == 2, // the F-probe B tell separates the pair
			})
		}
		pkg.ContrastPairs = append(pkg.ContrastPairs, bank.ContrastPair{A: faceAID, B: faceBID})
	}

	for _, fx := range familyFixtures {
		if fx.cross == "" {
			continue
		}
		pkg.Tells = append(pkg.Tells, bank.Tell{
			ID:   "Control.Sovereign." + fx.cross,
			Face: "Control.Sovereign",
		})
	}

	pkg.Profiles = []bank.ConstantsProfile{bank.DefaultConstants(), TightConstants()}
	pkg.DefaultProfile = "default"

	if err := pkg.Seal(); err != nil {
		panic(fmt.Sprintf("test bank failed to seal: %v", err))
	}
	return pkg
}

package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/facet/internal/bank"
)

func TestCompilePackageBasic(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			name:    "mini"
			version: "0.1.0"
			families: ["Control"]
			faces: [
				{id: "Control.Sovereign", name: "Sovereign", family: "Control"},
				{id: "Control.Rebel", name: "Rebel", family: "Control"},
			]
			tells: [
				{id: "sovereign.calm-reset", face: "Control.Sovereign", contrast: true},
				{id: "rebel.tight-grip", face: "Control.Rebel"},
			]
			questions: [
				{
					qid:    "control_c"
					family: "Control"
					probe:  "C"
					text:   "A plan you own starts slipping."
					options: [
						{key: "A", text: "Reset and carry on.", line: "C", tells: ["sovereign.calm-reset"]},
						{key: "B", text: "Tighten your grip.", line: "O"},
					]
				},
			]
			contrast_pairs: [
				{a: "Control.Sovereign", b: "Control.Rebel"},
			]
			profiles: {
				default: {
					lit_min_questions:    6
					lit_min_families:     4
					lit_min_signature:    2
					lit_min_clean:        4
					lit_max_broken:       1
					lean_min_questions:   4
					lean_min_families:    3
					lean_min_signature:   1
					lean_min_clean:       3
					per_screen_cap_pct:   40
					max_tells_per_option: 3
				}
			}
			default_profile: "default"
		}
	`)

	require.NoError(t, v.Err())
	pkg, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))
	require.NoError(t, err)

	assert.Equal(t, "mini", pkg.Name)
	assert.Equal(t, "0.1.0", pkg.Version)
	assert.Equal(t, []bank.Family{{Name: "Control"}}, pkg.Families)

	require.Len(t, pkg.Faces, 2)
	assert.Equal(t, bank.Face{ID: "Control.Sovereign", Name: "Sovereign", Family: "Control"}, pkg.Faces[0])
	assert.Equal(t, bank.Face{ID: "Control.Rebel", Name: "Rebel", Family: "Control"}, pkg.Faces[1])

	require.Len(t, pkg.Tells, 2)
	assert.True(t, pkg.Tells[0].Contrast)
	assert.False(t, pkg.Tells[1].Contrast, "absent contrast flag defaults to false")

	require.Len(t, pkg.Questions, 1)
	q := pkg.Questions[0]
	assert.Equal(t, "control_c", q.QID)
	assert.Equal(t, "Control", q.Family)
	assert.Equal(t, bank.ProbeClean, q.Probe)
	assert.Equal(t, "A plan you own starts slipping.", q.Text)
	require.Len(t, q.Options, 2)
	assert.Equal(t, bank.LineClean, q.Options[0].Line)
	assert.Equal(t, []string{"sovereign.calm-reset"}, q.Options[0].Tells)
	assert.Equal(t, bank.LineBent, q.Options[1].Line)
	assert.Nil(t, q.Options[1].Tells, "absent tells list stays nil")

	assert.Equal(t, []bank.ContrastPair{{A: "Control.Sovereign", B: "Control.Rebel"}}, pkg.ContrastPairs)

	require.Len(t, pkg.Profiles, 1)
	c := pkg.Profiles[0]
	assert.Equal(t, "default", c.Name)
	assert.Equal(t, 6, c.LitMinQuestions)
	assert.Equal(t, 1, c.LitMaxBroken)
	assert.Equal(t, 40, c.PerScreenCapPct)
	assert.Equal(t, 3, c.MaxTellsPerOption)
	assert.Equal(t, "default", pkg.DefaultProfile)

	assert.False(t, pkg.Sealed(), "compilation leaves the package unsealed")
}

func TestCompilePackageMissingDocument(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`other: {}`)
	require.NoError(t, v.Err())

	_, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))
	require.Error(t, err)
}

func TestCompilePackageMissingName(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			version: "0.1.0"
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "required")
}

func TestCompilePackageMissingOptions(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			name:    "mini"
			version: "0.1.0"
			families: ["Control"]
			faces: [
				{id: "Control.Sovereign", name: "Sovereign", family: "Control"},
			]
			tells: [
				{id: "sovereign.calm-reset", face: "Control.Sovereign"},
			]
			questions: [
				{
					qid:    "control_c"
					family: "Control"
					probe:  "C"
					text:   "A plan you own starts slipping."
				},
			]
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "questions.control_c.options")
	assert.Contains(t, err.Error(), "options are required")
}

func TestCompilePackageFloatThresholdRejected(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			name:    "mini"
			version: "0.1.0"
			families: ["Control"]
			faces: [
				{id: "Control.Sovereign", name: "Sovereign", family: "Control"},
			]
			tells: [
				{id: "sovereign.calm-reset", face: "Control.Sovereign"},
			]
			questions: [
				{
					qid:    "control_c"
					family: "Control"
					probe:  "C"
					text:   "A plan you own starts slipping."
					options: [
						{key: "A", text: "Reset and carry on.", line: "C"},
						{key: "B", text: "Tighten your grip.", line: "O"},
					]
				},
			]
			profiles: {
				default: {
					lit_min_questions:    6
					lit_min_families:     4
					lit_min_signature:    2
					lit_min_clean:        4
					lit_max_broken:       1
					lean_min_questions:   4
					lean_min_families:    3
					lean_min_signature:   1
					lean_min_clean:       3
					per_screen_cap_pct:   40.5
					max_tells_per_option: 3
				}
			}
			default_profile: "default"
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "per_screen_cap_pct")
	assert.Contains(t, err.Error(), "floats are forbidden")
}

func TestCompilePackageMissingThreshold(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			name:    "mini"
			version: "0.1.0"
			families: ["Control"]
			faces: [
				{id: "Control.Sovereign", name: "Sovereign", family: "Control"},
			]
			tells: [
				{id: "sovereign.calm-reset", face: "Control.Sovereign"},
			]
			questions: [
				{
					qid:    "control_c"
					family: "Control"
					probe:  "C"
					text:   "A plan you own starts slipping."
					options: [
						{key: "A", text: "Reset and carry on.", line: "C"},
						{key: "B", text: "Tighten your grip.", line: "O"},
					]
				},
			]
			profiles: {
				default: {
					lit_min_questions: 6
				}
			}
			default_profile: "default"
		}
	`)

	require.NoError(t, v.Err())
	_, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "profiles.default.lit_min_families")
	assert.Contains(t, err.Error(), "required")
}

func TestCompilePackageContrastPairsOptional(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			name:    "mini"
			version: "0.1.0"
			families: ["Control"]
			faces: [
				{id: "Control.Sovereign", name: "Sovereign", family: "Control"},
			]
			tells: [
				{id: "sovereign.calm-reset", face: "Control.Sovereign"},
			]
			questions: [
				{
					qid:    "control_c"
					family: "Control"
					probe:  "C"
					text:   "A plan you own starts slipping."
					options: [
						{key: "A", text: "Reset and carry on.", line: "C"},
						{key: "B", text: "Tighten your grip.", line: "O"},
					]
				},
			]
			profiles: {
				default: {
					lit_min_questions:    6
					lit_min_families:     4
					lit_min_signature:    2
					lit_min_clean:        4
					lit_max_broken:       1
					lean_min_questions:   4
					lean_min_families:    3
					lean_min_signature:   1
					lean_min_clean:       3
					per_screen_cap_pct:   40
					max_tells_per_option: 3
				}
			}
			default_profile: "default"
		}
	`)

	require.NoError(t, v.Err())
	pkg, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))

	require.NoError(t, err)
	assert.Nil(t, pkg.ContrastPairs)
}

func TestCompilePackageMultipleProfiles(t *testing.T) {
	ctx := cuecontext.New()
	v := ctx.CompileString(`
		bank: {
			name:    "mini"
			version: "0.1.0"
			families: ["Control"]
			faces: [
				{id: "Control.Sovereign", name: "Sovereign", family: "Control"},
			]
			tells: [
				{id: "sovereign.calm-reset", face: "Control.Sovereign"},
			]
			questions: [
				{
					qid:    "control_c"
					family: "Control"
					probe:  "C"
					text:   "A plan you own starts slipping."
					options: [
						{key: "A", text: "Reset and carry on.", line: "C"},
						{key: "B", text: "Tighten your grip.", line: "O"},
					]
				},
			]
			profiles: {
				default: {
					lit_min_questions:    6
					lit_min_families:     4
					lit_min_signature:    2
					lit_min_clean:        4
					lit_max_broken:       1
					lean_min_questions:   4
					lean_min_families:    3
					lean_min_signature:   1
					lean_min_clean:       3
					per_screen_cap_pct:   40
					max_tells_per_option: 3
				}
				tight: {
					lit_min_questions:    7
					lit_min_families:     5
					lit_min_signature:    3
					lit_min_clean:        5
					lit_max_broken:       0
					lean_min_questions:   5
					lean_min_families:    4
					lean_min_signature:   2
					lean_min_clean:       4
					per_screen_cap_pct:   30
					max_tells_per_option: 3
				}
			}
			default_profile: "default"
		}
	`)

	require.NoError(t, v.Err())
	pkg, err := CompilePackage(v.LookupPath(cue.ParsePath("bank")))
	require.NoError(t, err)

	require.Len(t, pkg.Profiles, 2)
	names := []string{pkg.Profiles[0].Name, pkg.Profiles[1].Name}
	assert.ElementsMatch(t, []string{"default", "tight"}, names)

	for _, c := range pkg.Profiles {
		if c.Name != "tight" {
			continue
		}
		assert.Equal(t, 30, c.PerScreenCapPct)
		assert.Equal(t, 0, c.LitMaxBroken)
	}
}

func TestCompileErrorFormat(t *testing.T) {
	e := &CompileError{Field: "questions", Message: "questions list is required"}
	assert.Equal(t, "questions: questions list is required", e.Error())
}

func TestFormatCUEErrorNil(t *testing.T) {
	assert.NoError(t, formatCUEError(nil))
}

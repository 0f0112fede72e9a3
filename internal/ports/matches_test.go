package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeptideKey_UnmodifiedIsTheSequence(t *testing.T) {
	assert.Equal(t, "PEPTIDE", PeptideKey("PEPTIDE", nil))
}

func TestPeptideKey_ModNamesSortedWithoutPositions(t *testing.T) {
	mods := []Modification{{Name: "Phospho", Site: 3}, {Name: "Acetyl", Site: 1}}
	assert.Equal(t, "PEPTIDE_Acetyl_Phospho", PeptideKey("PEPTIDE", mods))
}

func TestPeptideKey_PositionalIsomersCollapse(t *testing.T) {
	a := PeptideKey("SSSK", []Modification{{Name: "Phospho", Site: 1}})
	b := PeptideKey("SSSK", []Modification{{Name: "Phospho", Site: 3}})
	assert.Equal(t, a, b)
}

func TestModificationFamily_DistinctSortedNames(t *testing.T) {
	mods := []Modification{
		{Name: "Phospho", Site: 3},
		{Name: "Phospho", Site: 5},
		{Name: "Acetyl", Site: 1},
	}
	assert.Equal(t, "Acetyl_Phospho", ModificationFamily(mods))
	assert.Equal(t, "", ModificationFamily(nil))
}

func TestParseAdvocate_PunctuationVariants(t *testing.T) {
	cases := map[string]Advocate{
		"Mascot":    Mascot,
		"MASCOT":    Mascot,
		"X!Tandem":  XTandem,
		"X! Tandem": XTandem,
		"xtandem":   XTandem,
		"MS-GF+":    MSGF,
		"msgf+":     MSGF,
		"omssa":     OMSSA,
		"Andromeda": Andromeda,
		"Comet":     Comet,
	}
	for name, want := range cases {
		got, err := ParseAdvocate(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestParseAdvocate_Unknown(t *testing.T) {
	_, err := ParseAdvocate("Sequest")
	assert.Error(t, err)
}

func TestSpectrumKey_RoundTrip(t *testing.T) {
	key := SpectrumKey("run1.mgf", "scan=401")
	assert.Equal(t, "run1.mgf#scan=401", key)
	assert.Equal(t, "run1.mgf", SpectrumFile(key))
	assert.Equal(t, "scan=401", SpectrumTitle(key))
}

func TestSpectrumKey_TitleMayContainTheSeparator(t *testing.T) {
	key := SpectrumKey("run1.mgf", "scan #12")
	assert.Equal(t, "run1.mgf", SpectrumFile(key))
	assert.Equal(t, "scan #12", SpectrumTitle(key))
}

func TestAddAssumption_SecondFirstHitIsCorruptInput(t *testing.T) {
	m := NewSpectrumMatch("run1.mgf#scan=1")
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 1, Sequence: "PEPTIDE"}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 2, Sequence: "PEPTIDES"}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: OMSSA, Rank: 1, Sequence: "PEPTIDE"}))

	err := m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 1, Sequence: "OTHER"})
	assert.ErrorIs(t, err, ErrDuplicateFirstHit)
}

func TestSortAssumptions_ByScoreThenRank(t *testing.T) {
	m := NewSpectrumMatch("run1.mgf#scan=1")
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 1, Sequence: "AAA", Score: 3}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 2, Sequence: "BBB", Score: 1}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 3, Sequence: "CCC", Score: 1}))

	m.SortAssumptions()

	got := make([]string, 0, 3)
	for _, a := range m.Assumptions[Mascot] {
		got = append(got, a.Sequence)
	}
	assert.Equal(t, []string{"BBB", "CCC", "AAA"}, got)
}

func TestFirstHit_SurvivesSorting(t *testing.T) {
	m := NewSpectrumMatch("run1.mgf#scan=1")
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 1, Sequence: "AAA", Score: 3}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 2, Sequence: "BBB", Score: 1}))
	m.SortAssumptions()

	hit := m.FirstHit(Mascot)
	require.NotNil(t, hit)
	assert.Equal(t, "AAA", hit.Sequence)
	assert.Nil(t, m.FirstHit(Comet))
}

func TestAdvocates_Ascending(t *testing.T) {
	m := NewSpectrumMatch("run1.mgf#scan=1")
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Comet, Rank: 1}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: Mascot, Rank: 1}))
	require.NoError(t, m.AddAssumption(&PeptideAssumption{Advocate: XTandem, Rank: 1}))

	assert.Equal(t, []Advocate{Mascot, XTandem, Comet}, m.Advocates())
}

func TestSitesOf_AscendingForTheNamedMod(t *testing.T) {
	a := &PeptideAssumption{Mods: []Modification{
		{Name: "Phospho", Site: 5},
		{Name: "Acetyl", Site: 1},
		{Name: "Phospho", Site: 2},
	}}
	assert.Equal(t, []int{2, 5}, a.SitesOf("Phospho"))
	assert.Nil(t, a.SitesOf("Oxidation"))
}

func TestProteinGroupKey_SortedSpaceJoined(t *testing.T) {
	key := ProteinGroupKey([]string{"Q9Y6K9", "P04637", "P38398"})
	assert.Equal(t, "P04637 P38398 Q9Y6K9", key)
	assert.Equal(t, []string{"P04637", "P38398", "Q9Y6K9"}, GroupAccessions(key))
	assert.Equal(t, 3, NProteins(key))
}

func TestGroupContains_StrictSubsetOnly(t *testing.T) {
	assert.True(t, GroupContains("P1 P2 P3", "P1 P3"))
	assert.True(t, GroupContains("P1 P2", "P2"))
	assert.False(t, GroupContains("P1 P2", "P1 P2"), "equal groups")
	assert.False(t, GroupContains("P1", "P1 P2"), "sub larger than shared")
	assert.False(t, GroupContains("P1 P2", "P3"), "non-member accession")
	assert.False(t, GroupContains("P1 P2 P3", "P1 P4"))
}

func TestNewProteinMatch_SortsAndPicksRepresentative(t *testing.T) {
	m := NewProteinMatch([]string{"Q9Y6K9", "P04637"})
	assert.Equal(t, "P04637 Q9Y6K9", m.Key)
	assert.Equal(t, []string{"P04637", "Q9Y6K9"}, m.Accessions)
	assert.Equal(t, "P04637", m.MainAccession)
}

func TestProteinMatch_PeptideMembership(t *testing.T) {
	m := NewProteinMatch([]string{"P1"})
	m.AddPeptide("PEPTIDE")
	m.AddPeptide("PEPTIDE")
	m.AddPeptide("OTHER")

	assert.Equal(t, []string{"PEPTIDE", "OTHER"}, m.PeptideKeys)
	assert.True(t, m.HasPeptide("OTHER"))
	assert.False(t, m.HasPeptide("MISSING"))
}

func TestPeptideMatch_AddSpectrumIgnoresDuplicates(t *testing.T) {
	m := &PeptideMatch{Key: "PEPTIDE"}
	m.AddSpectrum("run1.mgf#scan=1")
	m.AddSpectrum("run1.mgf#scan=1")
	m.AddSpectrum("run1.mgf#scan=2")

	assert.Equal(t, []string{"run1.mgf#scan=1", "run1.mgf#scan=2"}, m.SpectrumKeys)
}

package idea

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	i, err := Parse([]byte(`
intent: Marketplace for used lab equipment
user: university labs
scenario: lab closes and sells gear
triggers: budget cuts
alts: eBay
assumptions:
  - labs want to resell
`))
	require.NoError(t, err)
	assert.Equal(t, "university labs", i.User)
	assert.Equal(t, []string{"labs want to resell"}, i.Assumptions)
	assert.NotNil(t, i.Risks)
	assert.Empty(t, i.Risks)
}

func TestParse_MissingFields(t *testing.T) {
	_, err := Parse([]byte("intent: x\nuser: '  '\n"))
	require.Error(t, err)
	require.True(t, IsValidationError(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"user", "scenario", "triggers", "alts"}, ve.Missing)
}

func TestCorpusAndRecord(t *testing.T) {
	i := Idea{
		Intent: "AI Tutor", User: "Parents", Scenario: "Homework", Triggers: "Bad grades", Alts: "Tutors",
		Assumptions: []string{"Parents PAY"},
	}
	assert.Equal(t, "ai tutor parents homework bad grades tutors parents pay", i.Corpus())
	assert.Equal(t, 5, i.FilledFields())

	rec := i.Record()
	assert.Equal(t, []string{}, rec.Risks)
	assert.Equal(t, []string{"Parents PAY"}, rec.Assumptions)
	assert.Equal(t, "AI Tutor", rec.Intent)
	assert.Nil(t, i.Risks, "the receiver is left untouched")
}

func TestFromDescriptionAndSlugify(t *testing.T) {
	i := FromDescription("  Uber for dog walking in small towns across Europe ", IntakeOptions{Risks: nil})
	require.NoError(t, i.Validate())
	assert.Equal(t, DefaultUser, i.User)
	assert.Equal(t, []string{"Uber for dog walking in small towns across Europe"}, i.Assumptions)
	assert.Equal(t, "uber-for-dog-walking-in-small", Slugify(i.Intent))

	assert.Equal(t, "Untitled idea", FromDescription("", IntakeOptions{}).Intent)
	assert.Equal(t, "idea", Slugify("   "))
	assert.Equal(t, "custom user", FromDescription("x", IntakeOptions{User: "custom user"}).User)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ideas", "demo.yaml")
	in := FromDescription("Demo idea", IntakeOptions{Risks: []string{"crowded market"}})
	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

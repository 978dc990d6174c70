package lookup

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTable = `Emotion,Suggested Action,Psychological Insight
Happy,Share your joy,Reinforces positive affect
Sad,"Write down three things, however small, that went well",Shifts attention toward positive events
Anxious,Try box breathing,Slows the physiological stress response
`

func TestParseBuildsStore(t *testing.T) {
	store, err := Parse(strings.NewReader(sampleTable))
	require.NoError(t, err)

	assert.Equal(t, []string{"Happy", "Sad", "Anxious"}, store.Labels())

	sad, ok := store.Lookup("Sad")
	require.True(t, ok)
	assert.Equal(t, "Write down three things, however small, that went well", sad.SuggestedAction)
	assert.Equal(t, "Shifts attention toward positive events", sad.PsychologicalInsight)
}

func TestParseAcceptsReorderedAndExtraColumns(t *testing.T) {
	table := "\ufeffPsychological Insight, Emotion ,Notes,Suggested Action\nCalms the body,Angry,n/a,Take a walk\n"

	store, err := Parse(strings.NewReader(table))
	require.NoError(t, err)

	angry, ok := store.Lookup("Angry")
	require.True(t, ok)
	assert.Equal(t, "Take a walk", angry.SuggestedAction)
	assert.Equal(t, "Calms the body", angry.PsychologicalInsight)
}

func TestParseKeepsFirstDuplicate(t *testing.T) {
	table := "Emotion,Suggested Action,Psychological Insight\nHappy,first,a\nHappy,second,b\n"

	store, err := Parse(strings.NewReader(table))
	require.NoError(t, err)

	happy, _ := store.Lookup("Happy")
	assert.Equal(t, "first", happy.SuggestedAction)
	assert.Equal(t, 1, store.Len())
}

func TestParseRejectsBadTables(t *testing.T) {
	cases := map[string]string{
		"empty file":       "",
		"missing column":   "Emotion,Suggested Action\nHappy,Smile\n",
		"header only":      "Emotion,Suggested Action,Psychological Insight\n",
		"ragged row":       "Emotion,Suggested Action,Psychological Insight\nHappy,Smile\n",
		"empty label":      "Emotion,Suggested Action,Psychological Insight\n ,Smile,Because\n",
		"unbalanced quote": "Emotion,Suggested Action,Psychological Insight\n\"Happy,Smile,Because\n",
	}

	for name, table := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(table))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrDataLoad)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataLoad)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emotion_lookup_table.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleTable), 0o600))

	store, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
}

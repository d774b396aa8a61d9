package safety

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsSafeGoal(t *testing.T) {
	f := NewDefaultFilter()

	tests := []struct {
		text string
		want bool
	}{
		{"Pray and smoke less", false},
		{"Read scripture daily", true},
		{"s-m-o-k-e less", false},
		{"s.m.o.k.e less", false},
		{"S M O K E", false},
		{"Quit   SMOKING", false},
		{"Grow in patience with my kids", true},
		{"Build a skill of listening", true},
		{"Better gratitude journaling", true},
		{"", false},
		{"   ", false},
		{"ｓｍｏｋｅ less", false},
		{"stop buying black magic books", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsSafeGoal(tt.text))
		})
	}
}

func TestDefaultBlocklistCoversBroaderTerms(t *testing.T) {
	f := NewDefaultFilter()

	tests := []struct {
		text string
		term string
	}{
		{"Pray and hate less", "hate"},
		{"Stop lying to my wife", "lying"},
		{"Learn to use a knife", "knife"},
		{"Quit rum", "rum"},
		{"Stop taking pills", "pills"},
		{"Read my horoscope every morning", "horoscope"},
		{"Spend less time on gossip", "gossip"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			v := f.Check(tt.text)
			assert.False(t, v.Safe)
			assert.Equal(t, tt.term, v.Term)
		})
	}

	for _, text := range []string{"Serve my neighbours", "Pray for my city", "Memorise a verse", "Call my mother each week"} {
		assert.True(t, f.IsSafeGoal(text), text)
	}
	assert.Greater(t, len(DefaultBlocklist().Words), 300)
}

func TestCheckReportsTerm(t *testing.T) {
	f := NewDefaultFilter()

	v := f.Check("d r u g free month")
	assert.False(t, v.Safe)
	assert.Equal(t, "drug", v.Term)

	v = f.Check("Memorise Psalm 23")
	assert.True(t, v.Safe)
	assert.Empty(t, v.Term)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "pray more often", Normalize("  Pray\tMORE \n often "))
	assert.Equal(t, "fi", Normalize("ﬁ"))
}

func TestParseBlocklistRejectsEmpty(t *testing.T) {
	_, err := ParseBlocklist([]byte("words: []\n"))
	require.Error(t, err)

	_, err = ParseBlocklist([]byte("words: [\n"))
	require.Error(t, err)
}

func TestReloadKeepsRulesOnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blocklist.yaml")
	require.NoError(t, os.WriteFile(path, []byte("words:\n  - gossip\n"), 0o644))

	f, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, f.IsSafeGoal("less gossip at work"))
	assert.True(t, f.IsSafeGoal("smoke less"), "custom list replaces the default")

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	require.Error(t, f.Reload(path))
	assert.False(t, f.IsSafeGoal("less gossip at work"))
}

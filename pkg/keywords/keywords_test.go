package keywords

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	got := CleanText("Relax &amp; study!! https://example.com/x   beats")
	require.Equal(t, "Relax study beats", got)
	require.Equal(t, "", CleanText(""))
}

func TestExtractRanksByFrequency(t *testing.T) {
	text := "Lofi beats to study. Lofi hip hop beats. Lofi radio for the night"
	got := Extract(text, 3, 4)
	require.Equal(t, []string{"lofi", "beats", "night"}, got)
}

func TestExtractSkipsStopwordsAndShortTokens(t *testing.T) {
	got := Extract("This is about the go gopher", 10, 4)
	require.Equal(t, []string{"gopher"}, got)
}

func TestExtractIsDeterministic(t *testing.T) {
	text := "zeta alpha gamma beta"
	first := Extract(text, 0, 4)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Extract(text, 0, 4))
	}
	require.Equal(t, []string{"alpha", "beta", "gamma", "zeta"}, first)
}

func TestExtractEmpty(t *testing.T) {
	require.Nil(t, Extract("", 5, 3))
	require.Nil(t, Extract("a an the", 5, 1))
}

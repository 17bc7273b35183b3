package chunker

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stripSeparators removes paragraph and sentence separators so that chunk output can be
// compared with the original text.
func stripSeparators(s string) string {
	s = strings.ReplaceAll(s, ParagraphSeparator, "")

	return strings.ReplaceAll(s, SentenceSeparator, "")
}

func paragraph(rng *rand.Rand, sentences int) string {
	words := []string{"graph", "vector", "lesson", "module", "learner", "index", "query", "course", "topic", "quiz"}

	parts := make([]string, 0, sentences)
	for range sentences {
		n := 3 + rng.Intn(12)
		ws := make([]string, 0, n)

		for range n {
			ws = append(ws, words[rng.Intn(len(words))])
		}

		parts = append(parts, strings.Join(ws, " "))
	}

	return strings.Join(parts, SentenceSeparator) + "."
}

func randomDocument(seed int64) string {
	rng := rand.New(rand.NewSource(seed))
	paragraphs := 1 + rng.Intn(12)

	ps := make([]string, 0, paragraphs)
	for range paragraphs {
		ps = append(ps, paragraph(rng, 1+rng.Intn(25)))
	}

	return strings.Join(ps, ParagraphSeparator)
}

func TestSplit_IntroScenario(t *testing.T) {
	p := strings.Repeat("a", 197) + "."
	text := strings.Join([]string{p, p, p}, ParagraphSeparator)
	require.Equal(t, 598, len(text))

	chunks := Split(text, 50)

	require.Len(t, chunks, 3)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 200)
	}

	assert.Equal(t, text, strings.Join(chunks, ParagraphSeparator))
}

func TestSplit_PacksSmallParagraphs(t *testing.T) {
	text := "one\n\ntwo\n\nthree"

	chunks := Split(text, 10)

	assert.Equal(t, []string{"one\n\ntwo\n\nthree"}, chunks)
}

func TestSplit_FlushesBeforeOverflow(t *testing.T) {
	a := strings.Repeat("a", 30)
	b := strings.Repeat("b", 30)

	chunks := Split(a+ParagraphSeparator+b, 15) // 60 chars budget

	assert.Equal(t, []string{a, b}, chunks)
}

func TestSplit_OversizedParagraphFallsBackToSentences(t *testing.T) {
	s1 := strings.Repeat("x", 20)
	s2 := strings.Repeat("y", 20)
	s3 := strings.Repeat("z", 20)
	text := s1 + ". " + s2 + ". " + s3 + "."

	chunks := Split(text, 12) // 48 chars budget

	require.Len(t, chunks, 2)
	assert.Equal(t, s1+". "+s2, chunks[0])
	assert.Equal(t, s3+".", chunks[1])
}

func TestSplit_OversizedSentenceLeftAsIs(t *testing.T) {
	long := strings.Repeat("w", 100)

	chunks := Split("short. "+long+". tail", 5) // 20 chars budget

	require.Len(t, chunks, 3)
	assert.Equal(t, "short", chunks[0])
	assert.Equal(t, long, chunks[1])
	assert.Equal(t, "tail", chunks[2])
}

func TestSplit_EmptyInput(t *testing.T) {
	assert.Empty(t, Split("", 50))
	assert.Empty(t, Split("\n\n\n\n", 50))
}

func TestSplit_DefaultBudget(t *testing.T) {
	text := strings.Repeat("a", DefaultMaxChunkTokens*CharsPerToken)

	chunks := Split(text, 0)

	assert.Equal(t, []string{text}, chunks)
}

func TestChunks_Restartable(t *testing.T) {
	text := randomDocument(7)
	seq := Chunks(text, 40)

	var first, second []string
	for c := range seq {
		first = append(first, c)
	}

	for c := range seq {
		second = append(second, c)
	}

	assert.Equal(t, first, second)
}

func TestChunks_EarlyBreak(t *testing.T) {
	text := strings.Join([]string{"aaaa", "bbbb", "cccc"}, ParagraphSeparator)

	var got []string
	for c := range Chunks(text, 1) {
		got = append(got, c)
		if len(got) == 2 {
			break
		}
	}

	assert.Equal(t, []string{"aaaa", "bbbb"}, got)
}

func TestSplit_Properties(t *testing.T) {
	for seed := int64(1); seed <= 200; seed++ {
		text := randomDocument(seed)
		budget := 10 + int(seed%90)

		t.Run(fmt.Sprintf("seed_%d_budget_%d", seed, budget), func(t *testing.T) {
			chunks := Split(text, budget)
			maxChars := MaxChars(budget)

			for _, c := range chunks {
				require.NotEmpty(t, c)

				if utf8.RuneCountInString(c) > maxChars {
					// Only a single sentence may exceed the budget.
					assert.NotContains(t, c, SentenceSeparator)
					assert.NotContains(t, c, ParagraphSeparator)
				}
			}

			assert.Equal(t, stripSeparators(text), stripSeparators(strings.Join(chunks, "")))
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("abc"))
	assert.Equal(t, 1, EstimateTokens("abcd"))
	assert.Equal(t, 2, EstimateTokens("abcde"))
}

// Package chunker splits long documents into bounded, retrievable segments.
//
// The splitter is greedy: paragraphs are packed into a buffer until the next one
// would push the buffer over the character budget (about four characters per token).
// A paragraph that is too long on its own is packed sentence by sentence instead.
package chunker

import (
	"iter"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxChunkTokens is used when callers pass a non-positive token budget.
	DefaultMaxChunkTokens = 500

	// CharsPerToken is the token estimate used to turn a token budget into a character budget.
	CharsPerToken = 4

	// ParagraphSeparator separates paragraphs in the input and inside a chunk.
	ParagraphSeparator = "\n\n"

	// SentenceSeparator separates sentences of an oversized paragraph.
	SentenceSeparator = ". "
)

// MaxChars returns the character budget for a token budget.
func MaxChars(maxChunkTokens int) int {
	if maxChunkTokens <= 0 {
		maxChunkTokens = DefaultMaxChunkTokens
	}

	return maxChunkTokens * CharsPerToken
}

// EstimateTokens approximates the token count of text with the 4-chars-per-token heuristic.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)

	return (n + CharsPerToken - 1) / CharsPerToken
}

// Split returns all chunks of text for the given token budget.
func Split(text string, maxChunkTokens int) []string {
	return slices.Collect(Chunks(text, maxChunkTokens))
}

// Chunks returns the chunks of text as a sequence. The sequence can be ranged over
// any number of times and always yields the same chunks in the same order.
// No yielded chunk is empty. A chunk exceeds MaxChars only when it is a single
// sentence that is itself longer than the budget.
func Chunks(text string, maxChunkTokens int) iter.Seq[string] {
	maxChars := MaxChars(maxChunkTokens)

	return func(yield func(string) bool) {
		p := packer{maxChars: maxChars, yield: yield}

		for paragraph := range strings.SplitSeq(text, ParagraphSeparator) {
			if paragraph == "" {
				continue
			}

			if !p.addParagraph(paragraph) {
				return
			}
		}

		p.flush()
	}
}

// packer holds the running buffer while a sequence is produced.
type packer struct {
	maxChars int
	buf      strings.Builder
	bufLen   int
	yield    func(string) bool
	stopped  bool
}

func (p *packer) addParagraph(paragraph string) bool {
	n := utf8.RuneCountInString(paragraph)

	if n > p.maxChars {
		if !p.flush() {
			return false
		}

		return p.addSentences(paragraph)
	}

	return p.append(paragraph, n, ParagraphSeparator)
}

func (p *packer) addSentences(paragraph string) bool {
	for sentence := range strings.SplitSeq(paragraph, SentenceSeparator) {
		if sentence == "" {
			continue
		}

		// Oversized sentences are emitted alone.
		if !p.append(sentence, utf8.RuneCountInString(sentence), SentenceSeparator) {
			return false
		}
	}

	return true
}

// append adds s to the buffer, flushing first when s would not fit.
func (p *packer) append(s string, n int, sep string) bool {
	if p.bufLen > 0 && p.bufLen+len(sep)+n > p.maxChars {
		if !p.flush() {
			return false
		}
	}

	if p.bufLen > 0 {
		p.buf.WriteString(sep)
		p.bufLen += len(sep)
	}

	p.buf.WriteString(s)
	p.bufLen += n

	return true
}

func (p *packer) flush() bool {
	if p.stopped {
		return false
	}

	if p.bufLen == 0 {
		return true
	}

	chunk := p.buf.String()
	p.buf.Reset()
	p.bufLen = 0

	if !p.yield(chunk) {
		p.stopped = true

		return false
	}

	return true
}

package generation

import "strings"

// DefaultWindowRunes is the size of each sampled window of a source.
const DefaultWindowRunes = 3000

const windowSeparator = "\n\n[...]\n\n"

// SampleWindows returns the head, middle and tail of text, each up to size runes.
// Text shorter than three windows is returned whole.
func SampleWindows(text string, size int) string {
	if size <= 0 {
		size = DefaultWindowRunes
	}

	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= 3*size {
		return string(runes)
	}

	mid := len(runes)/2 - size/2

	return strings.Join([]string{
		string(runes[:size]),
		string(runes[mid : mid+size]),
		string(runes[len(runes)-size:]),
	}, windowSeparator)
}

// headWindow returns the first size runes of text.
func headWindow(text string, size int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= size {
		return string(runes)
	}

	return string(runes[:size])
}

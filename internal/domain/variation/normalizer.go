package variation

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxNormalizePasses bounds the fixed-point iteration; real titles settle in
// two or three passes.
const maxNormalizePasses = 32

// TitleNormalizer strips variation vocabulary from titles to produce a base
// identity string.
type TitleNormalizer struct {
	vocab *Vocabulary
}

// NewTitleNormalizer creates a normalizer over vocab
func NewTitleNormalizer(vocab *Vocabulary) *TitleNormalizer {
	return &TitleNormalizer{vocab: vocab}
}

// Normalize returns the base identity of title. The result is a fixed point:
// Normalize(Normalize(t)) == Normalize(t). Blank titles yield "".
func (n *TitleNormalizer) Normalize(title string) string {
	current := title
	for i := 0; i < maxNormalizePasses; i++ {
		next := n.pass(current)
		if next == current {
			return next
		}
		current = next
	}
	return current
}

func (n *TitleNormalizer) pass(s string) string {
	s = norm.NFC.String(s)
	for _, theme := range n.vocab.themes {
		s = theme.matcher.Strip(s)
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

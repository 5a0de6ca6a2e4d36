// Package moderation censors forbidden words in user-submitted text.
// Matching is resilient to leet speak and to punctuation or spacing
// inserted between letters; the replacement preserves the original layout.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher *goahocorasick.Machine
	mask    rune
}

// NewModerator builds the Aho-Corasick automaton over the folded form of
// the word list. Words that fold down to nothing are skipped.
func NewModerator(words []string, mask rune) (Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		folded := foldRunes([]rune(word))
		if len(folded) == 0 {
			continue
		}
		patterns = append(patterns, folded)
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: machine, mask: mask}, nil
}

// Censor replaces every character of a matched word with the mask rune.
// The text is searched in its folded form, and each folded position keeps a
// pointer back to its original rune so punctuation and spacing survive.
func (m *Moderator) Censor(original string) string {
	origRunes := []rune(original)

	folded := make([]rune, 0, len(origRunes))
	backRefs := make([]int, 0, len(origRunes))
	for i, r := range origRunes {
		f := unfake(r)
		if skippable(f) {
			continue
		}
		folded = append(folded, unicode.ToLower(f))
		backRefs = append(backRefs, i)
	}
	if len(folded) == 0 {
		return original
	}

	hits := m.matcher.MultiPatternSearch(folded, false)
	if len(hits) == 0 {
		return original
	}

	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(backRefs) {
			continue
		}
		for i := backRefs[start]; i <= backRefs[end-1]; i++ {
			origRunes[i] = m.mask
		}
	}
	return string(origRunes)
}

func foldRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		f := unfake(r)
		if skippable(f) {
			continue
		}
		out = append(out, unicode.ToLower(f))
	}
	return out
}

// unfake maps the usual leet speak substitutions back to plain letters.
func unfake(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func skippable(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r)
}

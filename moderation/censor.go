// Package moderation masks banned words in outbound message text before it
// is persisted or delivered. Matching is accent-of-leet tolerant: digits and
// symbols commonly substituted for letters are folded back, spacing and
// punctuation are ignored, but the original runes of the message keep their
// positions so only the matched span is masked.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Censor struct {
	machine *goahocorasick.Machine
	mask    rune
}

// New builds the Aho-Corasick automaton over the normalized banned words.
func New(banned []string, mask rune) (*Censor, error) {
	patterns := make([][]rune, 0, len(banned))
	for _, w := range banned {
		if folded := fold([]rune(w)); len(folded) > 0 {
			patterns = append(patterns, folded)
		}
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{machine: m, mask: mask}, nil
}

// Apply returns text with every banned span replaced by the mask rune.
// Untouched input comes back unchanged, including its spacing.
func (c *Censor) Apply(text string) string {
	runes := []rune(text)
	folded, origIdx := foldIndexed(runes)
	if len(folded) == 0 {
		return text
	}

	spans := c.machine.MultiPatternSearch(folded, false)
	if len(spans) == 0 {
		return text
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			runes[i] = c.mask
		}
	}
	return string(runes)
}

// foldIndexed folds the input for matching and records, per folded rune,
// the index of the original rune it came from.
func foldIndexed(runes []rune) ([]rune, []int) {
	folded := make([]rune, 0, len(runes))
	origIdx := make([]int, 0, len(runes))
	for i, r := range runes {
		f := unleet(r)
		if skippable(f) {
			continue
		}
		folded = append(folded, unicode.ToLower(f))
		origIdx = append(origIdx, i)
	}
	return folded, origIdx
}

func fold(runes []rune) []rune {
	out, _ := foldIndexed(runes)
	return out
}

// unleet maps common leet speak characters back to their alphabet counterparts.
func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
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
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

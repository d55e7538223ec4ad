// Package moderation masks forbidden words in player display names.
package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	log          *slog.Logger
}

// TextMapping ties every normalized rune to its index in the original text.
type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

// NewModerator builds the automaton over the normalized words.
// Words that normalize to nothing, such as pure punctuation, are dropped.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		if normalized := normalizeRunes([]rune(word)); len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}
	m := &Moderator{censoredChar: censoredChar, log: log}
	if len(patterns) == 0 {
		return m, nil
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	m.matcher = machine
	return m, nil
}

// Censor masks every forbidden word, keeping spacing and punctuation outside
// the match. It returns the matched words in order of appearance.
func (m *Moderator) Censor(original string) (string, []string) {
	if m.matcher == nil {
		return original, nil
	}
	mapping := m.normalize(original)
	if len(mapping.Normalized) == 0 {
		return original, nil
	}
	spans := m.matcher.MultiPatternSearch(mapping.Normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var words []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}
		words = append(words, string(span.Word))
		for i := mapping.OrigIdx[normStart]; i <= mapping.OrigIdx[normEnd-1]; i++ {
			origRunes[i] = m.censoredChar
		}
	}
	return string(origRunes), words
}

// CleanName trims a display name, collapses inner whitespace and masks forbidden words.
func (m *Moderator) CleanName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	cleaned, words := m.Censor(name)
	if len(words) > 0 && m.log != nil {
		m.log.Info("Display name censored", "words", len(words))
	}
	return cleaned
}

func (m *Moderator) normalize(input string) TextMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))
	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return TextMapping{Normalized: norm, OrigIdx: origIdx}
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet speak back to letters.
func simplifyRune(r rune) rune {
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

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}

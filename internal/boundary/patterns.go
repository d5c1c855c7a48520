// Package boundary scores segment joins for probable semantic
// breakage and repairs the flagged ones through the Model Backend.
package boundary

import "strings"

// Patterns holds the linguistic pattern classes the analyzer checks.
// They are language- and script-specific, so callers pick (or build)
// a set matching the target language instead of relying on one
// hard-coded list.
type Patterns struct {
	// TerminalPunctuation are runes that legitimately end a sentence.
	TerminalPunctuation []rune
	// DanglingConnectors are words that, when a segment ends with
	// them, signal an unfinished clause (conjunctions, auxiliaries,
	// particles). Compared case-insensitively against the last word.
	DanglingConnectors []string
	// TrailingParticles are single-rune suffixes (mostly CJK) that
	// leave a clause hanging when they close a segment.
	TrailingParticles []rune
	// ContinuationStarters are words a sentence rarely starts with
	// unless it continues the previous one.
	ContinuationStarters []string
}

// DefaultEnglish covers Latin-script targets.
var DefaultEnglish = Patterns{
	TerminalPunctuation: []rune{'.', '!', '?', '…', '"', '\'', ')', ']'},
	DanglingConnectors: []string{
		"and", "but", "or", "so", "because", "although", "while",
		"that", "which", "who", "whose", "if", "when", "than",
		"to", "of", "in", "on", "at", "with", "by", "for", "from",
		"the", "a", "an",
		"is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "will", "would", "can", "could",
		"should", "must", "may", "might",
	},
	ContinuationStarters: []string{
		"however", "but", "and", "or", "so", "then", "because",
		"which", "though", "although", "also", "besides",
		"therefore", "meanwhile", "instead", "otherwise", "yet",
	},
}

// DefaultCJK covers Chinese/Japanese targets, where clause breaks are
// marked by particles rather than spacing.
var DefaultCJK = Patterns{
	TerminalPunctuation: []rune{'。', '！', '？', '…', '”', '」', '』', '.', '!', '?'},
	DanglingConnectors: []string{
		"而且", "但是", "因为", "所以", "如果", "虽然", "或者", "并且",
	},
	TrailingParticles: []rune{
		'的', '地', '得', '了', '在', '和', '与', '或', '而', '就',
		'被', '把', '对', '向', '从', '将', '是',
	},
	ContinuationStarters: []string{
		"但是", "然而", "所以", "而且", "因为", "不过", "然后", "于是",
		"并且", "否则", "同时", "就是",
	},
}

// ForLanguage picks a default pattern set by ISO 639-1 base language.
func ForLanguage(lang string) Patterns {
	switch strings.ToLower(strings.SplitN(lang, "-", 2)[0]) {
	case "zh", "ja", "ko":
		return DefaultCJK
	default:
		return DefaultEnglish
	}
}

func (p Patterns) endsTerminal(text string) bool {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return true
	}
	last := runes[len(runes)-1]
	for _, r := range p.TerminalPunctuation {
		if last == r {
			return true
		}
	}
	return false
}

func (p Patterns) endsWithConnector(text string) bool {
	word := lastWord(text)
	if word == "" {
		return false
	}
	for _, c := range p.DanglingConnectors {
		if strings.EqualFold(word, c) {
			return true
		}
	}
	return false
}

func (p Patterns) endsWithParticle(text string) bool {
	runes := []rune(strings.TrimRight(strings.TrimSpace(text), ",，、"))
	if len(runes) == 0 {
		return false
	}
	last := runes[len(runes)-1]
	for _, r := range p.TrailingParticles {
		if last == r {
			return true
		}
	}
	return false
}

func (p Patterns) startsWithContinuation(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	lowered := strings.ToLower(trimmed)
	for _, c := range p.ContinuationStarters {
		cl := strings.ToLower(c)
		if !strings.HasPrefix(lowered, cl) {
			continue
		}
		rest := lowered[len(cl):]
		// Latin starters need a word boundary after the match; CJK
		// starters do not use spacing.
		if rest == "" || !isLetter(rune(cl[0])) || !isLetter(firstRune(rest)) {
			return true
		}
	}
	return false
}

func lastWord(text string) string {
	fields := strings.Fields(strings.TrimRight(strings.TrimSpace(text), ",;:"))
	if len(fields) == 0 {
		return ""
	}
	return strings.TrimRight(fields[len(fields)-1], ",;:")
}

func firstRune(s string) rune {
	for _, r := range s {
		return r
	}
	return 0
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

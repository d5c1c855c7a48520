package transcript

import (
	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// DetectLanguage votes a language per entry and returns the winner.
// Short or mixed transcripts can flip between close scripts on single
// lines, so the per-line majority is more stable than detecting the
// concatenated text once.
func DetectLanguage(entries []Entry) language.Tag {
	if len(entries) == 0 {
		return language.Und
	}

	langMap := make(map[string]int)

	for _, e := range entries {
		if e.Text == "" {
			continue
		}
		lang := whatlanggo.DetectLang(e.Text).Iso6391()
		langMap[lang]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount {
			topLang = lang
			topCount = count
		}
	}

	if topLang == "" {
		return language.Und
	}
	return language.All.Make(topLang)
}

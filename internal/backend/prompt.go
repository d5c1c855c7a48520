package backend

import (
	"fmt"
	"strings"
)

func translatePrompt(tc Context) string {
	var prompt strings.Builder

	prompt.WriteString("You are a professional subtitle translation expert. Translate subtitles from " +
		orUnknown(tc.SourceLanguage) + " to " + tc.TargetLanguage + ".\n\n")

	if tc.VideoTitle != "" {
		prompt.WriteString("=== MEDIA INFORMATION ===\n")
		prompt.WriteString(fmt.Sprintf("Title: %s\n\n", tc.VideoTitle))
	}

	prompt.WriteString("=== TRANSLATION GUIDELINES ===\n")
	prompt.WriteString("1. Ensure the " + tc.TargetLanguage + " flows naturally while preserving meaning\n")
	if tc.CompactLines {
		prompt.WriteString("2. Keep each line short enough for comfortable on-screen reading\n")
	} else {
		prompt.WriteString("2. Keep subtitle length appropriate for screen reading\n")
	}
	if tc.FormalTone {
		prompt.WriteString("3. Use formal register where the target language marks it\n")
	} else {
		prompt.WriteString("3. Match the register of the spoken dialogue\n")
	}
	prompt.WriteString("4. Preserve " + lineSeparator + " line separators exactly\n")
	prompt.WriteString("5. Preserve " + inlineBreak + " inline break markers exactly\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the translated subtitles, separated by " + lineSeparator + ".\n")
	prompt.WriteString("Do not include any explanations, notes, or additional text.\n")
	prompt.WriteString("The number of output lines must exactly match the number of input lines.\n")

	return prompt.String()
}

func stitchPrompt(hint BoundaryHint, tc Context) string {
	var prompt strings.Builder

	prompt.WriteString("You are repairing a subtitle translation around a segmentation cut. ")
	prompt.WriteString("The lines below were translated to " + tc.TargetLanguage +
		" in two independent batches, and the meaning may be broken where they meet.\n\n")

	prompt.WriteString(fmt.Sprintf("The cut falls immediately before line %d of this window.\n", hint.WindowCut+1))
	if len(hint.Issues) > 0 {
		prompt.WriteString("Detected issues at the cut: " + strings.Join(hint.Issues, ", ") + ".\n")
	}
	if hint.TimeGapSeconds > 0 {
		prompt.WriteString(fmt.Sprintf("Time gap across the cut: %.2f seconds.\n", hint.TimeGapSeconds))
	}

	prompt.WriteString("\n=== REPAIR RULES ===\n")
	prompt.WriteString("1. Re-translate the window so the meaning reads continuously across the cut\n")
	prompt.WriteString("2. Keep every line aligned with its original line: same order, same count\n")
	prompt.WriteString("3. Do NOT merge, split, or reflow lines; timestamps outside this text are fixed\n")
	prompt.WriteString("4. Preserve " + lineSeparator + " separators and " + inlineBreak + " markers exactly\n")

	prompt.WriteString("\n=== OUTPUT FORMAT ===\n")
	prompt.WriteString("Return ONLY the corrected lines, separated by " + lineSeparator + ".\n")
	prompt.WriteString("The number of output lines must exactly match the number of input lines.\n")

	return prompt.String()
}

func orUnknown(lang string) string {
	if lang == "" {
		return "the source language"
	}
	return lang
}

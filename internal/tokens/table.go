// Package tokens maps model identifiers to context-window budgets.
package tokens

import "strings"

// Budget describes the usable context window of one model.
// SafeThreshold is the fraction of MaxTokens a single translation
// request should stay under, leaving room for the response.
type Budget struct {
	MaxTokens     int
	SafeThreshold float64
}

// DefaultBudget is the conservative fallback for unknown models.
var DefaultBudget = Budget{MaxTokens: 8192, SafeThreshold: 0.7}

// budgets is keyed by normalized model family prefixes. Longest
// matching prefix wins, so "gpt-4o-mini" resolves before "gpt-4".
var budgets = map[string]Budget{
	"gpt-3.5-turbo":    {MaxTokens: 16385, SafeThreshold: 0.7},
	"gpt-4":            {MaxTokens: 8192, SafeThreshold: 0.7},
	"gpt-4-turbo":      {MaxTokens: 128000, SafeThreshold: 0.7},
	"gpt-4o":           {MaxTokens: 128000, SafeThreshold: 0.7},
	"gpt-4o-mini":      {MaxTokens: 128000, SafeThreshold: 0.7},
	"gpt-5":            {MaxTokens: 200000, SafeThreshold: 0.7},
	"claude-3-haiku":   {MaxTokens: 200000, SafeThreshold: 0.7},
	"claude-3-sonnet":  {MaxTokens: 200000, SafeThreshold: 0.7},
	"claude-3-opus":    {MaxTokens: 200000, SafeThreshold: 0.7},
	"claude-sonnet-4":  {MaxTokens: 200000, SafeThreshold: 0.7},
	"gemini-1.5-pro":   {MaxTokens: 1048576, SafeThreshold: 0.7},
	"gemini-1.5-flash": {MaxTokens: 1048576, SafeThreshold: 0.7},
	"gemini-2.0-flash": {MaxTokens: 1048576, SafeThreshold: 0.7},
	"deepseek-chat":    {MaxTokens: 65536, SafeThreshold: 0.7},
	"qwen-turbo":       {MaxTokens: 131072, SafeThreshold: 0.7},
	"llama-3":          {MaxTokens: 8192, SafeThreshold: 0.7},
	"mistral-large":    {MaxTokens: 131072, SafeThreshold: 0.7},
}

// Lookup resolves a model identifier to its budget. Provider prefixes
// like "openai/" are stripped first. An exact match wins, otherwise
// the longest known family prefix, otherwise DefaultBudget. Lookup
// never fails: an unknown model id segments under the default budget.
func Lookup(modelID string) Budget {
	id := normalize(modelID)
	if id == "" {
		return DefaultBudget
	}

	if b, ok := budgets[id]; ok {
		return b
	}

	var best string
	for family := range budgets {
		if strings.HasPrefix(id, family) && len(family) > len(best) {
			best = family
		}
	}
	if best != "" {
		return budgets[best]
	}
	return DefaultBudget
}

func normalize(modelID string) string {
	id := strings.ToLower(strings.TrimSpace(modelID))
	if idx := strings.LastIndex(id, "/"); idx >= 0 {
		id = id[idx+1:]
	}
	return id
}

package chunker

import "strings"

// tokenize splits text into whitespace-delimited tokens. Token counting only;
// no model vocabulary is involved, which keeps windowing deterministic and
// offline.
func tokenize(text string) []string {
	return strings.Fields(text)
}

// tokenWindows splits a block into overlapping token windows. Blocks within
// the budget pass through verbatim, preserving their original formatting.
// Oversized blocks slide a window of maxTokens with step maxTokens-overlap;
// the final window is always emitted even when it overlaps more than half of
// the previous one, so no trailing remainder is ever dropped.
func tokenWindows(block string, maxTokens, overlap int) []string {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil
	}

	tokens := tokenize(block)
	if len(tokens) == 0 {
		return nil
	}
	if len(tokens) <= maxTokens {
		return []string{block}
	}

	step := maxTokens - overlap
	if step < 1 {
		step = 1
	}

	var windows []string
	for i := 0; i < len(tokens); i += step {
		end := i + maxTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		windows = append(windows, strings.Join(tokens[i:end], " "))
		if i+maxTokens >= len(tokens) {
			break
		}
	}

	return windows
}

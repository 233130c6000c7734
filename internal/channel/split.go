package channel

import "strings"

// SplitMessage splits text into chunks no longer than limit, breaking on
// newlines: lines accumulate greedily into a chunk until adding the next
// line (plus its newline) would exceed the limit, which closes the current
// chunk and seeds a new one with that line. If the walk produces no chunk
// boundary at all (a single line longer than the limit with no other
// content), the text is hard-truncated to the limit as a deliberately lossy
// last resort.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var current string

	for _, line := range strings.Split(text, "\n") {
		candidate := line
		if current != "" {
			candidate = current + "\n" + line
		}
		if len(candidate) > limit && current != "" {
			chunks = append(chunks, strings.TrimSpace(current))
			current = line
			continue
		}
		current = candidate
	}
	if strings.TrimSpace(current) != "" {
		// A lone line longer than the limit produced no boundary at all;
		// hard-truncate rather than emit an unsendable chunk.
		if len(chunks) == 0 && len(current) > limit {
			return []string{text[:limit]}
		}
		chunks = append(chunks, strings.TrimSpace(current))
	}

	if len(chunks) == 0 {
		return []string{text[:limit]}
	}
	return chunks
}

package repl

import (
	"strings"
	"unicode"
)

// Extractor pulls the newest reply out of a settled scrollback snapshot.
//
// The region of interest sits between the echo of the last submitted input
// (a line starting with ">>>" that is not the prompt itself) and the last
// prompt line. Models are told to prepend a persona prefix, so the reply is
// whatever follows the first prefix found; without one the region is taken
// verbatim minus the terminal's "..." continuation markers.
type Extractor struct {
	Marker      string   // prompt marker, substring match
	ThinkMarker string   // reasoning terminator, e.g. "</think>"; empty disables
	Prefixes    []string // persona prefixes, e.g. `👨 Him:`
}

// Reply extracts the reply text, or "" when the snapshot holds none.
func (e Extractor) Reply(lines []string) string {
	lastPrompt := -1
	for i, line := range lines {
		if strings.Contains(line, e.Marker) {
			lastPrompt = i
		}
	}
	if lastPrompt < 0 {
		return ""
	}

	// Echo of the newest input before the prompt. The first visible line is
	// never one: a wrapped tail from older output can start with ">>>".
	start := 0
	for i := 1; i < lastPrompt; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), ">>>") && !strings.Contains(lines[i], e.Marker) {
			start = i + 1
		}
	}

	region := stripThink(lines[start:lastPrompt], e.ThinkMarker)
	region = trimBlankEdges(region)
	if len(region) == 0 {
		return ""
	}

	// The prefix can wrap across lines, so search the joined text.
	joined := make([]string, len(region))
	for i, line := range region {
		joined[i] = strings.TrimSpace(line)
	}
	full := strings.Join(joined, " ")

	for _, prefix := range e.Prefixes {
		pos := strings.Index(full, prefix)
		if pos < 0 {
			continue
		}
		text := strings.TrimSpace(full[pos+len(prefix):])
		return strings.TrimSpace(strings.ReplaceAll(text, "...", " "))
	}

	// No prefix: keep the region verbatim, dropping the "..." the terminal
	// puts in front of continuation lines.
	var out strings.Builder
	for _, line := range region {
		if strings.HasPrefix(strings.TrimSpace(line), "...") {
			line = strings.TrimLeftFunc(strings.Replace(line, "...", " ", 1), unicode.IsSpace)
		}
		out.WriteString(line)
	}
	return strings.TrimSpace(out.String())
}

// stripThink drops everything through the last line containing the
// reasoning terminator, leaving only what the model said out loud.
func stripThink(lines []string, marker string) []string {
	if marker == "" {
		return lines
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], marker) {
			return lines[i+1:]
		}
	}
	return lines
}

func trimBlankEdges(lines []string) []string {
	start := 0
	for start < len(lines) && strings.TrimSpace(lines[start]) == "" {
		start++
	}
	end := len(lines)
	for end > start && strings.TrimSpace(lines[end-1]) == "" {
		end--
	}
	return lines[start:end]
}

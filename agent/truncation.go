package agent

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMode specifies how oversized tool output is cut.
type TruncationMode string

const (
	TruncateHeadTail TruncationMode = "head_tail"
	TruncateTail     TruncationMode = "tail"
)

// Default character limits per tool.
var defaultCharLimits = map[string]int{
	"read_file":  50000,
	"search":     20000,
	"list_files": 20000,
	"edit_file":  10000,
	"write_file": 1000,
}

// Default truncation modes per tool.
var defaultTruncationModes = map[string]TruncationMode{
	"read_file":  TruncateHeadTail,
	"search":     TruncateTail,
	"list_files": TruncateTail,
	"edit_file":  TruncateTail,
	"write_file": TruncateTail,
}

// Default line limits per tool, applied after character truncation.
var defaultLineLimits = map[string]int{
	"search":     200,
	"list_files": 500,
}

const fallbackCharLimit = 30000

// runeStart backs the byte index i off to the start of the rune it falls
// inside, so cuts never produce invalid UTF-8.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// truncateChars applies character-based truncation.
func truncateChars(output string, maxChars int, mode TruncationMode) string {
	if len(output) <= maxChars {
		return output
	}

	switch mode {
	case TruncateTail:
		cut := runeStart(output, len(output)-maxChars)
		return fmt.Sprintf("[WARNING: Tool output was truncated. First %d characters were removed.]\n\n", cut) +
			output[cut:]
	default: // head_tail
		headEnd := runeStart(output, maxChars/2)
		tailStart := runeStart(output, len(output)-maxChars/2)
		return output[:headEnd] +
			fmt.Sprintf("\n\n[WARNING: Tool output was truncated. %d characters were removed from the middle. "+
				"Re-run the tool with more targeted parameters if you need the missing portion.]\n\n", tailStart-headEnd) +
			output[tailStart:]
	}
}

// truncateLines applies line-based truncation using a head/tail split.
func truncateLines(output string, maxLines int) string {
	lines := strings.Split(output, "\n")
	if len(lines) <= maxLines {
		return output
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount

	return strings.Join(lines[:headCount], "\n") +
		fmt.Sprintf("\n[... %d lines omitted ...]\n", omitted) +
		strings.Join(lines[len(lines)-tailCount:], "\n")
}

// TruncateToolOutput applies the truncation pipeline for a tool: character
// truncation first (handles pathological sizes), then line truncation for
// readability. The overrides maps take precedence over the per-tool defaults.
func TruncateToolOutput(output, toolName string, charOverrides, lineOverrides map[string]int) string {
	maxChars, ok := charOverrides[toolName]
	if !ok {
		if maxChars, ok = defaultCharLimits[toolName]; !ok {
			maxChars = fallbackCharLimit
		}
	}
	mode, ok := defaultTruncationModes[toolName]
	if !ok {
		mode = TruncateHeadTail
	}

	result := truncateChars(output, maxChars, mode)

	maxLines := 0
	if ml, ok := lineOverrides[toolName]; ok {
		maxLines = ml
	} else if ml, ok := defaultLineLimits[toolName]; ok {
		maxLines = ml
	}
	if maxLines > 0 {
		result = truncateLines(result, maxLines)
	}

	return result
}

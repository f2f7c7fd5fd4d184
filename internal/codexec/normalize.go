package codexec

import (
	"strings"
)

// Test-case text is normalized identically for sample, hidden and
// custom runs before any use: carriage returns are stripped, each
// input line is trimmed on both sides, each expected-output line is
// trimmed on the right only, and lines are rejoined with \n. Verdicts
// are derived by exact string equality on the normalized forms, so
// this transform is correctness-critical, not cosmetic.

// NormalizeInput normalizes a test-case input string.
func NormalizeInput(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// NormalizeOutput normalizes an expected or actual output string.
// Leading whitespace is significant in program output, so only the
// right side of each line is trimmed.
func NormalizeOutput(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r", ""), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// OutputsMatch reports whether two outputs are equal after
// normalization.
func OutputsMatch(expected, actual string) bool {
	return NormalizeOutput(expected) == NormalizeOutput(actual)
}

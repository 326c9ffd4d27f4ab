package main

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// LineKind classifies a line of a diff
type LineKind int

const (
	Unchanged LineKind = iota
	Changed
	Added
	Removed
)

func (k LineKind) String() string {
	switch k {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// DiffLine is a single line of a diff
type DiffLine struct {
	Text string
	Kind LineKind
}

// Algorithm selects how lines are aligned
type Algorithm string

const (
	// AlgorithmPositional compares line i with line i.
	AlgorithmPositional Algorithm = "positional"
	// AlgorithmLCS aligns lines on their longest common subsequence.
	AlgorithmLCS Algorithm = "lcs"
)

// ParseAlgorithm parses an algorithm name; empty means positional
func ParseAlgorithm(s string) (Algorithm, error) {
	switch strings.ToLower(s) {
	case "", string(AlgorithmPositional):
		return AlgorithmPositional, nil
	case string(AlgorithmLCS):
		return AlgorithmLCS, nil
	default:
		return "", fmt.Errorf("unsupported diff algorithm: %s", s)
	}
}

// splitLines splits text on \n after dropping one trailing newline.
// The empty string has no lines.
func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []string{}
	}
	return strings.Split(text, "\n")
}

// Diff compares original and edited line by line, by position
func Diff(original, edited string) []DiffLine {
	return positionalDiff(splitLines(original), splitLines(edited))
}

// DiffWith compares original and edited using algo
func DiffWith(algo Algorithm, original, edited string) []DiffLine {
	if algo == AlgorithmLCS {
		return lcsDiff(splitLines(original), splitLines(edited))
	}
	return Diff(original, edited)
}

func positionalDiff(original, edited []string) []DiffLine {
	lines := make([]DiffLine, 0, max(len(original), len(edited)))

	for i, line := range edited {
		switch {
		case i >= len(original):
			lines = append(lines, DiffLine{Text: line, Kind: Added})
		case line != original[i]:
			lines = append(lines, DiffLine{Text: line, Kind: Changed})
		default:
			lines = append(lines, DiffLine{Text: line, Kind: Unchanged})
		}
	}

	if len(original) > len(edited) {
		for _, line := range original[len(edited):] {
			lines = append(lines, DiffLine{Text: line, Kind: Removed})
		}
	}

	return lines
}

func lcsDiff(original, edited []string) []DiffLine {
	var lines []DiffLine

	matcher := difflib.NewMatcher(original, edited)
	for _, op := range matcher.GetOpCodes() {
		switch op.Tag {
		case 'e':
			for _, line := range edited[op.J1:op.J2] {
				lines = append(lines, DiffLine{Text: line, Kind: Unchanged})
			}
		case 'd':
			for _, line := range original[op.I1:op.I2] {
				lines = append(lines, DiffLine{Text: line, Kind: Removed})
			}
		case 'i':
			for _, line := range edited[op.J1:op.J2] {
				lines = append(lines, DiffLine{Text: line, Kind: Added})
			}
		case 'r':
			// Pair replaced lines as changed, then report the surplus
			paired := min(op.I2-op.I1, op.J2-op.J1)
			for k := 0; k < paired; k++ {
				lines = append(lines, DiffLine{Text: edited[op.J1+k], Kind: Changed})
			}
			for _, line := range edited[op.J1+paired : op.J2] {
				lines = append(lines, DiffLine{Text: line, Kind: Added})
			}
			for _, line := range original[op.I1+paired : op.I2] {
				lines = append(lines, DiffLine{Text: line, Kind: Removed})
			}
		}
	}

	if lines == nil {
		lines = []DiffLine{}
	}
	return lines
}

// DiffStats counts lines of each kind
type DiffStats struct {
	Unchanged int
	Changed   int
	Added     int
	Removed   int
}

// Stats returns the number of lines of each kind
func Stats(lines []DiffLine) DiffStats {
	var s DiffStats
	for _, line := range lines {
		switch line.Kind {
		case Unchanged:
			s.Unchanged++
		case Changed:
			s.Changed++
		case Added:
			s.Added++
		case Removed:
			s.Removed++
		}
	}
	return s
}

// HasChanges returns true if any line differs
func HasChanges(lines []DiffLine) bool {
	for _, line := range lines {
		if line.Kind != Unchanged {
			return true
		}
	}
	return false
}

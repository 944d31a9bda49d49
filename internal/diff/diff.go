// internal/diff/diff.go
package diff

import (
	"strings"
)

// Range holds the decoded line ranges of a hunk header
type Range struct {
	OldStart int    `json:"oldStart"`
	OldCount int    `json:"oldCount"`
	NewStart int    `json:"newStart"`
	NewCount int    `json:"newCount"`
	Section  string `json:"section,omitempty"`
}

// Hunk represents one contiguous change region of a single file's diff.
// Lines[0] is always the header line; the remaining entries are the raw
// context/added/removed lines exactly as git printed them.
type Hunk struct {
	Header    string   `json:"header"`
	Lines     []string `json:"lines"`
	StartLine int      `json:"startLine"`
	EndLine   int      `json:"endLine"`
	Range     Range    `json:"range"`
	Malformed bool     `json:"malformed,omitempty"`
}

// Parse splits the unified diff of exactly one file into its hunks.
//
// Lines preceding the first "@@" header (the diff --git / index / ---/+++
// preamble) are skipped. A header that does not match the unified range
// format yields StartLine 0 and Malformed set; it is not an error.
func Parse(text string) []Hunk {
	if text == "" {
		return nil
	}

	var hunks []Hunk
	var current *Hunk

	for _, line := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		if strings.HasPrefix(line, "@@") {
			if current != nil {
				hunks = append(hunks, *current)
			}
			current = newHunk(line)
			continue
		}

		if current == nil {
			continue
		}

		current.Lines = append(current.Lines, line)
		if isAddition(line) {
			current.EndLine++
		}
	}

	if current != nil {
		hunks = append(hunks, *current)
	}

	return hunks
}

func newHunk(header string) *Hunk {
	r, ok := ParseHeader(header)
	return &Hunk{
		Header:    header,
		Lines:     []string{header},
		StartLine: r.NewStart,
		EndLine:   r.NewStart,
		Range:     r,
		Malformed: !ok,
	}
}

// Text returns the hunk lines joined by newlines, newline terminated
func (h Hunk) Text() string {
	if len(h.Lines) == 0 {
		return ""
	}
	return strings.Join(h.Lines, "\n") + "\n"
}

// Added counts the lines this hunk adds to the new file
func (h Hunk) Added() int {
	n := 0
	for _, line := range h.body() {
		if isAddition(line) {
			n++
		}
	}
	return n
}

// Removed counts the lines this hunk drops from the old file
func (h Hunk) Removed() int {
	n := 0
	for _, line := range h.body() {
		if isDeletion(line) {
			n++
		}
	}
	return n
}

func (h Hunk) body() []string {
	if len(h.Lines) <= 1 {
		return nil
	}
	return h.Lines[1:]
}

// Join renders hunks back into diff text. For any diff, Join(Parse(d))
// equals d without its file-pair preamble.
func Join(hunks []Hunk) string {
	var b strings.Builder
	for _, h := range hunks {
		b.WriteString(h.Text())
	}
	return b.String()
}

package diff

import (
	"regexp"
	"strconv"
	"strings"
)

var headerPattern = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@(.*)$`)

// ParseHeader decodes "@@ -a[,b] +c[,d] @@ section". Omitted counts are 1.
// The boolean is false when line does not follow that form, in which case
// the zero Range is returned.
func ParseHeader(line string) (Range, bool) {
	m := headerPattern.FindStringSubmatch(line)
	if m == nil {
		return Range{}, false
	}

	return Range{
		OldStart: atoi(m[1], 0),
		OldCount: atoi(m[2], 1),
		NewStart: atoi(m[3], 0),
		NewCount: atoi(m[4], 1),
		Section:  strings.TrimPrefix(m[5], " "),
	}, true
}

func atoi(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func isAddition(line string) bool {
	return strings.HasPrefix(line, "+") && !strings.HasPrefix(line, "+++")
}

func isDeletion(line string) bool {
	return strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "---")
}

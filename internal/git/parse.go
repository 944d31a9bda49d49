package git

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

// parseStatus reads `git status --porcelain` (v1) output.
func parseStatus(output string) ([]FileStatus, error) {
	var files []FileStatus
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 4 {
			continue
		}
		code := line[:2]
		rawPath := line[3:]

		var from string
		if before, after, ok := strings.Cut(rawPath, " -> "); ok {
			from = unquote(before)
			rawPath = after
		}

		fs := FileStatus{Path: unquote(rawPath), Status: classify(code)}
		if fs.Status == StatusRenamed {
			fs.From = from
		}
		files = append(files, fs)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan git status: %w", err)
	}
	return files, nil
}

func classify(code string) StatusKind {
	x, y := code[0], code[1]
	switch {
	case code == "??":
		return StatusCreated
	case x == 'R' || y == 'R':
		return StatusRenamed
	case x == 'D' || y == 'D':
		return StatusDeleted
	case x == 'A' || y == 'A':
		return StatusCreated
	default:
		return StatusModified
	}
}

func unquote(p string) string {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "\"") {
		if decoded, err := strconv.Unquote(p); err == nil {
			return decoded
		}
	}
	return p
}

// parseLog reads records produced by the %x1f/%x1e format used in Log.
func parseLog(output string) []Commit {
	var commits []Commit
	for _, record := range strings.Split(output, recordSep) {
		record = strings.TrimLeft(record, "\n")
		if record == "" {
			continue
		}
		fields := strings.Split(record, fieldSep)
		if len(fields) < 5 {
			continue
		}
		commits = append(commits, Commit{
			Hash:      fields[0],
			ShortHash: ShortHash(fields[0]),
			Message:   fields[1],
			Author:    fields[2],
			Date:      fields[3],
			Refs:      strings.TrimSpace(fields[4]),
		})
	}
	return commits
}

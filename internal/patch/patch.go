// Package patch builds standalone single-hunk patches that git apply can
// take against the index.
package patch

import (
	"bytes"
	"fmt"

	"repodeck/internal/diff"
	"repodeck/internal/errors"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
)

// Synthesize wraps one hunk in a file-pair header for path. Hunk lines are
// written verbatim; nothing is escaped or rewritten. A hunk that does not
// form a valid patch is reported as a validation error.
func Synthesize(path string, h diff.Hunk) ([]byte, error) {
	if path == "" {
		return nil, errors.ValidationError("path is required", nil)
	}
	if len(h.Lines) == 0 {
		return nil, errors.ValidationError("hunk has no lines", nil)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "diff --git a/%s b/%s\n", path, path)
	fmt.Fprintf(&buf, "--- a/%s\n", path)
	fmt.Fprintf(&buf, "+++ b/%s\n", path)
	buf.WriteString(h.Text())

	doc := buf.Bytes()
	if err := Validate(doc); err != nil {
		return nil, errors.ValidationError(fmt.Sprintf("invalid hunk for %s", path), err.Error())
	}
	return doc, nil
}

// Validate checks that doc is a well-formed unified diff touching exactly
// one text file with exactly one hunk.
func Validate(doc []byte) error {
	files, _, err := gitdiff.Parse(bytes.NewReader(doc))
	if err != nil {
		return fmt.Errorf("parsing patch: %w", err)
	}
	if len(files) != 1 {
		return fmt.Errorf("patch touches %d files, want 1", len(files))
	}

	f := files[0]
	if f.IsBinary {
		return fmt.Errorf("binary patches are not supported")
	}
	if len(f.TextFragments) != 1 {
		return fmt.Errorf("patch has %d hunks, want 1", len(f.TextFragments))
	}
	if err := f.TextFragments[0].Validate(); err != nil {
		return fmt.Errorf("invalid hunk: %w", err)
	}
	return nil
}

package squash

import (
	"fmt"
	"slices"

	"repodeck/internal/diff"
	"repodeck/internal/errors"
)

// Step is the caller-visible stage of a squash workflow
type Step string

const (
	StepSelectFiles  Step = "select-files"
	StepSelectHunks  Step = "select-hunks"
	StepSelectCommit Step = "select-commit"
	StepConfirm      Step = "confirm"
)

// Selection is the state of one squash workflow. It is a value: every
// transition returns a new Selection and leaves the receiver unchanged.
type Selection struct {
	Step         Step        `json:"step"`
	RepoPath     string      `json:"repoPath"`
	FilePath     string      `json:"filePath,omitempty"`
	Hunks        []diff.Hunk `json:"hunks,omitempty"`
	Selected     []int       `json:"selected,omitempty"`
	WholeFile    bool        `json:"wholeFile"`
	TargetCommit string      `json:"targetCommit,omitempty"`
}

func NewSelection(repoPath string) Selection {
	return Selection{Step: StepSelectFiles, RepoPath: repoPath}
}

// SelectFile switches to path. Hunk selection, cached hunks, the whole-file
// choice and the target are cleared before any diff is fetched.
func (s Selection) SelectFile(path string) (Selection, error) {
	if path == "" {
		return s, errors.ValidationError("file path is required", nil)
	}
	return Selection{Step: StepSelectFiles, RepoPath: s.RepoPath, FilePath: path}, nil
}

// DiffLoaded records the hunks fetched for the selected file
func (s Selection) DiffLoaded(path string, hunks []diff.Hunk) (Selection, error) {
	if s.FilePath == "" {
		return s, errors.ValidationError("no file selected", nil)
	}
	if path != s.FilePath {
		return s, errors.ValidationError(fmt.Sprintf("diff is for %s, selected file is %s", path, s.FilePath), nil)
	}
	next := Selection{
		Step:     StepSelectHunks,
		RepoPath: s.RepoPath,
		FilePath: s.FilePath,
		Hunks:    slices.Clone(hunks),
	}
	return next, nil
}

// ToggleHunk adds index i to the selection, or removes it if present
func (s Selection) ToggleHunk(i int) (Selection, error) {
	if s.Step != StepSelectHunks {
		return s, errors.ValidationError(fmt.Sprintf("cannot select hunks during %s", s.Step), nil)
	}
	if i < 0 || i >= len(s.Hunks) {
		return s, errors.ValidationError(fmt.Sprintf("hunk index %d out of range", i), map[string]int{"hunks": len(s.Hunks)})
	}

	next := s
	if pos := slices.Index(s.Selected, i); pos >= 0 {
		next.Selected = slices.Delete(slices.Clone(s.Selected), pos, pos+1)
	} else {
		next.Selected = append(slices.Clone(s.Selected), i)
	}
	next.WholeFile = false
	return next, nil
}

// ChooseWholeFile drops any hunk selection in favour of the entire file
func (s Selection) ChooseWholeFile() (Selection, error) {
	if s.Step != StepSelectHunks {
		return s, errors.ValidationError(fmt.Sprintf("cannot choose whole file during %s", s.Step), nil)
	}
	next := s
	next.Selected = nil
	next.WholeFile = true
	return next, nil
}

func (s Selection) ProceedToCommit() (Selection, error) {
	if s.Step != StepSelectHunks {
		return s, errors.ValidationError(fmt.Sprintf("cannot pick a commit during %s", s.Step), nil)
	}
	if len(s.Selected) == 0 && !s.WholeFile {
		return s, errors.ValidationError("select at least one hunk or the whole file", nil)
	}
	next := s
	next.Step = StepSelectCommit
	return next, nil
}

func (s Selection) SelectCommit(hash string) (Selection, error) {
	if s.Step != StepSelectCommit && s.Step != StepConfirm {
		return s, errors.ValidationError(fmt.Sprintf("cannot pick a commit during %s", s.Step), nil)
	}
	if hash == "" {
		return s, errors.ValidationError("target commit is required", nil)
	}
	next := s
	next.TargetCommit = hash
	next.Step = StepConfirm
	return next, nil
}

// Request builds the squash request for the current selection
func (s Selection) Request() (Request, error) {
	if s.FilePath == "" {
		return Request{}, errors.ValidationError("no file selected", nil)
	}
	if s.TargetCommit == "" {
		return Request{}, errors.ValidationError("no target commit selected", nil)
	}

	req := Request{
		RepoPath:     s.RepoPath,
		FilePath:     s.FilePath,
		TargetCommit: s.TargetCommit,
		WholeFile:    s.WholeFile,
	}
	if !s.WholeFile {
		req.Hunks = make([]diff.Hunk, 0, len(s.Selected))
		for _, i := range s.Selected {
			req.Hunks = append(req.Hunks, s.Hunks[i])
		}
	}
	return req, nil
}

// Reset returns to the first step, keeping only the repository
func (s Selection) Reset() Selection {
	return NewSelection(s.RepoPath)
}

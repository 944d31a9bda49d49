package git

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// GoGitBackend reads history in-process with go-git and delegates every
// mutating operation to the embedded ExecBackend.
type GoGitBackend struct {
	*ExecBackend
}

func NewGoGitBackend(exec *ExecBackend) *GoGitBackend {
	return &GoGitBackend{ExecBackend: exec}
}

func (g *GoGitBackend) Log(ctx context.Context, repoPath string, maxCount int) ([]Commit, error) {
	if maxCount <= 0 {
		return nil, fmt.Errorf("max count must be positive")
	}

	repo, err := gogit.PlainOpenWithOptions(repoPath, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	labels, err := decorations(repo, head)
	if err != nil {
		return nil, err
	}

	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	defer iter.Close()

	commits := make([]Commit, 0, maxCount)
	err = iter.ForEach(func(c *object.Commit) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(commits) >= maxCount {
			return storer.ErrStop
		}
		hash := c.Hash.String()
		subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
		commits = append(commits, Commit{
			Hash:      hash,
			ShortHash: ShortHash(hash),
			Message:   subject,
			Author:    c.Author.Name,
			Date:      c.Author.When.Format(time.RFC3339),
			Refs:      strings.Join(labels[c.Hash], ", "),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk history: %w", err)
	}
	return commits, nil
}

// decorations maps commit hashes to ref labels in the spirit of %D:
// "HEAD -> main", "origin/main", "tag: v1".
func decorations(repo *gogit.Repository, head *plumbing.Reference) (map[plumbing.Hash][]string, error) {
	labels := make(map[plumbing.Hash][]string)

	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	defer refs.Close()

	err = refs.ForEach(func(ref *plumbing.Reference) error {
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		name, hash := ref.Name(), ref.Hash()
		switch {
		case name.IsBranch():
			if head.Name() == name {
				return nil
			}
			labels[hash] = append(labels[hash], name.Short())
		case name.IsRemote():
			labels[hash] = append(labels[hash], name.Short())
		case name.IsTag():
			if tag, err := repo.TagObject(hash); err == nil {
				hash = tag.Target
			}
			labels[hash] = append(labels[hash], "tag: "+name.Short())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list refs: %w", err)
	}

	for hash := range labels {
		sort.Strings(labels[hash])
	}

	headLabel := "HEAD"
	if head.Name().IsBranch() {
		headLabel = "HEAD -> " + head.Name().Short()
	}
	labels[head.Hash()] = append([]string{headLabel}, labels[head.Hash()]...)

	return labels, nil
}

// Package gitrepo reads commit history and performs staging/commit
// operations on local repositories. History reads are best-effort: any
// failure surfaces as "no commits" or "no diff", never an error, so a
// misconfigured ticket repo can't take down a reconciliation run.
package gitrepo

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// LogLimit caps how many recent commits are scanned per repository.
const LogLimit = 50

// patchCharLimit caps the patch text returned for a single commit.
const patchCharLimit = 12000

// truncationMarker is appended when a patch hits the character cap.
const truncationMarker = "\n... [diff truncated]"

// Commit is one entry of a repository's history.
type Commit struct {
	Hash    string // full hex hash
	Message string // subject line
}

// Short returns the first 8 characters of the hash, the unit used for
// matching and display.
func (c Commit) Short() string {
	if len(c.Hash) > 8 {
		return c.Hash[:8]
	}
	return c.Hash
}

// RecentCommits returns up to LogLimit commits from the repository at
// path, most recent first. Non-repositories and read failures yield an
// empty list.
func RecentCommits(path string) []Commit {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil
	}
	head, err := repo.Head()
	if err != nil {
		return nil
	}
	// Committer-time order keeps merge-heavy histories reverse-
	// chronological; the default DFS traversal does not.
	iter, err := repo.Log(&git.LogOptions{
		From:  head.Hash(),
		Order: git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < LogLimit {
		c, err := iter.Next()
		if err != nil {
			break
		}
		subject, _, _ := strings.Cut(c.Message, "\n")
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: strings.TrimSpace(subject),
		})
	}
	return commits
}

// CommitPatch returns the patch text for one commit, capped at
// patchCharLimit characters with a truncation marker. Failures yield "".
func CommitPatch(path, hash string) string {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return ""
	}
	commit, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return ""
	}
	tree, err := commit.Tree()
	if err != nil {
		return ""
	}

	// Root commits diff against the empty tree.
	var parentTree *object.Tree
	if commit.NumParents() > 0 {
		parent, err := commit.Parent(0)
		if err != nil {
			return ""
		}
		parentTree, err = parent.Tree()
		if err != nil {
			return ""
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return ""
	}
	patch, err := changes.Patch()
	if err != nil {
		return ""
	}

	text := patch.String()
	if len(text) > patchCharLimit {
		text = text[:patchCharLimit] + truncationMarker
	}
	return text
}

// StageFiles stages the given paths in the repository rooted at repoRoot.
func StageFiles(repoRoot string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return fmt.Errorf("failed to open repository at %s: %w", repoRoot, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	root := wt.Filesystem.Root()
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return fmt.Errorf("path %s is outside repository %s: %w", p, root, err)
		}
		if _, err := wt.Add(filepath.ToSlash(rel)); err != nil {
			return fmt.Errorf("failed to stage %s: %w", rel, err)
		}
	}
	return nil
}

// HasStagedChanges reports whether anything is staged in the repository.
func HasStagedChanges(repoRoot string) bool {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return false
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false
	}
	status, err := wt.Status()
	if err != nil {
		return false
	}
	for _, fs := range status {
		if fs.Staging != git.Unmodified && fs.Staging != git.Untracked {
			return true
		}
	}
	return false
}

// CreateCommit commits the staged changes with the given message. Author
// identity comes from the repository's git configuration.
func CreateCommit(repoRoot, message string) error {
	repo, err := git.PlainOpen(repoRoot)
	if err != nil {
		return fmt.Errorf("failed to open repository at %s: %w", repoRoot, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("failed to open worktree: %w", err)
	}
	if _, err := wt.Commit(message, &git.CommitOptions{}); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// StagedDiff returns the textual diff of staged changes. go-git has no
// index-vs-HEAD textual diff, so this shells out to git; failures yield "".
func StagedDiff(repoRoot string) string {
	cmd := exec.Command("git", "-C", repoRoot, "diff", "--cached")
	out, err := cmd.Output()
	if err != nil {
		return ""
	}
	return string(out)
}

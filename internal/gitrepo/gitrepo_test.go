package gitrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// initTestRepo creates an empty repository in a temp directory.
func initTestRepo(t *testing.T) (string, *git.Worktree) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit: %v", err)
	}
	// CreateCommit reads the author from repository config.
	cfg, err := repo.Config()
	if err != nil {
		t.Fatalf("Config: %v", err)
	}
	cfg.User.Name = "Tester"
	cfg.User.Email = "tester@example.com"
	if err := repo.SetConfig(cfg); err != nil {
		t.Fatalf("SetConfig: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree: %v", err)
	}
	return dir, wt
}

func commitFile(t *testing.T, wt *git.Worktree, dir, name, content, msg string, when time.Time) plumbing.Hash {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := wt.Add(name); err != nil {
		t.Fatalf("Add: %v", err)
	}
	sig := &object.Signature{Name: "Tester", Email: "tester@example.com", When: when}
	hash, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	return hash
}

const sampleDiff = `diff --git a/tickets/local/000001_fix/ISSUE.md b/tickets/local/000001_fix/ISSUE.md
index 1111111..2222222 100644
--- a/tickets/local/000001_fix/ISSUE.md
+++ b/tickets/local/000001_fix/ISSUE.md
@@ -1,4 +1,4 @@
 ---
-status: open
+status: completed
 ---
diff --git a/goals.md b/goals.md
index 3333333..4444444 100644
--- a/goals.md
+++ b/goals.md
@@ -1,2 +1,3 @@
 # Goals
+- Ship the reconciler
+- Close stale tickets
`

func TestParseDiffStats(t *testing.T) {
	stats := ParseDiffStats(sampleDiff)

	if len(stats.Files) != 2 {
		t.Fatalf("Files = %v", stats.Files)
	}
	// Sorted alphabetically.
	if stats.Files[0] != "goals.md" || stats.Files[1] != "tickets/local/000001_fix/ISSUE.md" {
		t.Errorf("Files = %v", stats.Files)
	}
	if stats.Additions != 3 {
		t.Errorf("Additions = %d, want 3", stats.Additions)
	}
	if stats.Deletions != 1 {
		t.Errorf("Deletions = %d, want 1", stats.Deletions)
	}
}

func TestParseDiffStats_Empty(t *testing.T) {
	stats := ParseDiffStats("")
	if len(stats.Files) != 0 || stats.Additions != 0 || stats.Deletions != 0 {
		t.Errorf("ParseDiffStats(empty) = %+v", stats)
	}
}

func TestParseDiffStats_DuplicateHeaders(t *testing.T) {
	diff := "diff --git a/x.md b/x.md\ndiff --git a/x.md b/x.md\n"
	stats := ParseDiffStats(diff)
	if len(stats.Files) != 1 {
		t.Errorf("Files = %v, want deduplicated", stats.Files)
	}
}

func TestCommitShort(t *testing.T) {
	c := Commit{Hash: "0123456789abcdef0123456789abcdef01234567"}
	if c.Short() != "01234567" {
		t.Errorf("Short = %q", c.Short())
	}
	short := Commit{Hash: "abc"}
	if short.Short() != "abc" {
		t.Errorf("Short = %q, want hash returned unchanged", short.Short())
	}
}

func TestRecentCommits_NewestFirstSubjectOnly(t *testing.T) {
	dir, wt := initTestRepo(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	commitFile(t, wt, dir, "a.txt", "one", "First commit", base)
	commitFile(t, wt, dir, "b.txt", "two", "Second commit\n\nWith a body that must not leak.", base.Add(time.Minute))
	commitFile(t, wt, dir, "c.txt", "three", "Third commit", base.Add(2*time.Minute))

	commits := RecentCommits(dir)

	if len(commits) != 3 {
		t.Fatalf("got %d commits", len(commits))
	}
	if commits[0].Message != "Third commit" || commits[2].Message != "First commit" {
		t.Errorf("commits not newest-first: %v", commits)
	}
	if commits[1].Message != "Second commit" {
		t.Errorf("Message = %q, want subject line only", commits[1].Message)
	}
	if len(commits[0].Hash) != 40 {
		t.Errorf("Hash = %q, want full hex hash", commits[0].Hash)
	}
}

func TestRecentCommits_CappedAtLogLimit(t *testing.T) {
	dir, wt := initTestRepo(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < LogLimit+5; i++ {
		commitFile(t, wt, dir, "counter.txt", fmt.Sprintf("tick %d", i),
			fmt.Sprintf("Commit %d", i), base.Add(time.Duration(i)*time.Minute))
	}

	commits := RecentCommits(dir)

	if len(commits) != LogLimit {
		t.Fatalf("got %d commits, want %d", len(commits), LogLimit)
	}
	if commits[0].Message != fmt.Sprintf("Commit %d", LogLimit+4) {
		t.Errorf("commits[0] = %q, want the newest commit", commits[0].Message)
	}
}

func TestCommitPatch_RootCommit(t *testing.T) {
	dir, wt := initTestRepo(t)
	hash := commitFile(t, wt, dir, "readme.md", "hello\n", "Initial commit",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	patch := CommitPatch(dir, hash.String())

	if patch == "" {
		t.Fatal("root commit produced no patch")
	}
	if !strings.Contains(patch, "readme.md") {
		t.Errorf("patch missing file path:\n%s", patch)
	}
	if !strings.Contains(patch, "+hello") {
		t.Errorf("patch missing added line:\n%s", patch)
	}
}

func TestCommitPatch_TruncatedWithMarker(t *testing.T) {
	dir, wt := initTestRepo(t)
	big := strings.Repeat("this line pads the diff well past the cap\n", 400)
	hash := commitFile(t, wt, dir, "big.txt", big, "Add big file",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	patch := CommitPatch(dir, hash.String())

	if !strings.HasSuffix(patch, truncationMarker) {
		t.Fatalf("truncated patch missing marker (len %d)", len(patch))
	}
	if len(patch) != patchCharLimit+len(truncationMarker) {
		t.Errorf("len(patch) = %d, want %d", len(patch), patchCharLimit+len(truncationMarker))
	}
}

func TestStagedChangesAndCommit(t *testing.T) {
	dir, wt := initTestRepo(t)
	commitFile(t, wt, dir, "a.txt", "one", "First commit",
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if HasStagedChanges(dir) {
		t.Fatal("clean repo reported staged changes")
	}
	path := filepath.Join(dir, "b.txt")
	if err := os.WriteFile(path, []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := StageFiles(dir, []string{path}); err != nil {
		t.Fatalf("StageFiles: %v", err)
	}
	if !HasStagedChanges(dir) {
		t.Fatal("staged file not reported")
	}
	if err := CreateCommit(dir, "Second commit"); err != nil {
		t.Fatalf("CreateCommit: %v", err)
	}
	if HasStagedChanges(dir) {
		t.Error("staged changes remain after commit")
	}
	commits := RecentCommits(dir)
	if len(commits) != 2 || commits[0].Message != "Second commit" {
		t.Errorf("history = %v", commits)
	}
}

func TestRecentCommits_NotARepo(t *testing.T) {
	if commits := RecentCommits(t.TempDir()); len(commits) != 0 {
		t.Errorf("got %d commits from a plain directory", len(commits))
	}
}

func TestCommitPatch_NotARepo(t *testing.T) {
	if patch := CommitPatch(t.TempDir(), "abcdef1234567890"); patch != "" {
		t.Errorf("got patch from a plain directory: %q", patch)
	}
}

func TestHasStagedChanges_NotARepo(t *testing.T) {
	if HasStagedChanges(t.TempDir()) {
		t.Error("plain directory reported staged changes")
	}
}

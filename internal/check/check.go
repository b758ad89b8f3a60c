// Package check reconciles ticket state against git commit evidence:
// it narrows each repository's recent history to the commits relevant
// to a ticket, assesses completion, and optionally closes the ticket.
package check

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/christianjann/aipm/internal/gitrepo"
	"github.com/christianjann/aipm/internal/ticket"
)

// Decision is the human's answer to the close prompt for one ticket.
type Decision int

const (
	DecisionSkip Decision = iota
	DecisionClose
	DecisionCloseAndCommit
)

// DecideFunc asks whether to close a ticket. suggestDone carries the
// analysis verdict so the prompt can default accordingly.
type DecideFunc func(t *ticket.Ticket, summary string, suggestDone bool) Decision

// Runner drives a reconciliation pass over candidate tickets. Matcher
// and Analyzer do the per-ticket work; Decide supplies the human
// confirmation. A nil Decide never closes anything.
type Runner struct {
	ProjectRoot string
	Matcher     *Matcher
	Analyzer    *Analyzer
	Decide      DecideFunc
	Render      func(string) string // markdown renderer for summaries, identity if nil
	Out         io.Writer
}

// Candidates filters tickets down to those worth checking: a repository
// is configured and the status is not terminal. A non-empty key keeps
// only that ticket (case-insensitive); a positive limit caps the count.
// Input order is preserved, so the urgency ordering of ticket.LoadAll
// carries through.
func Candidates(tickets []*ticket.Ticket, key string, limit int) []*ticket.Ticket {
	var out []*ticket.Ticket
	for _, t := range tickets {
		if t.Repo == "" || ticket.IsTerminalStatus(t.Status) {
			continue
		}
		if key != "" && !strings.EqualFold(t.Key, key) {
			continue
		}
		out = append(out, t)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// Run checks every candidate ticket and prompts to close the ones whose
// evidence supports it. Per-ticket failures are reported and skipped;
// they never abort the pass.
func (r *Runner) Run(ctx context.Context, key string, limit int) error {
	tickets, err := ticket.LoadAll(r.ProjectRoot)
	if err != nil {
		return fmt.Errorf("loading tickets: %w", err)
	}

	candidates := Candidates(tickets, key, limit)
	if len(candidates) == 0 {
		if key != "" {
			fmt.Fprintf(r.out(), "No checkable ticket found for %q (needs a repo and a non-terminal status).\n", key)
		} else {
			fmt.Fprintln(r.out(), "No tickets with a configured repository to check.")
		}
		return nil
	}

	for _, t := range candidates {
		r.checkOne(ctx, t)
	}
	return nil
}

func (r *Runner) checkOne(ctx context.Context, t *ticket.Ticket) {
	fmt.Fprintf(r.out(), "\n## %s: %s\n", t.Key, t.Title)

	repoPath, ok := r.resolveRepo(t)
	if !ok {
		return
	}

	commits := gitrepo.RecentCommits(repoPath)
	if len(commits) == 0 {
		fmt.Fprintf(r.out(), "No git history at %s, skipping.\n", repoPath)
		return
	}

	rel := r.Matcher.Match(ctx, t, commits)
	patches := make(map[string]string)
	for i, c := range rel.Commits {
		if i >= maxPatchCommits {
			break
		}
		if patch := gitrepo.CommitPatch(repoPath, c.Hash); patch != "" {
			patches[c.Hash] = patch
		}
	}

	analysis := r.Analyzer.Analyze(ctx, t, rel.Commits, patches)

	mode := "Offline/Fallback"
	if analysis.FromInference {
		mode = "Copilot (" + analysis.Model + ")"
	} else if rel.FromInference {
		mode = "Copilot relevance, fallback analysis"
	}

	fmt.Fprintln(r.out(), r.render(analysis.Summary))
	fmt.Fprintf(r.out(), "\nMode: %s\n", mode)

	if r.Decide == nil {
		return
	}
	switch r.Decide(t, analysis.Summary, SuggestsDone(analysis.Summary)) {
	case DecisionClose:
		r.close(t, false)
	case DecisionCloseAndCommit:
		r.close(t, true)
	}
}

// resolveRepo turns a ticket's repo field into a local directory,
// relative paths resolving against the project root. Remote URLs and
// missing directories are skipped, not errors.
func (r *Runner) resolveRepo(t *ticket.Ticket) (string, bool) {
	repo := t.Repo
	if strings.Contains(repo, "://") || strings.HasPrefix(repo, "git@") {
		fmt.Fprintf(r.out(), "Repo %s is a remote URL, skipping (local checkout required).\n", repo)
		return "", false
	}
	if !filepath.IsAbs(repo) {
		repo = filepath.Join(r.ProjectRoot, repo)
	}
	if info, err := os.Stat(repo); err != nil || !info.IsDir() {
		fmt.Fprintf(r.out(), "Repo path %s does not exist, skipping.\n", repo)
		return "", false
	}
	return repo, true
}

// close marks the ticket completed on disk, stages the file, and
// optionally records a commit in the project repository.
func (r *Runner) close(t *ticket.Ticket, commit bool) {
	if err := ticket.UpdateStatus(t.FilePath, "completed"); err != nil {
		log.Warn("could not update ticket", "key", t.Key, "err", err)
		return
	}
	fmt.Fprintf(r.out(), "Marked %s as completed.\n", t.Key)

	if err := gitrepo.StageFiles(r.ProjectRoot, []string{t.FilePath}); err != nil {
		log.Warn("could not stage ticket file", "key", t.Key, "err", err)
		return
	}
	if !commit {
		return
	}
	msg := fmt.Sprintf("AIPM: Marked %s as completed", t.Key)
	if err := gitrepo.CreateCommit(r.ProjectRoot, msg); err != nil {
		log.Warn("could not commit ticket close", "key", t.Key, "err", err)
	} else {
		fmt.Fprintf(r.out(), "Committed: %s\n", msg)
	}
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) render(s string) string {
	if r.Render != nil {
		return r.Render(s)
	}
	return s
}

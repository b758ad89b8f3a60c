package check

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianjann/aipm/internal/ticket"
)

func TestCandidates_FiltersRepoAndTerminalStatus(t *testing.T) {
	tickets := []*ticket.Ticket{
		{Key: "L-000001", Status: "open", Repo: "../app"},
		{Key: "L-000002", Status: "open"}, // no repo
		{Key: "L-000003", Status: "Done", Repo: "../app"},
		{Key: "L-000004", Status: "completed", Repo: "../app"},
		{Key: "L-000005", Status: "in progress", Repo: "../app"},
	}

	got := Candidates(tickets, "", 0)

	require.Len(t, got, 2)
	assert.Equal(t, "L-000001", got[0].Key)
	assert.Equal(t, "L-000005", got[1].Key)
}

func TestCandidates_KeyFilterIsCaseInsensitive(t *testing.T) {
	tickets := []*ticket.Ticket{
		{Key: "L-000001", Status: "open", Repo: "../app"},
		{Key: "L-000002", Status: "open", Repo: "../app"},
	}

	got := Candidates(tickets, "l-000002", 0)

	require.Len(t, got, 1)
	assert.Equal(t, "L-000002", got[0].Key)
}

func TestCandidates_LimitCapsResults(t *testing.T) {
	tickets := []*ticket.Ticket{
		{Key: "L-000001", Status: "open", Repo: "a"},
		{Key: "L-000002", Status: "open", Repo: "b"},
		{Key: "L-000003", Status: "open", Repo: "c"},
	}

	got := Candidates(tickets, "", 2)

	assert.Len(t, got, 2)
}

func TestCandidates_Idempotent(t *testing.T) {
	tickets := []*ticket.Ticket{
		{Key: "L-000001", Status: "open", Repo: "a"},
		{Key: "L-000002", Status: "done", Repo: "b"},
		{Key: "L-000003", Status: "open"},
	}

	once := Candidates(tickets, "", 0)
	twice := Candidates(once, "", 0)

	assert.Equal(t, once, twice)
}

// writeCheckTicket creates a folder-layout ticket under the project root.
func writeCheckTicket(t *testing.T, root, dirname, content string) string {
	t.Helper()
	dir := filepath.Join(root, "tickets", "local", dirname)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, "ISSUE.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_NoCandidatesReportsAndSucceeds(t *testing.T) {
	root := t.TempDir()
	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Matcher: &Matcher{}, Analyzer: &Analyzer{}, Out: &out}

	err := r.Run(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "No tickets with a configured repository")
}

func TestRun_UnknownKeyReportsAndSucceeds(t *testing.T) {
	root := t.TempDir()
	writeCheckTicket(t, root, "000001_thing", "---\nkey: L-000001\ntitle: Thing\nstatus: open\nrepo: ../app\n---\n")

	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Matcher: &Matcher{}, Analyzer: &Analyzer{}, Out: &out}

	err := r.Run(context.Background(), "L-999999", 0)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "L-999999")
}

func TestRun_SkipsRepoWithoutGitHistory(t *testing.T) {
	root := t.TempDir()
	repoDir := filepath.Join(root, "plainrepo")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))
	writeCheckTicket(t, root, "000001_thing",
		"---\nkey: L-000001\ntitle: Thing\nstatus: open\nrepo: plainrepo\n---\n")

	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Matcher: &Matcher{}, Analyzer: &Analyzer{}, Out: &out}

	err := r.Run(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "No git history")
}

func TestRun_SkipsRemoteRepoURL(t *testing.T) {
	root := t.TempDir()
	writeCheckTicket(t, root, "000001_thing",
		"---\nkey: L-000001\ntitle: Thing\nstatus: open\nrepo: https://github.com/owner/app\n---\n")

	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Matcher: &Matcher{}, Analyzer: &Analyzer{}, Out: &out}

	err := r.Run(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "remote URL")
}

func TestRun_SkipsMissingRepoPath(t *testing.T) {
	root := t.TempDir()
	writeCheckTicket(t, root, "000001_thing",
		"---\nkey: L-000001\ntitle: Thing\nstatus: open\nrepo: does-not-exist\n---\n")

	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Matcher: &Matcher{}, Analyzer: &Analyzer{}, Out: &out}

	err := r.Run(context.Background(), "", 0)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "does not exist")
}

func TestRun_ChecksTicketsInUrgencyOrder(t *testing.T) {
	root := t.TempDir()
	// File paths sort sometime < now < week alphabetically by dirname;
	// the horizon ordering must win.
	writeCheckTicket(t, root, "000001_later",
		"---\nkey: L-000001\ntitle: Later\nstatus: open\nhorizon: sometime\nrepo: missing\n---\n")
	writeCheckTicket(t, root, "000002_urgent",
		"---\nkey: L-000002\ntitle: Urgent\nstatus: open\nhorizon: now\nrepo: missing\n---\n")
	writeCheckTicket(t, root, "000003_soon",
		"---\nkey: L-000003\ntitle: Soon\nstatus: open\nhorizon: week\nrepo: missing\n---\n")

	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Matcher: &Matcher{}, Analyzer: &Analyzer{}, Out: &out}

	require.NoError(t, r.Run(context.Background(), "", 0))

	s := out.String()
	urgent := bytes.Index(out.Bytes(), []byte("L-000002"))
	soon := bytes.Index(out.Bytes(), []byte("L-000003"))
	later := bytes.Index(out.Bytes(), []byte("L-000001"))
	require.NotEqual(t, -1, urgent, s)
	assert.Less(t, urgent, soon)
	assert.Less(t, soon, later)
}

func TestRun_CloseDecisionUpdatesTicketFile(t *testing.T) {
	root := t.TempDir()
	repoDir := filepath.Join(root, "plainrepo")
	require.NoError(t, os.MkdirAll(repoDir, 0o755))
	path := writeCheckTicket(t, root, "000001_thing",
		"---\nkey: L-000001\ntitle: Thing\nstatus: open\nrepo: plainrepo\n---\n")

	decided := false
	var out bytes.Buffer
	r := &Runner{
		ProjectRoot: root,
		Matcher:     &Matcher{},
		Analyzer:    &Analyzer{},
		Out:         &out,
		Decide: func(tk *ticket.Ticket, summary string, suggestDone bool) Decision {
			decided = true
			return DecisionClose
		},
	}

	require.NoError(t, r.Run(context.Background(), "", 0))

	// The repo has no git history, so the ticket is skipped before the
	// close prompt ever fires.
	assert.False(t, decided)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: open")
}

func TestRunnerClose_MarksTicketCompleted(t *testing.T) {
	root := t.TempDir()
	path := writeCheckTicket(t, root, "000001_thing",
		"---\nkey: L-000001\ntitle: Thing\nstatus: open\nrepo: plainrepo\n---\n")

	var out bytes.Buffer
	r := &Runner{ProjectRoot: root, Out: &out}
	tk, err := ticket.Load(path)
	require.NoError(t, err)

	r.close(tk, false)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "status: completed")
	assert.Contains(t, out.String(), "Marked L-000001 as completed")
}

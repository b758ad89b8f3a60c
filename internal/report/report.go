// Package report builds horizon-filtered project summaries and the
// project plan, both for interactive display and as generated files.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/horizon"
	"github.com/christianjann/aipm/internal/ticket"
)

// SummaryPeriods are the periods the report command writes a summary for.
var SummaryPeriods = []string{"day", "week", "month", "year"}

// perUserPeriods get an extra per-assignee summary file each.
var perUserPeriods = []string{"week", "month"}

var (
	doneStatuses   = map[string]bool{"done": true, "closed": true, "resolved": true, "complete": true, "completed": true}
	activeStatuses = map[string]bool{"in progress": true, "in review": true, "in development": true, "active": true}
	highPriorities = map[string]bool{"highest": true, "high": true, "critical": true, "urgent": true}
)

// ChatFunc is the optional inference hook for AI-written summaries.
type ChatFunc func(ctx context.Context, prompt string) (string, error)

// Generator produces summaries. With a nil Chat it always takes the
// deterministic path.
type Generator struct {
	ProjectName string
	Chat        ChatFunc
}

// Summary builds a summary for the period and assignee filter, asking
// the inference service first and degrading to the deterministic
// version on any failure. goals and milestones are optional project
// context passed through to the prompt.
func (g *Generator) Summary(ctx context.Context, tickets []*ticket.Ticket, period, user, goals, milestones string) string {
	filtered := FilterByUser(tickets, user)
	if g.Chat != nil {
		if s, err := g.Chat(ctx, summaryPrompt(filtered, period, user, g.ProjectName, goals, milestones)); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return FallbackSummary(filtered, period, user, g.ProjectName, time.Now())
}

// FilterByUser keeps tickets assigned to user; "all" or "" keeps everything.
func FilterByUser(tickets []*ticket.Ticket, user string) []*ticket.Ticket {
	if user == "" || user == "all" {
		return tickets
	}
	var out []*ticket.Ticket
	for _, t := range tickets {
		if strings.EqualFold(t.Assignee, user) {
			out = append(out, t)
		}
	}
	return out
}

func summaryPrompt(tickets []*ticket.Ticket, period, user, projectName, goals, milestones string) string {
	var lines []string
	limit := len(tickets)
	if limit > 50 {
		limit = 50
	}
	for _, t := range tickets[:limit] {
		lines = append(lines, fmt.Sprintf("- [%s] %s (Assignee: %s, Priority: %s)", t.Status, t.Title, t.Assignee, t.Priority))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are an AI project manager for '%s'. Generate a %sly summary report. User filter: %s.\n\n", projectName, period, user)
	b.WriteString("Focus on:\n")
	b.WriteString("1. Key accomplishments in this period\n")
	b.WriteString("2. Current priorities and next tasks\n")
	b.WriteString("3. Progress toward goals\n")
	b.WriteString("4. Risks and blockers\n")
	b.WriteString("5. Recommended focus areas\n\n")
	fmt.Fprintf(&b, "## Goals\n%s\n\n", goals)
	fmt.Fprintf(&b, "## Milestones\n%s\n\n", milestones)
	fmt.Fprintf(&b, "## Tickets\n%s", strings.Join(lines, "\n"))
	return b.String()
}

// FallbackSummary is the deterministic summary: tickets inside the
// period's horizons grouped by status, open work listed per horizon
// with high-priority items first.
func FallbackSummary(tickets []*ticket.Ticket, period, user, projectName string, now time.Time) string {
	relevant := make(map[string]bool)
	for _, h := range horizon.ForPeriod(period) {
		relevant[h] = true
	}
	var filtered []*ticket.Ticket
	for _, t := range tickets {
		h := strings.ToLower(t.Horizon)
		if h == "" {
			h = "sometime"
		}
		if relevant[h] {
			filtered = append(filtered, t)
		}
	}

	var completed, active, remaining []*ticket.Ticket
	for _, t := range filtered {
		status := strings.ToLower(t.Status)
		switch {
		case doneStatuses[status]:
			completed = append(completed, t)
		case activeStatuses[status]:
			active = append(active, t)
		default:
			remaining = append(remaining, t)
		}
	}

	userLabel := user
	if user == "" || user == "all" {
		userLabel = "all users"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s — %s Summary\n\n", projectName, titleCase(period))
	fmt.Fprintf(&b, "_Filter: %s · Period: %s_\n\n", userLabel, period)
	fmt.Fprintf(&b, "## Overview (%d tickets)\n\n", len(filtered))
	if len(active) > 0 {
		fmt.Fprintf(&b, "- **Active:** %d\n", len(active))
	}
	if len(remaining) > 0 {
		fmt.Fprintf(&b, "- **Open:** %d\n", len(remaining))
	}
	if len(completed) > 0 {
		fmt.Fprintf(&b, "- **Completed:** %d\n", len(completed))
	}
	b.WriteString("\n")

	open := append(append([]*ticket.Ticket{}, active...), remaining...)
	sort.SliceStable(open, func(i, j int) bool {
		return horizon.SortKey(open[i].Horizon) < horizon.SortKey(open[j].Horizon)
	})
	byHorizon := make(map[string][]*ticket.Ticket)
	for _, t := range open {
		h := strings.ToLower(t.Horizon)
		if h == "" {
			h = "sometime"
		}
		byHorizon[h] = append(byHorizon[h], t)
	}
	for _, h := range horizon.Horizons {
		group := byHorizon[h]
		if len(group) == 0 || !relevant[h] {
			continue
		}
		fmt.Fprintf(&b, "## %s (%d)\n\n", horizon.Label(h), len(group))
		var high, normal []*ticket.Ticket
		for _, t := range group {
			if highPriorities[strings.ToLower(t.Priority)] {
				high = append(high, t)
			} else {
				normal = append(normal, t)
			}
		}
		for _, t := range high {
			b.WriteString(ticketLine(t, true))
		}
		for _, t := range normal {
			b.WriteString(ticketLine(t, false))
		}
		b.WriteString("\n")
	}

	if len(completed) > 0 {
		fmt.Fprintf(&b, "## Completed (%d)\n\n", len(completed))
		for i, t := range completed {
			if i >= 15 {
				fmt.Fprintf(&b, "- _...and %d more_\n", len(completed)-15)
				break
			}
			fmt.Fprintf(&b, "- ~~%s~~\n", t.Title)
		}
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n") + "\n"
}

func ticketLine(t *ticket.Ticket, high bool) string {
	var parts []string
	if t.Assignee != "" {
		parts = append(parts, t.Assignee)
	}
	if t.Due != "" {
		parts = append(parts, "due "+t.Due)
	}
	suffix := ""
	if len(parts) > 0 {
		suffix = " (" + strings.Join(parts, ", ") + ")"
	}
	status := t.Status
	if status == "" {
		status = "open"
	}
	if high {
		return fmt.Sprintf("- **%s** [%s]%s\n", t.Title, status, suffix)
	}
	return fmt.Sprintf("- %s [%s]%s\n", t.Title, status, suffix)
}

// Plan renders the project plan: every open ticket in urgency order as
// a markdown table, completed work struck through at the end.
func Plan(tickets []*ticket.Ticket, projectName string) string {
	var open, done []*ticket.Ticket
	for _, t := range tickets {
		if doneStatuses[strings.ToLower(t.Status)] {
			done = append(done, t)
		} else {
			open = append(open, t)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		return horizon.SortKey(open[i].Horizon) < horizon.SortKey(open[j].Horizon)
	})

	var b strings.Builder
	fmt.Fprintf(&b, "# %s — Project Plan\n\n", projectName)
	b.WriteString("| Ticket | Assignee | Status | Horizon | Due |\n")
	b.WriteString("|--------|----------|--------|---------|-----|\n")
	for _, t := range open {
		status := t.Status
		if status == "" {
			status = "open"
		}
		h := t.Horizon
		if h == "" {
			h = "sometime"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n", t.Title, t.Assignee, status, h, t.Due)
	}
	b.WriteString("\n")
	if len(done) > 0 {
		fmt.Fprintf(&b, "### Completed (%d)\n\n", len(done))
		for _, t := range done {
			fmt.Fprintf(&b, "- ~~%s~~\n", t.Title)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Write generates the full report set into the configured output
// directory: one summary per period, per-assignee summaries for week
// and month, and the plan. Returns the written file paths.
func Write(projectRoot string, cfg *config.Config, tickets []*ticket.Ticket) ([]string, error) {
	outDir := filepath.Join(projectRoot, cfg.Project.OutputDir)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	name := cfg.Project.Name
	now := time.Now()

	var written []string
	write := func(filename, content string) error {
		path := filepath.Join(outDir, filename)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, period := range SummaryPeriods {
		if err := write("summary_"+period+".md", FallbackSummary(tickets, period, "all", name, now)); err != nil {
			return written, err
		}
	}
	for _, period := range perUserPeriods {
		for _, user := range assignees(tickets) {
			content := FallbackSummary(FilterByUser(tickets, user), period, user, name, now)
			filename := fmt.Sprintf("summary_%s_%s.md", period, ticket.SanitizeName(user, 30))
			if err := write(filename, content); err != nil {
				return written, err
			}
		}
	}
	if err := write("plan.md", Plan(tickets, name)); err != nil {
		return written, err
	}
	return written, nil
}

// assignees returns the sorted set of non-empty assignees.
func assignees(tickets []*ticket.Ticket) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range tickets {
		a := strings.TrimSpace(t.Assignee)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/ticket"
)

var reportTickets = []*ticket.Ticket{
	{Key: "L-000001", Title: "Urgent fix", Status: "open", Horizon: "now", Priority: "high", Assignee: "ada"},
	{Key: "L-000002", Title: "Weekly chore", Status: "in progress", Horizon: "week", Assignee: "ada"},
	{Key: "L-000003", Title: "Shipped feature", Status: "completed", Horizon: "week"},
	{Key: "L-000004", Title: "Next month idea", Status: "open", Horizon: "month", Assignee: "grace"},
	{Key: "L-000005", Title: "Someday maybe", Status: "open", Horizon: "sometime"},
}

func TestFilterByUser(t *testing.T) {
	if got := FilterByUser(reportTickets, "all"); len(got) != len(reportTickets) {
		t.Errorf("all filter dropped tickets: %d", len(got))
	}
	if got := FilterByUser(reportTickets, ""); len(got) != len(reportTickets) {
		t.Errorf("empty filter dropped tickets: %d", len(got))
	}
	got := FilterByUser(reportTickets, "ADA")
	if len(got) != 2 {
		t.Fatalf("user filter = %d tickets, want 2", len(got))
	}
	for _, tk := range got {
		if !strings.EqualFold(tk.Assignee, "ada") {
			t.Errorf("wrong ticket kept: %s", tk.Key)
		}
	}
}

func TestFallbackSummary_FiltersByPeriodHorizons(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	s := FallbackSummary(reportTickets, "week", "all", "Demo", now)

	if !strings.Contains(s, "Urgent fix") {
		t.Error("now-horizon ticket missing from week summary")
	}
	if !strings.Contains(s, "Weekly chore") {
		t.Error("week-horizon ticket missing from week summary")
	}
	if strings.Contains(s, "Next month idea") || strings.Contains(s, "Someday maybe") {
		t.Error("out-of-period tickets leaked into week summary")
	}
	if !strings.Contains(s, "## Overview (3 tickets)") {
		t.Errorf("overview count wrong:\n%s", s)
	}
}

func TestFallbackSummary_HighPriorityBolded(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	s := FallbackSummary(reportTickets, "week", "all", "Demo", now)

	if !strings.Contains(s, "- **Urgent fix**") {
		t.Errorf("high-priority ticket not bolded:\n%s", s)
	}
	if strings.Contains(s, "- **Weekly chore**") {
		t.Error("normal-priority ticket bolded")
	}
}

func TestFallbackSummary_CompletedStruckThrough(t *testing.T) {
	now := time.Date(2025, 6, 11, 12, 0, 0, 0, time.UTC)
	s := FallbackSummary(reportTickets, "all", "all", "Demo", now)

	if !strings.Contains(s, "~~Shipped feature~~") {
		t.Errorf("completed ticket not in completed section:\n%s", s)
	}
}

func TestGeneratorSummary_ChatFirstFallbackOnError(t *testing.T) {
	g := &Generator{
		ProjectName: "Demo",
		Chat: func(ctx context.Context, prompt string) (string, error) {
			return "AI summary text", nil
		},
	}
	if s := g.Summary(context.Background(), reportTickets, "week", "all", "", ""); s != "AI summary text" {
		t.Errorf("Summary = %q, want chat output", s)
	}

	g.Chat = func(ctx context.Context, prompt string) (string, error) {
		return "", errors.New("service down")
	}
	s := g.Summary(context.Background(), reportTickets, "week", "all", "", "")
	if !strings.Contains(s, "# Demo — Week Summary") {
		t.Errorf("fallback summary not used:\n%s", s)
	}
}

func TestPlan_TableAndUrgencyOrder(t *testing.T) {
	s := Plan(reportTickets, "Demo")

	if !strings.Contains(s, "| Ticket | Assignee | Status | Horizon | Due |") {
		t.Error("plan table header missing")
	}
	urgent := strings.Index(s, "Urgent fix")
	month := strings.Index(s, "Next month idea")
	someday := strings.Index(s, "Someday maybe")
	if urgent == -1 || urgent > month || month > someday {
		t.Errorf("plan rows not in urgency order:\n%s", s)
	}
	if !strings.Contains(s, "- ~~Shipped feature~~") {
		t.Error("completed ticket not struck through")
	}
}

func TestWrite_GeneratesReportSet(t *testing.T) {
	root := t.TempDir()
	cfg := config.Default()
	cfg.Project.Name = "Demo"

	written, err := Write(root, &cfg, reportTickets)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	names := make(map[string]bool)
	for _, p := range written {
		names[filepath.Base(p)] = true
		if _, err := os.Stat(p); err != nil {
			t.Errorf("reported path missing on disk: %s", p)
		}
	}
	for _, want := range []string{
		"summary_day.md", "summary_week.md", "summary_month.md", "summary_year.md",
		"summary_week_ada.md", "summary_month_grace.md", "plan.md",
	} {
		if !names[want] {
			t.Errorf("missing %s, got %v", want, written)
		}
	}
}

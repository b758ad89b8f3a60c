package check

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/christianjann/aipm/internal/copilot"
	"github.com/christianjann/aipm/internal/gitrepo"
	"github.com/christianjann/aipm/internal/ticket"
)

// maxPatchCommits bounds how many per-commit diffs are attached to an
// analysis prompt. Relevant sets are usually small; anything beyond
// this is summarized by message alone.
const maxPatchCommits = 3

// ChatModelFunc sends one prompt using an explicit model.
type ChatModelFunc func(ctx context.Context, prompt, model string) (string, error)

// SelectModelFunc picks a replacement model after the configured one is
// rejected by the service. Returning an error aborts reselection.
type SelectModelFunc func(ctx context.Context) (string, error)

// Analysis is the completion assessment for one ticket.
type Analysis struct {
	Summary       string
	Model         string
	FromInference bool
}

// Analyzer produces a completion assessment from the relevant commits.
// When the configured model is rejected, SelectModel (if set) is asked
// for a replacement exactly once; the replacement is remembered for the
// rest of the run.
type Analyzer struct {
	Chat        ChatModelFunc
	Model       string
	SelectModel SelectModelFunc
	Debug       DebugFunc
}

// Analyze assesses whether the relevant commits complete the ticket.
// Inference failures degrade to a deterministic commit listing flagged
// for manual review; they never propagate as errors.
func (a *Analyzer) Analyze(ctx context.Context, t *ticket.Ticket, relevant []gitrepo.Commit, patches map[string]string) Analysis {
	if a.Chat == nil {
		return a.fallback(t, relevant)
	}

	prompt := analysisPrompt(t, relevant, patches)
	if a.Debug != nil {
		a.Debug("Analysis prompt", prompt)
	}

	response, err := a.Chat(ctx, prompt, a.Model)
	if errors.Is(err, copilot.ErrModelUnavailable) && a.SelectModel != nil {
		model, selErr := a.SelectModel(ctx)
		if selErr == nil && model != "" {
			a.Model = model
			response, err = a.Chat(ctx, prompt, a.Model)
		}
	}
	if err != nil || strings.TrimSpace(response) == "" {
		return a.fallback(t, relevant)
	}
	if a.Debug != nil {
		a.Debug("Analysis response", response)
	}

	return Analysis{Summary: strings.TrimSpace(response), Model: a.Model, FromInference: true}
}

// fallback renders a structured summary of the ticket and its matched
// commits, deferring the verdict to a human.
func (a *Analyzer) fallback(t *ticket.Ticket, relevant []gitrepo.Commit) Analysis {
	description := t.Description
	if description == "" {
		description = "(no description)"
	}

	var b strings.Builder
	if len(relevant) == 0 {
		fmt.Fprintf(&b, "**Status**: NOT STARTED\n\n")
	} else {
		fmt.Fprintf(&b, "**Status**: IN PROGRESS\n\n")
	}
	fmt.Fprintf(&b, "**Current status:** %s\n", t.Status)
	fmt.Fprintf(&b, "**Description:** %s\n\n", description)

	if len(relevant) == 0 {
		b.WriteString("No commits matched this ticket's keywords. Manual review recommended.\n")
	} else {
		fmt.Fprintf(&b, "%d commit(s) matched this ticket's keywords:\n\n", len(relevant))
		for _, c := range relevant {
			fmt.Fprintf(&b, "- `%s` %s\n", c.Short(), c.Message)
		}
		b.WriteString("\nAutomated analysis unavailable. Manual review recommended.\n")
	}
	return Analysis{Summary: b.String()}
}

// analysisPrompt asks for a structured completion assessment of the
// ticket against the relevant commits, with diffs attached for the
// first few commits when available.
func analysisPrompt(t *ticket.Ticket, relevant []gitrepo.Commit, patches map[string]string) string {
	var b strings.Builder
	b.WriteString("You are an AI project manager assistant. Assess whether the following ticket has been ")
	b.WriteString("completed based on the relevant git commits.\n\n")
	b.WriteString("Reply in markdown with exactly these sections:\n")
	b.WriteString("- **Status**: one of DONE, IN PROGRESS, NOT STARTED\n")
	b.WriteString("- **Confidence**: high, medium, or low\n")
	b.WriteString("- **Evidence**: which commits support your assessment and why\n")
	b.WriteString("- **Remaining work**: what is left to do, or \"none\"\n\n")
	fmt.Fprintf(&b, "## Ticket %s: %s\n", t.Key, t.Title)
	fmt.Fprintf(&b, "- Status: %s\n", t.Status)
	fmt.Fprintf(&b, "- Description: %s\n\n", t.Description)
	b.WriteString("## Relevant Commits\n")
	for _, c := range relevant {
		fmt.Fprintf(&b, "- %s %s\n", c.Short(), c.Message)
	}
	attached := 0
	for _, c := range relevant {
		patch, ok := patches[c.Hash]
		if !ok || patch == "" || attached >= maxPatchCommits {
			continue
		}
		fmt.Fprintf(&b, "\n### Diff for %s\n```diff\n%s\n```\n", c.Short(), patch)
		attached++
	}
	return b.String()
}

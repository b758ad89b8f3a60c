package check

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/christianjann/aipm/internal/gitrepo"
	"github.com/christianjann/aipm/internal/ticket"
)

// ChatFunc sends one prompt to the inference service. A nil ChatFunc
// means inference is unavailable (offline mode).
type ChatFunc func(ctx context.Context, prompt string) (string, error)

// DebugFunc echoes a prompt or response when debug output is enabled.
type DebugFunc func(title, body string)

// Relevance is the subset of a repository's commits judged relevant to a
// ticket, in original history order. FromInference distinguishes a model
// verdict from the keyword fallback.
type Relevance struct {
	Commits       []gitrepo.Commit
	FromInference bool
}

// hashPattern accepts any 7-40 character hex run. This over-matches
// incidental hex-looking tokens; the intersection with known short
// hashes below is what keeps hallucinated or accidental matches out.
var hashPattern = regexp.MustCompile(`\b[0-9a-f]{7,40}\b`)

// Matcher narrows commit history to the commits relevant to a ticket,
// via inference when available and keyword matching otherwise.
type Matcher struct {
	Chat  ChatFunc
	Debug DebugFunc
}

// Match returns the relevant subset of commits. An inference call that
// succeeds but names no known commits is an explicit "nothing relevant"
// result, not a reason to fall back; only unavailable or unusable
// inference triggers the keyword path.
func (m *Matcher) Match(ctx context.Context, t *ticket.Ticket, commits []gitrepo.Commit) Relevance {
	if m.Chat == nil {
		return m.fallback(t, commits)
	}

	prompt := relevancePrompt(t, commits)
	if m.Debug != nil {
		m.Debug("Relevance prompt", prompt)
	}

	response, err := m.Chat(ctx, prompt)
	if err != nil || strings.TrimSpace(response) == "" {
		return m.fallback(t, commits)
	}
	if m.Debug != nil {
		m.Debug("Relevance response", response)
	}

	return Relevance{
		Commits:       intersectByShortHash(response, commits),
		FromInference: true,
	}
}

// fallback selects commits whose message contains any ticket keyword.
func (m *Matcher) fallback(t *ticket.Ticket, commits []gitrepo.Commit) Relevance {
	keywords := BuildKeywords(t)
	var relevant []gitrepo.Commit
	for _, c := range commits {
		msg := strings.ToLower(c.Message)
		for _, kw := range keywords {
			if strings.Contains(msg, kw) {
				relevant = append(relevant, c)
				break
			}
		}
	}
	return Relevance{Commits: relevant}
}

// intersectByShortHash extracts hash-like tokens from a model response
// and keeps only commits whose short hash was actually in the supplied
// list, preserving history order. Hashes the model invented are dropped.
func intersectByShortHash(response string, commits []gitrepo.Commit) []gitrepo.Commit {
	mentioned := make(map[string]bool)
	for _, match := range hashPattern.FindAllString(strings.ToLower(response), -1) {
		if len(match) > 8 {
			match = match[:8]
		}
		mentioned[match] = true
	}

	var relevant []gitrepo.Commit
	for _, c := range commits {
		if mentioned[c.Short()] {
			relevant = append(relevant, c)
		}
	}
	return relevant
}

// relevancePrompt lists every commit's short hash and message and asks
// for the relevant short hashes only.
func relevancePrompt(t *ticket.Ticket, commits []gitrepo.Commit) string {
	var b strings.Builder
	b.WriteString("You are an AI project manager assistant. Given a ticket and a list of recent git commits, ")
	b.WriteString("identify which commits are relevant to the ticket's task.\n\n")
	b.WriteString("Reply with the short hashes (first 8 chars) of ALL relevant commits, one per line. ")
	b.WriteString("Reply with nothing else. If no commits are relevant, reply with the single word NONE.\n\n")
	fmt.Fprintf(&b, "## Ticket %s: %s\n", t.Key, t.Title)
	fmt.Fprintf(&b, "- Description: %s\n\n", t.Description)
	b.WriteString("## Recent Commits\n")
	for _, c := range commits {
		fmt.Fprintf(&b, "- %s %s\n", c.Short(), c.Message)
	}
	return b.String()
}

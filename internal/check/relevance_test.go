package check

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christianjann/aipm/internal/gitrepo"
	"github.com/christianjann/aipm/internal/ticket"
)

var relevanceCommits = []gitrepo.Commit{
	{Hash: "aaaaaaaa11111111111111111111111111111111", Message: "Implement login flow"},
	{Hash: "bbbbbbbb22222222222222222222222222222222", Message: "Refactor storage layer"},
	{Hash: "cccccccc33333333333333333333333333333333", Message: "Fix login redirect"},
}

func TestMatch_NilChatUsesKeywordFallback(t *testing.T) {
	m := &Matcher{}
	tk := &ticket.Ticket{Key: "L-000001", Title: "Fix login flow"}

	rel := m.Match(context.Background(), tk, relevanceCommits)

	assert.False(t, rel.FromInference)
	require.Len(t, rel.Commits, 2)
	assert.Equal(t, "aaaaaaaa", rel.Commits[0].Short())
	assert.Equal(t, "cccccccc", rel.Commits[1].Short())
}

func TestMatch_KeywordFallbackNoFalsePositives(t *testing.T) {
	m := &Matcher{}
	tk := &ticket.Ticket{Key: "L-000009", Title: "Upgrade billing exporter"}

	rel := m.Match(context.Background(), tk, relevanceCommits)

	assert.Empty(t, rel.Commits, "commits sharing no keyword must not match")
}

func TestMatch_ChatErrorFallsBackToKeywords(t *testing.T) {
	m := &Matcher{
		Chat: func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	tk := &ticket.Ticket{Key: "L-000001", Title: "Fix login flow"}

	rel := m.Match(context.Background(), tk, relevanceCommits)

	assert.False(t, rel.FromInference)
	assert.Len(t, rel.Commits, 2)
}

func TestMatch_SuccessfulEmptyAnswerIsNotFallback(t *testing.T) {
	m := &Matcher{
		Chat: func(ctx context.Context, prompt string) (string, error) {
			return "NONE", nil
		},
	}
	tk := &ticket.Ticket{Key: "L-000001", Title: "Fix login flow"}

	rel := m.Match(context.Background(), tk, relevanceCommits)

	assert.True(t, rel.FromInference, "a successful call naming no commits is a model verdict")
	assert.Empty(t, rel.Commits)
}

func TestMatch_IntersectsResponseWithKnownHashes(t *testing.T) {
	m := &Matcher{
		Chat: func(ctx context.Context, prompt string) (string, error) {
			// One real hash, one hallucinated, one full-length real hash.
			return "aaaaaaaa\ndeadbeef\ncccccccc33333333333333333333333333333333", nil
		},
	}
	tk := &ticket.Ticket{Key: "L-000001", Title: "Fix login flow"}

	rel := m.Match(context.Background(), tk, relevanceCommits)

	assert.True(t, rel.FromInference)
	require.Len(t, rel.Commits, 2)
	assert.Equal(t, "aaaaaaaa", rel.Commits[0].Short(), "history order must be preserved")
	assert.Equal(t, "cccccccc", rel.Commits[1].Short())
}

func TestIntersectByShortHash_DropsHallucinatedHashes(t *testing.T) {
	got := intersectByShortHash("relevant: deadbee, 0123456789abcdef", relevanceCommits)
	assert.Empty(t, got)
}

func TestIntersectByShortHash_TruncatesLongHashes(t *testing.T) {
	got := intersectByShortHash(relevanceCommits[1].Hash, relevanceCommits)
	require.Len(t, got, 1)
	assert.Equal(t, "bbbbbbbb", got[0].Short())
}

func TestIntersectByShortHash_IgnoresShortHexRuns(t *testing.T) {
	// 6-char hex runs are below the extraction threshold.
	got := intersectByShortHash("aaaaaa", relevanceCommits)
	assert.Empty(t, got)
}

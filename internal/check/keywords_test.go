package check

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/christianjann/aipm/internal/ticket"
)

func TestBuildKeywords_StripsStopWordsAndShortTokens(t *testing.T) {
	tk := &ticket.Ticket{
		Key:         "L-000001",
		Title:       "Fix the login flow",
		Description: "Users can not log in with SSO",
	}

	keywords := BuildKeywords(tk)

	assert.Contains(t, keywords, "fix")
	assert.Contains(t, keywords, "login")
	assert.Contains(t, keywords, "flow")
	assert.Contains(t, keywords, "users")
	assert.Contains(t, keywords, "sso")
	assert.NotContains(t, keywords, "the", "stop word must be dropped")
	assert.NotContains(t, keywords, "can", "stop word must be dropped")
	assert.NotContains(t, keywords, "not", "stop word must be dropped")
	assert.NotContains(t, keywords, "in", "short token must be dropped")
}

func TestBuildKeywords_AppendsLowercasedKey(t *testing.T) {
	tk := &ticket.Ticket{Key: "PROJ-42", Title: "Rework caching"}

	keywords := BuildKeywords(tk)

	assert.Equal(t, "proj-42", keywords[len(keywords)-1])
}

func TestBuildKeywords_DedupesPreservingOrder(t *testing.T) {
	tk := &ticket.Ticket{
		Key:         "L-000002",
		Title:       "parser parser rewrite",
		Description: "rewrite parser",
	}

	keywords := BuildKeywords(tk)

	assert.Equal(t, []string{"parser", "rewrite", "l-000002"}, keywords)
}

func TestBuildKeywords_StripsPunctuation(t *testing.T) {
	tk := &ticket.Ticket{Key: "L-000003", Title: "Support (v2) endpoints!"}

	keywords := BuildKeywords(tk)

	assert.Contains(t, keywords, "support")
	assert.Contains(t, keywords, "endpoints")
	assert.NotContains(t, keywords, "(v2)")
}

func TestBuildKeywords_KeepsNonASCIILetters(t *testing.T) {
	tk := &ticket.Ticket{
		Key:         "L-000005",
		Title:       "Müller-Report für die Änderung",
		Description: "日本語のチケット",
	}

	keywords := BuildKeywords(tk)

	assert.Contains(t, keywords, "müller-report")
	assert.Contains(t, keywords, "für")
	assert.Contains(t, keywords, "änderung")
	assert.Contains(t, keywords, "日本語のチケット")
	assert.NotContains(t, keywords, "mller-report", "umlauts must survive token cleaning")
}

func TestBuildKeywords_Deterministic(t *testing.T) {
	tk := &ticket.Ticket{Key: "L-000004", Title: "Stabilize flaky integration suite"}

	first := BuildKeywords(tk)
	second := BuildKeywords(tk)

	assert.Equal(t, first, second)
}

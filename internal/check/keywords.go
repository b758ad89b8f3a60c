package check

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/christianjann/aipm/internal/ticket"
)

// stopWords are common function words excluded from relevance matching.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "this": true,
	"with": true, "from": true, "have": true, "are": true, "was": true,
	"were": true, "been": true, "being": true, "will": true, "would": true,
	"could": true, "should": true, "can": true, "may": true, "not": true,
	"but": true, "all": true, "also": true, "into": true, "over": true,
	"such": true, "than": true, "then": true, "when": true, "what": true,
	"which": true, "where": true, "who": true, "how": true, "has": true,
	"had": true, "its": true, "our": true, "out": true, "use": true,
	"add": true, "new": true, "set": true,
}

// BuildKeywords extracts the relevance-matching vocabulary from a ticket:
// lowercase tokens of 3+ characters from title and description, stripped
// of punctuation (hyphen and underscore survive), stop words removed,
// deduplicated preserving order, with the ticket key always included.
// Deterministic and pure — this is the fallback relevance signal.
func BuildKeywords(t *ticket.Ticket) []string {
	text := strings.ToLower(t.Title + " " + t.Description)

	var words []string
	for _, word := range strings.Fields(text) {
		cleaned := cleanToken(word)
		if utf8.RuneCountInString(cleaned) >= 3 && !stopWords[cleaned] {
			words = append(words, cleaned)
		}
	}
	if t.Key != "" {
		words = append(words, strings.ToLower(t.Key))
	}

	seen := make(map[string]bool, len(words))
	unique := words[:0]
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			unique = append(unique, w)
		}
	}
	return unique
}

// cleanToken strips everything but letters, digits, hyphens and
// underscores. Letters and digits in any script count, so non-English
// ticket text keeps its keywords.
func cleanToken(word string) string {
	var b strings.Builder
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

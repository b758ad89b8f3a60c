package check

import "regexp"

// donePattern matches the Status line of an analysis summary when it
// declares the work done, tolerating markdown emphasis and table pipes
// around the label. It performs no negation handling; "not done" near a
// status line is a known, accepted over-match.
var donePattern = regexp.MustCompile(`(?i)\bstatus\b[*:| ]*\s*done\b`)

// SuggestsDone reports whether an analysis summary declares the ticket
// complete. Used to pick the default answer of the close prompt.
func SuggestsDone(summary string) bool {
	return donePattern.MatchString(summary)
}

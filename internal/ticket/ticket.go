// Package ticket owns the markdown ticket files under tickets/ — parsing
// YAML front matter (with a legacy table-format fallback), rendering the
// canonical file layout, and format-preserving status updates.
package ticket

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/christianjann/aipm/internal/horizon"
)

// Ticket is a parsed ticket file. Known front-matter keys map to fields;
// anything unrecognized is kept in Extra so a rewrite never drops data
// other tooling put there.
type Ticket struct {
	Key      string
	Title    string
	Status   string
	Source   string
	Priority string
	Horizon  string
	Assignee string
	Due      string
	Repo     string
	URL      string
	Summary  string
	Labels   []string
	Extra    map[string]string

	Description string

	// FilePath is where the ticket was loaded from; preserved across rewrites.
	FilePath string
}

// knownKeys are front-matter keys with a dedicated Ticket field.
var knownKeys = map[string]bool{
	"key": true, "title": true, "status": true, "source": true,
	"priority": true, "horizon": true, "assignee": true, "due": true,
	"repo": true, "url": true, "summary": true, "labels": true,
}

// terminalStatuses are statuses that exclude a ticket from reconciliation.
var terminalStatuses = map[string]bool{
	"done": true, "closed": true, "completed": true,
}

// IsTerminalStatus reports whether a status means the ticket is finished.
func IsTerminalStatus(status string) bool {
	return terminalStatuses[strings.ToLower(strings.TrimSpace(status))]
}

// Parse reads a ticket from markdown content. Front matter is preferred;
// unparseable or absent front matter falls back to the legacy table format
// rather than erroring.
func Parse(content string) *Ticket {
	lines := strings.Split(content, "\n")

	if len(lines) > 0 && lines[0] == "---" {
		var fmLines []string
		i := 1
		for i < len(lines) && lines[i] != "---" {
			fmLines = append(fmLines, lines[i])
			i++
		}
		if i < len(lines) {
			var raw map[string]interface{}
			if err := yaml.Unmarshal([]byte(strings.Join(fmLines, "\n")), &raw); err == nil && raw != nil {
				t := fromFrontMatter(raw)
				t.Description = extractDescription(strings.Join(lines[i+1:], "\n"))
				return t
			}
			// Invalid YAML — fall through to legacy parsing.
		}
	}

	return parseLegacy(content)
}

// fromFrontMatter maps a decoded front-matter dict onto a Ticket,
// stringifying scalar values and joining lists the way the legacy
// format stored them.
func fromFrontMatter(raw map[string]interface{}) *Ticket {
	t := &Ticket{Extra: map[string]string{}}
	for k, v := range raw {
		val := stringify(v)
		switch strings.ToLower(k) {
		case "key":
			t.Key = val
		case "title":
			t.Title = val
		case "status":
			t.Status = val
		case "source":
			t.Source = val
		case "priority":
			t.Priority = val
		case "horizon":
			t.Horizon = val
		case "assignee":
			t.Assignee = val
		case "due":
			t.Due = val
		case "repo":
			t.Repo = val
		case "url":
			t.URL = val
		case "summary":
			t.Summary = val
		case "labels":
			if list, ok := v.([]interface{}); ok {
				for _, item := range list {
					t.Labels = append(t.Labels, stringify(item))
				}
			} else if val != "" {
				for _, l := range strings.Split(val, ",") {
					if l = strings.TrimSpace(l); l != "" {
						t.Labels = append(t.Labels, l)
					}
				}
			}
		default:
			t.Extra[k] = val
		}
	}
	return t
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, stringify(item))
		}
		return strings.Join(parts, ", ")
	default:
		return fmt.Sprintf("%v", val)
	}
}

// extractDescription returns the ticket body, stripping the conventional
// "## Description" heading when present.
func extractDescription(body string) string {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "## Description") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "## Description"))
	}
	return trimmed
}

// parseLegacy handles the pre-front-matter ticket layout: an
// "# KEY: Title" heading, a "| **Field** | value |" table, and a
// "## Description" section.
func parseLegacy(content string) *Ticket {
	t := &Ticket{Extra: map[string]string{}}
	lines := strings.Split(content, "\n")

	for _, line := range lines {
		if strings.HasPrefix(line, "# ") {
			heading := strings.TrimSpace(line[2:])
			if key, title, ok := strings.Cut(heading, ": "); ok {
				t.Key, t.Title = key, title
			} else {
				t.Title = heading
			}
		}
		if strings.Contains(line, "| **") && strings.Contains(line, "** |") {
			parts := strings.Split(line, "|")
			if len(parts) >= 3 {
				field := strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(parts[1]), "*")))
				value := strings.TrimSpace(parts[2])
				setField(t, field, value)
			}
		}
	}

	inDesc := false
	var descLines []string
	for _, line := range lines {
		if strings.HasPrefix(line, "## Description") {
			inDesc = true
			continue
		}
		if inDesc {
			if strings.HasPrefix(line, "## ") {
				break
			}
			descLines = append(descLines, line)
		}
	}
	t.Description = strings.TrimSpace(strings.Join(descLines, "\n"))
	return t
}

func setField(t *Ticket, field, value string) {
	switch field {
	case "key":
		t.Key = value
	case "title":
		t.Title = value
	case "status":
		t.Status = value
	case "source":
		t.Source = value
	case "priority":
		t.Priority = value
	case "horizon":
		t.Horizon = value
	case "assignee":
		t.Assignee = value
	case "due":
		t.Due = value
	case "repo":
		t.Repo = value
	case "url":
		t.URL = value
	case "summary":
		t.Summary = value
	case "labels":
		for _, l := range strings.Split(value, ",") {
			if l = strings.TrimSpace(l); l != "" {
				t.Labels = append(t.Labels, l)
			}
		}
	default:
		if t.Extra == nil {
			t.Extra = map[string]string{}
		}
		t.Extra[field] = value
	}
}

// frontMatter fixes the on-disk field order so that rewriting a ticket
// touches only the fields that actually changed.
type frontMatter struct {
	Key      string            `yaml:"key"`
	Title    string            `yaml:"title"`
	Status   string            `yaml:"status"`
	Source   string            `yaml:"source,omitempty"`
	Priority string            `yaml:"priority,omitempty"`
	Horizon  string            `yaml:"horizon,omitempty"`
	Assignee string            `yaml:"assignee,omitempty"`
	Due      string            `yaml:"due,omitempty"`
	Repo     string            `yaml:"repo,omitempty"`
	URL      string            `yaml:"url,omitempty"`
	Summary  string            `yaml:"summary,omitempty"`
	Labels   []string          `yaml:"labels,omitempty"`
	Extra    map[string]string `yaml:",inline"`
}

// Render produces the canonical ticket file content: YAML front matter
// in fixed field order followed by the description section.
func (t *Ticket) Render() (string, error) {
	fm := frontMatter{
		Key:      t.Key,
		Title:    t.Title,
		Status:   t.Status,
		Source:   t.Source,
		Priority: t.Priority,
		Horizon:  t.Horizon,
		Assignee: t.Assignee,
		Due:      t.Due,
		Repo:     t.Repo,
		URL:      t.URL,
		Summary:  t.Summary,
		Labels:   t.Labels,
	}
	if len(t.Extra) > 0 {
		fm.Extra = t.Extra
	}

	data, err := yaml.Marshal(fm)
	if err != nil {
		return "", fmt.Errorf("failed to marshal ticket front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(data)
	b.WriteString("---\n")
	if t.Description != "" {
		b.WriteString("\n## Description\n\n")
		b.WriteString(t.Description)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Load reads and parses a ticket file.
func Load(path string) (*Ticket, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ticket: %w", err)
	}
	t := Parse(string(data))
	t.FilePath = path
	return t, nil
}

// LoadAll parses every ticket file under <root>/tickets and returns them
// sorted by horizon urgency (most urgent first). A missing tickets
// directory yields an empty slice.
func LoadAll(projectRoot string) ([]*Ticket, error) {
	ticketsDir := filepath.Join(projectRoot, "tickets")
	if _, err := os.Stat(ticketsDir); err != nil {
		return nil, nil
	}

	var paths []string
	err := filepath.WalkDir(ticketsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".md" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan tickets directory: %w", err)
	}
	sort.Strings(paths)

	tickets := make([]*Ticket, 0, len(paths))
	for _, p := range paths {
		t, err := Load(p)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}

	sort.SliceStable(tickets, func(i, j int) bool {
		return horizon.SortKey(tickets[i].Horizon) < horizon.SortKey(tickets[j].Horizon)
	})
	return tickets, nil
}

// UpdateStatus rewrites a ticket file changing only its status field.
// Every other field (including unknown front-matter keys) and the file's
// trailing-newline convention are preserved.
func UpdateStatus(path, newStatus string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read ticket: %w", err)
	}
	original := string(data)
	endsWithNewline := strings.HasSuffix(original, "\n")

	t := Parse(original)
	t.Status = newStatus

	content, err := t.Render()
	if err != nil {
		return err
	}

	if endsWithNewline && !strings.HasSuffix(content, "\n") {
		content += "\n"
	} else if !endsWithNewline {
		content = strings.TrimRight(content, "\n")
	}

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write ticket: %w", err)
	}
	return nil
}

// Files returns ticket files in a directory, handling both the flat
// legacy layout (NNNN_title.md) and the folder layout (NNNNNN_title/ISSUE.md).
func Files(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".md" {
			files = append(files, filepath.Join(dir, e.Name()))
		} else if e.IsDir() {
			issue := filepath.Join(dir, e.Name(), "ISSUE.md")
			if _, err := os.Stat(issue); err == nil {
				files = append(files, issue)
			}
		}
	}
	sort.Strings(files)
	return files
}

var numberedName = regexp.MustCompile(`^(\d+)_`)

// NextNumber finds the next sequential ticket number in a local tickets
// directory, scanning both flat files and ticket folders.
func NextNumber(dir string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 1
	}
	max := 0
	for _, e := range entries {
		m := numberedName.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		var n int
		fmt.Sscanf(m[1], "%d", &n)
		if n > max {
			max = n
		}
	}
	return max + 1
}

var nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SanitizeName converts a ticket title into a filesystem-safe slug.
func SanitizeName(name string, maxLength int) string {
	s := nonAlnum.ReplaceAllString(name, "_")
	s = strings.Trim(s, "_")
	s = strings.ToLower(s)
	if len(s) > maxLength {
		s = strings.TrimRight(s[:maxLength], "_")
	}
	return s
}

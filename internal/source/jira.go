package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/ticket"
)

// jiraSource fetches issues via Jira's REST search API. Auth comes from
// JIRA_TOKEN (with JIRA_EMAIL for basic auth, bearer otherwise);
// with neither set, requests go out unauthenticated for public
// instances.
type jiraSource struct {
	cfg    config.Source
	client *http.Client
}

const jiraMaxResults = 500

func newJira(cfg config.Source) (*jiraSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("jira source needs a server URL")
	}
	return &jiraSource{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (s *jiraSource) Name() string {
	if s.cfg.Name != "" {
		return s.cfg.Name
	}
	if s.cfg.ProjectKey != "" {
		return s.cfg.ProjectKey
	}
	if u, err := url.Parse(s.cfg.URL); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return "jira"
}

// jql builds the search query: an explicit filter wins, otherwise all
// issues of the configured project, newest-updated first.
func (s *jiraSource) jql() (string, error) {
	if s.cfg.Filter != "" {
		return s.cfg.Filter, nil
	}
	if s.cfg.ProjectKey != "" {
		return fmt.Sprintf("project = %s ORDER BY updated DESC", s.cfg.ProjectKey), nil
	}
	return "", fmt.Errorf("jira source needs either a project_key or a filter")
}

type jiraSearchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string   `json:"summary"`
			Description string   `json:"description"`
			Labels      []string `json:"labels"`
			Status      struct {
				Name string `json:"name"`
			} `json:"status"`
			Assignee struct {
				DisplayName string `json:"displayName"`
			} `json:"assignee"`
			Priority struct {
				Name string `json:"name"`
			} `json:"priority"`
		} `json:"fields"`
	} `json:"issues"`
}

func (s *jiraSource) Fetch(ctx context.Context) ([]*ticket.Ticket, error) {
	jql, err := s.jql()
	if err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(s.cfg.URL, "/") + "/rest/api/2/search"
	query := url.Values{}
	query.Set("jql", jql)
	query.Set("maxResults", fmt.Sprint(jiraMaxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	token := os.Getenv("JIRA_TOKEN")
	email := os.Getenv("JIRA_EMAIL")
	switch {
	case token != "" && email != "":
		req.SetBasicAuth(email, token)
	case token != "":
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jira search: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jira search: unexpected status %s", resp.Status)
	}

	var result jiraSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("jira search: decoding response: %w", err)
	}

	base := strings.TrimRight(s.cfg.URL, "/")
	tickets := make([]*ticket.Ticket, 0, len(result.Issues))
	for _, issue := range result.Issues {
		tickets = append(tickets, &ticket.Ticket{
			Key:         issue.Key,
			Title:       issue.Fields.Summary,
			Status:      issue.Fields.Status.Name,
			Assignee:    issue.Fields.Assignee.DisplayName,
			Priority:    issue.Fields.Priority.Name,
			Labels:      issue.Fields.Labels,
			Description: issue.Fields.Description,
			URL:         base + "/browse/" + issue.Key,
			Source:      "jira",
			Horizon:     "sometime",
		})
	}
	return tickets, nil
}

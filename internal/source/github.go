package source

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/google/go-github/v57/github"

	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/ticket"
)

// gitHubSource fetches issues from one GitHub repository. Pull requests
// come back from the issues API too and are skipped.
type gitHubSource struct {
	cfg    config.Source
	client *github.Client
	owner  string
	repo   string
}

func newGitHub(cfg config.Source) (*gitHubSource, error) {
	owner, repo, err := parseGitHubURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	client := github.NewClient(nil)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		client = client.WithAuthToken(token)
	}
	return &gitHubSource{cfg: cfg, client: client, owner: owner, repo: repo}, nil
}

// parseGitHubURL extracts owner and repo from a repository URL like
// https://github.com/owner/repo or owner/repo, tolerating a .git suffix.
func parseGitHubURL(raw string) (owner, repo string, err error) {
	path := raw
	if u, perr := url.Parse(raw); perr == nil && u.Host != "" {
		path = u.Path
	}
	path = strings.Trim(strings.TrimSuffix(path, ".git"), "/")
	parts := strings.Split(path, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("cannot parse owner/repo from %q", raw)
	}
	return parts[0], parts[1], nil
}

func (s *gitHubSource) Name() string {
	if s.cfg.Name != "" {
		return s.cfg.Name
	}
	return s.owner + "/" + s.repo
}

func (s *gitHubSource) Fetch(ctx context.Context) ([]*ticket.Ticket, error) {
	state := "open"
	if s.cfg.Filter != "" {
		state = s.cfg.Filter
	}
	opts := &github.IssueListByRepoOptions{
		State:       state,
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var tickets []*ticket.Ticket
	for {
		issues, resp, err := s.client.Issues.ListByRepo(ctx, s.owner, s.repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing issues for %s/%s: %w", s.owner, s.repo, err)
		}
		for _, issue := range issues {
			if issue.PullRequestLinks != nil {
				continue
			}
			tickets = append(tickets, s.normalize(issue))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return tickets, nil
}

func (s *gitHubSource) normalize(issue *github.Issue) *ticket.Ticket {
	t := &ticket.Ticket{
		Key:         fmt.Sprintf("#%d", issue.GetNumber()),
		Title:       issue.GetTitle(),
		Status:      issue.GetState(),
		Description: issue.GetBody(),
		URL:         issue.GetHTMLURL(),
		Source:      "github",
		Horizon:     "sometime",
	}
	if issue.Assignee != nil {
		t.Assignee = issue.Assignee.GetLogin()
	}
	for _, label := range issue.Labels {
		t.Labels = append(t.Labels, label.GetName())
	}
	return t
}

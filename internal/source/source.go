// Package source fetches issues from external trackers and normalizes
// them into local tickets.
package source

import (
	"context"
	"fmt"

	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/ticket"
)

// Source is one configured issue tracker.
type Source interface {
	// Name is the human-readable source name, also used as the
	// directory the synced tickets land in.
	Name() string
	// Fetch returns the source's issues normalized into tickets.
	Fetch(ctx context.Context) ([]*ticket.Ticket, error)
}

// New builds a Source from its configuration entry.
func New(cfg config.Source) (Source, error) {
	switch cfg.Type {
	case "github":
		return newGitHub(cfg)
	case "jira":
		return newJira(cfg)
	default:
		return nil, fmt.Errorf("unknown source type %q", cfg.Type)
	}
}

package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/gitrepo"
	"github.com/christianjann/aipm/internal/ticket"
)

// Syncer pulls issues from every configured source into the tickets
// directory. Confirm is asked before staging on top of already-staged
// changes; nil Confirm answers yes.
type Syncer struct {
	ProjectRoot string
	Config      *config.Config
	Confirm     func(prompt string) bool
	Out         io.Writer
}

// Sync fetches every source and writes its tickets under
// tickets/<source-name>/. A failing source is reported and skipped.
func (s *Syncer) Sync(ctx context.Context) error {
	if len(s.Config.Sources) == 0 {
		fmt.Fprintln(s.out(), "No sources configured. Run 'aipm add jira <URL>' or 'aipm add github <URL>' first.")
		return nil
	}

	ticketsDir := filepath.Join(s.ProjectRoot, "tickets")
	if err := os.MkdirAll(ticketsDir, 0o755); err != nil {
		return err
	}

	var written []string
	total := 0
	for _, cfg := range s.Config.Sources {
		src, err := New(cfg)
		if err != nil {
			log.Warn("skipping source", "source", cfg.DisplayName(), "err", err)
			continue
		}
		tickets, err := src.Fetch(ctx)
		if err != nil {
			log.Warn("sync failed", "source", src.Name(), "err", err)
			continue
		}

		sourceDir := filepath.Join(ticketsDir, src.Name())
		if err := os.MkdirAll(sourceDir, 0o755); err != nil {
			log.Warn("cannot create source directory", "dir", sourceDir, "err", err)
			continue
		}
		for _, t := range tickets {
			path, err := writeTicket(t, sourceDir)
			if err != nil {
				log.Warn("cannot write ticket", "key", t.Key, "err", err)
				continue
			}
			written = append(written, path)
			total++
		}
		fmt.Fprintf(s.out(), "  %s: %d tickets synced\n", src.Name(), len(tickets))
	}

	fmt.Fprintf(s.out(), "\nSynced %d tickets from %d source(s).\n", total, len(s.Config.Sources))

	if len(written) == 0 {
		return nil
	}
	if gitrepo.HasStagedChanges(s.ProjectRoot) {
		if s.Confirm != nil && !s.Confirm("There are already staged changes. Stage the synced ticket files too?") {
			fmt.Fprintln(s.out(), "Ticket files not staged. You can stage them manually.")
			return nil
		}
	}
	if err := gitrepo.StageFiles(s.ProjectRoot, written); err != nil {
		log.Warn("could not stage ticket files", "err", err)
		return nil
	}
	fmt.Fprintln(s.out(), "Ticket files staged for commit.")
	return nil
}

// writeTicket renders one ticket into <keyclean>_<title>.md inside dir.
func writeTicket(t *ticket.Ticket, dir string) (string, error) {
	keyClean := strings.NewReplacer("#", "", "/", "_").Replace(t.Key)
	name := fmt.Sprintf("%s_%s.md", keyClean, ticket.SanitizeName(t.Title, 50))
	path := filepath.Join(dir, name)

	content, err := t.Render()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Syncer) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stdout
}

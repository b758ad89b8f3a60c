package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/christianjann/aipm/internal/check"
	"github.com/christianjann/aipm/internal/config"
	"github.com/christianjann/aipm/internal/copilot"
	"github.com/christianjann/aipm/internal/gitrepo"
	"github.com/christianjann/aipm/internal/horizon"
	"github.com/christianjann/aipm/internal/report"
	"github.com/christianjann/aipm/internal/source"
	"github.com/christianjann/aipm/internal/ticket"
	"github.com/christianjann/aipm/internal/ui"
)

// Set via ldflags at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// offlineFlag disables all inference calls for the whole invocation.
var offlineFlag bool

func buildVersion() string {
	if commit == "none" {
		return version
	}
	return fmt.Sprintf("%s (%s, %s)", version, commit, date)
}

func main() {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "aipm",
		Short: "AIPM — The AI Project Manager",
		Long:  "Manage large projects distributed over multiple issue trackers, and reconcile ticket state against git commit evidence.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ui.Init(noColor)
		},
	}

	rootCmd.Version = buildVersion()
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&offlineFlag, "offline", false, "Run all commands offline (no Copilot usage)")

	// Command groups
	rootCmd.AddGroup(
		&cobra.Group{ID: "project", Title: "Project Commands:"},
		&cobra.Group{ID: "ticket", Title: "Ticket Commands:"},
		&cobra.Group{ID: "report", Title: "Reporting Commands:"},
	)

	initC := initCmd()
	initC.GroupID = "project"
	addC := addCmd()
	addC.GroupID = "project"
	syncC := syncCmd()
	syncC.GroupID = "project"
	commitC := commitCmd()
	commitC.GroupID = "project"
	diffC := diffCmd()
	diffC.GroupID = "project"

	ticketC := ticketCmd()
	ticketC.GroupID = "ticket"
	checkC := checkCmd()
	checkC.GroupID = "ticket"

	summaryC := summaryCmd()
	summaryC.GroupID = "report"
	reportC := reportCmd()
	reportC.GroupID = "report"

	rootCmd.AddCommand(initC)
	rootCmd.AddCommand(addC)
	rootCmd.AddCommand(syncC)
	rootCmd.AddCommand(ticketC)
	rootCmd.AddCommand(checkC)
	rootCmd.AddCommand(diffC)
	rootCmd.AddCommand(commitC)
	rootCmd.AddCommand(summaryC)
	rootCmd.AddCommand(reportC)
	rootCmd.AddCommand(modelsCmd())
	rootCmd.AddCommand(completionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// requireProject locates the project root from the working directory
// and loads its configuration.
func requireProject() (string, *config.Config, error) {
	root := config.RootFromCWD()
	if root == "" {
		return "", nil, fmt.Errorf("no AIPM project found: run 'aipm init' first")
	}
	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, err
	}
	return root, cfg, nil
}

// newCopilot builds the inference client, or returns nil in offline
// mode or when the client cannot be constructed.
func newCopilot(cfg *config.Config) *copilot.Client {
	if offlineFlag {
		return nil
	}
	client, err := copilot.New(cfg.BaseURL(), cfg.Model())
	if err != nil {
		ui.Warning(fmt.Sprintf("Copilot unavailable, falling back to offline mode: %v", err))
		return nil
	}
	return client
}

// promptString reads one line from stdin, returning def on empty input.
func promptString(label, def string) string {
	if def != "" {
		fmt.Fprintf(os.Stderr, "%s [%s]: ", ui.Bold(label), def)
	} else {
		fmt.Fprintf(os.Stderr, "%s: ", ui.Bold(label))
	}
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return def
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return def
	}
	return line
}

// promptChoice prompts until the answer is one of choices (or empty,
// which picks def).
func promptChoice(label, def string, choices []string) string {
	allowed := make(map[string]bool, len(choices))
	for _, c := range choices {
		allowed[c] = true
	}
	for {
		answer := strings.ToLower(promptString(fmt.Sprintf("%s (%s)", label, strings.Join(choices, "/")), def))
		if allowed[answer] {
			return answer
		}
		ui.Warning(fmt.Sprintf("Invalid choice %q", answer))
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "init",
		Short:   "Initialize a new AIPM project in the current directory",
		Long:    "Create the project skeleton: tickets/, generated/, milestones.md, goals.md, README.md, and aipm.yaml.",
		Example: "  aipm init",
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}

			if _, err := os.Stat(filepath.Join(cwd, config.FileName)); err == nil {
				ui.Warning(fmt.Sprintf("Project already initialized (%s exists).", config.FileName))
				proceed, err := ui.Confirm("Reinitialize?")
				if err != nil || !proceed {
					return err
				}
			}

			name := promptString("Project name", filepath.Base(cwd))
			description := promptString("Project description", "")

			cfg := config.Default()
			cfg.Project.Name = name
			cfg.Project.Description = description

			for _, dir := range []string{"tickets", cfg.Project.OutputDir} {
				if err := os.MkdirAll(filepath.Join(cwd, dir), 0o755); err != nil {
					return err
				}
				ui.Success("Created " + dir + "/")
			}

			skeleton := map[string]string{
				"milestones.md": fmt.Sprintf("# %s - Milestones\n\n## Upcoming\n\n<!-- Add milestones here -->\n\n## Completed\n\n<!-- Completed milestones will be moved here -->\n", name),
				"goals.md":      fmt.Sprintf("# %s - Goals\n\n## Primary Goals\n\n<!-- Define project goals here -->\n\n## Secondary Goals\n\n<!-- Additional goals -->\n", name),
				"README.md": fmt.Sprintf("# %s\n\n%s\n\n## Structure\n\n"+
					"- `tickets/` - Synced issue tickets from connected sources\n"+
					"- `milestones.md` - Project milestones and timeline\n"+
					"- `goals.md` - Project goals\n"+
					"- `%s/` - Generated reports (plan, summaries)\n"+
					"- `%s` - AIPM configuration\n", name, description, cfg.Project.OutputDir, config.FileName),
			}
			for file, content := range skeleton {
				path := filepath.Join(cwd, file)
				if _, err := os.Stat(path); err == nil {
					continue
				}
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return err
				}
				ui.Success("Created " + file)
			}

			if err := cfg.Save(cwd); err != nil {
				return err
			}
			ui.Success("Created " + config.FileName)

			fmt.Fprintf(os.Stderr, "\n%s\n", ui.Green(fmt.Sprintf("Project '%s' initialized!", name)))
			ui.Detail("Next:", "aipm add jira <URL> or aipm add github <URL>, then aipm sync")
			return nil
		},
	}
}

func addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an issue source to the project",
	}
	cmd.AddCommand(addJiraCmd())
	cmd.AddCommand(addGitHubCmd())
	return cmd
}

func addJiraCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "jira <url>",
		Short:   "Add a Jira project as an issue source",
		Example: "  aipm add jira https://mycompany.atlassian.net/browse/PROJ",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}

			baseURL, projectKey := parseJiraURL(args[0])
			if projectKey == "" {
				projectKey = promptString("Jira project key (e.g., PROJ)", "")
			}

			filter := ""
			if useFilter, _ := ui.Confirm("Want to set a custom JQL filter?"); useFilter {
				filter = promptString("JQL filter", fmt.Sprintf("project = %s ORDER BY updated DESC", projectKey))
			}
			name := promptString("Source name", projectKey)

			for _, existing := range cfg.Sources {
				if existing.Type == "jira" && existing.URL == baseURL && existing.ProjectKey == projectKey {
					ui.Warning("This Jira source is already configured.")
					return nil
				}
			}

			cfg.Sources = append(cfg.Sources, config.Source{
				Type:       "jira",
				URL:        baseURL,
				ProjectKey: projectKey,
				Filter:     filter,
				Name:       name,
			})
			if err := cfg.Save(root); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(root, "tickets", name), 0o755); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Added Jira source: %s (%s, project: %s)", name, baseURL, projectKey))
			return nil
		},
	}
}

// parseJiraURL splits a Jira URL into the server base URL and, when the
// path looks like /browse/KEY or /projects/KEY, the project key.
func parseJiraURL(raw string) (baseURL, projectKey string) {
	baseURL = raw
	rest := raw
	if idx := strings.Index(raw, "://"); idx >= 0 {
		scheme := raw[:idx]
		rest = raw[idx+3:]
		if slash := strings.Index(rest, "/"); slash >= 0 {
			baseURL = scheme + "://" + rest[:slash]
			rest = rest[slash+1:]
		} else {
			baseURL = raw
			rest = ""
		}
	}
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	for i, part := range parts {
		lower := strings.ToLower(part)
		if (lower == "projects" || lower == "browse") && i+1 < len(parts) {
			projectKey = parts[i+1]
			break
		}
	}
	return baseURL, projectKey
}

func addGitHubCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "github <url>",
		Short:   "Add a GitHub repository as an issue source",
		Example: "  aipm add github https://github.com/owner/repo",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}

			path := strings.Trim(strings.TrimSuffix(args[0], ".git"), "/")
			if idx := strings.Index(path, "://"); idx >= 0 {
				path = path[idx+3:]
				if slash := strings.Index(path, "/"); slash >= 0 {
					path = path[slash+1:]
				}
			}
			parts := strings.Split(path, "/")
			if len(parts) < 2 {
				return fmt.Errorf("invalid GitHub URL, expected https://github.com/owner/repo")
			}
			repoName := parts[0] + "/" + parts[1]

			name := promptString("Source name", parts[1])
			filter := promptChoice("Issue state filter", "open", []string{"open", "closed", "all"})

			for _, existing := range cfg.Sources {
				if existing.Type == "github" && existing.ProjectKey == repoName {
					ui.Warning("This GitHub source is already configured.")
					return nil
				}
			}

			cfg.Sources = append(cfg.Sources, config.Source{
				Type:       "github",
				URL:        args[0],
				ProjectKey: repoName,
				Filter:     filter,
				Name:       name,
			})
			if err := cfg.Save(root); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(root, "tickets", name), 0o755); err != nil {
				return err
			}
			ui.Success(fmt.Sprintf("Added GitHub source: %s (%s)", name, repoName))
			return nil
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync issues from all configured sources to the tickets directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}
			spinner := ui.NewSpinner("Syncing sources...")
			syncer := &source.Syncer{
				ProjectRoot: root,
				Config:      cfg,
				Confirm: func(prompt string) bool {
					spinner.Stop()
					ok, err := ui.Confirm(prompt)
					return err == nil && ok
				},
				Out: os.Stdout,
			}
			err = syncer.Sync(cmd.Context())
			spinner.Stop()
			return err
		},
	}
}

func ticketCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ticket",
		Short: "Manage local tickets",
	}
	cmd.AddCommand(ticketAddCmd())
	cmd.AddCommand(ticketListCmd())
	cmd.AddCommand(ticketUpgradeCmd())
	return cmd
}

func ticketAddCmd() *cobra.Command {
	var (
		title       string
		status      string
		priority    string
		assignee    string
		description string
		labels      string
		horizonFlag string
		due         string
		repo        string
	)
	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Create a new local ticket",
		Example: "  aipm ticket add\n  aipm ticket add -t \"Fix login flow\" -p high --horizon week -r ../webapp",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _, err := requireProject()
			if err != nil {
				return err
			}

			localDir := filepath.Join(root, "tickets", "local")
			if err := os.MkdirAll(localDir, 0o755); err != nil {
				return err
			}

			// Interactive prompts only in fully interactive mode (no title flag).
			interactive := title == ""
			if title == "" {
				title = promptString("Ticket title", "")
				if title == "" {
					return fmt.Errorf("ticket title is required")
				}
			}
			if interactive && description == "" {
				description = promptString("Description (optional)", "")
			}
			if priority == "" {
				if interactive {
					priority = promptChoice("Priority", "medium", []string{"critical", "high", "medium", "low"})
				} else {
					priority = "medium"
				}
			}
			if horizonFlag == "" {
				if interactive {
					horizonFlag = promptChoice("Horizon", "sometime", horizon.Horizons)
				} else {
					horizonFlag = "sometime"
				}
			}
			h, err := horizon.Validate(horizonFlag)
			if err != nil {
				return err
			}
			if interactive && due == "" {
				due = promptString("Due date (YYYY-MM-DD, optional)", "")
			}
			if interactive && assignee == "" {
				assignee = promptString("Assignee (optional)", "")
			}
			if interactive && repo == "" {
				repo = promptString("Repo (git URL or local path, optional)", "")
			}
			if due != "" && h == "sometime" {
				h = horizon.InferFromDue(due)
			}

			var labelList []string
			for _, l := range strings.Split(labels, ",") {
				if l = strings.TrimSpace(l); l != "" {
					labelList = append(labelList, l)
				}
			}

			num := ticket.NextNumber(localDir)
			key := fmt.Sprintf("L-%06d", num)
			dirname := fmt.Sprintf("%06d_%s", num, ticket.SanitizeName(title, 50))
			ticketDir := filepath.Join(localDir, dirname)
			if err := os.MkdirAll(ticketDir, 0o755); err != nil {
				return err
			}
			issueFile := filepath.Join(ticketDir, "ISSUE.md")

			t := &ticket.Ticket{
				Key:         key,
				Title:       title,
				Status:      status,
				Priority:    priority,
				Assignee:    assignee,
				Labels:      labelList,
				Description: description,
				Repo:        repo,
				Source:      "local",
				Horizon:     h,
				Due:         due,
			}
			content, err := t.Render()
			if err != nil {
				return err
			}
			if err := os.WriteFile(issueFile, []byte(content), 0o644); err != nil {
				return err
			}

			ui.Success(fmt.Sprintf("Created ticket: %s — %s", key, title))
			ui.Detail("Horizon:", h)
			if due != "" {
				ui.Detail("Due:    ", due)
			}
			ui.Detail("File:   ", filepath.Join("tickets", "local", dirname, "ISSUE.md"))

			if err := gitrepo.StageFiles(root, []string{issueFile}); err != nil {
				ui.Warning(fmt.Sprintf("Could not stage ticket file: %v", err))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Ticket title")
	cmd.Flags().StringVarP(&status, "status", "s", "open", "Ticket status")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority: critical, high, medium, low")
	cmd.Flags().StringVarP(&assignee, "assignee", "a", "", "Assignee")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description")
	cmd.Flags().StringVarP(&labels, "labels", "l", "", "Comma-separated labels")
	cmd.Flags().StringVar(&horizonFlag, "horizon", "", "Time horizon: now, week, next-week, month, year, sometime")
	cmd.Flags().StringVar(&due, "due", "", "Due date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&repo, "repo", "r", "", "Git URL or local path to check task completion against")
	return cmd
}

func ticketListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all local tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _, err := requireProject()
			if err != nil {
				return err
			}
			files := ticket.Files(filepath.Join(root, "tickets", "local"))
			if len(files) == 0 {
				ui.EmptyState("No local tickets found. Use 'aipm ticket add' to create one.")
				return nil
			}
			var rows [][]string
			for _, f := range files {
				t, err := ticket.Load(f)
				if err != nil {
					ui.Warning(fmt.Sprintf("Skipping unreadable ticket %s: %v", f, err))
					continue
				}
				rows = append(rows, []string{t.Key, t.Title, t.Status, t.Horizon, t.Due, t.Priority, t.Assignee})
			}
			ui.Table([]string{"KEY", "TITLE", "STATUS", "HORIZON", "DUE", "PRIORITY", "ASSIGNEE"}, rows)
			return nil
		},
	}
}

func ticketUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Fill in missing fields on local tickets",
		Long:  "Scan local tickets for missing required fields (horizon, priority) and interactively fill them in, inferring the horizon from the due date where possible.",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, _, err := requireProject()
			if err != nil {
				return err
			}
			localDir := filepath.Join(root, "tickets", "local")
			files := ticket.Files(localDir)
			if len(files) == 0 {
				ui.EmptyState("No local tickets found.")
				return nil
			}

			ui.Status(fmt.Sprintf("Scanning %d local ticket(s) for missing fields...", len(files)))

			var staged []string
			upgraded, skipped := 0, 0
			for _, f := range files {
				t, err := ticket.Load(f)
				if err != nil {
					ui.Warning(fmt.Sprintf("Skipping unreadable ticket %s: %v", f, err))
					continue
				}

				var missing []string
				if t.Horizon == "" {
					missing = append(missing, "horizon")
				}
				if t.Priority == "" {
					missing = append(missing, "priority")
				}
				if len(missing) == 0 {
					continue
				}
				if t.Due == "" {
					missing = append(missing, "due")
				}
				if t.Assignee == "" {
					missing = append(missing, "assignee")
				}
				if t.Repo == "" {
					missing = append(missing, "repo")
				}

				fmt.Fprintf(os.Stderr, "%s: %s\n", ui.Bold(t.Key), t.Title)
				ui.Detail("Missing:", strings.Join(missing, ", "))

				proceed, err := ui.Confirm("Update this ticket?")
				if err != nil {
					return err
				}
				if !proceed {
					skipped++
					continue
				}

				for _, field := range missing {
					switch field {
					case "horizon":
						t.Horizon = promptChoice("  Horizon", "sometime", horizon.Horizons)
					case "priority":
						t.Priority = promptChoice("  Priority", "medium", []string{"critical", "high", "medium", "low"})
					case "due":
						t.Due = promptString("  Due date (YYYY-MM-DD, optional)", "")
					case "assignee":
						t.Assignee = promptString("  Assignee (optional)", "")
					case "repo":
						t.Repo = promptString("  Repo (git URL or local path, optional)", "")
					}
				}
				if t.Due != "" && t.Horizon == "sometime" {
					t.Horizon = horizon.InferFromDue(t.Due)
					ui.Detail("Inferred horizon:", t.Horizon)
				}

				content, err := t.Render()
				if err != nil {
					ui.Warning(fmt.Sprintf("Could not render %s: %v", t.Key, err))
					continue
				}
				if err := os.WriteFile(f, []byte(content), 0o644); err != nil {
					ui.Warning(fmt.Sprintf("Could not write %s: %v", f, err))
					continue
				}
				staged = append(staged, f)
				upgraded++
				ui.Success("Updated!")
			}

			if len(staged) > 0 {
				if err := gitrepo.StageFiles(root, staged); err != nil {
					ui.Warning(fmt.Sprintf("Could not stage ticket files: %v", err))
				}
			}
			complete := len(files) - upgraded - skipped
			fmt.Fprintf(os.Stderr, "\n%s %d upgraded, %d skipped, %d already complete.\n", ui.Bold("Done:"), upgraded, skipped, complete)
			return nil
		},
	}
}

func checkCmd() *cobra.Command {
	var (
		limit int
		debug bool
	)
	cmd := &cobra.Command{
		Use:   "check [ticket-key]",
		Short: "Check open tickets against commit evidence and offer to close them",
		Long: `Check each ticket that has a repo configured against the repository's
recent commit history: an AI pass narrows the history to the relevant
commits and assesses completion, with deterministic keyword matching as
the fallback. Tickets whose evidence supports completion can be closed
(and the close committed) after confirmation.`,
		Example: "  aipm check\n  aipm check L-000002\n  aipm check -n 5 --debug",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}
			key := ""
			if len(args) == 1 {
				key = args[0]
			}
			ui.CommandBanner("TICKET CHECK", cfg.Project.Name)

			var debugFn check.DebugFunc
			if debug {
				debugFn = func(title, body string) {
					ui.SectionHeader(title)
					fmt.Fprintln(os.Stderr, body)
				}
			}

			matcher := &check.Matcher{Debug: debugFn}
			analyzer := &check.Analyzer{Model: cfg.Model(), Debug: debugFn}

			if client := newCopilot(cfg); client != nil {
				matcher.Chat = client.Chat
				analyzer.Chat = client.ChatWithModel
				analyzer.SelectModel = func(ctx context.Context) (string, error) {
					ui.Warning(fmt.Sprintf("Model %q was rejected by the service.", analyzer.Model))
					model, err := pickModel(ctx, client)
					if err != nil || model == "" {
						return "", err
					}
					cfg.Copilot.Model = model
					if err := cfg.Save(root); err != nil {
						ui.Warning(fmt.Sprintf("Could not persist model choice: %v", err))
					}
					return model, nil
				}
			} else {
				ui.Info("Running offline: using keyword matching and deterministic summaries.")
			}

			runner := &check.Runner{
				ProjectRoot: root,
				Matcher:     matcher,
				Analyzer:    analyzer,
				Render:      ui.Markdown,
				Out:         os.Stdout,
				Decide: func(t *ticket.Ticket, summary string, suggestDone bool) check.Decision {
					answer, err := ui.CloseTicket(fmt.Sprintf("Mark %s as completed?", t.Key), suggestDone)
					if err != nil {
						return check.DecisionSkip
					}
					switch answer {
					case "yes":
						return check.DecisionClose
					case "commit":
						return check.DecisionCloseAndCommit
					default:
						return check.DecisionSkip
					}
				},
			}
			if err := runner.Run(cmd.Context(), key, limit); err != nil {
				return err
			}
			ui.Notify("aipm", "Ticket check complete")
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Check at most this many tickets (0 = all)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false, "Print Copilot prompts and responses for debugging")
	return cmd
}

// pickModel lists the available models and lets the user choose one.
func pickModel(ctx context.Context, client *copilot.Client) (string, error) {
	spinner := ui.NewSpinner("Fetching available models...")
	models, err := client.ListModels(ctx)
	spinner.Stop()
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}
	if len(models) == 0 {
		return "", fmt.Errorf("no models available")
	}
	items := make([]string, len(models))
	details := make([]string, len(models))
	for i, m := range models {
		items[i] = m.ID
		details[i] = m.Name
	}
	idx, err := ui.Select("Select a model", items, details)
	if err != nil || idx < 0 {
		return "", err
	}
	return models[idx].ID, nil
}

func diffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Summarize changes currently staged for commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}
			diff := gitrepo.StagedDiff(root)
			if strings.TrimSpace(diff) == "" {
				ui.Warning("No staged changes found.")
				ui.Detail("Hint:", "stage changes with 'git add' or 'aipm sync' first")
				return nil
			}

			summary := ""
			if client := newCopilot(cfg); client != nil {
				spinner := ui.NewSpinner("Analyzing staged changes...")
				prompt := diffPrompt(diff, readProjectContext(root))
				response, err := client.Chat(cmd.Context(), prompt)
				spinner.Stop()
				if err == nil && strings.TrimSpace(response) != "" {
					summary = response
				}
			}
			if summary == "" {
				summary = diffSummaryFallback(diff)
			}
			ui.RenderMarkdown(summary)
			return nil
		},
	}
}

// readProjectContext collects goals.md and milestones.md for prompts.
func readProjectContext(root string) string {
	var parts []string
	if goals, err := os.ReadFile(filepath.Join(root, "goals.md")); err == nil {
		parts = append(parts, "## Project Goals\n"+string(goals))
	}
	if milestones, err := os.ReadFile(filepath.Join(root, "milestones.md")); err == nil {
		parts = append(parts, "## Milestones\n"+string(milestones))
	}
	return strings.Join(parts, "\n\n")
}

func diffPrompt(diff, context string) string {
	if len(diff) > 8000 {
		diff = diff[:8000]
	}
	return "You are an AI project manager assistant. Based on the project context and the git diff below, " +
		"provide a concise summary of the changes. Focus on:\n" +
		"1. What tickets/issues were updated\n" +
		"2. Key status changes\n" +
		"3. How these changes relate to project goals and milestones\n" +
		"4. A suggested commit message\n\n" +
		"## Project Context\n" + context + "\n\n" +
		"## Git Diff\n```diff\n" + diff + "\n```"
}

// diffSummaryFallback summarizes a diff from its file list alone.
func diffSummaryFallback(diff string) string {
	stats := gitrepo.ParseDiffStats(diff)

	var b strings.Builder
	b.WriteString("# Staged Changes Summary\n\n")
	fmt.Fprintf(&b, "**Files changed:** %d\n", len(stats.Files))
	fmt.Fprintf(&b, "**Additions:** %d\n", stats.Additions)
	fmt.Fprintf(&b, "**Deletions:** %d\n\n", stats.Deletions)
	b.WriteString("## Files\n\n")
	for _, f := range stats.Files {
		fmt.Fprintf(&b, "- `%s`\n", f)
	}

	var ticketFiles, planFiles []string
	for _, f := range stats.Files {
		if strings.HasPrefix(f, "tickets/") {
			ticketFiles = append(ticketFiles, f)
		}
		if f == "milestones.md" || f == "goals.md" {
			planFiles = append(planFiles, f)
		}
	}
	if len(ticketFiles) > 0 {
		fmt.Fprintf(&b, "\n## Ticket Updates (%d files)\n\n", len(ticketFiles))
		for _, f := range ticketFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}
	if len(planFiles) > 0 {
		b.WriteString("\n## Plan Updates\n\n")
		for _, f := range planFiles {
			fmt.Fprintf(&b, "- `%s`\n", f)
		}
	}
	return b.String()
}

func commitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit",
		Short: "Commit the updated tickets and plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}

			if !gitrepo.HasStagedChanges(root) {
				ui.Info("No staged changes. Looking for AIPM files to stage...")
				var toStage []string
				_ = filepath.WalkDir(filepath.Join(root, "tickets"), func(path string, d os.DirEntry, err error) error {
					if err == nil && !d.IsDir() && strings.HasSuffix(path, ".md") {
						toStage = append(toStage, path)
					}
					return nil
				})
				for _, f := range []string{"milestones.md", "goals.md", config.FileName} {
					p := filepath.Join(root, f)
					if _, err := os.Stat(p); err == nil {
						toStage = append(toStage, p)
					}
				}
				if len(toStage) == 0 {
					ui.Warning("Nothing to commit.")
					return nil
				}
				if err := gitrepo.StageFiles(root, toStage); err != nil {
					return err
				}
				ui.Success(fmt.Sprintf("Staged %d AIPM files.", len(toStage)))
			}

			diff := gitrepo.StagedDiff(root)
			if strings.TrimSpace(diff) == "" {
				ui.Warning("No changes detected in staged files.")
				return nil
			}

			suggested := ""
			if client := newCopilot(cfg); client != nil {
				spinner := ui.NewSpinner("Suggesting a commit message...")
				response, err := client.Chat(cmd.Context(), commitPrompt(diff, cfg.Project.Name))
				spinner.Stop()
				if err == nil && strings.TrimSpace(response) != "" {
					suggested = strings.SplitN(strings.TrimSpace(response), "\n", 2)[0]
				}
			}
			if suggested == "" {
				suggested = commitMessageFallback(diff)
			}

			message := promptString("Commit message", suggested)
			if err := gitrepo.CreateCommit(root, message); err != nil {
				return err
			}
			ui.Success("Committed! " + message)
			return nil
		},
	}
}

func commitPrompt(diff, projectName string) string {
	if len(diff) > 4000 {
		diff = diff[:4000]
	}
	return "Generate a concise, conventional-commit-style commit message for the following changes. " +
		"Use the format: 'type(scope): description'. " +
		"The changes are from an AI project management tool that syncs tickets and plans.\n\n" +
		"Project: " + projectName + "\n\n" +
		"```diff\n" + diff + "\n```"
}

// commitMessageFallback derives a commit message from the changed paths.
func commitMessageFallback(diff string) string {
	stats := gitrepo.ParseDiffStats(diff)

	var ticketFiles, planFiles []string
	for _, f := range stats.Files {
		if strings.HasPrefix(f, "tickets/") {
			ticketFiles = append(ticketFiles, f)
		}
		if f == "milestones.md" || f == "goals.md" {
			planFiles = append(planFiles, f)
		}
	}

	var parts []string
	if len(ticketFiles) > 0 {
		parts = append(parts, fmt.Sprintf("sync %d tickets", len(ticketFiles)))
	}
	if len(planFiles) > 0 {
		parts = append(parts, "update "+strings.Join(planFiles, ", "))
	}
	if len(parts) == 0 {
		parts = append(parts, fmt.Sprintf("update %d files", len(stats.Files)))
	}
	return fmt.Sprintf("chore(aipm): %s [%s]", strings.Join(parts, ", "), time.Now().Format("2006-01-02"))
}

func summaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary [period] [user]",
		Short: "Generate a high-level project summary",
		Long: `Generate a project summary for a period (day, week, month, year, or
all) filtered by assignee ('all' or a username). Uses Copilot when
available and a deterministic horizon-grouped summary otherwise.`,
		Example: "  aipm summary\n  aipm summary month\n  aipm summary week alice",
		Args:    cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}
			period := "week"
			user := "all"
			if len(args) > 0 {
				period = args[0]
			}
			if len(args) > 1 {
				user = args[1]
			}

			tickets, err := ticket.LoadAll(root)
			if err != nil {
				return err
			}
			if len(tickets) == 0 {
				ui.EmptyState("No tickets found. Run 'aipm sync' first.")
				return nil
			}

			gen := &report.Generator{ProjectName: cfg.Project.Name}
			if client := newCopilot(cfg); client != nil {
				gen.Chat = client.Chat
			}

			goals, _ := os.ReadFile(filepath.Join(root, "goals.md"))
			milestones, _ := os.ReadFile(filepath.Join(root, "milestones.md"))

			spinner := ui.NewSpinner(fmt.Sprintf("Generating %s summary for %s...", period, cfg.Project.Name))
			summary := gen.Summary(cmd.Context(), tickets, period, user, string(goals), string(milestones))
			spinner.Stop()

			ui.RenderMarkdown(summary)
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Generate the full report set under the configured output directory",
		Long:  "Write a summary for every period, per-assignee summaries for week and month, and the project plan into the configured output directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, cfg, err := requireProject()
			if err != nil {
				return err
			}
			tickets, err := ticket.LoadAll(root)
			if err != nil {
				return err
			}
			written, err := report.Write(root, cfg, tickets)
			if err != nil {
				return err
			}
			for _, path := range written {
				rel, relErr := filepath.Rel(root, path)
				if relErr != nil {
					rel = path
				}
				ui.Success("Wrote " + rel)
			}
			ui.Detail("Reports:", fmt.Sprintf("%d files in %s/", len(written), cfg.Project.OutputDir))
			return nil
		},
	}
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models available from the inference service",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := requireProject()
			if err != nil {
				return err
			}
			client := newCopilot(cfg)
			if client == nil {
				return fmt.Errorf("models requires Copilot access (omit --offline)")
			}
			spinner := ui.NewSpinner("Fetching available models...")
			models, err := client.ListModels(cmd.Context())
			spinner.Stop()
			if err != nil {
				return err
			}
			if len(models) == 0 {
				ui.EmptyState("No models available.")
				return nil
			}
			var rows [][]string
			for _, m := range models {
				current := ""
				if m.ID == cfg.Model() {
					current = "✓"
				}
				rows = append(rows, []string{m.ID, m.Name, current})
			}
			ui.Table([]string{"ID", "NAME", "CURRENT"}, rows)
			return nil
		},
	}
}

func completionCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "completion [bash|zsh|fish]",
		Short:     "Generate shell completion scripts",
		Long:      "Generate shell completion scripts for bash, zsh, or fish. Output the script to stdout for sourcing in your shell profile.",
		Example:   "  aipm completion bash > ~/.bashrc.d/aipm\n  aipm completion zsh > ~/.zfunc/_aipm\n  aipm completion fish > ~/.config/fish/completions/aipm.fish",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"bash", "zsh", "fish"},
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			default:
				return fmt.Errorf("unsupported shell: %s (use bash, zsh, or fish)", args[0])
			}
		},
	}
}

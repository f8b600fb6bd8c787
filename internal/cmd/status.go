package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/steveyegge/warrig/internal/style"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <agentId>",
	Short: "Show clean/dirty state of an agent's worktree",
	Long: `Show the clean/dirty state of an agent's worktree.

Used as the precondition gate before destructive operations: a dirty
worktree refuses nuke without --force. Does not block on other agents'
operations.

Examples:
  wr status toast
  wr status toast --json`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	agentID := args[0]

	c, err := openCore(cmd.Context())
	if err != nil {
		return err
	}

	handle, err := c.manager.Handle(agentID)
	if err != nil {
		return err
	}
	report, err := c.inspector.Status(cmd.Context(), handle)
	if err != nil {
		return err
	}
	rec, err := c.reg.Get(agentID)
	if err != nil {
		return err
	}

	if statusJSON {
		out := struct {
			AgentID   string   `json:"agent_id"`
			Path      string   `json:"path"`
			Branch    string   `json:"branch"`
			State     string   `json:"state"`
			HeadSHA   string   `json:"head_sha,omitempty"`
			Clean     bool     `json:"clean"`
			Modified  []string `json:"modified,omitempty"`
			Added     []string `json:"added,omitempty"`
			Deleted   []string `json:"deleted,omitempty"`
			Untracked []string `json:"untracked,omitempty"`
		}{
			AgentID:   agentID,
			Path:      handle.Path,
			Branch:    handle.Branch,
			State:     string(rec.State),
			HeadSHA:   rec.HeadSHA,
			Clean:     report.Clean,
			Modified:  report.Modified,
			Added:     report.Added,
			Deleted:   report.Deleted,
			Untracked: report.Untracked,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	title := cases.Title(language.English)
	fmt.Printf("%s %s\n", style.Bold.Render(agentID), style.Dim.Render(handle.Branch))
	fmt.Printf("  State: %s\n", title.String(string(rec.State)))
	if rec.HeadSHA != "" {
		fmt.Printf("  Head:  %s\n", shortSHA(rec.HeadSHA))
	}
	if report.Clean {
		fmt.Printf("  %s clean\n", style.CheckPrefix)
		return nil
	}
	fmt.Printf("  %s dirty: %s\n", style.WarningPrefix, report.Summary())
	for _, f := range report.Files() {
		fmt.Printf("    %s\n", style.Dim.Render(f))
	}
	return nil
}

// shortSHA abbreviates a commit hash for display.
func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/steveyegge/warrig/internal/registry"
	"github.com/steveyegge/warrig/internal/style"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered agent worktrees",
	Long: `List every agent worktree the registry knows about, with its
branch, lifecycle state, and last recorded commit.

Reads only the registry; does not touch the repository. Run reconcile
first if you suspect the registry has drifted.

Examples:
  wr list
  wr list --json`,
	Aliases: []string{"ls"},
	Args:    cobra.NoArgs,
	RunE:    runList,
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	c, err := openCore(cmd.Context())
	if err != nil {
		return err
	}

	records, err := c.reg.List()
	if err != nil {
		return err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].AgentID < records[j].AgentID
	})

	if listJSON {
		type entry struct {
			AgentID string `json:"agent_id"`
			Path    string `json:"path"`
			Branch  string `json:"branch"`
			State   string `json:"state"`
			HeadSHA string `json:"head_sha,omitempty"`
		}
		out := make([]entry, 0, len(records))
		for _, rec := range records {
			out = append(out, entry{
				AgentID: rec.AgentID,
				Path:    rec.Path,
				Branch:  rec.Branch,
				State:   string(rec.State),
				HeadSHA: rec.HeadSHA,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(records) == 0 {
		fmt.Println("No agent worktrees registered")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "AGENT\tSTATE\tBRANCH\tHEAD")
	for _, rec := range records {
		head := "-"
		if rec.HeadSHA != "" {
			head = shortSHA(rec.HeadSHA)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.AgentID, renderState(rec.State), rec.Branch, head)
	}
	return w.Flush()
}

// renderState colors states that need operator attention.
func renderState(s registry.State) string {
	switch s {
	case registry.StateActive:
		return style.Success.Render(string(s))
	case registry.StateDirty:
		return style.Warning.Render(string(s))
	case registry.StateOrphaned:
		return style.Error.Render(string(s))
	default:
		return style.Dim.Render(string(s))
	}
}

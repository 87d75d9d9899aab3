package cmd

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/config"
	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/logging"
)

var statusCmd = &cobra.Command{
	Use:   "status [session]",
	Short: "Show session state",
	Long: `Display the persisted turn state for a session, or a summary table of
all sessions when no session is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var statusJSON bool

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
}

var (
	labelStyle = lipgloss.NewStyle().Bold(true).Width(20)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if len(args) == 0 {
		return statusAll(cmd, cfg, logger)
	}

	session, err := requireSession(cfg, args)
	if err != nil {
		return err
	}

	store, _, cleanup, err := openSession(cfg, logger, session)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	if statusJSON {
		return outputJSON(st)
	}

	render := func(s lipgloss.Style, v string) string {
		if noColor {
			return v
		}
		return s.Render(v)
	}

	fmt.Println(labelStyle.Render("Session:") + string(st.SessionID))
	fmt.Println(labelStyle.Render("Turn count:") + fmt.Sprintf("%d", st.TurnCount))
	fmt.Println(labelStyle.Render("Updated:") + formatTime(st.UpdatedAt))

	blocks := fmt.Sprintf("%d", st.ConsecutiveBlocks)
	if st.ConsecutiveBlocks > 0 {
		blocks = render(warnStyle, blocks)
	}
	fmt.Println(labelStyle.Render("Consecutive blocks:") + blocks)

	if st.LastBlockAt != nil {
		fmt.Println(labelStyle.Render("Last block:") + formatTime(*st.LastBlockAt))
	}
	if len(st.AddressedConcerns) > 0 {
		ids := make([]string, 0, len(st.AddressedConcerns))
		for id := range st.AddressedConcerns {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		fmt.Println(labelStyle.Render("Addressed:") + strings.Join(ids, ", "))
	}
	if auto, reason := st.ShouldAutoApprove(); auto {
		fmt.Println(labelStyle.Render("Auto-approve:") + render(okStyle, reason))
	}
	return nil
}

func statusAll(cmd *cobra.Command, cfg *config.Config, logger *logging.Logger) error {
	ids, err := listSessionIDs(cfg.State.Dir)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No sessions")
		return nil
	}

	type row struct {
		Session string `json:"session_id"`
		Turn    int    `json:"turn_count"`
		Blocks  int    `json:"consecutive_blocks"`
		Updated string `json:"updated_at"`
	}
	var rows []row

	for _, id := range ids {
		store, _, cleanup, err := openSession(cfg, logger, core.SessionID(id))
		if err != nil {
			return err
		}
		st, err := store.Load(cmd.Context())
		cleanup()
		if err != nil {
			return err
		}
		rows = append(rows, row{
			Session: id,
			Turn:    st.TurnCount,
			Blocks:  st.ConsecutiveBlocks,
			Updated: formatTime(st.UpdatedAt),
		})
	}

	if statusJSON {
		return outputJSON(rows)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tTURN\tBLOCKS\tUPDATED")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", r.Session, r.Turn, r.Blocks, r.Updated)
	}
	return w.Flush()
}

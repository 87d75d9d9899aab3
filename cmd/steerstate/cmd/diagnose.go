package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/core"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose <session>",
	Short: "Analyze a session for loop patterns",
	Long: `Examine a session's recent diagnostic events for unhealthy patterns:

  stall              turn counter unchanged across repeated write attempts
  oscillation        rejected writes alternating up and down
  high_failure_rate  most write attempts failing

The session is reported healthy, degraded, or critical accordingly.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiagnose,
}

var diagnoseJSON bool

func init() {
	rootCmd.AddCommand(diagnoseCmd)
	diagnoseCmd.Flags().BoolVar(&diagnoseJSON, "json", false, "Output as JSON")
}

var (
	healthyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	degradedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	criticalStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func runDiagnose(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	session, err := requireSession(cfg, args)
	if err != nil {
		return err
	}

	summarizer, err := newSummarizer(cfg, logger)
	if err != nil {
		return err
	}

	summary, err := summarizer.Summarize(cmd.Context(), session)
	if err != nil {
		return err
	}

	if diagnoseJSON {
		return outputJSON(summary)
	}

	tier := string(summary.Health)
	if !noColor {
		switch summary.Health {
		case core.HealthHealthy:
			tier = healthyStyle.Render(tier)
		case core.HealthDegraded:
			tier = degradedStyle.Render(tier)
		case core.HealthCritical:
			tier = criticalStyle.Render(tier)
		}
	}

	fmt.Println(labelStyle.Render("Session:") + string(summary.SessionID))
	fmt.Println(labelStyle.Render("Health:") + tier)
	fmt.Println(labelStyle.Render("Turn count:") + fmt.Sprintf("%d", summary.TurnCount))
	if summary.Raw.Pattern != core.PatternNone {
		fmt.Println(labelStyle.Render("Pattern:") + string(summary.Raw.Pattern))
		fmt.Println(labelStyle.Render("Confidence:") + fmt.Sprintf("%.2f", summary.Raw.Confidence))
	}
	fmt.Println(labelStyle.Render("Window:") + fmt.Sprintf(
		"%d events, %d attempts, %d failures, %d rejections",
		summary.Raw.WindowSize, summary.Raw.WriteAttempts,
		summary.Raw.WriteFailures, summary.Raw.Rejections))
	fmt.Println()
	fmt.Println(summary.Message)
	return nil
}

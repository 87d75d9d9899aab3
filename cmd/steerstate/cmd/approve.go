package cmd

import (
	"github.com/spf13/cobra"
)

var approveCmd = &cobra.Command{
	Use:   "approve <session>",
	Short: "Record an approved stop",
	Long:  "Record that the loop approved a stop, clearing block tracking for the session.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

func init() {
	rootCmd.AddCommand(approveCmd)
}

func runApprove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

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

	st.RecordApproval()
	if err := store.Save(cmd.Context(), st); err != nil {
		return err
	}

	logger.Info("approval recorded", "session_id", string(session), "turn_count", st.TurnCount)
	return nil
}

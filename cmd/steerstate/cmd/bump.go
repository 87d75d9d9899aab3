package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var bumpCmd = &cobra.Command{
	Use:   "bump <session>",
	Short: "Advance the turn counter",
	Long: `Durably advance a session's turn counter by one, or to an explicit value
with --to. The new value must not regress; the store rejects a lower value
and leaves the persisted state untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: runBump,
}

var bumpTo int

func init() {
	rootCmd.AddCommand(bumpCmd)
	bumpCmd.Flags().IntVar(&bumpTo, "to", -1, "Set the turn counter to an explicit value")
}

func runBump(cmd *cobra.Command, args []string) error {
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

	if cmd.Flags().Changed("to") {
		st.TurnCount = bumpTo
	} else {
		st.IncrementTurn()
	}

	if err := store.Save(cmd.Context(), st); err != nil {
		return err
	}

	logger.Info("turn advanced", "session_id", string(session), "turn_count", st.TurnCount)
	if !quiet {
		fmt.Printf("turn %d\n", st.TurnCount)
	}
	return nil
}

package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/core"
)

var beginCmd = &cobra.Command{
	Use:   "begin [session-id]",
	Short: "Start tracking a new session",
	Long: `Create the durable state record for a new steering session.

The session id is generated unless one is supplied. The id is printed on
stdout so callers can capture it:

  SESSION=$(steerstate begin)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBegin,
}

func init() {
	rootCmd.AddCommand(beginCmd)
}

func runBegin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	session := uuid.NewString()
	if len(args) == 1 {
		session = args[0]
	}

	// Refuse to silently reuse an existing session's state.
	ids, err := listSessionIDs(cfg.State.Dir)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == session {
			return fmt.Errorf("session %q already exists", session)
		}
	}

	store, _, cleanup, err := openSession(cfg, logger, core.SessionID(session))
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	if err := store.Save(cmd.Context(), st); err != nil {
		return err
	}

	logger.Info("session started", "session_id", session, "backend", cfg.State.Backend)
	fmt.Println(session)
	return nil
}

package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/core"
)

var blockCmd = &cobra.Command{
	Use:   "block <session> [consideration-id...]",
	Short: "Record a steering block",
	Long: `Record that the loop blocked a turn, together with the consideration ids
that failed. After three consecutive blocks the session reports that the
next decision should auto-approve, so a strict checker cannot wedge the
loop indefinitely.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBlock,
}

var blockAddressed []string

func init() {
	rootCmd.AddCommand(blockCmd)
	blockCmd.Flags().StringArrayVar(&blockAddressed, "addressed", nil,
		"Mark a previously failed consideration as resolved (id=note, repeatable)")
}

func runBlock(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	session, err := requireSession(cfg, args[:1])
	if err != nil {
		return err
	}
	failedIDs := args[1:]

	store, _, cleanup, err := openSession(cfg, logger, session)
	if err != nil {
		return err
	}
	defer cleanup()

	st, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}

	st.RecordBlock(failedIDs)
	for _, pair := range blockAddressed {
		id, how, ok := strings.Cut(pair, "=")
		if !ok || id == "" {
			return core.ErrValidation(core.CodeInvalidConfig,
				fmt.Sprintf("--addressed %q: want id=note", pair))
		}
		st.MarkConcernAddressed(id, how)
	}
	if err := store.Save(cmd.Context(), st); err != nil {
		return err
	}

	logger.Info("block recorded",
		"session_id", string(session),
		"consecutive_blocks", st.ConsecutiveBlocks,
		"failed_considerations", failedIDs,
	)

	if auto, reason := st.ShouldAutoApprove(); auto && !quiet {
		fmt.Println(reason)
	}
	return nil
}

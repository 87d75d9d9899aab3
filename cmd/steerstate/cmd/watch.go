package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/core"
	"github.com/powersteer/steerstate/internal/events"
	"github.com/powersteer/steerstate/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <session>",
	Short: "Follow a session's diagnostic events",
	Long: `Stream a session's diagnostic journal to stdout as events are appended,
reporting health-tier transitions as they happen. The existing journal is
replayed first. Interrupt with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	session, err := requireSession(cfg, args)
	if err != nil {
		return err
	}

	bus := events.New(256)
	defer bus.Close()
	ch := bus.Subscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := watch.New(cfg.State.Dir, session, bus, logger)
	done := make(chan error, 1)
	go func() { done <- watcher.Run(ctx) }()

	summarizer, err := newSummarizer(cfg, logger)
	if err != nil {
		return err
	}

	var lastHealth core.Health
	for {
		select {
		case <-ctx.Done():
			return <-done
		case evt, ok := <-ch:
			if !ok {
				return <-done
			}
			printEvent(evt)

			summary, err := summarizer.Summarize(ctx, session)
			if err != nil {
				logger.Warn("summarizing session", "error", err.Error())
				continue
			}
			if summary.Health != lastHealth {
				lastHealth = summary.Health
				fmt.Printf("-- health: %s (%s)\n", summary.Health, summary.Message)
			}
		}
	}
}

func printEvent(evt core.DiagnosticEvent) {
	var parts []string
	keys := make([]string, 0, len(evt.Payload))
	for k := range evt.Payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, evt.Payload[k]))
	}

	fmt.Printf("%s %-24s %s\n",
		evt.Time.Local().Format("15:04:05.000"),
		evt.Type,
		strings.Join(parts, " "))
}

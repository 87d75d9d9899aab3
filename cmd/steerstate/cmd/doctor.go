package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/cobra"

	"github.com/powersteer/steerstate/internal/adapters/state"
	"github.com/powersteer/steerstate/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the environment",
	Long: `Verify that the configuration is valid, the state directory is writable,
the configured backend can be opened, and the filesystem has headroom for
durable writes.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// diskFreeWarnBytes is the free-space floor below which doctor warns. State
// files are tiny but a full disk makes every fsync'd write fail.
const diskFreeWarnBytes = 64 << 20

func runDoctor(cmd *cobra.Command, _ []string) error {
	fmt.Println("Checking steerstate environment...")
	fmt.Println()

	allOk := true
	check := func(name string, err error) {
		if err != nil {
			allOk = false
			fmt.Printf("  ✗ %s: %v\n", name, err)
			return
		}
		fmt.Printf("  ✓ %s\n", name)
	}

	cfg, err := loadConfig()
	check("configuration", err)
	if err != nil {
		return fmt.Errorf("environment check failed")
	}

	check("state directory writable", checkWritable(cfg.State.Dir))
	check(fmt.Sprintf("%s backend opens", cfg.State.Backend), checkBackend(cmd, cfg))

	if warn, err := checkDiskSpace(cfg.State.Dir); err != nil {
		fmt.Printf("  ○ disk space: %v (skipped)\n", err)
	} else if warn != "" {
		allOk = false
		fmt.Printf("  ✗ disk space: %s\n", warn)
	} else {
		fmt.Println("  ✓ disk space")
	}

	fmt.Println()
	if !allOk {
		fmt.Println("Some checks failed")
		return fmt.Errorf("environment check failed")
	}
	fmt.Println("All checks passed")
	return nil
}

func checkWritable(stateDir string) error {
	if err := os.MkdirAll(stateDir, 0o750); err != nil {
		return err
	}
	probe := filepath.Join(stateDir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}

// checkBackend opens a throwaway store to surface driver or schema problems.
func checkBackend(cmd *cobra.Command, cfg *config.Config) error {
	opts, err := storeOptions(cfg, nil)
	if err != nil {
		return err
	}
	store, err := state.NewStore(cfg.State.Dir, ".doctor", opts)
	if err != nil {
		return err
	}
	_, loadErr := store.Load(cmd.Context())
	closeErr := state.CloseStore(store)
	_ = os.RemoveAll(state.SessionDir(cfg.State.Dir, ".doctor"))
	if loadErr != nil {
		return loadErr
	}
	return closeErr
}

func checkDiskSpace(stateDir string) (warning string, err error) {
	path, err := filepath.Abs(stateDir)
	if err != nil {
		return "", err
	}
	// Walk up to an existing directory; the state dir may not exist yet.
	for {
		if _, statErr := os.Stat(path); statErr == nil {
			break
		}
		parent := filepath.Dir(path)
		if parent == path {
			break
		}
		path = parent
	}

	usage, err := disk.Usage(path)
	if err != nil {
		return "", err
	}
	if usage.Free < diskFreeWarnBytes {
		return fmt.Sprintf("only %d MiB free on %s (%.1f%% used)",
			usage.Free>>20, path, usage.UsedPercent), nil
	}
	return "", nil
}

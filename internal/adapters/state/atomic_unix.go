//go:build !windows

package state

import (
	"io"
	"os"

	"github.com/google/renameio/v2"
)

// pendingFile is a temp file waiting to atomically replace its target.
type pendingFile interface {
	io.Writer
	Name() string
	Sync() error
	CloseAtomicallyReplace() error
	Cleanup() error
}

// newPendingFile creates a temp file in the target's directory. On Unix
// this uses renameio, which guarantees the rename is atomic because the
// temp file shares the target's filesystem.
func newPendingFile(path string, perm os.FileMode) (pendingFile, error) {
	return renameio.NewPendingFile(path, renameio.WithPermissions(perm))
}

// syncDir forces the directory entry for a completed rename to stable
// storage, so the new name survives power loss.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

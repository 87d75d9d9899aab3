//go:build windows

package state

import (
	"io"
	"os"
	"path/filepath"
)

// pendingFile is a temp file waiting to atomically replace its target.
type pendingFile interface {
	io.Writer
	Name() string
	Sync() error
	CloseAtomicallyReplace() error
	Cleanup() error
}

// windowsPendingFile implements the write-rename pattern manually since
// renameio does not support Windows. Rename is atomic on the same volume.
type windowsPendingFile struct {
	*os.File
	target string
	done   bool
}

func newPendingFile(path string, perm os.FileMode) (pendingFile, error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(perm); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}
	return &windowsPendingFile{File: f, target: path}, nil
}

func (p *windowsPendingFile) CloseAtomicallyReplace() error {
	if err := p.File.Close(); err != nil {
		return err
	}
	if err := os.Rename(p.Name(), p.target); err != nil {
		return err
	}
	p.done = true
	return nil
}

func (p *windowsPendingFile) Cleanup() error {
	if p.done {
		return nil
	}
	p.File.Close()
	return os.Remove(p.Name())
}

// syncDir is a no-op on Windows; directory handles cannot be fsynced.
func syncDir(string) error {
	return nil
}

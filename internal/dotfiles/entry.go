package dotfiles

import (
	"errors"
	"path/filepath"
)

// Ghost entries in the registry (directories that no longer exist) are
// tolerated by audit and fatal for remove.
var (
	ErrMissingDir = errors.New("dotfiles: directory does not exist")
	ErrNotDir     = errors.New("dotfiles: not a directory")
	ErrUnknownOp  = errors.New("dotfiles: unknown operation")
)

// Status of a single managed dotfile.
type Status string

const (
	StatusOK           Status = "ok"
	StatusMissing      Status = "missing"
	StatusInstalled    Status = "installed"
	StatusRemoved      Status = "removed"
	StatusFileConflict Status = "file-conflict"
	StatusLinkConflict Status = "link-conflict"
)

// Entry is one file managed out of a dotfile directory. RelPath is the
// path inside the directory; the link target lives under the home
// directory with a leading dot, so "config/nvim/init.vim" maps to
// ~/.config/nvim/init.vim.
type Entry struct {
	RelPath string
	Dir     string
}

func (e Entry) SourcePath() string {
	return filepath.Join(e.Dir, e.RelPath)
}

func (e Entry) TargetPath(home string) string {
	return filepath.Join(home, "."+e.RelPath)
}

// RelSymlink is the symlink text written at the target: the source
// expressed relative to the target's parent directory.
func (e Entry) RelSymlink(home string) (string, error) {
	return filepath.Rel(filepath.Dir(e.TargetPath(home)), e.SourcePath())
}

// Result pairs an entry with the outcome of an operation.
type Result struct {
	Entry  Entry
	Status Status
}

// Summary aggregates per-entry results for one directory pass.
type Summary struct {
	Results []Result
}

func (s Summary) HasConflicts() bool {
	for _, r := range s.Results {
		if r.Status == StatusFileConflict || r.Status == StatusLinkConflict {
			return true
		}
	}
	return false
}

func (s Summary) HasMissing() bool {
	for _, r := range s.Results {
		if r.Status == StatusMissing {
			return true
		}
	}
	return false
}

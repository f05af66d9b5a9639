package dotfiles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Op selects what a directory pass does to each entry.
type Op string

const (
	OpInstall Op = "install"
	OpRemove  Op = "remove"
	OpAudit   Op = "audit"
)

// Manager applies dotfile operations against a home directory.
type Manager struct {
	Home     string
	Registry Registry
	Force    bool
	DryRun   bool
}

func NewManager(home string) *Manager {
	return &Manager{Home: home, Registry: NewRegistry(home)}
}

// Check reports the current status of one entry without touching the
// filesystem.
func (m *Manager) Check(e Entry) Status {
	target := e.TargetPath(m.Home)
	fi, err := os.Lstat(target)
	if err != nil {
		return StatusMissing
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return StatusFileConflict
	}
	dest, err := os.Readlink(target)
	if err != nil {
		return StatusLinkConflict
	}
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(filepath.Dir(target), dest)
	}
	if filepath.Clean(dest) == filepath.Clean(e.SourcePath()) {
		return StatusOK
	}
	return StatusLinkConflict
}

// Install links one entry into the home directory. Regular files at the
// target are never overwritten; stale links are replaced only under
// Force. DryRun reports the would-be status without writing.
func (m *Manager) Install(e Entry) (Status, error) {
	switch st := m.Check(e); st {
	case StatusOK:
		return StatusOK, nil
	case StatusFileConflict:
		return StatusFileConflict, nil
	case StatusLinkConflict:
		if !m.Force {
			return StatusLinkConflict, nil
		}
		if m.DryRun {
			return StatusInstalled, nil
		}
		if err := os.Remove(e.TargetPath(m.Home)); err != nil {
			return StatusLinkConflict, err
		}
	case StatusMissing:
		if m.DryRun {
			return StatusInstalled, nil
		}
	}

	target := e.TargetPath(m.Home)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return StatusMissing, err
	}
	rel, err := e.RelSymlink(m.Home)
	if err != nil {
		return StatusMissing, err
	}
	if err := os.Symlink(rel, target); err != nil {
		return StatusMissing, err
	}
	log.Debug().Str("target", target).Str("link", rel).Msg("installed")
	return StatusInstalled, nil
}

// Remove unlinks one entry. Only links that point at the managed source
// are removed; conflicts and foreign files stay. Parent directories
// emptied by the removal are cleaned up to the home directory.
func (m *Manager) Remove(e Entry) (Status, error) {
	st := m.Check(e)
	if st != StatusOK {
		return st, nil
	}
	if m.DryRun {
		return StatusRemoved, nil
	}
	target := e.TargetPath(m.Home)
	if err := os.Remove(target); err != nil {
		return st, err
	}
	m.cleanEmptyParents(filepath.Dir(target))
	log.Debug().Str("target", target).Msg("removed")
	return StatusRemoved, nil
}

func (m *Manager) cleanEmptyParents(dir string) {
	home := filepath.Clean(m.Home)
	for {
		dir = filepath.Clean(dir)
		if dir == home || !strings.HasPrefix(dir, home+string(filepath.Separator)) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// ProcessDir discovers a directory and applies op to every entry.
func (m *Manager) ProcessDir(dir string, op Op) (Summary, error) {
	entries, err := Discover(dir)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, e := range entries {
		var st Status
		var err error
		switch op {
		case OpInstall:
			st, err = m.Install(e)
		case OpRemove:
			st, err = m.Remove(e)
		case OpAudit:
			st = m.Check(e)
		default:
			return Summary{}, fmt.Errorf("%w: %s", ErrUnknownOp, op)
		}
		if err != nil {
			return sum, err
		}
		sum.Results = append(sum.Results, Result{Entry: e, Status: st})
	}
	return sum, nil
}

// InstallDirs installs one named directory, or every registered
// directory when dir is empty. Successful non-dry runs register the
// directory.
func (m *Manager) InstallDirs(dir string) (Summary, error) {
	dirs, err := m.targetDirs(dir)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, d := range dirs {
		s, err := m.ProcessDir(d, OpInstall)
		if err != nil {
			return sum, err
		}
		sum.Results = append(sum.Results, s.Results...)
		if !m.DryRun {
			if err := m.Registry.Add(d); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// RemoveDirs removes one named directory, or every registered one, and
// unregisters what it removed. A registered directory that has vanished
// is an error; remove needs the sources to know what to unlink.
func (m *Manager) RemoveDirs(dir string) (Summary, error) {
	dirs, err := m.targetDirs(dir)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, d := range dirs {
		s, err := m.ProcessDir(d, OpRemove)
		if err != nil {
			return sum, err
		}
		sum.Results = append(sum.Results, s.Results...)
		if !m.DryRun {
			if err := m.Registry.Remove(d); err != nil {
				return sum, err
			}
		}
	}
	return sum, nil
}

// AuditDirs reports status for one named directory or every registered
// one. With no registry there is nothing to audit; registered
// directories that no longer exist are skipped.
func (m *Manager) AuditDirs(dir string) (Summary, error) {
	if dir != "" {
		return m.ProcessDir(dir, OpAudit)
	}
	dirs, err := m.Registry.Load()
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	for _, d := range dirs {
		if _, err := os.Stat(d); err != nil {
			log.Warn().Str("dir", d).Msg("registered directory missing, skipped")
			continue
		}
		s, err := m.ProcessDir(d, OpAudit)
		if err != nil {
			return sum, err
		}
		sum.Results = append(sum.Results, s.Results...)
	}
	return sum, nil
}

func (m *Manager) targetDirs(dir string) ([]string, error) {
	if dir != "" {
		return []string{dir}, nil
	}
	return m.Registry.Load()
}

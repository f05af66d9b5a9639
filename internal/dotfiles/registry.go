package dotfiles

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio/v2"
)

const registryName = ".dotfiles.installed"

// Registry tracks which dotfile directories have been installed, one
// absolute path per line.
type Registry struct {
	Path string
}

func NewRegistry(home string) Registry {
	return Registry{Path: filepath.Join(home, registryName)}
}

// Load returns the registered directories. A missing registry is empty.
func (r Registry) Load() ([]string, error) {
	data, err := os.ReadFile(r.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var dirs []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		dirs = append(dirs, line)
	}
	return dirs, nil
}

// Add registers a directory, resolving it to an absolute path and
// deduplicating. The registry file is rewritten atomically.
func (r Registry) Add(dir string) error {
	resolved, err := resolveDir(dir)
	if err != nil {
		return err
	}
	dirs, err := r.Load()
	if err != nil {
		return err
	}
	for _, d := range dirs {
		if d == resolved {
			return nil
		}
	}
	return r.save(append(dirs, resolved))
}

// Remove unregisters a directory. Removing an unknown directory is a
// no-op.
func (r Registry) Remove(dir string) error {
	resolved, err := resolveDir(dir)
	if err != nil {
		return err
	}
	dirs, err := r.Load()
	if err != nil {
		return err
	}
	kept := dirs[:0]
	for _, d := range dirs {
		if d != resolved {
			kept = append(kept, d)
		}
	}
	return r.save(kept)
}

func (r Registry) save(dirs []string) error {
	var b strings.Builder
	for _, d := range dirs {
		b.WriteString(d)
		b.WriteByte('\n')
	}
	return renameio.WriteFile(r.Path, []byte(b.String()), 0o644)
}

func resolveDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	return abs, nil
}

package archiver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var ErrNoMatches = errors.New("archiver: include pattern matched nothing")

// ExpandPattern resolves a glob against the filesystem. A leading ~ is
// the user's home directory; ** crosses directory boundaries. The
// matches come back sorted.
func ExpandPattern(pattern string) ([]string, error) {
	expanded, err := expandTilde(pattern)
	if err != nil {
		return nil, err
	}
	matches, err := doublestar.FilepathGlob(expanded)
	if err != nil {
		return nil, fmt.Errorf("archiver: bad pattern %q: %w", pattern, err)
	}
	sort.Strings(matches)
	return matches, nil
}

func expandTilde(pattern string) (string, error) {
	if pattern != "~" && !strings.HasPrefix(pattern, "~/") {
		return pattern, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, pattern[1:]), nil
}

// ResolveEntryFiles expands one path include entry into concrete source
// files. Directories expand to their files, one level deep unless
// Recurse is set. Latest keeps only the last match in sorted order.
// No matches at all is an error.
func ResolveEntryFiles(e IncludeEntry) ([]string, error) {
	matches, err := ExpandPattern(e.Path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, m)
			continue
		}
		sub, err := dirFiles(m, e.Recurse)
		if err != nil {
			return nil, err
		}
		files = append(files, sub...)
	}
	sort.Strings(files)

	if e.Latest && len(files) > 1 {
		files = files[len(files)-1:]
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoMatches, e.Path)
	}
	return files, nil
}

func dirFiles(dir string, recurse bool) ([]string, error) {
	if !recurse {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		var files []string
		for _, de := range entries {
			if !de.IsDir() {
				files = append(files, filepath.Join(dir, de.Name()))
			}
		}
		return files, nil
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}

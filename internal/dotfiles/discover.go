package dotfiles

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var vcsDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

var ignoreFiles = []string{".gitignore", ".hgignore"}

// Discover walks a dotfile directory and returns the entries it manages,
// sorted by relative path. Version control metadata, anything matched by
// the directory's own ignore files, and top-level dotfiles (the ignore
// files themselves live there) are skipped. Symlinked sources are kept.
func Discover(dir string) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingDir, dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDir, dir)
	}

	patterns, err := loadIgnorePatterns(dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == dir {
			return nil
		}
		rel, err := filepath.Rel(dir, p)
		if err != nil {
			return err
		}
		if d.IsDir() {
			if vcsDirs[d.Name()] || matchesIgnore(patterns, rel) {
				return filepath.SkipDir
			}
			return nil
		}
		// Top-level dotfiles are repository metadata, not payload.
		if !strings.Contains(rel, string(filepath.Separator)) && strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if matchesIgnore(patterns, rel) {
			return nil
		}
		entries = append(entries, Entry{RelPath: rel, Dir: dir})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].RelPath < entries[j].RelPath })
	return entries, nil
}

// loadIgnorePatterns reads .gitignore and .hgignore from the directory
// root. Comments, blank lines, and negations are dropped.
func loadIgnorePatterns(dir string) ([]string, error) {
	var patterns []string
	for _, name := range ignoreFiles {
		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
				continue
			}
			patterns = append(patterns, strings.TrimSuffix(line, "/"))
		}
		err = scanner.Err()
		f.Close()
		if err != nil {
			return nil, err
		}
	}
	return patterns, nil
}

// matchesIgnore reports whether the relative path is excluded. A pattern
// matches the base name, any single path component, or the whole path.
func matchesIgnore(patterns []string, rel string) bool {
	rel = filepath.ToSlash(rel)
	base := path.Base(rel)
	components := strings.Split(rel, "/")
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, base); ok {
			return true
		}
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
		for _, c := range components {
			if ok, _ := doublestar.Match(pat, c); ok {
				return true
			}
		}
	}
	return false
}

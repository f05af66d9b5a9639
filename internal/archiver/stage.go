package archiver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/utilctl/internal/tools"
)

var (
	ErrCollision   = errors.New("archiver: staging name collision")
	ErrMissingFile = errors.New("archiver: source file not found")
	ErrEmptySecret = errors.New("archiver: op reference resolved to nothing")
	ErrSubprocess  = errors.New("archiver: subprocess failed")
)

// Stager copies include entries into a flat staging directory.
type Stager struct {
	Dir    string
	Runner tools.CommandRunner

	staged map[string]bool
}

func NewStager(dir string, runner tools.CommandRunner) *Stager {
	return &Stager{Dir: dir, Runner: runner, staged: make(map[string]bool)}
}

// claim reserves a staging-relative name, creating its directory.
func (s *Stager) claim(subdir, name string) (string, string, error) {
	rel := name
	if subdir != "" {
		rel = subdir + "/" + name
	}
	if s.staged[rel] {
		return "", "", fmt.Errorf("%w: %s", ErrCollision, rel)
	}
	dest := filepath.Join(s.Dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dest), 0o700); err != nil {
		return "", "", err
	}
	s.staged[rel] = true
	return rel, dest, nil
}

// StageFiles flat-copies sources into the staging dir (or a subdir) and
// returns their staging-relative names. Basenames must be unique within
// their destination directory.
func (s *Stager) StageFiles(sources []string, subdir string) ([]string, error) {
	var names []string
	for _, src := range sources {
		info, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, src)
		}
		if info.IsDir() {
			return nil, fmt.Errorf("%w: %s is a directory", ErrMissingFile, src)
		}
		rel, dest, err := s.claim(subdir, filepath.Base(src))
		if err != nil {
			return nil, err
		}
		if err := copyFile(src, dest); err != nil {
			return nil, err
		}
		names = append(names, rel)
	}
	return names, nil
}

// StageOpRef resolves a 1Password reference through `op read` and
// stages it as a file. Line endings are normalized to LF with a single
// trailing newline.
func (s *Stager) StageOpRef(ref, filename, subdir string) (string, error) {
	secret, err := OpRead(s.Runner, ref)
	if err != nil {
		return "", err
	}
	rel, dest, err := s.claim(subdir, filename)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dest, []byte(secret), 0o600); err != nil {
		return "", err
	}
	return rel, nil
}

// Build stages every include entry of one archive and returns the
// staged names in entry order.
func (s *Stager) Build(cfg ArchiveConfig) ([]string, error) {
	var names []string
	for _, e := range cfg.Include {
		if e.IsOpRef() {
			name, err := s.StageOpRef(e.OpRef, e.FileName(), e.Subdir())
			if err != nil {
				return nil, err
			}
			names = append(names, name)
			continue
		}
		files, err := ResolveEntryFiles(e)
		if err != nil {
			return nil, err
		}
		staged, err := s.StageFiles(files, e.Subdir())
		if err != nil {
			return nil, err
		}
		names = append(names, staged...)
	}
	log.Debug().Int("files", len(names)).Str("dir", s.Dir).Msg("staging complete")
	return names, nil
}

// OpRead fetches one secret via the 1Password CLI. The result is LF
// normalized and ends in exactly one newline; empty secrets are errors.
func OpRead(runner tools.CommandRunner, ref string) (string, error) {
	stdout, stderr, code, err := runner.Run("op", "read", ref)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("%w: op read %s (exit %d): %s", ErrSubprocess, ref, code, msg)
	}
	secret := strings.ReplaceAll(string(stdout), "\r\n", "\n")
	secret = strings.TrimRight(secret, "\n")
	if strings.TrimSpace(secret) == "" {
		return "", fmt.Errorf("%w: %s", ErrEmptySecret, ref)
	}
	return secret + "\n", nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

package archiver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/utilctl/internal/tools"
)

const (
	// TimestampLayout names archive revisions: <name>.<ts>.7z.
	TimestampLayout = "20060102_150405"

	outputReadmeName = "README.txt"
)

var (
	ErrOutputDir    = errors.New("archiver: output directory unusable")
	ErrReadmeExists = errors.New("archiver: archive readme already exists")
)

// ListArchives returns the <name>.<ts>.7z revisions in the output
// directory, oldest first. Files with malformed timestamps are ignored.
func ListArchives(outDir, name string) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, err
	}
	prefix := name + "."
	var archives []string
	for _, e := range entries {
		base := e.Name()
		if e.IsDir() || !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ".7z") {
			continue
		}
		ts := strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".7z")
		if _, err := time.ParseInLocation(TimestampLayout, ts, time.UTC); err != nil {
			continue
		}
		archives = append(archives, filepath.Join(outDir, base))
	}
	sort.Strings(archives)
	return archives, nil
}

// FindLatestArchive returns the newest revision, or "" when none exist.
func FindLatestArchive(outDir, name string) (string, error) {
	archives, err := ListArchives(outDir, name)
	if err != nil {
		return "", err
	}
	if len(archives) == 0 {
		return "", nil
	}
	return archives[len(archives)-1], nil
}

// PruneArchives deletes all but the keep newest revisions, along with
// their paired readmes.
func PruneArchives(outDir, name string, keep int) error {
	archives, err := ListArchives(outDir, name)
	if err != nil {
		return err
	}
	if keep >= len(archives) {
		return nil
	}
	for _, a := range archives[:len(archives)-keep] {
		if err := os.Remove(a); err != nil {
			return err
		}
		readme := strings.TrimSuffix(a, ".7z") + ".txt"
		if err := os.Remove(readme); err != nil && !os.IsNotExist(err) {
			return err
		}
		log.Info().Str("archive", filepath.Base(a)).Msg("old revision pruned")
	}
	return nil
}

// ReadmeContent is the per-archive companion text: the description and
// where the password lives.
func ReadmeContent(name, opPasswordURI, description string) string {
	return fmt.Sprintf("# %s Description\n\n%s\n\n# %s Password\n\n%s\n",
		name, strings.TrimRight(description, "\n"), name, opPasswordURI)
}

// WriteArchiveReadme writes <name>.<ts>.txt next to the archive. An
// existing file for the same timestamp is an error.
func WriteArchiveReadme(outDir, name, ts, opPasswordURI, description string, dryRun bool) error {
	path := filepath.Join(outDir, fmt.Sprintf("%s.%s.txt", name, ts))
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrReadmeExists, path)
	}
	if dryRun {
		return nil
	}
	return renameio.WriteFile(path, []byte(ReadmeContent(name, opPasswordURI, description)), 0o644)
}

// WriteOutputReadme maintains the top-level README.txt, normalized to a
// single trailing newline. It reports whether the file changed; dry
// runs report without writing.
func WriteOutputReadme(outDir, content string, dryRun bool) (bool, error) {
	normalized := strings.TrimRight(content, "\n") + "\n"
	path := filepath.Join(outDir, outputReadmeName)
	existing, err := os.ReadFile(path)
	if err == nil && string(existing) == normalized {
		return false, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if dryRun {
		return true, nil
	}
	if err := renameio.WriteFile(path, []byte(normalized), 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// CheckOutputDir verifies the output directory exists, is a directory,
// and is writable.
func CheckOutputDir(outDir string) error {
	info, err := os.Stat(outDir)
	if err != nil {
		return fmt.Errorf("%w: %s does not exist", ErrOutputDir, outDir)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrOutputDir, outDir)
	}
	probe, err := os.CreateTemp(outDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s is not writable", ErrOutputDir, outDir)
	}
	probe.Close()
	os.Remove(probe.Name())
	return nil
}

// PublishParams carries everything one archive revision needs.
type PublishParams struct {
	Name          string
	OutDir        string
	Password      string
	StagingDir    string
	StagedNames   []string
	Timestamp     string
	OpPasswordURI string
	Description   string
	KeepRevisions int
	DryRun        bool
	ForceUpdate   bool
	// Runner executes 7zz with the staging dir as working directory.
	Runner tools.CommandRunner
}

// Publish builds and rotates one archive revision. When the previous
// revision's manifest and readme both match the current content the
// publish is skipped entirely. Returns whether anything was (or, for
// dry runs, would have been) published.
func Publish(p PublishParams) (bool, error) {
	current, err := BuildManifest(p.StagingDir, p.StagedNames)
	if err != nil {
		return false, err
	}

	if !p.ForceUpdate {
		latest, err := FindLatestArchive(p.OutDir, p.Name)
		if err != nil {
			return false, err
		}
		if latest != "" {
			previous := ExtractManifest(p.Runner, latest, p.Password)
			if previous != nil && previous.Equal(current) && readmeUnchanged(latest, p) {
				log.Info().Str("archive", p.Name).Msg("unchanged, skipping publish")
				return false, nil
			}
		}
	}

	if p.DryRun {
		log.Info().Str("archive", p.Name).Msg("would publish (dry run)")
		return true, nil
	}

	if err := WriteManifest(p.StagingDir, current); err != nil {
		return false, err
	}
	names := append(append([]string(nil), p.StagedNames...), manifestName)

	final := filepath.Join(p.OutDir, fmt.Sprintf("%s.%s.7z", p.Name, p.Timestamp))
	tmp := filepath.Join(p.OutDir, fmt.Sprintf(".tmp-%s.%s.7z", p.Name, p.Timestamp))
	if err := MakeArchive(p.Runner, tmp, p.Password, names); err != nil {
		os.Remove(tmp)
		return false, err
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return false, err
	}

	if err := WriteArchiveReadme(p.OutDir, p.Name, p.Timestamp, p.OpPasswordURI, p.Description, false); err != nil {
		return false, err
	}
	if err := PruneArchives(p.OutDir, p.Name, p.KeepRevisions); err != nil {
		return false, err
	}
	log.Info().Str("archive", filepath.Base(final)).Msg("published")
	return true, nil
}

// readmeUnchanged compares the previous revision's readme against what
// this run would write.
func readmeUnchanged(latestArchive string, p PublishParams) bool {
	path := strings.TrimSuffix(latestArchive, ".7z") + ".txt"
	existing, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return string(existing) == ReadmeContent(p.Name, p.OpPasswordURI, p.Description)
}

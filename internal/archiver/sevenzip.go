package archiver

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/utilctl/internal/tools"
)

// MakeArchive builds an encrypted 7z with encrypted headers from the
// named files. 7zz stores names relative to its working directory, so
// the runner must execute in the staging directory and the archive path
// must be absolute.
func MakeArchive(runner tools.CommandRunner, outArchive, password string, names []string) error {
	args := []string{"a", "-p" + password, "-mhe=on", outArchive}
	args = append(args, names...)
	_, stderr, code, err := runner.Run("7zz", args...)
	if err != nil {
		msg := strings.TrimSpace(string(stderr))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: 7zz a %s (exit %d): %s", ErrSubprocess, outArchive, code, msg)
	}
	return nil
}

// ExtractManifest pulls manifest.json out of an existing archive via
// stdout extraction. A missing archive or an archive without a readable
// manifest yields nil, which publishers treat as "content changed".
func ExtractManifest(runner tools.CommandRunner, archive, password string) *Manifest {
	if _, err := os.Stat(archive); err != nil {
		return nil
	}
	stdout, _, _, err := runner.Run("7zz", "e", "-so", "-p"+password, archive, manifestName)
	if err != nil {
		return nil
	}
	var m Manifest
	if err := json.Unmarshal(stdout, &m); err != nil {
		return nil
	}
	return &m
}

package archiver

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sort"
)

const manifestName = "manifest.json"

// ManifestEntry describes one staged file.
type ManifestEntry struct {
	Name   string `json:"name"`
	Size   int64  `json:"size"`
	Sha256 string `json:"sha256"`
}

// Manifest is the archive content listing, stored inside the archive
// itself so later runs can detect unchanged content.
type Manifest struct {
	Version int             `json:"version"`
	Entries []ManifestEntry `json:"entries"`
}

// Equal compares manifests by content.
func (m Manifest) Equal(other Manifest) bool {
	if m.Version != other.Version || len(m.Entries) != len(other.Entries) {
		return false
	}
	for i, e := range m.Entries {
		if e != other.Entries[i] {
			return false
		}
	}
	return true
}

// BuildManifest hashes the named staged files, sorted by name.
func BuildManifest(stagingDir string, names []string) (Manifest, error) {
	m := Manifest{Version: 1}
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	for _, name := range sorted {
		path := filepath.Join(stagingDir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil {
			return Manifest{}, err
		}
		sum, err := sha256File(path)
		if err != nil {
			return Manifest{}, err
		}
		m.Entries = append(m.Entries, ManifestEntry{Name: name, Size: info.Size(), Sha256: sum})
	}
	return m, nil
}

// WriteManifest stores the manifest as manifest.json in the staging
// directory.
func WriteManifest(stagingDir string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stagingDir, manifestName), append(data, '\n'), 0o600)
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

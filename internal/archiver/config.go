package archiver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/renameio/v2"
)

const (
	configBase      = "secure-archiver.toml"
	homeConfigBase  = ".secure-archiver.toml"
	defaultRevision = 3
)

var (
	ErrConfigNotFound = errors.New("archiver: config file not found")
	ErrInvalidConfig  = errors.New("archiver: invalid config")
	ErrConfigExists   = errors.New("archiver: config file already exists")
)

// IncludeEntry is one [[archives.<name>.include]] table. Exactly one of
// Path and OpRef must be set; the rest of the keys are only legal for
// the matching kind.
type IncludeEntry struct {
	Path     string  `toml:"path"`
	Recurse  bool    `toml:"recurse"`
	Latest   bool    `toml:"latest"`
	OpRef    string  `toml:"op_ref"`
	Filename *string `toml:"filename"`
	Dir      *string `toml:"dir"`
}

func (e IncludeEntry) IsOpRef() bool { return e.OpRef != "" }

// Subdir is the staging subdirectory, empty for top level.
func (e IncludeEntry) Subdir() string {
	if e.Dir != nil {
		return *e.Dir
	}
	return ""
}

func (e IncludeEntry) FileName() string {
	if e.Filename != nil {
		return *e.Filename
	}
	return ""
}

// ArchiveConfig is one named archive definition.
type ArchiveConfig struct {
	OpPassword  string         `toml:"op_password"`
	Description string         `toml:"description"`
	Include     []IncludeEntry `toml:"include"`
}

// GeneralConfig is the [general] table.
type GeneralConfig struct {
	OutputDir     string `toml:"output_dir"`
	KeepRevisions int    `toml:"keep_revisions"`
	Readme        string `toml:"readme"`
}

// Config is the full secure-archiver configuration.
type Config struct {
	General  GeneralConfig            `toml:"general"`
	Archives map[string]ArchiveConfig `toml:"archives"`
}

// ArchiveNames returns the configured archive names, sorted.
func (c Config) ArchiveNames() []string {
	names := make([]string, 0, len(c.Archives))
	for name := range c.Archives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FindConfig resolves the config path: an explicit path (which must
// exist), then secure-archiver.toml in the working directory, then
// ~/.secure-archiver.toml.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("%w: %s", ErrConfigNotFound, explicit)
		}
		return explicit, nil
	}
	if _, err := os.Stat(configBase); err == nil {
		return configBase, nil
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidate := filepath.Join(home, homeConfigBase)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no %s in the working directory or ~/%s",
		ErrConfigNotFound, configBase, homeConfigBase)
}

// LoadConfig reads, defaults, and validates a config file. Unknown keys
// anywhere in the file are validation errors.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	var problems []string
	for _, key := range meta.Undecoded() {
		problems = append(problems, fmt.Sprintf("unknown key %q", key))
	}
	if !meta.IsDefined("general", "keep_revisions") {
		cfg.General.KeepRevisions = defaultRevision
	}

	problems = append(problems, cfg.problems()...)
	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return &cfg, nil
}

// Validate checks the whole config and reports every problem at once.
func (c Config) Validate() error {
	if problems := c.problems(); len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) problems() []string {
	var problems []string
	if strings.TrimSpace(c.General.OutputDir) == "" {
		problems = append(problems, "general.output_dir is required")
	}
	if c.General.KeepRevisions < 0 {
		problems = append(problems, "general.keep_revisions must not be negative")
	}
	if len(c.Archives) == 0 {
		problems = append(problems, "at least one [archives.<name>] is required")
	}
	for _, name := range c.ArchiveNames() {
		a := c.Archives[name]
		prefix := fmt.Sprintf("archives.%s", name)
		if strings.TrimSpace(a.OpPassword) == "" {
			problems = append(problems, prefix+".op_password is required")
		}
		if strings.TrimSpace(a.Description) == "" {
			problems = append(problems, prefix+".description is required")
		}
		if len(a.Include) == 0 {
			problems = append(problems, prefix+" has no include entries")
		}
		for i, e := range a.Include {
			problems = append(problems, e.problems(fmt.Sprintf("%s.include[%d]", prefix, i))...)
		}
	}
	return problems
}

func (e IncludeEntry) problems(prefix string) []string {
	var problems []string
	hasPath := strings.TrimSpace(e.Path) != ""
	hasRef := strings.TrimSpace(e.OpRef) != ""
	switch {
	case hasPath && hasRef:
		problems = append(problems, prefix+": path and op_ref are mutually exclusive")
	case !hasPath && !hasRef:
		problems = append(problems, prefix+": one of path or op_ref is required")
	case hasPath:
		if e.Filename != nil {
			problems = append(problems, prefix+": filename is only valid with op_ref")
		}
	case hasRef:
		if strings.TrimSpace(e.FileName()) == "" {
			problems = append(problems, prefix+": op_ref requires a filename")
		}
		if e.Recurse {
			problems = append(problems, prefix+": recurse is only valid with path")
		}
		if e.Latest {
			problems = append(problems, prefix+": latest is only valid with path")
		}
	}
	if e.Dir != nil && strings.TrimSpace(*e.Dir) == "" {
		problems = append(problems, prefix+": dir must not be blank")
	}
	return problems
}

const exampleConfig = `# secure-archiver configuration.

[general]
# Where finished archives, their readmes, and README.txt land.
output_dir = "~/archives"
# How many timestamped revisions of each archive to keep.
keep_revisions = 3
# Optional text for the top-level README.txt in the output directory.
readme = "Encrypted archives. See the matching .txt for each password."

[archives.Documents]
op_password = "op://Private/Documents Archive/password"
description = "Scanned personal documents."

[[archives.Documents.include]]
path = "~/Documents/scans/**/*.pdf"
recurse = true

[[archives.Documents.include]]
op_ref = "op://Private/Recovery Codes/notes"
filename = "recovery-codes.txt"
dir = "secrets"
`

// WriteExampleConfig writes a commented starter config. It refuses to
// overwrite an existing file.
func WriteExampleConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}
	return renameio.WriteFile(path, []byte(exampleConfig), 0o600)
}

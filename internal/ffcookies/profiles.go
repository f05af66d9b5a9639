package ffcookies

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/ini.v1"
)

// Profile is one entry from profiles.ini.
type Profile struct {
	Name    string
	Path    string // absolute
	Default bool
}

var profileSection = regexp.MustCompile(`^Profile\d+$`)

// FirefoxDir locates the Firefox application directory for the current
// platform.
func FirefoxDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	var dir string
	switch runtime.GOOS {
	case "darwin":
		dir = filepath.Join(home, "Library", "Application Support", "Firefox")
	case "linux":
		dir = filepath.Join(home, ".mozilla", "firefox")
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedPlatform, runtime.GOOS)
	}
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, dir)
	}
	return dir, nil
}

// Profiles parses profiles.ini. Relative profile paths resolve against
// the Firefox directory. When an [Install*] section names a default
// path, that profile wins default selection over Default=1 flags.
func Profiles(dir string) ([]Profile, error) {
	iniPath := filepath.Join(dir, "profiles.ini")
	cfg, err := ini.Load(iniPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, iniPath)
		}
		return nil, err
	}

	var installDefault string
	for _, sec := range cfg.Sections() {
		if strings.HasPrefix(sec.Name(), "Install") {
			installDefault = sec.Key("Default").String()
		}
	}

	var profiles []Profile
	for _, sec := range cfg.Sections() {
		if !profileSection.MatchString(sec.Name()) {
			continue
		}
		rawPath := sec.Key("Path").String()
		if rawPath == "" {
			continue
		}
		resolved := rawPath
		if sec.Key("IsRelative").MustInt(1) == 1 {
			resolved = filepath.Join(dir, rawPath)
		}
		isDefault := sec.Key("Default").String() == "1"
		if installDefault != "" {
			isDefault = rawPath == installDefault
		}
		profiles = append(profiles, Profile{
			Name:    sec.Key("Name").String(),
			Path:    resolved,
			Default: isDefault,
		})
	}
	return profiles, nil
}

// ResolveProfile picks a profile. An empty selector takes the default
// profile, falling back to the first. Otherwise the selector matches a
// profile name (case-insensitive) or its path.
func ResolveProfile(profiles []Profile, selector string) (Profile, error) {
	if len(profiles) == 0 {
		return Profile{}, ErrNoProfiles
	}
	if selector == "" {
		for _, p := range profiles {
			if p.Default {
				return p, nil
			}
		}
		return profiles[0], nil
	}
	for _, p := range profiles {
		if strings.EqualFold(p.Name, selector) || p.Path == selector {
			return p, nil
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, selector)
}

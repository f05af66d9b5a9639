package ffcookies

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Container is one public contextual-identity from containers.json.
type Container struct {
	ID   int
	Name string
}

// Built-in containers carry localization ids instead of names.
var l10nNames = map[string]string{
	"userContextPersonal.label": "Personal",
	"userContextWork.label":     "Work",
	"userContextBanking.label":  "Banking",
	"userContextShopping.label": "Shopping",
}

type containersFile struct {
	Identities []struct {
		UserContextID int    `json:"userContextId"`
		Public        bool   `json:"public"`
		Name          string `json:"name"`
		L10nID        string `json:"l10nID"`
	} `json:"identities"`
}

// Containers reads the profile's containers.json. A missing file means
// no containers are configured.
func Containers(profileDir string) ([]Container, error) {
	data, err := os.ReadFile(filepath.Join(profileDir, "containers.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cf containersFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("ffcookies: parse containers.json: %w", err)
	}

	var containers []Container
	for _, id := range cf.Identities {
		if !id.Public {
			continue
		}
		name := id.Name
		if translated, ok := l10nNames[id.L10nID]; ok {
			name = translated
		}
		containers = append(containers, Container{ID: id.UserContextID, Name: name})
	}
	return containers, nil
}

// ResolveContainer picks a container by numeric id, exact name,
// case-insensitive name, or unique prefix, in that order. Id 0 is
// always the default context.
func ResolveContainer(containers []Container, selector string) (Container, error) {
	if n, err := strconv.Atoi(selector); err == nil {
		if n == 0 {
			return Container{ID: 0, Name: "default"}, nil
		}
		for _, c := range containers {
			if c.ID == n {
				return c, nil
			}
		}
		return Container{}, fmt.Errorf("%w: id %d", ErrUnknownContainer, n)
	}

	for _, c := range containers {
		if c.Name == selector {
			return c, nil
		}
	}
	var matches []Container
	for _, c := range containers {
		if strings.EqualFold(c.Name, selector) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	if len(matches) > 1 {
		return Container{}, fmt.Errorf("%w: %s", ErrAmbiguousContainer, selector)
	}

	lower := strings.ToLower(selector)
	for _, c := range containers {
		if strings.HasPrefix(strings.ToLower(c.Name), lower) {
			matches = append(matches, c)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return Container{}, fmt.Errorf("%w: %s", ErrUnknownContainer, selector)
	default:
		return Container{}, fmt.Errorf("%w: %s", ErrAmbiguousContainer, selector)
	}
}

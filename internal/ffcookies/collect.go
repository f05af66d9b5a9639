package ffcookies

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Source selects where cookies are read from.
type Source string

const (
	SourceDB       Source = "db"       // cookies.sqlite
	SourceRecovery Source = "recovery" // sessionstore recovery file
)

// NormalizeSources validates --source values; none selected means both.
func NormalizeSources(raw []string) (map[Source]bool, error) {
	if len(raw) == 0 {
		return map[Source]bool{SourceDB: true, SourceRecovery: true}, nil
	}
	out := make(map[Source]bool, len(raw))
	for _, r := range raw {
		switch Source(r) {
		case SourceDB, SourceRecovery:
			out[Source(r)] = true
		default:
			return nil, fmt.Errorf("ffcookies: unknown source %q (want db or recovery)", r)
		}
	}
	return out, nil
}

// Collect gathers cookies from the selected sources, merges them with
// sqlite precedence, and collapses container duplicates. containerID
// -1 disables container filtering.
func Collect(profileDir string, domains []string, containerID int, sources map[Source]bool) ([]Cookie, []ContainerConflict, error) {
	var dbCookies, sessionCookies []Cookie

	if sources[SourceDB] {
		dbPath, err := CopyDB(profileDir)
		if err != nil {
			return nil, nil, err
		}
		defer os.RemoveAll(filepath.Dir(dbPath))
		if dbCookies, err = QueryCookies(dbPath, domains, containerID); err != nil {
			return nil, nil, err
		}
	}
	if sources[SourceRecovery] {
		var err error
		if sessionCookies, err = SessionCookies(profileDir, domains, containerID); err != nil {
			return nil, nil, err
		}
	}

	merged := Merge(dbCookies, sessionCookies)
	deduped, conflicts := DedupContainers(merged)
	return deduped, conflicts, nil
}

// DomainCount is one row of the list-domains report.
type DomainCount struct {
	Count       int
	ContainerID int
	Domain      string
}

// CountDomains aggregates cookies per (domain, container), the domain
// being the host without its subdomain dot.
func CountDomains(cookies []Cookie) []DomainCount {
	type key struct {
		domain string
		ctx    int
	}
	counts := make(map[key]int)
	for _, c := range cookies {
		k := key{strings.TrimPrefix(c.Host, "."), UserContextID(c.OriginAttributes)}
		counts[k]++
	}
	out := make([]DomainCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, DomainCount{Count: n, ContainerID: k.ctx, Domain: k.domain})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		return out[i].ContainerID < out[j].ContainerID
	})
	return out
}

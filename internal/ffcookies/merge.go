package ffcookies

import (
	"sort"
	"strings"
)

type cookieKey struct {
	host  string
	name  string
	path  string
	attrs string
}

// Merge combines sqlite and session cookies. On a full key collision
// (host, name, path, originAttributes) the sqlite cookie wins; the
// result is sorted.
func Merge(dbCookies, sessionCookies []Cookie) []Cookie {
	seen := make(map[cookieKey]Cookie, len(dbCookies)+len(sessionCookies))
	for _, c := range sessionCookies {
		seen[cookieKey{c.Host, c.Name, c.Path, c.OriginAttributes}] = c
	}
	for _, c := range dbCookies {
		seen[cookieKey{c.Host, c.Name, c.Path, c.OriginAttributes}] = c
	}
	merged := make([]Cookie, 0, len(seen))
	for _, c := range seen {
		merged = append(merged, c)
	}
	sortCookies(merged)
	return merged
}

// stripContextID removes the userContextId segment so cookies that
// differ only in container collapse to the same grouping key. Partition
// key suffixes survive, keeping partitioned cookies distinct.
func stripContextID(attrs string) string {
	var b strings.Builder
	for _, seg := range strings.Split(attrs, "^") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "userContextId=") {
			if amp := strings.Index(seg, "&"); amp >= 0 {
				b.WriteString("^")
				b.WriteString(seg[amp:])
			}
			continue
		}
		b.WriteString("^")
		b.WriteString(seg)
	}
	return b.String()
}

// DedupContainers collapses cookies identical in everything but their
// container: the default context wins, else the lowest id. Each
// collapse is reported as a ContainerConflict.
func DedupContainers(cookies []Cookie) ([]Cookie, []ContainerConflict) {
	groups := make(map[cookieKey][]Cookie)
	var order []cookieKey
	for _, c := range cookies {
		k := cookieKey{c.Host, c.Name, c.Path, stripContextID(c.OriginAttributes)}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], c)
	}

	var deduped []Cookie
	var conflicts []ContainerConflict
	for _, k := range order {
		group := groups[k]
		if len(group) == 1 {
			deduped = append(deduped, group[0])
			continue
		}
		kept := group[0]
		for _, c := range group[1:] {
			if UserContextID(c.OriginAttributes) < UserContextID(kept.OriginAttributes) {
				kept = c
			}
		}
		var omitted []int
		for _, c := range group {
			if id := UserContextID(c.OriginAttributes); id != UserContextID(kept.OriginAttributes) {
				omitted = append(omitted, id)
			}
		}
		sort.Ints(omitted)
		deduped = append(deduped, kept)
		conflicts = append(conflicts, ContainerConflict{
			Host:       kept.Host,
			Name:       kept.Name,
			Path:       kept.Path,
			KeptID:     UserContextID(kept.OriginAttributes),
			OmittedIDs: omitted,
		})
	}
	sortCookies(deduped)
	return deduped, conflicts
}

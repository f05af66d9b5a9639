package ffcookies

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrUnsupportedPlatform = errors.New("ffcookies: unsupported platform")
	ErrNotFound            = errors.New("ffcookies: not found")
	ErrNoProfiles          = errors.New("ffcookies: no profiles found")
	ErrUnknownProfile      = errors.New("ffcookies: unknown profile")
	ErrUnknownContainer    = errors.New("ffcookies: unknown container")
	ErrAmbiguousContainer  = errors.New("ffcookies: ambiguous container")
	ErrBadMagic            = errors.New("ffcookies: bad mozlz4 magic")
)

// Cookie is one Firefox cookie, from either the sqlite store or the
// session-restore recovery file.
type Cookie struct {
	Host             string
	Name             string
	Value            string
	Path             string
	Expiry           int64
	Secure           bool
	HTTPOnly         bool
	SameSite         int
	OriginAttributes string
}

// ContainerConflict records a cookie that existed in several containers
// and was collapsed to one.
type ContainerConflict struct {
	Host       string
	Name       string
	Path       string
	KeptID     int
	OmittedIDs []int
}

// UserContextID extracts the container id from an originAttributes
// suffix string like "^userContextId=2&partitionKey=...". Absent means
// the default context, 0.
func UserContextID(attrs string) int {
	for _, seg := range strings.Split(attrs, "^") {
		k, v, ok := strings.Cut(seg, "=")
		if !ok || k != "userContextId" {
			continue
		}
		if amp := strings.Index(v, "&"); amp >= 0 {
			v = v[:amp]
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// OriginAttributesString serializes the JSON object form used by the
// recovery file into Firefox's canonical suffix string: keys sorted,
// ^key=value segments, zero and empty values omitted.
func OriginAttributesString(attrs map[string]any) string {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		var val string
		switch v := attrs[k].(type) {
		case float64:
			if v == 0 {
				continue
			}
			val = strconv.FormatInt(int64(v), 10)
		case string:
			if v == "" {
				continue
			}
			val = v
		case bool:
			if !v {
				continue
			}
			val = "1"
		default:
			val = fmt.Sprintf("%v", v)
		}
		b.WriteString("^")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(val)
	}
	return b.String()
}

// MatchesDomain reports whether a cookie host belongs to a domain: the
// host equals it, equals its dotted form, or is a subdomain of it.
func MatchesDomain(host, domain string) bool {
	return host == domain || host == "."+domain || strings.HasSuffix(host, "."+domain)
}

func matchesAnyDomain(host string, domains []string) bool {
	if len(domains) == 0 {
		return true
	}
	for _, d := range domains {
		if MatchesDomain(host, d) {
			return true
		}
	}
	return false
}

func sortCookies(cookies []Cookie) {
	sort.Slice(cookies, func(i, j int) bool {
		a, b := cookies[i], cookies[j]
		if a.Host != b.Host {
			return a.Host < b.Host
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		return a.OriginAttributes < b.OriginAttributes
	})
}

package ffcookies

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// FormatNetscape renders cookies in the classic cookies.txt layout.
// Container conflicts show up as comment lines under the header.
func FormatNetscape(cookies []Cookie, conflicts []ContainerConflict) string {
	var b strings.Builder
	b.WriteString("# Netscape HTTP Cookie File\n")
	for _, cf := range conflicts {
		ids := make([]string, len(cf.OmittedIDs))
		for i, id := range cf.OmittedIDs {
			ids[i] = strconv.Itoa(id)
		}
		fmt.Fprintf(&b, "# Cookie '%s' for %s%s also in containers [%s], keeping container %d\n",
			cf.Name, cf.Host, cf.Path, strings.Join(ids, ", "), cf.KeptID)
	}
	b.WriteString("\n")
	for _, c := range cookies {
		fmt.Fprintf(&b, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			c.Host,
			netscapeBool(strings.HasPrefix(c.Host, ".")),
			c.Path,
			netscapeBool(c.Secure),
			c.Expiry,
			c.Name,
			c.Value)
	}
	return b.String()
}

func netscapeBool(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

type jsonConflict struct {
	KeptContainerID     int   `json:"keptContainerId"`
	OmittedContainerIDs []int `json:"omittedContainerIds"`
}

type jsonCookie struct {
	Host              string        `json:"host"`
	Name              string        `json:"name"`
	Value             string        `json:"value"`
	Path              string        `json:"path"`
	Expiry            int64         `json:"expiry"`
	Secure            bool          `json:"secure"`
	HTTPOnly          bool          `json:"httpOnly"`
	SameSite          int           `json:"sameSite"`
	ContainerConflict *jsonConflict `json:"containerConflict,omitempty"`
}

// FormatJSON renders cookies as a JSON array. originAttributes stays
// internal; affected cookies carry a containerConflict object instead.
func FormatJSON(cookies []Cookie, conflicts []ContainerConflict) (string, error) {
	byKey := make(map[cookieKey]ContainerConflict, len(conflicts))
	for _, cf := range conflicts {
		byKey[cookieKey{host: cf.Host, name: cf.Name, path: cf.Path}] = cf
	}

	out := make([]jsonCookie, 0, len(cookies))
	for _, c := range cookies {
		jc := jsonCookie{
			Host:     c.Host,
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Expiry:   c.Expiry,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if cf, ok := byKey[cookieKey{host: c.Host, name: c.Name, path: c.Path}]; ok {
			jc.ContainerConflict = &jsonConflict{
				KeptContainerID:     cf.KeptID,
				OmittedContainerIDs: cf.OmittedIDs,
			}
		}
		out = append(out, jc)
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data) + "\n", nil
}

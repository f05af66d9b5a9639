package ffcookies

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
)

var mozlz4Magic = []byte("mozLz40\x00")

// DecompressMozlz4 unpacks Mozilla's jsonlz4 container: an 8-byte
// magic, a little-endian uint32 decompressed size, and an LZ4 block.
func DecompressMozlz4(data []byte) ([]byte, error) {
	if len(data) < len(mozlz4Magic)+4 || string(data[:len(mozlz4Magic)]) != string(mozlz4Magic) {
		return nil, ErrBadMagic
	}
	size := binary.LittleEndian.Uint32(data[len(mozlz4Magic):])
	out := make([]byte, size)
	n, err := lz4.UncompressBlock(data[len(mozlz4Magic)+4:], out)
	if err != nil {
		return nil, fmt.Errorf("ffcookies: lz4 decompress: %w", err)
	}
	return out[:n], nil
}

type sessionCookie struct {
	Host             string         `json:"host"`
	Name             string         `json:"name"`
	Value            string         `json:"value"`
	Path             string         `json:"path"`
	Expiry           int64          `json:"expiry"`
	Secure           bool           `json:"secure"`
	HTTPOnly         bool           `json:"httponly"`
	OriginAttributes map[string]any `json:"originAttributes"`
}

type sessionStore struct {
	Cookies []sessionCookie `json:"cookies"`
	Windows []struct {
		Cookies []sessionCookie `json:"cookies"`
	} `json:"windows"`
}

// SessionCookies reads cookies from the session-restore recovery file.
// The recovery file is transient: missing or corrupt data yields no
// cookies rather than an error. containerID -1 disables container
// filtering.
func SessionCookies(profileDir string, domains []string, containerID int) ([]Cookie, error) {
	path := filepath.Join(profileDir, "sessionstore-backups", "recovery.jsonlz4")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	raw, err := DecompressMozlz4(data)
	if err != nil {
		log.Warn().Str("path", path).Err(err).Msg("unreadable recovery file, ignoring")
		return nil, nil
	}
	var store sessionStore
	if err := json.Unmarshal(raw, &store); err != nil {
		log.Warn().Str("path", path).Err(err).Msg("malformed recovery file, ignoring")
		return nil, nil
	}

	all := append([]sessionCookie(nil), store.Cookies...)
	for _, w := range store.Windows {
		all = append(all, w.Cookies...)
	}

	var cookies []Cookie
	for _, sc := range all {
		c := Cookie{
			Host:             sc.Host,
			Name:             sc.Name,
			Value:            sc.Value,
			Path:             sc.Path,
			Expiry:           sc.Expiry,
			Secure:           sc.Secure,
			HTTPOnly:         sc.HTTPOnly,
			OriginAttributes: OriginAttributesString(sc.OriginAttributes),
		}
		if !matchesAnyDomain(c.Host, domains) {
			continue
		}
		if containerID >= 0 && UserContextID(c.OriginAttributes) != containerID {
			continue
		}
		cookies = append(cookies, c)
	}
	sortCookies(cookies)
	return cookies, nil
}

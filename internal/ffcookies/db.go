package ffcookies

import (
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const dbName = "cookies.sqlite"

// CopyDB copies cookies.sqlite and its -wal/-shm sidecars into a fresh
// temp directory and returns the copied database path. A running
// Firefox holds locks on the originals, so queries always go against
// the copy; the caller removes the directory when done.
func CopyDB(profileDir string) (string, error) {
	src := filepath.Join(profileDir, dbName)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, src)
	}
	tmpDir, err := os.MkdirTemp("", "ffcookies-*")
	if err != nil {
		return "", err
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		from := src + suffix
		if _, err := os.Stat(from); err != nil {
			continue
		}
		if err := copyFile(from, filepath.Join(tmpDir, dbName+suffix)); err != nil {
			os.RemoveAll(tmpDir)
			return "", err
		}
	}
	return filepath.Join(tmpDir, dbName), nil
}

// QueryCookies reads moz_cookies ordered by (host, name), filtered by
// domain list and container id. containerID -1 disables container
// filtering.
func QueryCookies(dbPath string, domains []string, containerID int) ([]Cookie, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`
		SELECT host, name, value, path, expiry,
		       isSecure, isHttpOnly, sameSite, originAttributes
		FROM moz_cookies
		ORDER BY host, name`)
	if err != nil {
		return nil, fmt.Errorf("ffcookies: query cookies: %w", err)
	}
	defer rows.Close()

	var cookies []Cookie
	for rows.Next() {
		var c Cookie
		var secure, httpOnly int
		if err := rows.Scan(&c.Host, &c.Name, &c.Value, &c.Path, &c.Expiry,
			&secure, &httpOnly, &c.SameSite, &c.OriginAttributes); err != nil {
			return nil, err
		}
		c.Secure = secure != 0
		c.HTTPOnly = httpOnly != 0
		if !matchesAnyDomain(c.Host, domains) {
			continue
		}
		if containerID >= 0 && UserContextID(c.OriginAttributes) != containerID {
			continue
		}
		cookies = append(cookies, c)
	}
	return cookies, rows.Err()
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

package ffcookies

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pierrec/lz4/v4"

	"github.com/danmuck/utilctl/internal/testutil/testlog"
)

// mozlz4 compresses a JSON document into the jsonlz4 container format.
func mozlz4(t *testing.T, doc any) []byte {
	t.Helper()
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var comp lz4.Compressor
	dst := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := comp.CompressBlock(raw, dst)
	if err != nil {
		t.Fatalf("compress: %v", err)
	}
	out := append([]byte("mozLz40\x00"), 0, 0, 0, 0)
	binary.LittleEndian.PutUint32(out[8:], uint32(len(raw)))
	return append(out, dst[:n]...)
}

func writeRecovery(t *testing.T, profileDir string, doc any) {
	t.Helper()
	path := filepath.Join(profileDir, "sessionstore-backups", "recovery.jsonlz4")
	writeFileBytes(t, path, mozlz4(t, doc))
}

func writeFileBytes(t *testing.T, path string, data []byte) {
	t.Helper()
	writeFile(t, path, string(data))
}

func sessionFixture() map[string]any {
	return map[string]any{
		"version": []any{"sessionrestore", 1},
		"windows": []any{},
		"cookies": []any{
			map[string]any{
				"host": ".wordpress.com", "name": "wp_session", "value": "sess123",
				"path": "/", "secure": true, "httponly": true, "expiry": 0,
				"originAttributes": map[string]any{},
			},
			map[string]any{
				"host": ".example.com", "name": "session_only", "value": "ephemeral",
				"path": "/", "secure": false, "httponly": false, "expiry": 0,
				"originAttributes": map[string]any{},
			},
			map[string]any{
				"host": ".example.com", "name": "session", "value": "SHOULD_BE_OVERRIDDEN",
				"path": "/", "secure": true, "httponly": false, "expiry": 0,
				"originAttributes": map[string]any{},
			},
			map[string]any{
				"host": ".example.com", "name": "container_sess", "value": "ctx5val",
				"path": "/", "secure": false, "httponly": false, "expiry": 0,
				"originAttributes": map[string]any{"userContextId": 5},
			},
		},
	}
}

func TestDecompressMozlz4(t *testing.T) {
	testlog.Start(t)
	data := mozlz4(t, map[string]any{"test": true})
	raw, err := DecompressMozlz4(data)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil || doc["test"] != true {
		t.Fatalf("roundtrip: %v %v", doc, err)
	}

	if _, err := DecompressMozlz4([]byte("notmozlz4data")); !errors.Is(err, ErrBadMagic) {
		t.Fatalf("bad magic: %v", err)
	}
	if _, err := DecompressMozlz4([]byte("mozLz40\x00")); err == nil {
		t.Fatal("truncated input should error")
	}
}

func TestSessionCookies(t *testing.T) {
	testlog.Start(t)
	profile := t.TempDir()
	writeRecovery(t, profile, sessionFixture())

	cookies, err := SessionCookies(profile, nil, -1)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if len(cookies) != 4 {
		t.Fatalf("cookies: %+v", cookies)
	}
	for i := 1; i < len(cookies); i++ {
		if cookies[i-1].Host > cookies[i].Host {
			t.Fatalf("not sorted: %+v", cookies)
		}
	}

	wp, err := SessionCookies(profile, []string{"wordpress.com"}, -1)
	if err != nil || len(wp) != 1 {
		t.Fatalf("domain filter: %+v %v", wp, err)
	}
	c := wp[0]
	if c.Host != ".wordpress.com" || c.Name != "wp_session" || c.Value != "sess123" ||
		!c.Secure || !c.HTTPOnly || c.OriginAttributes != "" {
		t.Fatalf("fields: %+v", c)
	}

	ctx5, err := SessionCookies(profile, nil, 5)
	if err != nil || len(ctx5) != 1 {
		t.Fatalf("container filter: %+v %v", ctx5, err)
	}
	if ctx5[0].Name != "container_sess" || ctx5[0].OriginAttributes != "^userContextId=5" {
		t.Fatalf("container cookie: %+v", ctx5[0])
	}

	defaultCtx, err := SessionCookies(profile, nil, 0)
	if err != nil || len(defaultCtx) != 3 {
		t.Fatalf("default context: %+v %v", defaultCtx, err)
	}
}

func TestSessionCookiesMissingOrCorrupt(t *testing.T) {
	testlog.Start(t)
	profile := t.TempDir()

	cookies, err := SessionCookies(profile, nil, -1)
	if err != nil || cookies != nil {
		t.Fatalf("missing file: %+v %v", cookies, err)
	}

	writeFile(t, filepath.Join(profile, "sessionstore-backups", "recovery.jsonlz4"),
		"garbage data not mozlz4")
	cookies, err = SessionCookies(profile, nil, -1)
	if err != nil || cookies != nil {
		t.Fatalf("corrupt file: %+v %v", cookies, err)
	}
}

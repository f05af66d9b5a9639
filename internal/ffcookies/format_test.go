package ffcookies

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/danmuck/utilctl/internal/testutil/testlog"
)

func formatFixture() ([]Cookie, []ContainerConflict) {
	cookies := []Cookie{
		{Host: ".example.com", Name: "session", Value: "abc", Path: "/",
			Expiry: 1700000000, Secure: true, HTTPOnly: true, SameSite: 1},
		{Host: "example.com", Name: "pref", Value: "dark", Path: "/settings",
			Expiry: 1700000000},
	}
	conflicts := []ContainerConflict{{
		Host: ".example.com", Name: "session", Path: "/",
		KeptID: 0, OmittedIDs: []int{5, 12},
	}}
	return cookies, conflicts
}

func TestFormatNetscape(t *testing.T) {
	testlog.Start(t)
	cookies, conflicts := formatFixture()
	out := FormatNetscape(cookies, conflicts)

	lines := strings.Split(out, "\n")
	if lines[0] != "# Netscape HTTP Cookie File" {
		t.Fatalf("header: %q", lines[0])
	}
	want := "# Cookie 'session' for .example.com/ also in containers [5, 12], keeping container 0"
	if lines[1] != want {
		t.Fatalf("conflict comment: %q", lines[1])
	}
	if lines[2] != "" {
		t.Fatalf("blank separator: %q", lines[2])
	}

	fields := strings.Split(lines[3], "\t")
	if len(fields) != 7 {
		t.Fatalf("fields: %v", fields)
	}
	// host, includeSubdomains, path, secure, expiry, name, value
	if fields[0] != ".example.com" || fields[1] != "TRUE" || fields[2] != "/" ||
		fields[3] != "TRUE" || fields[4] != "1700000000" ||
		fields[5] != "session" || fields[6] != "abc" {
		t.Fatalf("cookie line: %v", fields)
	}

	fields = strings.Split(lines[4], "\t")
	if fields[1] != "FALSE" || fields[3] != "FALSE" {
		t.Fatalf("flags for bare host: %v", fields)
	}
	if !strings.HasSuffix(out, "dark\n") {
		t.Fatalf("trailing newline: %q", out)
	}
}

func TestFormatNetscapeNoConflicts(t *testing.T) {
	testlog.Start(t)
	cookies, _ := formatFixture()
	out := FormatNetscape(cookies, nil)
	if strings.Contains(out, "also in containers") {
		t.Fatalf("unexpected conflict comment:\n%s", out)
	}
}

func TestFormatJSON(t *testing.T) {
	testlog.Start(t)
	cookies, conflicts := formatFixture()
	out, err := FormatJSON(cookies, conflicts)
	if err != nil {
		t.Fatalf("format: %v", err)
	}

	var parsed []map[string]any
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("entries: %d", len(parsed))
	}

	first := parsed[0]
	if first["host"] != ".example.com" || first["name"] != "session" ||
		first["value"] != "abc" || first["path"] != "/" ||
		first["expiry"] != float64(1700000000) ||
		first["secure"] != true || first["httpOnly"] != true ||
		first["sameSite"] != float64(1) {
		t.Fatalf("fields: %+v", first)
	}
	if _, ok := first["originAttributes"]; ok {
		t.Fatal("originAttributes must stay internal")
	}

	cf, ok := first["containerConflict"].(map[string]any)
	if !ok {
		t.Fatalf("missing containerConflict: %+v", first)
	}
	if cf["keptContainerId"] != float64(0) {
		t.Fatalf("kept id: %+v", cf)
	}
	omitted, _ := cf["omittedContainerIds"].([]any)
	if len(omitted) != 2 || omitted[0] != float64(5) || omitted[1] != float64(12) {
		t.Fatalf("omitted ids: %+v", cf)
	}

	if _, ok := parsed[1]["containerConflict"]; ok {
		t.Fatalf("conflict on wrong cookie: %+v", parsed[1])
	}
	if !strings.HasSuffix(out, "\n") {
		t.Fatal("trailing newline")
	}
}

func TestFormatJSONEmpty(t *testing.T) {
	testlog.Start(t)
	out, err := FormatJSON(nil, nil)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Fatalf("empty list: %q", out)
	}
}

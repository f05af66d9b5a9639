package archiver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danmuck/utilctl/internal/testutil/testlog"
)

// fakeRunner scripts subprocess responses and records every call.
type fakeRunner struct {
	calls   [][]string
	respond func(name string, args []string) (string, int32, error)
}

func (f *fakeRunner) Run(name string, args ...string) ([]byte, []byte, int32, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.respond == nil {
		return nil, nil, 0, nil
	}
	out, code, err := f.respond(name, args)
	return []byte(out), nil, code, err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestExpandPattern(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "a")
	writeFile(t, filepath.Join(dir, "b.txt"), "b")
	writeFile(t, filepath.Join(dir, "sub", "c.txt"), "c")

	matches, err := ExpandPattern(filepath.Join(dir, "*.txt"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("matches: %v", matches)
	}

	matches, err = ExpandPattern(filepath.Join(dir, "**", "*.txt"))
	if err != nil {
		t.Fatalf("recursive glob: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("recursive matches: %v", matches)
	}
}

func TestResolveEntryFiles(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "dump-01.sql"), "1")
	writeFile(t, filepath.Join(dir, "dump-02.sql"), "2")
	writeFile(t, filepath.Join(dir, "nested", "deep.txt"), "d")

	// A directory expands one level without recurse.
	files, err := ResolveEntryFiles(IncludeEntry{Path: dir})
	if err != nil {
		t.Fatalf("dir entry: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("non-recursive: %v", files)
	}

	files, err = ResolveEntryFiles(IncludeEntry{Path: dir, Recurse: true})
	if err != nil {
		t.Fatalf("recursive entry: %v", err)
	}
	if len(files) != 3 {
		t.Fatalf("recursive: %v", files)
	}

	// latest keeps only the newest match in sorted order.
	files, err = ResolveEntryFiles(IncludeEntry{Path: filepath.Join(dir, "dump-*.sql"), Latest: true})
	if err != nil {
		t.Fatalf("latest entry: %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "dump-02.sql" {
		t.Fatalf("latest: %v", files)
	}

	if _, err := ResolveEntryFiles(IncludeEntry{Path: filepath.Join(dir, "*.nope")}); !errors.Is(err, ErrNoMatches) {
		t.Fatalf("want ErrNoMatches, got %v", err)
	}
}

func TestStageFiles(t *testing.T) {
	testlog.Start(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), "alpha")
	writeFile(t, filepath.Join(src, "b.txt"), "beta")

	staging := t.TempDir()
	s := NewStager(staging, &fakeRunner{})
	names, err := s.StageFiles([]string{filepath.Join(src, "a.txt"), filepath.Join(src, "b.txt")}, "")
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if diff := cmp.Diff([]string{"a.txt", "b.txt"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}

	info, err := os.Stat(filepath.Join(staging, "a.txt"))
	if err != nil {
		t.Fatalf("staged file: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("permissions: %o", perm)
	}
	data, _ := os.ReadFile(filepath.Join(staging, "a.txt"))
	if string(data) != "alpha" {
		t.Fatalf("content: %q", data)
	}
}

func TestStageFilesCollision(t *testing.T) {
	testlog.Start(t)
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, filepath.Join(a, "same.txt"), "1")
	writeFile(t, filepath.Join(b, "same.txt"), "2")

	s := NewStager(t.TempDir(), &fakeRunner{})
	_, err := s.StageFiles([]string{filepath.Join(a, "same.txt"), filepath.Join(b, "same.txt")}, "")
	if !errors.Is(err, ErrCollision) {
		t.Fatalf("want ErrCollision, got %v", err)
	}

	// The same basename in different subdirs is fine.
	s = NewStager(t.TempDir(), &fakeRunner{})
	if _, err := s.StageFiles([]string{filepath.Join(a, "same.txt")}, "one"); err != nil {
		t.Fatalf("subdir one: %v", err)
	}
	names, err := s.StageFiles([]string{filepath.Join(b, "same.txt")}, "two")
	if err != nil {
		t.Fatalf("subdir two: %v", err)
	}
	if names[0] != "two/same.txt" {
		t.Fatalf("subdir name: %s", names[0])
	}
}

func TestStageFilesMissingSource(t *testing.T) {
	testlog.Start(t)
	s := NewStager(t.TempDir(), &fakeRunner{})
	_, err := s.StageFiles([]string{filepath.Join(t.TempDir(), "absent.txt")}, "")
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("want ErrMissingFile, got %v", err)
	}
}

func TestStageOpRef(t *testing.T) {
	testlog.Start(t)
	runner := &fakeRunner{
		respond: func(name string, args []string) (string, int32, error) {
			return "line1\r\nline2\r\nline3", 0, nil
		},
	}
	staging := t.TempDir()
	s := NewStager(staging, runner)

	rel, err := s.StageOpRef("op://vault/item/field", "note.txt", "secrets")
	if err != nil {
		t.Fatalf("stage op ref: %v", err)
	}
	if rel != "secrets/note.txt" {
		t.Fatalf("rel: %s", rel)
	}
	data, err := os.ReadFile(filepath.Join(staging, "secrets", "note.txt"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "line1\nline2\nline3\n" {
		t.Fatalf("normalization: %q", data)
	}
}

func TestOpReadFailures(t *testing.T) {
	testlog.Start(t)
	empty := &fakeRunner{respond: func(string, []string) (string, int32, error) { return "  \n", 0, nil }}
	if _, err := OpRead(empty, "op://v/i/f"); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("want ErrEmptySecret, got %v", err)
	}
	failing := &fakeRunner{respond: func(string, []string) (string, int32, error) {
		return "", 1, fmt.Errorf("exit status 1")
	}}
	if _, err := OpRead(failing, "op://v/i/f"); !errors.Is(err, ErrSubprocess) {
		t.Fatalf("want ErrSubprocess, got %v", err)
	}
}

func TestStagerBuild(t *testing.T) {
	testlog.Start(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "doc.txt"), "doc")

	runner := &fakeRunner{
		respond: func(name string, args []string) (string, int32, error) {
			return "secret", 0, nil
		},
	}
	staging := t.TempDir()
	s := NewStager(staging, runner)
	sub := "secrets"
	fn := "note.txt"
	names, err := s.Build(ArchiveConfig{
		OpPassword:  "op://v/i/password",
		Description: "d",
		Include: []IncludeEntry{
			{Path: filepath.Join(src, "*.txt")},
			{OpRef: "op://v/i/f", Filename: &fn, Dir: &sub},
		},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if diff := cmp.Diff([]string{"doc.txt", "secrets/note.txt"}, names); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestBuildManifest(t *testing.T) {
	testlog.Start(t)
	staging := t.TempDir()
	writeFile(t, filepath.Join(staging, "b.txt"), "bb")
	writeFile(t, filepath.Join(staging, "a.txt"), "a")

	m, err := BuildManifest(staging, []string{"b.txt", "a.txt"})
	if err != nil {
		t.Fatalf("manifest: %v", err)
	}
	if m.Version != 1 || len(m.Entries) != 2 {
		t.Fatalf("manifest: %+v", m)
	}
	// Sorted by name regardless of input order.
	if m.Entries[0].Name != "a.txt" || m.Entries[1].Name != "b.txt" {
		t.Fatalf("order: %+v", m.Entries)
	}
	if m.Entries[0].Size != 1 || m.Entries[1].Size != 2 {
		t.Fatalf("sizes: %+v", m.Entries)
	}
	// sha256("a")
	if m.Entries[0].Sha256 != "ca978112ca1bbdcafac231b39a23dc4da786eff8147c4e72b9807785afee48bb" {
		t.Fatalf("sha256: %s", m.Entries[0].Sha256)
	}

	other, err := BuildManifest(staging, []string{"a.txt", "b.txt"})
	if err != nil {
		t.Fatalf("second manifest: %v", err)
	}
	if !m.Equal(other) {
		t.Fatal("manifests should be equal")
	}
}

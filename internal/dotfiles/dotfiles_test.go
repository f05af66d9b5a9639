package dotfiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danmuck/utilctl/internal/testutil/testlog"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// sourceDir builds a dotfile directory with a couple of payload files
// plus metadata that discovery must skip.
func sourceDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bashrc"), "export EDITOR=vim\n")
	writeFile(t, filepath.Join(dir, "config", "nvim", "init.vim"), "set number\n")
	writeFile(t, filepath.Join(dir, ".gitignore"), "# scratch\n*.swp\nbuild/\n")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref: refs/heads/main\n")
	writeFile(t, filepath.Join(dir, "config", "nvim", "init.vim.swp"), "junk")
	writeFile(t, filepath.Join(dir, "build", "out.txt"), "junk")
	return dir
}

func TestDiscover(t *testing.T) {
	testlog.Start(t)
	dir := sourceDir(t)

	entries, err := Discover(dir)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	var rels []string
	for _, e := range entries {
		rels = append(rels, e.RelPath)
	}
	want := []string{"bashrc", filepath.Join("config", "nvim", "init.vim")}
	if diff := cmp.Diff(want, rels); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverMissingDir(t *testing.T) {
	testlog.Start(t)
	if _, err := Discover(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing directory")
	}
	file := filepath.Join(t.TempDir(), "file")
	writeFile(t, file, "x")
	if _, err := Discover(file); err == nil {
		t.Fatal("expected error for non-directory")
	}
}

func TestEntryPaths(t *testing.T) {
	testlog.Start(t)
	e := Entry{RelPath: filepath.Join("config", "nvim", "init.vim"), Dir: "/src/dotfiles"}
	if got := e.TargetPath("/home/u"); got != "/home/u/.config/nvim/init.vim" {
		t.Fatalf("target: %s", got)
	}
	if got := e.SourcePath(); got != "/src/dotfiles/config/nvim/init.vim" {
		t.Fatalf("source: %s", got)
	}
}

func TestInstallAndAudit(t *testing.T) {
	testlog.Start(t)
	dir := sourceDir(t)
	home := t.TempDir()
	m := NewManager(home)

	sum, err := m.InstallDirs(dir)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	for _, r := range sum.Results {
		if r.Status != StatusInstalled {
			t.Fatalf("%s: status %s, want installed", r.Entry.RelPath, r.Status)
		}
	}

	link := filepath.Join(home, ".bashrc")
	dest, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	resolved := filepath.Join(filepath.Dir(link), dest)
	if filepath.Clean(resolved) != filepath.Join(dir, "bashrc") {
		t.Fatalf("link resolves to %s", resolved)
	}

	// Second install is idempotent, audit agrees.
	sum, err = m.InstallDirs("")
	if err != nil {
		t.Fatalf("reinstall: %v", err)
	}
	for _, r := range sum.Results {
		if r.Status != StatusOK {
			t.Fatalf("%s: status %s, want ok", r.Entry.RelPath, r.Status)
		}
	}
	sum, err = m.AuditDirs("")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(sum.Results) != 2 || sum.HasConflicts() || sum.HasMissing() {
		t.Fatalf("audit summary: %+v", sum)
	}
}

func TestInstallConflicts(t *testing.T) {
	testlog.Start(t)
	dir := sourceDir(t)
	home := t.TempDir()
	m := NewManager(home)

	// A regular file at the target is never replaced.
	writeFile(t, filepath.Join(home, ".bashrc"), "mine\n")
	// A stale link is replaced only with force.
	if err := os.MkdirAll(filepath.Join(home, ".config", "nvim"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.Symlink("/elsewhere/init.vim", filepath.Join(home, ".config", "nvim", "init.vim")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	sum, err := m.InstallDirs(dir)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	byRel := map[string]Status{}
	for _, r := range sum.Results {
		byRel[filepath.ToSlash(r.Entry.RelPath)] = r.Status
	}
	if byRel["bashrc"] != StatusFileConflict {
		t.Fatalf("bashrc: %s, want file-conflict", byRel["bashrc"])
	}
	if byRel["config/nvim/init.vim"] != StatusLinkConflict {
		t.Fatalf("init.vim: %s, want link-conflict", byRel["config/nvim/init.vim"])
	}
	if data, err := os.ReadFile(filepath.Join(home, ".bashrc")); err != nil || string(data) != "mine\n" {
		t.Fatalf("conflicting file touched: %q %v", data, err)
	}

	m.Force = true
	sum, err = m.InstallDirs(dir)
	if err != nil {
		t.Fatalf("forced install: %v", err)
	}
	byRel = map[string]Status{}
	for _, r := range sum.Results {
		byRel[filepath.ToSlash(r.Entry.RelPath)] = r.Status
	}
	// Force replaces stale links but still refuses to clobber files.
	if byRel["bashrc"] != StatusFileConflict {
		t.Fatalf("forced bashrc: %s", byRel["bashrc"])
	}
	if byRel["config/nvim/init.vim"] != StatusInstalled {
		t.Fatalf("forced init.vim: %s", byRel["config/nvim/init.vim"])
	}
}

func TestInstallDryRun(t *testing.T) {
	testlog.Start(t)
	dir := sourceDir(t)
	home := t.TempDir()
	m := NewManager(home)
	m.DryRun = true

	sum, err := m.InstallDirs(dir)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	for _, r := range sum.Results {
		if r.Status != StatusInstalled {
			t.Fatalf("%s: status %s", r.Entry.RelPath, r.Status)
		}
	}
	if _, err := os.Lstat(filepath.Join(home, ".bashrc")); !os.IsNotExist(err) {
		t.Fatalf("dry run created a link: %v", err)
	}
	if dirs, err := m.Registry.Load(); err != nil || len(dirs) != 0 {
		t.Fatalf("dry run touched registry: %v %v", dirs, err)
	}
}

func TestRemove(t *testing.T) {
	testlog.Start(t)
	dir := sourceDir(t)
	home := t.TempDir()
	m := NewManager(home)

	if _, err := m.InstallDirs(dir); err != nil {
		t.Fatalf("install: %v", err)
	}
	sum, err := m.RemoveDirs("")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, r := range sum.Results {
		if r.Status != StatusRemoved {
			t.Fatalf("%s: status %s", r.Entry.RelPath, r.Status)
		}
	}
	if _, err := os.Lstat(filepath.Join(home, ".bashrc")); !os.IsNotExist(err) {
		t.Fatal("link still present")
	}
	// Emptied parents are cleaned up too.
	if _, err := os.Stat(filepath.Join(home, ".config")); !os.IsNotExist(err) {
		t.Fatal("empty parent left behind")
	}
	if dirs, err := m.Registry.Load(); err != nil || len(dirs) != 0 {
		t.Fatalf("registry after remove: %v %v", dirs, err)
	}
}

func TestRemoveLeavesForeignFiles(t *testing.T) {
	testlog.Start(t)
	dir := sourceDir(t)
	home := t.TempDir()
	m := NewManager(home)

	if _, err := m.InstallDirs(dir); err != nil {
		t.Fatalf("install: %v", err)
	}
	// Swap the managed link for a real file before removing.
	bashrc := filepath.Join(home, ".bashrc")
	if err := os.Remove(bashrc); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	writeFile(t, bashrc, "mine\n")

	sum, err := m.RemoveDirs(dir)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	for _, r := range sum.Results {
		if r.Entry.RelPath == "bashrc" && r.Status != StatusFileConflict {
			t.Fatalf("bashrc: %s", r.Status)
		}
	}
	if _, err := os.Stat(bashrc); err != nil {
		t.Fatalf("foreign file removed: %v", err)
	}
}

func TestAuditSkipsVanishedDirs(t *testing.T) {
	testlog.Start(t)
	home := t.TempDir()
	m := NewManager(home)
	if err := m.Registry.Add(filepath.Join(t.TempDir(), "gone")); err != nil {
		t.Fatalf("register: %v", err)
	}
	sum, err := m.AuditDirs("")
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if len(sum.Results) != 0 {
		t.Fatalf("results from vanished dir: %+v", sum)
	}
}

func TestRegistry(t *testing.T) {
	testlog.Start(t)
	home := t.TempDir()
	r := NewRegistry(home)

	dirs, err := r.Load()
	if err != nil || dirs != nil {
		t.Fatalf("empty load: %v %v", dirs, err)
	}

	a := t.TempDir()
	b := t.TempDir()
	for _, d := range []string{a, b, a} {
		if err := r.Add(d); err != nil {
			t.Fatalf("add %s: %v", d, err)
		}
	}
	dirs, err = r.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("want 2 registered dirs, got %v", dirs)
	}

	if err := r.Remove(a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	dirs, err = r.Load()
	if err != nil || len(dirs) != 1 {
		t.Fatalf("after remove: %v %v", dirs, err)
	}
}

package workspace_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/duet-cli/duet/workspace"
)

func newWorkspace(t *testing.T, opts ...workspace.Option) *workspace.Workspace {
	t.Helper()
	ws, err := workspace.New(t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return ws
}

func writeFile(t *testing.T, ws *workspace.Workspace, rel, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(filepath.Join(ws.Root(), rel)), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(ws.Root(), rel), []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestResolveRejectsAbsolutePath(t *testing.T) {
	ws := newWorkspace(t)
	abs, err := filepath.Abs(".")
	if err != nil {
		t.Skipf("cannot compute absolute path: %v", err)
	}
	_, err = ws.Resolve(abs)
	var escape *workspace.PathEscapeError
	if !errors.As(err, &escape) {
		t.Fatalf("expected PathEscapeError, got %v", err)
	}
}

func TestResolveRejectsParentTraversal(t *testing.T) {
	ws := newWorkspace(t)
	for _, p := range []string{"..", "../x", "a/../../x", "../../etc/passwd"} {
		_, err := ws.Resolve(p)
		var escape *workspace.PathEscapeError
		if !errors.As(err, &escape) {
			t.Errorf("Resolve(%q): expected PathEscapeError, got %v", p, err)
		}
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test skipped on Windows")
	}
	ws := newWorkspace(t)
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(ws.Root(), "out")); err != nil {
		t.Skipf("symlink not allowed on this FS: %v", err)
	}
	_, err := ws.Resolve("out/escape.txt")
	var escape *workspace.PathEscapeError
	if !errors.As(err, &escape) {
		t.Fatalf("expected PathEscapeError for symlink escape, got %v", err)
	}
}

func TestWriteEscapePerformsNoMutation(t *testing.T) {
	ws := newWorkspace(t)
	err := ws.WriteFile("../escape.txt", "nope")
	var escape *workspace.PathEscapeError
	if !errors.As(err, &escape) {
		t.Fatalf("expected PathEscapeError, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(filepath.Dir(ws.Root()), "escape.txt")); !os.IsNotExist(statErr) {
		t.Fatal("escaping write must not touch the filesystem")
	}
}

func TestReadWriteRoundTrip(t *testing.T) {
	ws := newWorkspace(t)
	if err := ws.WriteFile("nested/dir/hello.txt", "hello"); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ws.ReadFile("nested/dir/hello.txt")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got != "hello" {
		t.Fatalf("got %q, want %q", got, "hello")
	}
}

func TestWriteWithoutParentCreationFails(t *testing.T) {
	ws := newWorkspace(t, workspace.WithParentCreation(false))
	if err := ws.WriteFile("missing/dir/file.txt", "x"); err == nil {
		t.Fatal("expected error when parent creation is disabled")
	}
	if _, err := os.Stat(filepath.Join(ws.Root(), "missing")); !os.IsNotExist(err) {
		t.Fatal("directory must not be created")
	}
}

func TestReadDirectoryFails(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws, "sub/file.txt", "x")
	if _, err := ws.ReadFile("sub"); err == nil {
		t.Fatal("expected error reading a directory")
	}
}

func TestEditReplacesAllOccurrences(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws, "main.go", "foo bar foo")
	created, replaced, err := ws.Edit("main.go", "foo", "baz")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if created || replaced != 2 {
		t.Fatalf("created=%v replaced=%d, want false/2", created, replaced)
	}
	got, _ := ws.ReadFile("main.go")
	if got != "baz bar baz" {
		t.Fatalf("got %q", got)
	}
}

func TestEditConflictLeavesFileUnchanged(t *testing.T) {
	ws := newWorkspace(t)
	original := "the current content"
	writeFile(t, ws, "notes.txt", original)

	_, _, err := ws.Edit("notes.txt", "stale snapshot", "new")
	var conflict *workspace.EditConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected EditConflictError, got %v", err)
	}
	got, _ := ws.ReadFile("notes.txt")
	if got != original {
		t.Fatalf("file changed on conflict: %q", got)
	}
}

func TestEditCreatesFileWhenOldEmpty(t *testing.T) {
	ws := newWorkspace(t)
	created, _, err := ws.Edit("fresh.txt", "", "contents")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !created {
		t.Fatal("expected created=true")
	}
	got, _ := ws.ReadFile("fresh.txt")
	if got != "contents" {
		t.Fatalf("got %q", got)
	}
}

func TestEditMissingFileWithOldStrFails(t *testing.T) {
	ws := newWorkspace(t)
	if _, _, err := ws.Edit("absent.txt", "x", "y"); err == nil {
		t.Fatal("expected error for missing file with non-empty old_str")
	}
}

func TestListFilesRespectsGitignore(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws, ".gitignore", "*.log\nbuild/\n")
	writeFile(t, ws, "src/main.go", "package main")
	writeFile(t, ws, "debug.log", "noise")
	writeFile(t, ws, "build/out.bin", "bin")
	writeFile(t, ws, ".git/HEAD", "ref")

	got, err := ws.ListFiles(context.Background(), ".")
	if err != nil {
		t.Fatalf("ListFiles: %v", err)
	}
	want := []string{".gitignore", "src/", "src/main.go"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestSearchFindsMatchesWithLineNumbers(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws, "a.go", "package a\nfunc Hello() {}\n")
	writeFile(t, ws, "b.go", "package b\nfunc Hello() {}\nfunc HelloAgain() {}\n")

	matches, err := ws.Search(context.Background(), `func Hello`, ".", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 3 {
		t.Fatalf("got %d matches, want 3", len(matches))
	}
	if matches[0].Line != 2 {
		t.Fatalf("line = %d, want 2", matches[0].Line)
	}
}

func TestSearchHonorsMaxResults(t *testing.T) {
	ws := newWorkspace(t)
	writeFile(t, ws, "big.txt", "hit\nhit\nhit\nhit\n")
	matches, err := ws.Search(context.Background(), "hit", ".", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
}

func TestSearchRejectsInvalidPattern(t *testing.T) {
	ws := newWorkspace(t)
	if _, err := ws.Search(context.Background(), "(", ".", 0); err == nil {
		t.Fatal("expected error for invalid regexp")
	}
}

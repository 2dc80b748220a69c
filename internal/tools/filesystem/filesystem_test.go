package filesystem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace() error: %v", err)
	}
	return w
}

func TestResolveRejectsEscapes(t *testing.T) {
	w := newTestWorkspace(t)

	tests := []struct {
		name string
		path string
		ok   bool
	}{
		{"plain file", "notes.txt", true},
		{"nested file", "a/b/c.txt", true},
		{"dot", ".", true},
		{"dotdot inside", "a/../b.txt", true},
		{"parent escape", "../outside.txt", false},
		{"deep escape", "a/../../outside.txt", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.resolve(tt.path)
			if tt.ok && err != nil {
				t.Errorf("resolve(%q) error: %v", tt.path, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("resolve(%q) = nil error, want rejection", tt.path)
			}
		})
	}
}

func TestWriteReadDeleteRoundTrip(t *testing.T) {
	w := newTestWorkspace(t)
	ctx := context.Background()

	msg, err := w.WriteFile().Fn(ctx, map[string]any{
		"path":    "docs/readme.md",
		"content": "hello workspace",
	})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(msg.(string), "15 bytes") {
		t.Errorf("write message = %q", msg)
	}

	got, err := w.ReadFile().Fn(ctx, map[string]any{"path": "docs/readme.md"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != "hello workspace" {
		t.Errorf("read = %q", got)
	}

	if _, err := w.DeleteFile().Fn(ctx, map[string]any{"path": "docs/readme.md"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := w.ReadFile().Fn(ctx, map[string]any{"path": "docs/readme.md"}); err == nil {
		t.Error("read after delete succeeded")
	}
}

func TestReadRejectsDirectories(t *testing.T) {
	w := newTestWorkspace(t)
	if err := os.MkdirAll(filepath.Join(w.Root(), "subdir"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := w.ReadFile().Fn(context.Background(), map[string]any{"path": "subdir"}); err == nil {
		t.Error("reading a directory succeeded")
	}
}

func TestReadTruncatesLargeFiles(t *testing.T) {
	w := newTestWorkspace(t)
	big := strings.Repeat("x", maxReadBytes+100)
	if err := os.WriteFile(filepath.Join(w.Root(), "big.txt"), []byte(big), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := w.ReadFile().Fn(context.Background(), map[string]any{"path": "big.txt"})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	s := got.(string)
	if !strings.Contains(s, "file truncated") {
		t.Error("truncation note missing")
	}
	if len(s) > maxReadBytes+100 {
		t.Errorf("truncated read is %d bytes", len(s))
	}
}

func TestDeleteRefusesDirectories(t *testing.T) {
	w := newTestWorkspace(t)
	if err := os.MkdirAll(filepath.Join(w.Root(), "keep"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := w.DeleteFile().Fn(context.Background(), map[string]any{"path": "keep"}); err == nil {
		t.Error("deleting a directory succeeded")
	}
}

func TestListFilesHonorsGitignore(t *testing.T) {
	w := newTestWorkspace(t)
	files := map[string]string{
		".gitignore":      "*.log\nbuild/\n",
		"main.go":         "package main",
		"debug.log":       "noise",
		"build/out.bin":   "bin",
		"src/lib.go":      "package lib",
		".git/HEAD":       "ref",
		"src/notes.log":   "noise",
		"docs/guide.md":   "guide",
	}
	for rel, content := range files {
		full := filepath.Join(w.Root(), filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := w.ListFiles().Fn(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	listing := got.(string)

	for _, want := range []string{"main.go", "src/lib.go", "docs/guide.md", "src/"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing missing %q:\n%s", want, listing)
		}
	}
	for _, skip := range []string{"debug.log", "build/", ".git", "notes.log"} {
		if strings.Contains(listing, skip) {
			t.Errorf("listing contains ignored entry %q:\n%s", skip, listing)
		}
	}
}

func TestListFilesEmptyWorkspace(t *testing.T) {
	w := newTestWorkspace(t)
	got, err := w.ListFiles().Fn(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got != "(empty)" {
		t.Errorf("list = %q, want (empty)", got)
	}
}

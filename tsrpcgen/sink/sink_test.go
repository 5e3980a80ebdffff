package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestValidatePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "simple", path: "client.ts"},
		{name: "nested", path: "web/src/api/client.ts"},
		{name: "dotfile", path: ".generated.ts"},
		{name: "double dots in name", path: "client..ts"},
		{name: "empty", path: "", wantErr: "empty"},
		{name: "absolute", path: "/etc/passwd", wantErr: "absolute paths not allowed"},
		{name: "windows drive", path: "C:/client.ts", wantErr: "absolute paths not allowed"},
		{name: "traversal", path: "../client.ts", wantErr: "path traversal not allowed"},
		{name: "inner traversal", path: "a/../b.ts", wantErr: "path traversal not allowed"},
		{name: "only dots", path: "..", wantErr: "path traversal not allowed"},
		{name: "current dir prefix", path: "./client.ts", wantErr: "not clean"},
		{name: "double slash", path: "a//b.ts", wantErr: "not clean"},
		{name: "trailing slash", path: "a/", wantErr: "not clean"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(tt.path)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidatePath(%q) error = %v", tt.path, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("ValidatePath(%q) error = %v, want %q", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestMemorySink(t *testing.T) {
	ctx := context.Background()

	t.Run("write and get", func(t *testing.T) {
		s := NewMemorySink()
		if err := s.WriteFile(ctx, "client.ts", []byte("export {}")); err != nil {
			t.Fatal(err)
		}
		if got := string(s.Get("client.ts")); got != "export {}" {
			t.Errorf("Get() = %q", got)
		}
		if s.Get("missing.ts") != nil {
			t.Error("Get() of missing path should be nil")
		}
	})

	t.Run("stores copy", func(t *testing.T) {
		s := NewMemorySink()
		content := []byte("original")
		if err := s.WriteFile(ctx, "a.ts", content); err != nil {
			t.Fatal(err)
		}
		content[0] = 'X'
		got := s.Get("a.ts")
		got[1] = 'Y'
		if string(s.Get("a.ts")) != "original" {
			t.Errorf("stored content was modified: %q", s.Get("a.ts"))
		}
	})

	t.Run("paths sorted and reset", func(t *testing.T) {
		s := NewMemorySink()
		for _, p := range []string{"b.ts", "a.ts"} {
			if err := s.WriteFile(ctx, p, nil); err != nil {
				t.Fatal(err)
			}
		}
		if got := strings.Join(s.Paths(), ","); got != "a.ts,b.ts" {
			t.Errorf("Paths() = %s", got)
		}
		s.Reset()
		if len(s.Paths()) != 0 {
			t.Error("Reset() should clear files")
		}
	})

	t.Run("invalid path", func(t *testing.T) {
		if err := NewMemorySink().WriteFile(ctx, "../x.ts", nil); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := NewMemorySink().WriteFile(cctx, "x.ts", nil); err == nil {
			t.Error("expected error for canceled context")
		}
	})
}

func TestMemorySink_Concurrent(t *testing.T) {
	s := NewMemorySink()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.WriteFile(context.Background(), fmt.Sprintf("f%02d.ts", i), []byte("x"))
		}()
	}
	wg.Wait()
	if n := len(s.Paths()); n != 50 {
		t.Errorf("got %d files, want 50", n)
	}
}

func TestFilesystemSink(t *testing.T) {
	ctx := context.Background()

	t.Run("creates parent directories", func(t *testing.T) {
		root := t.TempDir()
		s := NewFilesystemSink(root)
		if err := s.WriteFile(ctx, "web/src/client.ts", []byte("content")); err != nil {
			t.Fatal(err)
		}
		got, err := os.ReadFile(filepath.Join(root, "web", "src", "client.ts"))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != "content" {
			t.Errorf("content = %q", got)
		}
	})

	t.Run("overwrites and leaves no temp files", func(t *testing.T) {
		root := t.TempDir()
		s := NewFilesystemSink(root)
		for _, content := range []string{"first", "second"} {
			if err := s.WriteFile(ctx, "client.ts", []byte(content)); err != nil {
				t.Fatal(err)
			}
		}
		got, _ := os.ReadFile(filepath.Join(root, "client.ts"))
		if string(got) != "second" {
			t.Errorf("content = %q, want second", got)
		}
		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatal(err)
		}
		for _, e := range entries {
			if strings.HasPrefix(e.Name(), ".tsrpc-") {
				t.Errorf("leftover temp file %s", e.Name())
			}
		}
	})

	t.Run("no overwrite", func(t *testing.T) {
		root := t.TempDir()
		s := &FilesystemSink{Root: root}
		if err := s.WriteFile(ctx, "client.ts", []byte("first")); err != nil {
			t.Fatal(err)
		}
		err := s.WriteFile(ctx, "client.ts", []byte("second"))
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("error = %v, want already exists", err)
		}
		got, _ := os.ReadFile(filepath.Join(root, "client.ts"))
		if string(got) != "first" {
			t.Errorf("content = %q, want first", got)
		}
	})

	t.Run("file mode", func(t *testing.T) {
		root := t.TempDir()
		s := NewFilesystemSink(root)
		s.Mode = 0600
		if err := s.WriteFile(ctx, "client.ts", nil); err != nil {
			t.Fatal(err)
		}
		info, err := os.Stat(filepath.Join(root, "client.ts"))
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("mode = %v, want 0600", info.Mode().Perm())
		}
	})

	t.Run("parent is a file", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, "blocker"), nil, 0644); err != nil {
			t.Fatal(err)
		}
		err := NewFilesystemSink(root).WriteFile(ctx, "blocker/client.ts", nil)
		if err == nil || !strings.Contains(err.Error(), "failed to create directories") {
			t.Errorf("error = %v", err)
		}
	})

	t.Run("context cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := NewFilesystemSink(t.TempDir()).WriteFile(cctx, "client.ts", nil); err == nil {
			t.Error("expected error for canceled context")
		}
	})
}

func TestForFile(t *testing.T) {
	s, name := ForFile(filepath.Join("web", "src", "client.ts"))
	if s.Root != filepath.Join("web", "src") {
		t.Errorf("Root = %q", s.Root)
	}
	if name != "client.ts" {
		t.Errorf("name = %q", name)
	}
	if !s.Overwrite {
		t.Error("ForFile sink should overwrite")
	}
}

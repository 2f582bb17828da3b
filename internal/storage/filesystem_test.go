package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFileStoreWriteReturnsPublicURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "https://cdn.example.com/archive")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	url, err := store.Write(context.Background(), "jobs/job-1/output.mp4", "video/mp4", strings.NewReader("payload"), 7)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if url != "https://cdn.example.com/archive/jobs/job-1/output.mp4" {
		t.Fatalf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "jobs", "job-1", "output.mp4"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("content = %q", data)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	for _, key := range []string{"", "../escape.mp4", "a/../../escape.mp4"} {
		if _, err := store.Write(context.Background(), key, "video/mp4", strings.NewReader("x"), 1); err == nil {
			t.Fatalf("Write(%q) should fail", key)
		}
	}
}

package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreWriteAndURL(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "https://media.example.com")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	key, err := store.Write(context.Background(), "generated/videos/task-1/video.mp4", "video/mp4", []byte("payload"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "generated/videos/task-1/video.mp4" {
		t.Fatalf("key = %q", key)
	}
	data, err := os.ReadFile(filepath.Join(dir, "generated", "videos", "task-1", "video.mp4"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "payload" {
		t.Fatalf("data = %q", data)
	}
	if got := store.URL(key); got != "https://media.example.com/generated/videos/task-1/video.mp4" {
		t.Fatalf("url = %q", got)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, key := range []string{"../escape.mp4", "a/../../escape.mp4", "", "."} {
		if _, err := store.Write(context.Background(), key, "video/mp4", []byte("x")); err == nil {
			t.Fatalf("key %q should have been rejected", key)
		}
	}
}

func TestFileStoreNormalizesKeys(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	key, err := store.Write(context.Background(), "/generated//videos/./task-1/video.mp4", "video/mp4", []byte("x"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if key != "generated/videos/task-1/video.mp4" {
		t.Fatalf("key = %q", key)
	}
}

func TestFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  ", ""); err == nil {
		t.Fatalf("expected error for empty base path")
	}
}

package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCache_Load(t *testing.T) {
	t.Run("Starts Empty if File Missing", func(t *testing.T) {
		c := newCache(t.TempDir(), ".memovault")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected empty entries, got %d", c.Len())
		}
	})

	t.Run("Resets on Corrupted JSON", func(t *testing.T) {
		tmpDir := t.TempDir()
		os.MkdirAll(filepath.Join(tmpDir, ".memovault"), 0755)
		os.WriteFile(filepath.Join(tmpDir, ".memovault", "index.json"), []byte("{not json"), 0644)

		c := newCache(tmpDir, ".memovault")
		if err := c.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if c.Len() != 0 {
			t.Errorf("Expected reset cache, got %d entries", c.Len())
		}
	})
}

func TestCache_RoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "n1.json")
	os.WriteFile(file, []byte("hello"), 0644)
	info, err := os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}

	c := newCache(tmpDir, ".memovault")
	c.Set("memos/n1", info)
	c.Set("versions/000000000001", info)
	if err := c.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded := newCache(tmpDir, ".memovault")
	if err := loaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !loaded.Matches("memos/n1", info) {
		t.Error("expected the reloaded entry to match the file stat")
	}
	if got := loaded.Bytes(); got != 10 {
		t.Errorf("Bytes = %d, want 10", got)
	}

	loaded.PrunePrefix("memos/")
	if _, ok := loaded.Get("memos/n1"); ok {
		t.Error("PrunePrefix kept memos/n1")
	}
	if loaded.Len() != 1 {
		t.Errorf("Len = %d, want 1", loaded.Len())
	}
}

func TestCache_MatchesDetectsForeignWrites(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "n1.json")
	os.WriteFile(file, []byte("mine"), 0644)
	mine, _ := os.Stat(file)

	c := newCache(tmpDir, ".memovault")
	c.Set("memos/n1", mine)

	os.WriteFile(file, []byte("someone else's"), 0644)
	theirs, _ := os.Stat(file)
	if c.Matches("memos/n1", theirs) {
		t.Error("a foreign write of a different size must not match")
	}
}

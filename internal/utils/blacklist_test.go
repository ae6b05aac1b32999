package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadBlacklist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blacklist.txt")
	content := "# junk sections\nxxx\n\n  dual audio fan dub  \n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write fixture: %v", err)
	}

	bl, err := LoadBlacklist(path)
	if err != nil {
		t.Fatalf("LoadBlacklist failed: %v", err)
	}

	if matched, term := bl.IsBlacklisted("Some Show XXX Special S01E01"); !matched || term != "xxx" {
		t.Errorf("Expected xxx to match, got %v/%s", matched, term)
	}
	if matched, _ := bl.IsBlacklisted("Kayamai (2023) S01 EP01 [Tamil] WEB-DL"); matched {
		t.Error("Clean title should not match")
	}
	// comment lines are not terms
	if matched, _ := bl.IsBlacklisted("# junk sections"); matched {
		t.Error("Comment line should not have been loaded")
	}
}

func TestLoadBlacklistMissingFile(t *testing.T) {
	bl, err := LoadBlacklist(filepath.Join(t.TempDir(), "does-not-exist.txt"))
	if err != nil {
		t.Fatalf("Missing file should yield an empty blacklist, got error: %v", err)
	}
	if matched, _ := bl.IsBlacklisted("anything at all"); matched {
		t.Error("Empty blacklist should match nothing")
	}
}

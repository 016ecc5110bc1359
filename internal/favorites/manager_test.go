package favorites

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFile(t *testing.T) {
	m := NewManager(t.TempDir())

	favs, err := m.Load()
	if err != nil {
		t.Fatalf("missing file must not be an error: %v", err)
	}
	if favs != nil {
		t.Errorf("expected no favorites, got %v", favs)
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	m := NewManager(t.TempDir())

	want := []string{"SELECT 1", "SELECT * FROM users WHERE id = 7"}
	if err := m.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := m.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("favorite %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestSave_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "config")
	m := NewManager(dir)

	if err := m.Save([]string{"SELECT 1"}); err != nil {
		t.Fatalf("save into missing directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "favorites.json")); err != nil {
		t.Errorf("expected favorites file on disk: %v", err)
	}
}

func TestLoad_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "favorites.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write corrupt file: %v", err)
	}

	if _, err := NewManager(dir).Load(); err == nil {
		t.Error("expected error for corrupt favorites file")
	}
}

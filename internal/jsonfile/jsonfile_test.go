package jsonfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.json")

	v := map[string]any{"name": "café <x>", "n": 1}
	if err := Save(path, v); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "{\n    \"n\": 1,\n    \"name\": \"café <x>\"\n}\n"
	if string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
}

func TestLoadMissing(t *testing.T) {
	var v map[string]any
	found, err := Load(filepath.Join(t.TempDir(), "nope.json"), &v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if found {
		t.Error("Load() found = true for missing file")
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var v map[string]any
	found, err := Load(path, &v)
	if !found {
		t.Error("Load() found = false for existing file")
	}
	if !errors.Is(err, ErrInvalid) {
		t.Errorf("Load() error = %v, want ErrInvalid", err)
	}
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rt.json")
	in := map[string][]string{"a": {"x", "y"}}
	if err := Save(path, in); err != nil {
		t.Fatal(err)
	}
	var out map[string][]string
	found, err := Load(path, &out)
	if err != nil || !found {
		t.Fatalf("Load() = %v, %v", found, err)
	}
	if len(out["a"]) != 2 || out["a"][1] != "y" {
		t.Errorf("Load() = %v", out)
	}
}

func tempFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestSaveReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")
	if err := os.WriteFile(path, []byte(`{"old": true, "padding": "longer than the new content"}`), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Save(path, map[string]int{"n": 2}); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := "{\n    \"n\": 2\n}\n"; string(data) != want {
		t.Errorf("file = %q, want %q", data, want)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm&0o044 != 0o044 {
		t.Errorf("file mode = %v, want group and other readable", perm)
	}
	if left := tempFiles(t, dir); len(left) != 0 {
		t.Errorf("temporary files left behind: %v", left)
	}
}

func TestSaveFailureKeepsTarget(t *testing.T) {
	dir := t.TempDir()

	// A bad value fails before the file is touched.
	path := filepath.Join(dir, "out.json")
	orig := []byte(`{"kept": true}`)
	if err := os.WriteFile(path, orig, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Save(path, map[string]any{"ch": make(chan int)}); err == nil {
		t.Fatal("Save(chan) error = nil")
	}
	if data, _ := os.ReadFile(path); string(data) != string(orig) {
		t.Errorf("file = %q after failed Save, want %q", data, orig)
	}

	// A rename onto a non-empty directory fails after the data is written.
	blocked := filepath.Join(dir, "blocked.json")
	if err := os.MkdirAll(filepath.Join(blocked, "child"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := Save(blocked, map[string]int{"n": 1}); err == nil {
		t.Fatal("Save() over a directory error = nil")
	}
	if left := tempFiles(t, dir); len(left) != 0 {
		t.Errorf("temporary files left behind: %v", left)
	}
}

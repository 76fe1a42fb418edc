// Package sink writes extracted DDL text to one .sql file per object under a
// per-database output directory.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Dir writes SQL files below a base directory.
type Dir struct {
	base    string
	written map[string]string // lower-cased category/file -> object name

	// OnCollision, when set, is called when name sanitizes to a file already
	// written for a different object; file is the name actually used.
	OnCollision func(category, name, file string)
}

// New returns a Dir rooted at base, creating it if absent.
func New(base string) (*Dir, error) {
	d := &Dir{}
	if err := d.ChangeBaseDir(base); err != nil {
		return nil, err
	}
	return d, nil
}

// BaseDir returns the current base directory.
func (d *Dir) BaseDir() string { return d.base }

// ChangeBaseDir redirects subsequent writes to dir, creating it if absent.
func (d *Dir) ChangeBaseDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("sink: create %s: %w", dir, err)
	}
	d.base = dir
	d.written = make(map[string]string)
	return nil
}

// SaveSQL writes content to <base>/<category>/<sanitized name>.sql and returns
// the path relative to the base directory, with forward slashes. When two
// objects sanitize to the same file (`a/b` and `a_b`), the later one gets a
// numeric suffix instead of overwriting the first.
func (d *Dir) SaveSQL(category, name, content string) (string, error) {
	folder := filepath.Join(d.base, category)
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return "", fmt.Errorf("sink: create %s: %w", folder, err)
	}

	file := d.claim(category, name)
	if err := os.WriteFile(filepath.Join(folder, file), []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("sink: write %s/%s: %w", category, file, err)
	}
	return category + "/" + file, nil
}

// claim picks the file name for name in category and records it. Keys are
// case-folded so the result is also distinct on case-insensitive filesystems.
func (d *Dir) claim(category, name string) string {
	if d.written == nil {
		d.written = make(map[string]string)
	}
	stem := SanitizeName(name)
	file := stem + ".sql"
	for n := 2; ; n++ {
		key := strings.ToLower(category + "/" + file)
		owner, taken := d.written[key]
		if !taken || owner == name {
			d.written[key] = name
			break
		}
		file = fmt.Sprintf("%s_%d.sql", stem, n)
	}
	if file != stem+".sql" && d.OnCollision != nil {
		d.OnCollision(category, name, file)
	}
	return file
}

var nameReplacer = strings.NewReplacer(
	"`", "",
	`"`, "",
	"[", "",
	"]", "",
	"/", "_",
	`\`, "_",
	":", "_",
)

// SanitizeName strips quoting characters from an object name and replaces
// path separators so the result is a single safe path component.
func SanitizeName(name string) string {
	s := nameReplacer.Replace(name)
	switch s {
	case "", ".", "..":
		return strings.ReplaceAll(s, ".", "_") + "_"
	}
	return s
}

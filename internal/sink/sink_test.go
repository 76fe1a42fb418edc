package sink

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveSQL(t *testing.T) {
	base := filepath.Join(t.TempDir(), "appdb")
	d, err := New(base)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rel, err := d.SaveSQL("procedures", "`get_user`", "CREATE PROCEDURE get_user() SELECT 1")
	if err != nil {
		t.Fatalf("SaveSQL() error = %v", err)
	}
	if rel != "procedures/get_user.sql" {
		t.Errorf("SaveSQL() path = %q, want %q", rel, "procedures/get_user.sql")
	}

	data, err := os.ReadFile(filepath.Join(base, "procedures", "get_user.sql"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(data) != "CREATE PROCEDURE get_user() SELECT 1" {
		t.Errorf("file content = %q", data)
	}
}

func TestChangeBaseDir(t *testing.T) {
	root := t.TempDir()
	d, err := New(filepath.Join(root, "one"))
	if err != nil {
		t.Fatal(err)
	}
	if err := d.ChangeBaseDir(filepath.Join(root, "two")); err != nil {
		t.Fatalf("ChangeBaseDir() error = %v", err)
	}
	if d.BaseDir() != filepath.Join(root, "two") {
		t.Errorf("BaseDir() = %q", d.BaseDir())
	}
	if _, err := d.SaveSQL("views", "v", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(root, "two", "views", "v.sql")); err != nil {
		t.Errorf("file not written under new base: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "one", "views")); !os.IsNotExist(err) {
		t.Errorf("old base received writes: %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"users", "users"},
		{"`users`", "users"},
		{"[dbo].[users]", "dbo.users"},
		{`"quoted"`, "quoted"},
		{"a/b", "a_b"},
		{`a\b`, "a_b"},
		{"c:x", "c_x"},
		{"..", "___"},
		{"", "_"},
		{"ünïcode", "ünïcode"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := SanitizeName(tt.in)
			if got != tt.want {
				t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if strings.ContainsAny(got, `/\`) {
				t.Errorf("SanitizeName(%q) = %q contains a path separator", tt.in, got)
			}
		})
	}
}

func TestSaveSQLCollisions(t *testing.T) {
	tests := []struct {
		name       string
		first      string
		second     string
		wantFirst  string
		wantSecond string
	}{
		{"slash and underscore", "a/b", "a_b", "tables/a_b.sql", "tables/a_b_2.sql"},
		{"brackets and bare", "[x]", "x", "tables/x.sql", "tables/x_2.sql"},
		{"case only", "Users", "users", "tables/Users.sql", "tables/users_2.sql"},
		{"same object twice", "orders", "orders", "tables/orders.sql", "tables/orders.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base := t.TempDir()
			d, err := New(base)
			if err != nil {
				t.Fatal(err)
			}
			var reported []string
			d.OnCollision = func(category, name, file string) {
				reported = append(reported, category+":"+name+":"+file)
			}

			got1, err := d.SaveSQL("tables", tt.first, "-- "+tt.first)
			if err != nil {
				t.Fatal(err)
			}
			got2, err := d.SaveSQL("tables", tt.second, "-- "+tt.second)
			if err != nil {
				t.Fatal(err)
			}
			if got1 != tt.wantFirst || got2 != tt.wantSecond {
				t.Errorf("SaveSQL() = %q, %q, want %q, %q", got1, got2, tt.wantFirst, tt.wantSecond)
			}

			if tt.first == tt.second {
				if len(reported) != 0 {
					t.Errorf("OnCollision called for a rewrite: %v", reported)
				}
				return
			}
			if len(reported) != 1 {
				t.Fatalf("OnCollision calls = %v, want 1", reported)
			}
			for rel, want := range map[string]string{got1: "-- " + tt.first, got2: "-- " + tt.second} {
				data, err := os.ReadFile(filepath.Join(base, filepath.FromSlash(rel)))
				if err != nil {
					t.Fatal(err)
				}
				if string(data) != want {
					t.Errorf("%s = %q, want %q", rel, data, want)
				}
			}
		})
	}
}

func TestCollisionsResetPerBaseDir(t *testing.T) {
	root := t.TempDir()
	d, err := New(filepath.Join(root, "one"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.SaveSQL("views", "a/b", "x"); err != nil {
		t.Fatal(err)
	}
	if err := d.ChangeBaseDir(filepath.Join(root, "two")); err != nil {
		t.Fatal(err)
	}
	rel, err := d.SaveSQL("views", "a_b", "y")
	if err != nil {
		t.Fatal(err)
	}
	if rel != "views/a_b.sql" {
		t.Errorf("SaveSQL() after ChangeBaseDir = %q, want %q", rel, "views/a_b.sql")
	}
}

package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sadopc/schemadoc/internal/adapter"
	"github.com/sadopc/schemadoc/internal/config"
	"github.com/sadopc/schemadoc/internal/history"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func missingConfig(t *testing.T) string {
	return filepath.Join(t.TempDir(), "none.yaml")
}

func TestValidationFailsBeforeConnecting(t *testing.T) {
	skip := filepath.Join(t.TempDir(), "skip.json")
	if err := os.WriteFile(skip, []byte(`["legacy", "master"]`), 0o644); err != nil {
		t.Fatal(err)
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"legacy": true}`), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
		want error
	}{
		{"unsupported engine", []string{"--engine", "oracle", "-u", "x"}, adapter.ErrUnsupportedEngine},
		{"db-type alias", []string{"--db-type", "postgres", "-u", "x"}, adapter.ErrUnsupportedEngine},
		{"missing user", []string{"--engine", "mysql"}, config.ErrMissingCredentials},
		{"trusted mysql", []string{"--engine", "mysql", "--trusted"}, config.ErrMissingCredentials},
		{"empty host", []string{"--engine", "mssql", "-u", "sa", "-H", ""}, config.ErrMissingHost},
		{"system restriction", []string{"--engine", "mssql", "-u", "sa", "--restriction-list", skip}, config.ErrRestrictedSystem},
		{"invalid restriction list", []string{"--engine", "mssql", "-u", "sa", "--restriction-list", bad}, config.ErrInvalidRestrictionList},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"--config", missingConfig(t), "--no-history"}, tt.args...)
			_, err := execute(t, args...)
			if !errors.Is(err, tt.want) {
				t.Errorf("Execute(%v) error = %v, want %v", tt.args, err, tt.want)
			}
		})
	}
}

func TestUnsupportedEngineSuggests(t *testing.T) {
	_, err := execute(t, "--config", missingConfig(t), "--engine", "mysq", "-u", "root")
	if err == nil || !strings.Contains(err.Error(), `did you mean "mysql"`) {
		t.Errorf("Execute() error = %v, want suggestion", err)
	}
}

func TestConfigFileValuesApply(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("engine: mssql\ntrusted: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Trusted auth is valid for the file's engine but not for the flag's.
	_, err := execute(t, "--config", path, "--engine", "mysql")
	if !errors.Is(err, config.ErrMissingCredentials) {
		t.Errorf("Execute() error = %v, want ErrMissingCredentials", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	for _, want := range []string{"schemadoc dev", "  - mariadb", "  - mssql", "  - mysql"} {
		if !strings.Contains(out, want) {
			t.Errorf("version output missing %q:\n%s", want, out)
		}
	}
}

func TestShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.sql")
	script := "CREATE TABLE `users` (\n    `id` INT NOT NULL\n);"
	if err := os.WriteFile(path, []byte(script), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "show", path)
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	if !strings.Contains(out, "users") || strings.Count(out, "\n") != 3 {
		t.Errorf("show output = %q", out)
	}

	if _, err := execute(t, "show", filepath.Join(t.TempDir(), "missing.sql")); err == nil {
		t.Error("show on a missing file returned nil error")
	}
}

func TestHistoryCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	h, err := history.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Add(history.Entry{Engine: "mysql", Host: "db.local", DatabaseName: "appdb", Status: "ok", ObjectCount: 7}); err != nil {
		t.Fatal(err)
	}
	h.Close()

	out, err := execute(t, "history", "--config", missingConfig(t), "--history", path)
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	for _, want := range []string{"DATABASE", "appdb", "db.local", "ok"} {
		if !strings.Contains(out, want) {
			t.Errorf("history output missing %q:\n%s", want, out)
		}
	}

	if _, err := execute(t, "history", "--config", missingConfig(t), "--history", path, "--clear"); err != nil {
		t.Fatalf("history --clear error = %v", err)
	}
	out, err = execute(t, "history", "--config", missingConfig(t), "--history", path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No history recorded.") {
		t.Errorf("history after clear = %q", out)
	}
}

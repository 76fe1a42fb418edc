package adapter

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
)

// mockAdapter is a minimal adapter for testing the registry.
type mockAdapter struct {
	name string
	port int
}

func (m *mockAdapter) Name() string              { return m.name }
func (m *mockAdapter) DefaultPort() int          { return m.port }
func (m *mockAdapter) SystemDatabases() []string { return []string{"sys"} }
func (m *mockAdapter) Connect(_ context.Context, _ ConnectOptions) (Connection, error) {
	return nil, errors.New("mock: not implemented")
}

// swapRegistry replaces the registry for the duration of a test.
func swapRegistry(t *testing.T) {
	t.Helper()
	orig := Registry
	Registry = map[string]Adapter{}
	t.Cleanup(func() { Registry = orig })
}

func TestRegister(t *testing.T) {
	swapRegistry(t)

	mock := &mockAdapter{name: "testdb", port: 9999}
	Register(mock)

	got, ok := Registry["testdb"]
	if !ok {
		t.Fatal("expected adapter 'testdb' to be registered")
	}
	if got.Name() != "testdb" {
		t.Errorf("Name() = %q, want %q", got.Name(), "testdb")
	}
	if got.DefaultPort() != 9999 {
		t.Errorf("DefaultPort() = %d, want %d", got.DefaultPort(), 9999)
	}
}

func TestRegister_Multiple(t *testing.T) {
	swapRegistry(t)

	adapters := []struct {
		name string
		port int
	}{
		{"alpha", 1111},
		{"bravo", 2222},
		{"charlie", 3333},
	}

	for _, a := range adapters {
		Register(&mockAdapter{name: a.name, port: a.port})
	}

	if len(Registry) != 3 {
		t.Fatalf("expected 3 adapters in registry, got %d", len(Registry))
	}

	for _, a := range adapters {
		got, ok := Registry[a.name]
		if !ok {
			t.Errorf("adapter %q not found in registry", a.name)
			continue
		}
		if got.DefaultPort() != a.port {
			t.Errorf("DefaultPort() for %q = %d, want %d", a.name, got.DefaultPort(), a.port)
		}
	}
}

func TestLookupAndAlias(t *testing.T) {
	swapRegistry(t)

	my := &mockAdapter{name: "mysql", port: 3306}
	Register(my)
	RegisterAlias("mariadb", my)

	tests := []struct {
		engine string
		ok     bool
	}{
		{"mysql", true},
		{"MySQL", true},
		{"  mariadb ", true},
		{"postgres", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.engine, func(t *testing.T) {
			a, ok := Lookup(tt.engine)
			if ok != tt.ok {
				t.Fatalf("Lookup(%q) ok = %v, want %v", tt.engine, ok, tt.ok)
			}
			if ok && a != Adapter(my) {
				t.Errorf("Lookup(%q) returned a different adapter", tt.engine)
			}
		})
	}

	if got := Names(); !reflect.DeepEqual(got, []string{"mariadb", "mysql"}) {
		t.Errorf("Names() = %v", got)
	}
}

func TestWithPort(t *testing.T) {
	a := &mockAdapter{name: "x", port: 1433}

	if got := WithPort(a, ConnectOptions{}).Port; got != 1433 {
		t.Errorf("WithPort() default = %d, want 1433", got)
	}
	if got := WithPort(a, ConnectOptions{Port: 14330}).Port; got != 14330 {
		t.Errorf("WithPort() explicit = %d, want 14330", got)
	}
}

func TestDeniedMessage(t *testing.T) {
	msg := DeniedMessage("procedures", errors.New("Error 1142: SELECT command denied"))
	if !strings.HasPrefix(msg, "insufficient privileges to read procedures") {
		t.Errorf("DeniedMessage() = %q", msg)
	}
	if !strings.Contains(msg, "1142") {
		t.Errorf("DeniedMessage() dropped the cause: %q", msg)
	}
}

func TestErrors(t *testing.T) {
	if errors.Is(ErrNoDatabase, ErrDefinitionHidden) {
		t.Error("ErrNoDatabase and ErrDefinitionHidden should be distinct")
	}
	if ErrNoDatabase.Error() == ErrDefinitionHidden.Error() {
		t.Error("expected distinct error messages")
	}
}

func TestSuggest(t *testing.T) {
	swapRegistry(t)
	for _, name := range []string{"mysql", "mssql", "mariadb"} {
		Register(&mockAdapter{name: name})
	}

	tests := []struct {
		input string
		want  string
	}{
		{"mysq", "mysql"},
		{"MARIA", "mariadb"},
		{"mssqlserver", "mssql"},
		{"oracle", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Suggest(tt.input); got != tt.want {
			t.Errorf("Suggest(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLookupOrSuggest(t *testing.T) {
	swapRegistry(t)
	Register(&mockAdapter{name: "mysql"})
	Register(&mockAdapter{name: "mssql"})

	if a, err := LookupOrSuggest(" MySQL "); err != nil || a.Name() != "mysql" {
		t.Errorf("LookupOrSuggest(MySQL) = %v, %v", a, err)
	}

	_, err := LookupOrSuggest("mysq")
	if !errors.Is(err, ErrUnsupportedEngine) {
		t.Fatalf("LookupOrSuggest(mysq) error = %v, want ErrUnsupportedEngine", err)
	}
	for _, want := range []string{`did you mean "mysql"`, "supported: mssql, mysql"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q lacks %q", err, want)
		}
	}
}

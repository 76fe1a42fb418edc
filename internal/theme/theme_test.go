package theme

import (
	"testing"
)

func TestThemes_AllRegistered(t *testing.T) {
	expected := []string{"default", "light", "monokai"}
	for _, name := range expected {
		if _, ok := Themes[name]; !ok {
			t.Errorf("expected theme %q to be registered", name)
		}
	}
}

func TestThemes_NamesMatch(t *testing.T) {
	for name, th := range Themes {
		if th.Name != name {
			t.Errorf("theme registered as %q has Name=%q", name, th.Name)
		}
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"default", "default"},
		{"light", "light"},
		{"monokai", "monokai"},
		{"nonexistent", "default"},
		{"", "default"},
	}
	for _, tt := range tests {
		th := Get(tt.input)
		if th == nil {
			t.Fatalf("Get(%q) returned nil", tt.input)
		}
		if th.Name != tt.want {
			t.Errorf("Get(%q).Name = %q, want %q", tt.input, th.Name, tt.want)
		}
	}
}

func TestTheme_StylesRender(t *testing.T) {
	for name, th := range Themes {
		t.Run(name, func(t *testing.T) {
			pairs := []struct {
				label string
				out   string
			}{
				{"LevelInfo", th.LevelInfo.Render("INFO")},
				{"LevelDebug", th.LevelDebug.Render("DEBUG")},
				{"LevelWarning", th.LevelWarning.Render("WARNING")},
				{"LevelError", th.LevelError.Render("ERROR")},
				{"LevelCritical", th.LevelCritical.Render("CRITICAL")},
				{"SQLKeyword", th.SQLKeyword.Render("SELECT")},
				{"SQLComment", th.SQLComment.Render("-- note")},
				{"DatabaseName", th.DatabaseName.Render("appdb")},
			}
			for _, p := range pairs {
				if p.out == "" {
					t.Errorf("%s: %s rendered empty", name, p.label)
				}
			}
			if th.ProgressFull == "" || th.ProgressEmpty == "" {
				t.Errorf("%s: progress colours unset", name)
			}
		})
	}
}

func TestCriticalIsBold(t *testing.T) {
	for name, th := range Themes {
		if !th.LevelCritical.GetBold() {
			t.Errorf("%s: LevelCritical not bold", name)
		}
	}
}

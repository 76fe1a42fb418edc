package ordered

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestSetKeepsInsertionOrder(t *testing.T) {
	var m Map[int]
	m.Set("zeta", 1)
	m.Set("alpha", 2)
	m.Set("mid", 3)
	m.Set("zeta", 4) // overwrite keeps position

	want := []string{"zeta", "alpha", "mid"}
	if got := m.Keys(); !reflect.DeepEqual(got, want) {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
	if v, _ := m.Get("zeta"); v != 4 {
		t.Errorf("Get(zeta) = %d, want 4", v)
	}
	if m.Len() != 3 {
		t.Errorf("Len() = %d, want 3", m.Len())
	}
}

func TestDelete(t *testing.T) {
	var m Map[string]
	m.Set("a", "1")
	m.Set("b", "2")
	m.Set("c", "3")

	m.Delete("b")
	m.Delete("missing")

	if got := m.Keys(); !reflect.DeepEqual(got, []string{"a", "c"}) {
		t.Errorf("Keys() = %v, want [a c]", got)
	}
	if m.Has("b") {
		t.Error("Has(b) = true after Delete")
	}

	m.Delete("a")
	m.Delete("c")
	if !reflect.DeepEqual(m, Map[string]{}) {
		t.Errorf("map emptied by Delete should equal the zero value, got %#v", m)
	}
}

func TestMarshalJSON(t *testing.T) {
	var m Map[string]
	m.Set("b", "<b>")
	m.Set("a", "é")

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if got, want := string(data), `{"b":"<b>","a":"é"}`; got != want {
		t.Errorf("Marshal = %s, want %s", got, want)
	}

	var empty Map[int]
	data, err = json.Marshal(empty)
	if err != nil {
		t.Fatalf("Marshal empty: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("Marshal empty = %s, want {}", data)
	}
}

func TestUnmarshalJSONKeepsFileOrder(t *testing.T) {
	var m Map[int]
	if err := json.Unmarshal([]byte(`{"z": 1, "a": 2, "k": 3}`), &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got := m.Keys(); !reflect.DeepEqual(got, []string{"z", "a", "k"}) {
		t.Errorf("Keys() = %v, want [z a k]", got)
	}
}

func TestUnmarshalJSONErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"array", `[1, 2]`},
		{"wrong value type", `{"a": "x"}`},
		{"truncated", `{"a": 1`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Map[int]
			if err := json.Unmarshal([]byte(tt.input), &m); err == nil {
				t.Errorf("Unmarshal(%s) error = nil, want error", tt.input)
			}
		})
	}
}

func TestRoundTripEmptyEqualsZero(t *testing.T) {
	var m Map[int]
	data, _ := json.Marshal(m)
	var back Map[int]
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(m, back) {
		t.Errorf("round trip of empty map = %#v, want zero value", back)
	}
}

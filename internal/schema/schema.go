// Package schema holds the normalized description of one database produced by
// an engine extractor and written to <database>_schema.json.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/sadopc/schemadoc/internal/ordered"
)

// Kind names one object category of a Document.
type Kind string

const (
	KindTables     Kind = "tables"
	KindViews      Kind = "views"
	KindProcedures Kind = "procedures"
	KindFunctions  Kind = "functions"
	KindTriggers   Kind = "triggers"
)

// Kinds lists every category in document order.
var Kinds = []Kind{KindTables, KindViews, KindProcedures, KindFunctions, KindTriggers}

// HasColumns reports whether objects of this kind carry a column map.
func (k Kind) HasColumns() bool {
	return k == KindTables || k == KindViews
}

// Document is the extraction result for one database.
type Document struct {
	Tables     Category[Table]   `json:"tables"`
	Views      Category[View]    `json:"views"`
	Procedures Category[Routine] `json:"procedures"`
	Functions  Category[Routine] `json:"functions"`
	Triggers   Category[Trigger] `json:"triggers"`
}

// Table describes a base table.
type Table struct {
	Comment     string              `json:"comment"`
	Columns     ordered.Map[Column] `json:"columns"`
	PrimaryKey  []string            `json:"primary_key"`
	Indexes     []Index             `json:"indexes"`
	ForeignKeys []ForeignKey        `json:"foreign_keys"`
	Checks      []Check             `json:"checks"`
}

// Column describes a table column.
type Column struct {
	Type       string  `json:"type"`
	Nullable   bool    `json:"nullable"`
	Default    *string `json:"default"`
	Comment    string  `json:"comment"`
	IsVirtual  bool    `json:"is_virtual"`
	Expression string  `json:"expression,omitempty"`
	Stored     bool    `json:"stored,omitempty"` // generated column persisted on disk
}

// Index is a secondary index.
type Index struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Unique  bool     `json:"unique"`
}

// ForeignKey is a foreign key constraint.
type ForeignKey struct {
	Name            string   `json:"name"`
	Columns         []string `json:"columns"`
	ReferredTable   string   `json:"referred_table"`
	ReferredColumns []string `json:"referred_columns"`
}

// Check is a CHECK constraint.
type Check struct {
	Name    string `json:"name"`
	SQLText string `json:"sqltext"`
}

// View describes a view. Definition and DefinitionFile are mutually exclusive
// and both may be empty when the server hides the view text.
type View struct {
	Comment        string                  `json:"comment"`
	Columns        ordered.Map[ViewColumn] `json:"columns"`
	Definition     string                  `json:"definition,omitempty"`
	DefinitionFile string                  `json:"definition_file,omitempty"`
}

// ViewColumn describes a view column.
type ViewColumn struct {
	Type string `json:"type"`
}

// Routine is a stored procedure or function.
type Routine struct {
	Definition     string `json:"definition,omitempty"`
	DefinitionFile string `json:"definition_file,omitempty"`
}

// Trigger is a table trigger. The catalog fields available differ per engine.
type Trigger struct {
	Table          string `json:"table,omitempty"`
	Timing         string `json:"timing,omitempty"`
	Event          string `json:"event,omitempty"`
	Type           string `json:"type,omitempty"`
	Definition     string `json:"definition,omitempty"`
	DefinitionFile string `json:"definition_file,omitempty"`
}

// Columns returns the column names of the named table or view in catalog
// order. It returns nil for other kinds, unknown objects and placeholders.
func (d *Document) Columns(kind Kind, name string) []string {
	switch kind {
	case KindTables:
		if e, ok := d.Tables.Objects.Get(name); ok && e.Object != nil {
			return e.Object.Columns.Keys()
		}
	case KindViews:
		if e, ok := d.Views.Objects.Get(name); ok && e.Object != nil {
			return e.Object.Columns.Keys()
		}
	}
	return nil
}

// Names returns the object names of a category in catalog order, including
// per-object placeholders. ok is false when the whole category is a
// placeholder.
func (d *Document) Names(kind Kind) (names []string, ok bool) {
	switch kind {
	case KindTables:
		return d.Tables.Names()
	case KindViews:
		return d.Views.Names()
	case KindProcedures:
		return d.Procedures.Names()
	case KindFunctions:
		return d.Functions.Names()
	case KindTriggers:
		return d.Triggers.Names()
	}
	return nil, false
}

// Placeholder returns the error message stored for the named object when its
// entry is a placeholder.
func (d *Document) Placeholder(kind Kind, name string) (string, bool) {
	var (
		msg string
		ok  bool
	)
	switch kind {
	case KindTables:
		msg, ok = d.Tables.placeholder(name)
	case KindViews:
		msg, ok = d.Views.placeholder(name)
	case KindProcedures:
		msg, ok = d.Procedures.placeholder(name)
	case KindFunctions:
		msg, ok = d.Functions.placeholder(name)
	case KindTriggers:
		msg, ok = d.Triggers.placeholder(name)
	}
	return msg, ok
}

// Count returns the number of objects (placeholders included) in a category.
func (d *Document) Count(kind Kind) int {
	names, _ := d.Names(kind)
	return len(names)
}

// ---------------------------------------------------------------------------
// Category and Entry
// ---------------------------------------------------------------------------

// Category maps object names to descriptors. When Err is set the whole
// category could not be read and Objects is ignored.
type Category[T any] struct {
	Objects ordered.Map[Entry[T]]
	Err     string
}

// Set stores a descriptor under name.
func (c *Category[T]) Set(name string, obj *T) {
	c.Objects.Set(name, Entry[T]{Object: obj})
}

// Fail stores a per-object error placeholder under name.
func (c *Category[T]) Fail(name, msg string) {
	c.Objects.Set(name, Entry[T]{Err: msg})
}

// FailAll turns the whole category into an error placeholder.
func (c *Category[T]) FailAll(msg string) {
	c.Objects = ordered.Map[Entry[T]]{}
	c.Err = msg
}

// Get returns the descriptor stored under name, or nil for placeholders and
// unknown names.
func (c *Category[T]) Get(name string) *T {
	e, ok := c.Objects.Get(name)
	if !ok {
		return nil
	}
	return e.Object
}

// Names returns the object names in insertion order; ok is false when the
// category is a placeholder.
func (c *Category[T]) Names() ([]string, bool) {
	if c.Err != "" {
		return nil, false
	}
	return c.Objects.Keys(), true
}

func (c *Category[T]) placeholder(name string) (string, bool) {
	e, ok := c.Objects.Get(name)
	if !ok || e.Err == "" {
		return "", false
	}
	return e.Err, true
}

// MarshalJSON encodes the category as an object map, or as {"error": msg}
// when the category is a placeholder.
func (c Category[T]) MarshalJSON() ([]byte, error) {
	if c.Err != "" {
		return marshalError(c.Err)
	}
	return c.Objects.MarshalJSON()
}

// UnmarshalJSON decodes either form written by MarshalJSON.
func (c *Category[T]) UnmarshalJSON(b []byte) error {
	if msg, ok := errorOnly(b); ok {
		c.Objects = ordered.Map[Entry[T]]{}
		c.Err = msg
		return nil
	}
	c.Err = ""
	return c.Objects.UnmarshalJSON(b)
}

// Entry is either a descriptor or a per-object error placeholder.
type Entry[T any] struct {
	Object *T
	Err    string
}

// MarshalJSON encodes the descriptor, or {"error": msg} for a placeholder.
func (e Entry[T]) MarshalJSON() ([]byte, error) {
	if e.Err != "" || e.Object == nil {
		return marshalError(e.Err)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e.Object); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes either form written by MarshalJSON.
func (e *Entry[T]) UnmarshalJSON(b []byte) error {
	if msg, ok := errorOnly(b); ok {
		e.Object = nil
		e.Err = msg
		return nil
	}
	obj := new(T)
	if err := json.Unmarshal(b, obj); err != nil {
		return fmt.Errorf("schema: decode object: %w", err)
	}
	e.Object = obj
	e.Err = ""
	return nil
}

// errorOnly reports whether b is exactly {"error": "<string>"}.
func errorOnly(b []byte) (string, bool) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || len(raw) != 1 {
		return "", false
	}
	v, ok := raw["error"]
	if !ok {
		return "", false
	}
	var msg string
	if err := json.Unmarshal(v, &msg); err != nil {
		return "", false
	}
	return msg, true
}

func marshalError(msg string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		Error string `json:"error"`
	}{msg}); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Package docs maintains the user-editable Documentation.json of a database
// and reconciles it with freshly extracted schemas.
//
// The file mirrors the five schema categories. Every object entry carries
// "description" and "remarks" strings; tables and views also carry a
// "columns" map whose entries have the same two fields. Any other key a user
// adds is kept, and objects, columns and fields keep their file order.
package docs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sadopc/schemadoc/internal/jsonfile"
	"github.com/sadopc/schemadoc/internal/ordered"
	"github.com/sadopc/schemadoc/internal/schema"
)

// ErrCorrupt is returned by Open when the documentation file exists but
// cannot be decoded. The file must then be left untouched.
var ErrCorrupt = errors.New("documentation file is corrupt")

const (
	fieldDescription = "description"
	fieldRemarks     = "remarks"
	fieldColumns     = "columns"
)

// Options controls reconciliation.
type Options struct {
	// PruneColumns removes documented columns that are no longer in the
	// schema. By default columns are only ever added.
	PruneColumns bool
}

// Change reports what one UpdateOrRemove call did.
type Change struct {
	Added          []string
	Removed        []string
	ColumnsAdded   []string // "object.column"
	ColumnsRemoved []string
	// Skipped is set when the schema category was an error placeholder.
	Skipped bool
}

// Empty reports whether nothing was changed.
func (c Change) Empty() bool {
	return len(c.Added)+len(c.Removed)+len(c.ColumnsAdded)+len(c.ColumnsRemoved) == 0
}

// Manager holds the documentation of one database.
type Manager struct {
	path  string
	opts  Options
	store ordered.Map[ordered.Map[Note]]
}

// Open loads the documentation file at path. A missing file yields an empty
// store seeded with the five categories.
func Open(path string, opts Options) (*Manager, error) {
	m := &Manager{path: path, opts: opts}
	if _, err := jsonfile.Load(path, &m.store); err != nil {
		if errors.Is(err, jsonfile.ErrInvalid) {
			return nil, fmt.Errorf("docs: %w: %v", ErrCorrupt, err)
		}
		return nil, fmt.Errorf("docs: open: %w", err)
	}
	m.seed()
	return m, nil
}

// Path returns the file the manager reads and writes.
func (m *Manager) Path() string { return m.path }

// Save writes the store back to its file.
func (m *Manager) Save() error {
	m.seed()
	if err := jsonfile.Save(m.path, m.store); err != nil {
		return fmt.Errorf("docs: save: %w", err)
	}
	return nil
}

// Names returns the documented object names of kind in file order.
func (m *Manager) Names(kind schema.Kind) []string {
	cat, _ := m.store.Get(string(kind))
	return cat.Keys()
}

// Lookup returns the documentation of one object.
func (m *Manager) Lookup(kind schema.Kind, name string) (Note, bool) {
	cat, _ := m.store.Get(string(kind))
	return cat.Get(name)
}

// seed adds missing categories in document order.
func (m *Manager) seed() {
	for _, kind := range schema.Kinds {
		if !m.store.Has(string(kind)) {
			m.store.Set(string(kind), ordered.Map[Note]{})
		}
	}
}

// UpdateOrRemove merges one category of doc into the store: documented
// objects missing from doc are removed, new objects get blank entries, and
// for tables and views missing columns are added. Existing description and
// remarks values are never modified.
func (m *Manager) UpdateOrRemove(doc *schema.Document, kind schema.Kind) Change {
	m.seed()

	var ch Change
	names, ok := doc.Names(kind)
	if !ok {
		ch.Skipped = true
		return ch
	}

	current := make(map[string]bool, len(names))
	for _, name := range names {
		current[name] = true
	}

	cat, _ := m.store.Get(string(kind))
	for _, name := range cat.Keys() {
		if !current[name] {
			cat.Delete(name)
			ch.Removed = append(ch.Removed, name)
		}
	}

	for _, name := range names {
		note, ok := cat.Get(name)
		if !ok {
			note = newNote(kind.HasColumns())
			ch.Added = append(ch.Added, name)
		}
		if kind.HasColumns() {
			if _, hidden := doc.Placeholder(kind, name); !hidden {
				added, removed := note.reconcileColumns(doc.Columns(kind, name), m.opts.PruneColumns)
				for _, c := range added {
					ch.ColumnsAdded = append(ch.ColumnsAdded, name+"."+c)
				}
				for _, c := range removed {
					ch.ColumnsRemoved = append(ch.ColumnsRemoved, name+"."+c)
				}
			}
		}
		cat.Set(name, note)
	}

	m.store.Set(string(kind), cat)
	return ch
}

// ---------------------------------------------------------------------------
// Note
// ---------------------------------------------------------------------------

// Note is one documented object or column: its JSON fields in file order.
type Note struct {
	fields  ordered.Map[json.RawMessage]
	columns *ordered.Map[Note] // decoded "columns" field, nil when absent
}

func newNote(withColumns bool) Note {
	var n Note
	n.SetText(fieldDescription, "")
	n.SetText(fieldRemarks, "")
	if withColumns {
		n.columns = &ordered.Map[Note]{}
		n.fields.Set(fieldColumns, nil)
	}
	return n
}

// Description returns the description text.
func (n Note) Description() string { return n.Text(fieldDescription) }

// Remarks returns the remarks text.
func (n Note) Remarks() string { return n.Text(fieldRemarks) }

// Text returns the string value of a field, or "" when it is absent or not a
// string.
func (n Note) Text(key string) string {
	raw, ok := n.fields.Get(key)
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// SetText stores a string field.
func (n *Note) SetText(key, value string) {
	b, _ := json.Marshal(value)
	n.fields.Set(key, b)
}

// Column returns the documentation of one column.
func (n Note) Column(name string) (Note, bool) {
	if n.columns == nil {
		return Note{}, false
	}
	return n.columns.Get(name)
}

// ColumnNames returns the documented column names in file order.
func (n Note) ColumnNames() []string {
	if n.columns == nil {
		return nil
	}
	return n.columns.Keys()
}

func (n *Note) reconcileColumns(columns []string, prune bool) (added, removed []string) {
	if n.columns == nil {
		n.columns = &ordered.Map[Note]{}
		n.fields.Set(fieldColumns, nil)
	}
	if prune {
		current := make(map[string]bool, len(columns))
		for _, c := range columns {
			current[c] = true
		}
		for _, c := range n.columns.Keys() {
			if !current[c] {
				n.columns.Delete(c)
				removed = append(removed, c)
			}
		}
	}
	for _, c := range columns {
		if !n.columns.Has(c) {
			n.columns.Set(c, newNote(false))
			added = append(added, c)
		}
	}
	return added, removed
}

// MarshalJSON encodes the fields in order, with the column map in place of
// the "columns" field.
func (n Note) MarshalJSON() ([]byte, error) {
	var out ordered.Map[json.RawMessage]
	for _, key := range n.fields.Keys() {
		raw, _ := n.fields.Get(key)
		if key == fieldColumns && n.columns != nil {
			b, err := n.columns.MarshalJSON()
			if err != nil {
				return nil, err
			}
			raw = b
		}
		out.Set(key, raw)
	}
	return out.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object. A "columns" field must itself be an
// object of notes.
func (n *Note) UnmarshalJSON(b []byte) error {
	n.fields = ordered.Map[json.RawMessage]{}
	n.columns = nil
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return errors.New("docs: entry is null")
	}
	if err := n.fields.UnmarshalJSON(b); err != nil {
		return err
	}
	if raw, ok := n.fields.Get(fieldColumns); ok {
		cols := &ordered.Map[Note]{}
		if err := cols.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("docs: columns: %w", err)
		}
		n.columns = cols
	}
	return nil
}

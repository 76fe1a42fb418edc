// Package ddl synthesizes CREATE TABLE scripts from extracted table metadata
// and rewrites SQL Server module definitions into re-runnable form.
package ddl

import (
	"fmt"
	"strings"

	"github.com/sadopc/schemadoc/internal/schema"
)

// Dialect controls identifier quoting and how secondary indexes are emitted.
type Dialect struct {
	// Quote returns a quoted identifier.
	Quote func(string) string
	// QuoteObject quotes a table name, which may be schema qualified.
	// Nil means Quote.
	QuoteObject func(string) string
	// InlineIndexes renders secondary indexes as table clauses instead of
	// separate CREATE INDEX statements.
	InlineIndexes bool
	// ColumnComments renders column comments as COMMENT '<text>'.
	ColumnComments bool
	// GeneratedColumns renders generation expressions for virtual columns.
	GeneratedColumns bool
}

// MySQL is the MySQL/MariaDB dialect.
var MySQL = Dialect{
	Quote:            QuoteBacktick,
	InlineIndexes:    true,
	ColumnComments:   true,
	GeneratedColumns: true,
}

// SQLServer is the T-SQL dialect.
var SQLServer = Dialect{
	Quote:       QuoteBracket,
	QuoteObject: QuoteBracketQualified,
}

// QuoteBacktick quotes a MySQL identifier.
func QuoteBacktick(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteBracket quotes a T-SQL identifier.
func QuoteBracket(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteBracketQualified quotes "schema.name" as [schema].[name] and a bare
// name as [name].
func QuoteBracketQualified(name string) string {
	if schemaName, object, ok := strings.Cut(name, "."); ok {
		return QuoteBracket(schemaName) + "." + QuoteBracket(object)
	}
	return QuoteBracket(name)
}

func (d Dialect) quoteObject(name string) string {
	if d.QuoteObject != nil {
		return d.QuoteObject(name)
	}
	return d.Quote(name)
}

// CreateTable renders an equivalent CREATE TABLE script for t.
//
// Columns come first, joined by ",\n". Table clauses (primary key, inline
// indexes, foreign keys, checks) follow the column list, each introduced by
// ",\n    ".
func CreateTable(d Dialect, name string, t *schema.Table) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", d.quoteObject(name))

	defs := make([]string, 0, t.Columns.Len())
	for _, col := range t.Columns.Keys() {
		c, _ := t.Columns.Get(col)
		defs = append(defs, columnDef(d, col, c))
	}
	b.WriteString(strings.Join(defs, ",\n"))

	var clauses []string
	if len(t.PrimaryKey) > 0 {
		clauses = append(clauses, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(t.PrimaryKey, ", ")))
	}
	if d.InlineIndexes {
		for _, idx := range t.Indexes {
			kw := "INDEX"
			if idx.Unique {
				kw = "UNIQUE INDEX"
			}
			clauses = append(clauses, fmt.Sprintf("%s %s (%s)", kw, d.Quote(idx.Name), strings.Join(idx.Columns, ", ")))
		}
	}
	for _, fk := range t.ForeignKeys {
		clauses = append(clauses, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
			d.Quote(fk.Name), strings.Join(fk.Columns, ", "), d.quoteObject(fk.ReferredTable), strings.Join(fk.ReferredColumns, ", ")))
	}
	for _, chk := range t.Checks {
		clauses = append(clauses, fmt.Sprintf("CONSTRAINT %s CHECK (%s)", d.Quote(chk.Name), chk.SQLText))
	}

	b.WriteString("\n")
	for _, c := range clauses {
		b.WriteString(",\n    ")
		b.WriteString(c)
	}
	if len(clauses) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(");")

	if !d.InlineIndexes {
		for _, idx := range t.Indexes {
			kw := "CREATE INDEX"
			if idx.Unique {
				kw = "CREATE UNIQUE INDEX"
			}
			fmt.Fprintf(&b, "\n\n%s %s ON %s (%s);", kw, d.Quote(idx.Name), d.quoteObject(name), joinQuoted(d, idx.Columns))
		}
	}
	return b.String()
}

func columnDef(d Dialect, name string, c schema.Column) string {
	var b strings.Builder
	fmt.Fprintf(&b, "    %s %s", d.Quote(name), c.Type)

	if d.GeneratedColumns && c.IsVirtual && c.Expression != "" {
		kind := "VIRTUAL"
		if c.Stored {
			kind = "STORED"
		}
		fmt.Fprintf(&b, " GENERATED ALWAYS AS (%s) %s", c.Expression, kind)
	}
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.Default != nil && *c.Default != "" {
		fmt.Fprintf(&b, " DEFAULT %s", *c.Default)
	}
	if d.ColumnComments && c.Comment != "" {
		fmt.Fprintf(&b, " COMMENT '%s'", strings.ReplaceAll(c.Comment, "'", "''"))
	}
	return b.String()
}

func joinQuoted(d Dialect, cols []string) string {
	q := make([]string, len(cols))
	for i, c := range cols {
		q[i] = d.Quote(c)
	}
	return strings.Join(q, ", ")
}

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

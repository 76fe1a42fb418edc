package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	mysqldrv "github.com/go-sql-driver/mysql"

	"github.com/sadopc/schemadoc/internal/adapter"
	"github.com/sadopc/schemadoc/internal/ddl"
	"github.com/sadopc/schemadoc/internal/schema"
)

func init() {
	a := &mysqlAdapter{}
	adapter.Register(a)
	adapter.RegisterAlias("mariadb", a)
}

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

type mysqlAdapter struct{}

func (a *mysqlAdapter) Name() string     { return "mysql" }
func (a *mysqlAdapter) DefaultPort() int { return 3306 }

func (a *mysqlAdapter) SystemDatabases() []string {
	return []string{"sys", "mysql", "performance_schema", "information_schema"}
}

func (a *mysqlAdapter) Connect(ctx context.Context, opts adapter.ConnectOptions) (adapter.Connection, error) {
	opts = adapter.WithPort(a, opts)

	db, err := sql.Open("mysql", BuildDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("mysql: open: %w", err)
	}
	// One session per database. Result sets are drained before the next
	// query is issued.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: ping: %w", err)
	}

	mariadb, err := isMariaDB(ctx, db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("mysql: version: %w", err)
	}

	return &mysqlConn{db: db, dbName: opts.Database, mariadb: mariadb}, nil
}

// isMariaDB reports whether the server identifies itself as MariaDB.
func isMariaDB(ctx context.Context, db *sql.DB) (bool, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return false, err
	}
	return strings.Contains(strings.ToLower(version), "mariadb"), nil
}

// BuildDSN formats opts as a go-sql-driver DSN.
func BuildDSN(opts adapter.ConnectOptions) string {
	cfg := mysqldrv.NewConfig()
	cfg.User = opts.User
	cfg.Passwd = opts.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	cfg.DBName = opts.Database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

type mysqlConn struct {
	db      *sql.DB
	dbName  string
	mariadb bool // COLUMN_DEFAULT follows MariaDB quoting rules
}

func (c *mysqlConn) DatabaseName() string { return c.dbName }

func (c *mysqlConn) Close() error {
	return c.db.Close()
}

func (c *mysqlConn) Databases(ctx context.Context) ([]string, error) {
	return queryStrings(ctx, c.db, "SHOW DATABASES")
}

// ExtractSchema reads every category in turn. A privilege error on a
// category replaces it with a placeholder; other errors abort.
func (c *mysqlConn) ExtractSchema(ctx context.Context, sink adapter.SQLSink) (*schema.Document, error) {
	if c.dbName == "" {
		return nil, adapter.ErrNoDatabase
	}

	doc := &schema.Document{}
	steps := []struct {
		kind    schema.Kind
		extract func(context.Context, *schema.Document, adapter.SQLSink) error
		fail    func(string)
	}{
		{schema.KindTables, c.extractTables, doc.Tables.FailAll},
		{schema.KindViews, c.extractViews, doc.Views.FailAll},
		{schema.KindProcedures, c.extractProcedures, doc.Procedures.FailAll},
		{schema.KindFunctions, c.extractFunctions, doc.Functions.FailAll},
		{schema.KindTriggers, c.extractTriggers, doc.Triggers.FailAll},
	}
	for _, s := range steps {
		err := s.extract(ctx, doc, sink)
		switch {
		case err == nil:
		case isPrivilegeError(err):
			s.fail(adapter.DeniedMessage(string(s.kind), err))
		default:
			return nil, fmt.Errorf("mysql: extract %s: %w", s.kind, err)
		}
	}
	return doc, nil
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

type tableInfo struct {
	name    string
	comment string
}

func (c *mysqlConn) listTables(ctx context.Context, tableType string) ([]tableInfo, error) {
	const q = `
		SELECT TABLE_NAME, COALESCE(TABLE_COMMENT, '')
		FROM information_schema.tables
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_TYPE = ?
		ORDER BY TABLE_NAME`

	rows, err := c.db.QueryContext(ctx, q, c.dbName, tableType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []tableInfo
	for rows.Next() {
		var t tableInfo
		if err := rows.Scan(&t.name, &t.comment); err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (c *mysqlConn) extractTables(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	tables, err := c.listTables(ctx, "BASE TABLE")
	if err != nil {
		return err
	}

	for _, ti := range tables {
		t, err := c.table(ctx, ti)
		if err != nil {
			if isPrivilegeError(err) {
				doc.Tables.Fail(ti.name, adapter.DeniedMessage("table "+ti.name, err))
				continue
			}
			return fmt.Errorf("table %s: %w", ti.name, err)
		}
		doc.Tables.Set(ti.name, t)

		if sink != nil {
			if _, err := sink.SaveSQL(string(schema.KindTables), ti.name, ddl.CreateTable(ddl.MySQL, ti.name, t)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *mysqlConn) table(ctx context.Context, ti tableInfo) (*schema.Table, error) {
	t := &schema.Table{
		Comment:     ti.comment,
		PrimaryKey:  []string{},
		Indexes:     []schema.Index{},
		ForeignKeys: []schema.ForeignKey{},
		Checks:      []schema.Check{},
	}

	if err := c.columns(ctx, ti.name, t); err != nil {
		return nil, err
	}

	pk, err := c.primaryKey(ctx, ti.name)
	if err != nil {
		return nil, err
	}
	t.PrimaryKey = append(t.PrimaryKey, pk...)

	if t.Indexes, err = c.indexes(ctx, ti.name); err != nil {
		return nil, err
	}
	if t.ForeignKeys, err = c.foreignKeys(ctx, ti.name); err != nil {
		return nil, err
	}
	if t.Checks, err = c.checks(ctx, ti.name); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *mysqlConn) columns(ctx context.Context, table string, t *schema.Table) error {
	const q = `
		SELECT
			COLUMN_NAME,
			COLUMN_TYPE,
			IS_NULLABLE,
			COLUMN_DEFAULT,
			COALESCE(COLUMN_COMMENT, ''),
			COALESCE(EXTRA, ''),
			COALESCE(GENERATION_EXPRESSION, '')
		FROM information_schema.columns
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME   = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := c.db.QueryContext(ctx, q, c.dbName, table)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, colType, nullable string
			def                     sql.NullString
			comment, extra, expr    string
		)
		if err := rows.Scan(&name, &colType, &nullable, &def, &comment, &extra, &expr); err != nil {
			return err
		}

		virtual, stored := generated(extra)
		col := schema.Column{
			Type:      RenderType(colType),
			Nullable:  nullable == "YES",
			Default:   RenderDefault(def, extra, c.mariadb),
			Comment:   comment,
			IsVirtual: virtual,
			Stored:    stored,
		}
		if virtual {
			col.Expression = expr
		}
		t.Columns.Set(name, col)
	}
	return rows.Err()
}

func (c *mysqlConn) primaryKey(ctx context.Context, table string) ([]string, error) {
	const q = `
		SELECT COLUMN_NAME
		FROM information_schema.key_column_usage
		WHERE TABLE_SCHEMA    = ?
		  AND TABLE_NAME      = ?
		  AND CONSTRAINT_NAME = 'PRIMARY'
		ORDER BY ORDINAL_POSITION`

	return queryStrings(ctx, c.db, q, c.dbName, table)
}

func (c *mysqlConn) indexes(ctx context.Context, table string) ([]schema.Index, error) {
	const q = `
		SELECT
			INDEX_NAME,
			COALESCE(COLUMN_NAME, ''),
			NON_UNIQUE
		FROM information_schema.statistics
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME   = ?
		  AND INDEX_NAME  <> 'PRIMARY'
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`

	rows, err := c.db.QueryContext(ctx, q, c.dbName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	indexMap := make(map[string]*schema.Index)
	var order []string

	for rows.Next() {
		var (
			idxName   string
			colName   string
			nonUnique int
		)
		if err := rows.Scan(&idxName, &colName, &nonUnique); err != nil {
			return nil, err
		}
		idx, ok := indexMap[idxName]
		if !ok {
			idx = &schema.Index{Name: idxName, Columns: []string{}, Unique: nonUnique == 0}
			indexMap[idxName] = idx
			order = append(order, idxName)
		}
		// Functional index parts have no column name.
		if colName != "" {
			idx.Columns = append(idx.Columns, colName)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]schema.Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *indexMap[name])
	}
	return indexes, nil
}

func (c *mysqlConn) foreignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	const q = `
		SELECT
			kcu.CONSTRAINT_NAME,
			kcu.COLUMN_NAME,
			kcu.REFERENCED_TABLE_NAME,
			kcu.REFERENCED_COLUMN_NAME
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.referential_constraints rc
			ON  rc.CONSTRAINT_SCHEMA = kcu.CONSTRAINT_SCHEMA
			AND rc.CONSTRAINT_NAME   = kcu.CONSTRAINT_NAME
		WHERE kcu.TABLE_SCHEMA          = ?
		  AND kcu.TABLE_NAME            = ?
		  AND kcu.REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY kcu.CONSTRAINT_NAME, kcu.ORDINAL_POSITION`

	rows, err := c.db.QueryContext(ctx, q, c.dbName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fkMap := make(map[string]*schema.ForeignKey)
	var order []string

	for rows.Next() {
		var fkName, colName, refTable, refCol string
		if err := rows.Scan(&fkName, &colName, &refTable, &refCol); err != nil {
			return nil, err
		}
		fk, ok := fkMap[fkName]
		if !ok {
			fk = &schema.ForeignKey{Name: fkName, ReferredTable: refTable}
			fkMap[fkName] = fk
			order = append(order, fkName)
		}
		fk.Columns = append(fk.Columns, colName)
		fk.ReferredColumns = append(fk.ReferredColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fks := make([]schema.ForeignKey, 0, len(order))
	for _, name := range order {
		fks = append(fks, *fkMap[name])
	}
	return fks, nil
}

// checks returns the CHECK constraints of a table. Servers without a
// CHECK_CONSTRAINTS catalog report none.
func (c *mysqlConn) checks(ctx context.Context, table string) ([]schema.Check, error) {
	const q = `
		SELECT tc.CONSTRAINT_NAME, cc.CHECK_CLAUSE
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON  cc.CONSTRAINT_SCHEMA = tc.CONSTRAINT_SCHEMA
			AND cc.CONSTRAINT_NAME   = tc.CONSTRAINT_NAME
		WHERE tc.TABLE_SCHEMA    = ?
		  AND tc.TABLE_NAME      = ?
		  AND tc.CONSTRAINT_TYPE = 'CHECK'
		ORDER BY tc.CONSTRAINT_NAME`

	checks := []schema.Check{}
	rows, err := c.db.QueryContext(ctx, q, c.dbName, table)
	if err != nil {
		if isUnknownTable(err) {
			return checks, nil
		}
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var chk schema.Check
		if err := rows.Scan(&chk.Name, &chk.SQLText); err != nil {
			return nil, err
		}
		checks = append(checks, chk)
	}
	return checks, rows.Err()
}

// ---------------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------------

func (c *mysqlConn) extractViews(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	views, err := c.listTables(ctx, "VIEW")
	if err != nil {
		return err
	}

	for _, vi := range views {
		v, err := c.view(ctx, vi.name, sink)
		if err != nil {
			if isPrivilegeError(err) {
				doc.Views.Fail(vi.name, adapter.DeniedMessage("view "+vi.name, err))
				continue
			}
			return fmt.Errorf("view %s: %w", vi.name, err)
		}
		doc.Views.Set(vi.name, v)
	}
	return nil
}

func (c *mysqlConn) view(ctx context.Context, name string, sink adapter.SQLSink) (*schema.View, error) {
	const q = `
		SELECT COLUMN_NAME, COLUMN_TYPE
		FROM information_schema.columns
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME   = ?
		ORDER BY ORDINAL_POSITION`

	v := &schema.View{}
	rows, err := c.db.QueryContext(ctx, q, c.dbName, name)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var col, colType string
		if err := rows.Scan(&col, &colType); err != nil {
			rows.Close()
			return nil, err
		}
		v.Columns.Set(col, schema.ViewColumn{Type: RenderType(colType)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	text, err := c.showCreate(ctx, "VIEW", name, "Create View")
	if err != nil {
		return nil, err
	}
	v.Definition, v.DefinitionFile, err = adapter.StoreDefinition(sink, string(schema.KindViews), name, text)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Procedures and functions
// ---------------------------------------------------------------------------

func (c *mysqlConn) extractProcedures(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	return c.extractRoutines(ctx, &doc.Procedures, sink, "PROCEDURE", schema.KindProcedures)
}

func (c *mysqlConn) extractFunctions(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	return c.extractRoutines(ctx, &doc.Functions, sink, "FUNCTION", schema.KindFunctions)
}

func (c *mysqlConn) extractRoutines(ctx context.Context, cat *schema.Category[schema.Routine], sink adapter.SQLSink, routineType string, kind schema.Kind) error {
	const q = `
		SELECT ROUTINE_NAME
		FROM information_schema.routines
		WHERE ROUTINE_SCHEMA = ?
		  AND ROUTINE_TYPE   = ?
		ORDER BY ROUTINE_NAME`

	names, err := queryStrings(ctx, c.db, q, c.dbName, routineType)
	if err != nil {
		return err
	}

	// SHOW CREATE names its result column "Create Procedure" or
	// "Create Function".
	column := "Create " + routineType[:1] + strings.ToLower(routineType[1:])
	label := strings.ToLower(routineType) + " "

	for _, name := range names {
		text, err := c.showCreate(ctx, routineType, name, column)
		if err != nil {
			if isPrivilegeError(err) {
				cat.Fail(name, adapter.DeniedMessage(label+name, err))
				continue
			}
			return fmt.Errorf("%s%s: %w", label, name, err)
		}
		r := &schema.Routine{}
		r.Definition, r.DefinitionFile, err = adapter.StoreDefinition(sink, string(kind), name, text)
		if err != nil {
			return err
		}
		cat.Set(name, r)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Triggers
// ---------------------------------------------------------------------------

func (c *mysqlConn) extractTriggers(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	rows, err := c.db.QueryContext(ctx, "SHOW TRIGGERS FROM "+ddl.QuoteBacktick(c.dbName))
	if err != nil {
		return err
	}
	records, err := scanNamed(rows)
	if err != nil {
		return err
	}

	for _, rec := range records {
		name := rec["Trigger"]
		tr := &schema.Trigger{
			Table:  rec["Table"],
			Timing: rec["Timing"],
			Event:  rec["Event"],
		}

		text, err := c.showCreate(ctx, "TRIGGER", name, "SQL Original Statement")
		if err != nil {
			if isPrivilegeError(err) {
				doc.Triggers.Fail(name, adapter.DeniedMessage("trigger "+name, err))
				continue
			}
			return fmt.Errorf("trigger %s: %w", name, err)
		}
		tr.Definition, tr.DefinitionFile, err = adapter.StoreDefinition(sink, string(schema.KindTriggers), name, text)
		if err != nil {
			return err
		}
		doc.Triggers.Set(name, tr)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// showCreate runs SHOW CREATE <objectType> and returns the named column. The
// server returns NULL there when the user may list the object but not read
// its body.
func (c *mysqlConn) showCreate(ctx context.Context, objectType, name, column string) (string, error) {
	q := fmt.Sprintf("SHOW CREATE %s %s", objectType, ddl.QuoteBacktick(name))
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return "", err
	}
	records, err := scanNullable(rows)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", fmt.Errorf("%s %s: %w", strings.ToLower(objectType), name, adapter.ErrDefinitionHidden)
	}
	v, ok := records[0][column]
	if !ok || !v.Valid {
		return "", fmt.Errorf("%s %s: %w", strings.ToLower(objectType), name, adapter.ErrDefinitionHidden)
	}
	return v.String, nil
}

// scanNullable reads every row into a map keyed by column name and closes
// rows.
func scanNullable(rows *sql.Rows) ([]map[string]sql.NullString, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []map[string]sql.NullString
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(map[string]sql.NullString, len(cols))
		for i, name := range cols {
			rec[name] = values[i]
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// scanNamed is scanNullable with NULL read as "".
func scanNamed(rows *sql.Rows) ([]map[string]string, error) {
	records, err := scanNullable(rows)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, len(records))
	for i, rec := range records {
		out[i] = make(map[string]string, len(rec))
		for k, v := range rec {
			out[i][k] = v.String
		}
	}
	return out, nil
}

func queryStrings(ctx context.Context, db *sql.DB, q string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Server error numbers that mean the current user may not read something.
var privilegeErrors = map[uint16]bool{
	1044: true, // ER_DBACCESS_DENIED_ERROR
	1045: true, // ER_ACCESS_DENIED_ERROR
	1142: true, // ER_TABLEACCESS_DENIED_ERROR
	1143: true, // ER_COLUMNACCESS_DENIED_ERROR
	1227: true, // ER_SPECIFIC_ACCESS_DENIED_ERROR
	1370: true, // ER_PROCACCESS_DENIED_ERROR
}

func isPrivilegeError(err error) bool {
	if errors.Is(err, adapter.ErrDefinitionHidden) {
		return true
	}
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && privilegeErrors[me.Number]
}

// isUnknownTable reports ER_UNKNOWN_TABLE, raised by servers that predate an
// information_schema table.
func isUnknownTable(err error) bool {
	var me *mysqldrv.MySQLError
	return errors.As(err, &me) && me.Number == 1109
}

// RenderType upper-cases a COLUMN_TYPE value outside its parenthesized
// arguments: "varchar(255)" becomes "VARCHAR(255)", "enum('a','b')" keeps
// its literals, "int unsigned" becomes "INT UNSIGNED".
func RenderType(s string) string {
	open := strings.IndexByte(s, '(')
	closing := strings.LastIndexByte(s, ')')
	if open < 0 || closing < open {
		return strings.ToUpper(s)
	}
	return strings.ToUpper(s[:open]) + s[open:closing+1] + strings.ToUpper(s[closing+1:])
}

// RenderDefault turns a COLUMN_DEFAULT value into a DEFAULT expression.
//
// MariaDB reports "NULL" for no default, quotes string literals itself and
// leaves expressions bare, so everything it reports is used as is. MySQL
// reports literals bare and marks expressions with DEFAULT_GENERATED in
// EXTRA, so bare non-numeric literals are quoted here.
func RenderDefault(def sql.NullString, extra string, mariadb bool) *string {
	if !def.Valid || (mariadb && def.String == "NULL") {
		return nil
	}
	v := def.String
	if !mariadb && !isExpression(v, extra) {
		v = "'" + strings.ReplaceAll(v, "'", "''") + "'"
	}
	return &v
}

func isExpression(v, extra string) bool {
	upper := strings.ToUpper(v)
	switch {
	case strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED"):
		return true
	case len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'':
		return true
	case strings.HasPrefix(upper, "B'"), strings.HasPrefix(upper, "X'"):
		return true
	case strings.HasPrefix(upper, "CURRENT_TIMESTAMP"):
		return true
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil
}

// generated classifies a column from its EXTRA value.
func generated(extra string) (virtual, stored bool) {
	e := strings.ToUpper(extra)
	switch {
	case strings.Contains(e, "VIRTUAL"):
		return true, false
	case strings.Contains(e, "STORED GENERATED"), strings.Contains(e, "PERSISTENT"):
		return true, true
	}
	return false, false
}

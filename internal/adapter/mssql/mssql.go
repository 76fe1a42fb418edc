package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	mssqldrv "github.com/microsoft/go-mssqldb"

	"github.com/sadopc/schemadoc/internal/adapter"
	"github.com/sadopc/schemadoc/internal/ddl"
	"github.com/sadopc/schemadoc/internal/schema"
)

func init() {
	adapter.Register(&mssqlAdapter{})
}

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

type mssqlAdapter struct{}

func (a *mssqlAdapter) Name() string     { return "mssql" }
func (a *mssqlAdapter) DefaultPort() int { return 1433 }

// SupportsIntegratedAuth reports that trusted connections are accepted.
func (a *mssqlAdapter) SupportsIntegratedAuth() bool { return true }

func (a *mssqlAdapter) SystemDatabases() []string {
	return []string{"master", "tempdb", "model", "msdb"}
}

func (a *mssqlAdapter) Connect(ctx context.Context, opts adapter.ConnectOptions) (adapter.Connection, error) {
	opts = adapter.WithPort(a, opts)

	db, err := sql.Open("sqlserver", BuildDSN(opts))
	if err != nil {
		return nil, fmt.Errorf("mssql: open: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("mssql: ping: %w", err)
	}

	return &mssqlConn{db: db, dbName: opts.Database}, nil
}

// BuildDSN formats opts as a sqlserver:// URL. With trusted authentication
// the user info is left out so the driver falls back to integrated auth.
func BuildDSN(opts adapter.ConnectOptions) string {
	q := url.Values{}
	if opts.Database != "" {
		q.Set("database", opts.Database)
	}
	q.Set("encrypt", "disable")
	q.Set("TrustServerCertificate", "true")
	q.Set("app name", "schemadoc")

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		RawQuery: q.Encode(),
	}
	if !opts.Trusted {
		u.User = url.UserPassword(opts.User, opts.Password)
	}
	return u.String()
}

// ---------------------------------------------------------------------------
// Connection
// ---------------------------------------------------------------------------

type mssqlConn struct {
	db     *sql.DB
	dbName string
}

func (c *mssqlConn) DatabaseName() string { return c.dbName }

func (c *mssqlConn) Close() error {
	return c.db.Close()
}

func (c *mssqlConn) Databases(ctx context.Context) ([]string, error) {
	rows, err := c.db.QueryContext(ctx, "SELECT name FROM sys.databases ORDER BY database_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dbs []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		dbs = append(dbs, name)
	}
	return dbs, rows.Err()
}

func (c *mssqlConn) ExtractSchema(ctx context.Context, sink adapter.SQLSink) (*schema.Document, error) {
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
			return nil, fmt.Errorf("mssql: extract %s: %w", s.kind, err)
		}
	}
	return doc, nil
}

// object is a catalog entry addressed by object_id.
type object struct {
	id      int64
	key     string // name, or schema.name outside dbo
	comment string
}

// objectKey names an object the way documents key it.
func objectKey(schemaName, name string) string {
	if schemaName == "" || strings.EqualFold(schemaName, "dbo") {
		return name
	}
	return schemaName + "." + name
}

// listObjects runs a catalog query returning object_id, schema, name and an
// optional description.
func (c *mssqlConn) listObjects(ctx context.Context, q string) ([]object, error) {
	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var objs []object
	for rows.Next() {
		var (
			o                object
			schemaName, name string
			comment          sql.NullString
		)
		if err := rows.Scan(&o.id, &schemaName, &name, &comment); err != nil {
			return nil, err
		}
		o.key = objectKey(schemaName, name)
		o.comment = comment.String
		objs = append(objs, o)
	}
	return objs, rows.Err()
}

// ---------------------------------------------------------------------------
// Tables
// ---------------------------------------------------------------------------

func (c *mssqlConn) extractTables(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	const q = `
		SELECT
			t.object_id,
			s.name,
			t.name,
			CAST(ep.value AS NVARCHAR(MAX))
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		LEFT JOIN sys.extended_properties ep
			ON  ep.class = 1
			AND ep.major_id = t.object_id
			AND ep.minor_id = 0
			AND ep.name = 'MS_Description'
		WHERE t.is_ms_shipped = 0
		ORDER BY s.name, t.name`

	tables, err := c.listObjects(ctx, q)
	if err != nil {
		return err
	}

	for _, o := range tables {
		t, err := c.table(ctx, o)
		if err != nil {
			if isPrivilegeError(err) {
				doc.Tables.Fail(o.key, adapter.DeniedMessage("table "+o.key, err))
				continue
			}
			return fmt.Errorf("table %s: %w", o.key, err)
		}
		doc.Tables.Set(o.key, t)

		if sink != nil {
			if _, err := sink.SaveSQL(string(schema.KindTables), o.key, ddl.CreateTable(ddl.SQLServer, o.key, t)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *mssqlConn) table(ctx context.Context, o object) (*schema.Table, error) {
	t := &schema.Table{Comment: o.comment, PrimaryKey: []string{}}

	if err := c.columns(ctx, o.id, t); err != nil {
		return nil, err
	}
	if err := c.indexes(ctx, o.id, t); err != nil {
		return nil, err
	}

	var err error
	if t.ForeignKeys, err = c.foreignKeys(ctx, o.id); err != nil {
		return nil, err
	}
	if t.Checks, err = c.checks(ctx, o.id); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *mssqlConn) columns(ctx context.Context, objectID int64, t *schema.Table) error {
	const q = `
		SELECT
			c.name,
			ty.name,
			c.max_length,
			c.precision,
			c.scale,
			c.is_nullable,
			dc.definition,
			CAST(ep.value AS NVARCHAR(MAX))
		FROM sys.columns c
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc
			ON  dc.parent_object_id = c.object_id
			AND dc.parent_column_id = c.column_id
		LEFT JOIN sys.extended_properties ep
			ON  ep.class = 1
			AND ep.major_id = c.object_id
			AND ep.minor_id = c.column_id
			AND ep.name = 'MS_Description'
		WHERE c.object_id = @p1
		ORDER BY c.column_id`

	rows, err := c.db.QueryContext(ctx, q, objectID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			name, typeName         string
			maxLength, prec, scale int
			nullable               bool
			def, comment           sql.NullString
		)
		if err := rows.Scan(&name, &typeName, &maxLength, &prec, &scale, &nullable, &def, &comment); err != nil {
			return err
		}
		t.Columns.Set(name, schema.Column{
			Type:     RenderType(typeName, maxLength, prec, scale),
			Nullable: nullable,
			Default:  renderDefault(def),
			Comment:  comment.String,
		})
	}
	return rows.Err()
}

// indexes fills the primary key and secondary indexes of a table.
func (c *mssqlConn) indexes(ctx context.Context, objectID int64, t *schema.Table) error {
	const q = `
		SELECT
			i.name,
			i.is_primary_key,
			i.is_unique,
			c.name
		FROM sys.indexes i
		JOIN sys.index_columns ic
			ON  ic.object_id = i.object_id
			AND ic.index_id  = i.index_id
		JOIN sys.columns c
			ON  c.object_id = ic.object_id
			AND c.column_id = ic.column_id
		WHERE i.object_id = @p1
		  AND i.name IS NOT NULL
		  AND ic.is_included_column = 0
		ORDER BY i.is_primary_key DESC, i.name, ic.key_ordinal`

	rows, err := c.db.QueryContext(ctx, q, objectID)
	if err != nil {
		return err
	}
	defer rows.Close()

	indexMap := make(map[string]*schema.Index)
	var order []string

	for rows.Next() {
		var (
			idxName, colName  string
			isPrimary, unique bool
		)
		if err := rows.Scan(&idxName, &isPrimary, &unique, &colName); err != nil {
			return err
		}
		if isPrimary {
			t.PrimaryKey = append(t.PrimaryKey, colName)
			continue
		}
		idx, ok := indexMap[idxName]
		if !ok {
			idx = &schema.Index{Name: idxName, Unique: unique}
			indexMap[idxName] = idx
			order = append(order, idxName)
		}
		idx.Columns = append(idx.Columns, colName)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	t.Indexes = make([]schema.Index, 0, len(order))
	for _, name := range order {
		t.Indexes = append(t.Indexes, *indexMap[name])
	}
	return nil
}

func (c *mssqlConn) foreignKeys(ctx context.Context, objectID int64) ([]schema.ForeignKey, error) {
	const q = `
		SELECT
			fk.name,
			pc.name,
			OBJECT_SCHEMA_NAME(fk.referenced_object_id),
			OBJECT_NAME(fk.referenced_object_id),
			rc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.columns pc
			ON  pc.object_id = fkc.parent_object_id
			AND pc.column_id = fkc.parent_column_id
		JOIN sys.columns rc
			ON  rc.object_id = fkc.referenced_object_id
			AND rc.column_id = fkc.referenced_column_id
		WHERE fk.parent_object_id = @p1
		ORDER BY fk.name, fkc.constraint_column_id`

	rows, err := c.db.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fkMap := make(map[string]*schema.ForeignKey)
	var order []string

	for rows.Next() {
		var fkName, colName, refSchema, refTable, refCol string
		if err := rows.Scan(&fkName, &colName, &refSchema, &refTable, &refCol); err != nil {
			return nil, err
		}
		fk, ok := fkMap[fkName]
		if !ok {
			fk = &schema.ForeignKey{Name: fkName, ReferredTable: objectKey(refSchema, refTable)}
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

func (c *mssqlConn) checks(ctx context.Context, objectID int64) ([]schema.Check, error) {
	const q = `
		SELECT name, definition
		FROM sys.check_constraints
		WHERE parent_object_id = @p1
		ORDER BY name`

	rows, err := c.db.QueryContext(ctx, q, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	checks := []schema.Check{}
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

func (c *mssqlConn) extractViews(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	const q = `
		SELECT
			v.object_id,
			s.name,
			v.name,
			CAST(ep.value AS NVARCHAR(MAX))
		FROM sys.views v
		JOIN sys.schemas s ON s.schema_id = v.schema_id
		LEFT JOIN sys.extended_properties ep
			ON  ep.class = 1
			AND ep.major_id = v.object_id
			AND ep.minor_id = 0
			AND ep.name = 'MS_Description'
		WHERE v.is_ms_shipped = 0
		ORDER BY s.name, v.name`

	views, err := c.listObjects(ctx, q)
	if err != nil {
		return err
	}

	for _, o := range views {
		v, err := c.view(ctx, o, sink)
		if err != nil {
			if isPrivilegeError(err) {
				doc.Views.Fail(o.key, adapter.DeniedMessage("view "+o.key, err))
				continue
			}
			return fmt.Errorf("view %s: %w", o.key, err)
		}
		doc.Views.Set(o.key, v)
	}
	return nil
}

func (c *mssqlConn) view(ctx context.Context, o object, sink adapter.SQLSink) (*schema.View, error) {
	const q = `
		SELECT c.name, ty.name, c.max_length, c.precision, c.scale
		FROM sys.columns c
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		WHERE c.object_id = @p1
		ORDER BY c.column_id`

	v := &schema.View{Comment: o.comment}
	rows, err := c.db.QueryContext(ctx, q, o.id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			name, typeName         string
			maxLength, prec, scale int
		)
		if err := rows.Scan(&name, &typeName, &maxLength, &prec, &scale); err != nil {
			rows.Close()
			return nil, err
		}
		v.Columns.Set(name, schema.ViewColumn{Type: RenderType(typeName, maxLength, prec, scale)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// A view whose text is hidden keeps its columns.
	text, ok, err := c.definition(ctx, o.id)
	if err != nil || !ok {
		return v, err
	}
	v.Definition, v.DefinitionFile, err = adapter.StoreDefinition(sink, string(schema.KindViews), o.key, ddl.CreateOrAlter(text))
	if err != nil {
		return nil, err
	}
	return v, nil
}

// ---------------------------------------------------------------------------
// Procedures and functions
// ---------------------------------------------------------------------------

func (c *mssqlConn) extractProcedures(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	const q = `
		SELECT o.object_id, s.name, o.name, NULL
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE o.type IN ('P', 'PC')
		  AND o.is_ms_shipped = 0
		ORDER BY s.name, o.name`

	return c.extractModules(ctx, q, &doc.Procedures, sink, schema.KindProcedures, "procedure ")
}

func (c *mssqlConn) extractFunctions(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	const q = `
		SELECT o.object_id, s.name, o.name, NULL
		FROM sys.objects o
		JOIN sys.schemas s ON s.schema_id = o.schema_id
		WHERE o.type IN ('FN', 'IF', 'TF', 'FS', 'FT')
		  AND o.is_ms_shipped = 0
		ORDER BY s.name, o.name`

	return c.extractModules(ctx, q, &doc.Functions, sink, schema.KindFunctions, "function ")
}

func (c *mssqlConn) extractModules(ctx context.Context, q string, cat *schema.Category[schema.Routine], sink adapter.SQLSink, kind schema.Kind, label string) error {
	objs, err := c.listObjects(ctx, q)
	if err != nil {
		return err
	}

	for _, o := range objs {
		text, err := c.requireDefinition(ctx, o)
		if err != nil {
			if isPrivilegeError(err) {
				cat.Fail(o.key, adapter.DeniedMessage(label+o.key, err))
				continue
			}
			return fmt.Errorf("%s%s: %w", label, o.key, err)
		}
		r := &schema.Routine{}
		r.Definition, r.DefinitionFile, err = adapter.StoreDefinition(sink, string(kind), o.key, ddl.CreateOrAlter(text))
		if err != nil {
			return err
		}
		cat.Set(o.key, r)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Triggers
// ---------------------------------------------------------------------------

func (c *mssqlConn) extractTriggers(ctx context.Context, doc *schema.Document, sink adapter.SQLSink) error {
	const q = `
		SELECT
			tr.object_id,
			tr.name,
			OBJECT_SCHEMA_NAME(tr.parent_id),
			OBJECT_NAME(tr.parent_id),
			tr.type_desc
		FROM sys.triggers tr
		WHERE tr.parent_id <> 0
		  AND tr.is_ms_shipped = 0
		ORDER BY tr.name`

	type triggerInfo struct {
		object
		table, typeDesc string
	}

	rows, err := c.db.QueryContext(ctx, q)
	if err != nil {
		return err
	}
	var triggers []triggerInfo
	for rows.Next() {
		var (
			ti                       triggerInfo
			name                     string
			parentSchema, parentName sql.NullString
		)
		if err := rows.Scan(&ti.id, &name, &parentSchema, &parentName, &ti.typeDesc); err != nil {
			rows.Close()
			return err
		}
		ti.key = objectKey(parentSchema.String, name)
		ti.table = objectKey(parentSchema.String, parentName.String)
		triggers = append(triggers, ti)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, ti := range triggers {
		text, err := c.requireDefinition(ctx, ti.object)
		if err != nil {
			if isPrivilegeError(err) {
				doc.Triggers.Fail(ti.key, adapter.DeniedMessage("trigger "+ti.key, err))
				continue
			}
			return fmt.Errorf("trigger %s: %w", ti.key, err)
		}
		tr := &schema.Trigger{Table: ti.table, Type: ti.typeDesc}
		tr.Definition, tr.DefinitionFile, err = adapter.StoreDefinition(sink, string(schema.KindTriggers), ti.key, ddl.CreateOrAlter(text))
		if err != nil {
			return err
		}
		doc.Triggers.Set(ti.key, tr)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// definition returns the module text of an object. ok is false when the
// server hides it.
func (c *mssqlConn) definition(ctx context.Context, objectID int64) (text string, ok bool, err error) {
	var def sql.NullString
	if err := c.db.QueryRowContext(ctx, "SELECT OBJECT_DEFINITION(@p1)", objectID).Scan(&def); err != nil {
		return "", false, err
	}
	return def.String, def.Valid, nil
}

func (c *mssqlConn) requireDefinition(ctx context.Context, o object) (string, error) {
	text, ok, err := c.definition(ctx, o.id)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%s: %w", o.key, adapter.ErrDefinitionHidden)
	}
	return text, nil
}

// RenderType formats a sys.types name with the length, precision or scale
// it takes. max_length is in bytes, -1 for MAX.
func RenderType(name string, maxLength, precision, scale int) string {
	upper := strings.ToUpper(name)
	switch strings.ToLower(name) {
	case "varchar", "char", "varbinary", "binary":
		if maxLength == -1 {
			return upper + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", upper, maxLength)
	case "nvarchar", "nchar":
		if maxLength == -1 {
			return upper + "(MAX)"
		}
		return fmt.Sprintf("%s(%d)", upper, maxLength/2)
	case "decimal", "numeric":
		return fmt.Sprintf("%s(%d,%d)", upper, precision, scale)
	case "datetime2", "time", "datetimeoffset":
		return fmt.Sprintf("%s(%d)", upper, scale)
	}
	return upper
}

func renderDefault(def sql.NullString) *string {
	if !def.Valid {
		return nil
	}
	v := def.String
	if v == "(NULL)" {
		v = "NULL"
	}
	return &v
}

// Server error numbers that mean the current user may not read something.
var privilegeErrors = map[int32]bool{
	229:  true, // permission denied on object
	230:  true, // permission denied on column
	262:  true, // permission denied in database
	297:  true, // user does not have permission
	300:  true, // VIEW DATABASE STATE / VIEW DEFINITION denied
	916:  true, // server principal cannot access database
	4060: true, // cannot open database
}

func isPrivilegeError(err error) bool {
	if errors.Is(err, adapter.ErrDefinitionHidden) {
		return true
	}
	var me mssqldrv.Error
	return errors.As(err, &me) && privilegeErrors[me.Number]
}

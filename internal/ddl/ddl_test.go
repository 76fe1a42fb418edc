package ddl

import (
	"strings"
	"testing"

	"github.com/sadopc/schemadoc/internal/schema"
)

func strp(s string) *string { return &s }

func usersTable() *schema.Table {
	t := &schema.Table{PrimaryKey: []string{"id"}}
	t.Columns.Set("id", schema.Column{Type: "INT", Nullable: false})
	t.Columns.Set("name", schema.Column{Type: "VARCHAR", Nullable: true})
	return t
}

func TestCreateTableMySQLUsers(t *testing.T) {
	got := CreateTable(MySQL, "users", usersTable())
	want := "CREATE TABLE `users` (\n    `id` INT NOT NULL,\n    `name` VARCHAR\n,\n    PRIMARY KEY (id)\n);"
	if got != want {
		t.Errorf("CreateTable() =\n%q\nwant\n%q", got, want)
	}
}

func TestCreateTableNoClauses(t *testing.T) {
	tbl := &schema.Table{}
	tbl.Columns.Set("v", schema.Column{Type: "TEXT", Nullable: true})

	got := CreateTable(MySQL, "log", tbl)
	want := "CREATE TABLE `log` (\n    `v` TEXT\n);"
	if got != want {
		t.Errorf("CreateTable() = %q, want %q", got, want)
	}
}

func TestCreateTableMySQLClauses(t *testing.T) {
	tbl := &schema.Table{
		PrimaryKey: []string{"id"},
		Indexes: []schema.Index{
			{Name: "idx_user", Columns: []string{"user_id"}},
			{Name: "uq_ref", Columns: []string{"ref", "kind"}, Unique: true},
		},
		ForeignKeys: []schema.ForeignKey{
			{Name: "fk_user", Columns: []string{"user_id"}, ReferredTable: "users", ReferredColumns: []string{"id"}},
		},
		Checks: []schema.Check{{Name: "chk_total", SQLText: "`total` >= 0"}},
	}
	tbl.Columns.Set("id", schema.Column{Type: "INT"})
	tbl.Columns.Set("user_id", schema.Column{Type: "INT"})
	tbl.Columns.Set("total", schema.Column{Type: "DECIMAL(10,2)", Default: strp("0.00"), Comment: "it's money"})
	tbl.Columns.Set("double_total", schema.Column{Type: "DECIMAL(10,2)", Nullable: true, IsVirtual: true, Expression: "`total` * 2", Stored: true})

	got := CreateTable(MySQL, "orders", tbl)
	want := "CREATE TABLE `orders` (\n" +
		"    `id` INT NOT NULL,\n" +
		"    `user_id` INT NOT NULL,\n" +
		"    `total` DECIMAL(10,2) NOT NULL DEFAULT 0.00 COMMENT 'it''s money',\n" +
		"    `double_total` DECIMAL(10,2) GENERATED ALWAYS AS (`total` * 2) STORED\n" +
		",\n    PRIMARY KEY (id)" +
		",\n    INDEX `idx_user` (user_id)" +
		",\n    UNIQUE INDEX `uq_ref` (ref, kind)" +
		",\n    CONSTRAINT `fk_user` FOREIGN KEY (user_id) REFERENCES `users` (id)" +
		",\n    CONSTRAINT `chk_total` CHECK (`total` >= 0)" +
		"\n);"
	if got != want {
		t.Errorf("CreateTable() =\n%s\nwant\n%s", got, want)
	}
}

func TestCreateTableSQLServer(t *testing.T) {
	tbl := usersTable()
	tbl.Indexes = []schema.Index{
		{Name: "IX_users_name", Columns: []string{"name"}},
		{Name: "UQ_users_name", Columns: []string{"name"}, Unique: true},
	}
	col, _ := tbl.Columns.Get("name")
	col.Comment = "ignored"
	tbl.Columns.Set("name", col)

	got := CreateTable(SQLServer, "users", tbl)
	want := "CREATE TABLE [users] (\n    [id] INT NOT NULL,\n    [name] VARCHAR\n,\n    PRIMARY KEY (id)\n);" +
		"\n\nCREATE INDEX [IX_users_name] ON [users] ([name]);" +
		"\n\nCREATE UNIQUE INDEX [UQ_users_name] ON [users] ([name]);"
	if got != want {
		t.Errorf("CreateTable() =\n%s\nwant\n%s", got, want)
	}
}

func TestQuote(t *testing.T) {
	if got := QuoteBacktick("we`ird"); got != "`we``ird`" {
		t.Errorf("QuoteBacktick() = %q", got)
	}
	if got := QuoteBracket("we]ird"); got != "[we]]ird]" {
		t.Errorf("QuoteBracket() = %q", got)
	}
}

func TestNormalizeNewlines(t *testing.T) {
	got := NormalizeNewlines("a\r\nb\rc\n")
	if got != "a\nb\nc\n" {
		t.Errorf("NormalizeNewlines() = %q", got)
	}
	if strings.Contains(got, "\r") {
		t.Error("carriage return left in output")
	}
}

func TestCreateTableSQLServerQualified(t *testing.T) {
	tbl := &schema.Table{
		ForeignKeys: []schema.ForeignKey{
			{Name: "FK_orders_customers", Columns: []string{"customer_id"}, ReferredTable: "sales.customers", ReferredColumns: []string{"id"}},
		},
	}
	tbl.Columns.Set("customer_id", schema.Column{Type: "INT", Default: strp("((0))")})

	got := CreateTable(SQLServer, "sales.orders", tbl)
	want := "CREATE TABLE [sales].[orders] (\n    [customer_id] INT NOT NULL DEFAULT ((0))\n" +
		",\n    CONSTRAINT [FK_orders_customers] FOREIGN KEY (customer_id) REFERENCES [sales].[customers] (id)\n);"
	if got != want {
		t.Errorf("CreateTable() =\n%s\nwant\n%s", got, want)
	}
}

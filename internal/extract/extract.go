// Package extract lists the databases of a server and extracts the schema of
// each one through the engine adapter, opening a fresh connection per
// database.
package extract

import (
	"context"
	"fmt"

	"github.com/sadopc/schemadoc/internal/adapter"
	"github.com/sadopc/schemadoc/internal/schema"
)

// Extractor reads schemas from one server.
type Extractor struct {
	adapter   adapter.Adapter
	opts      adapter.ConnectOptions
	databases []string
}

// New returns an Extractor for engine. An unknown engine yields an error
// wrapping adapter.ErrUnsupportedEngine. When databases is non-empty it is used
// as the database list instead of asking the server.
func New(engine string, opts adapter.ConnectOptions, databases []string) (*Extractor, error) {
	a, err := adapter.LookupOrSuggest(engine)
	if err != nil {
		return nil, err
	}
	opts.Database = ""
	return &Extractor{adapter: a, opts: adapter.WithPort(a, opts), databases: databases}, nil
}

// Engine returns the adapter name the extractor uses.
func (e *Extractor) Engine() string { return e.adapter.Name() }

// SystemDatabases returns the engine's bundled catalogs.
func (e *Extractor) SystemDatabases() []string { return e.adapter.SystemDatabases() }

// Options returns the server-scoped connection options.
func (e *Extractor) Options() adapter.ConnectOptions { return e.opts }

// ListDatabases returns the explicit database list, or every database the
// server reports.
func (e *Extractor) ListDatabases(ctx context.Context) ([]string, error) {
	if len(e.databases) > 0 {
		out := make([]string, len(e.databases))
		copy(out, e.databases)
		return out, nil
	}

	conn, err := e.adapter.Connect(ctx, e.opts)
	if err != nil {
		return nil, fmt.Errorf("extract: connect: %w", err)
	}
	defer conn.Close()

	dbs, err := conn.Databases(ctx)
	if err != nil {
		return nil, fmt.Errorf("extract: list databases: %w", err)
	}
	return dbs, nil
}

// ExtractSchema opens a connection scoped to database, reads its schema and
// closes the connection.
func (e *Extractor) ExtractSchema(ctx context.Context, database string, sink adapter.SQLSink) (*schema.Document, error) {
	opts := e.opts
	opts.Database = database

	conn, err := e.adapter.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("extract: connect %s: %w", database, err)
	}
	defer conn.Close()

	doc, err := conn.ExtractSchema(ctx, sink)
	if err != nil {
		return nil, fmt.Errorf("extract: %s: %w", database, err)
	}
	return doc, nil
}

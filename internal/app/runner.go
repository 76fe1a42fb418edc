// Package app drives a full extraction run: it lists the databases of a
// server and, one database at a time, extracts the schema, writes the DDL
// scripts and reconciles the documentation file.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sadopc/schemadoc/internal/adapter"
	"github.com/sadopc/schemadoc/internal/audit"
	"github.com/sadopc/schemadoc/internal/console"
	"github.com/sadopc/schemadoc/internal/docs"
	"github.com/sadopc/schemadoc/internal/history"
	"github.com/sadopc/schemadoc/internal/jsonfile"
	"github.com/sadopc/schemadoc/internal/schema"
	"github.com/sadopc/schemadoc/internal/sink"
)

// DocumentationFile is the name of the per-database documentation store.
const DocumentationFile = "Documentation.json"

var (
	// ErrListDatabases is returned when the server-level database listing
	// fails. It aborts the whole run.
	ErrListDatabases = errors.New("cannot list databases")
	// ErrNoDatabases is returned when there is nothing to process.
	ErrNoDatabases = errors.New("no databases found")
)

// SchemaSource lists the databases of a server and extracts one at a time.
// *extract.Extractor satisfies it.
type SchemaSource interface {
	Engine() string
	ListDatabases(ctx context.Context) ([]string, error)
	ExtractSchema(ctx context.Context, database string, sink adapter.SQLSink) (*schema.Document, error)
}

// Runner holds everything one run needs.
type Runner struct {
	Source     SchemaSource
	Output     string          // output root; one sub-directory per database
	Restricted map[string]bool // databases never touched
	Docs       docs.Options
	Printer    *console.Printer

	Audit   *audit.Logger    // optional
	History *history.History // optional
	Host    string           // recorded in history
	DSN     string           // recorded (sanitised) in the audit log
}

// Summary lists the databases of a run by outcome, in processing order.
type Summary struct {
	Processed []string
	Skipped   []string
	Failed    []string
}

// SchemaFile returns the schema JSON path for database below dir.
func SchemaFile(dir, database string) string {
	return filepath.Join(dir, database+"_schema.json")
}

// Run processes every database the source reports. Only a failure to list
// databases (or an empty list) is returned as an error; per-database
// failures are logged and reported in the Summary.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	var sum Summary
	p := r.Printer

	databases, err := r.Source.ListDatabases(ctx)
	if err != nil {
		return sum, fmt.Errorf("%w: %v", ErrListDatabases, err)
	}
	if len(databases) == 0 {
		return sum, ErrNoDatabases
	}
	p.Info("Found %d database(s) on %s", len(databases), r.Source.Engine())

	out, err := sink.New(r.Output)
	if err != nil {
		return sum, fmt.Errorf("app: output: %w", err)
	}
	out.OnCollision = func(category, name, file string) {
		p.Warning("%s %q shares a file name with another object; written to %s/%s", category, name, category, file)
	}

	progress := console.NewProgress(p, len(databases))
	for _, db := range databases {
		if err := progress.Tick(); err != nil {
			p.Debug("%v", err)
		}

		if r.Restricted[db] {
			p.Info("Skipping restricted database %s", db)
			sum.Skipped = append(sum.Skipped, db)
			r.record(db, audit.StatusSkipped, nil, 0, "restricted", nil, false)
			continue
		}

		start := time.Now()
		doc, docsUpdated, err := r.processDatabase(ctx, out, db)
		elapsed := time.Since(start)
		if err != nil {
			p.Error("Database %s: %v", db, err)
			sum.Failed = append(sum.Failed, db)
			r.record(db, audit.StatusFailed, nil, elapsed, "", err, false)
			continue
		}

		sum.Processed = append(sum.Processed, db)
		r.record(db, audit.StatusOK, objectCounts(doc), elapsed, "", nil, docsUpdated)
	}

	p.Info("Done: %d processed, %d skipped, %d failed",
		len(sum.Processed), len(sum.Skipped), len(sum.Failed))
	return sum, nil
}

// processDatabase extracts one database into its own directory. The bool
// result reports whether the documentation file was reconciled.
func (r *Runner) processDatabase(ctx context.Context, out *sink.Dir, db string) (*schema.Document, bool, error) {
	p := r.Printer
	dir := filepath.Join(r.Output, db)
	if err := out.ChangeBaseDir(dir); err != nil {
		return nil, false, err
	}

	p.Info("Extracting schema of %s", db)
	doc, err := r.Source.ExtractSchema(ctx, db, out)
	if err != nil {
		return nil, false, err
	}
	if doc == nil {
		return nil, false, fmt.Errorf("app: %s: empty schema", db)
	}

	if err := jsonfile.Save(SchemaFile(dir, db), doc); err != nil {
		return nil, false, fmt.Errorf("app: save schema: %w", err)
	}
	p.Debug("Wrote %s", SchemaFile(dir, db))

	updated, err := r.reconcile(doc, filepath.Join(dir, DocumentationFile))
	if err != nil {
		return nil, false, err
	}
	return doc, updated, nil
}

// reconcile merges doc into the documentation file at path. A corrupt file
// is left untouched and reported as a warning, not an error.
func (r *Runner) reconcile(doc *schema.Document, path string) (bool, error) {
	p := r.Printer
	m, err := docs.Open(path, r.Docs)
	if errors.Is(err, docs.ErrCorrupt) {
		p.Warning("%s is not valid JSON; documentation NOT updated: %v", path, err)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, kind := range schema.Kinds {
		ch := m.UpdateOrRemove(doc, kind)
		switch {
		case ch.Skipped:
			p.Warning("%s could not be read; documentation kept as is", kind)
		case !ch.Empty():
			p.Debug("%s: +%d -%d objects, +%d -%d columns", kind,
				len(ch.Added), len(ch.Removed), len(ch.ColumnsAdded), len(ch.ColumnsRemoved))
		}
	}

	if err := m.Save(); err != nil {
		return false, fmt.Errorf("app: save documentation: %w", err)
	}
	return true, nil
}

// record sends one database outcome to the audit log and the run history.
func (r *Runner) record(db string, status audit.Status, objects map[string]int, elapsed time.Duration, reason string, err error, docsUpdated bool) {
	r.Audit.Log(audit.Entry{
		Database:   db,
		Engine:     r.Source.Engine(),
		Status:     status,
		Objects:    objects,
		Duration:   elapsed,
		DSN:        r.DSN,
		Reason:     reason,
		Err:        err,
		DocsUpdate: docsUpdated,
	})

	msg := reason
	if err != nil {
		msg = err.Error()
	}
	var total int
	for _, n := range objects {
		total += n
	}
	h := history.Entry{
		Engine:       r.Source.Engine(),
		Host:         r.Host,
		DatabaseName: db,
		Status:       string(status),
		DurationMS:   elapsed.Milliseconds(),
		ObjectCount:  int64(total),
		Message:      msg,
	}
	if status == audit.StatusOK {
		h.OutputDir = filepath.Join(r.Output, db)
	}
	if herr := r.History.Add(h); herr != nil {
		r.Printer.Warning("history: %v", herr)
	}
}

func objectCounts(doc *schema.Document) map[string]int {
	counts := make(map[string]int, len(schema.Kinds))
	for _, kind := range schema.Kinds {
		counts[string(kind)] = doc.Count(kind)
	}
	return counts
}

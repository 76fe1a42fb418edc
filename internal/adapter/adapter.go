package adapter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/sadopc/schemadoc/internal/ddl"
	"github.com/sadopc/schemadoc/internal/schema"
)

var (
	ErrUnsupportedEngine = errors.New("unsupported engine")
	ErrNoDatabase        = errors.New("connection is not scoped to a database")
	ErrDefinitionHidden  = errors.New("definition is not visible to the current user")
)

// ConnectOptions identifies a server and, optionally, the database a
// connection is scoped to.
type ConnectOptions struct {
	Host     string
	Port     int // 0 selects the adapter's default port
	User     string
	Password string
	Database string // empty means server scope
	Trusted  bool   // integrated authentication, where the engine supports it
}

// Adapter creates database connections for one engine.
type Adapter interface {
	Connect(ctx context.Context, opts ConnectOptions) (Connection, error)
	Name() string
	DefaultPort() int
	// SystemDatabases lists the catalogs bundled with the engine.
	SystemDatabases() []string
}

// Connection is an open connection bound to at most one database.
type Connection interface {
	// Databases lists every database on the server.
	Databases(ctx context.Context) ([]string, error)

	// ExtractSchema reads all tables, views, procedures, functions and
	// triggers of the connected database. When sink is non-nil, DDL text is
	// written through it and the document records the returned paths;
	// otherwise definitions are stored inline.
	ExtractSchema(ctx context.Context, sink SQLSink) (*schema.Document, error)

	DatabaseName() string
	Close() error
}

// IntegratedAuth is implemented by adapters that can authenticate without a
// user name, using the credentials of the running process.
type IntegratedAuth interface {
	SupportsIntegratedAuth() bool
}

// SQLSink persists one DDL script and returns the path to record for it.
type SQLSink interface {
	SaveSQL(category, name, content string) (string, error)
}

// DeniedMessage renders the text stored in an error placeholder.
func DeniedMessage(subject string, err error) string {
	return fmt.Sprintf("insufficient privileges to read %s: %v", subject, err)
}

// WithPort returns opts with Port defaulted from a.
func WithPort(a Adapter, opts ConnectOptions) ConnectOptions {
	if opts.Port == 0 {
		opts.Port = a.DefaultPort()
	}
	return opts
}

// Registry holds registered adapters by engine name.
var Registry = map[string]Adapter{}

// Register adds an adapter to the global registry under its own name.
func Register(a Adapter) {
	Registry[a.Name()] = a
}

// RegisterAlias makes a reachable under an additional engine name.
func RegisterAlias(alias string, a Adapter) {
	Registry[alias] = a
}

// Lookup returns the adapter registered for engine, ignoring case and
// surrounding space.
func Lookup(engine string) (Adapter, bool) {
	a, ok := Registry[strings.ToLower(strings.TrimSpace(engine))]
	return a, ok
}

// LookupOrSuggest is Lookup returning an ErrUnsupportedEngine error that
// names the supported engines and the closest match.
func LookupOrSuggest(engine string) (Adapter, error) {
	if a, ok := Lookup(engine); ok {
		return a, nil
	}
	msg := fmt.Sprintf("%q (supported: %s)", engine, strings.Join(Names(), ", "))
	if s := Suggest(engine); s != "" {
		msg += fmt.Sprintf("; did you mean %q?", s)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEngine, msg)
}

// Suggest returns the registered engine name closest to engine, or "" when
// nothing is close.
func Suggest(engine string) string {
	engine = strings.ToLower(strings.TrimSpace(engine))
	if engine == "" {
		return ""
	}
	names := Names()

	matches := fuzzy.Find(engine, names)
	if len(matches) > 0 {
		sort.SliceStable(matches, func(i, j int) bool {
			return matches[i].Score > matches[j].Score
		})
		return matches[0].Str
	}

	// Input longer than the name, e.g. "mssqlserver".
	best, bestScore := "", 0
	for _, name := range names {
		m := fuzzy.Find(name, []string{engine})
		if len(m) > 0 && (best == "" || m[0].Score > bestScore) {
			best, bestScore = name, m[0].Score
		}
	}
	return best
}

// Names returns the registered engine names, sorted.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StoreDefinition routes fetched DDL text either inline or through sink.
// Line endings are normalized to \n in both cases.
func StoreDefinition(sink SQLSink, category, name, text string) (inline, file string, err error) {
	text = ddl.NormalizeNewlines(text)
	if sink == nil {
		return text, "", nil
	}
	file, err = sink.SaveSQL(category, name, text)
	if err != nil {
		return "", "", err
	}
	return "", file, nil
}

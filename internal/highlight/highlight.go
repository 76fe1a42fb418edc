// Package highlight colours extracted DDL for terminal display using chroma
// lexers and the active lipgloss theme.
package highlight

import (
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/charmbracelet/lipgloss"
	"github.com/sadopc/schemadoc/internal/theme"
)

// Highlighter tokenises SQL text using chroma and renders it with lipgloss
// styles from the active theme.
type Highlighter struct {
	lexer chroma.Lexer
}

// New creates a Highlighter for the named chroma lexer ("tsql", "mysql", ...).
// Unknown names fall back to the generic SQL lexer.
func New(lexerName string) *Highlighter {
	var l chroma.Lexer
	if lexerName != "" {
		l = lexers.Get(lexerName)
	}
	if l == nil {
		l = lexers.Get("SQL")
	}
	if l == nil {
		l = lexers.Fallback
	}
	return &Highlighter{lexer: chroma.Coalesce(l)}
}

// LexerFor picks a lexer name for an engine. SQL Server output is T-SQL;
// everything else uses the MySQL dialect lexer.
func LexerFor(engine string) string {
	switch strings.ToLower(engine) {
	case "mssql", "sqlserver":
		return "tsql"
	case "mysql", "mariadb":
		return "mysql"
	}
	return "sql"
}

// Detect guesses the lexer for a script written by one of the extractors.
// Bracket quoting and CREATE OR ALTER mark T-SQL; backticks mark MySQL.
func Detect(script string) string {
	switch {
	case strings.Contains(strings.ToUpper(script), "CREATE OR ALTER"):
		return "tsql"
	case strings.Contains(script, "`"):
		return "mysql"
	case strings.Contains(script, "["):
		return "tsql"
	}
	return "sql"
}

// Name returns the configured lexer's name.
func (h *Highlighter) Name() string {
	return h.lexer.Config().Name
}

// Highlight tokenises sql and returns it with each token styled from th.
// Newlines are emitted unstyled so multi-line DDL renders correctly.
func (h *Highlighter) Highlight(sql string, th *theme.Theme) string {
	if th == nil {
		return sql
	}

	iter, err := h.lexer.Tokenise(nil, sql)
	if err != nil {
		return sql
	}

	var b strings.Builder
	b.Grow(len(sql) * 2)

	for _, tok := range iter.Tokens() {
		value := tok.Value
		if value == "" {
			continue
		}

		style, ok := styleFor(tok.Type, th)
		if !ok {
			b.WriteString(value)
			continue
		}

		lines := strings.Split(value, "\n")
		for i, line := range lines {
			if line != "" {
				b.WriteString(style.Render(line))
			}
			if i < len(lines)-1 {
				b.WriteByte('\n')
			}
		}
	}

	return b.String()
}

// styleFor maps a chroma token type to a theme style. The second return value
// is false when the token passes through unstyled.
func styleFor(tt chroma.TokenType, th *theme.Theme) (lipgloss.Style, bool) {
	switch {
	// KeywordType is a subtype of Keyword; INT, NVARCHAR etc. get their own colour.
	case tt == chroma.KeywordType:
		return th.SQLType, true
	case tt == chroma.NameFunction || tt == chroma.NameBuiltin:
		return th.SQLFunction, true
	case tt.InCategory(chroma.Keyword):
		return th.SQLKeyword, true
	case tt.InSubCategory(chroma.LiteralString):
		return th.SQLString, true
	case tt.InSubCategory(chroma.LiteralNumber):
		return th.SQLNumber, true
	case tt.InCategory(chroma.Comment):
		return th.SQLComment, true
	case tt.InCategory(chroma.Operator):
		return th.SQLOperator, true
	case tt == chroma.NameVariable || tt == chroma.NameVariableGlobal:
		return th.SQLIdentifier, true
	default:
		return lipgloss.Style{}, false
	}
}

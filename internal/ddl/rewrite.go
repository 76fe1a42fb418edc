package ddl

import "strings"

// CreateOrAlter rewrites the first CREATE keyword of a T-SQL module
// definition to CREATE OR ALTER, so replaying the script against a database
// that already has the object succeeds.
//
// Keywords inside line comments, block comments, string literals and quoted
// identifiers are ignored. CREATE INDEX statements are passed over. Text that
// already starts with CREATE OR ALTER is returned unchanged, as is text with
// no CREATE at all. Everything before the keyword is kept byte for byte.
func CreateOrAlter(text string) string {
	i := 0
	for i < len(text) {
		next, ok := skipTrivia(text, i)
		if ok {
			i = next
			continue
		}
		if !isIdentByte(text[i]) {
			i++
			continue
		}

		start := i
		end := wordEnd(text, i)
		i = end
		if !strings.EqualFold(text[start:end], "create") {
			continue
		}

		w, _ := nextWord(text, end)
		switch {
		case strings.EqualFold(w, "or"):
			return text
		case isIndexStatement(text, end):
			continue
		}
		return text[:start] + "CREATE OR ALTER" + text[end:]
	}
	return text
}

// isIndexStatement reports whether the words following a CREATE at pos form
// CREATE [UNIQUE] [CLUSTERED|NONCLUSTERED] INDEX.
func isIndexStatement(text string, pos int) bool {
	w, pos := nextWord(text, pos)
	if strings.EqualFold(w, "unique") {
		w, pos = nextWord(text, pos)
	}
	if strings.EqualFold(w, "clustered") || strings.EqualFold(w, "nonclustered") {
		w, _ = nextWord(text, pos)
	}
	return strings.EqualFold(w, "index")
}

// nextWord skips whitespace and comments from pos and returns the identifier
// word found there with the offset just past it. The word is empty if the
// next token is not an identifier.
func nextWord(text string, pos int) (string, int) {
	for pos < len(text) {
		if next, ok := skipComment(text, pos); ok {
			pos = next
			continue
		}
		if isSpace(text[pos]) {
			pos++
			continue
		}
		break
	}
	if pos >= len(text) || !isIdentByte(text[pos]) {
		return "", pos
	}
	end := wordEnd(text, pos)
	return text[pos:end], end
}

// skipTrivia skips one comment, string literal or quoted identifier at pos.
func skipTrivia(text string, pos int) (int, bool) {
	if next, ok := skipComment(text, pos); ok {
		return next, true
	}
	switch text[pos] {
	case '\'':
		return skipQuoted(text, pos, '\''), true
	case '"':
		return skipQuoted(text, pos, '"'), true
	case '[':
		return skipQuoted(text, pos, ']'), true
	}
	return pos, false
}

func skipComment(text string, pos int) (int, bool) {
	switch {
	case strings.HasPrefix(text[pos:], "--"):
		nl := strings.IndexByte(text[pos:], '\n')
		if nl < 0 {
			return len(text), true
		}
		return pos + nl + 1, true
	case strings.HasPrefix(text[pos:], "/*"):
		depth := 0
		for pos < len(text) {
			switch {
			case strings.HasPrefix(text[pos:], "/*"):
				depth++
				pos += 2
			case strings.HasPrefix(text[pos:], "*/"):
				depth--
				pos += 2
				if depth == 0 {
					return pos, true
				}
			default:
				pos++
			}
		}
		return len(text), true
	}
	return pos, false
}

// skipQuoted skips a quoted run opened at pos and closed by closer. A doubled
// closer is an escaped character.
func skipQuoted(text string, pos int, closer byte) int {
	pos++
	for pos < len(text) {
		if text[pos] == closer {
			if pos+1 < len(text) && text[pos+1] == closer {
				pos += 2
				continue
			}
			return pos + 1
		}
		pos++
	}
	return len(text)
}

func wordEnd(text string, pos int) int {
	for pos < len(text) && isIdentByte(text[pos]) {
		pos++
	}
	return pos
}

func isIdentByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '@', c == '#', c == '$':
		return true
	}
	return c >= 0x80
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

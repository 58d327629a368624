package main

import (
	"fmt"
	"strings"
)

// scanState is the lexical state of the SQL scanner.
type scanState int

const (
	stateCode scanState = iota
	stateSingleQuote
	stateDoubleQuote
	stateBacktick
	stateLineComment
	stateBlockComment
)

func (s scanState) quoted() bool {
	return s == stateSingleQuote || s == stateDoubleQuote || s == stateBacktick
}

func (s scanState) comment() bool {
	return s == stateLineComment || s == stateBlockComment
}

func quoteByte(s scanState) byte {
	switch s {
	case stateSingleQuote:
		return '\''
	case stateDoubleQuote:
		return '"'
	default:
		return '`'
	}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// walkSQL runs the scanner state machine over s, calling visit for every byte
// with the state that byte belongs to and the parenthesis depth after it.
// Opening and closing quote characters belong to the quoted state; '(' and ')'
// only count in code. Returning false from visit stops the walk early, in
// which case no end-of-input checks are made.
func walkSQL(s string, visit func(i int, st scanState, depth int) bool) (int, error) {
	st := stateCode
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch st {
		case stateCode:
			switch {
			case c == '\'':
				st = stateSingleQuote
			case c == '"':
				st = stateDoubleQuote
			case c == '`':
				st = stateBacktick
			case c == '#':
				st = stateLineComment
			case c == '-' && i+1 < len(s) && s[i+1] == '-' && (i+2 == len(s) || isSpace(s[i+2])):
				st = stateLineComment
			case c == '/' && i+1 < len(s) && s[i+1] == '*':
				if !visit(i, stateBlockComment, depth) {
					return i, nil
				}
				i++
				st = stateBlockComment
			case c == '(':
				depth++
			case c == ')':
				depth--
				if depth < 0 {
					return i, fmt.Errorf("unbalanced parentheses: unexpected ')' at offset %d", i)
				}
			}
			if !visit(i, st, depth) {
				return i, nil
			}

		case stateSingleQuote, stateDoubleQuote, stateBacktick:
			cur := st
			q := quoteByte(st)
			switch {
			case c == '\\' && st != stateBacktick && i+1 < len(s):
				if !visit(i, cur, depth) {
					return i, nil
				}
				i++
			case c == q && i+1 < len(s) && s[i+1] == q:
				if !visit(i, cur, depth) {
					return i, nil
				}
				i++
			case c == q:
				st = stateCode
			}
			if !visit(i, cur, depth) {
				return i, nil
			}

		case stateLineComment:
			if c == '\n' {
				st = stateCode
			}
			if !visit(i, st, depth) {
				return i, nil
			}

		case stateBlockComment:
			if c == '*' && i+1 < len(s) && s[i+1] == '/' {
				if !visit(i, stateBlockComment, depth) {
					return i, nil
				}
				i++
				if !visit(i, stateBlockComment, depth) {
					return i, nil
				}
				st = stateCode
				continue
			}
			if !visit(i, st, depth) {
				return i, nil
			}
		}
	}

	switch {
	case st.quoted():
		return len(s), fmt.Errorf("unterminated quoted string or identifier")
	case st == stateBlockComment:
		return len(s), fmt.Errorf("unterminated block comment")
	case depth != 0:
		return len(s), fmt.Errorf("unbalanced parentheses: %d unclosed '('", depth)
	}
	return len(s), nil
}

// splitStatements splits SQL text on top-level semicolons, dropping comments and
// empty statements. Semicolons inside quotes or comments do not split.
func splitStatements(sql string) ([]string, error) {
	var stmts []string
	var current strings.Builder
	inComment := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			stmts = append(stmts, s)
		}
		current.Reset()
	}

	_, err := walkSQL(sql, func(i int, st scanState, depth int) bool {
		if st.comment() {
			if !inComment {
				current.WriteByte(' ')
			}
			inComment = true
			return true
		}
		inComment = false
		if st == stateCode && sql[i] == ';' && depth == 0 {
			flush()
			return true
		}
		current.WriteByte(sql[i])
		return true
	})
	if err != nil {
		return nil, err
	}
	flush()
	return stmts, nil
}

// splitTopLevel splits a column/constraint list on commas that are outside any
// parentheses, quotes or comments. Comments are dropped from the items.
func splitTopLevel(body string) ([]string, error) {
	var items []string
	var current strings.Builder
	inComment := false

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			items = append(items, s)
		}
		current.Reset()
	}

	_, err := walkSQL(body, func(i int, st scanState, depth int) bool {
		if st.comment() {
			if !inComment {
				current.WriteByte(' ')
			}
			inComment = true
			return true
		}
		inComment = false
		if st == stateCode && body[i] == ',' && depth == 0 {
			flush()
			return true
		}
		current.WriteByte(body[i])
		return true
	})
	if err != nil {
		return nil, err
	}
	flush()
	return items, nil
}

// matchParen returns the index of the ')' closing the '(' at s[open].
func matchParen(s string, open int) (int, error) {
	if open >= len(s) || s[open] != '(' {
		return 0, fmt.Errorf("no '(' at offset %d", open)
	}
	close := -1
	_, err := walkSQL(s[open:], func(i int, st scanState, depth int) bool {
		if st == stateCode && s[open+i] == ')' && depth == 0 {
			close = open + i
			return false
		}
		return true
	})
	if close >= 0 {
		return close, nil
	}
	if err != nil {
		return 0, err
	}
	return 0, fmt.Errorf("unbalanced parentheses: '(' at offset %d is never closed", open)
}

type tokenKind int

const (
	tokWord   tokenKind = iota // keyword, bare identifier, number, operator run
	tokIdent                   // `quoted identifier`
	tokString                  // 'literal' or "literal", unescaped
	tokParen                   // (...) group, inner text kept verbatim
	tokEquals
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(kw string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, kw)
}

// name returns the identifier text of a word or quoted identifier.
func (t token) name() string {
	return t.text
}

func (t token) isName() bool {
	return t.kind == tokIdent || (t.kind == tokWord && t.text != "" && t.text != ",")
}

// tokenize breaks one comment-free column or constraint item into tokens.
func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case isSpace(c):
			i++
		case c == '=':
			toks = append(toks, token{kind: tokEquals, text: "="})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokWord, text: ","})
			i++
		case c == '(':
			close, err := matchParen(s, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokParen, text: s[i+1 : close]})
			i = close + 1
		case c == ')':
			return nil, fmt.Errorf("unbalanced parentheses: unexpected ')'")
		case c == '`' || c == '\'' || c == '"':
			text, next, err := readQuoted(s, i)
			if err != nil {
				return nil, err
			}
			kind := tokString
			if c == '`' {
				kind = tokIdent
			}
			toks = append(toks, token{kind: kind, text: text})
			i = next
		default:
			start := i
			for i < len(s) && !isSpace(s[i]) && !strings.ContainsRune("()=,`'\"", rune(s[i])) {
				i++
			}
			word := s[start:i]
			if i < len(s) && s[i] == '\'' && isLiteralPrefix(word) {
				_, next, err := readQuoted(s, i)
				if err != nil {
					return nil, err
				}
				toks = append(toks, token{kind: tokWord, text: strings.ToLower(word) + s[i:next]})
				i = next
				continue
			}
			toks = append(toks, token{kind: tokWord, text: word})
		}
	}
	return toks, nil
}

// isLiteralPrefix reports whether word introduces a typed string literal:
// b'0101', x'FF', n'text' or a charset introducer such as _utf8mb4'text'.
func isLiteralPrefix(word string) bool {
	switch strings.ToLower(word) {
	case "b", "x", "n":
		return true
	}
	if len(word) < 2 || word[0] != '_' {
		return false
	}
	for i := 1; i < len(word); i++ {
		c := word[i]
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9') {
			return false
		}
	}
	return true
}

// isTypedLiteral reports whether a word token holds a prefixed literal.
func isTypedLiteral(text string) bool {
	q := strings.IndexByte(text, '\'')
	return q > 0 && isLiteralPrefix(text[:q]) && strings.HasSuffix(text, "'")
}

// readQuoted reads the quoted run starting at s[start] and returns its
// unescaped contents and the index just past the closing quote.
func readQuoted(s string, start int) (string, int, error) {
	q := s[start]
	var b strings.Builder
	i := start + 1
	for i < len(s) {
		c := s[i]
		if c == '\\' && q != '`' && i+1 < len(s) {
			b.WriteByte(unescapeByte(s[i+1]))
			i += 2
			continue
		}
		if c == q {
			if i+1 < len(s) && s[i+1] == q {
				b.WriteByte(q)
				i += 2
				continue
			}
			return b.String(), i + 1, nil
		}
		b.WriteByte(c)
		i++
	}
	return "", 0, fmt.Errorf("unterminated quoted text starting at offset %d", start)
}

func unescapeByte(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	default:
		return c
	}
}

// unquoteIdent strips backticks or double quotes from a (possibly qualified)
// identifier and returns the last dotted part.
func unquoteIdent(s string) string {
	s = strings.TrimSpace(s)
	parts := splitQualified(s)
	last := strings.TrimSpace(parts[len(parts)-1])
	if len(last) >= 2 && (last[0] == '`' || last[0] == '"') && last[len(last)-1] == last[0] {
		q := string(last[0])
		last = strings.ReplaceAll(last[1:len(last)-1], q+q, q)
	}
	return last
}

func splitQualified(s string) []string {
	var parts []string
	var cur strings.Builder
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			cur.WriteByte(c)
		case c == '`' || c == '"':
			quote = c
			cur.WriteByte(c)
		case c == '.':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(parts, cur.String())
}

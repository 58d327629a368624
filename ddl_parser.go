package main

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ParseFailure describes a source file that could not be turned into a TableSchema.
type ParseFailure struct {
	Path   string
	Origin SourceOrigin
	Reason string
}

func (e *ParseFailure) Error() string {
	return fmt.Sprintf("parse %s %s: %s", e.Origin.label(), e.Path, e.Reason)
}

var createTableRe = regexp.MustCompile(
	"(?is)^\\s*CREATE\\s+(?:TEMPORARY\\s+)?TABLE\\s+(?:IF\\s+NOT\\s+EXISTS\\s+)?" +
		"((?:`(?:[^`]|``)+`|\"[^\"]+\"|[\\w$]+)(?:\\s*\\.\\s*(?:`(?:[^`]|``)+`|\"[^\"]+\"|[\\w$]+))?)\\s*\\(",
)

var createTableLooseRe = regexp.MustCompile(`(?is)^\s*CREATE\s+(?:TEMPORARY\s+)?TABLE\b`)

// parseDDL extracts the single CREATE TABLE statement in text.
func parseDDL(path, text string) (*TableSchema, error) {
	fail := func(format string, args ...any) error {
		return &ParseFailure{Path: path, Origin: OriginDDL, Reason: fmt.Sprintf(format, args...)}
	}

	stmts, err := splitStatements(text)
	if err != nil {
		return nil, fail("%v", err)
	}

	var create []string
	for _, s := range stmts {
		if createTableLooseRe.MatchString(s) {
			create = append(create, s)
		}
	}
	switch len(create) {
	case 0:
		return nil, fail("no CREATE TABLE statement found")
	case 1:
	default:
		return nil, fail("found %d CREATE TABLE statements, expected one", len(create))
	}
	stmt := create[0]

	m := createTableRe.FindStringSubmatchIndex(stmt)
	if m == nil {
		return nil, fail("malformed CREATE TABLE header")
	}
	name := unquoteIdent(stmt[m[2]:m[3]])
	open := m[1] - 1
	close, err := matchParen(stmt, open)
	if err != nil {
		return nil, fail("%v", err)
	}

	t := newTableSchema(name, OriginDDL, path)

	items, err := splitTopLevel(stmt[open+1 : close])
	if err != nil {
		return nil, fail("%v", err)
	}
	if len(items) == 0 {
		return nil, fail("CREATE TABLE %s has an empty column list", name)
	}
	for _, item := range items {
		toks, err := tokenize(item)
		if err != nil {
			return nil, fail("%v in %q", err, item)
		}
		if err := parseTableItem(t, toks); err != nil {
			return nil, fail("%v in %q", err, item)
		}
	}

	if err := parseTableOptions(t, stmt[close+1:]); err != nil {
		return nil, fail("%v", err)
	}

	t.finalize()
	return t, nil
}

// parseTableItem classifies one top-level list item by its leading keyword.
func parseTableItem(t *TableSchema, toks []token) error {
	if len(toks) == 0 {
		return nil
	}
	p := &tokenCursor{toks: toks}

	constraintName := ""
	if p.peekIs("CONSTRAINT") {
		p.next()
		if p.peek().isName() && !isConstraintKeyword(p.peek()) {
			constraintName = p.next().name()
		}
	}

	switch {
	case p.peekIs("PRIMARY"):
		p.next()
		if !p.acceptKeyword("KEY") {
			return fmt.Errorf("expected KEY after PRIMARY")
		}
		p.skipIndexType()
		cols, err := p.columnList()
		if err != nil {
			return err
		}
		t.Constraints = append(t.Constraints, ConstraintDefinition{Name: constraintName, Kind: ConstraintPrimaryKey, Columns: cols})
		return nil

	case p.peekIs("UNIQUE"):
		p.next()
		if !p.acceptKeyword("KEY") {
			p.acceptKeyword("INDEX")
		}
		idx, err := p.indexBody(constraintName)
		if err != nil {
			return err
		}
		idx.Unique = true
		t.Indexes = append(t.Indexes, idx)
		return nil

	case p.peekIs("FOREIGN"):
		p.next()
		if !p.acceptKeyword("KEY") {
			return fmt.Errorf("expected KEY after FOREIGN")
		}
		name := constraintName
		if p.peek().isName() {
			if name == "" {
				name = p.peek().name()
			}
			p.next()
		}
		cols, err := p.columnList()
		if err != nil {
			return err
		}
		fk, err := p.references(name, cols)
		if err != nil {
			return err
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
		return nil

	case p.peekIs("CHECK"):
		p.next()
		expr := p.next()
		if expr.kind != tokParen {
			return fmt.Errorf("expected (expression) after CHECK")
		}
		t.Constraints = append(t.Constraints, ConstraintDefinition{
			Name: constraintName, Kind: ConstraintCheck, Expression: normalizeExpression(expr.text),
		})
		return nil

	case constraintName == "" && (p.peekIs("INDEX") || p.peekIs("KEY")):
		p.next()
		idx, err := p.indexBody("")
		if err != nil {
			return err
		}
		t.Indexes = append(t.Indexes, idx)
		return nil

	case constraintName == "" && (p.peekIs("FULLTEXT") || p.peekIs("SPATIAL")):
		kind := strings.ToUpper(p.next().text)
		if !p.acceptKeyword("INDEX") {
			p.acceptKeyword("KEY")
		}
		idx, err := p.indexBody("")
		if err != nil {
			return err
		}
		idx.Type = kind
		t.Indexes = append(t.Indexes, idx)
		return nil
	}

	if constraintName != "" {
		return fmt.Errorf("unsupported constraint %q", p.peek().text)
	}
	return parseColumnItem(t, p)
}

func isConstraintKeyword(t token) bool {
	for _, kw := range []string{"PRIMARY", "UNIQUE", "FOREIGN", "CHECK"} {
		if t.is(kw) {
			return true
		}
	}
	return false
}

// parseColumnItem parses
// name TYPE[(len[,scale])] [UNSIGNED] [NOT NULL|NULL] [DEFAULT v] [COMMENT 'c'] [AUTO_INCREMENT] ...
// Modifiers are accepted in any order, as MySQL does.
func parseColumnItem(t *TableSchema, p *tokenCursor) error {
	nameTok := p.next()
	if !nameTok.isName() {
		return fmt.Errorf("expected column name")
	}
	typeTok := p.next()
	if typeTok.kind != tokWord || typeTok.text == "" {
		return fmt.Errorf("column %q has no data type", nameTok.text)
	}
	rawType := typeTok.text
	if p.peek().kind == tokParen {
		rawType += "(" + p.next().text + ")"
	}
	for p.peekIs("UNSIGNED") || p.peekIs("SIGNED") || p.peekIs("ZEROFILL") {
		rawType += " " + strings.ToLower(p.next().text)
	}
	dt, err := parseDataType(rawType)
	if err != nil {
		return err
	}

	col := ColumnDefinition{Name: nameTok.name(), Type: dt, Nullable: true}

	for !p.done() {
		tok := p.next()
		switch {
		case tok.is("NOT"):
			if !p.acceptKeyword("NULL") {
				return fmt.Errorf("expected NULL after NOT")
			}
			col.Nullable = false
		case tok.is("NULL"):
			col.Nullable = true
		case tok.is("DEFAULT"):
			v, err := p.expression()
			if err != nil {
				return fmt.Errorf("column %q: DEFAULT: %w", col.Name, err)
			}
			col.Default = v
		case tok.is("COMMENT"):
			c := p.next()
			if c.kind != tokString {
				return fmt.Errorf("column %q: expected string after COMMENT", col.Name)
			}
			col.Comment = c.text
		case tok.is("AUTO_INCREMENT"):
			col.AutoIncrement = true
		case tok.is("PRIMARY"):
			p.acceptKeyword("KEY")
			col.IsPrimaryKey = true
		case tok.is("KEY"):
			col.IsPrimaryKey = true
		case tok.is("UNIQUE"):
			p.acceptKeyword("KEY")
			col.IsUnique = true
		case tok.is("ON"):
			if !p.acceptKeyword("UPDATE") {
				return fmt.Errorf("column %q: expected UPDATE after ON", col.Name)
			}
			v, err := p.expression()
			if err != nil || v == nil {
				return fmt.Errorf("column %q: ON UPDATE needs an expression", col.Name)
			}
			col.OnUpdate = strings.ToUpper(*v)
		case tok.is("CHARACTER"):
			p.acceptKeyword("SET")
			p.next()
		case tok.is("CHARSET"), tok.is("COLLATE"), tok.is("COLUMN_FORMAT"), tok.is("STORAGE"), tok.is("SRID"):
			p.acceptEquals()
			p.next()
		case tok.is("GENERATED"):
			p.acceptKeyword("ALWAYS")
		case tok.is("AS"):
			p.next()
		case tok.is("REFERENCES"):
			p.back()
			fk, err := p.references("", []string{col.Name})
			if err != nil {
				return err
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		case tok.is("CHECK"):
			expr := p.next()
			if expr.kind != tokParen {
				return fmt.Errorf("column %q: expected (expression) after CHECK", col.Name)
			}
			t.Constraints = append(t.Constraints, ConstraintDefinition{Kind: ConstraintCheck, Expression: normalizeExpression(expr.text)})
		case tok.is("CONSTRAINT"):
			if p.peek().isName() && !p.peekIs("CHECK") {
				p.next()
			}
		default:
			// VIRTUAL, STORED, VISIBLE, INVISIBLE and other flags carry nothing we compare.
		}
	}

	t.addColumn(col)
	return nil
}

// parseTableOptions reads ENGINE=..., DEFAULT CHARSET=..., COMMENT='...' after the list.
func parseTableOptions(t *TableSchema, rest string) error {
	toks, err := tokenize(rest)
	if err != nil {
		return err
	}
	p := &tokenCursor{toks: toks}
	for !p.done() {
		tok := p.next()
		if tok.is("COMMENT") {
			p.acceptEquals()
			if c := p.next(); c.kind == tokString {
				t.Comment = c.text
			}
		}
	}
	return nil
}

// normalizeExpression collapses whitespace and strips redundant outer parentheses
// so CHECK expressions compare structurally rather than byte-for-byte.
func normalizeExpression(expr string) string {
	expr = strings.Join(strings.Fields(expr), " ")
	for strings.HasPrefix(expr, "(") {
		close, err := matchParen(expr, 0)
		if err != nil || close != len(expr)-1 {
			break
		}
		expr = strings.TrimSpace(expr[1:close])
	}
	return strings.ReplaceAll(expr, "`", "")
}

type tokenCursor struct {
	toks []token
	pos  int
}

func (p *tokenCursor) done() bool { return p.pos >= len(p.toks) }

func (p *tokenCursor) peek() token {
	if p.done() {
		return token{kind: tokWord}
	}
	return p.toks[p.pos]
}

func (p *tokenCursor) peekIs(kw string) bool { return !p.done() && p.toks[p.pos].is(kw) }

func (p *tokenCursor) next() token {
	t := p.peek()
	if !p.done() {
		p.pos++
	}
	return t
}

func (p *tokenCursor) back() {
	if p.pos > 0 {
		p.pos--
	}
}

func (p *tokenCursor) acceptKeyword(kw string) bool {
	if p.peekIs(kw) {
		p.pos++
		return true
	}
	return false
}

func (p *tokenCursor) acceptEquals() {
	if !p.done() && p.toks[p.pos].kind == tokEquals {
		p.pos++
	}
}

// skipIndexType consumes "USING BTREE|HASH" and returns the type, if any.
func (p *tokenCursor) skipIndexType() string {
	if p.acceptKeyword("USING") {
		return strings.ToUpper(p.next().text)
	}
	return ""
}

// columnList consumes a (col[(len)] [ASC|DESC], ...) group.
func (p *tokenCursor) columnList() ([]string, error) {
	group := p.next()
	if group.kind != tokParen {
		return nil, fmt.Errorf("expected column list")
	}
	parts, err := splitTopLevel(group.text)
	if err != nil {
		return nil, err
	}
	cols := make([]string, 0, len(parts))
	for _, part := range parts {
		toks, err := tokenize(part)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 || !toks[0].isName() {
			return nil, fmt.Errorf("invalid key part %q", part)
		}
		cols = append(cols, toks[0].name())
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("empty column list")
	}
	return cols, nil
}

// indexBody parses "[name] [USING x] (key parts) [options]" for INDEX/KEY/UNIQUE items.
// Key parts may carry a prefix length or be a parenthesized expression.
func (p *tokenCursor) indexBody(name string) (IndexDefinition, error) {
	idx := IndexDefinition{Name: name}
	if p.peek().isName() && !p.peekIs("USING") {
		n := p.next().name()
		if idx.Name == "" {
			idx.Name = n
		}
	}
	idx.Type = p.skipIndexType()

	group := p.next()
	if group.kind != tokParen {
		return idx, fmt.Errorf("expected column list")
	}
	parts, err := splitTopLevel(group.text)
	if err != nil {
		return idx, err
	}
	for _, part := range parts {
		toks, err := tokenize(part)
		if err != nil {
			return idx, err
		}
		switch {
		case len(toks) > 0 && toks[0].kind == tokParen:
			idx.HasExpression = true
		case len(toks) > 0 && toks[0].isName():
			idx.Columns = append(idx.Columns, toks[0].name())
			if len(toks) > 1 && toks[1].kind == tokParen {
				idx.HasPrefix = true
			}
		default:
			return idx, fmt.Errorf("invalid key part %q", part)
		}
	}
	if len(idx.Columns) == 0 && !idx.HasExpression {
		return idx, fmt.Errorf("empty column list")
	}

	for !p.done() {
		tok := p.next()
		switch {
		case tok.is("COMMENT"):
			if c := p.next(); c.kind == tokString {
				idx.Comment = c.text
			}
		case tok.is("USING"):
			idx.Type = strings.ToUpper(p.next().text)
		}
	}
	return idx, nil
}

// references parses "REFERENCES tbl (cols) [ON DELETE a] [ON UPDATE a]".
func (p *tokenCursor) references(name string, cols []string) (ForeignKeyDefinition, error) {
	fk := ForeignKeyDefinition{Name: name, Columns: cols}
	if !p.acceptKeyword("REFERENCES") {
		return fk, fmt.Errorf("expected REFERENCES")
	}
	ref := p.next()
	if !ref.isName() {
		return fk, fmt.Errorf("expected referenced table")
	}
	fk.ReferencedTable = unquoteIdent(ref.text)
	// `db`.`tbl` arrives as ident, ".", ident
	for p.peek().kind == tokWord && strings.HasPrefix(p.peek().text, ".") {
		rest := strings.TrimPrefix(p.next().text, ".")
		if rest == "" && p.peek().isName() {
			rest = p.next().name()
		}
		fk.ReferencedTable = unquoteIdent(rest)
	}
	refCols, err := p.columnList()
	if err != nil {
		return fk, fmt.Errorf("referenced columns: %w", err)
	}
	fk.ReferencedColumns = refCols

	// Only MATCH and the referential actions belong to the reference; the
	// tokens after them (COMMENT, DEFAULT, ...) are left to the caller.
	for !p.done() {
		if p.acceptKeyword("MATCH") {
			p.next()
			continue
		}
		if !p.referentialActionAhead() {
			break
		}
		p.next()
		target := &fk.OnUpdate
		if p.acceptKeyword("DELETE") {
			target = &fk.OnDelete
		} else {
			p.next()
		}
		action := p.next().text
		if strings.EqualFold(action, "SET") || strings.EqualFold(action, "NO") {
			action += " " + p.next().text
		}
		normalized, err := normalizeAction(action)
		if err != nil {
			return fk, err
		}
		*target = normalized
	}
	if fk.OnDelete == "" {
		fk.OnDelete = ActionRestrict
	}
	if fk.OnUpdate == "" {
		fk.OnUpdate = ActionRestrict
	}
	return fk, nil
}

// referentialActionAhead reports whether the cursor is at "ON DELETE" or at
// "ON UPDATE <action>". A column's "ON UPDATE CURRENT_TIMESTAMP" is not one.
func (p *tokenCursor) referentialActionAhead() bool {
	if !p.peekIs("ON") || p.pos+1 >= len(p.toks) {
		return false
	}
	switch kw := p.toks[p.pos+1]; {
	case kw.is("DELETE"):
		return true
	case kw.is("UPDATE"):
		if p.pos+2 >= len(p.toks) {
			return false
		}
		a := p.toks[p.pos+2]
		return a.is("RESTRICT") || a.is("CASCADE") || a.is("SET") || a.is("NO")
	}
	return false
}

// expression reads a DEFAULT / ON UPDATE value: a literal, a keyword, a function
// call or a parenthesised expression. DEFAULT NULL yields nil.
func (p *tokenCursor) expression() (*string, error) {
	if p.done() {
		return nil, fmt.Errorf("missing value")
	}
	tok := p.next()
	var v string
	switch tok.kind {
	case tokString:
		v = tok.text
	case tokParen:
		v = "(" + strings.Join(strings.Fields(tok.text), " ") + ")"
	case tokWord:
		if tok.is("NULL") {
			return nil, nil
		}
		v = tok.text
		if isTypedLiteral(v) {
			break
		}
		if p.peek().kind == tokParen {
			v += "(" + strings.Join(strings.Fields(p.next().text), " ") + ")"
		}
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			v = strings.ToUpper(v)
		}
	default:
		return nil, fmt.Errorf("unexpected %q", tok.text)
	}
	return &v, nil
}

package main

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"
)

// TableIndexEntry is one table listed in the canonical table index.
type TableIndexEntry struct {
	Name        string
	Category    string
	Description string
	Line        int
}

// TableIndex is the canonical list of tables, in file order.
type TableIndex struct {
	Path       string
	Entries    []TableIndexEntry
	Duplicates []TableIndexEntry

	byName map[string]int
}

func newTableIndex(path string) *TableIndex {
	return &TableIndex{Path: path, byName: make(map[string]int)}
}

func (ix *TableIndex) add(e TableIndexEntry) {
	key := strings.ToLower(e.Name)
	if _, dup := ix.byName[key]; dup {
		ix.Duplicates = append(ix.Duplicates, e)
		return
	}
	ix.byName[key] = len(ix.Entries)
	ix.Entries = append(ix.Entries, e)
}

// Has reports whether the index lists the table, case-insensitively.
func (ix *TableIndex) Has(name string) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.byName[strings.ToLower(name)]
	return ok
}

func (ix *TableIndex) Entry(name string) (TableIndexEntry, bool) {
	if ix == nil {
		return TableIndexEntry{}, false
	}
	i, ok := ix.byName[strings.ToLower(name)]
	if !ok {
		return TableIndexEntry{}, false
	}
	return ix.Entries[i], true
}

// Names returns the listed table names in file order.
func (ix *TableIndex) Names() []string {
	if ix == nil {
		return nil
	}
	names := make([]string, len(ix.Entries))
	for i, e := range ix.Entries {
		names[i] = e.Name
	}
	return names
}

var (
	mdLinkRe      = regexp.MustCompile(`^\[([^\]]+)\]\([^)]*\)$`)
	mdSeparatorRe = regexp.MustCompile(`^:?-{2,}:?$`)
	bulletRe      = regexp.MustCompile(`^[-*+]\s+(.+)$`)
	bulletEntryRe = regexp.MustCompile(`^(\S+?)(?:\s*\(([^)]*)\))?\s*(?:[:\-–]\s*(.*))?$`)
)

// parseTableIndex reads the line-oriented table index. Three line shapes are
// accepted: markdown table rows, bullets ("- users (core): Accounts") and
// whitespace-separated "name category description" lines. Headings, blank
// lines and '#'/'>' lines are ignored, as are rows whose first cell is not an
// identifier.
func parseTableIndex(path string, text string) (*TableIndex, error) {
	ix := newTableIndex(path)
	cols := markdownColumns{name: 0, category: 1, description: 2}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, ">") {
			continue
		}

		if strings.HasPrefix(line, "|") {
			cells := splitMarkdownRow(line)
			if isSeparatorRow(cells) {
				continue
			}
			if header, ok := detectHeader(cells); ok {
				cols = header
				continue
			}
			name := cleanIndexCell(cellAt(cells, cols.name))
			if !validIdentifier(name) {
				continue
			}
			ix.add(TableIndexEntry{
				Name:        name,
				Category:    cleanIndexCell(cellAt(cells, cols.category)),
				Description: cellAt(cells, cols.description),
				Line:        lineNo,
			})
			continue
		}

		if m := bulletRe.FindStringSubmatch(line); m != nil {
			em := bulletEntryRe.FindStringSubmatch(strings.TrimSpace(m[1]))
			if em == nil {
				continue
			}
			name := cleanIndexCell(strings.TrimSuffix(em[1], ":"))
			if !validIdentifier(name) {
				continue
			}
			ix.add(TableIndexEntry{Name: name, Category: strings.TrimSpace(em[2]), Description: strings.TrimSpace(em[3]), Line: lineNo})
			continue
		}

		fields := strings.Fields(line)
		name := cleanIndexCell(fields[0])
		if !validIdentifier(name) {
			continue
		}
		e := TableIndexEntry{Name: name, Line: lineNo}
		if len(fields) > 1 {
			e.Category = fields[1]
		}
		if len(fields) > 2 {
			e.Description = strings.Join(fields[2:], " ")
		}
		ix.add(e)
	}
	if err := sc.Err(); err != nil {
		return nil, &ParseFailure{Path: path, Origin: OriginIndex, Reason: fmt.Sprintf("read: %v", err)}
	}
	return ix, nil
}

type markdownColumns struct {
	name, category, description int
}

func splitMarkdownRow(line string) []string {
	line = strings.TrimPrefix(line, "|")
	line = strings.TrimSuffix(line, "|")
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isSeparatorRow(cells []string) bool {
	for _, c := range cells {
		if c != "" && !mdSeparatorRe.MatchString(c) {
			return false
		}
	}
	return true
}

// detectHeader recognises a header row and maps its columns.
func detectHeader(cells []string) (markdownColumns, bool) {
	cols := markdownColumns{name: -1, category: -1, description: -1}
	for i, c := range cells {
		switch strings.ToLower(strings.ReplaceAll(c, " ", "_")) {
		case "table", "table_name", "name", "physical_name":
			if cols.name < 0 {
				cols.name = i
			}
		case "category", "group", "domain":
			cols.category = i
		case "description", "logical_name", "summary":
			if cols.description < 0 {
				cols.description = i
			}
		}
	}
	return cols, cols.name >= 0
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return cells[i]
}

// cleanIndexCell strips markdown decoration: links, backticks and emphasis.
func cleanIndexCell(s string) string {
	s = strings.TrimSpace(s)
	if m := mdLinkRe.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	return strings.Trim(s, "`*_ ")
}

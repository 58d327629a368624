package main

import "strings"

// mysqlReservedWords are MySQL reserved words that must be backtick-quoted as identifiers.
var mysqlReservedWords = map[string]bool{
	"add": true, "all": true, "alter": true, "analyze": true, "and": true, "as": true,
	"asc": true, "before": true, "between": true, "bigint": true, "binary": true,
	"blob": true, "both": true, "by": true, "call": true, "cascade": true, "case": true,
	"change": true, "char": true, "check": true, "collate": true, "column": true,
	"condition": true, "constraint": true, "create": true, "cross": true,
	"current_date": true, "current_time": true, "current_timestamp": true,
	"current_user": true, "database": true, "decimal": true, "default": true,
	"delete": true, "desc": true, "describe": true, "distinct": true, "double": true,
	"drop": true, "else": true, "exists": true, "false": true, "float": true, "for": true,
	"foreign": true, "from": true, "fulltext": true, "group": true, "having": true,
	"if": true, "in": true, "index": true, "inner": true, "insert": true, "int": true,
	"integer": true, "interval": true, "into": true, "is": true, "join": true, "key": true,
	"keys": true, "left": true, "like": true, "limit": true, "lock": true, "long": true,
	"match": true, "not": true, "null": true, "on": true, "option": true, "or": true,
	"order": true, "outer": true, "primary": true, "range": true, "read": true,
	"references": true, "rename": true, "replace": true, "restrict": true, "right": true,
	"select": true, "set": true, "show": true, "table": true, "then": true, "to": true,
	"trigger": true, "true": true, "union": true, "unique": true, "unsigned": true,
	"update": true, "usage": true, "use": true, "using": true, "values": true,
	"varchar": true, "when": true, "where": true, "with": true, "write": true,
}

// mysqlNeedsQuoting reports whether an identifier needs quoting beyond
// reserved-word checks (e.g. contains hyphens, spaces, or starts with a digit).
func mysqlNeedsQuoting(name string) bool {
	if name == "" {
		return true
	}
	for i, r := range name {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '$') {
			continue
		}
		return true
	}
	return false
}

// mysqlIdent returns a MySQL-safe identifier, backtick-quoting reserved words
// and names that contain characters invalid in bare identifiers.
func mysqlIdent(name string) string {
	if mysqlReservedWords[strings.ToLower(name)] || mysqlNeedsQuoting(name) {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return name
}

// validIdentifier reports whether name is usable as a bare table identifier in
// the table index.
func validIdentifier(name string) bool {
	return name != "" && len(name) <= 64 && !mysqlNeedsQuoting(name)
}

package main

import (
	"fmt"
	"strconv"
	"strings"
)

// DataType is a parsed MySQL column type.
type DataType struct {
	Raw       string
	Base      string // lowercase, aliases folded ("integer" -> "int")
	Length    int    // 0 when not given
	Precision int    // decimal-family only
	Scale     int    // decimal-family only
	Unsigned  bool
	Values    []string // ENUM / SET literals
}

var typeAliases = map[string]string{
	"integer":   "int",
	"int4":      "int",
	"int8":      "bigint",
	"dec":       "decimal",
	"numeric":   "decimal",
	"fixed":     "decimal",
	"character": "char",
	"bool":      "tinyint",
	"boolean":   "tinyint",
}

var precisionTypes = map[string]bool{
	"decimal": true,
	"float":   true,
	"double":  true,
	"real":    true,
}

func (d DataType) isEnumLike() bool {
	return d.Base == "enum" || d.Base == "set"
}

// String renders the canonical form used in messages.
func (d DataType) String() string {
	if d.Base == "" {
		return "(unknown)"
	}
	var b strings.Builder
	b.WriteString(d.Base)
	switch {
	case d.isEnumLike():
		quoted := make([]string, len(d.Values))
		for i, v := range d.Values {
			quoted[i] = "'" + strings.ReplaceAll(v, "'", "''") + "'"
		}
		fmt.Fprintf(&b, "(%s)", strings.Join(quoted, ","))
	case precisionTypes[d.Base] && d.Precision > 0:
		if d.Scale > 0 {
			fmt.Fprintf(&b, "(%d,%d)", d.Precision, d.Scale)
		} else {
			fmt.Fprintf(&b, "(%d)", d.Precision)
		}
	case d.Length > 0:
		fmt.Fprintf(&b, "(%d)", d.Length)
	}
	if d.Unsigned {
		b.WriteString(" unsigned")
	}
	return b.String()
}

// parseDataType parses a type such as "VARCHAR(255)", "decimal(10,2) unsigned"
// or "ENUM('a','b')".
func parseDataType(raw string) (DataType, error) {
	raw = strings.TrimSpace(raw)
	dt := DataType{Raw: raw}
	if raw == "" {
		return dt, fmt.Errorf("empty data type")
	}

	head := raw
	var args string
	if open := strings.IndexByte(raw, '('); open >= 0 {
		close := strings.LastIndexByte(raw, ')')
		if close < open {
			return dt, fmt.Errorf("unbalanced parentheses in type %q", raw)
		}
		head = raw[:open]
		args = raw[open+1 : close]
		for _, mod := range strings.Fields(strings.ToLower(raw[close+1:])) {
			applyTypeModifier(&dt, mod)
		}
	} else {
		fields := strings.Fields(raw)
		head = fields[0]
		for _, mod := range fields[1:] {
			applyTypeModifier(&dt, strings.ToLower(mod))
		}
	}

	base := strings.ToLower(strings.TrimSpace(head))
	if alias, ok := typeAliases[base]; ok {
		if (base == "bool" || base == "boolean") && args == "" {
			dt.Length = 1
		}
		base = alias
	}
	dt.Base = base

	if args == "" {
		return dt, nil
	}

	if dt.isEnumLike() {
		values, err := parseEnumSetValues(raw)
		if err != nil {
			return dt, err
		}
		dt.Values = values
		return dt, nil
	}

	parts := strings.Split(args, ",")
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return dt, fmt.Errorf("invalid size %q in type %q", strings.TrimSpace(p), raw)
		}
		nums = append(nums, n)
	}
	if len(nums) > 2 {
		return dt, fmt.Errorf("too many size arguments in type %q", raw)
	}

	if precisionTypes[base] {
		dt.Precision = nums[0]
		if len(nums) == 2 {
			dt.Scale = nums[1]
		}
		return dt, nil
	}
	if len(nums) == 2 {
		return dt, fmt.Errorf("type %q does not take a scale", raw)
	}
	dt.Length = nums[0]
	return dt, nil
}

func applyTypeModifier(dt *DataType, mod string) {
	switch mod {
	case "unsigned":
		dt.Unsigned = true
	case "signed", "zerofill":
	}
}

// typeDifferences lists the components in which two types differ, by name.
// Nullability and defaults are not part of a type.
func typeDifferences(a, b DataType) []string {
	var diffs []string
	if a.Base != b.Base {
		diffs = append(diffs, "base type")
	}
	if a.Length != b.Length {
		diffs = append(diffs, "length")
	}
	if a.Precision != b.Precision {
		diffs = append(diffs, "precision")
	}
	if a.Scale != b.Scale {
		diffs = append(diffs, "scale")
	}
	if a.Unsigned != b.Unsigned {
		diffs = append(diffs, "unsigned")
	}
	if !sameStringSet(a.Values, b.Values) {
		diffs = append(diffs, "enum values")
	}
	return diffs
}

func sameStringSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, v := range a {
		seen[v]++
	}
	for _, v := range b {
		if seen[v] == 0 {
			return false
		}
		seen[v]--
	}
	return true
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameFoldedStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}

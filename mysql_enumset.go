package main

import (
	"fmt"
	"strings"
)

// parseEnumSetValues extracts the literal list from an ENUM(...) or SET(...) type.
// Both '' and backslash escapes are honoured; double-quoted literals are accepted too.
func parseEnumSetValues(columnType string) ([]string, error) {
	open := strings.IndexByte(columnType, '(')
	close := strings.LastIndexByte(columnType, ')')
	if open < 0 || close <= open {
		return nil, fmt.Errorf("invalid enum/set column_type %q", columnType)
	}

	inside := columnType[open+1 : close]
	var values []string
	i := 0
	for i < len(inside) {
		for i < len(inside) && (inside[i] == ' ' || inside[i] == ',' || inside[i] == '\n' || inside[i] == '\t') {
			i++
		}
		if i >= len(inside) {
			break
		}
		quote := inside[i]
		if quote != '\'' && quote != '"' {
			return nil, fmt.Errorf("invalid enum/set value list in %q", columnType)
		}
		i++

		var b strings.Builder
		closed := false
		for i < len(inside) {
			c := inside[i]
			if c == '\\' {
				if i+1 >= len(inside) {
					return nil, fmt.Errorf("invalid escape in %q", columnType)
				}
				b.WriteByte(inside[i+1])
				i += 2
				continue
			}
			if c == quote {
				if i+1 < len(inside) && inside[i+1] == quote {
					b.WriteByte(quote)
					i += 2
					continue
				}
				i++
				closed = true
				break
			}
			b.WriteByte(c)
			i++
		}
		if !closed {
			return nil, fmt.Errorf("unterminated literal in %q", columnType)
		}

		values = append(values, b.String())
	}

	return values, nil
}

// parseEnumList accepts the looser shapes detail documents use for enum values:
// a YAML sequence is handled by the caller; this covers "a, b, c" and "'a','b'".
func parseEnumList(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	if strings.HasPrefix(v, "'") || strings.HasPrefix(v, `"`) {
		if values, err := parseEnumSetValues("(" + v + ")"); err == nil {
			return values
		}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

package main

import (
	"reflect"
	"testing"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		raw  string
		want DataType
		str  string
	}{
		{"VARCHAR(255)", DataType{Base: "varchar", Length: 255}, "varchar(255)"},
		{"decimal(10,2) unsigned", DataType{Base: "decimal", Precision: 10, Scale: 2, Unsigned: true}, "decimal(10,2) unsigned"},
		{"INTEGER", DataType{Base: "int"}, "int"},
		{"BIGINT UNSIGNED", DataType{Base: "bigint", Unsigned: true}, "bigint unsigned"},
		{"bool", DataType{Base: "tinyint", Length: 1}, "tinyint(1)"},
		{"int(11) zerofill", DataType{Base: "int", Length: 11}, "int(11)"},
		{"numeric(8)", DataType{Base: "decimal", Precision: 8}, "decimal(8)"},
		{"ENUM('a','b')", DataType{Base: "enum", Values: []string{"a", "b"}}, "enum('a','b')"},
		{"float", DataType{Base: "float"}, "float"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parseDataType(tt.raw)
			if err != nil {
				t.Fatalf("parseDataType(%q) error: %v", tt.raw, err)
			}
			tt.want.Raw = tt.raw
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseDataType(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
			if got.String() != tt.str {
				t.Errorf("String() = %q, want %q", got.String(), tt.str)
			}
		})
	}
}

func TestParseDataTypeErrors(t *testing.T) {
	for _, raw := range []string{"", "varchar(abc)", "int(1,2)", "decimal(1,2,3)", "varchar(", "enum(a)"} {
		if _, err := parseDataType(raw); err == nil {
			t.Errorf("parseDataType(%q) expected error", raw)
		}
	}
}

func TestTypeDifferences(t *testing.T) {
	mustType := func(raw string) DataType {
		dt, err := parseDataType(raw)
		if err != nil {
			t.Fatalf("parseDataType(%q) error: %v", raw, err)
		}
		return dt
	}

	tests := []struct {
		a, b string
		want []string
	}{
		{"varchar(255)", "VARCHAR(255)", nil},
		{"varchar(100)", "varchar(255)", []string{"length"}},
		{"int", "bigint unsigned", []string{"base type", "unsigned"}},
		{"decimal(10,2)", "decimal(12,4)", []string{"precision", "scale"}},
		{"enum('a','b')", "enum('b','a')", nil},
		{"enum('a')", "enum('a','c')", []string{"enum values"}},
		{"integer", "int", nil},
	}
	for _, tt := range tests {
		got := typeDifferences(mustType(tt.a), mustType(tt.b))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("typeDifferences(%s, %s) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
		if back := typeDifferences(mustType(tt.b), mustType(tt.a)); !reflect.DeepEqual(back, got) {
			t.Errorf("typeDifferences is not symmetric for %s / %s: %v vs %v", tt.a, tt.b, got, back)
		}
	}
}

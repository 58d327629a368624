package main

import (
	"reflect"
	"testing"
)

func TestParseEnumSetValues(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"enum('a','b')", []string{"a", "b"}},
		{`enum('a','b''c','d\'e')`, []string{"a", "b'c", "d'e"}},
		{`set("x", "y")`, []string{"x", "y"}},
		{"enum('has,comma', 'x')", []string{"has,comma", "x"}},
		{"enum()", nil},
	}
	for _, tt := range tests {
		got, err := parseEnumSetValues(tt.in)
		if err != nil {
			t.Fatalf("parseEnumSetValues(%q) error: %v", tt.in, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseEnumSetValues(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseEnumSetValuesErrors(t *testing.T) {
	for _, in := range []string{"enum", "enum(a)", "enum('a)", `enum('a\)`} {
		if _, err := parseEnumSetValues(in); err == nil {
			t.Errorf("parseEnumSetValues(%q) expected error", in)
		}
	}
}

func TestParseEnumList(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"a, b ,c", []string{"a", "b", "c"}},
		{"'a','b'", []string{"a", "b"}},
		{"", nil},
		{"single", []string{"single"}},
	}
	for _, tt := range tests {
		got := parseEnumList(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseEnumList(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

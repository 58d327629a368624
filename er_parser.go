package main

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ERTable is one table node of the entity-relationship graph with its
// outgoing foreign keys.
type ERTable struct {
	Name        string
	ForeignKeys []ForeignKeyDefinition
}

// ERGraph is the parsed entity-relationship graph.
type ERGraph struct {
	Path   string
	Tables []*ERTable

	// Problems holds per-table normalization failures keyed by table name.
	Problems map[string]string

	byName map[string]*ERTable
}

// Table returns the graph node for name, case-insensitively.
func (g *ERGraph) Table(name string) (*ERTable, bool) {
	if g == nil {
		return nil, false
	}
	t, ok := g.byName[strings.ToLower(name)]
	return t, ok
}

func (g *ERGraph) Has(name string) bool {
	_, ok := g.Table(name)
	return ok
}

// erTableBody is the mapping form of a table node.
type erTableBody struct {
	ForeignKeys   []rawForeignKey `yaml:"foreign_keys"`
	Relationships []rawForeignKey `yaml:"relationships"`
	References    []rawForeignKey `yaml:"references"`
}

// parseERGraph reads a tree keyed by table name. A table's value is either a
// sequence of foreign keys, a mapping with foreign_keys / relationships, or
// null for a table without outgoing references. A single top-level "tables" or
// "entities" key wrapping the tree is unwrapped.
func parseERGraph(path string, data []byte) (*ERGraph, error) {
	fail := func(format string, args ...any) error {
		return &ParseFailure{Path: path, Origin: OriginERGraph, Reason: fmt.Sprintf(format, args...)}
	}

	g := &ERGraph{Path: path, Problems: make(map[string]string), byName: make(map[string]*ERTable)}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fail("%v", err)
	}
	if len(root.Content) == 0 {
		return g, nil
	}
	top := root.Content[0]
	if top.Kind != yaml.MappingNode {
		return nil, fail("top level must be a mapping keyed by table name, got %s", nodeKindName(top.Kind))
	}
	if len(top.Content) == 2 {
		switch top.Content[0].Value {
		case "tables", "entities":
			if top.Content[1].Kind == yaml.MappingNode {
				top = top.Content[1]
			}
		}
	}

	for i := 0; i+1 < len(top.Content); i += 2 {
		name := strings.TrimSpace(top.Content[i].Value)
		body := top.Content[i+1]
		if name == "" {
			continue
		}
		t := &ERTable{Name: name}
		if _, dup := g.byName[strings.ToLower(name)]; dup {
			g.Problems[name] = "table listed more than once in ER graph"
			continue
		}
		g.byName[strings.ToLower(name)] = t
		g.Tables = append(g.Tables, t)

		raws, err := erForeignKeys(body)
		if err != nil {
			g.Problems[name] = err.Error()
			continue
		}
		for j, rf := range raws {
			fk, err := normalizeForeignKey(rf)
			if err != nil {
				g.Problems[name] = fmt.Sprintf("foreign key %d: %v", j, err)
				break
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	return g, nil
}

func erForeignKeys(body *yaml.Node) ([]rawForeignKey, error) {
	switch body.Kind {
	case yaml.ScalarNode:
		if body.Tag == "!!null" || body.Value == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("expected a list or mapping of foreign keys, got %q", body.Value)
	case yaml.SequenceNode:
		var raws []rawForeignKey
		if err := body.Decode(&raws); err != nil {
			return nil, err
		}
		return raws, nil
	case yaml.MappingNode:
		var b erTableBody
		if err := body.Decode(&b); err != nil {
			return nil, err
		}
		raws := append(b.ForeignKeys, b.Relationships...)
		return append(raws, b.References...), nil
	}
	return nil, nil
}

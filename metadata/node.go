package metadata

import (
	"kaitai_parquet_meta/internal/format"
)

// Node is an element of the nested schema tree, either a *GroupNode or a
// *PrimitiveNode.
type Node interface {
	Name() string
	// Path is empty for the root.
	Path() []string
	// Repetition reports false for the root, which has none.
	Repetition() (Repetition, bool)
	LogicalType() *LogicalType
	ConvertedType() (ConvertedType, bool)
	FieldID() (int32, bool)
}

type node struct {
	element *format.SchemaElement
	path    []string
}

func newNode(se *format.SchemaElement, path []string) node {
	return node{element: se, path: path}
}

func (n *node) Name() string { return n.element.Name }

func (n *node) Path() []string { return n.path }

func (n *node) Repetition() (Repetition, bool) {
	if n.element.RepetitionType == nil {
		return 0, false
	}
	return *n.element.RepetitionType, true
}

func (n *node) LogicalType() *LogicalType { return n.element.LogicalType }

func (n *node) ConvertedType() (ConvertedType, bool) {
	if n.element.ConvertedType == nil {
		return 0, false
	}
	return *n.element.ConvertedType, true
}

func (n *node) FieldID() (int32, bool) {
	if n.element.FieldID == nil {
		return 0, false
	}
	return *n.element.FieldID, true
}

// GroupNode is a nested group (struct, list or map wrapper) or the root.
type GroupNode struct {
	node
	fields []Node
}

func (g *GroupNode) NumFields() int { return len(g.fields) }

func (g *GroupNode) Field(i int) (Node, error) {
	if i < 0 || i >= len(g.fields) {
		return nil, outOfRange("field", i, len(g.fields))
	}
	return g.fields[i], nil
}

// Leaves returns the column descriptors below g in schema order.
func (g *GroupNode) Leaves() []*ColumnDescriptor {
	var out []*ColumnDescriptor
	for _, f := range g.fields {
		switch f := f.(type) {
		case *PrimitiveNode:
			out = append(out, f.column)
		case *GroupNode:
			out = append(out, f.Leaves()...)
		}
	}
	return out
}

// PrimitiveNode is a leaf; it maps one to one onto a column.
type PrimitiveNode struct {
	node
	column *ColumnDescriptor
}

func (p *PrimitiveNode) Column() *ColumnDescriptor { return p.column }

func (p *PrimitiveNode) PhysicalType() Type { return p.column.PhysicalType() }

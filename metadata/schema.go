package metadata

import (
	"strings"
	"sync/atomic"

	"kaitai_parquet_meta/internal/format"
)

// ColumnDescriptor describes one leaf column of the schema.
type ColumnDescriptor struct {
	index      int
	element    format.SchemaElement
	path       []string
	maxDef     int16
	maxRep     int16
	sortOrder  SortOrder
	elementIdx int
}

func (c *ColumnDescriptor) Index() int { return c.index }

func (c *ColumnDescriptor) Name() string { return c.element.Name }

// Path returns the names from the first level below the root down to the
// leaf. The returned slice must not be modified.
func (c *ColumnDescriptor) Path() []string { return c.path }

func (c *ColumnDescriptor) DottedPath() string { return strings.Join(c.path, ".") }

func (c *ColumnDescriptor) PhysicalType() Type { return *c.element.Type }

func (c *ColumnDescriptor) Repetition() Repetition { return *c.element.RepetitionType }

// TypeLength is the value width of FIXED_LEN_BYTE_ARRAY columns, zero
// otherwise.
func (c *ColumnDescriptor) TypeLength() int {
	if c.element.TypeLength == nil || c.PhysicalType() != FixedLenByteArray {
		return 0
	}
	return int(*c.element.TypeLength)
}

func (c *ColumnDescriptor) ConvertedType() (ConvertedType, bool) {
	if c.element.ConvertedType == nil {
		return 0, false
	}
	return *c.element.ConvertedType, true
}

// LogicalType returns the logical type annotation, or nil.
func (c *ColumnDescriptor) LogicalType() *LogicalType { return c.element.LogicalType }

func (c *ColumnDescriptor) FieldID() (int32, bool) {
	if c.element.FieldID == nil {
		return 0, false
	}
	return *c.element.FieldID, true
}

func (c *ColumnDescriptor) MaxDefinitionLevel() int16 { return c.maxDef }

func (c *ColumnDescriptor) MaxRepetitionLevel() int16 { return c.maxRep }

// SortOrder is the ordering statistics of this column are compared with.
func (c *ColumnDescriptor) SortOrder() SortOrder { return c.sortOrder }

func (c *ColumnDescriptor) isDecimal() bool {
	if lt := c.element.LogicalType; lt != nil && lt.Decimal != nil {
		return true
	}
	ct, ok := c.ConvertedType()
	return ok && ct == format.Decimal
}

// sortOrderOf picks the statistics ordering for a leaf. Byte arrays are
// always compared as unsigned bytes, whatever their annotation.
func sortOrderOf(se *format.SchemaElement) SortOrder {
	switch *se.Type {
	case format.Boolean, format.Float, format.Double:
		return SortSigned
	case format.Int32, format.Int64:
		if lt := se.LogicalType; lt != nil && lt.Integer != nil && !lt.Integer.IsSigned {
			return SortUnsigned
		}
		if ct := se.ConvertedType; ct != nil && ct.Unsigned() {
			return SortUnsigned
		}
		return SortSigned
	case format.ByteArray, format.FixedLenByteArray:
		return SortUnsigned
	default:
		// INT96 timestamps have no defined order
		return SortUnknown
	}
}

// SchemaDescriptor is the flattened view of a file schema. It is immutable
// after construction and shared by every row group of the file.
type SchemaDescriptor struct {
	elements []format.SchemaElement
	columns  []*ColumnDescriptor
	byPath   map[string]int
	root     atomic.Pointer[GroupNode]
}

// maxSchemaDepth bounds the nesting of groups below the root.
const maxSchemaDepth = 64

// NewSchemaDescriptor flattens the depth-first list of schema elements found
// in a footer. Element 0 is the root group.
func NewSchemaDescriptor(elements []format.SchemaElement) (*SchemaDescriptor, error) {
	if len(elements) == 0 {
		return nil, corruptf("schema is empty")
	}
	root := &elements[0]
	if root.Type != nil {
		return nil, corruptf("schema root %q has a physical type", root.Name)
	}

	s := &SchemaDescriptor{
		elements: elements,
		byPath:   make(map[string]int),
	}

	pos := 1
	var walk func(n int, path []string, def, rep int16) error
	walk = func(n int, path []string, def, rep int16) error {
		for i := 0; i < n; i++ {
			if pos >= len(elements) {
				return corruptf("schema element %q declares more children than the schema holds", strings.Join(path, "."))
			}
			idx := pos
			se := &elements[idx]
			pos++

			if se.RepetitionType == nil {
				return corruptf("schema element %d (%q) has no repetition type", idx, se.Name)
			}
			if !se.RepetitionType.Valid() {
				return corruptf("schema element %d (%q) has invalid repetition type %d", idx, se.Name, *se.RepetitionType)
			}

			d, r := def, rep
			switch *se.RepetitionType {
			case format.Optional:
				d++
			case format.Repeated:
				d++
				r++
			}

			childPath := make([]string, len(path)+1)
			copy(childPath, path)
			childPath[len(path)] = se.Name

			numChildren := int32(0)
			if se.NumChildren != nil {
				numChildren = *se.NumChildren
			}
			if numChildren < 0 {
				return corruptf("schema element %d (%q) has negative num_children", idx, se.Name)
			}

			if se.Type == nil {
				if se.NumChildren == nil {
					return corruptf("schema element %d (%q) is neither a group nor typed", idx, se.Name)
				}
				if len(childPath) > maxSchemaDepth {
					return corruptf("schema element %d (%q) nests deeper than %d groups", idx, se.Name, maxSchemaDepth)
				}
				if err := walk(int(numChildren), childPath, d, r); err != nil {
					return err
				}
				continue
			}

			if numChildren > 0 {
				return corruptf("schema element %d (%q) has a physical type and children", idx, se.Name)
			}
			if !se.Type.Valid() {
				return corruptf("schema element %d (%q) has invalid physical type %d", idx, se.Name, *se.Type)
			}
			if *se.Type == format.FixedLenByteArray && (se.TypeLength == nil || *se.TypeLength <= 0) {
				return corruptf("schema element %d (%q) is FIXED_LEN_BYTE_ARRAY without a positive type_length", idx, se.Name)
			}

			col := &ColumnDescriptor{
				index:      len(s.columns),
				element:    *se,
				path:       childPath,
				maxDef:     d,
				maxRep:     r,
				sortOrder:  sortOrderOf(se),
				elementIdx: idx,
			}
			s.columns = append(s.columns, col)
			s.byPath[col.DottedPath()] = col.index
		}
		return nil
	}

	numChildren := int32(0)
	if root.NumChildren != nil {
		numChildren = *root.NumChildren
	}
	if numChildren < 0 {
		return nil, corruptf("schema root has negative num_children")
	}
	if err := walk(int(numChildren), nil, 0, 0); err != nil {
		return nil, err
	}
	if pos != len(elements) {
		return nil, corruptf("schema has %d elements not reachable from the root", len(elements)-pos)
	}
	return s, nil
}

// Name is the root element name.
func (s *SchemaDescriptor) Name() string { return s.elements[0].Name }

func (s *SchemaDescriptor) NumColumns() int { return len(s.columns) }

// Column returns the i-th leaf column in footer order.
func (s *SchemaDescriptor) Column(i int) (*ColumnDescriptor, error) {
	if i < 0 || i >= len(s.columns) {
		return nil, outOfRange("column", i, len(s.columns))
	}
	return s.columns[i], nil
}

// ColumnIndex looks up a leaf column by its dotted path.
func (s *SchemaDescriptor) ColumnIndex(dottedPath string) (int, bool) {
	i, ok := s.byPath[dottedPath]
	return i, ok
}

// Root returns the nested schema tree. It is built on first use; concurrent
// first calls may each build a tree, and all callers get the one published
// first.
func (s *SchemaDescriptor) Root() *GroupNode {
	if g := s.root.Load(); g != nil {
		return g
	}
	g := s.buildTree()
	if s.root.CompareAndSwap(nil, g) {
		return g
	}
	return s.root.Load()
}

func (s *SchemaDescriptor) buildTree() *GroupNode {
	leafAt := make(map[int]*ColumnDescriptor, len(s.columns))
	for _, c := range s.columns {
		leafAt[c.elementIdx] = c
	}

	pos := 1
	var build func(se *format.SchemaElement, path []string) *GroupNode
	build = func(se *format.SchemaElement, path []string) *GroupNode {
		g := &GroupNode{node: newNode(se, path)}
		n := 0
		if se.NumChildren != nil {
			n = int(*se.NumChildren)
		}
		for i := 0; i < n; i++ {
			idx := pos
			child := &s.elements[idx]
			pos++
			childPath := append(append([]string(nil), path...), child.Name)
			if col, ok := leafAt[idx]; ok {
				g.fields = append(g.fields, &PrimitiveNode{node: newNode(child, childPath), column: col})
			} else {
				g.fields = append(g.fields, build(child, childPath))
			}
		}
		return g
	}
	return build(&s.elements[0], nil)
}

package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"kaitai_parquet_meta/metadata"
)

type schemaCommand struct {
	cli  *cli
	file string
}

type columnView struct {
	Index         int    `json:"index" yaml:"index"`
	Path          string `json:"path" yaml:"path"`
	PhysicalType  string `json:"physical_type" yaml:"physical_type"`
	TypeLength    int    `json:"type_length,omitempty" yaml:"type_length,omitempty"`
	Repetition    string `json:"repetition" yaml:"repetition"`
	LogicalType   string `json:"logical_type,omitempty" yaml:"logical_type,omitempty"`
	ConvertedType string `json:"converted_type,omitempty" yaml:"converted_type,omitempty"`
	MaxDefinition int16  `json:"max_definition_level" yaml:"max_definition_level"`
	MaxRepetition int16  `json:"max_repetition_level" yaml:"max_repetition_level"`
	SortOrder     string `json:"sort_order" yaml:"sort_order"`
}

type schemaView struct {
	Name      string       `json:"name" yaml:"name"`
	Version   int32        `json:"version" yaml:"version"`
	CreatedBy string       `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	NumRows   int64        `json:"num_rows" yaml:"num_rows"`
	RowGroups int          `json:"row_groups" yaml:"row_groups"`
	Columns   []columnView `json:"columns" yaml:"columns"`
}

func newColumnView(col *metadata.ColumnDescriptor) columnView {
	v := columnView{
		Index:         col.Index(),
		Path:          col.DottedPath(),
		PhysicalType:  col.PhysicalType().String(),
		TypeLength:    col.TypeLength(),
		Repetition:    col.Repetition().String(),
		MaxDefinition: col.MaxDefinitionLevel(),
		MaxRepetition: col.MaxRepetitionLevel(),
		SortOrder:     col.SortOrder().String(),
	}
	if lt := col.LogicalType(); lt != nil {
		v.LogicalType = lt.String()
	}
	if ct, ok := col.ConvertedType(); ok {
		v.ConvertedType = ct.String()
	}
	return v
}

func newSchemaView(md *metadata.FileMetaData) *schemaView {
	s := md.Schema()
	v := &schemaView{
		Name:      s.Name(),
		Version:   md.Version(),
		NumRows:   md.NumRows(),
		RowGroups: md.NumRowGroups(),
	}
	v.CreatedBy, _ = md.CreatedBy()
	for i := 0; i < s.NumColumns(); i++ {
		col, _ := s.Column(i)
		v.Columns = append(v.Columns, newColumnView(col))
	}
	return v
}

func (v *schemaView) table(w io.Writer) {
	bold.Fprintf(w, "message %s\n", v.Name)
	fmt.Fprintf(w, "version %d, %s rows in %d row groups", v.Version, humanize.Comma(v.NumRows), v.RowGroups)
	if v.CreatedBy != "" {
		fmt.Fprintf(w, ", created by %s", v.CreatedBy)
	}
	fmt.Fprintln(w)

	t := newTable(w, "#", "COLUMN", "TYPE", "REPETITION", "LOGICAL", "CONVERTED", "DEF", "REP", "ORDER")
	for _, c := range v.Columns {
		typ := c.PhysicalType
		if c.TypeLength > 0 {
			typ = fmt.Sprintf("%s(%d)", typ, c.TypeLength)
		}
		t.Append([]string{
			strconv.Itoa(c.Index), c.Path, typ, c.Repetition, c.LogicalType, c.ConvertedType,
			strconv.Itoa(int(c.MaxDefinition)), strconv.Itoa(int(c.MaxRepetition)), c.SortOrder,
		})
	}
	t.Render()
}

func (cmd *schemaCommand) run(*kingpin.ParseContext) error {
	ctx, cancel := cmd.cli.context()
	defer cancel()

	md, f, err := cmd.cli.open(ctx, cmd.file)
	if err != nil {
		return err
	}
	defer f.Close()
	return cmd.cli.render(newSchemaView(md))
}

func addSchemaCommand(app *kingpin.Application, c *cli) {
	cmd := &schemaCommand{cli: c}
	schema := app.Command("schema", "Print the flattened schema.").Action(cmd.run)
	schema.Arg("file", "Parquet file.").Required().ExistingFileVar(&cmd.file)
}

package main

import (
	"io"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/pkg/errors"

	"kaitai_parquet_meta/metadata"
)

type statsCommand struct {
	cli      *cli
	file     string
	column   string
	rowGroup int
}

type statsView struct {
	RowGroup      int    `json:"row_group" yaml:"row_group"`
	Column        string `json:"column" yaml:"column"`
	PhysicalType  string `json:"physical_type" yaml:"physical_type"`
	SortOrder     string `json:"sort_order" yaml:"sort_order"`
	Set           bool   `json:"set" yaml:"set"`
	Min           string `json:"min,omitempty" yaml:"min,omitempty"`
	Max           string `json:"max,omitempty" yaml:"max,omitempty"`
	NullCount     *int64 `json:"null_count,omitempty" yaml:"null_count,omitempty"`
	DistinctCount *int64 `json:"distinct_count,omitempty" yaml:"distinct_count,omitempty"`
}

type statsViews []statsView

func newStatsView(rg int, cc *metadata.ColumnChunkMetaData) statsView {
	col := cc.Descriptor()
	v := statsView{
		RowGroup:     rg,
		Column:       col.DottedPath(),
		PhysicalType: col.PhysicalType().String(),
		SortOrder:    col.SortOrder().String(),
	}
	s, ok := cc.Statistics()
	if !ok {
		return v
	}
	v.Set = true
	v.Min, v.Max = formatBounds(col, s)
	if n, ok := s.NullCount(); ok {
		v.NullCount = &n
	}
	if n, ok := s.DistinctCount(); ok {
		v.DistinctCount = &n
	}
	return v
}

func optCount(n *int64) string {
	if n == nil {
		return "-"
	}
	return strconv.FormatInt(*n, 10)
}

func (v statsViews) table(w io.Writer) {
	t := newTable(w, "RG", "COLUMN", "TYPE", "ORDER", "MIN", "MAX", "NULLS", "DISTINCT")
	for _, s := range v {
		lo, hi := s.Min, s.Max
		if !s.Set {
			lo, hi = "(absent)", "(absent)"
		} else if lo == "" && hi == "" {
			lo, hi = "-", "-"
		}
		t.Append([]string{
			strconv.Itoa(s.RowGroup), s.Column, s.PhysicalType, s.SortOrder,
			lo, hi, optCount(s.NullCount), optCount(s.DistinctCount),
		})
	}
	t.Render()
}

func (cmd *statsCommand) views(md *metadata.FileMetaData) (statsViews, error) {
	cols := make([]int, 0, md.NumColumns())
	if cmd.column != "" {
		i, ok := md.Schema().ColumnIndex(cmd.column)
		if !ok {
			return nil, errors.Errorf("no column %q", cmd.column)
		}
		cols = append(cols, i)
	} else {
		for i := 0; i < md.NumColumns(); i++ {
			cols = append(cols, i)
		}
	}

	first, last := 0, md.NumRowGroups()-1
	if cmd.rowGroup >= 0 {
		if _, err := md.RowGroup(cmd.rowGroup); err != nil {
			return nil, err
		}
		first, last = cmd.rowGroup, cmd.rowGroup
	}

	var out statsViews
	for i := first; i <= last; i++ {
		rg, err := md.RowGroup(i)
		if err != nil {
			return nil, err
		}
		for _, j := range cols {
			cc, err := rg.ColumnChunk(j)
			if err != nil {
				return nil, err
			}
			out = append(out, newStatsView(i, cc))
		}
	}
	return out, nil
}

func (cmd *statsCommand) run(*kingpin.ParseContext) error {
	ctx, cancel := cmd.cli.context()
	defer cancel()

	md, f, err := cmd.cli.open(ctx, cmd.file)
	if err != nil {
		return err
	}
	defer f.Close()

	v, err := cmd.views(md)
	if err != nil {
		return err
	}
	return cmd.cli.render(v)
}

func addStatsCommand(app *kingpin.Application, c *cli) {
	cmd := &statsCommand{cli: c}
	stats := app.Command("stats", "Print column chunk statistics.").Action(cmd.run)
	stats.Flag("column", "Only this column, by dotted path.").Short('c').StringVar(&cmd.column)
	stats.Flag("row-group", "Only this row group.").Short('r').Default("-1").IntVar(&cmd.rowGroup)
	stats.Arg("file", "Parquet file.").Required().ExistingFileVar(&cmd.file)
}

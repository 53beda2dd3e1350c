package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"

	"kaitai_parquet_meta/metadata"
)

type rowGroupsCommand struct {
	cli  *cli
	file string
}

type chunkView struct {
	Column            string   `json:"column" yaml:"column"`
	Codec             string   `json:"codec" yaml:"codec"`
	Encodings         []string `json:"encodings" yaml:"encodings"`
	Offset            int64    `json:"offset" yaml:"offset"`
	CompressedSize    int64    `json:"compressed_size" yaml:"compressed_size"`
	UncompressedSize  int64    `json:"uncompressed_size" yaml:"uncompressed_size"`
	NumValues         int64    `json:"num_values" yaml:"num_values"`
	HasDictionaryPage bool     `json:"has_dictionary_page" yaml:"has_dictionary_page"`
	FilePath          string   `json:"file_path,omitempty" yaml:"file_path,omitempty"`
}

type rowGroupView struct {
	Index                 int         `json:"index" yaml:"index"`
	NumRows               int64       `json:"num_rows" yaml:"num_rows"`
	TotalByteSize         int64       `json:"total_byte_size" yaml:"total_byte_size"`
	DeclaredTotalByteSize int64       `json:"declared_total_byte_size" yaml:"declared_total_byte_size"`
	TotalCompressedSize   int64       `json:"total_compressed_size" yaml:"total_compressed_size"`
	FileOffset            int64       `json:"file_offset" yaml:"file_offset"`
	Chunks                []chunkView `json:"chunks" yaml:"chunks"`
}

type rowGroupsView []rowGroupView

func newRowGroupsView(md *metadata.FileMetaData) (rowGroupsView, error) {
	var v rowGroupsView
	for i := 0; i < md.NumRowGroups(); i++ {
		rg, err := md.RowGroup(i)
		if err != nil {
			return nil, err
		}
		rv := rowGroupView{
			Index:                 i,
			NumRows:               rg.NumRows(),
			TotalByteSize:         rg.TotalByteSize(),
			DeclaredTotalByteSize: rg.DeclaredTotalByteSize(),
			TotalCompressedSize:   rg.TotalCompressedSize(),
			FileOffset:            rg.FileOffset(),
		}
		for j := 0; j < rg.NumColumns(); j++ {
			cc, err := rg.ColumnChunk(j)
			if err != nil {
				return nil, err
			}
			off, n := cc.ByteRange()
			cv := chunkView{
				Column:            cc.Descriptor().DottedPath(),
				Codec:             cc.Compression().String(),
				Offset:            off,
				CompressedSize:    n,
				UncompressedSize:  cc.TotalUncompressedSize(),
				NumValues:         cc.NumValues(),
				HasDictionaryPage: cc.HasDictionaryPage(),
			}
			cv.FilePath, _ = cc.FilePath()
			for _, e := range cc.Encodings() {
				cv.Encodings = append(cv.Encodings, e.String())
			}
			rv.Chunks = append(rv.Chunks, cv)
		}
		v = append(v, rv)
	}
	return v, nil
}

func (v rowGroupsView) table(w io.Writer) {
	for _, rg := range v {
		bold.Fprintf(w, "row group %d: ", rg.Index)
		fmt.Fprintf(w, "%s rows, %s compressed, %s uncompressed, offset %d\n",
			humanize.Comma(rg.NumRows), humanize.Bytes(uint64(rg.TotalCompressedSize)),
			humanize.Bytes(uint64(rg.TotalByteSize)), rg.FileOffset)

		t := newTable(w, "COLUMN", "CODEC", "ENCODINGS", "OFFSET", "COMPRESSED", "UNCOMPRESSED", "VALUES", "DICT")
		for _, c := range rg.Chunks {
			col := c.Column
			if c.FilePath != "" {
				col += " @ " + c.FilePath
			}
			t.Append([]string{
				col, c.Codec, strings.Join(c.Encodings, ","), strconv.FormatInt(c.Offset, 10),
				humanize.Bytes(uint64(c.CompressedSize)), humanize.Bytes(uint64(c.UncompressedSize)),
				humanize.Comma(c.NumValues), strconv.FormatBool(c.HasDictionaryPage),
			})
		}
		t.Render()
		fmt.Fprintln(w)
	}
}

func (cmd *rowGroupsCommand) run(*kingpin.ParseContext) error {
	ctx, cancel := cmd.cli.context()
	defer cancel()

	md, f, err := cmd.cli.open(ctx, cmd.file)
	if err != nil {
		return err
	}
	defer f.Close()

	v, err := newRowGroupsView(md)
	if err != nil {
		return err
	}
	return cmd.cli.render(v)
}

func addRowGroupsCommand(app *kingpin.Application, c *cli) {
	cmd := &rowGroupsCommand{cli: c}
	rowGroups := app.Command("rowgroups", "Print row groups and their column chunks.").Action(cmd.run)
	rowGroups.Arg("file", "Parquet file.").Required().ExistingFileVar(&cmd.file)
}

package main

import (
	"fmt"
	"io"
	"runtime"
	"strconv"

	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"kaitai_parquet_meta/internal/verify"
)

type verifyCommand struct {
	cli         *cli
	file        string
	parallelism int
}

type verifyView struct {
	Footer *verify.FooterReport `json:"footer" yaml:"footer"`
	Chunks []*verify.Report     `json:"chunks" yaml:"chunks"`
}

func (v verifyView) table(w io.Writer) {
	footer := green.Sprint("re-encodes identically")
	if f := v.Footer; !f.Identical {
		footer = fmt.Sprintf("re-encodes to %s, first difference at byte %d",
			humanize.Bytes(uint64(f.Reencoded)), *f.FirstDifference)
	}
	fmt.Fprintf(w, "footer: %s, %s\n\n", humanize.Bytes(uint64(v.Footer.Bytes)), footer)

	t := newTable(w, "RG", "COLUMN", "CODEC", "PAGES", "VALUES", "NULLS", "COMPRESSED", "UNCOMPRESSED", "STATUS")
	var problems []*verify.Report
	for _, r := range v.Chunks {
		status := green.Sprint("ok")
		switch {
		case !r.OK():
			status = red.Sprintf("%d problems", len(r.Problems))
			problems = append(problems, r)
		case r.Skipped != "":
			status = "skipped: " + r.Skipped
		}
		nulls := "-"
		if r.Nulls != nil {
			nulls = humanize.Comma(*r.Nulls)
		}
		t.Append([]string{
			strconv.Itoa(r.RowGroup), r.Column, r.Codec, strconv.Itoa(r.Pages), humanize.Comma(r.Values), nulls,
			humanize.Bytes(uint64(r.CompressedBytes)), humanize.Bytes(uint64(r.UncompressedBytes)), status,
		})
	}
	t.Render()

	for _, r := range problems {
		bold.Fprintf(w, "\nrow group %d, column %s\n", r.RowGroup, r.Column)
		for _, p := range r.Problems {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
}

func (cmd *verifyCommand) run(*kingpin.ParseContext) error {
	ctx, cancel := cmd.cli.context()
	defer cancel()

	md, f, err := cmd.cli.open(ctx, cmd.file)
	if err != nil {
		return err
	}
	defer f.Close()

	reports, err := verify.File(ctx, f, md, cmd.parallelism, cmd.cli.logger)
	if err != nil {
		return err
	}
	view := verifyView{Footer: verify.Footer(md, cmd.cli.logger), Chunks: reports}
	if err := cmd.cli.render(view); err != nil {
		return err
	}

	var failed int
	for _, r := range reports {
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d column chunks failed verification", failed, len(reports))
	}
	return nil
}

func addVerifyCommand(app *kingpin.Application, c *cli) {
	cmd := &verifyCommand{cli: c}
	v := app.Command("verify", "Read every page and check it against the footer.").Action(cmd.run)
	v.Flag("parallelism", "Column chunks verified concurrently.").
		Envar("PQMETA_PARALLELISM").Default(strconv.Itoa(runtime.NumCPU())).IntVar(&cmd.parallelism)
	v.Arg("file", "Parquet file.").Required().ExistingFileVar(&cmd.file)
}

// Command pqmeta prints the footer metadata of parquet files: schema, row
// groups, column chunk statistics, and a page level consistency check.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/fatih/color"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"

	"kaitai_parquet_meta/metadata"
)

type cli struct {
	out    io.Writer
	errOut io.Writer
	logger log.Logger

	format   string
	logLevel string
	timeout  time.Duration
	strict   bool
	noColor  bool
}

func newApp(c *cli) *kingpin.Application {
	app := kingpin.New("pqmeta", "Inspect parquet file metadata.")
	app.HelpFlag.Short('h')
	app.UsageWriter(c.errOut)
	app.ErrorWriter(c.errOut)

	app.Flag("format", "Output format: table, json or yaml.").
		Envar("PQMETA_FORMAT").Default("table").EnumVar(&c.format, "table", "json", "yaml")
	app.Flag("log.level", "Only log messages with the given severity or above.").
		Envar("PQMETA_LOG_LEVEL").Default("warn").EnumVar(&c.logLevel, "debug", "info", "warn", "error")
	app.Flag("timeout", "Give up after this long.").
		Envar("PQMETA_TIMEOUT").Default("30s").DurationVar(&c.timeout)
	app.Flag("strict", "Reject row groups whose total_byte_size disagrees with their column chunks.").
		Envar("PQMETA_STRICT").BoolVar(&c.strict)
	app.Flag("no-color", "Disable colored table output.").
		Envar("PQMETA_NO_COLOR").BoolVar(&c.noColor)
	app.PreAction(c.setup)

	addSchemaCommand(app, c)
	addRowGroupsCommand(app, c)
	addStatsCommand(app, c)
	addVerifyCommand(app, c)
	return app
}

func (c *cli) setup(*kingpin.ParseContext) error {
	var allow level.Option
	switch c.logLevel {
	case "debug":
		allow = level.AllowDebug()
	case "info":
		allow = level.AllowInfo()
	case "error":
		allow = level.AllowError()
	default:
		allow = level.AllowWarn()
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(c.errOut))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	c.logger = level.NewFilter(logger, allow)

	if c.noColor || c.format != "table" {
		color.NoColor = true
	}
	return nil
}

// open reads and validates the footer of path. The caller closes the file.
func (c *cli) open(ctx context.Context, path string) (*metadata.FileMetaData, *os.File, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	default:
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open file")
	}
	opts := []metadata.Option{metadata.WithLogger(log.With(c.logger, "file", path))}
	if c.strict {
		opts = append(opts, metadata.WithStrictSizes())
	}
	md, err := metadata.Open(f, opts...)
	if err != nil {
		_ = f.Close()
		return nil, nil, errors.Wrapf(err, "read %s", path)
	}
	return md, f, nil
}

func (c *cli) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func main() {
	c := &cli{out: os.Stdout, errOut: os.Stderr, logger: log.NewNopLogger()}
	app := newApp(c)
	if _, err := app.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

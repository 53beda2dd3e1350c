package metadata

import (
	"github.com/go-kit/log"
)

type options struct {
	fileSize      int64
	fileSizeKnown bool
	footerLen   int64
	strictSizes bool
	logger      log.Logger
}

// Option configures Parse, Open and NewRowGroupMetaData.
type Option func(*options)

// WithFileSize enables byte range validation of column chunks against a file
// of n bytes.
func WithFileSize(n int64) Option {
	return func(o *options) {
		o.fileSize = n
		o.fileSizeKnown = true
	}
}

// WithStrictSizes rejects row groups whose declared total_byte_size differs
// from the sum of their column chunks' uncompressed sizes.
func WithStrictSizes() Option {
	return func(o *options) {
		o.strictSizes = true
	}
}

// WithLogger sets the logger tolerated anomalies are reported to.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func withFooterLen(n int64) Option {
	return func(o *options) {
		o.footerLen = n
	}
}

func newOptions(opts []Option) *options {
	o := &options{logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = log.NewNopLogger()
	}
	return o
}

// dataEnd is the first offset past the column data. ok is false when the
// file size is not known.
func (o *options) dataEnd() (end int64, ok bool) {
	if !o.fileSizeKnown {
		return 0, false
	}
	if o.footerLen > 0 {
		return o.fileSize - 8 - o.footerLen, true
	}
	return o.fileSize, true
}

// checkFileSize rejects a file size that cannot hold the leading magic and
// the footer with its length and trailing magic.
func (o *options) checkFileSize() error {
	if !o.fileSizeKnown {
		return nil
	}
	if o.fileSize < o.footerLen+12 {
		return corruptf("file of %d bytes cannot hold a footer of %d bytes", o.fileSize, o.footerLen)
	}
	return nil
}

package metadata

import (
	"github.com/pkg/errors"
)

var (
	// ErrOutOfRange is returned by indexed getters called with an index
	// outside the valid range. Nothing is modified when it is returned.
	ErrOutOfRange = errors.New("index out of range")

	// ErrCorruptMetadata is returned when footer data is malformed. It is
	// only ever returned at construction time; no partially built object is
	// handed out alongside it.
	ErrCorruptMetadata = errors.New("corrupt parquet metadata")

	// ErrTypeMismatch is returned when statistics are requested as a
	// physical type other than the column's.
	ErrTypeMismatch = errors.New("statistics type mismatch")
)

func corruptf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrCorruptMetadata, format, args...)
}

func outOfRange(what string, i, n int) error {
	return errors.Wrapf(ErrOutOfRange, "%s %d not in [0, %d)", what, i, n)
}

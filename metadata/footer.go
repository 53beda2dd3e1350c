package metadata

import (
	"bytes"
	"io"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"
	"github.com/pkg/errors"
)

var (
	magic          = []byte("PAR1")
	encryptedMagic = []byte("PARE")
)

// ReadFooter locates and returns the serialized footer of a parquet file,
// along with the file size.
func ReadFooter(r io.ReadSeeker) ([]byte, int64, error) {
	ks := kaitai.NewStream(r)
	size, err := ks.Size()
	if err != nil {
		return nil, 0, errors.Wrap(err, "stat parquet file")
	}
	if size < int64(2*len(magic)+4) {
		return nil, size, corruptf("file of %d bytes is too small to be parquet", size)
	}

	if _, err := ks.Seek(0, io.SeekStart); err != nil {
		return nil, size, errors.Wrap(err, "seek to header")
	}
	head, err := ks.ReadBytes(len(magic))
	if err != nil {
		return nil, size, errors.Wrap(err, "read header magic")
	}
	if !bytes.Equal(head, magic) {
		return nil, size, corruptf("bad header magic %q", head)
	}

	if _, err := ks.Seek(size-8, io.SeekStart); err != nil {
		return nil, size, errors.Wrap(err, "seek to footer length")
	}
	footerLen, err := ks.ReadU4le()
	if err != nil {
		return nil, size, errors.Wrap(err, "read footer length")
	}
	tail, err := ks.ReadBytes(len(magic))
	if err != nil {
		return nil, size, errors.Wrap(err, "read footer magic")
	}
	if bytes.Equal(tail, encryptedMagic) {
		return nil, size, corruptf("encrypted footers are not supported")
	}
	if !bytes.Equal(tail, magic) {
		return nil, size, corruptf("bad footer magic %q", tail)
	}
	if int64(footerLen) > size-12 {
		return nil, size, corruptf("footer length %d exceeds file size %d", footerLen, size)
	}

	if _, err := ks.Seek(size-8-int64(footerLen), io.SeekStart); err != nil {
		return nil, size, errors.Wrap(err, "seek to footer")
	}
	footer, err := ks.ReadBytes(int(footerLen))
	if err != nil {
		return nil, size, errors.Wrap(err, "read footer")
	}
	return footer, size, nil
}

// Open reads the footer of a parquet file and parses it, checking column
// chunk byte ranges against the file size.
func Open(r io.ReadSeeker, opts ...Option) (*FileMetaData, error) {
	footer, size, err := ReadFooter(r)
	if err != nil {
		return nil, err
	}
	return Parse(footer, append([]Option{WithFileSize(size)}, opts...)...)
}

package delta

import (
	"bytes"
	"io"

	"github.com/klauspost/compress/zstd"

	"miniblob/pkg/helper/errors"
)

// Compress wraps delta bytes in a zstd stream. The spec treats this as a
// pluggable outer layer: callers decide whether an object payload carries a
// compressed or a raw delta, and Decompress must be applied before Decode.
func Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd writer")
	}

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, errors.Wrap(err, "failed to compress delta")
	}
	if err := w.Close(); err != nil {
		return nil, errors.Wrap(err, "failed to finalize delta compression")
	}

	return buf.Bytes(), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	r, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create zstd reader")
	}
	defer r.Close()

	out, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decompress delta")
	}

	return out, nil
}

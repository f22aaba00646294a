package submission

import (
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"
)

const (
	gzipSuffix  = ".gz"
	bzip2Suffix = ".bz2"
)

// Decompress strips a recognised compression suffix from filename and
// returns the decoded payload fully buffered. Other files are buffered
// unchanged. The returned name is always lower case. A malformed envelope,
// or a decoded payload larger than limit bytes, yields a *DecompressionError.
// A limit <= 0 disables the size check.
func Decompress(filename string, r io.Reader, limit int64) (string, *Content, error) {
	name := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(name, gzipSuffix):
		zr, err := gzip.NewReader(r)
		if err != nil {
			return "", nil, &DecompressionError{Codec: "gzip", Err: err}
		}
		defer func() { _ = zr.Close() }()
		data, err := readLimited(zr, limit)
		if err != nil {
			return "", nil, &DecompressionError{Codec: "gzip", Err: err}
		}
		return strings.TrimSuffix(name, gzipSuffix), NewContent(data), nil
	case strings.HasSuffix(name, bzip2Suffix):
		br, err := bzip2.NewReader(r, nil)
		if err != nil {
			return "", nil, &DecompressionError{Codec: "bzip2", Err: err}
		}
		defer func() { _ = br.Close() }()
		data, err := readLimited(br, limit)
		if err != nil {
			return "", nil, &DecompressionError{Codec: "bzip2", Err: err}
		}
		return strings.TrimSuffix(name, bzip2Suffix), NewContent(data), nil
	default:
		data, err := io.ReadAll(r)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return name, NewContent(data), nil
	}
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrDecompressedTooLarge, limit)
	}
	return data, nil
}

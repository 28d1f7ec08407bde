package archive

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the per-block payload codec. It is read from the
// input archive's preamble and propagated unchanged to the output (spec
// §6's "propagate ... compression").
type Compression uint8

const (
	CompressionNone  Compression = 0
	CompressionLZ4   Compression = 1
	CompressionZstd  Compression = 2
	CompressionFlate Compression = 3
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	case CompressionFlate:
		return "flate"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

func compressPayload(payload []byte, method Compression) ([]byte, error) {
	if method == CompressionNone {
		return payload, nil
	}
	var buf bytes.Buffer
	w, err := newCompressWriter(&buf, method)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(payload); err != nil {
		return nil, fmt.Errorf("archive: compressing block: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("archive: closing compressor: %w", err)
	}
	return buf.Bytes(), nil
}

func decompressPayload(compressed []byte, method Compression, uncompressedSize int) ([]byte, error) {
	if method == CompressionNone {
		out := make([]byte, len(compressed))
		copy(out, compressed)
		return out, nil
	}
	r, err := newDecompressReader(bytes.NewReader(compressed), method)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make([]byte, uncompressedSize)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("archive: decompressing block: %w", err)
	}
	return out, nil
}

func newCompressWriter(dst io.Writer, method Compression) (io.WriteCloser, error) {
	switch method {
	case CompressionLZ4:
		return lz4.NewWriter(dst), nil
	case CompressionZstd:
		return zstd.NewWriter(dst)
	case CompressionFlate:
		return flate.NewWriter(dst, flate.DefaultCompression)
	default:
		return nil, fmt.Errorf("archive: unknown compression method %d", method)
	}
}

func newDecompressReader(src io.Reader, method Compression) (io.ReadCloser, error) {
	switch method {
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(src)), nil
	case CompressionZstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case CompressionFlate:
		return flate.NewReader(src), nil
	default:
		return nil, fmt.Errorf("archive: unknown compression method %d", method)
	}
}

// Package archive implements the on-disk file interface consumed by the
// controller (spec §6): framed data blocks plus an identity string and a
// stats record, with pluggable per-block compression.
package archive

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/paineta/nfdump/internal/block"
)

// Creator is the tag stamped into every output archive this tool produces.
const Creator = "nfanon"

// Reader streams framed data blocks out of one archive file.
type Reader struct {
	f           *os.File
	Identity    string
	Stats       Stats
	Compression Compression
}

// Open opens path for reading and parses its identity/stats/compression
// preamble.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("archive: opening %s: %w", path, err)
	}
	r := &Reader{f: f}
	if err := r.readPreamble(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func (r *Reader) readPreamble() error {
	var lenBuf [2]byte
	if _, err := io.ReadFull(r.f, lenBuf[:]); err != nil {
		return fmt.Errorf("archive: reading identity length: %w", err)
	}
	identLen := binary.LittleEndian.Uint16(lenBuf[:])
	identBuf := make([]byte, identLen)
	if _, err := io.ReadFull(r.f, identBuf); err != nil {
		return fmt.Errorf("archive: reading identity: %w", err)
	}
	r.Identity = string(identBuf)

	var compressionBuf [1]byte
	if _, err := io.ReadFull(r.f, compressionBuf[:]); err != nil {
		return fmt.Errorf("archive: reading compression byte: %w", err)
	}
	r.Compression = Compression(compressionBuf[0])

	var statsBuf [StatsSize]byte
	if _, err := io.ReadFull(r.f, statsBuf[:]); err != nil {
		return fmt.Errorf("archive: reading stats record: %w", err)
	}
	r.Stats = unmarshalStats(statsBuf[:])
	return nil
}

// ReadBlock returns the next framed data block, or nil at end of file. If
// reuse is non-nil the same *block.Block is filled in and returned; its
// Payload is always replaced by a newly allocated slice, and the old
// Payload's backing array is not reused.
func (r *Reader) ReadBlock(reuse *block.Block) (*block.Block, error) {
	var hdrBuf [block.HeaderSize]byte
	if _, err := io.ReadFull(r.f, hdrBuf[:]); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: reading block header: %w", err)
	}
	hdr, err := block.ParseHeader(hdrBuf[:])
	if err != nil {
		return nil, err
	}

	var clenBuf [4]byte
	if _, err := io.ReadFull(r.f, clenBuf[:]); err != nil {
		return nil, fmt.Errorf("archive: reading block payload length: %w", err)
	}
	clen := binary.LittleEndian.Uint32(clenBuf[:])
	compressed := make([]byte, clen)
	if _, err := io.ReadFull(r.f, compressed); err != nil {
		return nil, fmt.Errorf("archive: reading block payload: %w", err)
	}

	payload, err := decompressPayload(compressed, r.Compression, int(hdr.Size))
	if err != nil {
		return nil, err
	}

	out := reuse
	if out == nil {
		out = &block.Block{}
	}
	out.Header = hdr
	out.Payload = payload
	return out, nil
}

// Close releases the reader's file handle without any flush semantics.
func (r *Reader) Close() error {
	return r.f.Close()
}

// Writer appends framed data blocks to one archive file.
type Writer struct {
	f           *os.File
	path        string
	Compression Compression
	closed      bool
}

// Create opens path for writing and emits the identity/stats/compression
// preamble. Stats is expected to be a byte-exact copy of the input file's
// stats record (spec §6 copyStats).
func Create(path, identity string, stats Stats, compression Compression) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("archive: creating %s: %w", path, err)
	}
	w := &Writer{f: f, path: path, Compression: compression}
	if err := w.writePreamble(identity, stats); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

func (w *Writer) writePreamble(identity string, stats Stats) error {
	var lenBuf [2]byte
	binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(identity)))
	if _, err := w.f.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("archive: writing identity length: %w", err)
	}
	if _, err := w.f.Write([]byte(identity)); err != nil {
		return fmt.Errorf("archive: writing identity: %w", err)
	}
	if _, err := w.f.Write([]byte{byte(w.Compression)}); err != nil {
		return fmt.Errorf("archive: writing compression byte: %w", err)
	}
	statsBuf := stats.marshal()
	if _, err := w.f.Write(statsBuf[:]); err != nil {
		return fmt.Errorf("archive: writing stats record: %w", err)
	}
	return nil
}

// WriteBlock appends b to the archive and returns its payload buffer back
// to the caller for reuse on the next read (spec §6 writeBlock).
func (w *Writer) WriteBlock(b *block.Block) ([]byte, error) {
	var hdrBuf [block.HeaderSize]byte
	block.PutHeader(hdrBuf[:], b.Header)
	if _, err := w.f.Write(hdrBuf[:]); err != nil {
		return nil, fmt.Errorf("archive: writing block header: %w", err)
	}

	compressed, err := compressPayload(b.Payload, w.Compression)
	if err != nil {
		return nil, err
	}
	var clenBuf [4]byte
	binary.LittleEndian.PutUint32(clenBuf[:], uint32(len(compressed)))
	if _, err := w.f.Write(clenBuf[:]); err != nil {
		return nil, fmt.Errorf("archive: writing block payload length: %w", err)
	}
	if _, err := w.f.Write(compressed); err != nil {
		return nil, fmt.Errorf("archive: writing block payload: %w", err)
	}
	return b.Payload, nil
}

// Finalize flushes and closes the output file (spec §6 finalize).
func (w *Writer) Finalize() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("archive: syncing %s: %w", w.path, err)
	}
	return w.f.Close()
}

// Dispose releases resources without any flush guarantee, used when
// abandoning a file after an unrecoverable error (spec §6 dispose).
func (w *Writer) Dispose() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.f.Close()
}

// Rename atomically replaces dst with src, used for in-place runs (spec §6
// rename, §9 "must be atomic on the target filesystem").
func Rename(src, dst string) error {
	return os.Rename(src, dst)
}

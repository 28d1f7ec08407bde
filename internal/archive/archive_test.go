package archive

import (
	"path/filepath"
	"testing"

	"github.com/paineta/nfdump/internal/block"
)

func writeRoundTrip(t *testing.T, compression Compression) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.nfa")

	wantStats := Stats{NumFlows: 10, NumBytes: 2048, NumPackets: 30, FirstSeenSec: 1000, LastSeenSec: 2000}
	wantIdentity := "nfcapd.202601010000"

	w, err := Create(path, wantIdentity, wantStats, compression)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i)
	}
	blk := &block.Block{
		Header:  block.Header{Type: block.TypeDataBlock3, NumRecords: 1, Size: uint32(len(payload))},
		Payload: payload,
	}
	if _, err := w.WriteBlock(blk); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()

	if r.Identity != wantIdentity {
		t.Errorf("Identity = %q, want %q", r.Identity, wantIdentity)
	}
	if r.Stats != wantStats {
		t.Errorf("Stats = %+v, want %+v", r.Stats, wantStats)
	}
	if r.Compression != compression {
		t.Errorf("Compression = %v, want %v", r.Compression, compression)
	}

	got, err := r.ReadBlock(nil)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if got == nil {
		t.Fatalf("ReadBlock returned nil, want one block")
	}
	if got.Header != blk.Header {
		t.Errorf("block header = %+v, want %+v", got.Header, blk.Header)
	}
	for i := range payload {
		if got.Payload[i] != payload[i] {
			t.Fatalf("payload mismatch at byte %d: got %d, want %d", i, got.Payload[i], payload[i])
		}
	}

	end, err := r.ReadBlock(nil)
	if err != nil {
		t.Fatalf("ReadBlock at EOF: %v", err)
	}
	if end != nil {
		t.Fatalf("expected nil at end of file, got a block")
	}
}

func TestWriteReadRoundTripNone(t *testing.T)  { writeRoundTrip(t, CompressionNone) }
func TestWriteReadRoundTripLZ4(t *testing.T)   { writeRoundTrip(t, CompressionLZ4) }
func TestWriteReadRoundTripZstd(t *testing.T)  { writeRoundTrip(t, CompressionZstd) }
func TestWriteReadRoundTripFlate(t *testing.T) { writeRoundTrip(t, CompressionFlate) }

func TestDisposeTwiceIsSafe(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "abandoned.nfa")

	w, err := Create(path, "ident", Stats{}, CompressionNone)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Dispose(); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	// A second Dispose after the first must not fail or double-close the
	// file handle.
	if err := w.Dispose(); err != nil {
		t.Fatalf("second Dispose: %v", err)
	}
}

func TestRename(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	w, err := Create(src, "ident", Stats{}, CompressionNone)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := w.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := Rename(src, dst); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if _, err := Open(dst); err != nil {
		t.Fatalf("Open(dst) after Rename: %v", err)
	}
}

package pipeline

import (
	"encoding/binary"
	"path/filepath"
	"testing"

	"github.com/paineta/nfdump/internal/archive"
	"github.com/paineta/nfdump/internal/block"
	"github.com/paineta/nfdump/internal/record"
)

// fakeAnonymizer flips every bit, cheap enough to assert against without
// pulling in the real CryptoPAn cipher.
type fakeAnonymizer struct{}

func (fakeAnonymizer) Anon4(addr uint32) uint32       { return ^addr }
func (fakeAnonymizer) Anon6(addr [2]uint64) [2]uint64 { return [2]uint64{^addr[0], ^addr[1]} }

func buildV3RecordWithIPv4Flow(src, dst uint32) []byte {
	const size = record.V3HeaderSize + record.ExtHeaderSize + 8
	buf := make([]byte, size)
	binary.LittleEndian.PutUint16(buf[0:2], record.TypeV3Record)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(size))
	binary.LittleEndian.PutUint16(buf[4:6], 1) // NumElements

	cur := record.V3HeaderSize
	binary.LittleEndian.PutUint16(buf[cur:cur+2], record.ExtIPv4Flow)
	binary.LittleEndian.PutUint16(buf[cur+2:cur+4], uint16(record.ExtHeaderSize+8))
	extPayload := buf[cur+record.ExtHeaderSize:]
	binary.LittleEndian.PutUint32(extPayload[0:4], src)
	binary.LittleEndian.PutUint32(extPayload[4:8], dst)
	return buf
}

func TestControllerAnonymizesAFile(t *testing.T) {
	dir := t.TempDir()
	inPath := filepath.Join(dir, "nfcapd.in")

	const numRecords = 9
	var payload []byte
	for i := 0; i < numRecords; i++ {
		payload = append(payload, buildV3RecordWithIPv4Flow(uint32(i), uint32(i+1000))...)
	}

	in, err := archive.Create(inPath, "nfanon-test", archive.Stats{NumFlows: numRecords}, archive.CompressionNone)
	if err != nil {
		t.Fatalf("archive.Create: %v", err)
	}
	if _, err := in.WriteBlock(&block.Block{
		Header:  block.Header{Type: block.TypeDataBlock3, NumRecords: numRecords, Size: uint32(len(payload))},
		Payload: payload,
	}); err != nil {
		t.Fatalf("WriteBlock: %v", err)
	}
	// A non-record-bearing block must be passed through unchanged.
	if _, err := in.WriteBlock(&block.Block{
		Header:  block.Header{Type: block.TypeDataBlock1, NumRecords: 0, Size: 4},
		Payload: []byte{1, 2, 3, 4},
	}); err != nil {
		t.Fatalf("WriteBlock (pass-through): %v", err)
	}
	if err := in.Finalize(); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	outPath := filepath.Join(dir, "nfcapd.out")
	ctrl, err := New(3, fakeAnonymizer{}, Hooks{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer ctrl.Shutdown()

	if err := ctrl.Run([]string{inPath}, outPath); err != nil {
		t.Fatalf("Run: %v", err)
	}

	out, err := archive.Open(outPath)
	if err != nil {
		t.Fatalf("archive.Open(output): %v", err)
	}
	defer out.Close()

	first, err := out.ReadBlock(nil)
	if err != nil {
		t.Fatalf("ReadBlock: %v", err)
	}
	if first == nil || first.Header.Type != block.TypeDataBlock3 {
		t.Fatalf("expected the first output block to be a data block")
	}

	cur := 0
	for i := 0; i < numRecords; i++ {
		rec := first.Payload[cur : cur+len(buildV3RecordWithIPv4Flow(0, 0))]
		extPayload := rec[record.V3HeaderSize+record.ExtHeaderSize:]
		gotSrc := binary.LittleEndian.Uint32(extPayload[0:4])
		gotDst := binary.LittleEndian.Uint32(extPayload[4:8])
		wantSrc := ^uint32(i)
		wantDst := ^uint32(i + 1000)
		if gotSrc != wantSrc || gotDst != wantDst {
			t.Fatalf("record %d not anonymized: src=%#x (want %#x) dst=%#x (want %#x)", i, gotSrc, wantSrc, gotDst, wantDst)
		}
		cur += len(rec)
	}

	second, err := out.ReadBlock(nil)
	if err != nil {
		t.Fatalf("ReadBlock (pass-through): %v", err)
	}
	if second == nil || second.Header.Type != block.TypeDataBlock1 {
		t.Fatalf("expected the second output block to be the untouched pass-through block")
	}
	if len(second.Payload) != 4 || second.Payload[0] != 1 {
		t.Fatalf("pass-through block payload was mutated: %v", second.Payload)
	}
}

func TestNewRejectsOutOfRangeWorkerCount(t *testing.T) {
	if _, err := New(0, fakeAnonymizer{}, Hooks{}); err == nil {
		t.Fatalf("expected an error for numWorkers=0")
	}
	if _, err := New(MaxWorkers+1, fakeAnonymizer{}, Hooks{}); err == nil {
		t.Fatalf("expected an error for numWorkers > MaxWorkers")
	}
}

func TestWorkerCountBounds(t *testing.T) {
	n := WorkerCount()
	if n < 1 || n > MaxWorkers {
		t.Fatalf("WorkerCount() = %d, want a value in [1, %d]", n, MaxWorkers)
	}
}

// Package block parses the framed data blocks that make up an archive file
// and partitions their record sequence across a fixed worker pool.
package block

import (
	"encoding/binary"
	"fmt"

	"github.com/paineta/nfdump/internal/record"
)

// Block types. Only TypeDataBlock2 and TypeDataBlock3 carry flow records;
// every other type is passed through unchanged by the controller.
const (
	TypeDataBlock1 uint16 = 1
	TypeDataBlock2 uint16 = 2
	TypeDataBlock3 uint16 = 3
)

// HeaderSize is the byte size of a data block's header.
const HeaderSize = 12

// Header is the small framing header in front of every data block's record
// area.
type Header struct {
	Type       uint16
	Flags      uint16
	NumRecords uint32
	Size       uint32
}

// Block is one data block: its header plus the raw bytes of its record
// area. Payload is mutated in place by the worker pool.
type Block struct {
	Header  Header
	Payload []byte
}

// HoldsRecords reports whether a block's type carries flow records that the
// anonymizer must walk, as opposed to being passed through verbatim.
func (h Header) HoldsRecords() bool {
	return h.Type == TypeDataBlock2 || h.Type == TypeDataBlock3
}

// ParseHeader decodes a block header from its 12-byte wire form.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("block: buffer shorter than header (%d bytes)", len(buf))
	}
	return Header{
		Type:       binary.LittleEndian.Uint16(buf[0:2]),
		Flags:      binary.LittleEndian.Uint16(buf[2:4]),
		NumRecords: binary.LittleEndian.Uint32(buf[4:8]),
		Size:       binary.LittleEndian.Uint32(buf[8:12]),
	}, nil
}

// PutHeader encodes h into its 12-byte wire form.
func PutHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.Type)
	binary.LittleEndian.PutUint16(buf[2:4], h.Flags)
	binary.LittleEndian.PutUint32(buf[4:8], h.NumRecords)
	binary.LittleEndian.PutUint32(buf[8:12], h.Size)
}

// RecordHandler dispatches one record selected by the partition to its
// appropriate treatment. It returns a record.ErrCorrupt-wrapping error only
// for fatal stream corruption; unknown record types are not an error.
type RecordHandler func(recType uint16, rec []byte) error

// Partition walks every record in the block's payload in order, selecting
// the records whose zero-based index is congruent to self (mod numWorkers)
// and forwarding only those to handle. Every worker walks the full header
// chain (to keep offsets consistent) but mutates only its own slice, so
// concurrent partitions over the same payload never race.
//
// Partition returns a record.ErrCorrupt-wrapping error if a record's
// declared size is smaller than the common header or would overrun the end
// of payload; the caller must treat this as fatal.
func Partition(payload []byte, numRecords uint32, self, numWorkers int, handle RecordHandler) error {
	cur := 0
	for i := 0; i < int(numRecords); i++ {
		hdr, err := record.ParseCommonHeader(payload[cur:])
		if err != nil {
			return fmt.Errorf("%w: %v", record.ErrCorrupt, err)
		}
		if int(hdr.Size) < record.CommonHeaderSize || cur+int(hdr.Size) > len(payload) {
			return fmt.Errorf("%w: record %d declares size %d at offset %d, block payload is %d bytes",
				record.ErrCorrupt, i, hdr.Size, cur, len(payload))
		}
		if i%numWorkers == self {
			rec := payload[cur : cur+int(hdr.Size)]
			if err := handle(hdr.Type, rec); err != nil {
				return err
			}
		}
		cur += int(hdr.Size)
	}
	return nil
}

// Package record implements the typed walk over a single V3 flow record:
// parsing its extension list and anonymizing the address-bearing variants.
package record

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Record types recognized inside a data block. Only TypeV3Record carries
// address fields; the rest are passed through untouched by the walker.
const (
	TypeV3Record      uint16 = 1
	TypeExporterInfo  uint16 = 2
	TypeExporterStat  uint16 = 3
	TypeSamplerRecord uint16 = 4
	TypeNbarRecord    uint16 = 5
)

// CommonHeaderSize is the 4-byte {type, size} prefix shared by every record.
const CommonHeaderSize = 4

// CommonHeader is the tag-length prefix present on every record, regardless
// of type.
type CommonHeader struct {
	Type uint16
	Size uint16
}

// ParseCommonHeader reads the 4-byte record header at the start of buf.
func ParseCommonHeader(buf []byte) (CommonHeader, error) {
	if len(buf) < CommonHeaderSize {
		return CommonHeader{}, fmt.Errorf("record: buffer shorter than common header (%d bytes)", len(buf))
	}
	return CommonHeader{
		Type: binary.LittleEndian.Uint16(buf[0:2]),
		Size: binary.LittleEndian.Uint16(buf[2:4]),
	}, nil
}

// V3HeaderSize is the byte size of the V3 record header.
const V3HeaderSize = 12

// FlagAnon is set on a V3 record's Flags field once the walker has
// successfully anonymized it.
const FlagAnon uint16 = 1 << 0

// V3Header is the header of an anonymizable flow record.
type V3Header struct {
	Type        uint16
	Size        uint16
	NumElements uint16
	Flags       uint16
	EngineType  uint8
	EngineID    uint8
	ExporterID  uint16
}

func parseV3Header(buf []byte) V3Header {
	return V3Header{
		Type:        binary.LittleEndian.Uint16(buf[0:2]),
		Size:        binary.LittleEndian.Uint16(buf[2:4]),
		NumElements: binary.LittleEndian.Uint16(buf[4:6]),
		Flags:       binary.LittleEndian.Uint16(buf[6:8]),
		EngineType:  buf[8],
		EngineID:    buf[9],
		ExporterID:  binary.LittleEndian.Uint16(buf[10:12]),
	}
}

func setFlags(buf []byte, flags uint16) {
	binary.LittleEndian.PutUint16(buf[6:8], flags)
}

// ExtHeaderSize is the byte size of an extension's tag-length prefix.
const ExtHeaderSize = 4

// Extension tags recognized by the walker. Unrecognized tags are tolerated:
// their payload is skipped using only Length.
const (
	ExtNull          uint16 = 0
	ExtIPv4Flow      uint16 = 1
	ExtIPv6Flow      uint16 = 2
	ExtASRouting     uint16 = 3
	ExtBGPNextHopV4  uint16 = 4
	ExtBGPNextHopV6  uint16 = 5
	ExtIPNextHopV4   uint16 = 6
	ExtIPNextHopV6   uint16 = 7
	ExtIPReceivedV4  uint16 = 8
	ExtIPReceivedV6  uint16 = 9
	ExtASAdjacent    uint16 = 10
	ExtNSELXlateIPv4 uint16 = 11
	ExtNSELXlateIPv6 uint16 = 12
)

// ErrCorrupt marks fatal stream corruption: a cursor that would run past the
// end of the record, or a record declaring a size smaller than its header.
// The caller must not continue processing the containing block.
var ErrCorrupt = errors.New("record: corrupt extension stream")

// Anonymizer is the address-anonymizer contract consumed by the walker
// (spec §4.1): pure and safe for concurrent use once initialized.
type Anonymizer interface {
	Anon4(addr uint32) uint32
	Anon6(addr [2]uint64) [2]uint64
}

// Walk iterates the extension list of one V3 record in place, replacing
// every address-bearing extension field with its anonymized value and
// setting FlagAnon. rec must be exactly one record's bytes (header plus
// extensions), sliced from the owning data block's payload.
//
// Walk never allocates: all mutation happens directly on rec's backing
// array, which is safe because the block partitioner hands each worker a
// disjoint slice of records.
func Walk(rec []byte, anon Anonymizer) error {
	if len(rec) < V3HeaderSize {
		return fmt.Errorf("%w: v3 record shorter than header (%d bytes)", ErrCorrupt, len(rec))
	}
	hdr := parseV3Header(rec)
	setFlags(rec, hdr.Flags|FlagAnon)

	cur := V3HeaderSize
	for i := 0; i < int(hdr.NumElements); i++ {
		if cur+ExtHeaderSize > len(rec) {
			return fmt.Errorf("%w: extension header at offset %d exceeds record end %d", ErrCorrupt, cur, len(rec))
		}
		extType := binary.LittleEndian.Uint16(rec[cur : cur+2])
		extLen := int(binary.LittleEndian.Uint16(rec[cur+2 : cur+4]))
		if extLen < ExtHeaderSize || cur+extLen > len(rec) {
			return fmt.Errorf("%w: extension at offset %d (len %d) exceeds record end %d", ErrCorrupt, cur, extLen, len(rec))
		}
		payload := rec[cur+ExtHeaderSize : cur+extLen]
		anonymizeExtension(extType, payload, anon)
		cur += extLen
	}
	return nil
}

func anonymizeExtension(extType uint16, payload []byte, anon Anonymizer) {
	switch extType {
	case ExtIPv4Flow:
		if len(payload) < 8 {
			return
		}
		putU32(payload[0:4], anon.Anon4(getU32(payload[0:4])))
		putU32(payload[4:8], anon.Anon4(getU32(payload[4:8])))
	case ExtIPv6Flow:
		if len(payload) < 32 {
			return
		}
		anonymize6(payload[0:16], anon)
		anonymize6(payload[16:32], anon)
	case ExtASRouting:
		if len(payload) < 8 {
			return
		}
		putU32(payload[0:4], 0)
		putU32(payload[4:8], 0)
	case ExtBGPNextHopV4:
		if len(payload) < 4 {
			return
		}
		putU32(payload[0:4], anon.Anon4(getU32(payload[0:4])))
	case ExtBGPNextHopV6:
		if len(payload) < 16 {
			return
		}
		anonymize6(payload[0:16], anon)
	case ExtIPNextHopV4:
		if len(payload) < 4 {
			return
		}
		putU32(payload[0:4], anon.Anon4(getU32(payload[0:4])))
	case ExtIPNextHopV6:
		if len(payload) < 16 {
			return
		}
		anonymize6(payload[0:16], anon)
	case ExtIPReceivedV4:
		if len(payload) < 4 {
			return
		}
		putU32(payload[0:4], anon.Anon4(getU32(payload[0:4])))
	case ExtIPReceivedV6:
		if len(payload) < 16 {
			return
		}
		anonymize6(payload[0:16], anon)
	case ExtASAdjacent:
		if len(payload) < 8 {
			return
		}
		putU32(payload[0:4], 0)
		putU32(payload[4:8], 0)
	case ExtNSELXlateIPv4:
		if len(payload) < 8 {
			return
		}
		putU32(payload[0:4], anon.Anon4(getU32(payload[0:4])))
		putU32(payload[4:8], anon.Anon4(getU32(payload[4:8])))
	case ExtNSELXlateIPv6:
		if len(payload) < 32 {
			return
		}
		anonymize6(payload[0:16], anon)
		anonymize6(payload[16:32], anon)
	default:
		// Unknown or non-address extension: leave bytes untouched.
	}
}

// anonymize6 replaces a 16-byte IPv6 address field in place.
func anonymize6(field []byte, anon Anonymizer) {
	addr := [2]uint64{
		binary.LittleEndian.Uint64(field[0:8]),
		binary.LittleEndian.Uint64(field[8:16]),
	}
	out := anon.Anon6(addr)
	binary.LittleEndian.PutUint64(field[0:8], out[0])
	binary.LittleEndian.PutUint64(field[8:16], out[1])
}

func getU32(b []byte) uint32      { return binary.LittleEndian.Uint32(b) }
func putU32(b []byte, v uint32)   { binary.LittleEndian.PutUint32(b, v) }

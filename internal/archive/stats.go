package archive

import "encoding/binary"

// StatsSize is the byte size of a serialized Stats record.
const StatsSize = 40

// Stats is the archive-wide aggregate statistics record. It is opaque to
// the anonymization core (spec §3) and is copied byte-exact from input to
// output.
type Stats struct {
	NumFlows     uint64
	NumBytes     uint64
	NumPackets   uint64
	FirstSeenSec int64
	LastSeenSec  int64
}

func (s Stats) marshal() [StatsSize]byte {
	var buf [StatsSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], s.NumFlows)
	binary.LittleEndian.PutUint64(buf[8:16], s.NumBytes)
	binary.LittleEndian.PutUint64(buf[16:24], s.NumPackets)
	binary.LittleEndian.PutUint64(buf[24:32], uint64(s.FirstSeenSec))
	binary.LittleEndian.PutUint64(buf[32:40], uint64(s.LastSeenSec))
	return buf
}

func unmarshalStats(buf []byte) Stats {
	return Stats{
		NumFlows:     binary.LittleEndian.Uint64(buf[0:8]),
		NumBytes:     binary.LittleEndian.Uint64(buf[8:16]),
		NumPackets:   binary.LittleEndian.Uint64(buf[16:24]),
		FirstSeenSec: int64(binary.LittleEndian.Uint64(buf[24:32])),
		LastSeenSec:  int64(binary.LittleEndian.Uint64(buf[32:40])),
	}
}

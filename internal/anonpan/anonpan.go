// Package anonpan implements the CryptoPAn prefix-preserving pseudonymizer:
// the concrete address-anonymizer contract consumed by the record walker
// (spec §4.1). The key schedule is built once by New and is read-only
// thereafter, so Anon4/Anon6 are safe to call concurrently from every
// worker goroutine without synchronization.
package anonpan

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// KeyMaxLen is the longest raw -K argument accepted, per the CLI contract.
const KeyMaxLen = 66

// CryptoPAn holds the AES key schedule and padding block derived from a
// 32-byte key. It implements record.Anonymizer.
type CryptoPAn struct {
	block cipher.Block
	pad   [16]byte
}

// New builds a CryptoPAn anonymizer from a 32-byte key: the first 16 bytes
// key the AES-128 cipher; the second 16 bytes, encrypted under that cipher,
// become the padding block used to fill unaddressed bits of the 128-bit
// working buffer. This is the standard CryptoPAn key schedule (Fan, Xu,
// Ammar & Moore).
func New(key [32]byte) (*CryptoPAn, error) {
	blk, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, fmt.Errorf("anonpan: building AES cipher: %w", err)
	}
	c := &CryptoPAn{block: blk}
	blk.Encrypt(c.pad[:], key[16:32])
	return c, nil
}

// ParseKey turns a -K argument into a 32-byte CryptoPAn key. A 64-character
// hex string is decoded directly; anything else is stretched to 32 bytes
// with SHA-256, so an operator-memorable passphrase works as well as a raw
// key.
func ParseKey(raw string) ([32]byte, error) {
	var key [32]byte
	if len(raw) == 0 {
		return key, fmt.Errorf("anonpan: empty key")
	}
	if len(raw) > KeyMaxLen {
		return key, fmt.Errorf("anonpan: key longer than %d characters", KeyMaxLen)
	}
	if len(raw) == 64 {
		if decoded, err := hex.DecodeString(raw); err == nil {
			copy(key[:], decoded)
			return key, nil
		}
	}
	key = sha256.Sum256([]byte(raw))
	return key, nil
}

// Anon4 returns the prefix-preserving pseudonym of a 32-bit IPv4 address.
func (c *CryptoPAn) Anon4(addr uint32) uint32 {
	var in [4]byte
	binary.BigEndian.PutUint32(in[:], addr)
	out := c.anonymize(in[:], 32)
	return binary.BigEndian.Uint32(out)
}

// Anon6 returns the prefix-preserving pseudonym of a 128-bit IPv6 address,
// given as two big-endian 64-bit halves in network order.
func (c *CryptoPAn) Anon6(addr [2]uint64) [2]uint64 {
	var in [16]byte
	binary.BigEndian.PutUint64(in[0:8], addr[0])
	binary.BigEndian.PutUint64(in[8:16], addr[1])
	out := c.anonymize(in[:], 128)
	return [2]uint64{
		binary.BigEndian.Uint64(out[0:8]),
		binary.BigEndian.Uint64(out[8:16]),
	}
}

// anonymize implements the CryptoPAn bit-recursion: output bit i is input
// bit i XOR the most-significant bit of AES(working), where working holds
// input bits 0..i-1 followed by padding bits i..127. Because bit i of the
// result depends only on input bits 0..i, any two addresses sharing an
// n-bit prefix anonymize to pseudonyms sharing the same n-bit prefix.
func (c *CryptoPAn) anonymize(addr []byte, bits int) []byte {
	result := make([]byte, len(addr))
	var working [16]byte
	copy(working[:], c.pad[:])

	var enc [16]byte
	for pos := 0; pos < bits; pos++ {
		if pos > 0 {
			setBit(working[:], pos-1, getBit(addr, pos-1))
		}
		c.block.Encrypt(enc[:], working[:])
		flip := getBit(enc[:], 0)
		setBit(result, pos, getBit(addr, pos)^flip)
	}
	return result
}

func getBit(data []byte, index int) byte {
	byteIdx, bitIdx := index/8, 7-(index%8)
	return (data[byteIdx] >> bitIdx) & 1
}

func setBit(data []byte, index int, value byte) {
	byteIdx, bitIdx := index/8, 7-(index%8)
	if value != 0 {
		data[byteIdx] |= 1 << bitIdx
	} else {
		data[byteIdx] &^= 1 << bitIdx
	}
}

package wsclient

import (
	"encoding/binary"
)

// mask applies the WebSocket masking algorithm to b in place.
// See https://tools.ietf.org/html/rfc6455#section-5.3
//
// For payloads of 16 bytes or more it XORs a word at a time with the key
// repeated into a uint64. The word loop consumes multiples of 8 bytes, so
// the byte tail continues at key position 0.
// Optimization from https://github.com/golang/go/issues/31586#issuecomment-485530859
func mask(key [4]byte, b []byte) {
	if len(b) >= 16 {
		var repeatedKey [8]byte
		for i := range repeatedKey {
			repeatedKey[i] = key[i&3]
		}
		k := binary.LittleEndian.Uint64(repeatedKey[:])

		for len(b) >= 8 {
			v := binary.LittleEndian.Uint64(b)
			binary.LittleEndian.PutUint64(b, v^k)
			b = b[8:]
		}
	}

	for i := range b {
		b[i] ^= key[i&3]
	}
}

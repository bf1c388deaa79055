package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job IDs are ULIDs: a 48-bit millisecond timestamp followed by 80 random
// bits, Crockford base32 encoded to 26 characters so they sort by creation.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	idMu    sync.Mutex
	lastMS  uint64
	lastSeq uint16
)

func newJobID(now time.Time) string {
	idMu.Lock()
	ms := uint64(now.UnixMilli())
	if ms == lastMS {
		lastSeq++
	} else {
		lastMS, lastSeq = ms, 0
	}
	seq := lastSeq
	idMu.Unlock()

	var b [16]byte
	binary.BigEndian.PutUint64(b[0:8], ms<<16)
	rand.Read(b[6:])
	// Leading random bytes carry a per-millisecond sequence.
	binary.BigEndian.PutUint16(b[6:8], seq)
	return encodeCrockford(b)
}

// encodeCrockford writes 128 bits as 26 base32 digits, most significant
// first. The first digit holds only the top 3 bits.
func encodeCrockford(b [16]byte) string {
	hi := binary.BigEndian.Uint64(b[0:8])
	lo := binary.BigEndian.Uint64(b[8:16])

	var out [26]byte
	for i := 25; i >= 0; i-- {
		out[i] = crockford[lo&31]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(out[:])
}

// Package codec packs and unpacks every core entity to and from the
// flat []uint64 word vectors the KV substrate stores (spec §8: C8).
// The shape mirrors the teacher's StorageData trait: each entity knows
// how to append its own words and how to consume them back off a
// cursor, so composite entities (a player's objects, a player's cards)
// can nest without the codec needing reflection.
package codec

import "fmt"

// StorageData is implemented by every entity with a wire form.
type StorageData interface {
	ToData(w *Writer)
}

// Writer accumulates words for Set.
type Writer struct {
	words []uint64
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Push(v uint64)  { w.words = append(w.words, v) }
func (w *Writer) Words() []uint64 { return w.words }

// Reader walks a []uint64 previously produced by a Writer.
type Reader struct {
	words []uint64
	pos   int
}

func NewReader(words []uint64) *Reader {
	return &Reader{words: words}
}

// Next returns the next word, or an error if the vector is exhausted.
// A truncated vector means the stored blob is corrupt or was written by
// an incompatible layout; callers at the component boundary (player,
// object, card, event) should treat this as an infrastructure failure,
// not a business-rule rejection.
func (r *Reader) Next() (uint64, error) {
	if r.pos >= len(r.words) {
		return 0, fmt.Errorf("codec: word vector exhausted at offset %d", r.pos)
	}
	v := r.words[r.pos]
	r.pos++
	return v, nil
}

// Remaining reports how many words are left unread.
func (r *Reader) Remaining() int { return len(r.words) - r.pos }

// PackBytesLE packs up to 8 bytes little-endian into a single word.
func PackBytesLE(b []byte) uint64 {
	var v uint64
	for i := 0; i < len(b) && i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}

// UnpackBytesLE is the inverse of PackBytesLE, always producing 8 bytes.
func UnpackBytesLE(v uint64) [8]byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return b
}

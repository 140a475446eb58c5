// Package card is the card registry (spec §4.1: C1): the immutable
// catalog of default modifier cards, and the deterministic generator
// that turns a player's local vector plus a host-supplied random word
// into a brand new one. Every arithmetic step here is load-bearing —
// two independent executors must derive byte-identical cards from the
// same (local, rand) pair, or consensus is lost (spec §4.1).
package card

import (
	"sort"

	"github.com/onchainautomata/automata-core/internal/codec"
)

// ResourceWeights are the fixed per-slot weights used by both the
// generator and nothing else; they are not a general "resource value"
// concept, only an input to random_modifier.
var ResourceWeights = [8]uint64{1, 1, 2, 4, 8, 16, 32, 128}

// DefaultCards is the four-entry built-in catalog every new player
// starts with (spec §3 Card "Lifecycle": "either a built-in default...
// or generated on demand; never destroyed").
var DefaultCards = []Card{
	{Duration: 20, Attributes: [8]int8{-10, -10, 20, 0, 0, 0, 0, 0}},
	{Duration: 40, Attributes: [8]int8{30, 0, -10, 0, 0, 0, 0, 0}},
	{Duration: 40, Attributes: [8]int8{0, 30, -10, 0, 0, 0, 0, 0}},
	{Duration: 40, Attributes: [8]int8{10, 0, -30, 0, 20, 0, 0, 0}},
}

// DefaultCardNames labels DefaultCards for diagnostics only; nothing in
// the core keys off these strings.
var DefaultCardNames = []string{"Biogen", "Crystara", "AstroMine", "CrystaBloom"}

// Card is an immutable modifier: apply it to a local vector and it
// either succeeds (every resulting component stays >= 0) or it doesn't.
type Card struct {
	Duration   uint64
	Attributes [8]int8
}

// ToData appends duration and the 8-byte attribute vector, in that
// order, matching the player-blob card layout in spec §6.
func (c Card) ToData(w *codec.Writer) {
	w.Push(c.Duration)
	var b [8]byte
	for i, a := range c.Attributes {
		b[i] = byte(a)
	}
	w.Push(codec.PackBytesLE(b[:]))
}

// FromData is the inverse of ToData.
func FromData(r *codec.Reader) (Card, error) {
	duration, err := r.Next()
	if err != nil {
		return Card{}, err
	}
	raw, err := r.Next()
	if err != nil {
		return Card{}, err
	}
	bytes := codec.UnpackBytesLE(raw)
	var attrs [8]int8
	for i, b := range bytes {
		attrs[i] = int8(b)
	}
	return Card{Duration: duration, Attributes: attrs}, nil
}

func clampInt8(v int64) int8 {
	if v > 64 {
		return 64
	}
	if v < -64 {
		return -64
	}
	return int8(v)
}

// RandomModifier derives a brand new Card from the player's current
// local vector and a single 64-bit random word, following the exact
// arithmetic in spec §4.1 (not the differing formula in earlier
// variants of this generator — see DESIGN.md for the disambiguation).
func RandomModifier(local [8]int64, rand uint64) Card {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(rand >> (8 * i))
	}

	out1 := uint64(b[0]) & 7
	out2 := (uint64(b[0]) >> 4) & 7
	c1 := uint64(b[1]) & 3
	c2 := (uint64(b[1]) >> 4) & 3

	in := [4]uint64{
		uint64(b[2]) & 7,
		(uint64(b[2]) >> 4) & 7,
		uint64(b[3]) & 7,
		(uint64(b[3]) >> 4) & 7,
	}
	sortedIn := in
	sort.Slice(sortedIn[:], func(i, j int) bool { return sortedIn[i] < sortedIn[j] })

	w := out1*c1*ResourceWeights[out1] + out2*c2*ResourceWeights[out2]

	var s uint64
	for _, idx := range sortedIn {
		s += uint64(local[idx])
	}

	var attrs [8]int64
	for _, idx := range sortedIn {
		k := w * uint64(local[idx]) / (ResourceWeights[idx]*s + 1)
		attrs[idx] -= int64(k)
	}
	attrs[out1] += int64(c1)
	attrs[out2] += int64(c2)

	var clamped [8]int8
	for i, v := range attrs {
		clamped[i] = clampInt8(v)
	}

	var finalWeight int64
	for i, a := range clamped {
		finalWeight += int64(a) * int64(ResourceWeights[i])
	}
	finalWeight += 5

	var duration uint64
	if finalWeight < 0 {
		duration = 15
	} else {
		duration = uint64(finalWeight*40 + 15)
	}

	return Card{Duration: duration, Attributes: clamped}
}

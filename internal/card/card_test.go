package card

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/onchainautomata/automata-core/internal/codec"
)

func TestClampInt8(t *testing.T) {
	cases := map[int64]int8{100: 64, -100: -64, 64: 64, -64: -64, 0: 0, 63: 63}
	for in, want := range cases {
		if got := clampInt8(in); got != want {
			t.Fatalf("clampInt8(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestRandomModifierDeterministic(t *testing.T) {
	local := [8]int64{30, 30, 0, 0, 2, 0, 0, 0}
	a := RandomModifier(local, 0x0123456789abcdef)
	b := RandomModifier(local, 0x0123456789abcdef)
	if a != b {
		t.Fatalf("random_modifier not deterministic: %v != %v", a, b)
	}
}

func TestRandomModifierClampsToBounds(t *testing.T) {
	local := [8]int64{1000000, 1000000, 1000000, 1000000, 1000000, 1000000, 1000000, 1000000}
	c := RandomModifier(local, 0xffffffffffffffff)
	for i, a := range c.Attributes {
		if a > 64 || a < -64 {
			t.Fatalf("attribute[%d] = %d, out of [-64,64]", i, a)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	c := Card{Duration: 123, Attributes: [8]int8{-64, 64, 0, 1, -1, 30, -30, 5}}
	w := codec.NewWriter()
	c.ToData(w)
	got, err := FromData(codec.NewReader(w.Words()))
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	if diff := cmp.Diff(c, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultCardsMatchGroundTruth(t *testing.T) {
	if DefaultCards[0].Duration != 20 {
		t.Fatalf("DefaultCards[0].Duration = %d, want 20", DefaultCards[0].Duration)
	}
	want3 := [8]int8{10, 0, -30, 0, 20, 0, 0, 0}
	if DefaultCards[3].Attributes != want3 {
		t.Fatalf("DefaultCards[3].Attributes = %v, want %v", DefaultCards[3].Attributes, want3)
	}
}

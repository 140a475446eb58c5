package object

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/onchainautomata/automata-core/internal/codec"
)

func TestHaltPreservesPointerAndTick(t *testing.T) {
	o := New([8]uint8{0, 1, 2, 3, 4, 5, 6, 7})
	o.StartNewModifier(3, 100)
	o.Halt()
	if !o.IsHalted() {
		t.Fatalf("expected halted")
	}
	if o.ModifierIndex() != 3 {
		t.Fatalf("pointer = %d, want 3", o.ModifierIndex())
	}
	if o.ScheduledTick() != 100 {
		t.Fatalf("tick = %d, want 100", o.ScheduledTick())
	}
}

func TestRestartPendingDoesNotClearHalted(t *testing.T) {
	o := New([8]uint8{0, 1, 2, 3, 4, 5, 6, 7})
	o.Halt()
	o.MarkRestartPending()
	if !o.IsHalted() || !o.IsRestarting() {
		t.Fatalf("expected both bits set, got halted=%v restarting=%v", o.IsHalted(), o.IsRestarting())
	}
}

func TestStartNewModifierClearsStatus(t *testing.T) {
	o := New([8]uint8{0, 1, 2, 3, 4, 5, 6, 7})
	o.Halt()
	o.StartNewModifier(5, 42)
	if o.IsHalted() || o.IsRestarting() {
		t.Fatalf("expected running after start_new_modifier")
	}
	if o.ModifierIndex() != 5 {
		t.Fatalf("pointer = %d, want 5", o.ModifierIndex())
	}
	if o.ScheduledTick() != 42 {
		t.Fatalf("tick = %d, want 42", o.ScheduledTick())
	}
}

func TestRestartResetsPointerToZero(t *testing.T) {
	o := New([8]uint8{0, 1, 2, 3, 4, 5, 6, 7})
	o.StartNewModifier(6, 10)
	o.Restart(77)
	if o.IsHalted() || o.IsRestarting() {
		t.Fatalf("expected running after restart")
	}
	if o.ModifierIndex() != 0 {
		t.Fatalf("pointer = %d, want 0", o.ModifierIndex())
	}
	if o.ScheduledTick() != 77 {
		t.Fatalf("tick = %d, want 77", o.ScheduledTick())
	}
}

func TestRoundTrip(t *testing.T) {
	o := New([8]uint8{7, 6, 5, 4, 3, 2, 1, 0})
	o.StartNewModifier(2, 555)
	o.Attributes = [4]uint16{1, 2, 3, 4}

	w := codec.NewWriter()
	o.ToData(w)
	got, err := FromData(codec.NewReader(w.Words()))
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	if diff := cmp.Diff(o, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

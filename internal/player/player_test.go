package player

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/onchainautomata/automata-core/internal/codec"
	"github.com/onchainautomata/automata-core/internal/object"
)

func TestNewDefaults(t *testing.T) {
	p := New()
	if p.Energy != 256 {
		t.Fatalf("energy = %d, want 256", p.Energy)
	}
	if p.CostInfo != 5 {
		t.Fatalf("cost_info = %d, want 5", p.CostInfo)
	}
	if p.Local != DefaultLocal {
		t.Fatalf("local = %v, want %v", p.Local, DefaultLocal)
	}
	if len(p.Cards) != 4 {
		t.Fatalf("len(cards) = %d, want 4", len(p.Cards))
	}
}

func TestCostBalanceRejectsNegativeResult(t *testing.T) {
	p := New()
	p.Local[TreasureIndex] = 5
	if err := p.CostBalance(10); err == nil {
		t.Fatalf("expected failure when balance would go negative")
	}
	if p.Local[TreasureIndex] != 5 {
		t.Fatalf("local mutated on failed cost_balance: %v", p.Local)
	}
	if err := p.CostBalance(-10); err != nil {
		t.Fatalf("credit should never fail: %v", err)
	}
	if p.Local[TreasureIndex] != 15 {
		t.Fatalf("treasure = %d, want 15", p.Local[TreasureIndex])
	}
}

// TestCostDoubling reproduces scenario 3: five InstallCard-style
// pay_cost calls cost 0 each, the fifth flips current_cost to 1.
func TestCostDoubling(t *testing.T) {
	p := New()
	p.Local[TreasureIndex] = 100
	for i := 0; i < 5; i++ {
		before := p.Local[TreasureIndex]
		if err := p.PayCost(); err != nil {
			t.Fatalf("pay_cost %d: %v", i, err)
		}
		if p.Local[TreasureIndex] != before {
			t.Fatalf("pay_cost %d charged non-zero before cost clock expired", i)
		}
	}
	if p.CurrentCost != 1 {
		t.Fatalf("current_cost after 5 pay_cost = %d, want 1", p.CurrentCost)
	}
	for i := 0; i < 5; i++ {
		before := p.Local[TreasureIndex]
		if err := p.PayCost(); err != nil {
			t.Fatalf("pay_cost %d: %v", i, err)
		}
		if before-p.Local[TreasureIndex] != 1 {
			t.Fatalf("pay_cost %d charged %d, want 1", i, before-p.Local[TreasureIndex])
		}
	}
	if p.CurrentCost != 2 {
		t.Fatalf("current_cost after 10 pay_cost = %d, want 2", p.CurrentCost)
	}
}

func TestUpgradeObjectLevelCap(t *testing.T) {
	p := New()
	p.Objects = append(p.Objects, object.New([8]uint8{0, 1, 2, 3, 0, 1, 2, 3}))
	p.Objects[0].Attributes[0] = 127
	if err := p.UpgradeObject(0, 1); err != nil {
		t.Fatalf("upgrade at 127: %v", err)
	}
	if p.Objects[0].Attributes[0] != 128 {
		t.Fatalf("level = %d, want 128", p.Objects[0].Attributes[0])
	}
	if err := p.UpgradeObject(0, 1); err == nil {
		t.Fatalf("expected rejection once level reaches cap")
	}
}

// TestApplyObjectCardScenario1 reproduces scenario 1: program [0,1,2,3,...]
// applies card 0's duration-20 delta to local.
func TestApplyObjectCardScenario1(t *testing.T) {
	p := New()
	p.Objects = append(p.Objects, object.New([8]uint8{0, 1, 2, 3, 0, 1, 2, 3}))
	dur, wrapped, ok := p.ApplyObjectCard(0, 20)
	if !ok {
		t.Fatalf("expected success firing card 0")
	}
	if wrapped {
		t.Fatalf("should not wrap on first fire")
	}
	want := [8]int64{20, 20, 20, 0, 2, 0, 0, 0}
	if p.Local != want {
		t.Fatalf("local after first fire = %v, want %v", p.Local, want)
	}
	if dur != 40 {
		t.Fatalf("next duration = %d, want 40 (card 1 duration)", dur)
	}
	if p.Objects[0].ModifierIndex() != 1 {
		t.Fatalf("pointer = %d, want 1", p.Objects[0].ModifierIndex())
	}
}

// TestApplyObjectCardHaltsOnInsufficientResource reproduces scenario 2.
func TestApplyObjectCardHaltsOnInsufficientResource(t *testing.T) {
	p := New()
	p.Objects = append(p.Objects, object.New([8]uint8{3, 3, 3, 3, 3, 3, 3, 3}))
	_, _, ok := p.ApplyObjectCard(0, 0)
	if ok {
		t.Fatalf("expected halt, got success")
	}
	if !p.Objects[0].IsHalted() {
		t.Fatalf("object should be halted")
	}
	if p.Local != DefaultLocal {
		t.Fatalf("local must be unchanged on halt: %v", p.Local)
	}
}

func TestRoundTrip(t *testing.T) {
	p := New()
	p.Objects = append(p.Objects, object.New([8]uint8{0, 1, 2, 3, 0, 1, 2, 3}))
	p.Energy = 123
	p.RedeemInfo[3] = 7
	p.GenerateCard(0xdeadbeefcafebabe)

	w := codec.NewWriter()
	p.ToData(w)
	got, err := FromData(codec.NewReader(w.Words()))
	if err != nil {
		t.Fatalf("FromData: %v", err)
	}
	if diff := cmp.Diff(p, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

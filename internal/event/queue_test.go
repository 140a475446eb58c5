package event

import (
	"testing"

	"github.com/onchainautomata/automata-core/internal/kv"
	"github.com/onchainautomata/automata-core/internal/object"
	"github.com/onchainautomata/automata-core/internal/player"
)

func deltas(q *Queue) []uint64 {
	out := make([]uint64, len(q.List))
	for i, e := range q.List {
		out[i] = e.Delta
	}
	return out
}

// TestInsertRelinksDeltas reproduces scenario 4: deltas [5,3,7]
// (absolute 5,8,15); inserting remaining-absolute-10 yields
// [5,3,2,5] (absolute 5,8,10,15).
func TestInsertRelinksDeltas(t *testing.T) {
	q := &Queue{List: []Event{{Delta: 5}, {Delta: 3}, {Delta: 7}}}
	q.Insert(Event{Delta: 10})
	got := deltas(q)
	want := []uint64{5, 3, 2, 5}
	if len(got) != len(want) {
		t.Fatalf("deltas = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("deltas = %v, want %v", got, want)
		}
	}
}

func TestInsertStableOrderOnEqualDelta(t *testing.T) {
	q := &Queue{List: []Event{{Delta: 5, ObjectIndex: 1}}}
	q.Insert(Event{Delta: 5, ObjectIndex: 2})
	if q.List[0].ObjectIndex != 1 || q.List[0].Delta != 5 {
		t.Fatalf("existing equal-delta event should stay first: %+v", q.List)
	}
	if q.List[1].ObjectIndex != 2 || q.List[1].Delta != 0 {
		t.Fatalf("new equal-delta event should follow with delta 0: %+v", q.List)
	}
}

type fakeAccess struct {
	players map[[2]uint64]*player.Player
}

func newFakeAccess() *fakeAccess {
	return &fakeAccess{players: make(map[[2]uint64]*player.Player)}
}

func (f *fakeAccess) LoadPlayer(pid [2]uint64) (*player.Player, error) {
	return f.players[pid], nil
}

func (f *fakeAccess) SavePlayer(pid [2]uint64, p *player.Player) error {
	f.players[pid] = p
	return nil
}

// TestBucketRecycling reproduces scenario 5: an event scheduled
// 2^28 ticks in the future lands in the same bucket as "now".
func TestBucketRecycling(t *testing.T) {
	store := kv.NewMemStore()
	q := &Queue{Counter: 1000}

	future := q.Counter + (1 << 28)
	nowKey := kv.EventBucketKey(q.Counter)
	futureKey := kv.EventBucketKey(future)
	if nowKey != futureKey {
		t.Fatalf("bucket keys differ: now=%v future=%v", nowKey, futureKey)
	}

	q.List = []Event{{Delta: 1 << 28, Owner: [2]uint64{1, 2}, ObjectIndex: 0}}
	q.Store(store)

	words, ok := store.Get(futureKey)
	if !ok || len(words) == 0 {
		t.Fatalf("expected event persisted into recycled bucket")
	}
}

func TestHandleHaltsOnZeroEnergy(t *testing.T) {
	pa := newFakeAccess()
	p := player.New()
	p.Energy = 0
	p.Objects = append(p.Objects, object.New([8]uint8{0, 1, 2, 3, 0, 1, 2, 3}))
	pid := [2]uint64{9, 9}
	pa.SavePlayer(pid, &p)

	e := Event{Owner: pid, ObjectIndex: uint32(len(p.Objects) - 1)}
	next, err := e.Handle(5, pa)
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if next != nil {
		t.Fatalf("expected no successor on zero-energy halt")
	}
	saved := pa.players[pid]
	if !saved.Objects[e.ObjectIndex].IsHalted() {
		t.Fatalf("expected object halted")
	}
}

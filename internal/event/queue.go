// Package event implements the delta-encoded priority queue (spec
// §4.4: C4, C5) that drives every object's card program. Events never
// carry an absolute firing tick; each stores only the number of ticks
// since its predecessor, so the in-memory list is a linked run of
// deltas whose prefix sums give absolute firing order. Persistence
// buckets the residual tail by `(tick & 0x0fffffff)` so the host can
// recycle storage for ticks far in the future (spec §6, §4.4).
package event

import (
	"github.com/onchainautomata/automata-core/internal/codec"
	"github.com/onchainautomata/automata-core/internal/kv"
	"github.com/onchainautomata/automata-core/internal/player"
)

// Event names whose object fires, and how far in the future (relative
// to its predecessor in the queue) it is due (spec §3 Event).
type Event struct {
	Owner       [2]uint64
	ObjectIndex uint32
	Delta       uint64
}

// ToData appends the 3-word event blob: owner[0], owner[1],
// (object_index<<32)|delta (spec §6).
func (e Event) ToData(w *codec.Writer) {
	w.Push(e.Owner[0])
	w.Push(e.Owner[1])
	w.Push(uint64(e.ObjectIndex)<<32 | (e.Delta & 0xffffffff))
}

// FromData is the inverse of ToData.
func FromData(r *codec.Reader) (Event, error) {
	o0, err := r.Next()
	if err != nil {
		return Event{}, err
	}
	o1, err := r.Next()
	if err != nil {
		return Event{}, err
	}
	packed, err := r.Next()
	if err != nil {
		return Event{}, err
	}
	return Event{
		Owner:       [2]uint64{o0, o1},
		ObjectIndex: uint32(packed >> 32),
		Delta:       packed & 0xffffffff,
	}, nil
}

// PlayerAccess is what the handler needs from the host to load and
// persist the owning player around a single event firing. It is
// deliberately narrower than kv.Store: key derivation and decoding
// are the event package's business, not the substrate's.
type PlayerAccess interface {
	LoadPlayer(pid [2]uint64) (*player.Player, error)
	SavePlayer(pid [2]uint64, p *player.Player) error
}

// Handle fires the event's object against counter (spec §4.4 "Event
// handler"): zero energy halts the object and yields no successor;
// otherwise the player's current modifier is applied and, on success,
// a successor event is synthesized from the newly-current card's
// duration.
func (e Event) Handle(counter uint64, pa PlayerAccess) (*Event, error) {
	p, err := pa.LoadPlayer(e.Owner)
	if err != nil {
		return nil, err
	}

	if p.Energy == 0 {
		p.Objects[e.ObjectIndex].Halt()
		return nil, pa.SavePlayer(e.Owner, p)
	}

	dur, wrapped, ok := p.ApplyObjectCard(int(e.ObjectIndex), counter)
	if wrapped && p.Energy > 0 {
		p.Energy--
	}

	if err := pa.SavePlayer(e.Owner, p); err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &Event{Owner: e.Owner, ObjectIndex: e.ObjectIndex, Delta: dur}, nil
}

// Queue is the delta-encoded priority queue plus the absolute tick
// counter it advances (spec §3 EventQueue).
type Queue struct {
	Counter uint64
	List    []Event
}

// Insert places e so that prefix sums over List remain the absolute
// firing ticks, re-linking the deltas on either side of the insertion
// point (spec §4.4 insert(); scenario 4).
func (q *Queue) Insert(e Event) {
	i := 0
	remaining := e.Delta
	for i < len(q.List) && q.List[i].Delta <= remaining {
		remaining -= q.List[i].Delta
		i++
	}
	e.Delta = remaining
	if i < len(q.List) {
		q.List[i].Delta -= remaining
	}
	q.List = append(q.List, Event{})
	copy(q.List[i+1:], q.List[i:])
	q.List[i] = e
}

// Tick fires every event due at the current counter — both those
// parked in the storage bucket for this tick and the in-memory
// zero-delta head — then advances counter by one (spec §4.4 tick()).
func (q *Queue) Tick(store kv.Store, pa PlayerAccess) error {
	bucketKey := kv.EventBucketKey(q.Counter)
	if words, ok := store.Get(bucketKey); ok && len(words) > 0 {
		r := codec.NewReader(words)
		for r.Remaining() > 0 {
			ev, err := FromData(r)
			if err != nil {
				return err
			}
			next, err := ev.Handle(q.Counter, pa)
			if err != nil {
				return err
			}
			if next != nil {
				q.Insert(*next)
			}
		}
		store.Set(bucketKey, nil)
	}

	for len(q.List) > 0 && q.List[0].Delta == 0 {
		ev := q.List[0]
		q.List = q.List[1:]
		next, err := ev.Handle(q.Counter, pa)
		if err != nil {
			return err
		}
		if next != nil {
			q.Insert(*next)
		}
	}

	if len(q.List) > 0 {
		q.List[0].Delta--
	}
	q.Counter++
	return nil
}

// Store drains the in-memory list into storage buckets, grouping
// contiguous zero-delta runs (events that share an absolute firing
// tick) and appending each run's serialized words onto whatever that
// bucket already holds (spec §4.4 store()).
func (q *Queue) Store(store kv.Store) {
	var prefix uint64
	i := 0
	for i < len(q.List) {
		prefix += q.List[i].Delta
		j := i + 1
		for j < len(q.List) && q.List[j].Delta == 0 {
			j++
		}

		key := kv.EventBucketKey(q.Counter + prefix)
		existing, _ := store.Get(key)
		w := codec.NewWriter()
		for _, v := range existing {
			w.Push(v)
		}
		for _, ev := range q.List[i:j] {
			ev.ToData(w)
		}
		store.Set(key, w.Words())

		i = j
	}
	q.List = nil
}

// ToData appends the queue counter (the part of global state the
// façade persists alongside supplier; spec §4.6 store()).
func (q Queue) ToData(w *codec.Writer) {
	w.Push(q.Counter)
}

// QueueFromData reads back the counter written by ToData. The
// in-memory list itself is never part of the global-state blob: it
// lives only in process memory between calls to Store (spec §5
// "Persistence discipline").
func QueueFromData(words []uint64) (Queue, error) {
	r := codec.NewReader(words)
	counter, err := r.Next()
	if err != nil {
		return Queue{}, err
	}
	return Queue{Counter: counter}, nil
}

// Package automata is the public façade over the deterministic
// automata-game core (spec §4.6: C7): snapshot, preemption, settlement
// flush, and the persistence lifecycle, wrapping the player/object
// state machine and the event queue behind a single mutator lock
// (spec §5: "one mutator at a time"). Construction mirrors the
// teacher's app.New(home) — a single entry point that loads whatever
// state already exists and hands back a ready-to-use value.
package automata

import (
	"fmt"
	"strconv"

	"github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"
	"github.com/sasha-s/go-deadlock"

	"github.com/onchainautomata/automata-core/internal/config"
	"github.com/onchainautomata/automata-core/internal/event"
	"github.com/onchainautomata/automata-core/internal/kv"
	"github.com/onchainautomata/automata-core/internal/player"
	"github.com/onchainautomata/automata-core/internal/txproc"
)

// WithdrawInfo re-exports the processor's withdrawal payload so hosts
// never need to import internal/txproc directly.
type WithdrawInfo = txproc.WithdrawInfo

// SettlementSink re-exports the processor's settlement interface.
type SettlementSink = txproc.SettlementSink

// sliceSettlement is the default in-memory SettlementSink: it simply
// accumulates withdrawals for FlushSettlement to drain, matching the
// teacher's SettlementInfo (settlement.rs) when no host sink is wired.
type sliceSettlement struct {
	pending []WithdrawInfo
}

func (s *sliceSettlement) Append(w WithdrawInfo) {
	s.pending = append(s.pending, w)
}

func (s *sliceSettlement) drain() []WithdrawInfo {
	out := s.pending
	s.pending = nil
	return out
}

// Option configures Core at construction time, following the
// teacher's constructor-injection style (New(home) takes exactly what
// it needs, nothing is a package-level global).
type Option func(*Core)

// WithLogger overrides the default no-op logger (spec §4.7).
func WithLogger(l log.Logger) Option {
	return func(c *Core) { c.logger = l }
}

// WithPlayerKeyFunc overrides player-key derivation (spec §6
// "key derivation delegated to collaborator").
func WithPlayerKeyFunc(f kv.PlayerKeyFunc) Option {
	return func(c *Core) { c.playerKeyFunc = f }
}

// WithAdminPubKey overrides the embedded admin public key (spec §6).
func WithAdminPubKey(key [4]uint64) Option {
	return func(c *Core) { c.adminKey = key }
}

// WithSettlementSink overrides the default in-memory settlement
// accumulator with a host-supplied formatter (spec §1 "withdrawal /
// settlement formatter").
func WithSettlementSink(sink SettlementSink) Option {
	return func(c *Core) { c.settlement = sink }
}

// Core is the process-wide singleton state (spec §5 "State singleton
// with interior mutability"): the supplier counter, the event queue,
// and the pending settlement list, all guarded by one exclusive lock
// since execution must remain strictly serial.
type Core struct {
	mu deadlock.Mutex

	store         kv.Store
	playerKeyFunc kv.PlayerKeyFunc
	adminKey      [4]uint64
	logger        log.Logger

	supplier   uint64
	queue      event.Queue
	settlement SettlementSink
}

// New builds a Core over store, applying any options, then loads
// whatever global state already exists under the reserved key
// (spec §4.6 initialize()). A brand new store initializes supplier to
// its default and the queue counter to 0.
func New(store kv.Store, opts ...Option) (*Core, error) {
	c := &Core{
		store:         store,
		playerKeyFunc: kv.DefaultPlayerKey,
		adminKey:      config.DefaultAdminPubKey(),
		logger:        log.NewNopLogger(),
		supplier:      config.SupplierInit,
		settlement:    &sliceSettlement{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.initializeLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Core) processor() *txproc.Processor {
	return &txproc.Processor{
		Players:    txproc.PlayerStore{Store: c.store, KeyFunc: c.playerKeyFunc},
		Queue:      &c.queue,
		Settlement: c.settlement,
		AdminKey:   c.adminKey,
		Logger:     c.logger,
	}
}

// Process decodes and dispatches a single transaction (spec §4.5).
// pkey identifies the caller (already authenticated by the host
// envelope per spec §6); rand supplies the randomness consumed by
// card generation; params is the raw 4x64-bit parameter tuple.
func (c *Core) Process(pkey, rand [4]uint64, params [4]uint64) (txproc.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tx := txproc.Decode(params)
	pid := pkeyToPid(pkey)
	res, err := c.processor().Process(tx, pid, pkey, rand)
	if err != nil {
		c.logger.Error("transaction processing failed", "err", err)
		return txproc.Result{}, errors.Wrap(err, "automata: process")
	}
	return res, nil
}

// pkeyToPid derives the 2-word player id from the 4-word pubkey by
// folding the high two words into the low two. The original source's
// own pkey_to_pid lives in a host-side convention crate outside this
// core's scope (spec §1 "host-side transaction envelope... out of
// scope"); this fold is this core's own deterministic stand-in.
func pkeyToPid(pkey [4]uint64) [2]uint64 {
	return [2]uint64{pkey[0] + pkey[2], pkey[1] + pkey[3]}
}

// Preempt reports whether the host may break its processing batch
// here (spec §4.6 preempt(): counter % 30 == 0).
func (c *Core) Preempt() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.Counter%config.PreemptInterval == 0
}

// Snapshot returns a textual representation of the current tick
// (spec §4.6 snapshot()).
func (c *Core) Snapshot() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return "tick=" + strconv.FormatUint(c.queue.Counter, 10)
}

// GetState returns a textual representation of the named player
// (spec §4.6 get_state(pid)).
func (c *Core) GetState(pid [2]uint64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ps := txproc.PlayerStore{Store: c.store, KeyFunc: c.playerKeyFunc}
	p, err := ps.LoadPlayer(pid)
	if err != nil {
		return "", errors.Wrap(err, "automata: get_state")
	}
	if p == nil {
		return "", fmt.Errorf("automata: no player at pid %v", pid)
	}
	return formatPlayer(*p, c.queue.Counter), nil
}

func formatPlayer(p player.Player, counter uint64) string {
	return fmt.Sprintf(
		"tick=%d energy=%d cost_info=%d current_cost=%d objects=%d local=%v cards=%d nonce=%d",
		counter, p.Energy, p.CostInfo, p.CurrentCost, len(p.Objects), p.Local, len(p.Cards), p.Nonce,
	)
}

// Store persists supplier and the queue counter under the reserved
// global key, then drains the in-memory event tail into storage
// buckets (spec §4.6 store()).
func (c *Core) Store() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storeLocked()
}

func (c *Core) storeLocked() {
	w := newGlobalWriter(c.supplier, c.queue.Counter)
	c.store.Set(kv.GlobalKey, w)
	c.queue.Store(c.store)
}

// Initialize reloads supplier and the queue counter from the reserved
// global key (spec §4.6 initialize()).
func (c *Core) Initialize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeLocked()
}

func (c *Core) initializeLocked() error {
	words, ok := c.store.Get(kv.GlobalKey)
	if !ok {
		return nil
	}
	supplier, counter, err := readGlobalWords(words)
	if err != nil {
		return errors.Wrap(err, "automata: initialize")
	}
	c.supplier = supplier
	c.queue.Counter = counter
	return nil
}

// FlushSettlement drains pending withdrawals and persists state
// (spec §4.6 flush_settlement()).
func (c *Core) FlushSettlement() []WithdrawInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	sink, ok := c.settlement.(*sliceSettlement)
	var drained []WithdrawInfo
	if ok {
		drained = sink.drain()
	}
	c.storeLocked()
	return drained
}

// newGlobalWriter and readGlobalWords pack/unpack the
// supplier-then-counter global blob (spec §4.6 store()/initialize()).
func newGlobalWriter(supplier, counter uint64) []uint64 {
	return []uint64{supplier, counter}
}

func readGlobalWords(words []uint64) (supplier, counter uint64, err error) {
	if len(words) < 2 {
		return 0, 0, fmt.Errorf("automata: global state blob too short: %d words", len(words))
	}
	return words[0], words[1], nil
}

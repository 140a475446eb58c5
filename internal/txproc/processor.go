// Package txproc decodes and dispatches transactions (spec §4.5: C6):
// eight player-facing commands plus a default tick advance, each
// nonce-checked, cost-gated, and fully validated before any mutation
// — matching the "no partial mutation" discipline in spec §7. The
// dispatch shape (decode a command word, switch on it, build a
// structured result) is the teacher's deliverTx pattern (app.go),
// generalized from poker transaction types to this domain's eight.
package txproc

import (
	"sort"
	"strconv"

	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/cometbft/cometbft/libs/log"
	"github.com/pkg/errors"

	"github.com/onchainautomata/automata-core/internal/apperr"
	"github.com/onchainautomata/automata-core/internal/codec"
	"github.com/onchainautomata/automata-core/internal/config"
	"github.com/onchainautomata/automata-core/internal/event"
	"github.com/onchainautomata/automata-core/internal/kv"
	"github.com/onchainautomata/automata-core/internal/object"
	"github.com/onchainautomata/automata-core/internal/player"
)

// Command codes, decoded out of bits [7:0] of p0 (spec §4.5).
const (
	CmdInstallPlayer uint64 = 1
	CmdInstallObject uint64 = 2
	CmdRestartObject uint64 = 3
	CmdUpgradeObject uint64 = 4
	CmdInstallCard   uint64 = 5
	CmdWithdraw      uint64 = 6
	CmdDeposit       uint64 = 7
	CmdBounty        uint64 = 8
	// Any other code is a Tick: admin-only, advances the event queue.
)

// WithdrawInfo is the three raw words a Withdraw command hands to the
// settlement sink; the core never formats them further (spec §4.6
// flush_settlement, §6).
type WithdrawInfo struct {
	Data [3]uint64
}

// SettlementSink is the consumed withdrawal/settlement formatter
// (spec §1 "withdrawal / settlement formatter" out of scope as an
// implementation, but the core needs somewhere to hand completed
// withdrawals).
type SettlementSink interface {
	Append(w WithdrawInfo)
}

// PlayerStore loads and persists whole player blobs, keyed by pid.
// It composes a kv.Store with a kv.PlayerKeyFunc and the player codec
// so the processor and the event package can share one notion of
// "the player" without either owning key derivation.
type PlayerStore struct {
	Store   kv.Store
	KeyFunc kv.PlayerKeyFunc
}

func (ps PlayerStore) LoadPlayer(pid [2]uint64) (*player.Player, error) {
	words, ok := ps.Store.Get(ps.KeyFunc(pid))
	if !ok {
		return nil, nil
	}
	p, err := player.FromData(codec.NewReader(words))
	if err != nil {
		return nil, errors.Wrap(err, "txproc: decode player blob")
	}
	return &p, nil
}

func (ps PlayerStore) SavePlayer(pid [2]uint64, p *player.Player) error {
	w := codec.NewWriter()
	p.ToData(w)
	ps.Store.Set(ps.KeyFunc(pid), w.Words())
	return nil
}

// exists reports whether a player blob is present without decoding it
// fully, used by InstallPlayer's existence check.
func (ps PlayerStore) exists(pid [2]uint64) bool {
	_, ok := ps.Store.Get(ps.KeyFunc(pid))
	return ok
}

// Transaction is the decoded form of the 4x64-bit parameter tuple
// (spec §4.5).
type Transaction struct {
	Command     uint64
	ObjectIndex uint64
	Nonce       uint64
	Data        []uint64
}

// Decode splits p0's packed command/object-index/nonce and extracts
// the per-command payload from p1..p3 (spec §4.5 decode()).
func Decode(params [4]uint64) Transaction {
	tx := Transaction{
		Command:     params[0] & 0xff,
		ObjectIndex: (params[0] >> 8) & 0xff,
		Nonce:       params[0] >> 16,
	}
	switch tx.Command {
	case CmdWithdraw, CmdDeposit:
		tx.Data = []uint64{params[1], params[2], params[3]}
	case CmdInstallObject, CmdRestartObject:
		for i := 0; i < 8; i++ {
			tx.Data = append(tx.Data, (params[1]>>(8*uint(i)))&0xff)
		}
	case CmdUpgradeObject, CmdBounty:
		tx.Data = []uint64{params[1]}
	}
	return tx
}

// Processor is the stateless dispatcher: given a decoded transaction,
// the caller's pid, and the host-supplied randomness/admin pubkey, it
// mutates the player store (and possibly the shared queue/settlement)
// and reports a status code. It holds no state of its own — the
// mutable singleton (queue, supplier, settlement) is owned by the
// caller (automata.Core), matching spec §5's single-mutator model.
type Processor struct {
	Players    PlayerStore
	Queue      *event.Queue
	Settlement SettlementSink
	AdminKey   [4]uint64
	Logger     log.Logger
}

// Result mirrors the teacher's ExecTxResult shape (app.go okEvent):
// a status code plus structured events for observability, without
// requiring an actual ABCI server.
type Result struct {
	Code   apperr.Code
	Events []abci.Event
}

func okResult(events ...abci.Event) Result {
	return Result{Code: apperr.OK, Events: events}
}

func errResult(code apperr.Code) Result {
	return Result{Code: code}
}

// txEvent builds a structured event the way the teacher's okEvent
// does: attribute keys sorted so the output is deterministic across
// runs, which matters here because determinism is the whole point
// (spec §1 "bit-for-bit deterministic").
func txEvent(kind string, attrs map[string]string) abci.Event {
	ev := abci.Event{Type: kind}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		ev.Attributes = append(ev.Attributes, abci.EventAttribute{Key: k, Value: attrs[k], Index: true})
	}
	return ev
}

// Process dispatches tx against pid, enforcing nonce and cost
// preconditions before any mutation (spec §4.5, §7 "no partial
// mutation"). pkey is the raw 4-word authenticator the host already
// verified belongs to the caller; rand is the host-supplied
// randomness tuple, of which only InstallCard consumes a word
// (rand[1], spec §4.1/§4.3).
func (pr *Processor) Process(tx Transaction, pid [2]uint64, pkey, rand [4]uint64) (Result, error) {
	if tx.Command == 0 || tx.Command > CmdBounty {
		return pr.tick(pkey)
	}

	if tx.Command == CmdInstallPlayer {
		return pr.installPlayer(pid, tx.Nonce)
	}

	p, err := pr.Players.LoadPlayer(pid)
	if err != nil {
		return Result{}, err
	}
	if p == nil {
		return errResult(apperr.PlayerNotExist), nil
	}
	if tx.Nonce != p.Nonce {
		return errResult(apperr.NonceMismatch), nil
	}
	p.Nonce++

	switch tx.Command {
	case CmdInstallObject:
		return pr.installObject(pid, p, tx)
	case CmdRestartObject:
		return pr.restartObject(pid, p, tx)
	case CmdUpgradeObject:
		return pr.upgradeObject(pid, p, tx)
	case CmdInstallCard:
		return pr.installCard(pid, p, rand)
	case CmdWithdraw:
		return pr.withdraw(pid, p, tx)
	case CmdDeposit:
		if pkey != pr.AdminKey {
			return errResult(apperr.Unauthorized), nil
		}
		return pr.deposit(pid, p, tx)
	case CmdBounty:
		return pr.bounty(pid, p, tx)
	default:
		return errResult(apperr.InvalidCommand), nil
	}
}

func (pr *Processor) installPlayer(pid [2]uint64, nonce uint64) (Result, error) {
	if pr.Players.exists(pid) {
		return errResult(apperr.PlayerAlreadyExist), nil
	}
	p := player.New()
	if nonce != p.Nonce {
		return errResult(apperr.NonceMismatch), nil
	}
	p.Nonce++
	if err := pr.Players.SavePlayer(pid, &p); err != nil {
		return Result{}, err
	}
	pr.Logger.Info("installed player", "pid", pid)
	return okResult(txEvent("install_player", nil)), nil
}

func (pr *Processor) installObject(pid [2]uint64, p *player.Player, tx Transaction) (Result, error) {
	if uint64(len(p.Objects)) != tx.ObjectIndex {
		return errResult(apperr.IndexOutOfBound), nil
	}
	if err := p.PayCost(); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}

	var cards [object.ProgramLength]uint8
	for i := 0; i < object.ProgramLength && i < len(tx.Data); i++ {
		cards[i] = uint8(tx.Data[i])
	}
	obj := object.New(cards)
	obj.StartNewModifier(0, pr.Queue.Counter)
	duration := p.Cards[cards[0]].Duration
	p.Objects = append(p.Objects, obj)

	if err := pr.Players.SavePlayer(pid, p); err != nil {
		return Result{}, err
	}
	pr.Queue.Insert(event.Event{Owner: pid, ObjectIndex: uint32(tx.ObjectIndex), Delta: duration})
	pr.Logger.Info("installed object", "pid", pid, "index", tx.ObjectIndex)
	return okResult(txEvent("install_object", map[string]string{"index": indexString(tx.ObjectIndex)})), nil
}

func (pr *Processor) restartObject(pid [2]uint64, p *player.Player, tx Transaction) (Result, error) {
	if tx.ObjectIndex >= uint64(len(p.Objects)) {
		return errResult(apperr.IndexOutOfBound), nil
	}
	if err := p.PayCost(); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}

	var cards [object.ProgramLength]uint8
	for i := 0; i < object.ProgramLength && i < len(tx.Data); i++ {
		cards[i] = uint8(tx.Data[i])
	}
	duration, ok := p.RestartObjectCard(int(tx.ObjectIndex), cards, pr.Queue.Counter)

	if err := pr.Players.SavePlayer(pid, p); err != nil {
		return Result{}, err
	}
	if ok {
		pr.Queue.Insert(event.Event{Owner: pid, ObjectIndex: uint32(tx.ObjectIndex), Delta: duration})
	}
	return okResult(txEvent("restart_object", map[string]string{"index": indexString(tx.ObjectIndex)})), nil
}

func (pr *Processor) upgradeObject(pid [2]uint64, p *player.Player, tx Transaction) (Result, error) {
	if err := p.PayCost(); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}
	feature := 0
	if len(tx.Data) > 0 {
		feature = int(tx.Data[0])
	}
	if err := p.UpgradeObject(int(tx.ObjectIndex), feature); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}
	if err := pr.Players.SavePlayer(pid, p); err != nil {
		return Result{}, err
	}
	return okResult(txEvent("upgrade_object", map[string]string{"index": indexString(tx.ObjectIndex)})), nil
}

func (pr *Processor) installCard(pid [2]uint64, p *player.Player, rand [4]uint64) (Result, error) {
	if err := p.PayCost(); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}
	idx := p.GenerateCard(rand[1])
	if err := pr.Players.SavePlayer(pid, p); err != nil {
		return Result{}, err
	}
	pr.Logger.Info("generated card", "pid", pid, "index", idx)
	return okResult(txEvent("install_card", nil)), nil
}

func (pr *Processor) withdraw(pid [2]uint64, p *player.Player, tx Transaction) (Result, error) {
	if len(tx.Data) < 3 {
		return errResult(apperr.InvalidCommand), nil
	}
	amount := int64(tx.Data[0] & 0xffffffff)
	if err := p.CostBalance(amount); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}
	if err := pr.Players.SavePlayer(pid, p); err != nil {
		return Result{}, err
	}
	pr.Settlement.Append(WithdrawInfo{Data: [3]uint64{tx.Data[0], tx.Data[1], tx.Data[2]}})
	return okResult(txEvent("withdraw", nil)), nil
}

func (pr *Processor) deposit(pid [2]uint64, admin *player.Player, tx Transaction) (Result, error) {
	if len(tx.Data) < 3 {
		return errResult(apperr.InvalidCommand), nil
	}
	target := [2]uint64{tx.Data[0], tx.Data[1]}
	amount := int64(tx.Data[2])

	targetPlayer, err := pr.Players.LoadPlayer(target)
	if err != nil {
		return Result{}, err
	}
	if targetPlayer == nil {
		np := player.New()
		targetPlayer = &np
	}
	if err := targetPlayer.CostBalance(-amount); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}
	if err := pr.Players.SavePlayer(target, targetPlayer); err != nil {
		return Result{}, err
	}
	if err := pr.Players.SavePlayer(pid, admin); err != nil {
		return Result{}, err
	}
	pr.Logger.Info("deposit", "target", target, "amount", amount)
	return okResult(txEvent("deposit", nil)), nil
}

func (pr *Processor) bounty(pid [2]uint64, p *player.Player, tx Transaction) (Result, error) {
	if len(tx.Data) < 1 {
		return errResult(apperr.InvalidCommand), nil
	}
	idx := tx.Data[0]
	if idx >= config.BountyResourceCount {
		return errResult(apperr.IndexOutOfBound), nil
	}
	cost := bountyCost(p.RedeemInfo[idx])
	if p.Local[idx] <= int64(cost) {
		return errResult(apperr.NotEnoughResource), nil
	}
	p.Local[idx] -= int64(cost)
	p.RedeemInfo[idx]++
	reward := bountyReward(p.RedeemInfo[idx])
	if err := p.CostBalance(-int64(reward)); err != nil {
		var code apperr.Code
		if apperr.As(err, &code) {
			return errResult(code), nil
		}
		return Result{}, err
	}
	if err := pr.Players.SavePlayer(pid, p); err != nil {
		return Result{}, err
	}
	return okResult(txEvent("bounty", map[string]string{"index": indexString(idx)})), nil
}

// bountyCost and bountyReward are the curves in spec §4.5:
// cost(r) = 20*2^r, reward(r) = 4*(r+1).
func bountyCost(redeemed uint8) uint32 {
	return config.BountyCostBase << redeemed
}

func bountyReward(redeemed uint8) uint32 {
	return config.BountyRewardBase * (uint32(redeemed) + 1)
}

func (pr *Processor) tick(pkey [4]uint64) (Result, error) {
	if pkey != pr.AdminKey {
		return errResult(apperr.Unauthorized), nil
	}
	if err := pr.Queue.Tick(pr.Players.Store, pr.Players); err != nil {
		return Result{}, err
	}
	pr.Logger.Debug("tick advanced", "counter", pr.Queue.Counter)
	return okResult(txEvent("tick", nil)), nil
}

func indexString(i uint64) string {
	return strconv.FormatUint(i, 10)
}

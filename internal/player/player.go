// Package player implements PlayerData (spec §3, §4.3: C3): the
// per-player economy (energy, cost clock, redeem counters), the owned
// object list, the 8-dim local resource vector, and the owned card
// list. Every mutating method here either fully succeeds or returns an
// apperr.Code and leaves the receiver untouched, matching the "no
// partial mutation" rule in spec §7.
package player

import (
	"github.com/onchainautomata/automata-core/internal/apperr"
	"github.com/onchainautomata/automata-core/internal/card"
	"github.com/onchainautomata/automata-core/internal/codec"
	"github.com/onchainautomata/automata-core/internal/object"
)

// DefaultLocal is the starting local vector every InstallPlayer uses
// (spec §3).
var DefaultLocal = [8]int64{30, 30, 0, 0, 2, 0, 0, 0}

// TreasureIndex is the local-vector slot every cost is paid from.
const TreasureIndex = 7

// LevelCap is the level at which UpgradeObject stops accepting
// upgrades: an upgrade is allowed while level < LevelCap, so level can
// reach LevelCap itself but never exceed it.
const LevelCap = 128

// RedeemCount is len(redeem_info): one counter per resource slot.
const RedeemCount = 8

// Player is the per-pid mutable record (spec §3 PlayerData).
type Player struct {
	Energy      uint16
	CostInfo    uint16
	CurrentCost uint32
	RedeemInfo  [RedeemCount]uint8
	Objects     []object.Object
	Local       [8]int64
	Cards       []card.Card

	// Nonce is the nonce the player's next transaction must carry
	// (SPEC_FULL §3: an ambient field, stored as the last word of the
	// player blob; the core owns nonce enforcement directly rather than
	// delegating it, since it is part of bit-for-bit deterministic
	// processing).
	Nonce uint64
}

// New builds a fresh player: default local vector, full energy, the
// cost clock at its initial period, and the four built-in cards
// (spec §3: "cards... prefixed by the four defaults").
func New() Player {
	p := Player{
		Energy:   256,
		CostInfo: 5,
		Local:    DefaultLocal,
	}
	p.Cards = append(p.Cards, card.DefaultCards...)
	return p
}

// PayCost subtracts CurrentCost from treasure, advances the cost
// clock, and refills energy (spec §4.3 pay_cost). Leaves p untouched
// on failure.
func (p *Player) PayCost() error {
	if err := p.CostBalance(int64(p.CurrentCost)); err != nil {
		return err
	}
	if p.CostInfo > 0 {
		p.CostInfo--
	}
	if p.CostInfo == 0 {
		p.CostInfo = 5
		if p.CurrentCost == 0 {
			p.CurrentCost = 1
		} else {
			p.CurrentCost *= 2
		}
	}
	if uint32(p.Energy)+uint32(EnergyRefill) > 0xffff {
		p.Energy = 0xffff
	} else {
		p.Energy += EnergyRefill
	}
	return nil
}

// EnergyRefill is how much energy pay_cost grants on every success
// (spec §4.3).
const EnergyRefill uint16 = 20

// CostBalance subtracts b from treasure (a negative b credits it);
// fails without mutating if the result would be negative
// (spec §4.3 cost_balance).
func (p *Player) CostBalance(b int64) error {
	if p.Local[TreasureIndex]-b < 0 {
		return apperr.New(apperr.NotEnoughBalance)
	}
	p.Local[TreasureIndex] -= b
	return nil
}

// UpgradeObject increments the object's level and the chosen feature
// attribute, provided level has headroom (spec §4.3 upgrade_object).
func (p *Player) UpgradeObject(i int, feature int) error {
	if i < 0 || i >= len(p.Objects) {
		return apperr.New(apperr.IndexOutOfBound)
	}
	if feature < 0 || feature >= len(p.Objects[i].Attributes) {
		return apperr.New(apperr.IndexOutOfBound)
	}
	obj := &p.Objects[i]
	if obj.Attributes[0] >= LevelCap {
		return apperr.New(apperr.NotEnoughResource)
	}
	obj.Attributes[0]++
	obj.Attributes[feature]++
	return nil
}

// ApplyObjectCard fires the object's current modifier, or performs a
// deferred restart if it was restart-pending (spec §4.4 Event handler
// and §4.3 apply_object_card). ok reports whether a successor event
// should be scheduled; duration is only meaningful when ok is true.
func (p *Player) ApplyObjectCard(i int, counter uint64) (duration uint64, wrapped bool, ok bool) {
	obj := &p.Objects[i]
	if obj.IsRestarting() {
		obj.Restart(counter)
		return p.cardAt(obj, 0).Duration, false, true
	}

	idx := int(obj.ModifierIndex())
	c := p.cardAt(obj, idx)
	var next [8]int64
	copy(next[:], p.Local[:])
	for k, d := range c.Attributes {
		next[k] += int64(d)
	}
	for _, v := range next {
		if v < 0 {
			obj.Halt()
			return 0, false, false
		}
	}
	copy(p.Local[:], next[:])

	newIdx := (idx + 1) % object.ProgramLength
	obj.StartNewModifier(uint8(newIdx), counter)
	return p.cardAt(obj, newIdx).Duration, newIdx == 0, true
}

func (p *Player) cardAt(obj *object.Object, programIdx int) card.Card {
	return p.Cards[obj.Cards[programIdx]]
}

// RestartObjectCard replaces the object's program and either restarts
// it immediately (if halted) or marks it restart-pending (if running)
// (spec §4.3 restart_object_card).
func (p *Player) RestartObjectCard(i int, newProgram [object.ProgramLength]uint8, counter uint64) (duration uint64, ok bool) {
	obj := &p.Objects[i]
	obj.ReplaceProgram(newProgram)
	if obj.IsHalted() {
		obj.Restart(counter)
		return p.cardAt(obj, 0).Duration, true
	}
	obj.MarkRestartPending()
	return 0, false
}

// GenerateCard derives a new card from the player's local vector and
// a random word, and appends it to the owned card list (spec §4.3
// generate_card). Returns the new card's index.
func (p *Player) GenerateCard(rand uint64) int {
	c := card.RandomModifier(p.Local, rand)
	p.Cards = append(p.Cards, c)
	return len(p.Cards) - 1
}

// ToData appends the full player blob in the order spec §6 defines:
// packed energy/cost word, packed redeem_info, object count and
// objects, local length and local words, card count and cards; the
// nonce follows as one extra trailing word.
func (p Player) ToData(w *codec.Writer) {
	w.Push(uint64(p.Energy)<<48 | uint64(p.CostInfo)<<32 | uint64(p.CurrentCost))
	w.Push(codec.PackBytesLE(p.RedeemInfo[:]))

	w.Push(uint64(len(p.Objects)))
	for _, obj := range p.Objects {
		obj.ToData(w)
	}

	w.Push(uint64(len(p.Local)))
	for _, v := range p.Local {
		w.Push(uint64(v))
	}

	w.Push(uint64(len(p.Cards)))
	for _, c := range p.Cards {
		c.ToData(w)
	}

	w.Push(p.Nonce)
}

// FromData is the inverse of ToData.
func FromData(r *codec.Reader) (Player, error) {
	head, err := r.Next()
	if err != nil {
		return Player{}, err
	}
	redeemWord, err := r.Next()
	if err != nil {
		return Player{}, err
	}

	objCount, err := r.Next()
	if err != nil {
		return Player{}, err
	}
	objects := make([]object.Object, 0, objCount)
	for i := uint64(0); i < objCount; i++ {
		obj, err := object.FromData(r)
		if err != nil {
			return Player{}, err
		}
		objects = append(objects, obj)
	}

	localLen, err := r.Next()
	if err != nil {
		return Player{}, err
	}
	local := make([]int64, 0, localLen)
	for i := uint64(0); i < localLen; i++ {
		v, err := r.Next()
		if err != nil {
			return Player{}, err
		}
		local = append(local, int64(v))
	}

	cardCount, err := r.Next()
	if err != nil {
		return Player{}, err
	}
	cards := make([]card.Card, 0, cardCount)
	for i := uint64(0); i < cardCount; i++ {
		c, err := card.FromData(r)
		if err != nil {
			return Player{}, err
		}
		cards = append(cards, c)
	}

	nonce, err := r.Next()
	if err != nil {
		return Player{}, err
	}

	redeemBytes := codec.UnpackBytesLE(redeemWord)
	var redeem [RedeemCount]uint8
	copy(redeem[:], redeemBytes[:])

	var localArr [8]int64
	copy(localArr[:], local)

	return Player{
		Energy:      uint16(head >> 48),
		CostInfo:    uint16((head >> 32) & 0xffff),
		CurrentCost: uint32(head & 0xffffffff),
		RedeemInfo:  redeem,
		Objects:     objects,
		Local:       localArr,
		Cards:       cards,
		Nonce:       nonce,
	}, nil
}

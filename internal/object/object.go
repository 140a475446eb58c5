// Package object implements the per-automaton state machine (spec §3,
// §4.2: C2): a cycling 8-card program, a bit-packed modifier_info word
// tracking status/pointer/scheduled-tick, and the four entity
// attributes (level, speed, efficiency, productivity).
package object

import "github.com/onchainautomata/automata-core/internal/codec"

// Status is the three-value state machine in spec §4.2. The halted bit
// (statusHaltedBit) and the restart-pending bit (statusRestartingBit)
// are independent (spec: "both bits may be
// asserted simultaneously") so Status itself is just the raw flag byte,
// not a clean enum — callers should test IsHalted/IsRestarting rather
// than switch on a specific numeric value other than 0.
type Status uint8

const (
	statusHaltedBit      = 1 << 0 // bit 56 of modifier_info (LSB of the status byte)
	statusRestartingBit  = 1 << 1 // bit 57 of modifier_info
	modifierInfoTickMask = (uint64(1) << 48) - 1
	modifierInfoPtrMask  = uint64(0x7f)
)

// ProgramLength is the fixed size of an object's card-program cycle.
const ProgramLength = 8

// Object is one automaton: its current position in its own card
// program, whether it is running/halted/restart-pending, and its four
// upgradeable attributes.
type Object struct {
	ModifierInfo uint64 // status<<56 | pointer<<48 | scheduled_tick
	Cards        [ProgramLength]uint8
	Attributes   [4]uint16 // level, speed, efficiency, productivity
}

// New creates a running object at pointer 0, tick 0, with the given
// card program. Callers are expected to call StartNewModifier once the
// real scheduling counter is known (spec §4.5 InstallObject).
func New(cards [ProgramLength]uint8) Object {
	return Object{Cards: cards}
}

func (o *Object) statusByte() uint8 {
	return uint8(o.ModifierInfo >> 56)
}

// IsHalted reports whether the halted bit (56) is set.
func (o *Object) IsHalted() bool {
	return o.statusByte()&statusHaltedBit != 0
}

// IsRestarting reports whether the restart-pending bit (57) is set.
func (o *Object) IsRestarting() bool {
	return o.statusByte()&statusRestartingBit != 0
}

// ModifierIndex returns the current program pointer (bits [55:48], 7
// bits used, so always < 128; callers enforce < ProgramLength).
func (o *Object) ModifierIndex() uint8 {
	return uint8((o.ModifierInfo >> 48) & modifierInfoPtrMask)
}

// ScheduledTick returns the tick at which the pending modifier was
// scheduled (bits [47:0]).
func (o *Object) ScheduledTick() uint64 {
	return o.ModifierInfo & modifierInfoTickMask
}

const lowOrder56Mask = (uint64(1) << 56) - 1

// Halt sets the halted bit, preserving pointer and scheduled tick
// (spec §4.2 halt()).
func (o *Object) Halt() {
	o.ModifierInfo = (o.ModifierInfo & lowOrder56Mask) | (uint64(statusHaltedBit) << 56)
}

// StartNewModifier sets status=running, pointer=p, scheduled tick=counter
// (spec §4.2 start_new_modifier()).
func (o *Object) StartNewModifier(p uint8, counter uint64) {
	o.ModifierInfo = (uint64(p&modifierInfoPtrMaskByte) << 48) | (counter & modifierInfoTickMask)
}

const modifierInfoPtrMaskByte = 0x7f

// Restart sets status=running, pointer=0, scheduled tick=counter
// (spec §4.2 restart()).
func (o *Object) Restart(counter uint64) {
	o.ModifierInfo = counter & modifierInfoTickMask
}

// MarkRestartPending sets bit 57 without clearing bit 56 (spec §4.2:
// "setting restart-pending does not clear halted"). The next tick
// firing is responsible for performing the true restart.
func (o *Object) MarkRestartPending() {
	o.ModifierInfo |= uint64(statusRestartingBit) << 56
}

// ReplaceProgram overwrites the card program in place (used by
// RestartObject in both the halted and running branches).
func (o *Object) ReplaceProgram(cards [ProgramLength]uint8) {
	o.Cards = cards
}

// ToData appends modifier_info, the packed attribute word, and the
// packed card-program word, matching the player-blob object layout
// (spec §6).
func (o Object) ToData(w *codec.Writer) {
	w.Push(o.ModifierInfo)
	w.Push(uint64(o.Attributes[0]) |
		uint64(o.Attributes[1])<<16 |
		uint64(o.Attributes[2])<<32 |
		uint64(o.Attributes[3])<<48)
	var cardBytes [8]byte
	copy(cardBytes[:], o.Cards[:])
	w.Push(codec.PackBytesLE(cardBytes[:]))
}

// FromData is the inverse of ToData.
func FromData(r *codec.Reader) (Object, error) {
	modifierInfo, err := r.Next()
	if err != nil {
		return Object{}, err
	}
	attrWord, err := r.Next()
	if err != nil {
		return Object{}, err
	}
	cardWord, err := r.Next()
	if err != nil {
		return Object{}, err
	}
	bytes := codec.UnpackBytesLE(cardWord)
	var cards [ProgramLength]uint8
	copy(cards[:], bytes[:])
	return Object{
		ModifierInfo: modifierInfo,
		Attributes: [4]uint16{
			uint16(attrWord & 0xffff),
			uint16((attrWord >> 16) & 0xffff),
			uint16((attrWord >> 32) & 0xffff),
			uint16((attrWord >> 48) & 0xffff),
		},
		Cards: cards,
	}, nil
}

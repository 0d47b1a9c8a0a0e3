// Package voice holds the synthesis capacity of the ensemble: one Tonal voice
// per FM channel, an optional Speech voice spread over several modules, and
// the Allocator that owns them all.
package voice

import (
	"github.com/46nori/FMSynthEnsemble/opn"
)

// Type separates the two kinds of voice a channel can ask for.
type Type int

const (
	TypeTonal Type = iota
	TypeSpeech
)

func (t Type) String() string {
	if t == TypeSpeech {
		return "CSM "
	}
	return "Note"
}

const (
	// AnyModule in an allocation request means no module preference.
	AnyModule = -1
	// Unassigned is the channel of a free voice.
	Unassigned = -1

	DefaultVolume = 100
)

// Effect is the per-channel bundle copied into a voice at note-on and pushed
// live when it changes.
type Effect struct {
	Bend         int16 // -8192..8191
	BendRange    uint8 // semitones, 0 disables bending
	VibratoRate  uint8
	VibratoDepth uint8
	CoarseTune   int8
}

// DefaultEffect returns the power-on effect: +/-2 semitone bend range.
func DefaultEffect() Effect {
	return Effect{BendRange: 2}
}

// Voice is one unit of synthesis capacity. Only this package implements it;
// channel ownership is changed exclusively by the Allocator.
type Voice interface {
	ID() int
	Type() Type
	ModuleID() int
	Channel() int
	IsFree() bool
	Key() int
	NoteOnCount() int
	DecrementNoteOnCount() int
	SetNoteOnCount(n int)

	Reset()
	SetProgram(program int32)
	SetVolume(vol int)
	NoteOn(key int, program int32, volume int, e Effect, lr opn.Output)
	NoteOff()
	SetPitch(e Effect)
	SetModulation(e Effect, lr opn.Output)
	String() string

	setChannel(ch int)
}

// state is the bookkeeping shared by every voice kind.
type state struct {
	id      int
	typ     Type
	channel int
	key     int
	program int32 // bank MSB<<24 | bank LSB<<16 | program
	volume  int
	noteOns int
}

func newState(id int, t Type) state {
	return state{id: id, typ: t, channel: Unassigned, key: -1, program: -1, volume: -1}
}

func (s *state) ID() int { return s.id }
func (s *state) Type() Type { return s.typ }
func (s *state) Channel() int { return s.channel }
func (s *state) IsFree() bool { return s.channel == Unassigned }
func (s *state) Key() int { return s.key }
func (s *state) NoteOnCount() int { return s.noteOns }

// SetNoteOnCount restores the overlap count after a retrigger.
func (s *state) SetNoteOnCount(n int) { s.noteOns = n }

func (s *state) setChannel(ch int) { s.channel = ch }

// DecrementNoteOnCount drops one overlapping note-on and returns how many
// remain. It never goes below zero.
func (s *state) DecrementNoteOnCount() int {
	if s.noteOns--; s.noteOns < 0 {
		s.noteOns = 0
	}
	return s.noteOns
}

func (s *state) clear() {
	s.channel = Unassigned
	s.program = -1
	s.volume = -1
	s.key = -1
	s.noteOns = 0
}

func clampVolume(vol int) int {
	if vol < 0 {
		return 0
	}
	if vol > 127 {
		return 127
	}
	return vol
}

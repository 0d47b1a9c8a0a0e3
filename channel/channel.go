package channel

import (
	"fmt"

	"github.com/46nori/FMSynthEnsemble/opn"
	"github.com/46nori/FMSynthEnsemble/voice"
)

// Result is the outcome of a note event.
type Result int

const (
	Fail Result = -1 // no voice, or key not sounding
	Off  Result = 0  // released (or held by the sustain pedal)
	On   Result = 1  // sounding
)

func (r Result) String() string {
	switch r {
	case On:
		return "on"
	case Off:
		return "off"
	}
	return "fail"
}

const (
	// Count is the number of MIDI channels.
	Count = 16
	// PercussionNumber is the GM rhythm channel (MIDI channel 10).
	PercussionNumber = 9

	unset = -1
	// speechBank is the bank select MSB that switches a melodic channel to
	// the speech voice.
	speechBank = 0x03
)

// Channel is one MIDI channel as seen by the processor. Every channel also
// hands idle voices back to the allocator.
type Channel interface {
	voice.Reclaimer

	Number() int
	NoteOn(key, velocity int) Result
	NoteOff(key int) Result
	SetProgram(no uint8)
	Program() int32
	SetVolume(vol int)
	Hold1(val int)
	PitchBend(val int16)
	NRPNMSB(val uint8)
	NRPNLSB(val uint8)
	RPNMSB(val uint8)
	RPNLSB(val uint8)
	DataEntryMSB(val uint8)
	DataEntryLSB(val uint8)
	SetModulation(val uint8)
	SetPan(val uint8)
	BankSelectMSB(val uint8)
	BankSelectLSB(val uint8)
	Reset()
	Stats() string
	String() string
}

// base holds the controller state shared by both channel kinds.
type base struct {
	no      int
	program int32 // bank MSB<<24 | bank LSB<<16 | program
	volume  int
	pan     int
	lr      opn.Output
	effect  voice.Effect
	hold1   bool

	rpnMSB, rpnLSB   uint8
	nrpnMSB, nrpnLSB uint8
	bankMSB          uint8

	relSuccess int
	relFail    int
}

func newBase(no int) base {
	if no < 0 || no >= Count {
		panic(fmt.Sprintf("channel: number %d out of range", no))
	}
	b := base{no: no}
	b.reset()
	return b
}

func (b *base) reset() {
	b.effect = voice.DefaultEffect()
	b.lr = defaultOutput(b.no)
	b.volume = unset
	b.pan = unset
	b.hold1 = false
	b.rpnMSB, b.rpnLSB = 127, 127
	b.nrpnMSB, b.nrpnLSB = 127, 127
	b.program = 0
	b.bankMSB = 0
	b.relSuccess = 0
	b.relFail = 0
}

// defaultOutput routes odd channel numbers right and even ones left.
func defaultOutput(no int) opn.Output {
	if no%2 != 0 {
		return opn.OutputRight
	}
	return opn.OutputLeft
}

func (b *base) Number() int { return b.no }

// SetProgram replaces the program number, keeping the bank.
func (b *base) SetProgram(no uint8) {
	b.program = int32(uint32(b.program)&0xffff0000 | uint32(no))
}

func (b *base) Program() int32 { return b.program }

func (b *base) Hold1(val int) { b.hold1 = val >= 64 }

func (b *base) PitchBend(val int16) { b.effect.Bend = val }

func (b *base) NRPNMSB(val uint8) { b.nrpnMSB = val }
func (b *base) NRPNLSB(val uint8) { b.nrpnLSB = val }
func (b *base) RPNMSB(val uint8) { b.rpnMSB = val }
func (b *base) RPNLSB(val uint8) { b.rpnLSB = val }

func (b *base) DataEntryMSB(val uint8) {}
func (b *base) DataEntryLSB(val uint8) {}
func (b *base) SetModulation(val uint8) {}
func (b *base) SetPan(val uint8) {}

// BankSelectMSB latches the MSB; it takes effect with the next LSB.
func (b *base) BankSelectMSB(val uint8) { b.bankMSB = val }

func (b *base) BankSelectLSB(val uint8) {
	b.program = int32(uint32(b.program)&0x0000ffff | uint32(b.bankMSB)<<24 | uint32(val)<<16)
}

// Volume returns the channel volume, or -1 when no volume has been received.
func (b *base) Volume() int { return b.volume }

// Output returns the current output routing.
func (b *base) Output() opn.Output { return b.lr }

// Effect returns the pitch and vibrato parameters applied to new notes.
func (b *base) Effect() voice.Effect { return b.effect }

// Sustained reports whether the sustain pedal is down.
func (b *base) Sustained() bool { return b.hold1 }

// ReleaseCounts returns how many reclaim requests succeeded and failed. The
// failure count also includes note-ons that found no voice.
func (b *base) ReleaseCounts() (success, failure int) {
	return b.relSuccess, b.relFail
}

// voiceVolume is the volume handed to voices; an unset channel volume keeps
// the voice default.
func (b *base) voiceVolume() int {
	if b.volume == unset {
		return voice.DefaultVolume
	}
	return b.volume
}

func (b *base) Stats() string {
	return fmt.Sprintf("CH=%02d Release Success=%d Failure=%d", b.no, b.relSuccess, b.relFail)
}

func (b *base) header() string {
	hold := 0
	if b.hold1 {
		hold = 1
	}
	return fmt.Sprintf("CH=%02d PG=%04x %04x VOL=%03d LR=%02x hold=%d ct=%2d pbs=%2d pbv=%5d",
		b.no, uint32(b.program)>>16, uint32(b.program)&0xffff, b.volume, uint8(b.lr), hold,
		b.effect.CoarseTune, b.effect.BendRange, b.effect.Bend)
}

func clamp7(v int) int {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return v
}

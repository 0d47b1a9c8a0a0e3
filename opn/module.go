// Package opn describes the capability set of the FM sound modules (YM2608 OPNA
// and YM2203 OPN) as seen by the voice core, plus the backends that carry those
// capabilities to hardware or record them for inspection.
package opn

import "fmt"

// Output selects the stereo routing of an FM channel.
type Output uint8

const (
	OutputRight Output = 0x40
	OutputLeft  Output = 0x80
	OutputBoth  Output = 0xC0
)

func (o Output) String() string {
	switch o {
	case OutputLeft:
		return "L"
	case OutputRight:
		return "R"
	case OutputBoth:
		return "LR"
	}
	return fmt.Sprintf("%02x", uint8(o))
}

// Rhythm identifies one of the six built-in percussion instruments.
// The values are the key-on bits of the rhythm section.
type Rhythm uint8

const (
	RhythmNone Rhythm = 0
	RhythmBD   Rhythm = 0x01
	RhythmSD   Rhythm = 0x02
	RhythmTOP  Rhythm = 0x04
	RhythmHH   Rhythm = 0x08
	RhythmTOM  Rhythm = 0x10
	RhythmRIM  Rhythm = 0x20
)

// Rhythms lists every playable instrument in key-on bit order.
var Rhythms = []Rhythm{RhythmBD, RhythmSD, RhythmTOP, RhythmHH, RhythmTOM, RhythmRIM}

var rhythmNames = map[Rhythm]string{
	RhythmNone: "none",
	RhythmBD:   "BD",
	RhythmSD:   "SD",
	RhythmTOP:  "TOP",
	RhythmHH:   "HH",
	RhythmTOM:  "TOM",
	RhythmRIM:  "RIM",
}

func (r Rhythm) String() string {
	if n, ok := rhythmNames[r]; ok {
		return n
	}
	return fmt.Sprintf("rhythm(%#x)", uint8(r))
}

// Kind is the chip type of a module.
type Kind string

const (
	YM2608 Kind = "YM2608"
	YM2203 Kind = "YM2203"
)

// Channels returns the number of FM channels the chip provides.
func (k Kind) Channels() int {
	switch k {
	case YM2608:
		return 6
	case YM2203:
		return 3
	}
	return 0
}

// HasRhythm reports whether the chip carries the rhythm section.
func (k Kind) HasRhythm() bool {
	return k == YM2608
}

// Envelope holds the per-operator envelope generator parameters.
type Envelope struct {
	KS uint8 // key scale
	AR uint8 // attack rate
	DR uint8 // decay rate
	SR uint8 // sustain rate
	SL uint8 // sustain level
	RR uint8 // release rate
}

// AllOperators is the operator mask for KeyOn that keys every slot.
const AllOperators uint8 = 0x0f

// Timer mode register values used by the core.
const (
	TimerReset uint8 = 0x30 // reset flags A/B, timers stopped
	TimerAOnly uint8 = 0x01 // load A
	TimerCSM   uint8 = 0x2b // load A+B, enable B flag, reset B flag
)

// StatusTimerB is the timer B overflow bit of the status register.
const StatusTimerB uint8 = 0x02

// Module is the capability set of one sound module. Implementations must not
// block; errors stay inside the backend.
type Module interface {
	ID() int
	Kind() Kind
	Init()
	Channels() int

	SetAlgorithm(ch, fb, alg uint8)
	SetTone(ch uint8, program int)
	SetToneParams(ch uint8, tone []byte)
	SetPitch(ch, semitone, octave uint8, diff int16)
	KeyOn(ch, ops uint8)
	KeyOff(ch uint8)
	SetDetuneMultiple(ch, op, dt, ml uint8)
	SetTotalLevel(ch, op, tl uint8)
	SetVolume(ch uint8, program int, tl uint8)
	SetEnvelope(ch, op uint8, env Envelope)
	SetFNumberCh3(op, hi, lo uint8)

	SetTimerA(v uint16)
	SetTimerB(v uint8)
	SetTimerMode(mode uint8)
	SetCh3Mode(mode uint8)
	ReadStatus() uint8

	LFOOn(freq uint8)
	LFOOff()
	SetLFOPMS(ch, pms uint8, lr Output)
	SetOutput(ch uint8, lr Output)

	RhythmOn(r Rhythm)
	RhythmDamp(r Rhythm)
	RhythmTotalLevel(tl uint8)
	RhythmLevel(r Rhythm, il uint8, lr Output)
}

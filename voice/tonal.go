package voice

import (
	"fmt"

	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/opn"
)

// totalLevel converts MIDI volume (0-127) to operator total level (127-0):
// y = 127 - 60.27*log(x+1)
var totalLevel = [128]uint8{
	127, 109, 98, 91, 85, 80, 76, 73, 69, 67, 64, 62, 60, 58, 56, 54, 53, 51, 50, 49, 47, 46,
	45, 44, 43, 42, 41, 40, 39, 38, 37, 36, 35, 35, 34, 33, 32, 32, 31, 30, 30, 29, 29, 28,
	27, 27, 26, 26, 25, 25, 24, 24, 23, 23, 22, 22, 21, 21, 20, 20, 19, 19, 19, 18, 18, 17,
	17, 17, 16, 16, 15, 15, 15, 14, 14, 14, 13, 13, 13, 12, 12, 12, 11, 11, 11, 10, 10, 10,
	10, 9, 9, 9, 8, 8, 8, 8, 7, 7, 7, 6, 6, 6, 6, 5, 5, 5, 5, 4, 4, 4,
	4, 3, 3, 3, 3, 3, 2, 2, 2, 2, 1, 1, 1, 1, 1, 0, 0, 0,
}

// bendMargin is the number of extra semitones on each side of fnum.
const bendMargin = 2

// fnum is one octave of F-numbers starting at C, with two semitones of
// margin on both ends for bend interpolation.
var fnum = [16]int{
	0x0226, // A# (-2)
	0x0247, // B  (-1)
	0x0269, // C
	0x028e, // C#
	0x02b4, // D
	0x02de, // D#
	0x0309, // E
	0x0338, // F
	0x0369, // F#
	0x039c, // G
	0x03d3, // G#
	0x040e, // A
	0x044b, // A#
	0x048d, // B
	0x04d3, // C  (+1)
	0x051c, // C# (+2)
}

// Tonal is a voice bound to one FM channel of one module.
type Tonal struct {
	state
	module opn.Module
	fmch   uint8
	bend   int16
}

// NewTonal creates the voice for channel fmch of m and loads the default
// program and volume.
func NewTonal(id int, m opn.Module, fmch int) *Tonal {
	v := &Tonal{state: newState(id, TypeTonal), module: m, fmch: uint8(fmch)}
	v.SetProgram(0)
	v.SetVolume(DefaultVolume)
	return v
}

func (v *Tonal) ModuleID() int { return v.module.ID() }

// FMChannel returns the module channel the voice drives.
func (v *Tonal) FMChannel() int { return int(v.fmch) }

func (v *Tonal) Reset() {
	v.NoteOff()
	v.clear()
	v.SetProgram(0)
	v.SetVolume(DefaultVolume)
	v.bend = 0
}

// SetProgram loads the tone only when the program changes.
func (v *Tonal) SetProgram(program int32) {
	if v.program != program {
		v.module.SetTone(v.fmch, int(program&0xff))
		v.program = program
		debug.Logv(2, "voice", "%02d P%04x:%d", v.id, program>>16, program&0xff)
	}
}

// SetVolume writes the carrier level only when the volume changes.
func (v *Tonal) SetVolume(vol int) {
	vol = clampVolume(vol)
	if v.volume != vol {
		v.module.SetVolume(v.fmch, int(v.program&0xff), totalLevel[vol])
		v.volume = vol
	}
}

func (v *Tonal) NoteOn(key int, program int32, volume int, e Effect, lr opn.Output) {
	v.SetProgram(program)
	v.SetVolume(volume) // after SetProgram, the level depends on the algorithm
	if key != v.key || e.Bend != v.bend {
		v.key = key
		v.SetPitch(e)
	}
	v.module.KeyOn(v.fmch, opn.AllOperators)
	v.SetModulation(e, lr)
	v.noteOns++
}

func (v *Tonal) NoteOff() {
	v.module.KeyOff(v.fmch)
	v.noteOns = 0
}

// SetPitch tunes the channel to the current key with e's bend applied.
func (v *Tonal) SetPitch(e Effect) {
	key := v.key - int(e.CoarseTune)
	pbs := int(e.BendRange)
	pbv := int(e.Bend)
	v.bend = e.Bend

	if pbs == 0 || pbv == 0 {
		switch {
		case key < 12:
			v.module.SetPitch(v.fmch, 0, 0, 0)
		case key > 107:
			// the upper margin extends the range to key 108
			v.module.SetPitch(v.fmch, 11, 7, int16(fnum[14]-fnum[13]))
		default:
			v.module.SetPitch(v.fmch, uint8(key%12), uint8(key/12-1), 0)
		}
		return
	}

	// reference note: the key itself for small ranges, otherwise the
	// semitone closest to the bent pitch
	pbkey := key
	if pbs > bendMargin {
		pbkey = pbv*pbs/8191 + key
	}

	var k, oct int
	switch {
	case pbkey < 12:
		k, oct = bendMargin, 0
	case pbkey > 107:
		k, oct = 11+bendMargin, 7
	default:
		k, oct = pbkey%12+bendMargin, pbkey/12-1
	}

	var diff int
	if pbs <= bendMargin {
		// interpolate up to pbs semitones around the key
		if pbv > 0 {
			diff = (fnum[k+pbs] - fnum[k]) * pbv / 8191
		} else {
			diff = (fnum[k] - fnum[k-pbs]) * pbv / 8192
		}
	} else {
		// interpolate within one semitone of pbkey
		m := 8191 / pbs
		ab := float32(pbv%m) / float32(m)
		if pbv > 0 {
			diff = int(float32(fnum[k+1]-fnum[k]) * ab)
		} else {
			diff = int(float32(fnum[k]-fnum[k-1]) * ab)
		}
	}

	v.module.SetPitch(v.fmch, uint8(k-bendMargin), uint8(oct), int16(diff))
	debug.Logv(1, "voice", "%02d PB k=%d diff=%d", v.id, pbkey, diff)
}

func (v *Tonal) SetModulation(e Effect, lr opn.Output) {
	if e.VibratoDepth == 0 {
		v.module.SetOutput(v.fmch, lr)
		v.module.LFOOff()
		return
	}
	v.module.SetLFOPMS(v.fmch, e.VibratoDepth>>4, lr)
	v.module.LFOOn(e.VibratoRate >> 4)
}

func (v *Tonal) String() string {
	return fmt.Sprintf("ID=%02d CH=%02d PG=%04x %04x VOL=%3d KEY=%3d TYPE=%s OPN=%d-%d",
		v.id, v.channel, uint32(v.program)>>16, v.program&0xffff, v.volume, v.key, v.typ,
		v.module.ID(), v.fmch)
}

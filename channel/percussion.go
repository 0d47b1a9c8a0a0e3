package channel

import (
	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/opn"
	"github.com/46nori/FMSynthEnsemble/voice"
)

const (
	firstPercussionKey = 35
	defaultRhythmLevel = 100
	defaultInstLevel   = 127
)

// percussionMap maps GM keys 35..88 onto the rhythm instruments.
var percussionMap = [54]opn.Rhythm{
	// GM1
	opn.RhythmBD,   // 35 Acoustic Bass Drum
	opn.RhythmBD,   // 36 Bass Drum 1
	opn.RhythmRIM,  // 37 Side Stick
	opn.RhythmSD,   // 38 Acoustic Snare
	opn.RhythmRIM,  // 39 Hand Clap
	opn.RhythmSD,   // 40 Electric Snare
	opn.RhythmTOM,  // 41 Low Floor Tom
	opn.RhythmHH,   // 42 Closed Hi-hat
	opn.RhythmTOM,  // 43 High Floor Tom
	opn.RhythmHH,   // 44 Pedal Hi-hat
	opn.RhythmTOM,  // 45 Low Tom
	opn.RhythmHH,   // 46 Open Hi-hat
	opn.RhythmTOM,  // 47 Low-Mid Tom
	opn.RhythmTOM,  // 48 Hi-Mid Tom
	opn.RhythmTOP,  // 49 Crash Cymbal 1
	opn.RhythmTOM,  // 50 High Tom
	opn.RhythmTOP,  // 51 Ride Cymbal 1
	opn.RhythmTOP,  // 52 Chinese Cymbal
	opn.RhythmTOP,  // 53 Ride Bell
	opn.RhythmNone, // 54 Tambourine
	opn.RhythmTOP,  // 55 Splash Cymbal
	opn.RhythmNone, // 56 Cowbell
	opn.RhythmTOP,  // 57 Crash Cymbal 2
	opn.RhythmNone, // 58 Vibraslap
	opn.RhythmTOP,  // 59 Ride Cymbal 2
	opn.RhythmTOM,  // 60 Hi Bongo
	opn.RhythmTOM,  // 61 Low Bongo
	opn.RhythmTOM,  // 62 Mute Hi Conga
	opn.RhythmTOM,  // 63 Open Hi Conga
	opn.RhythmTOM,  // 64 Low Conga
	opn.RhythmTOM,  // 65 High Timbale
	opn.RhythmTOM,  // 66 Low Timbale
	opn.RhythmNone, // 67 High Agogo
	opn.RhythmNone, // 68 Low Agogo
	opn.RhythmNone, // 69 Cabasa
	opn.RhythmNone, // 70 Maracas
	opn.RhythmNone, // 71 Short Whistle
	opn.RhythmNone, // 72 Long Whistle
	opn.RhythmNone, // 73 Short Guiro
	opn.RhythmNone, // 74 Long Guiro
	opn.RhythmNone, // 75 Claves
	opn.RhythmNone, // 76 Hi Wood Block
	opn.RhythmNone, // 77 Low Wood Block
	opn.RhythmNone, // 78 Mute Cuica
	opn.RhythmNone, // 79 Open Cuica
	opn.RhythmNone, // 80 Mute Triangle
	opn.RhythmNone, // 81 Open Triangle
	// GM2
	opn.RhythmHH,   // 82 Shaker
	opn.RhythmNone, // 83 Jingle Bell
	opn.RhythmNone, // 84 Bell Tree
	opn.RhythmNone, // 85 Castanets
	opn.RhythmNone, // 86 Mute Surdo
	opn.RhythmNone, // 87 Open Surdo
	opn.RhythmNone, // 88
}

// rtlVolume converts MIDI volume to rhythm total level (0-63):
// y = 29.90*log10(x+1).
var rtlVolume = [128]uint8{
	0, 9, 14, 18, 21, 23, 25, 27, 29, 30, 31, 32, 33, 34, 35, 36, 37, 38, 38, 39, 40, 40,
	41, 41, 42, 42, 43, 43, 44, 44, 45, 45, 45, 46, 46, 47, 47, 47, 48, 48, 48, 49, 49, 49,
	49, 50, 50, 50, 51, 51, 51, 51, 52, 52, 52, 52, 53, 53, 53, 53, 53, 54, 54, 54, 54, 54,
	55, 55, 55, 55, 55, 56, 56, 56, 56, 56, 56, 57, 57, 57, 57, 57, 57, 58, 58, 58, 58, 58,
	58, 58, 59, 59, 59, 59, 59, 59, 59, 60, 60, 60, 60, 60, 60, 60, 60, 61, 61, 61, 61, 61,
	61, 61, 61, 62, 62, 62, 62, 62, 62, 62, 62, 62, 62, 63, 63, 63, 63, 63,
}

// ilVolume converts velocity to instrument level (0-31):
// y = 14.71*log10(x+1).
var ilVolume = [128]uint8{
	0, 4, 7, 9, 10, 11, 12, 13, 14, 15, 15, 16, 16, 17, 17, 18, 18, 18, 19, 19, 19, 20,
	20, 20, 21, 21, 21, 21, 22, 22, 22, 22, 22, 23, 23, 23, 23, 23, 23, 24, 24, 24, 24, 24,
	24, 24, 25, 25, 25, 25, 25, 25, 25, 25, 26, 26, 26, 26, 26, 26, 26, 26, 26, 27, 27, 27,
	27, 27, 27, 27, 27, 27, 27, 27, 28, 28, 28, 28, 28, 28, 28, 28, 28, 28, 28, 28, 29, 29,
	29, 29, 29, 29, 29, 29, 29, 29, 29, 29, 29, 29, 29, 30, 30, 30, 30, 30, 30, 30, 30, 30,
	30, 30, 30, 30, 30, 30, 30, 30, 31, 31, 31, 31, 31, 31, 31, 31, 31, 31,
}

// Instrument returns the rhythm instrument for a GM percussion key, or
// RhythmNone.
func Instrument(key int) opn.Rhythm {
	i := key - firstPercussionKey
	if i < 0 || i >= len(percussionMap) {
		return opn.RhythmNone
	}
	return percussionMap[i]
}

// Percussion plays GM drum keys on the rhythm section of one module. It owns
// no voices.
type Percussion struct {
	base
	module opn.Module
}

func NewPercussion(no int, m opn.Module) *Percussion {
	c := &Percussion{base: newBase(no), module: m}
	c.lr = opn.OutputBoth
	c.initVolume(defaultRhythmLevel, defaultInstLevel)
	return c
}

// Module returns the module whose rhythm section the channel drives.
func (c *Percussion) Module() opn.Module { return c.module }

func (c *Percussion) Reset() {
	c.base.reset()
	c.lr = opn.OutputBoth
	c.initVolume(defaultRhythmLevel, defaultInstLevel)
}

func (c *Percussion) initVolume(rtl, il int) {
	c.SetVolume(rtl)
	level := ilVolume[clamp7(il)]
	for _, r := range opn.Rhythms {
		c.module.RhythmLevel(r, level, c.lr)
	}
}

// SetVolume sets the rhythm total level when the volume changes.
func (c *Percussion) SetVolume(vol int) {
	vol = clamp7(vol)
	if c.volume == vol {
		return
	}
	c.volume = vol
	c.module.RhythmTotalLevel(rtlVolume[vol])
}

func (c *Percussion) NoteOn(key, velocity int) Result {
	r := Instrument(key)
	if r == opn.RhythmNone {
		debug.Logv(1, "ch", "%02d ?%02d", c.no, key)
		return Fail
	}
	debug.Logv(1, "ch", "%02d *%02d", c.no, key)
	if velocity == 0 {
		c.module.RhythmDamp(r)
		return Off
	}
	c.module.RhythmLevel(r, ilVolume[clamp7(velocity)], c.lr)
	c.module.RhythmOn(r)
	return On
}

func (c *Percussion) NoteOff(key int) Result {
	return c.NoteOn(key, 0)
}

// Release never gives up a voice.
func (c *Percussion) Release(moduleHint int, t voice.Type) (int, bool) {
	return -1, false
}

func (c *Percussion) ReleaseAll() {}

func (c *Percussion) String() string {
	return c.header() + "\n  TYPE=RTM\n"
}

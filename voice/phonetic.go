package voice

import (
	"math"
	"strings"
)

// MaxOperators is the number of operator slots stored per frame; four
// docked modules with four channel-3 operators each.
const MaxOperators = 16

// LastFrameFlag marks the final frame of an utterance in Frame.Pitch.
const LastFrameFlag uint16 = 0x8000

// Frame is one step of a speech utterance.
type Frame struct {
	Pitch uint16               // timer A value, LastFrameFlag on the final frame
	TL    [MaxOperators]uint8  // operator attenuation
	Freq  [MaxOperators]uint16 // operator frequency in Hz
}

// Utterance locates one word inside the frame table. The frame at
// Start+Length is the last one played.
type Utterance struct {
	Name   string
	Start  int
	Length int
}

// Phonetics is the fixed frame table played by the speech voice.
type Phonetics struct {
	Frames     []Frame
	Utterances []Utterance
}

// Utterance selects the word for a MIDI key.
func (p *Phonetics) Utterance(key int) Utterance {
	n := len(p.Utterances)
	return p.Utterances[((key%n)+n)%n]
}

type phoneme struct {
	formant [4]float64 // Hz
	amp     float64    // 0..1
}

// Formant targets (F1..F4) for the phonemes the table is built from.
var phonemes = map[byte]phoneme{
	'a': {[4]float64{730, 1090, 2440, 3400}, 1.0},
	'e': {[4]float64{530, 1840, 2480, 3500}, 0.95},
	'i': {[4]float64{270, 2290, 3010, 3500}, 0.9},
	'o': {[4]float64{570, 840, 2410, 3400}, 1.0},
	'u': {[4]float64{300, 870, 2240, 3400}, 0.9},
	'n': {[4]float64{280, 1700, 2500, 3400}, 0.5},
	'l': {[4]float64{360, 1300, 2700, 3500}, 0.6},
	's': {[4]float64{1200, 1700, 1720, 1720}, 0.25},
	'c': {[4]float64{1000, 1600, 1720, 1720}, 0.3}, // ch
	't': {[4]float64{400, 1600, 1720, 1720}, 0.35},
	'p': {[4]float64{300, 900, 1720, 1720}, 0.3},
	'k': {[4]float64{350, 1500, 1720, 1720}, 0.35},
	'-': {[4]float64{500, 1500, 2500, 3500}, 0},
}

// formantWeight scales the amplitude of the higher formants.
var formantWeight = [4]float64{1.0, 0.7, 0.45, 0.25}

// words spells each utterance with the phoneme alphabet above, in the
// order the utterances appear in the table.
var words = []struct {
	name, spell string
	start, len  int
}{
	{"T", "ti", 3, 27},
	{"E", "i", 27, 27},
	{"C", "si", 50, 27},
	{"H", "eic", 78, 27},
	{"N", "en", 95, 27},
	{"O", "ou", 130, 27},
	{"P", "pi", 158, 25},
	{"O", "ou", 182, 27},
	{"L", "el", 210, 24},
	{"I", "ai", 229, 27},
	{"S", "es", 256, 27},
	{"TOKIO", "tokio", 340, 48},
}

const (
	// timerATick is the timer A resolution in seconds.
	timerATick = 9e-6
	// maxFormant is the highest frequency the block search can encode.
	maxFormant = 2047 * 32 / 38
)

// DefaultPhonetics synthesizes the built-in word table. Words overlap like
// slices of one continuous recording: later words overwrite the tail of the
// previous one.
func DefaultPhonetics() *Phonetics {
	size := 0
	for _, w := range words {
		if end := w.start + w.len + 1; end > size {
			size = end
		}
	}

	p := &Phonetics{Frames: make([]Frame, size)}
	for i := range p.Frames {
		p.Frames[i] = silentFrame()
	}
	for _, w := range words {
		p.Utterances = append(p.Utterances, Utterance{Name: w.name, Start: w.start, Length: w.len})
		synthesize(p.Frames[w.start:w.start+w.len+1], w.spell)
	}
	return p
}

func silentFrame() Frame {
	f := Frame{Pitch: pitchToTimerA(120)}
	for i := range f.TL {
		f.TL[i] = 0x7f
	}
	return f
}

// synthesize fills frames with a falling pitch contour and formant
// trajectories interpolated between the phonemes of spell.
func synthesize(frames []Frame, spell string) {
	seq := []byte(strings.TrimSpace(spell))
	n := len(frames)
	for i := range frames {
		pos := float64(i) / float64(n) * float64(len(seq))
		a := int(pos)
		if a >= len(seq) {
			a = len(seq) - 1
		}
		b := a + 1
		if b >= len(seq) {
			b = a
		}
		frac := pos - float64(a)
		pa, pb := phonemes[seq[a]], phonemes[seq[b]]

		// fade in/out over three frames
		env := 1.0
		if i < 3 {
			env = float64(i+1) / 4
		} else if n-i <= 3 {
			env = float64(n-i) / 4
		}
		amp := (pa.amp + (pb.amp-pa.amp)*frac) * env

		f0 := 140 - 40*float64(i)/float64(n)
		f := Frame{Pitch: pitchToTimerA(f0)}
		for op := 0; op < MaxOperators; op++ {
			formant := op % 4
			dock := op / 4
			hz := pa.formant[formant] + (pb.formant[formant]-pa.formant[formant])*frac
			hz *= 1 + 0.004*float64(dock)
			f.Freq[op] = uint16(math.Min(hz, maxFormant))
			f.TL[op] = attenuation(amp * formantWeight[formant])
		}
		frames[i] = f
	}
	frames[n-1].Pitch |= LastFrameFlag
}

// pitchToTimerA converts a fundamental in Hz to a 10-bit timer A value.
func pitchToTimerA(hz float64) uint16 {
	ticks := math.Round(1 / (hz * timerATick))
	if ticks > 1024 {
		ticks = 1024
	}
	return uint16(1024 - ticks)
}

// attenuation converts a linear amplitude to total level (0.75 dB steps).
func attenuation(a float64) uint8 {
	if a <= 0 {
		return 0x7f
	}
	tl := math.Round(-20 * math.Log10(a) / 0.75)
	if tl > 0x7f {
		return 0x7f
	}
	if tl < 0 {
		return 0
	}
	return uint8(tl)
}

package monitor

import (
	"sync/atomic"

	"github.com/46nori/FMSynthEnsemble/debug"
)

// Flags are the mode settings the console changes without going through
// the queue. They are read by the MIDI loop on every message.
type Flags struct {
	midiMode atomic.Bool
}

// NewFlags starts with MIDI processing on.
func NewFlags() *Flags {
	f := &Flags{}
	f.midiMode.Store(true)
	return f
}

// MidiMode reports whether incoming MIDI is processed.
func (f *Flags) MidiMode() bool { return f.midiMode.Load() }

func (f *Flags) SetMidiMode(on bool) { f.midiMode.Store(on) }

// Level is the diagnostic verbosity, shared with the debug log.
func (f *Flags) Level() int { return debug.Level() }

func (f *Flags) SetLevel(n int) { debug.SetLevel(n) }

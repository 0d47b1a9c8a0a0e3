package voice

import (
	"fmt"
	"time"

	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/opn"
)

// speechChannel is the FM channel (CH3) that runs in CSM mode on every dock.
const speechChannel = 2

// csmEnvelope makes every key-on from timer A restart the operators at full
// level immediately.
var csmEnvelope = opn.Envelope{KS: 0x00, AR: 0x1f, DR: 0x1f, SR: 0x1f, SL: 0x00, RR: 0x0a}

// SpeechState is the progress of the frame scheduler.
type SpeechState int

const (
	SpeechIdle SpeechState = iota
	SpeechPlaying
	SpeechLastFrame
)

func (s SpeechState) String() string {
	switch s {
	case SpeechPlaying:
		return "playing"
	case SpeechLastFrame:
		return "last-frame"
	}
	return "idle"
}

// SpeechOptions configures the speech voice.
type SpeechOptions struct {
	TimerModule int           // index into modules of the module whose timer B paces frames
	Operators   int           // operator slots used, 4..16
	FramePeriod time.Duration // time between frames
	Phonetics   *Phonetics    // nil selects DefaultPhonetics
}

// Speech plays fixed utterances by rewriting the channel-3 operators of up
// to four docked modules once per frame. Frames advance on timer B overflow,
// delivered to Advance.
type Speech struct {
	state
	modules     []opn.Module
	timerModule int
	operators   int
	docks       int
	period      time.Duration
	table       *Phonetics

	frame     int
	lastFrame int
	isLast    bool
	armed     bool
	played    uint64
	started   uint64
}

// NewSpeech builds the speech voice over modules. Call Init before use.
func NewSpeech(id int, modules []opn.Module, opts SpeechOptions) *Speech {
	if len(modules) == 0 {
		panic("voice: speech voice needs at least one module")
	}
	ops := opts.Operators
	if ops < 4 {
		ops = 4
	}
	if ops > MaxOperators {
		ops = MaxOperators
	}
	docks := (ops + 3) / 4
	tm := opts.TimerModule
	if tm < 0 || tm >= len(modules) {
		tm = 0
	}
	if docks < tm+1 {
		docks = tm + 1
	}
	if docks > len(modules) {
		docks = len(modules)
	}
	period := opts.FramePeriod
	if period <= 0 {
		period = DefaultFramePeriod
	}
	table := opts.Phonetics
	if table == nil {
		table = DefaultPhonetics()
	}

	v := &Speech{
		state:       newState(id, TypeSpeech),
		modules:     modules,
		timerModule: tm,
		operators:   ops,
		docks:       docks,
		period:      period,
		table:       table,
	}
	v.SetProgram(0)
	v.SetVolume(DefaultVolume)
	return v
}

// DefaultFramePeriod is the frame rate of the built-in word table.
const DefaultFramePeriod = 10 * time.Millisecond

// TimerBValue returns the timer B load value for a frame period.
func TimerBValue(period time.Duration) uint8 {
	ms := float64(period) / float64(time.Millisecond)
	v := 256 - 125*ms/36
	if v < 0 {
		v = 0
	}
	return uint8(v)
}

// Init puts channel 3 of every module into CSM mode and loads the frame
// timer.
func (v *Speech) Init() {
	for _, m := range v.modules {
		initCh3(m)
	}
	v.modules[v.timerModule].SetTimerB(TimerBValue(v.period))
}

func initCh3(m opn.Module) {
	m.SetTimerMode(opn.TimerReset)
	m.SetCh3Mode(2)
	m.KeyOff(speechChannel)
	m.SetAlgorithm(speechChannel, 0, 7)
	for op := uint8(0); op < 4; op++ {
		m.SetDetuneMultiple(speechChannel, op, 0, 1)
		m.SetTotalLevel(speechChannel, op, 0x7f)
		m.SetEnvelope(speechChannel, op, csmEnvelope)
		m.SetFNumberCh3(op, 0, 0)
	}
	m.SetOutput(speechChannel, opn.OutputBoth)
}

func (v *Speech) ModuleID() int { return v.modules[0].ID() }

// Docks returns how many modules take part in playback.
func (v *Speech) Docks() int { return v.docks }

// Period returns the frame period.
func (v *Speech) Period() time.Duration { return v.period }

// Phonetics returns the frame table being played.
func (v *Speech) Phonetics() *Phonetics { return v.table }

// Reset stops any utterance in flight and restores the power-on state.
func (v *Speech) Reset() {
	v.NoteOff()
	v.clear()
	v.Stop()
	v.SetProgram(0)
	v.SetVolume(DefaultVolume)
	v.frame = 0
	v.lastFrame = 0
	v.isLast = false
}

func (v *Speech) SetProgram(program int32) { v.program = program }
func (v *Speech) SetVolume(vol int) { v.volume = clampVolume(vol) }

// SetPitch is a no-op: utterances carry their own pitch contour.
func (v *Speech) SetPitch(e Effect) {}

func (v *Speech) NoteOn(key int, program int32, volume int, e Effect, lr opn.Output) {
	v.key = key
	v.SetProgram(program)
	v.SetVolume(volume)
	v.update(true)
	v.SetModulation(e, lr)
	v.noteOns++
}

// NoteOff only clears the overlap count; a started utterance always plays
// to its last frame.
func (v *Speech) NoteOff() {
	v.noteOns = 0
}

func (v *Speech) SetModulation(e Effect, lr opn.Output) {
	for _, m := range v.modules {
		m.SetOutput(speechChannel, lr)
	}
}

// State reports the scheduler progress.
func (v *Speech) State() SpeechState {
	switch {
	case !v.armed:
		return SpeechIdle
	case v.isLast:
		return SpeechLastFrame
	}
	return SpeechPlaying
}

// Frame returns the index of the next frame to be pushed.
func (v *Speech) Frame() int { return v.frame }

// Played returns the number of frames pushed since start-up.
func (v *Speech) Played() uint64 { return v.played }

// Started returns the number of utterances begun since start-up.
func (v *Speech) Started() uint64 { return v.started }

// Advance handles one timer B overflow. After the final frame it disarms the
// timer instead of pushing another frame. Ticks that arrive while idle are
// ignored.
func (v *Speech) Advance() {
	switch {
	case !v.armed:
		return
	case v.isLast:
		v.modules[v.timerModule].SetTimerMode(opn.TimerReset)
		v.isLast = false
		v.armed = false
		v.frame = 0
		debug.Logv(1, "csm", "utterance done")
	default:
		v.update(false)
	}
}

// FrameOver reports whether timer B of the pacing module has overflowed.
func (v *Speech) FrameOver() bool {
	return v.modules[v.timerModule].ReadStatus()&opn.StatusTimerB != 0
}

// Stop silences channel 3 and stops the timers on every module.
func (v *Speech) Stop() {
	for _, m := range v.modules {
		m.KeyOff(speechChannel)
		m.SetTimerMode(opn.TimerReset)
	}
	v.armed = false
	v.isLast = false
}

// update pushes the current frame to every dock and re-arms the timers.
func (v *Speech) update(first bool) {
	if first {
		u := v.table.Utterance(v.key)
		v.frame = u.Start
		v.lastFrame = u.Start + u.Length
		v.isLast = false
		v.started++
		debug.Logv(1, "csm", "start %s frames %d-%d", u.Name, v.frame, v.lastFrame)
	}
	if v.frame >= len(v.table.Frames) {
		v.frame = len(v.table.Frames) - 1
		v.lastFrame = v.frame
	}

	f := &v.table.Frames[v.frame]
	pitch := f.Pitch
	if v.frame == v.lastFrame {
		pitch &^= LastFrameFlag
		v.isLast = true
	}

	for d := 0; d < v.docks; d++ {
		m := v.modules[d]
		m.SetTimerA(pitch)
		for op := 0; op < 4; op++ {
			n := d*4 + op
			if n >= v.operators {
				break
			}
			m.SetTotalLevel(speechChannel, uint8(op), f.TL[n])
			fn := BlockFNumber(f.Freq[n])
			m.SetFNumberCh3(uint8(op), uint8(fn>>8), uint8(fn))
		}
	}

	for d := 0; d < v.docks; d++ {
		if d == v.timerModule {
			v.modules[d].SetTimerMode(opn.TimerCSM)
		} else {
			v.modules[d].SetTimerMode(opn.TimerAOnly)
		}
	}

	v.frame++
	v.armed = true
	v.played++
}

// BlockFNumber encodes hz as block<<11 | F-number, choosing the largest
// block (5 down to 0) that keeps the F-number under 2048. Frequencies that do
// not fit encode as 0.
func BlockFNumber(hz uint16) uint16 {
	for blk := 5; blk >= 0; blk-- {
		f := (38 * uint32(hz)) >> blk
		if f < 2048 {
			return uint16((blk<<11)|int(f)) & 0x3fff
		}
	}
	return 0
}

func (v *Speech) String() string {
	return fmt.Sprintf("ID=%02d CH=%02d PG=%04x %04x VOL=%3d KEY=%3d TYPE=%s DOCKS=%d %s",
		v.id, v.channel, uint32(v.program)>>16, v.program&0xffff, v.volume, v.key, v.typ,
		v.docks, v.State())
}

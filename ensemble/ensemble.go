// Package ensemble builds the voice topology over a set of sound modules
// and runs the loop that feeds MIDI, console commands, frame ticks and
// front-panel input into it.
package ensemble

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/46nori/FMSynthEnsemble/channel"
	"github.com/46nori/FMSynthEnsemble/config"
	"github.com/46nori/FMSynthEnsemble/midi"
	"github.com/46nori/FMSynthEnsemble/monitor"
	"github.com/46nori/FMSynthEnsemble/opn"
	"github.com/46nori/FMSynthEnsemble/voice"
)

const (
	speechChannel = 2 // FM channel reserved on every module for speech
	queueDepth    = 16
	timerPolls    = 4 // overflow flag reads per frame period
)

// Options describes the ensemble to build.
type Options struct {
	Modules      []opn.Module
	RhythmModule int // index into Modules
	Speech       bool
	SpeechOpts   voice.SpeechOptions
	Enabled      uint16

	// HardwareTimer paces speech frames by polling the timer B overflow
	// flag of the pacing module instead of trusting the host clock.
	HardwareTimer bool

	// Report receives console output (dumps, statistics). Nil discards it.
	Report func(string)
	Logger *slog.Logger
}

// OptionsFromConfig maps a validated config onto modules built from it.
func OptionsFromConfig(cfg *config.Config, modules []opn.Module) Options {
	period := time.Duration(cfg.Speech.FramePeriodMs) * time.Millisecond
	return Options{
		Modules:      modules,
		RhythmModule: cfg.RhythmModule,
		Speech:       cfg.Speech.Enabled,
		SpeechOpts: voice.SpeechOptions{
			TimerModule: cfg.Speech.TimerModule,
			Operators:   cfg.Speech.Operators,
			FramePeriod: period,
		},
		Enabled: cfg.EnabledChannels,
	}
}

// Ensemble owns the allocator, the channels and the processor. Apart from
// Snapshot, Queue, Flags and AttachPanel, its methods belong to the
// goroutine running Run.
type Ensemble struct {
	modules  []opn.Module
	alloc    *voice.Allocator
	channels []channel.Channel
	proc     *midi.Processor
	speech   *voice.Speech
	clock    *voice.FrameClock
	hwTimer  bool

	queue *monitor.Queue
	flags *monitor.Flags

	panel   *midi.Panel
	panelCh chan midi.Controller

	report func(string)
	logger *slog.Logger

	noteOn  atomic.Uint32
	enabled atomic.Uint32
	ignored atomic.Uint64
}

// Build initializes every module and creates the voices and channels.
//
// Voices are created module by module and FM channel by FM channel. With
// speech enabled, FM channel 2 of each module is left to the speech voice,
// which is created last. Channel 9 plays the rhythm section of the rhythm
// module; when that module has none, the first module that does is used,
// and failing that a silent stand-in.
func Build(opts Options) *Ensemble {
	if len(opts.Modules) == 0 {
		panic("ensemble: no modules")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	report := opts.Report
	if report == nil {
		report = func(string) {}
	}

	e := &Ensemble{
		modules: opts.Modules,
		alloc:   voice.NewAllocator(),
		queue:   monitor.NewQueue(queueDepth),
		flags:   monitor.NewFlags(),
		panelCh: make(chan midi.Controller, 4),
		report:  report,
		logger:  logger,
	}

	for _, m := range opts.Modules {
		m.Init()
		for ch := 0; ch < m.Channels(); ch++ {
			if opts.Speech && ch == speechChannel {
				continue
			}
			e.alloc.Add(voice.NewTonal(e.alloc.Len(), m, ch))
		}
	}
	if opts.Speech {
		e.speech = voice.NewSpeech(e.alloc.Len(), opts.Modules, opts.SpeechOpts)
		e.speech.Init()
		e.alloc.Add(e.speech)
		period := e.speech.Period()
		if opts.HardwareTimer {
			period /= timerPolls
			e.hwTimer = true
		}
		e.clock = voice.NewFrameClock(period)
	}

	rhythm := rhythmModule(opts.Modules, opts.RhythmModule)
	if rhythm == nil {
		logger.Warn("no module with a rhythm section, percussion is silent")
		rhythm = opn.NewRecorder(-1, opn.YM2608, opn.NewRingJournal(1))
	}

	e.channels = make([]channel.Channel, channel.Count)
	for i := range e.channels {
		if i == channel.PercussionNumber {
			e.channels[i] = channel.NewPercussion(i, rhythm)
		} else {
			c := channel.NewMelodic(i, e.alloc)
			if !opts.Speech {
				c.DisableSpeech()
			}
			e.channels[i] = c
		}
		e.alloc.Register(i, e.channels[i])
	}

	e.proc = midi.NewProcessor(e.channels, e.alloc)
	e.proc.EnableChannels(opts.Enabled)
	e.proc.OnDump(func() { e.report(e.fullDump()) })
	e.enabled.Store(uint32(opts.Enabled))

	logger.Info("ensemble built",
		"modules", len(opts.Modules), "voices", e.alloc.Len(),
		"speech", opts.Speech, "rhythm", rhythm.ID())
	return e
}

func rhythmModule(modules []opn.Module, idx int) opn.Module {
	if idx >= 0 && idx < len(modules) && modules[idx].Kind().HasRhythm() {
		return modules[idx]
	}
	for _, m := range modules {
		if m.Kind().HasRhythm() {
			return m
		}
	}
	return nil
}

func (e *Ensemble) Processor() *midi.Processor { return e.proc }

func (e *Ensemble) Allocator() *voice.Allocator { return e.alloc }

func (e *Ensemble) Channels() []channel.Channel { return e.channels }

// Speech returns the speech voice, or nil when speech is disabled.
func (e *Ensemble) Speech() *voice.Speech { return e.speech }

// Clock returns the frame clock, or nil when speech is disabled.
func (e *Ensemble) Clock() *voice.FrameClock { return e.clock }

// Queue is the console command FIFO.
func (e *Ensemble) Queue() *monitor.Queue { return e.queue }

func (e *Ensemble) Flags() *monitor.Flags { return e.flags }

// Snapshot returns the note-on bitmap and the channel enable mask as of the
// last processed event. Safe from any goroutine.
func (e *Ensemble) Snapshot() (noteOn, enabled uint16) {
	return uint16(e.noteOn.Load()), uint16(e.enabled.Load())
}

// Ignored returns the number of messages discarded while MIDI mode was off.
func (e *Ensemble) Ignored() uint64 { return e.ignored.Load() }

package ensemble

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/46nori/FMSynthEnsemble/channel"
	"github.com/46nori/FMSynthEnsemble/config"
	"github.com/46nori/FMSynthEnsemble/midi"
	"github.com/46nori/FMSynthEnsemble/monitor"
	"github.com/46nori/FMSynthEnsemble/opn"
	"github.com/46nori/FMSynthEnsemble/voice"

	gomidi "gitlab.com/gomidi/midi/v2"
)

func recorders(j *opn.Journal, kinds ...opn.Kind) []opn.Module {
	var mods []opn.Module
	for i, k := range kinds {
		mods = append(mods, opn.NewRecorder(i, k, j))
	}
	return mods
}

func build(t *testing.T, speech bool, rhythm int, kinds ...opn.Kind) (*Ensemble, *opn.Journal) {
	t.Helper()
	j := opn.NewJournal()
	e := Build(Options{
		Modules:      recorders(j, kinds...),
		RhythmModule: rhythm,
		Speech:       speech,
		Enabled:      0xFFFF,
	})
	return e, j
}

func TestBuildTopology(t *testing.T) {
	tests := []struct {
		name   string
		speech bool
		want   []string // module-fmch of each tonal voice
	}{
		{"speech", true, []string{"0-0", "0-1", "0-3", "0-4", "0-5", "1-0", "1-1"}},
		{"no speech", false, []string{"0-0", "0-1", "0-2", "0-3", "0-4", "0-5", "1-0", "1-1", "1-2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := build(t, tt.speech, 0, opn.YM2608, opn.YM2203)
			alloc := e.Allocator()

			var got []string
			for _, v := range alloc.Voices() {
				if tv, ok := v.(*voice.Tonal); ok {
					got = append(got, fmt.Sprintf("%d-%d", tv.ModuleID(), tv.FMChannel()))
				}
			}
			if strings.Join(got, " ") != strings.Join(tt.want, " ") {
				t.Errorf("tonal voices = %v, want %v", got, tt.want)
			}

			if tt.speech {
				last := alloc.Voice(alloc.Len() - 1)
				if last.Type() != voice.TypeSpeech || e.Speech() == nil || e.Clock() == nil {
					t.Errorf("last voice %v is not the speech voice", last)
				}
			} else if e.Speech() != nil || e.Clock() != nil {
				t.Error("speech voice built while disabled")
			}
		})
	}
}

func TestBuildInitsModules(t *testing.T) {
	_, j := build(t, false, 0, opn.YM2608, opn.YM2203)
	if n := len(j.Ops("Init")); n != 2 {
		t.Errorf("Init calls = %d, want 2", n)
	}
}

func TestBuildChannels(t *testing.T) {
	e, _ := build(t, true, 0, opn.YM2608)
	for i, c := range e.Channels() {
		if c.Number() != i {
			t.Errorf("channel %d numbered %d", i, c.Number())
		}
		_, isPerc := c.(*channel.Percussion)
		if isPerc != (i == channel.PercussionNumber) {
			t.Errorf("channel %d percussion = %v", i, isPerc)
		}
	}
}

func TestBuildSpeechBankDisabled(t *testing.T) {
	e, _ := build(t, false, 0, opn.YM2608)
	e.Feed(gomidi.ControlChange(0, midi.CCBankMSB, 3))
	e.Feed(gomidi.ControlChange(0, midi.CCBankLSB, 0))

	if e.Channels()[0].(*channel.Melodic).SpeechMode() {
		t.Error("speech mode selected without a speech voice")
	}
}

func TestRhythmModuleSelection(t *testing.T) {
	tests := []struct {
		name   string
		kinds  []opn.Kind
		rhythm int
		want   int // module id receiving RhythmOn, -1 for none
	}{
		{"configured", []opn.Kind{opn.YM2608, opn.YM2608}, 1, 1},
		{"fallback to first YM2608", []opn.Kind{opn.YM2203, opn.YM2608}, 0, 1},
		{"out of range", []opn.Kind{opn.YM2608}, 5, 0},
		{"silent", []opn.Kind{opn.YM2203}, 0, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, j := build(t, false, tt.rhythm, tt.kinds...)
			j.Clear()
			status := e.Feed(gomidi.NoteOn(channel.PercussionNumber, 36, 100))

			if status != 1<<channel.PercussionNumber {
				t.Errorf("status = %#04x", status)
			}
			on := j.Ops("RhythmOn")
			switch {
			case tt.want < 0 && len(on) != 0:
				t.Errorf("silent percussion wrote %v", on)
			case tt.want >= 0 && (len(on) != 1 || on[0].Module != tt.want):
				t.Errorf("RhythmOn = %v, want module %d", on, tt.want)
			}
		})
	}
}

func TestFeedHonorsMidiMode(t *testing.T) {
	e, _ := build(t, false, 0, opn.YM2608)
	e.Flags().SetMidiMode(false)

	if status := e.Feed(gomidi.NoteOn(0, 60, 100)); status != 0 {
		t.Errorf("status = %#04x", status)
	}
	if e.Ignored() != 1 || e.Processor().Stats().Events != 0 {
		t.Error("message processed with MIDI mode off")
	}

	e.Flags().SetMidiMode(true)
	e.Feed(gomidi.NoteOn(0, 60, 100))
	if noteOn, _ := e.Snapshot(); noteOn != 1 {
		t.Errorf("snapshot note-on = %#04x", noteOn)
	}
}

func startSpeech(t *testing.T, e *Ensemble) *voice.Speech {
	t.Helper()
	e.Feed(gomidi.ControlChange(0, midi.CCBankMSB, 3))
	e.Feed(gomidi.ControlChange(0, midi.CCBankLSB, 0))
	e.Feed(gomidi.NoteOn(0, 60, 100))
	sp := e.Speech()
	if sp.State() != voice.SpeechPlaying {
		t.Fatalf("speech state = %v, want playing", sp.State())
	}
	return sp
}

func TestSpeechNoteOnRestartsFrameClock(t *testing.T) {
	e, _ := build(t, true, 0, opn.YM2608)
	e.Clock().Signal()

	sp := startSpeech(t, e)
	if sp.Started() != 1 {
		t.Errorf("utterances started = %d", sp.Started())
	}
	select {
	case <-e.Clock().C():
		t.Error("stale tick survived the start of an utterance")
	default:
	}
}

func TestSpeechFramePacing(t *testing.T) {
	tests := []struct {
		name     string
		hardware bool
		status   uint8
		advance  bool
	}{
		{"host clock", false, 0, true},
		{"timer not overflowed", true, 0, false},
		{"timer overflowed", true, opn.StatusTimerB, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mods := recorders(opn.NewJournal(), opn.YM2608)
			e := Build(Options{Modules: mods, Speech: true, Enabled: 0xFFFF, HardwareTimer: tt.hardware})

			want := e.Speech().Period()
			if tt.hardware {
				want /= timerPolls
			}
			if got := e.Clock().Period(); got != want {
				t.Errorf("clock period = %v, want %v", got, want)
			}

			sp := startSpeech(t, e)
			mods[0].(*opn.Recorder).SetStatus(tt.status)
			played := sp.Played()
			e.frameElapsed()

			if advanced := sp.Played() != played; advanced != tt.advance {
				t.Errorf("advanced = %v, want %v", advanced, tt.advance)
			}
		})
	}
}

func TestSpeechIdleIgnoresTicks(t *testing.T) {
	mods := recorders(opn.NewJournal(), opn.YM2608)
	e := Build(Options{Modules: mods, Speech: true, HardwareTimer: true})
	mods[0].(*opn.Recorder).SetStatus(opn.StatusTimerB)

	e.frameElapsed()
	if e.Speech().Played() != 0 || e.Speech().State() != voice.SpeechIdle {
		t.Error("idle speech voice advanced")
	}
}

func TestExecute(t *testing.T) {
	e, _ := build(t, true, 0, opn.YM2608, opn.YM2608)
	e.Feed(gomidi.NoteOn(3, 60, 100))

	one := e.Execute(monitor.Encode(monitor.OpDumpChannel, 3))
	if !strings.HasPrefix(one, "CH=03 ") || !strings.Contains(one, "activeQ= 1 :  0") {
		t.Errorf("channel dump = %q", one)
	}
	all := e.Execute(monitor.Encode(monitor.OpDumpChannel, monitor.AllChannels))
	if strings.Count(all, "CH=") != channel.Count || !strings.Contains(all, "TYPE=RTM") {
		t.Errorf("all-channel dump = %q", all)
	}
	if got := e.Execute(monitor.Encode(monitor.OpDumpChannel, 16)); got != "param error." {
		t.Errorf("bad channel = %q", got)
	}

	voices := e.Execute(monitor.Encode(monitor.OpDumpVoice, 0))
	if !strings.HasPrefix(voices, "=== Voice List ===") || !strings.Contains(voices, "TYPE=CSM") {
		t.Errorf("voice dump = %q", voices)
	}

	stats := e.Execute(monitor.Encode(monitor.OpStats, 0))
	for _, want := range []string{"Voice allocation failure: 0", "CH=15 Release", "MIDI events=1", "Speech state=idle"} {
		if !strings.Contains(stats, want) {
			t.Errorf("stats missing %q:\n%s", want, stats)
		}
	}

	if got := e.Execute(monitor.Encode(monitor.OpEnable, 0x00FF)); got != "Enabled: 00ff" {
		t.Errorf("enable = %q", got)
	}
	if _, enabled := e.Snapshot(); enabled != 0x00FF {
		t.Errorf("snapshot enabled = %#04x", enabled)
	}

	if got := e.Execute(monitor.Encode(monitor.OpReset, 0)); got != "MIDI RESET!" {
		t.Errorf("reset = %q", got)
	}
	if noteOn, _ := e.Snapshot(); noteOn != 0 {
		t.Errorf("note-on after reset = %#04x", noteOn)
	}
	if got := e.Execute(monitor.Command(0x7F)); got != "" {
		t.Errorf("unknown op = %q", got)
	}
}

func TestDumpSysExReports(t *testing.T) {
	var reports []string
	j := opn.NewJournal()
	e := Build(Options{
		Modules: recorders(j, opn.YM2608),
		Enabled: 0xFFFF,
		Report:  func(s string) { reports = append(reports, s) },
	})
	e.Feed(gomidi.SysEx([]byte{0x00, 0x00}))

	if len(reports) != 1 {
		t.Fatalf("reports = %d, want 1", len(reports))
	}
	r := reports[0]
	if !strings.Contains(r, "Release Success") || !strings.Contains(r, "=== Voice List ===") {
		t.Errorf("dump = %q", r)
	}
}

func TestPad(t *testing.T) {
	var reports []string
	e := Build(Options{
		Modules: recorders(opn.NewJournal(), opn.YM2608),
		Enabled: 0xFFFF,
		Report:  func(s string) { reports = append(reports, s) },
	})

	e.Pad(midi.PadEvent{Row: 1, Col: 2})
	if _, enabled := e.Snapshot(); enabled != 0xFFFF&^(1<<10) {
		t.Errorf("enabled = %#04x", enabled)
	}
	e.Pad(midi.PadEvent{Row: 1, Col: 2})
	if _, enabled := e.Snapshot(); enabled != 0xFFFF {
		t.Errorf("enabled = %#04x", enabled)
	}

	e.Feed(gomidi.NoteOn(0, 60, 100))
	e.Pad(midi.PadEvent{Row: 7, Col: 8})
	if noteOn, _ := e.Snapshot(); noteOn != 0 {
		t.Errorf("note-on after reset pad = %#04x", noteOn)
	}
	if len(reports) != 1 || reports[0] != "MIDI RESET!" {
		t.Errorf("reports = %v", reports)
	}
}

type fakePanel struct {
	pads    chan midi.PadEvent
	updates chan int
}

func (f *fakePanel) ID() string { return "panel" }
func (f *fakePanel) Type() midi.ControllerType { return midi.ControllerLaunchpad }
func (f *fakePanel) PadEvents() <-chan midi.PadEvent { return f.pads }
func (f *fakePanel) Close() error { return nil }

func (f *fakePanel) SetLEDBatch(u []midi.LEDUpdate) error {
	f.updates <- len(u)
	return nil
}

func TestRun(t *testing.T) {
	reports := make(chan string, 4)
	e := Build(Options{
		Modules: recorders(opn.NewJournal(), opn.YM2608),
		Speech:  true,
		Enabled: 0xFFFF,
		Report:  func(s string) { reports <- s },
	})

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan []byte)
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, in) }()

	panel := &fakePanel{pads: make(chan midi.PadEvent), updates: make(chan int, 16)}
	e.AttachPanel(panel)
	if n := <-panel.updates; n != 17 {
		t.Errorf("initial panel render = %d pads", n)
	}

	in <- gomidi.NoteOn(0, 60, 100)
	if n := <-panel.updates; n != 1 {
		t.Errorf("note-on render = %d pads, want 1", n)
	}
	if noteOn, _ := e.Snapshot(); noteOn != 1 {
		t.Errorf("note-on = %#04x", noteOn)
	}

	panel.pads <- midi.PadEvent{Row: 0, Col: 1}
	<-panel.updates
	if _, enabled := e.Snapshot(); enabled != 0xFFFD {
		t.Errorf("enabled = %#04x", enabled)
	}

	if err := e.Queue().Push(ctx, monitor.Encode(monitor.OpDumpChannel, 0)); err != nil {
		t.Fatal(err)
	}
	select {
	case r := <-reports:
		if !strings.HasPrefix(r, "CH=00") {
			t.Errorf("report = %q", r)
		}
	case <-time.After(time.Second):
		t.Fatal("no report")
	}

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	// the panel is blanked on exit
	if n := <-panel.updates; n != 17 {
		t.Errorf("clear = %d pads", n)
	}
}

func TestRunEndsWithInput(t *testing.T) {
	e, _ := build(t, false, 0, opn.YM2608)
	in := make(chan []byte, 1)
	in <- gomidi.NoteOn(0, 60, 100)
	close(in)

	if err := e.Run(context.Background(), in); err != nil {
		t.Errorf("Run = %v", err)
	}
	if noteOn, _ := e.Snapshot(); noteOn != 1 {
		t.Errorf("note-on = %#04x", noteOn)
	}
}

func TestOpenBackendDryRun(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Serial.Port = "/dev/does-not-exist"

	b, err := OpenBackend(cfg, true, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if len(b.Modules) != 4 || b.Journal == nil || b.Link != nil {
		t.Fatalf("backend = %+v", b)
	}
	if b.HardwareTimer() {
		t.Error("recorder backend reports a hardware timer")
	}
	if b.Modules[2].Kind() != opn.YM2203 || b.Modules[3].ID() != 3 {
		t.Errorf("module 2 kind %v, module 3 id %d", b.Modules[2].Kind(), b.Modules[3].ID())
	}

	e := Build(OptionsFromConfig(cfg, b.Modules))
	if e.Speech() == nil || e.Speech().Period() != 10*time.Millisecond {
		t.Error("speech options not applied")
	}
}

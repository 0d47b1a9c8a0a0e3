package ensemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/46nori/FMSynthEnsemble/channel"
	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/midi"
	"github.com/46nori/FMSynthEnsemble/monitor"
	"github.com/46nori/FMSynthEnsemble/voice"
)

// Run is the MIDI loop. It is the only goroutine that touches channels,
// voices and the allocator. It returns nil when in is closed and the
// context error when ctx ends.
func (e *Ensemble) Run(ctx context.Context, in <-chan []byte) error {
	var ticks <-chan struct{}
	if e.clock != nil {
		go e.clock.Run(ctx)
		ticks = e.clock.C()
	}
	defer e.detachPanel()

	for {
		var pads <-chan midi.PadEvent
		if e.panel != nil {
			pads = e.panel.Controller().PadEvents()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg, ok := <-in:
			if !ok {
				return nil
			}
			e.Feed(msg)

		case c := <-e.queue.C():
			if out := e.Execute(c); out != "" {
				e.report(out)
			}

		case <-ticks:
			e.frameElapsed()

		case ctrl := <-e.panelCh:
			e.detachPanel()
			if ctrl != nil {
				e.panel = midi.NewPanel(ctrl)
				e.logger.Info("front panel attached", "device", ctrl.ID())
				e.renderPanel()
			}

		case ev, ok := <-pads:
			if !ok {
				e.logger.Info("front panel closed")
				e.panel = nil
				continue
			}
			e.Pad(ev)
		}
	}
}

// Feed runs one MIDI packet through the processor unless MIDI mode is off.
func (e *Ensemble) Feed(msg []byte) uint16 {
	if !e.flags.MidiMode() {
		e.ignored.Add(1)
		return e.proc.NoteOnStatus()
	}
	var started uint64
	if e.speech != nil {
		started = e.speech.Started()
	}
	status := e.proc.Exec(msg)
	if e.speech != nil && e.speech.Started() != started {
		// the first frame lasts a full period
		e.clock.Restart()
	}
	e.publish()
	return status
}

// frameElapsed handles a frame clock tick. With a hardware timer the tick is
// only a poll and the frame advances once timer B has overflowed.
func (e *Ensemble) frameElapsed() {
	if e.speech.State() == voice.SpeechIdle {
		return
	}
	if e.hwTimer && !e.speech.FrameOver() {
		return
	}
	e.speech.Advance()
}

// Pad applies a front-panel press.
func (e *Ensemble) Pad(ev midi.PadEvent) {
	switch action, ch := midi.PadAction(ev); action {
	case midi.PanelToggle:
		e.proc.EnableChannels(e.proc.Enabled() ^ 1<<ch)
		debug.Logv(1, "panel", "CH:%02d %v", ch, e.proc.Enabled()&(1<<ch) != 0)
	case midi.PanelReset:
		e.proc.Reset()
		e.report("MIDI RESET!")
	default:
		return
	}
	e.publish()
}

// AttachPanel hands a grid controller to the loop as the front panel; nil
// detaches the current one. Safe from any goroutine.
func (e *Ensemble) AttachPanel(ctrl midi.Controller) {
	e.panelCh <- ctrl
}

func (e *Ensemble) detachPanel() {
	if e.panel == nil {
		return
	}
	if err := e.panel.Clear(); err != nil {
		e.logger.Warn("front panel clear failed", "error", err)
	}
	e.panel = nil
}

func (e *Ensemble) publish() {
	e.noteOn.Store(uint32(e.proc.NoteOnStatus()))
	e.enabled.Store(uint32(e.proc.Enabled()))
	e.renderPanel()
}

func (e *Ensemble) renderPanel() {
	if e.panel == nil {
		return
	}
	if err := e.panel.Render(e.proc.NoteOnStatus(), e.proc.Enabled()); err != nil {
		debug.LogEvery(50, "panel", "render: %v", err)
	}
}

// Execute runs a console command word and returns its output.
func (e *Ensemble) Execute(c monitor.Command) string {
	switch c.Op() {
	case monitor.OpReset:
		e.proc.Reset()
		e.publish()
		return "MIDI RESET!"
	case monitor.OpDumpChannel:
		p := c.Param()
		if p != monitor.AllChannels && p >= channel.Count {
			return monitor.ErrParam.Error()
		}
		return e.DumpChannels(int(p))
	case monitor.OpDumpVoice:
		return e.DumpVoices()
	case monitor.OpStats:
		return e.Stats()
	case monitor.OpEnable:
		e.proc.EnableChannels(uint16(c.Param()))
		e.publish()
		return fmt.Sprintf("Enabled: %04x", e.proc.Enabled())
	}
	debug.Logv(1, "monitor", "unknown command %v", c)
	return ""
}

// DumpChannels dumps channel ch, or all of them for monitor.AllChannels.
func (e *Ensemble) DumpChannels(ch int) string {
	if ch != monitor.AllChannels {
		return e.channels[ch].String()
	}
	var b strings.Builder
	for _, c := range e.channels {
		b.WriteString(c.String())
	}
	return b.String()
}

func (e *Ensemble) DumpVoices() string {
	return e.alloc.Dump()
}

// Stats reports allocation failures, per-channel release counts and the
// loop counters.
func (e *Ensemble) Stats() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Voice allocation failure: %d\n", e.alloc.Failed())
	for _, c := range e.channels {
		b.WriteString(c.Stats())
		b.WriteByte('\n')
	}
	ps := e.proc.Stats()
	fmt.Fprintf(&b, "MIDI events=%d dropped=%d ignored=%d resets=%d sysex-overrun=%d\n",
		ps.Events, ps.Dropped, e.ignored.Load(), ps.Resets, ps.Overrun)
	if e.clock != nil {
		ticks, over := e.clock.Stats()
		fmt.Fprintf(&b, "Speech state=%s frames=%d clock ticks=%d overruns=%d\n",
			e.speech.State(), e.speech.Played(), ticks, over)
	}
	return b.String()
}

// fullDump is the output of the diagnostic sysex.
func (e *Ensemble) fullDump() string {
	var b strings.Builder
	for _, c := range e.channels {
		b.WriteString(c.String())
		b.WriteString(c.Stats())
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Voice allocation failure: %d\n", e.alloc.Failed())
	b.WriteString(e.alloc.Dump())
	return b.String()
}

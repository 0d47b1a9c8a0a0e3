package midi

import (
	"context"
	"io"
	"slices"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2/smf"
)

const defaultBPM = 120.0

// TimedMessage is a raw message due At after playback starts.
type TimedMessage struct {
	At   time.Duration
	Data []byte
}

// Player plays a Standard MIDI File into a byte sink such as
// Processor.Exec. All tracks are merged; tempo changes are honored.
type Player struct {
	events []TimedMessage
}

// NewPlayer reads the Standard MIDI File at path.
func NewPlayer(path string) (*Player, error) {
	sm, err := smf.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return newPlayer(sm)
}

// LoadPlayer reads a Standard MIDI File from r.
func LoadPlayer(r io.Reader) (*Player, error) {
	sm, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.Wrap(err, "read smf")
	}
	return newPlayer(sm)
}

type tickedMessage struct {
	tick  uint64
	tempo float64 // >0 for tempo meta events
	data  []byte
}

func newPlayer(sm *smf.SMF) (*Player, error) {
	mt, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok || mt == 0 {
		return nil, errors.New("smf: only metric time format is supported")
	}

	var all []tickedMessage
	for _, track := range sm.Tracks {
		var tick uint64
		for _, ev := range track {
			tick += uint64(ev.Delta)
			var bpm float64
			switch {
			case ev.Message.GetMetaTempo(&bpm):
				all = append(all, tickedMessage{tick: tick, tempo: bpm})
			case playable(ev.Message):
				all = append(all, tickedMessage{tick: tick, data: slices.Clone([]byte(ev.Message))})
			}
		}
	}
	// tracks are merged in file order for equal ticks
	slices.SortStableFunc(all, func(a, b tickedMessage) int {
		switch {
		case a.tick < b.tick:
			return -1
		case a.tick > b.tick:
			return 1
		}
		return 0
	})

	p := &Player{}
	res := float64(uint16(mt))
	bpm := defaultBPM
	var (
		lastTick uint64
		at       time.Duration
	)
	for _, m := range all {
		at += time.Duration(float64(m.tick-lastTick) * float64(time.Minute) / (bpm * res))
		lastTick = m.tick
		if m.tempo > 0 {
			bpm = m.tempo
			continue
		}
		p.events = append(p.events, TimedMessage{At: at, Data: m.data})
	}
	return p, nil
}

// playable accepts channel messages and complete system exclusive messages.
func playable(msg smf.Message) bool {
	b := []byte(msg)
	if len(b) == 0 {
		return false
	}
	switch {
	case b[0] >= NoteOff && b[0] < System:
		return true
	case b[0] == SysExStart:
		return b[len(b)-1] == SysExEnd
	}
	return false
}

// Events returns the merged schedule.
func (p *Player) Events() []TimedMessage { return p.events }

// Duration returns the time of the last message.
func (p *Player) Duration() time.Duration {
	if len(p.events) == 0 {
		return 0
	}
	return p.events[len(p.events)-1].At
}

// Play sends every message to sink at its scheduled time. It returns the
// context error when cancelled before the end.
func (p *Player) Play(ctx context.Context, sink func([]byte)) error {
	start := time.Now()
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for _, ev := range p.events {
		if wait := ev.At - time.Since(start); wait > 0 {
			timer.Reset(wait)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		sink(ev.Data)
	}
	return nil
}

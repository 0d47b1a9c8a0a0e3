package midi

import (
	"bytes"

	"github.com/46nori/FMSynthEnsemble/channel"
	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/voice"
)

const sysexCapacity = 10

// Reset signatures, compared against the sysex payload without F0/F7.
var (
	gmSystemOn = []byte{0x7E, 0x7F, 0x09, 0x01}
	xgReset    = []byte{0x43, 0x10, 0x4C, 0x00, 0x00, 0x7E, 0x00}
	gsReset    = []byte{0x41, 0x10, 0x42, 0x12, 0x40, 0x00, 0x7F, 0x00, 0x41}

	resetSignatures = []struct {
		name string
		sig  []byte
	}{
		{"GM", gmSystemOn},
		{"XG", xgReset},
		{"GS", gsReset},
	}
)

// ProcessorStats counts what the processor has seen.
type ProcessorStats struct {
	Events  uint64 // channel voice events dispatched
	Dropped uint64 // events for disabled channels
	Resets  uint64 // sysex resets
	Overrun uint64 // sysex bytes beyond the buffer
}

// Processor parses a MIDI byte stream and drives the sixteen channels.
//
// Bytes may arrive in packets of any size; an event split across calls to
// Exec is completed by the next call. Running status is supported. Real-time
// bytes (F8-FF) may appear anywhere and leave the parser state alone.
//
// A Processor is not safe for concurrent use.
type Processor struct {
	channels []channel.Channel
	alloc    *voice.Allocator

	enabled uint16
	noteOn  uint16

	status uint8 // running status, 0 when none
	data   [2]uint8
	n      int

	inSysEx bool
	sysex   [sysexCapacity]byte
	sysexN  int

	onDump func()
	stats  ProcessorStats
}

// NewProcessor creates a processor for channels, which must hold one entry
// per MIDI channel in channel-number order.
func NewProcessor(channels []channel.Channel, alloc *voice.Allocator) *Processor {
	if len(channels) != channel.Count {
		panic("midi: processor needs 16 channels")
	}
	return &Processor{
		channels: channels,
		alloc:    alloc,
		enabled:  0xFFFF,
	}
}

// EnableChannels sets the channel enable mask, bit n for channel n.
func (p *Processor) EnableChannels(mask uint16) { p.enabled = mask }

// Enabled returns the channel enable mask.
func (p *Processor) Enabled() uint16 { return p.enabled }

// NoteOnStatus returns one bit per channel, set while its last note event
// left a note sounding.
func (p *Processor) NoteOnStatus() uint16 { return p.noteOn }

// InSysEx reports whether a system exclusive message is being collected.
func (p *Processor) InSysEx() bool { return p.inSysEx }

// OnDump installs the hook run by the diagnostic sysex F0 00 00 ... F7.
func (p *Processor) OnDump(fn func()) { p.onDump = fn }

// Stats returns the processor counters.
func (p *Processor) Stats() ProcessorStats { return p.stats }

// Channel returns channel n.
func (p *Processor) Channel(n int) channel.Channel { return p.channels[n] }

// Reset returns every voice and channel to its power-on state. Voices are
// reset first so that channels find their queues already empty.
func (p *Processor) Reset() {
	p.alloc.Reset()
	for _, c := range p.channels {
		c.Reset()
	}
	p.noteOn = 0
	debug.Logv(1, "midi", "reset")
}

// Exec consumes msg and returns the note-on status bitmap.
func (p *Processor) Exec(msg []byte) uint16 {
	for _, b := range msg {
		p.feed(b)
	}
	return p.noteOn
}

func (p *Processor) feed(b byte) {
	if b >= TimingClock {
		p.realtime(b)
		return
	}

	if p.inSysEx {
		switch {
		case b == SysExEnd:
			p.inSysEx = false
			p.endSysEx()
			return
		case b&0x80 == 0:
			if p.sysexN < len(p.sysex) {
				p.sysex[p.sysexN] = b
				p.sysexN++
			} else {
				p.stats.Overrun++
			}
			return
		}
		// unterminated: the new status byte ends the message
		p.inSysEx = false
		debug.Logv(3, "midi", "sysex aborted by %02X", b)
	}

	switch {
	case b == SysExStart:
		p.inSysEx = true
		p.sysexN = 0
		p.status = 0
	case b&0x80 != 0:
		p.status = b
		p.n = 0
		if dataLen(b) == 0 {
			p.dispatch(b, 0, 0)
		}
	case p.status == 0:
		debug.Logv(3, "midi", "stray data %02X", b)
	default:
		p.data[p.n] = b
		p.n++
		if p.n == dataLen(p.status) {
			p.n = 0
			p.dispatch(p.status, p.data[0], p.data[1])
		}
	}
}

func (p *Processor) dispatch(status, d1, d2 uint8) {
	if status >= System {
		p.system(status, d1, d2)
		// system common messages cancel running status
		p.status = 0
		return
	}

	ch := status & 0x0F
	mask := uint16(1) << ch
	if p.enabled&mask == 0 {
		p.stats.Dropped++
		return
	}
	p.stats.Events++
	c := p.channels[ch]

	switch status & 0xF0 {
	case NoteOn:
		if c.NoteOn(int(d1), int(d2)) == channel.On {
			p.noteOn |= mask
		} else {
			p.noteOn &^= mask
		}
		debug.Logv(1, "midi", "CH:%02d ON : k=%3d v=%3d", ch, d1, d2)
	case NoteOff:
		if c.NoteOff(int(d1)) != channel.On {
			p.noteOn &^= mask
		}
		debug.Logv(1, "midi", "CH:%02d OFF: k=%d v=%d", ch, d1, d2)
	case ProgramChange:
		c.SetProgram(d1)
		debug.Logv(2, "midi", "CH:%02d PROG: %d", ch, d1)
	case CC:
		p.control(c, d1, d2)
		debug.Logv(3, "midi", "CH:%02d CC: #%d/%d", ch, d1, d2)
	case PolyPressure:
		debug.Logv(3, "midi", "CH:%02d PolyPress: key=%d value=%d", ch, d1, d2)
	case ChannelPressure:
		debug.Logv(3, "midi", "CH:%02d ChPress: %d", ch, d1)
	case PitchBend:
		val := int16(int(d1) + 128*int(d2) - 8192)
		c.PitchBend(val)
		debug.Logv(3, "midi", "CH:%02d PB: %d", ch, val)
	}
}

func (p *Processor) control(c channel.Channel, cc, val uint8) {
	switch cc {
	case CCModulation:
		c.SetModulation(val)
	case CCVolume, CCExpression:
		c.SetVolume(int(val))
	case CCHold1:
		c.Hold1(int(val))
	case CCNRPNLSB:
		c.NRPNLSB(val)
	case CCNRPNMSB:
		c.NRPNMSB(val)
	case CCRPNLSB:
		c.RPNLSB(val)
	case CCRPNMSB:
		c.RPNMSB(val)
	case CCDataEntryMSB:
		c.DataEntryMSB(val)
	case CCDataEntryLSB:
		c.DataEntryLSB(val)
	case CCPan:
		c.SetPan(val)
	case CCBankMSB:
		c.BankSelectMSB(val)
	case CCBankLSB:
		c.BankSelectLSB(val)
	case CCAllSoundOff, CCAllNotesOff:
		c.Reset()
		p.noteOn &^= uint16(1) << c.Number()
	}
}

func (p *Processor) system(status, d1, d2 uint8) {
	switch status {
	case TimeCode:
		debug.Logv(3, "midi", "System| MIDI TC: %d", d1)
	case SongPosition:
		debug.Logv(3, "midi", "System| SongPos: %d", int(d1)+128*int(d2))
	case SongSelect:
		debug.Logv(3, "midi", "System| SongSelect: %d", d1)
	case TuneRequest:
		debug.Logv(3, "midi", "System| TuneRequest")
	default:
		debug.Logv(3, "midi", "System| %02X", status)
	}
}

func (p *Processor) realtime(b byte) {
	switch b {
	case TimingClock, ActiveSense:
		debug.Logv(4, "midi", "System| %02X", b)
	default:
		debug.Logv(3, "midi", "System| %02X", b)
	}
}

func (p *Processor) endSysEx() {
	buf := p.sysex[:p.sysexN]
	for _, r := range resetSignatures {
		if len(buf) >= len(r.sig) && bytes.Equal(buf[:len(r.sig)], r.sig) {
			debug.Logv(1, "midi", "%s reset", r.name)
			p.stats.Resets++
			p.Reset()
			return
		}
	}
	if len(buf) >= 2 && buf[0] == 0x00 && buf[1] == 0x00 {
		if p.onDump != nil {
			p.onDump()
		}
		return
	}
	debug.Logv(3, "midi", "sysex % X ignored", buf)
}

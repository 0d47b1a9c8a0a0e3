package opn

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Link is the serial connection to the board that hosts the sound modules.
// All modules on the board share one link; writes are serialized by the
// link mutex so a command frame is never torn by another goroutine.
type Link struct {
	mu     sync.Mutex
	rw     io.ReadWriter
	closer io.Closer
	logger *slog.Logger

	errs    atomic.Uint64
	lastErr atomic.Value
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int, logger *slog.Logger) (*Link, error) {
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open serial %s", name)
	}
	if err := p.SetReadTimeout(50 * time.Millisecond); err != nil {
		_ = p.Close()
		return nil, errors.Wrapf(err, "set read timeout on %s", name)
	}
	l := NewLink(p, logger)
	l.closer = p
	l.logger.Info("serial: port opened", "device", name, "baud", baud)
	return l, nil
}

// NewLink wraps an already open stream.
func NewLink(rw io.ReadWriter, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}
	return &Link{rw: rw, logger: logger}
}

// Module returns the capability handle for module id on this link.
func (l *Link) Module(id int, kind Kind) *Bridge {
	return &Bridge{link: l, id: id, kind: kind}
}

// Errors returns the number of failed transfers since the link was opened.
func (l *Link) Errors() uint64 {
	return l.errs.Load()
}

// LastError returns the most recent transfer error, or nil.
func (l *Link) LastError() error {
	if v := l.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (l *Link) Close() error {
	if l.closer == nil {
		return nil
	}
	l.logger.Info("serial: closing port")
	return errors.Wrap(l.closer.Close(), "close serial")
}

func (l *Link) fail(err error) {
	n := l.errs.Add(1)
	l.lastErr.Store(err)
	// first failure and then every 256th, a dead link must not flood the log
	if n == 1 || n%256 == 0 {
		l.logger.Error("serial: transfer failed", "err", err, "count", n)
	}
}

func (l *Link) send(f Frame) {
	data, err := f.Encode()
	if err != nil {
		l.fail(err)
		return
	}
	l.mu.Lock()
	_, err = l.rw.Write(data)
	l.mu.Unlock()
	if err != nil {
		l.fail(errors.Wrap(err, "write frame"))
	}
}

func (l *Link) request(f Frame) (Frame, error) {
	data, err := f.Encode()
	if err != nil {
		return Frame{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.rw.Write(data); err != nil {
		return Frame{}, errors.Wrap(err, "write request")
	}
	reply, err := ReadFrame(l.rw)
	if err != nil {
		return Frame{}, err
	}
	if reply.Cmd != f.Cmd|CmdReply {
		return Frame{}, errors.Errorf("unexpected reply %#02x to %#02x", reply.Cmd, f.Cmd)
	}
	return reply, nil
}

// Bridge is a Module whose capabilities are forwarded over a Link.
type Bridge struct {
	link *Link
	id   int
	kind Kind
}

func (b *Bridge) cmd(c byte, args ...byte) {
	payload := append([]byte{byte(b.id)}, args...)
	b.link.send(Frame{Cmd: c, Payload: payload})
}

func (b *Bridge) ID() int { return b.id }
func (b *Bridge) Kind() Kind { return b.kind }
func (b *Bridge) Channels() int { return b.kind.Channels() }
func (b *Bridge) Init() { b.cmd(CmdInit) }

func (b *Bridge) SetAlgorithm(ch, fb, alg uint8) { b.cmd(CmdSetAlgorithm, ch, fb, alg) }
func (b *Bridge) SetTone(ch uint8, program int) { b.cmd(CmdSetTone, ch, byte(program)) }

func (b *Bridge) SetToneParams(ch uint8, tone []byte) {
	b.cmd(CmdSetToneParams, append([]byte{ch}, tone...)...)
}

func (b *Bridge) SetPitch(ch, semitone, octave uint8, diff int16) {
	b.cmd(CmdSetPitch, ch, semitone, octave, byte(uint16(diff)>>8), byte(diff))
}

func (b *Bridge) KeyOn(ch, ops uint8) { b.cmd(CmdKeyOn, ch, ops) }
func (b *Bridge) KeyOff(ch uint8) { b.cmd(CmdKeyOff, ch) }

func (b *Bridge) SetDetuneMultiple(ch, op, dt, ml uint8) {
	b.cmd(CmdSetDetuneMultiple, ch, op, dt, ml)
}

func (b *Bridge) SetTotalLevel(ch, op, tl uint8) { b.cmd(CmdSetTotalLevel, ch, op, tl) }

func (b *Bridge) SetVolume(ch uint8, program int, tl uint8) {
	b.cmd(CmdSetVolume, ch, byte(program), tl)
}

func (b *Bridge) SetEnvelope(ch, op uint8, env Envelope) {
	b.cmd(CmdSetEnvelope, ch, op, env.KS, env.AR, env.DR, env.SR, env.SL, env.RR)
}

func (b *Bridge) SetFNumberCh3(op, hi, lo uint8) { b.cmd(CmdSetFNumberCh3, op, hi, lo) }

func (b *Bridge) SetTimerA(v uint16) { b.cmd(CmdSetTimerA, byte(v>>8), byte(v)) }
func (b *Bridge) SetTimerB(v uint8) { b.cmd(CmdSetTimerB, v) }
func (b *Bridge) SetTimerMode(mode uint8) { b.cmd(CmdSetTimerMode, mode) }
func (b *Bridge) SetCh3Mode(mode uint8) { b.cmd(CmdSetCh3Mode, mode) }

// ReadStatus asks the board for the status register. A failed exchange reads
// as 0 (no flags set).
func (b *Bridge) ReadStatus() uint8 {
	reply, err := b.link.request(Frame{Cmd: CmdReadStatus, Payload: []byte{byte(b.id)}})
	if err != nil {
		b.link.fail(errors.WithMessagef(err, "module %d status", b.id))
		return 0
	}
	if len(reply.Payload) < 2 {
		b.link.fail(errors.Errorf("module %d status: short reply", b.id))
		return 0
	}
	return reply.Payload[1]
}

// LFO, output routing and the rhythm section exist only on the YM2608; on
// other chips these calls are dropped.

func (b *Bridge) LFOOn(freq uint8) { b.opna(CmdLFOOn, freq) }
func (b *Bridge) LFOOff() { b.opna(CmdLFOOff) }

func (b *Bridge) SetLFOPMS(ch, pms uint8, lr Output) { b.opna(CmdSetLFOPMS, ch, pms, byte(lr)) }
func (b *Bridge) SetOutput(ch uint8, lr Output) { b.opna(CmdSetOutput, ch, byte(lr)) }

func (b *Bridge) RhythmOn(r Rhythm) { b.opna(CmdRhythmOn, byte(r)) }
func (b *Bridge) RhythmDamp(r Rhythm) { b.opna(CmdRhythmDamp, byte(r)) }
func (b *Bridge) RhythmTotalLevel(tl uint8) { b.opna(CmdRhythmTotalLevel, tl) }

func (b *Bridge) RhythmLevel(r Rhythm, il uint8, lr Output) {
	b.opna(CmdRhythmLevel, byte(r), il, byte(lr))
}

func (b *Bridge) opna(c byte, args ...byte) {
	if b.kind.HasRhythm() {
		b.cmd(c, args...)
	}
}

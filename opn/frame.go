package opn

import (
	"io"

	"github.com/pkg/errors"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	maxPayload = 250
)

// Command codes carried in the CMD byte of a frame. The first payload byte of
// every command is the module id.
const (
	CmdInit              byte = 0x01
	CmdSetAlgorithm      byte = 0x02
	CmdSetTone           byte = 0x03
	CmdSetToneParams     byte = 0x04
	CmdSetPitch          byte = 0x05
	CmdKeyOn             byte = 0x06
	CmdKeyOff            byte = 0x07
	CmdSetDetuneMultiple byte = 0x08
	CmdSetTotalLevel     byte = 0x09
	CmdSetVolume         byte = 0x0a
	CmdSetEnvelope       byte = 0x0b
	CmdSetFNumberCh3     byte = 0x0c
	CmdSetTimerA         byte = 0x10
	CmdSetTimerB         byte = 0x11
	CmdSetTimerMode      byte = 0x12
	CmdSetCh3Mode        byte = 0x13
	CmdReadStatus        byte = 0x14
	CmdLFOOn             byte = 0x20
	CmdLFOOff            byte = 0x21
	CmdSetLFOPMS         byte = 0x22
	CmdSetOutput         byte = 0x23
	CmdRhythmOn          byte = 0x30
	CmdRhythmDamp        byte = 0x31
	CmdRhythmTotalLevel  byte = 0x32
	CmdRhythmLevel       byte = 0x33

	// Reply bit set by the board on answers.
	CmdReply byte = 0x80
)

var (
	ErrChecksum = errors.New("opn: frame checksum mismatch")
	ErrTimeout  = errors.New("opn: read timeout")
	ErrTooLarge = errors.New("opn: payload too large")
)

// Frame is one command or reply exchanged with the module board.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and the payload.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > maxPayload {
		return nil, errors.Wrapf(ErrTooLarge, "cmd %#02x: %d bytes", f.Cmd, len(f.Payload))
	}
	length := byte(len(f.Payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF0, SOF1, length, f.Cmd)
	out = append(out, f.Payload...)
	out = append(out, cks)
	return out, nil
}

// ReadFrame reads the next frame from r, skipping bytes until a start of
// frame is found. A read that returns no data and no error is reported as
// ErrTimeout (serial ports with a read timeout behave that way).
func ReadFrame(r io.Reader) (Frame, error) {
	var prev byte
	for {
		b, err := readByte(r)
		if err != nil {
			return Frame{}, err
		}
		if prev == SOF0 && b == SOF1 {
			break
		}
		prev = b
	}

	length, err := readByte(r)
	if err != nil {
		return Frame{}, err
	}
	if length == 0 {
		return Frame{}, errors.New("opn: zero-length frame")
	}
	body := make([]byte, int(length)+1) // CMD + payload + CKS
	for i := range body {
		if body[i], err = readByte(r); err != nil {
			return Frame{}, err
		}
	}

	cks := length
	for _, b := range body[:len(body)-1] {
		cks ^= b
	}
	if cks != body[len(body)-1] {
		return Frame{}, errors.WithStack(ErrChecksum)
	}
	return Frame{Cmd: body[0], Payload: body[1 : len(body)-1]}, nil
}

func readByte(r io.Reader) (byte, error) {
	var buf [1]byte
	n, err := r.Read(buf[:])
	if n == 1 {
		return buf[0], nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "opn: read frame")
	}
	return 0, errors.WithStack(ErrTimeout)
}

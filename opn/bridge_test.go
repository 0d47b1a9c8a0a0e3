package opn

import (
	"bytes"
	"io"
	"log/slog"
	"testing"
)

// loopback collects written frames and serves canned replies.
type loopback struct {
	written bytes.Buffer
	replies *bytes.Reader
}

func (l *loopback) Write(p []byte) (int, error) { return l.written.Write(p) }

func (l *loopback) Read(p []byte) (int, error) {
	if l.replies == nil {
		return 0, io.EOF
	}
	return l.replies.Read(p)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func frames(t *testing.T, data []byte) []Frame {
	t.Helper()
	var out []Frame
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		f, err := ReadFrame(r)
		if err != nil {
			t.Fatalf("ReadFrame: %v", err)
		}
		out = append(out, f)
	}
	return out
}

func TestBridgeWritesFrames(t *testing.T) {
	lb := &loopback{}
	link := NewLink(lb, quietLogger())
	m := link.Module(2, YM2608)

	m.KeyOn(4, AllOperators)
	m.SetTimerA(0x3ff)
	m.RhythmOn(RhythmSD)

	got := frames(t, lb.written.Bytes())
	want := []Frame{
		{Cmd: CmdKeyOn, Payload: []byte{2, 4, 0x0f}},
		{Cmd: CmdSetTimerA, Payload: []byte{2, 0x03, 0xff}},
		{Cmd: CmdRhythmOn, Payload: []byte{2, 0x02}},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Cmd != want[i].Cmd || !bytes.Equal(got[i].Payload, want[i].Payload) {
			t.Errorf("frame %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBridgeDropsOPNAOnlyCalls(t *testing.T) {
	lb := &loopback{}
	m := NewLink(lb, quietLogger()).Module(0, YM2203)

	m.RhythmOn(RhythmBD)
	m.LFOOn(3)
	m.SetOutput(0, OutputBoth)
	if lb.written.Len() != 0 {
		t.Errorf("YM2203 wrote % x, want nothing", lb.written.Bytes())
	}
}

func TestBridgeReadStatus(t *testing.T) {
	reply, _ := Frame{Cmd: CmdReadStatus | CmdReply, Payload: []byte{1, StatusTimerB}}.Encode()
	lb := &loopback{replies: bytes.NewReader(reply)}
	link := NewLink(lb, quietLogger())

	if got := link.Module(1, YM2608).ReadStatus(); got != StatusTimerB {
		t.Errorf("ReadStatus = %#x, want %#x", got, StatusTimerB)
	}
	if link.Errors() != 0 {
		t.Errorf("Errors = %d, want 0", link.Errors())
	}
}

func TestBridgeReadStatusFailure(t *testing.T) {
	link := NewLink(&loopback{}, quietLogger())

	if got := link.Module(0, YM2608).ReadStatus(); got != 0 {
		t.Errorf("ReadStatus = %#x, want 0", got)
	}
	if link.Errors() != 1 || link.LastError() == nil {
		t.Errorf("Errors = %d, LastError = %v", link.Errors(), link.LastError())
	}
}

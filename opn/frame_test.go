package opn

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestFrameEncode(t *testing.T) {
	f := Frame{Cmd: CmdSetPitch, Payload: []byte{1, 2, 3, 4, 0xff, 0xff}}
	got, err := f.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := []byte{SOF0, SOF1, 0x07, 0x05, 1, 2, 3, 4, 0xff, 0xff, 0x06}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode = % x, want % x", got, want)
	}
}

func TestFrameEncodeTooLarge(t *testing.T) {
	_, err := Frame{Cmd: CmdInit, Payload: make([]byte, maxPayload+1)}.Encode()
	if errors.Cause(err) != ErrTooLarge {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestReadFrameSkipsNoise(t *testing.T) {
	f := Frame{Cmd: CmdReadStatus | CmdReply, Payload: []byte{2, 0x02}}
	data, _ := f.Encode()
	stream := append([]byte{0x00, 0x13, SOF0, 0x42}, data...)

	got, err := ReadFrame(bytes.NewReader(stream))
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got.Cmd != f.Cmd || !bytes.Equal(got.Payload, f.Payload) {
		t.Errorf("ReadFrame = %+v, want %+v", got, f)
	}
}

func TestReadFrameChecksum(t *testing.T) {
	data, _ := Frame{Cmd: CmdKeyOn, Payload: []byte{0, 1, 0x0f}}.Encode()
	data[len(data)-1] ^= 0xff

	_, err := ReadFrame(bytes.NewReader(data))
	if errors.Cause(err) != ErrChecksum {
		t.Errorf("err = %v, want ErrChecksum", err)
	}
}

type silentReader struct{}

func (silentReader) Read(p []byte) (int, error) { return 0, nil }

func TestReadFrameTimeout(t *testing.T) {
	_, err := ReadFrame(silentReader{})
	if errors.Cause(err) != ErrTimeout {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

package voice

import (
	"testing"
	"time"

	"github.com/46nori/FMSynthEnsemble/opn"
)

func newTestSpeech(t *testing.T, n int, opts SpeechOptions) (*Speech, *opn.Journal) {
	t.Helper()
	j := opn.NewJournal()
	var mods []opn.Module
	for i := 0; i < n; i++ {
		mods = append(mods, opn.NewRecorder(i, opn.YM2608, j))
	}
	v := NewSpeech(9, mods, opts)
	return v, j
}

func TestBlockFNumber(t *testing.T) {
	tests := []struct {
		hz   uint16
		want uint16
	}{
		{0, 5 << 11},
		{100, 5<<11 | 118},
		{1723, 5<<11 | 2046},
		{2000, 0},
	}
	for _, tt := range tests {
		if got := BlockFNumber(tt.hz); got != tt.want {
			t.Errorf("BlockFNumber(%d) = %#x, want %#x", tt.hz, got, tt.want)
		}
	}
}

func TestTimerBValue(t *testing.T) {
	if got := TimerBValue(10 * time.Millisecond); got != 221 {
		t.Errorf("TimerBValue(10ms) = %d, want 221", got)
	}
}

func TestSpeechInit(t *testing.T) {
	v, j := newTestSpeech(t, 2, SpeechOptions{TimerModule: 1, Operators: 8})
	v.Init()

	if n := len(j.Ops("SetCh3Mode")); n != 2 {
		t.Errorf("SetCh3Mode calls = %d, want 2", n)
	}
	tb := j.Ops("SetTimerB")
	if len(tb) != 1 || tb[0].Module != 1 || tb[0].Args[0] != 221 {
		t.Errorf("SetTimerB = %v", tb)
	}
	if n := len(j.Ops("SetEnvelope")); n != 8 {
		t.Errorf("SetEnvelope calls = %d, want 8", n)
	}
}

func TestSpeechPlaysUtteranceToLastFrame(t *testing.T) {
	v, j := newTestSpeech(t, 1, SpeechOptions{Operators: 4})
	v.Init()
	j.Clear()

	v.NoteOn(0, 0, 100, DefaultEffect(), opn.OutputBoth) // "T": frames 3..30
	if v.State() != SpeechPlaying || v.Frame() != 4 {
		t.Fatalf("after NoteOn: state=%v frame=%d", v.State(), v.Frame())
	}

	for i := 0; i < 27; i++ {
		v.Advance()
	}
	if v.State() != SpeechLastFrame {
		t.Fatalf("state = %v, want last-frame", v.State())
	}
	if n := len(j.Ops("SetTimerA")); n != 28 {
		t.Errorf("frames pushed = %d, want 28", n)
	}
	if n := len(j.Ops("SetFNumberCh3")); n != 28*4 {
		t.Errorf("operator writes = %d, want %d", n, 28*4)
	}

	v.Advance()
	if v.State() != SpeechIdle {
		t.Fatalf("state = %v, want idle", v.State())
	}
	modes := j.Ops("SetTimerMode")
	if last := modes[len(modes)-1]; last.Args[0] != int(opn.TimerReset) {
		t.Errorf("last timer mode = %#x, want reset", last.Args[0])
	}

	// idle ticks do nothing
	before := len(j.Calls())
	v.Advance()
	if len(j.Calls()) != before {
		t.Error("Advance while idle wrote to the module")
	}
}

func TestSpeechTimerModes(t *testing.T) {
	v, j := newTestSpeech(t, 2, SpeechOptions{TimerModule: 1, Operators: 8})
	v.NoteOn(3, 0, 100, DefaultEffect(), opn.OutputBoth)

	for _, c := range j.Ops("SetTimerMode") {
		want := int(opn.TimerAOnly)
		if c.Module == 1 {
			want = int(opn.TimerCSM)
		}
		if c.Args[0] != want {
			t.Errorf("module %d timer mode = %#x, want %#x", c.Module, c.Args[0], want)
		}
	}
}

func TestSpeechLastFrameFlagMasked(t *testing.T) {
	table := &Phonetics{
		Frames:     make([]Frame, 5),
		Utterances: []Utterance{{Name: "x", Start: 1, Length: 2}},
	}
	for i := range table.Frames {
		table.Frames[i].Pitch = uint16(100 + i)
	}
	table.Frames[3].Pitch = LastFrameFlag | 500

	v, j := newTestSpeech(t, 1, SpeechOptions{Phonetics: table})
	v.NoteOn(7, 0, 100, DefaultEffect(), opn.OutputBoth)
	v.Advance()
	v.Advance()

	var got []int
	for _, c := range j.Ops("SetTimerA") {
		got = append(got, c.Args[0])
	}
	want := []int{101, 102, 500}
	if len(got) != len(want) {
		t.Fatalf("SetTimerA = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SetTimerA = %v, want %v", got, want)
			break
		}
	}
	if v.State() != SpeechLastFrame {
		t.Errorf("state = %v, want last-frame", v.State())
	}
}

func TestSpeechNoteOffKeepsPlaying(t *testing.T) {
	v, _ := newTestSpeech(t, 1, SpeechOptions{})
	v.NoteOn(5, 0, 100, DefaultEffect(), opn.OutputBoth)
	v.NoteOff()

	if v.NoteOnCount() != 0 {
		t.Errorf("NoteOnCount = %d", v.NoteOnCount())
	}
	if v.State() != SpeechPlaying {
		t.Errorf("state = %v, want playing", v.State())
	}
}

func TestSpeechResetStops(t *testing.T) {
	v, j := newTestSpeech(t, 2, SpeechOptions{Operators: 8})
	v.setChannel(3)
	v.NoteOn(5, 0, 100, DefaultEffect(), opn.OutputBoth)
	j.Clear()

	v.Reset()
	if v.State() != SpeechIdle || !v.IsFree() {
		t.Errorf("after Reset: state=%v free=%v", v.State(), v.IsFree())
	}
	if n := len(j.Ops("KeyOff")); n != 2 {
		t.Errorf("KeyOff calls = %d, want 2", n)
	}
}

func TestDefaultPhonetics(t *testing.T) {
	p := DefaultPhonetics()
	if len(p.Utterances) != 12 {
		t.Fatalf("utterances = %d, want 12", len(p.Utterances))
	}
	for _, u := range p.Utterances {
		if u.Start+u.Length >= len(p.Frames) {
			t.Errorf("%s ends at %d beyond table of %d", u.Name, u.Start+u.Length, len(p.Frames))
		}
	}
	if p.Utterance(12) != p.Utterance(0) {
		t.Error("key 12 does not wrap to the first utterance")
	}
	last := p.Utterances[11]
	if p.Frames[last.Start+last.Length].Pitch&LastFrameFlag == 0 {
		t.Error("final frame of the last word is not flagged")
	}
}

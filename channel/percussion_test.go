package channel

import (
	"reflect"
	"testing"

	"github.com/46nori/FMSynthEnsemble/opn"
	"github.com/46nori/FMSynthEnsemble/voice"
)

func newTestPercussion() (*Percussion, *opn.Journal) {
	j := opn.NewJournal()
	c := NewPercussion(PercussionNumber, opn.NewRecorder(0, opn.YM2608, j))
	return c, j
}

func calls(j *opn.Journal) []string {
	var out []string
	for _, c := range j.Calls() {
		out = append(out, c.String())
	}
	return out
}

func TestPercussionDefaults(t *testing.T) {
	c, j := newTestPercussion()

	want := []string{
		"0:RhythmTotalLevel(60)",
		"0:RhythmLevel(1,31,192)",
		"0:RhythmLevel(2,31,192)",
		"0:RhythmLevel(4,31,192)",
		"0:RhythmLevel(8,31,192)",
		"0:RhythmLevel(16,31,192)",
		"0:RhythmLevel(32,31,192)",
	}
	if got := calls(j); !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}

	j.Clear()
	c.Reset()
	if got := calls(j); !reflect.DeepEqual(got, want) {
		t.Errorf("calls after Reset = %v, want %v", got, want)
	}
	if c.Output() != opn.OutputBoth {
		t.Errorf("Output = %v, want both", c.Output())
	}
}

func TestPercussionNotes(t *testing.T) {
	tests := []struct {
		name     string
		key, vel int
		want     Result
		calls    []string
	}{
		{"bass drum", 36, 127, On, []string{"0:RhythmLevel(1,31,192)", "0:RhythmOn(1)"}},
		{"soft snare", 38, 1, On, []string{"0:RhythmLevel(2,4,192)", "0:RhythmOn(2)"}},
		{"damp", 42, 0, Off, []string{"0:RhythmDamp(8)"}},
		{"unmapped", 54, 100, Fail, nil},
		{"below map", 34, 100, Fail, nil},
		{"above map", 89, 100, Fail, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, j := newTestPercussion()
			j.Clear()
			if got := c.NoteOn(tt.key, tt.vel); got != tt.want {
				t.Errorf("NoteOn = %v, want %v", got, tt.want)
			}
			if got := calls(j); !reflect.DeepEqual(got, tt.calls) {
				t.Errorf("calls = %v, want %v", got, tt.calls)
			}
		})
	}
}

func TestPercussionNoteOffDamps(t *testing.T) {
	c, j := newTestPercussion()
	j.Clear()

	if got := c.NoteOff(49); got != Off {
		t.Errorf("NoteOff = %v, want off", got)
	}
	if got := calls(j); !reflect.DeepEqual(got, []string{"0:RhythmDamp(4)"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestPercussionVolume(t *testing.T) {
	c, j := newTestPercussion()
	j.Clear()

	c.SetVolume(100)
	if len(j.Calls()) != 0 {
		t.Error("unchanged volume written")
	}
	c.SetVolume(0)
	c.SetVolume(300)
	if got := calls(j); !reflect.DeepEqual(got, []string{"0:RhythmTotalLevel(0)", "0:RhythmTotalLevel(63)"}) {
		t.Errorf("calls = %v", got)
	}
}

func TestPercussionOwnsNoVoices(t *testing.T) {
	c, _ := newTestPercussion()
	if _, ok := c.Release(voice.AnyModule, voice.TypeTonal); ok {
		t.Error("Release returned a voice")
	}
	c.ReleaseAll()
}

func TestInstrument(t *testing.T) {
	tests := map[int]opn.Rhythm{
		35: opn.RhythmBD,
		37: opn.RhythmRIM,
		46: opn.RhythmHH,
		51: opn.RhythmTOP,
		60: opn.RhythmTOM,
		82: opn.RhythmHH,
		88: opn.RhythmNone,
		0:  opn.RhythmNone,
	}
	for key, want := range tests {
		if got := Instrument(key); got != want {
			t.Errorf("Instrument(%d) = %v, want %v", key, got, want)
		}
	}
}

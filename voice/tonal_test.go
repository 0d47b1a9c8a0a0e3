package voice

import (
	"reflect"
	"testing"

	"github.com/46nori/FMSynthEnsemble/opn"
)

func newTestTonal(t *testing.T) (*Tonal, *opn.Journal) {
	t.Helper()
	j := opn.NewJournal()
	v := NewTonal(0, opn.NewRecorder(0, opn.YM2608, j), 1)
	j.Clear()
	return v, j
}

func lastArgs(t *testing.T, j *opn.Journal, op string) []int {
	t.Helper()
	calls := j.Ops(op)
	if len(calls) == 0 {
		t.Fatalf("no %s call recorded", op)
	}
	return calls[len(calls)-1].Args
}

func TestNewTonalLoadsDefaults(t *testing.T) {
	j := opn.NewJournal()
	NewTonal(3, opn.NewRecorder(0, opn.YM2608, j), 4)

	want := []string{"0:SetTone(4,0)", "0:SetVolume(4,0,6)"}
	var got []string
	for _, c := range j.Calls() {
		got = append(got, c.String())
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("calls = %v, want %v", got, want)
	}
}

func TestTonalPitch(t *testing.T) {
	tests := []struct {
		name string
		key  int
		e    Effect
		want []int // ch, semitone, octave, diff
	}{
		{"middle C", 60, DefaultEffect(), []int{1, 0, 4, 0}},
		{"below range", 5, DefaultEffect(), []int{1, 0, 0, 0}},
		{"above range", 120, DefaultEffect(), []int{1, 11, 7, 0x46}},
		{"coarse tune", 62, Effect{BendRange: 2, CoarseTune: 2}, []int{1, 0, 4, 0}},
		{"zero range ignores bend", 60, Effect{Bend: 4000}, []int{1, 0, 4, 0}},
		{"bend up full", 69, Effect{Bend: 8191, BendRange: 2}, []int{1, 9, 4, 127}},
		{"bend down full", 69, Effect{Bend: -8192, BendRange: 2}, []int{1, 9, 4, -114}},
		{"wide range", 60, Effect{Bend: 3000, BendRange: 12}, []int{1, 4, 4, 18}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, j := newTestTonal(t)
			v.NoteOn(tt.key, 0, 100, tt.e, opn.OutputBoth)
			if got := lastArgs(t, j, "SetPitch"); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SetPitch = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTonalNoteOnOff(t *testing.T) {
	v, j := newTestTonal(t)

	v.NoteOn(60, 0, 100, DefaultEffect(), opn.OutputLeft)
	v.NoteOn(60, 0, 100, DefaultEffect(), opn.OutputLeft)
	if v.NoteOnCount() != 2 {
		t.Errorf("NoteOnCount = %d, want 2", v.NoteOnCount())
	}
	// same key, same bend: pitch written once
	if n := len(j.Ops("SetPitch")); n != 1 {
		t.Errorf("SetPitch calls = %d, want 1", n)
	}
	if n := len(j.Ops("KeyOn")); n != 2 {
		t.Errorf("KeyOn calls = %d, want 2", n)
	}
	// program and volume unchanged since construction
	if n := len(j.Ops("SetTone")) + len(j.Ops("SetVolume")); n != 0 {
		t.Errorf("unexpected tone/volume writes: %d", n)
	}

	v.NoteOff()
	if v.NoteOnCount() != 0 {
		t.Errorf("NoteOnCount after NoteOff = %d", v.NoteOnCount())
	}
	if got := lastArgs(t, j, "KeyOff"); !reflect.DeepEqual(got, []int{1}) {
		t.Errorf("KeyOff = %v", got)
	}
}

func TestTonalModulation(t *testing.T) {
	v, j := newTestTonal(t)

	v.SetModulation(Effect{}, opn.OutputRight)
	if got := lastArgs(t, j, "SetOutput"); !reflect.DeepEqual(got, []int{1, int(opn.OutputRight)}) {
		t.Errorf("SetOutput = %v", got)
	}
	if len(j.Ops("LFOOff")) != 1 {
		t.Error("LFO not turned off")
	}

	v.SetModulation(Effect{VibratoDepth: 64, VibratoRate: 32}, opn.OutputBoth)
	if got := lastArgs(t, j, "SetLFOPMS"); !reflect.DeepEqual(got, []int{1, 4, int(opn.OutputBoth)}) {
		t.Errorf("SetLFOPMS = %v", got)
	}
	if got := lastArgs(t, j, "LFOOn"); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("LFOOn = %v", got)
	}
}

func TestTonalReset(t *testing.T) {
	v, j := newTestTonal(t)
	v.setChannel(5)
	v.NoteOn(64, 0x00010005, 30, DefaultEffect(), opn.OutputBoth)

	v.Reset()
	if !v.IsFree() || v.Key() != -1 || v.NoteOnCount() != 0 {
		t.Errorf("after Reset: free=%v key=%d count=%d", v.IsFree(), v.Key(), v.NoteOnCount())
	}
	if got := lastArgs(t, j, "SetTone"); !reflect.DeepEqual(got, []int{1, 0}) {
		t.Errorf("SetTone = %v, want program 0", got)
	}
	if got := lastArgs(t, j, "SetVolume"); got[2] != int(totalLevel[DefaultVolume]) {
		t.Errorf("SetVolume = %v, want default level", got)
	}
}

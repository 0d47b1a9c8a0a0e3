package opn

import (
	"fmt"
	"strings"
	"sync"

	"github.com/46nori/FMSynthEnsemble/debug"
)

// Call is one capability invocation captured by a Recorder.
type Call struct {
	Module int
	Op     string
	Args   []int
}

func (c Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = fmt.Sprint(a)
	}
	return fmt.Sprintf("%d:%s(%s)", c.Module, c.Op, strings.Join(args, ","))
}

// Journal is an ordered call log that several Recorders can share, so the
// interleaving of writes across modules is preserved.
type Journal struct {
	mu    sync.Mutex
	calls []Call
	limit int
}

func NewJournal() *Journal {
	return &Journal{}
}

// NewRingJournal keeps only the most recent limit calls.
func NewRingJournal(limit int) *Journal {
	return &Journal{limit: limit}
}

func (j *Journal) add(c Call) {
	j.mu.Lock()
	if j.limit > 0 && len(j.calls) >= j.limit {
		j.calls = append(j.calls[:0], j.calls[1:]...)
	}
	j.calls = append(j.calls, c)
	j.mu.Unlock()
}

// Calls returns a snapshot of the log.
func (j *Journal) Calls() []Call {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Call, len(j.calls))
	copy(out, j.calls)
	return out
}

// Ops returns the calls whose operation name is op.
func (j *Journal) Ops(op string) []Call {
	var out []Call
	for _, c := range j.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (j *Journal) Clear() {
	j.mu.Lock()
	j.calls = nil
	j.mu.Unlock()
}

// Recorder is an in-memory Module. It is the backend for dry runs and the
// stand-in for hardware in tests.
type Recorder struct {
	id      int
	kind    Kind
	journal *Journal

	mu     sync.Mutex
	status uint8
}

// NewRecorder creates a module that appends every call to journal. A nil
// journal gets a private one.
func NewRecorder(id int, kind Kind, journal *Journal) *Recorder {
	if journal == nil {
		journal = NewJournal()
	}
	return &Recorder{id: id, kind: kind, journal: journal}
}

// Journal returns the log this recorder writes to.
func (r *Recorder) Journal() *Journal {
	return r.journal
}

// SetStatus sets the value returned by ReadStatus.
func (r *Recorder) SetStatus(s uint8) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Recorder) record(op string, args ...int) {
	c := Call{Module: r.id, Op: op, Args: args}
	r.journal.add(c)
	debug.Logv(4, "opn", "%s", c)
}

func (r *Recorder) ID() int { return r.id }
func (r *Recorder) Kind() Kind { return r.kind }
func (r *Recorder) Channels() int { return r.kind.Channels() }
func (r *Recorder) Init() { r.record("Init") }

func (r *Recorder) SetAlgorithm(ch, fb, alg uint8) {
	r.record("SetAlgorithm", int(ch), int(fb), int(alg))
}

func (r *Recorder) SetTone(ch uint8, program int) {
	r.record("SetTone", int(ch), program)
}

func (r *Recorder) SetToneParams(ch uint8, tone []byte) {
	args := []int{int(ch)}
	for _, b := range tone {
		args = append(args, int(b))
	}
	r.record("SetToneParams", args...)
}

func (r *Recorder) SetPitch(ch, semitone, octave uint8, diff int16) {
	r.record("SetPitch", int(ch), int(semitone), int(octave), int(diff))
}

func (r *Recorder) KeyOn(ch, ops uint8) { r.record("KeyOn", int(ch), int(ops)) }
func (r *Recorder) KeyOff(ch uint8) { r.record("KeyOff", int(ch)) }

func (r *Recorder) SetDetuneMultiple(ch, op, dt, ml uint8) {
	r.record("SetDetuneMultiple", int(ch), int(op), int(dt), int(ml))
}

func (r *Recorder) SetTotalLevel(ch, op, tl uint8) {
	r.record("SetTotalLevel", int(ch), int(op), int(tl))
}

func (r *Recorder) SetVolume(ch uint8, program int, tl uint8) {
	r.record("SetVolume", int(ch), program, int(tl))
}

func (r *Recorder) SetEnvelope(ch, op uint8, env Envelope) {
	r.record("SetEnvelope", int(ch), int(op),
		int(env.KS), int(env.AR), int(env.DR), int(env.SR), int(env.SL), int(env.RR))
}

func (r *Recorder) SetFNumberCh3(op, hi, lo uint8) {
	r.record("SetFNumberCh3", int(op), int(hi), int(lo))
}

func (r *Recorder) SetTimerA(v uint16) { r.record("SetTimerA", int(v)) }
func (r *Recorder) SetTimerB(v uint8) { r.record("SetTimerB", int(v)) }
func (r *Recorder) SetTimerMode(mode uint8) { r.record("SetTimerMode", int(mode)) }
func (r *Recorder) SetCh3Mode(mode uint8) { r.record("SetCh3Mode", int(mode)) }

func (r *Recorder) ReadStatus() uint8 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Recorder) LFOOn(freq uint8) { r.record("LFOOn", int(freq)) }
func (r *Recorder) LFOOff() { r.record("LFOOff") }

func (r *Recorder) SetLFOPMS(ch, pms uint8, lr Output) {
	r.record("SetLFOPMS", int(ch), int(pms), int(lr))
}

func (r *Recorder) SetOutput(ch uint8, lr Output) {
	r.record("SetOutput", int(ch), int(lr))
}

func (r *Recorder) RhythmOn(rh Rhythm) { r.record("RhythmOn", int(rh)) }
func (r *Recorder) RhythmDamp(rh Rhythm) { r.record("RhythmDamp", int(rh)) }
func (r *Recorder) RhythmTotalLevel(tl uint8) { r.record("RhythmTotalLevel", int(tl)) }

func (r *Recorder) RhythmLevel(rh Rhythm, il uint8, lr Output) {
	r.record("RhythmLevel", int(rh), int(il), int(lr))
}

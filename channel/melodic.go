package channel

import (
	"fmt"
	"strings"

	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/opn"
	"github.com/46nori/FMSynthEnsemble/voice"
)

// Melodic is a channel that plays notes on voices borrowed from the
// allocator. A voice it owns sits in exactly one of three queues:
//
//	active  key sounding
//	held    key released while the sustain pedal is down
//	free    idle, reusable without asking the allocator
//
// Idle voices are reused newest-first and given back to the allocator
// oldest-first.
type Melodic struct {
	base
	alloc *voice.Allocator

	active queue
	held   queue
	free   queue

	speech      bool
	allowSpeech bool
}

// NewMelodic creates channel no drawing voices from alloc.
func NewMelodic(no int, alloc *voice.Allocator) *Melodic {
	return &Melodic{base: newBase(no), alloc: alloc, allowSpeech: true}
}

// DisableSpeech keeps the channel on tonal voices whatever bank is selected.
func (c *Melodic) DisableSpeech() {
	c.allowSpeech = false
	c.speech = false
}

// SpeechMode reports whether new notes request the speech voice.
func (c *Melodic) SpeechMode() bool { return c.speech }

// Active returns the voice indices of sounding notes, oldest first.
func (c *Melodic) Active() []int { return c.active.snapshot() }

// Held returns the voice indices kept alive by the sustain pedal.
func (c *Melodic) Held() []int { return c.held.snapshot() }

// Free returns the idle voice indices the channel still owns.
func (c *Melodic) Free() []int { return c.free.snapshot() }

func (c *Melodic) voiceType() voice.Type {
	if c.speech {
		return voice.TypeSpeech
	}
	return voice.TypeTonal
}

// Reset silences the channel. Sounding and held voices become idle voices
// of the channel so the allocator can reclaim them.
func (c *Melodic) Reset() {
	c.Hold1(0)
	for _, idx := range c.active {
		v := c.alloc.Voice(idx)
		v.NoteOff()
		v.SetNoteOnCount(0)
	}
	c.active.moveAll(&c.free)
	c.base.reset()
	c.speech = false
}

func (c *Melodic) BankSelectLSB(val uint8) {
	c.base.BankSelectLSB(val)
	c.speech = c.allowSpeech && uint32(c.program)>>24 == speechBank
}

// SetVolume applies to every voice still producing sound, held ones included.
func (c *Melodic) SetVolume(vol int) {
	for _, idx := range c.active {
		c.alloc.Voice(idx).SetVolume(vol)
	}
	for _, idx := range c.held {
		c.alloc.Voice(idx).SetVolume(vol)
	}
	c.volume = vol
}

func (c *Melodic) start(v voice.Voice, key int) {
	v.NoteOn(key, c.program, c.voiceVolume(), c.effect, c.lr)
}

func (c *Melodic) NoteOn(key, velocity int) Result {
	if velocity == 0 {
		return c.NoteOff(key)
	}

	// mid tracks the module of the most recently used voice
	mid := voice.AnyModule

	for i, idx := range c.held {
		v := c.alloc.Voice(idx)
		if v.Key() == key {
			v.NoteOff()
			c.start(v, key)
			c.held.removeAt(i)
			c.active.push(idx)
			debug.Logv(1, "ch", "%02d H%02d", c.no, idx)
			return On
		}
		mid = v.ModuleID()
	}
	for _, idx := range c.active {
		v := c.alloc.Voice(idx)
		if v.Key() == key {
			// retrigger keeps the overlap count: each note-on needs its note-off
			n := v.NoteOnCount()
			v.NoteOff()
			c.start(v, key)
			v.SetNoteOnCount(n + 1)
			debug.Logv(1, "ch", "%02d A%02d", c.no, idx)
			return On
		}
		mid = v.ModuleID()
	}

	t := c.voiceType()
	idx, ok := c.takeFree(mid, t, false)
	if ok {
		debug.Logv(1, "ch", "%02d F%02d", c.no, idx)
	} else {
		idx, ok = c.alloc.Allocate(c.no, mid, t)
		if !ok {
			c.relFail++
			debug.Logv(1, "ch", "%02d no voice for key %d", c.no, key)
			return Fail
		}
		debug.Logv(1, "ch", "%02d N%02d", c.no, idx)
	}
	c.start(c.alloc.Voice(idx), key)
	c.active.push(idx)
	return On
}

// NoteOff returns On while overlapping note-ons keep the key sounding, Off
// once the voice is released or held, and Fail for a key that is not active.
func (c *Melodic) NoteOff(key int) Result {
	for i, idx := range c.active {
		v := c.alloc.Voice(idx)
		if v.Key() != key {
			continue
		}
		if v.DecrementNoteOnCount() > 0 {
			debug.Logv(1, "ch", "%02d K%02d", c.no, idx)
			return On
		}
		c.active.removeAt(i)
		if c.hold1 {
			c.held.push(idx)
			debug.Logv(1, "ch", "%02d H%02d", c.no, idx)
		} else {
			v.NoteOff()
			c.free.push(idx)
			debug.Logv(1, "ch", "%02d -%02d", c.no, idx)
		}
		return Off
	}
	debug.Logv(1, "ch", "%02d -?? key %d", c.no, key)
	return Fail
}

// Hold1 releasing the pedal silences every held voice.
func (c *Melodic) Hold1(val int) {
	if val >= 64 {
		c.hold1 = true
		return
	}
	c.hold1 = false
	for _, idx := range c.held {
		c.alloc.Voice(idx).NoteOff()
	}
	c.held.moveAll(&c.free)
}

// takeFree removes an idle voice of type t from the free queue.
//
// Speech voices are rare and drift to the head, so they are searched from
// the head. Otherwise a voice on module mid is preferred, scanning from the
// head when fromFirst is set (oldest idle) and from the tail when not (newest
// idle); with no match the voice of type t nearest the scan start is used.
func (c *Melodic) takeFree(mid int, t voice.Type, fromFirst bool) (int, bool) {
	pick := -1
	match := func(i int) (typeOK, moduleOK bool) {
		v := c.alloc.Voice(c.free[i])
		if v.Type() != t {
			return false, false
		}
		return true, mid == voice.AnyModule || v.ModuleID() == mid
	}

	switch {
	case t == voice.TypeSpeech:
		for i := range c.free {
			if ok, _ := match(i); ok {
				pick = i
				break
			}
		}
	case fromFirst:
		for i := range c.free {
			typeOK, moduleOK := match(i)
			if !typeOK {
				continue
			}
			if pick < 0 {
				pick = i
			}
			if moduleOK {
				pick = i
				break
			}
		}
	default:
		for i := len(c.free) - 1; i >= 0; i-- {
			typeOK, moduleOK := match(i)
			if !typeOK {
				continue
			}
			if pick < 0 {
				pick = i
			}
			if moduleOK {
				pick = i
				break
			}
		}
	}

	if pick < 0 {
		return -1, false
	}
	return c.free.removeAt(pick), true
}

// Release gives the allocator the oldest idle voice of type t, preferring
// one on moduleHint.
func (c *Melodic) Release(moduleHint int, t voice.Type) (int, bool) {
	idx, ok := c.takeFree(moduleHint, t, true)
	if ok {
		c.relSuccess++
	} else {
		c.relFail++
	}
	return idx, ok
}

func (c *Melodic) ReleaseAll() {
	c.active = c.active[:0]
	c.held = c.held[:0]
	c.free = c.free[:0]
}

func (c *Melodic) DataEntryMSB(val uint8) {
	switch {
	case c.rpnMSB == 0:
		switch c.rpnLSB {
		case 0:
			c.effect.BendRange = val
		case 2:
			c.effect.CoarseTune = int8(int(val) - 64)
		}
	case c.nrpnMSB == 1:
		switch c.nrpnLSB {
		case 8:
			c.effect.VibratoRate = val
		case 9:
			c.effect.VibratoDepth = val
		}
	}
}

// PitchBend re-tunes sounding notes only; held notes keep their pitch.
func (c *Melodic) PitchBend(val int16) {
	if c.effect.Bend == val {
		return
	}
	c.effect.Bend = val
	for _, idx := range c.active {
		c.alloc.Voice(idx).SetPitch(c.effect)
	}
}

func (c *Melodic) SetModulation(val uint8) {
	if c.effect.VibratoDepth == val {
		return
	}
	c.effect.VibratoDepth = val
	for _, idx := range c.active {
		c.alloc.Voice(idx).SetModulation(c.effect, c.lr)
	}
}

// SetPan maps the pan value to one of three routings and re-routes sounding
// notes when the routing changes.
func (c *Melodic) SetPan(val uint8) {
	c.pan = int(val)
	lr := panZone(val)
	if lr == c.lr {
		return
	}
	c.lr = lr
	for _, idx := range c.active {
		c.alloc.Voice(idx).SetModulation(c.effect, c.lr)
	}
}

func panZone(val uint8) opn.Output {
	switch {
	case val < 42:
		return opn.OutputLeft
	case val < 84:
		return opn.OutputBoth
	}
	return opn.OutputRight
}

func (c *Melodic) String() string {
	var b strings.Builder
	b.WriteString(c.header())
	typ := "Note"
	if c.speech {
		typ = "CSM"
	}
	fmt.Fprintf(&b, "\n  TYPE=%s\n", typ)
	writeQueue(&b, "  activeQ", c.active)
	writeQueue(&b, "    holdQ", c.held)
	writeQueue(&b, "    freeQ", c.free)
	return b.String()
}

func writeQueue(b *strings.Builder, name string, q queue) {
	fmt.Fprintf(b, "%s=%2d :", name, len(q))
	for _, idx := range q {
		fmt.Fprintf(b, " %2d", idx)
	}
	b.WriteByte('\n')
}

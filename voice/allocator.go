package voice

import (
	"fmt"
	"strings"
)

// Reclaimer is implemented by every channel so the allocator can take idle
// voices back from it.
type Reclaimer interface {
	// Release gives up one idle voice of type t, preferring one on
	// moduleHint. It returns the voice index and false when it has none.
	Release(moduleHint int, t Type) (int, bool)
	// ReleaseAll forgets every voice the channel holds.
	ReleaseAll()
}

type registration struct {
	channel int
	r       Reclaimer
}

// Allocator owns the voice pool. Voices live in a fixed arena and are
// referred to by index everywhere else; an index is also the voice ID.
//
// The allocator is not safe for concurrent use; it belongs to the loop that
// processes MIDI.
type Allocator struct {
	pool       []Voice
	reclaimers []registration
	failed     int
}

func NewAllocator() *Allocator {
	return &Allocator{}
}

// Add appends v to the pool and returns its index. v.ID() must equal the
// index it receives.
func (a *Allocator) Add(v Voice) int {
	idx := len(a.pool)
	if v.ID() != idx {
		panic(fmt.Sprintf("voice: id %d added at index %d", v.ID(), idx))
	}
	a.pool = append(a.pool, v)
	return idx
}

// Voice returns the voice at index i.
func (a *Allocator) Voice(i int) Voice {
	return a.pool[i]
}

func (a *Allocator) Len() int {
	return len(a.pool)
}

// Voices returns the pool in index order.
func (a *Allocator) Voices() []Voice {
	out := make([]Voice, len(a.pool))
	copy(out, a.pool)
	return out
}

// Register adds a channel's reclaim handle. Registration order is channel
// priority: the last registered channel is asked first.
func (a *Allocator) Register(channel int, r Reclaimer) {
	a.reclaimers = append(a.reclaimers, registration{channel: channel, r: r})
}

// Allocate finds a voice of type t for channel.
//
//  1. A free voice on moduleHint (any free voice when moduleHint is
//     AnyModule) is taken at once; the first free voice of the right type
//     is remembered.
//  2. Otherwise the other channels are asked to reclaim an idle voice, in
//     reverse registration order, skipping the requester.
//  3. Otherwise the remembered free voice is used, ignoring affinity.
//
// On failure the failure count is incremented.
func (a *Allocator) Allocate(channel, moduleHint int, t Type) (int, bool) {
	candidate := -1
	for i, v := range a.pool {
		if !v.IsFree() || v.Type() != t {
			continue
		}
		if candidate < 0 {
			candidate = i
		}
		if moduleHint == AnyModule || v.ModuleID() == moduleHint {
			v.setChannel(channel)
			return i, true
		}
	}

	for i := len(a.reclaimers) - 1; i >= 0; i-- {
		reg := a.reclaimers[i]
		if reg.channel == channel {
			continue
		}
		if idx, ok := reg.r.Release(moduleHint, t); ok {
			a.pool[idx].setChannel(channel)
			return idx, true
		}
	}

	if candidate >= 0 {
		a.pool[candidate].setChannel(channel)
		return candidate, true
	}

	a.failed++
	return -1, false
}

// Reset empties every channel's queues and returns every voice to its
// power-on state.
func (a *Allocator) Reset() {
	a.failed = 0
	for _, reg := range a.reclaimers {
		reg.r.ReleaseAll()
	}
	for _, v := range a.pool {
		v.Reset()
	}
}

// Failed returns the number of allocations that found no voice.
func (a *Allocator) Failed() int {
	return a.failed
}

// Dump lists every voice, one per line.
func (a *Allocator) Dump() string {
	var b strings.Builder
	b.WriteString("=== Voice List ===\n")
	for _, v := range a.pool {
		b.WriteString(v.String())
		b.WriteByte('\n')
	}
	return b.String()
}

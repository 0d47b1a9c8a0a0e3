// Package monitor is the debug console: a line shell whose commands reach
// the MIDI loop as command words through a FIFO, plus the mode flags the
// console writes directly.
package monitor

import "fmt"

// Op is the operation in the low byte of a command word.
type Op uint8

const (
	OpReset       Op = 1
	OpDumpChannel Op = 2
	OpDumpVoice   Op = 3
	OpStats       Op = 4
	OpEnable      Op = 5
)

// AllChannels as an OpDumpChannel parameter dumps every channel.
const AllChannels = 0xFF

const maxParam = 1<<24 - 1

func (o Op) String() string {
	switch o {
	case OpReset:
		return "reset"
	case OpDumpChannel:
		return "dump-channel"
	case OpDumpVoice:
		return "dump-voice"
	case OpStats:
		return "stats"
	case OpEnable:
		return "enable"
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// Command is a 32-bit command word: the op in bits 0-7 and a parameter in
// bits 8-31.
type Command uint32

// Encode builds a command word. The parameter is truncated to 24 bits.
func Encode(op Op, param uint32) Command {
	return Command(uint32(op) | (param&maxParam)<<8)
}

func (c Command) Op() Op { return Op(c & 0xFF) }

func (c Command) Param() uint32 { return uint32(c) >> 8 }

func (c Command) String() string {
	return fmt.Sprintf("%s $%x", c.Op(), c.Param())
}

package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrNotFound     = errors.New("not found.")
	ErrParam        = errors.New("param error.")
	ErrMissingParam = errors.New("missing param.")
)

const (
	maxTokens = 4
	maxLevel  = 5
	channels  = 16
)

const helpText = `   <> : mandatory
   [] : optional
h          : Help
dl [0-5]   : Set debug print level
dc [0-15]  : Dump MIDI channel parameters
dv         : Dump MIDI voice parameters
mm [0-1]   : MIDI mode 0:ignore MIDI, 1:process MIDI
me <mask>  : Enable MIDI channels (bit n = channel n)
stats      : Statistics
mreset     : MIDI reset
Numbers are decimal or $hex.`

type command struct {
	name string
	run  func(s *Shell, ctx context.Context, args []string) (string, error)
}

var commands = []command{
	{"dl", (*Shell).debugLevel},
	{"mm", (*Shell).midiMode},
	{"mreset", (*Shell).midiReset},
	{"dc", (*Shell).dumpChannel},
	{"dv", (*Shell).dumpVoice},
	{"stats", (*Shell).stats},
	{"me", (*Shell).enable},
	{"h", (*Shell).help},
}

// Shell parses console lines. Commands that touch the MIDI engine are
// queued as command words; mode changes are applied to the flags at once.
type Shell struct {
	q     *Queue
	flags *Flags
	out   io.Writer
}

func NewShell(q *Queue, flags *Flags, out io.Writer) *Shell {
	return &Shell{q: q, flags: flags, out: out}
}

// Help returns the command summary.
func (s *Shell) Help() string { return helpText }

// Exec runs one command line and returns its reply. An empty line does
// nothing.
func (s *Shell) Exec(ctx context.Context, line string) (string, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return "", nil
	}
	if len(tokens) > maxTokens {
		tokens = tokens[:maxTokens]
	}
	for _, c := range commands {
		if c.name == tokens[0] {
			return c.run(s, ctx, tokens[1:])
		}
	}
	return "", ErrNotFound
}

// Run reads command lines from in until EOF or ctx ends, writing a prompt,
// the echoed line and each reply to the shell's output.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, ">")
		if !sc.Scan() {
			return errors.Wrap(sc.Err(), "console")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := sc.Text()
		fmt.Fprintln(s.out, line)

		reply, err := s.Exec(ctx, line)
		switch {
		case err != nil:
			fmt.Fprintln(s.out, err)
		case reply != "":
			fmt.Fprintln(s.out, reply)
		}
	}
}

// parseUint accepts decimal or $-prefixed hex.
func parseUint(tok string) (uint32, error) {
	base := 10
	if strings.HasPrefix(tok, "$") {
		tok, base = tok[1:], 16
	}
	v, err := strconv.ParseUint(tok, base, 32)
	if err != nil {
		return 0, ErrParam
	}
	return uint32(v), nil
}

func (s *Shell) debugLevel(_ context.Context, args []string) (string, error) {
	if len(args) > 0 {
		n, err := parseUint(args[0])
		if err != nil || n > maxLevel {
			return "", ErrParam
		}
		s.flags.SetLevel(int(n))
	}
	return fmt.Sprintf("Debug Level: %d", s.flags.Level()), nil
}

func (s *Shell) midiMode(_ context.Context, args []string) (string, error) {
	if len(args) > 0 {
		n, err := parseUint(args[0])
		if err != nil {
			return "", err
		}
		s.flags.SetMidiMode(n != 0)
	}
	mode := "OFF"
	if s.flags.MidiMode() {
		mode = "ON"
	}
	return "MIDI Mode: " + mode, nil
}

func (s *Shell) midiReset(ctx context.Context, _ []string) (string, error) {
	return "", s.q.Push(ctx, Encode(OpReset, 0))
}

func (s *Shell) dumpChannel(ctx context.Context, args []string) (string, error) {
	ch := uint32(AllChannels)
	if len(args) > 0 {
		n, err := parseUint(args[0])
		if err != nil || n >= channels {
			return "", ErrParam
		}
		ch = n
	}
	return "", s.q.Push(ctx, Encode(OpDumpChannel, ch))
}

func (s *Shell) dumpVoice(ctx context.Context, _ []string) (string, error) {
	return "", s.q.Push(ctx, Encode(OpDumpVoice, 0))
}

func (s *Shell) stats(ctx context.Context, _ []string) (string, error) {
	return "", s.q.Push(ctx, Encode(OpStats, 0))
}

func (s *Shell) enable(ctx context.Context, args []string) (string, error) {
	if len(args) == 0 {
		return "", ErrMissingParam
	}
	mask, err := parseUint(args[0])
	if err != nil || mask > 0xFFFF {
		return "", ErrParam
	}
	return "", s.q.Push(ctx, Encode(OpEnable, mask))
}

func (s *Shell) help(context.Context, []string) (string, error) {
	return helpText, nil
}

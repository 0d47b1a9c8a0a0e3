package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/pkg/errors"
	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/46nori/FMSynthEnsemble/config"
	"github.com/46nori/FMSynthEnsemble/ensemble"
	"github.com/46nori/FMSynthEnsemble/midi"
	"github.com/46nori/FMSynthEnsemble/voice"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "list":
		err = listPorts()
	case "play":
		err = play(os.Args[2:])
	case "send":
		err = send(os.Args[2:])
	case "frames":
		dumpFrames()
	case "init-config":
		err = initConfig(os.Args[2:])
	case "check":
		err = check(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("FMSynthEnsemble tools")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                 - List all MIDI ports")
	fmt.Println("  play <file> [serial] - Play a standard MIDI file on the modules (dry run without serial)")
	fmt.Println("  send <port> <file>   - Play a standard MIDI file to a MIDI output port")
	fmt.Println("  frames               - Dump the speech word table")
	fmt.Println("  init-config [path]   - Write the default config")
	fmt.Println("  check [path]         - Validate a config")
}

func listPorts() error {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ch <- result{ins: gomidi.GetInPorts(), outs: gomidi.GetOutPorts()}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		return nil
	case <-time.After(3 * time.Second):
		return errors.New("timed out listing MIDI ports")
	}
}

// play runs a file through a full ensemble and prints the statistics.
func play(args []string) error {
	if len(args) < 1 {
		return errors.New("play: missing file")
	}
	player, err := midi.NewPlayer(args[0])
	if err != nil {
		return err
	}

	cfg := config.DefaultConfig()
	if len(args) > 1 {
		cfg.Serial.Port = args[1]
	}
	backend, err := ensemble.OpenBackend(cfg, false, nil)
	if err != nil {
		return err
	}
	defer backend.Close()

	opts := ensemble.OptionsFromConfig(cfg, backend.Modules)
	opts.HardwareTimer = backend.HardwareTimer()
	opts.Report = func(s string) { fmt.Print(s) }
	e := ensemble.Build(opts)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	in := make(chan []byte, 64)
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, in) }()

	fmt.Printf("Playing %s (%d events, %v)\n", args[0], len(player.Events()), player.Duration().Round(time.Millisecond))
	perr := player.Play(ctx, func(b []byte) { in <- b })
	close(in)
	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	fmt.Print(e.Stats())
	if backend.Journal != nil {
		fmt.Printf("Register writes recorded: %d\n", len(backend.Journal.Calls()))
	}
	if perr != nil && !errors.Is(perr, context.Canceled) {
		return perr
	}
	return nil
}

// send plays a file to an external port, e.g. a module fed by another
// host.
func send(args []string) error {
	if len(args) < 2 {
		return errors.New("send: need <port> <file>")
	}
	player, err := midi.NewPlayer(args[1])
	if err != nil {
		return err
	}

	var out drivers.Out
	for _, p := range gomidi.GetOutPorts() {
		if strings.Contains(strings.ToLower(p.String()), strings.ToLower(args[0])) {
			out = p
			break
		}
	}
	if out == nil {
		return errors.Errorf("no output port matching %q", args[0])
	}
	sendFn, err := gomidi.SendTo(out)
	if err != nil {
		return errors.Wrapf(err, "open %s", out.String())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Sending %s to %s\n", args[1], out.String())
	var failed int
	err = player.Play(ctx, func(b []byte) {
		if sendFn(gomidi.Message(b)) != nil {
			failed++
		}
	})
	// Leave the target silent, including after Ctrl-C.
	for ch := uint8(0); ch < 16; ch++ {
		sendFn(gomidi.ControlChange(ch, midi.CCAllNotesOff, 0))
	}
	if failed > 0 {
		fmt.Printf("%d messages failed\n", failed)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func dumpFrames() {
	p := voice.DefaultPhonetics()
	fmt.Printf("%d frames\n", len(p.Frames))
	for key, u := range p.Utterances {
		fmt.Printf("  key %2d  %-12s start=%4d len=%3d\n", key, u.Name, u.Start, u.Length)
	}
}

func configPath(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return config.ConfigPath()
}

func initConfig(args []string) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return errors.Errorf("%s already exists", path)
	}
	if err := config.DefaultConfig().SaveFile(path); err != nil {
		return err
	}
	fmt.Println("Wrote", path)
	return nil
}

func check(args []string) error {
	path, err := configPath(args)
	if err != nil {
		return err
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	fmt.Printf("%s: %d modules, rhythm on module %d, speech %v, channels %04x\n",
		path, len(cfg.Modules), cfg.RhythmModule, cfg.Speech.Enabled, cfg.EnabledChannels)
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"

	"github.com/46nori/FMSynthEnsemble/config"
	"github.com/46nori/FMSynthEnsemble/debug"
	"github.com/46nori/FMSynthEnsemble/ensemble"
	"github.com/46nori/FMSynthEnsemble/midi"
	"github.com/46nori/FMSynthEnsemble/monitor"
	"github.com/46nori/FMSynthEnsemble/theme"
	"github.com/46nori/FMSynthEnsemble/tui"
)

const reportDepth = 64

func main() {
	var (
		cfgPath = flag.String("config", "", "config file (default ~/.config/fmsynth-ensemble/config.json)")
		level   = flag.Int("debug", -1, "debug level 0-5 (overrides config)")
		port    = flag.String("serial", "", "serial port of the module bridge (overrides config)")
		baud    = flag.Int("baud", 0, "serial baud rate (overrides config)")
		dryRun  = flag.Bool("dry-run", false, "record register writes instead of opening the serial port")
		noTUI   = flag.Bool("no-tui", false, "line console on stdin instead of the terminal UI")
	)
	flag.Parse()

	if err := run(*cfgPath, *level, *port, *baud, *dryRun, *noTUI); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %+v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath string, level int, port string, baud int, dryRun, noTUI bool) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Serial.Port = port
	}
	if baud != 0 {
		cfg.Serial.Baud = baud
	}
	if level >= 0 {
		cfg.DebugLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := initLogger(noTUI)
	debug.SetLevel(cfg.DebugLevel)
	if cfg.LogFile {
		if err := debug.Enable(); err != nil {
			return errors.Wrap(err, "debug log")
		}
		defer debug.Disable()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	backend, err := ensemble.OpenBackend(cfg, dryRun, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	reports := make(chan string, reportDepth)
	opts := ensemble.OptionsFromConfig(cfg, backend.Modules)
	opts.HardwareTimer = backend.HardwareTimer()
	opts.Logger = logger
	opts.Report = func(s string) {
		select {
		case reports <- s:
		default:
			debug.Log("report", "dropped %d bytes of output", len(s))
		}
	}
	e := ensemble.Build(opts)

	dm := midi.NewDeviceManager(cfg, logger)
	go dm.Run(ctx)

	loopErr := make(chan error, 1)
	go func() { loopErr <- e.Run(ctx, dm.Messages()) }()

	if noTUI {
		go watchDevices(ctx, dm, e, logger)
		go printReports(ctx, reports)
		shell := monitor.NewShell(e.Queue(), e.Flags(), os.Stdout)
		fmt.Println(shell.Help())
		go func() {
			if err := shell.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
				logger.Info("console closed", "error", err)
			}
			stop()
		}()
	} else {
		th, err := loadTheme(cfg.Palette)
		if err != nil {
			return err
		}
		shell := monitor.NewShell(e.Queue(), e.Flags(), os.Stdout)
		m := tui.NewModel(e, shell, dm, reports, th)
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			return errors.Wrap(err, "terminal UI")
		}
		stop()
	}

	if err := <-loopErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

func loadTheme(palette string) (*theme.Theme, error) {
	if palette == "" {
		return theme.New(nil), nil
	}
	p, err := theme.LoadGPL(palette)
	if err != nil {
		return nil, err
	}
	return theme.New(p), nil
}

// initLogger sends lifecycle logs to stderr in line mode and to the debug
// log under the terminal UI, where stderr would corrupt the screen.
func initLogger(lineMode bool) *slog.Logger {
	if lineMode {
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
		slog.SetDefault(logger)
		return logger
	}
	logger := slog.New(slog.NewTextHandler(debugWriter{}, nil))
	slog.SetDefault(logger)
	return logger
}

type debugWriter struct{}

func (debugWriter) Write(p []byte) (int, error) {
	debug.Log("slog", "%s", p)
	return len(p), nil
}

// watchDevices attaches Launchpads as the front panel when no terminal UI
// is consuming device events.
func watchDevices(ctx context.Context, dm *midi.DeviceManager, e *ensemble.Ensemble, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-dm.Events():
			if ev.Type != midi.DeviceConnected {
				logger.Info("device disconnected", "id", ev.ID)
				continue
			}
			logger.Info("device connected", "id", ev.ID, "type", ev.Controller.Type())
			if ev.Controller.Type() == midi.ControllerLaunchpad {
				e.AttachPanel(ev.Controller)
			}
		}
	}
}

func printReports(ctx context.Context, reports <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-reports:
			fmt.Print(s)
			if len(s) > 0 && s[len(s)-1] != '\n' {
				fmt.Println()
			}
		}
	}
}

package midi

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/46nori/FMSynthEnsemble/config"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register MIDI driver
)

const messageDepth = 256

// DeviceEvent is emitted when controllers connect/disconnect
type DeviceEvent struct {
	Type       DeviceEventType
	Controller Controller
	ID         string
}

type DeviceEventType int

const (
	DeviceConnected DeviceEventType = iota
	DeviceDisconnected
)

// DeviceManager handles hot-plug detection of MIDI controllers. Keyboard
// input is merged into a single raw message stream; Launchpads are reported
// through Events for use as a front panel.
type DeviceManager struct {
	cfg    *config.Config
	logger *slog.Logger

	controllers map[string]Controller
	mu          sync.RWMutex
	events      chan DeviceEvent
	messages    chan []byte
	dropped     atomic.Uint64
	pollRate    time.Duration
}

// NewDeviceManager creates a new device manager. cfg selects which ports
// are opened; a nil logger uses slog.Default().
func NewDeviceManager(cfg *config.Config, logger *slog.Logger) *DeviceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceManager{
		cfg:         cfg,
		logger:      logger,
		controllers: make(map[string]Controller),
		events:      make(chan DeviceEvent, 16),
		messages:    make(chan []byte, messageDepth),
		pollRate:    time.Second,
	}
}

// Events returns a channel of device connect/disconnect events
func (dm *DeviceManager) Events() <-chan DeviceEvent {
	return dm.events
}

// Messages returns the merged raw MIDI input of every connected keyboard.
func (dm *DeviceManager) Messages() <-chan []byte {
	return dm.messages
}

// Dropped returns the number of messages discarded because the consumer
// fell behind.
func (dm *DeviceManager) Dropped() uint64 {
	return dm.dropped.Load()
}

// Controllers returns a snapshot of connected controllers
func (dm *DeviceManager) Controllers() map[string]Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	copy := make(map[string]Controller, len(dm.controllers))
	for k, v := range dm.controllers {
		copy[k] = v
	}
	return copy
}

// GetLaunchpad returns the first connected Launchpad (or nil)
func (dm *DeviceManager) GetLaunchpad() Controller {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	for _, c := range dm.controllers {
		if c.Type() == ControllerLaunchpad {
			return c
		}
	}
	return nil
}

// Run starts the polling loop (blocking - run in goroutine)
func (dm *DeviceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(dm.pollRate)
	defer ticker.Stop()

	dm.scan(ctx)

	for {
		select {
		case <-ctx.Done():
			dm.closeAll()
			close(dm.events)
			return
		case <-ticker.C:
			dm.scan(ctx)
		}
	}
}

// deliver runs on driver goroutines.
func (dm *DeviceManager) deliver(msg []byte) {
	select {
	case dm.messages <- slices.Clone(msg):
	default:
		dm.dropped.Add(1)
	}
}

func (dm *DeviceManager) scan(ctx context.Context) {
	// Get current MIDI ports with timeout (CoreMIDI can hang)
	type portsResult struct {
		inPorts  []drivers.In
		outPorts []drivers.Out
	}

	ch := make(chan portsResult, 1)
	go func() {
		ch <- portsResult{inPorts: gomidi.GetInPorts(), outPorts: gomidi.GetOutPorts()}
	}()

	var inPorts []drivers.In
	var outPorts []drivers.Out

	select {
	case result := <-ch:
		inPorts = result.inPorts
		outPorts = result.outPorts
	case <-time.After(3 * time.Second):
		dm.logger.Warn("MIDI port scan timed out")
		return
	case <-ctx.Done():
		return
	}

	seenIDs := make(map[string]bool)
	var pending []DeviceEvent

	for i, inPort := range inPorts {
		id := inPort.String()
		kind := dm.classify(id)
		if kind == ControllerUnknown {
			continue
		}
		seenIDs[id] = true

		dm.mu.RLock()
		_, exists := dm.controllers[id]
		dm.mu.RUnlock()
		if exists {
			continue
		}

		var (
			c   Controller
			err error
		)
		if kind == ControllerLaunchpad {
			c, err = NewLaunchpadController(id, inPorts[i], matchOutPort(id, outPorts))
		} else {
			c, err = NewKeyboardController(id, inPorts[i], dm.deliver)
		}
		if err != nil {
			dm.logger.Warn("controller open failed", "port", id, "type", kind, "error", err)
			continue
		}
		dm.logger.Info("controller connected", "port", id, "type", kind)

		dm.mu.Lock()
		dm.controllers[id] = c
		dm.mu.Unlock()
		pending = append(pending, DeviceEvent{Type: DeviceConnected, Controller: c, ID: id})
	}

	dm.mu.Lock()
	for id, c := range dm.controllers {
		if !seenIDs[id] {
			c.Close()
			delete(dm.controllers, id)
			dm.logger.Info("controller disconnected", "port", id)
			pending = append(pending, DeviceEvent{Type: DeviceDisconnected, ID: id})
		}
	}
	dm.mu.Unlock()

	for _, ev := range pending {
		select {
		case dm.events <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// classify decides how an input port is used. Launchpads become the panel
// unless configured off. Other ports are keyboards: all of them when no
// keyboard is configured, otherwise only the configured auto-connect ones.
func (dm *DeviceManager) classify(name string) ControllerType {
	saved := dm.cfg.FindController(name)
	if saved != nil && !saved.AutoConnect {
		return ControllerUnknown
	}
	switch {
	case isLaunchpad(name):
		return ControllerLaunchpad
	case isThrough(name):
		return ControllerUnknown
	case !dm.cfg.HasKeyboards():
		return ControllerKeyboard
	case saved != nil && saved.Type == config.ControllerKeyboard:
		return ControllerKeyboard
	}
	return ControllerUnknown
}

func matchOutPort(name string, outPorts []drivers.Out) drivers.Out {
	for _, op := range outPorts {
		if strings.EqualFold(op.String(), name) {
			return op
		}
	}
	return nil
}

func (dm *DeviceManager) closeAll() {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	for _, c := range dm.controllers {
		c.Close()
	}
	dm.controllers = make(map[string]Controller)
}

func isLaunchpad(name string) bool {
	name = strings.ToLower(name)
	return strings.Contains(name, "launchpad") && strings.Contains(name, "midi")
}

// isThrough matches loopback ports such as "Midi Through Port-0".
func isThrough(name string) bool {
	return strings.Contains(strings.ToLower(name), "through")
}

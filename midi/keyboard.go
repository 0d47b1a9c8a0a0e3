package midi

import (
	"fmt"

	"github.com/46nori/FMSynthEnsemble/debug"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
)

// KeyboardController handles a standard MIDI keyboard or any other input
// port whose messages go to the processor unchanged.
type KeyboardController struct {
	id       string
	inPort   drivers.In
	stopFunc func()

	padChan chan PadEvent
}

// NewKeyboardController creates a keyboard controller (input only). Every
// message received, system exclusive included, is passed to sink as raw bytes.
// sink runs on the driver's goroutine.
func NewKeyboardController(id string, inPort drivers.In, sink func([]byte)) (*KeyboardController, error) {
	kb := &KeyboardController{
		id:      id,
		inPort:  inPort,
		padChan: make(chan PadEvent),
	}

	if inPort != nil {
		stop, err := gomidi.ListenTo(inPort, func(msg gomidi.Message, timestampms int32) {
			sink(msg.Bytes())
		}, gomidi.UseSysEx(), gomidi.HandleError(func(err error) {
			debug.Log("keyboard", "%s: %v", id, err)
		}))
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		kb.stopFunc = stop
	}

	return kb, nil
}

func (kb *KeyboardController) ID() string {
	return kb.id
}

func (kb *KeyboardController) Type() ControllerType {
	return ControllerKeyboard
}

func (kb *KeyboardController) PadEvents() <-chan PadEvent {
	return kb.padChan // Keyboards don't have pads
}

// SetLEDBatch is a no-op for keyboards
func (kb *KeyboardController) SetLEDBatch(updates []LEDUpdate) error {
	return nil
}

func (kb *KeyboardController) Close() error {
	if kb.stopFunc != nil {
		kb.stopFunc()
	}
	close(kb.padChan)
	return nil
}

package ensemble

import (
	"io"
	"log/slog"

	"github.com/46nori/FMSynthEnsemble/config"
	"github.com/46nori/FMSynthEnsemble/opn"
)

const dryRunJournal = 4096

// Backend is the set of modules an ensemble plays on, plus whatever has to
// be closed when playback ends.
type Backend struct {
	Modules []opn.Module
	Journal *opn.Journal // set for the in-memory backend
	Link    *opn.Link    // set for the serial backend
}

// Close releases the serial link, if any.
func (b *Backend) Close() error {
	if b.Link == nil {
		return nil
	}
	return b.Link.Close()
}

// HardwareTimer reports whether the modules have a real timer B whose
// overflow flag can pace speech frames.
func (b *Backend) HardwareTimer() bool { return b.Link != nil }

var _ io.Closer = (*Backend)(nil)

// OpenBackend creates the modules described by cfg. With no serial port, or
// with dryRun set, the modules are in-memory recorders sharing one bounded
// journal.
func OpenBackend(cfg *config.Config, dryRun bool, logger *slog.Logger) (*Backend, error) {
	if dryRun || cfg.Serial.Port == "" {
		j := opn.NewRingJournal(dryRunJournal)
		b := &Backend{Journal: j}
		for i, m := range cfg.Modules {
			b.Modules = append(b.Modules, opn.NewRecorder(i, opn.Kind(m.Kind), j))
		}
		return b, nil
	}

	baud := cfg.Serial.Baud
	if baud == 0 {
		baud = config.DefaultBaud
	}
	link, err := opn.OpenSerial(cfg.Serial.Port, baud, logger)
	if err != nil {
		return nil, err
	}
	b := &Backend{Link: link}
	for i, m := range cfg.Modules {
		b.Modules = append(b.Modules, link.Module(i, opn.Kind(m.Kind)))
	}
	return b, nil
}

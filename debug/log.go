package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled atomic.Bool
	level   atomic.Int32
)

// Dir is where the debug log is written.
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "fmsynth-ensemble")
}

// Enable starts debug logging to ~/.config/fmsynth-ensemble/debug.log
func Enable() error {
	return EnableFile(filepath.Join(Dir(), "debug.log"))
}

// EnableFile starts debug logging to path, truncating it.
func EnableFile(path string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled.Load() {
		return nil
	}

	os.MkdirAll(filepath.Dir(path), 0755)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled.Store(true)

	// Write directly (can't call Log - we hold the mutex)
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, "debug", "=== Debug logging started ===")
	file.Sync()

	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled.Store(false)
}

// Enabled reports whether a log file is open.
func Enabled() bool {
	return enabled.Load()
}

// SetLevel sets the diagnostic verbosity used by Logv.
//
//	0  off
//	1  note and voice events
//	2  program changes
//	3  controllers and system messages
//	4  clock, active sensing and raw module writes
func SetLevel(n int) {
	level.Store(int32(n))
}

// Level returns the current verbosity.
func Level() int {
	return int(level.Load())
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	if !enabled.Load() {
		return
	}

	mu.Lock()
	defer mu.Unlock()

	if file == nil {
		return
	}

	ts := time.Now().Format("15:04:05.000")
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(file, "[%s] %-10s %s\n", ts, category, msg)
	file.Sync() // flush immediately so we see logs even on crash
}

// Logv logs only when the verbosity is at least n. The level check comes
// first so disabled calls cost one atomic load.
func Logv(n int, category, format string, args ...any) {
	if int(level.Load()) < n || !enabled.Load() {
		return
	}
	Log(category, format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	if !enabled.Load() {
		return
	}

	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

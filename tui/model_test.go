package tui

import (
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/46nori/FMSynthEnsemble/ensemble"
	"github.com/46nori/FMSynthEnsemble/monitor"
	"github.com/46nori/FMSynthEnsemble/opn"
)

func newModel(t *testing.T) (Model, *ensemble.Ensemble) {
	t.Helper()
	j := opn.NewRingJournal(64)
	e := ensemble.Build(ensemble.Options{
		Modules: []opn.Module{opn.NewRecorder(0, opn.YM2608, j)},
		Enabled: 0xFFFF,
	})
	sh := monitor.NewShell(e.Queue(), e.Flags(), io.Discard)
	return NewModel(e, sh, nil, nil, nil), e
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeLine(t *testing.T, m Model, line string) Model {
	t.Helper()
	for _, r := range line {
		msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
		if r == ' ' {
			msg.Type = tea.KeySpace
		}
		m, _ = update(t, m, msg)
	}
	return m
}

func TestTypingAndHelp(t *testing.T) {
	m, _ := newModel(t)
	m = typeLine(t, m, "dc 3x")
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	if got := m.input.Value(); got != "dc 3" {
		t.Fatalf("input = %q", got)
	}

	m.input.SetValue("?")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("key help should not run a command")
	}
	if m.input.Value() != "" {
		t.Errorf("input not cleared: %q", m.input.Value())
	}
	got := strings.Join(m.lines, "\n")
	for _, want := range []string{"ctrl+t", "click EN", "Commands"} {
		if !strings.Contains(got, want) {
			t.Errorf("help lacks %q:\n%s", want, got)
		}
	}
}

func TestExecQueuesCommand(t *testing.T) {
	m, e := newModel(t)
	m = typeLine(t, m, "stats")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should run the line")
	}
	res := cmd()
	c, ok := e.Queue().TryPop()
	if !ok || c.Op() != monitor.OpStats {
		t.Fatalf("queued %v %v", c, ok)
	}

	m, _ = update(t, m, res)
	if len(m.lines) != 1 || !strings.HasSuffix(m.lines[0], " stats") {
		t.Errorf("lines = %q", m.lines)
	}
}

func TestExecError(t *testing.T) {
	m, _ := newModel(t)
	m = typeLine(t, m, "bogus")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = update(t, m, cmd())
	if got := m.lines[len(m.lines)-1]; got != monitor.ErrNotFound.Error() {
		t.Errorf("last line = %q", got)
	}
}

func TestToggleSelectedChannel(t *testing.T) {
	m, e := newModel(t)
	m, _ = update(t, m, tickMsg{})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	if m.cursor != 15 {
		t.Fatalf("cursor = %d", m.cursor)
	}
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	if msg := cmd(); msg != nil {
		t.Fatalf("push: %v", msg)
	}
	c, ok := e.Queue().TryPop()
	if !ok || c.Op() != monitor.OpEnable || c.Param() != 0x7FFF {
		t.Errorf("queued %v", c)
	}
}

func TestSnapshotAndReports(t *testing.T) {
	m, e := newModel(t)
	e.Feed([]byte{0x93, 60, 100})
	m, _ = update(t, m, tickMsg{})
	if m.noteOn != 1<<3 || m.enabled != 0xFFFF {
		t.Errorf("snapshot %04x %04x", m.noteOn, m.enabled)
	}

	m, _ = update(t, m, ReportMsg("a\nb\n"))
	if strings.Join(m.lines, "|") != "a|b" {
		t.Errorf("lines = %q", m.lines)
	}

	for i := 0; i < scrollback; i++ {
		m.appendLines("x")
	}
	if len(m.lines) != scrollback {
		t.Errorf("scrollback = %d", len(m.lines))
	}
}

func TestViewAndTooltip(t *testing.T) {
	m, _ := newModel(t)
	v := m.View()
	if !strings.Contains(v, "MIDI:ON") || !strings.Contains(v, "voices:6") {
		t.Errorf("view header missing:\n%s", v)
	}
	m, _ = update(t, m, tickMsg{})
	got := m.hitTest(5+9*3, m.bounds.switchRow)
	if got != "CH 09 percussion, enabled" {
		t.Errorf("tooltip = %q", got)
	}
	if got := m.hitTest(0, 0); got != "" {
		t.Errorf("tooltip off grid = %q", got)
	}
}

func TestQuit(t *testing.T) {
	m, _ := newModel(t)
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if !m.quitting || cmd == nil {
		t.Fatal("esc should quit")
	}
	if m.View() != "" {
		t.Error("view after quit should be empty")
	}
}

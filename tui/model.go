package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/46nori/FMSynthEnsemble/channel"
	"github.com/46nori/FMSynthEnsemble/ensemble"
	"github.com/46nori/FMSynthEnsemble/midi"
	"github.com/46nori/FMSynthEnsemble/monitor"
	"github.com/46nori/FMSynthEnsemble/theme"
	"github.com/46nori/FMSynthEnsemble/widgets"
)

const (
	refreshRate  = 50 * time.Millisecond
	pushTimeout  = time.Second
	scrollback   = 200
	visibleLines = 12
)

// layoutBounds holds cached layout info
type layoutBounds struct {
	keyRow    int
	switchRow int
}

type Model struct {
	Ensemble  *ensemble.Ensemble
	Shell     *monitor.Shell
	DeviceMgr *midi.DeviceManager
	Theme     *theme.Theme
	Reports   <-chan string

	input      textinput.Model
	keys       keyMap
	help       help.Model
	lines      []string
	cursor     int
	noteOn     uint16
	enabled    uint16
	quitting   bool
	tooltip    string
	bounds     *layoutBounds
	controller midi.Controller // current front panel (may be nil)
}

type tickMsg struct{}

// ReportMsg carries output of the MIDI loop to the console.
type ReportMsg string

type DeviceEventMsg midi.DeviceEvent

type pushFailedMsg struct {
	cmd monitor.Command
	err error
}

type shellResultMsg struct {
	line  string
	reply string
	err   error
}

func NewModel(e *ensemble.Ensemble, shell *monitor.Shell, deviceMgr *midi.DeviceManager, reports <-chan string, th *theme.Theme) Model {
	if th == nil {
		th = theme.New(nil)
	}
	ti := textinput.New()
	ti.Prompt = string(th.Symbols.Prompt) + " "
	ti.Placeholder = "h for commands"
	ti.CharLimit = 40
	ti.Focus()

	hm := help.New()
	hm.Styles.ShortKey = lipgloss.NewStyle().Foreground(th.FG())
	hm.Styles.ShortDesc = lipgloss.NewStyle().Foreground(th.Muted())
	hm.Styles.ShortSeparator = lipgloss.NewStyle().Foreground(th.Muted())

	return Model{
		Ensemble:  e,
		Shell:     shell,
		DeviceMgr: deviceMgr,
		Theme:     th,
		Reports:   reports,
		input:     ti,
		keys:      newKeyMap(),
		help:      hm,
		bounds:    &layoutBounds{},
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshRate, func(time.Time) tea.Msg { return tickMsg{} })
}

func ListenForReports(reports <-chan string) tea.Cmd {
	if reports == nil {
		return nil
	}
	return func() tea.Msg {
		out, ok := <-reports
		if !ok {
			return nil
		}
		return ReportMsg(out)
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event := <-deviceMgr.Events()
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(),
		ListenForReports(m.Reports),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Left):
			m.cursor = (m.cursor + channel.Count - 1) % channel.Count
		case key.Matches(msg, m.keys.Right):
			m.cursor = (m.cursor + 1) % channel.Count

		case key.Matches(msg, m.keys.Toggle):
			return m, m.toggle(m.cursor)
		case key.Matches(msg, m.keys.Reset):
			return m, m.push(monitor.Encode(monitor.OpReset, 0))

		case key.Matches(msg, m.keys.Run):
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			switch line {
			case "":
				return m, nil
			case "?":
				m.appendLines(m.keys.Help())
				return m, nil
			}
			return m, m.exec(line)

		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		m.tooltip = m.hitTest(msg.X, msg.Y)
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft && msg.Y == m.bounds.switchRow {
			if ch := widgets.SlotAt(msg.X, channel.Count); ch >= 0 {
				m.cursor = ch
				return m, m.toggle(ch)
			}
		}

	case tickMsg:
		m.noteOn, m.enabled = m.Ensemble.Snapshot()
		return m, tick()

	case ReportMsg:
		m.appendLines(string(msg))
		return m, ListenForReports(m.Reports)

	case pushFailedMsg:
		m.appendLines(fmt.Sprintf("%v: %v", msg.cmd, msg.err))

	case shellResultMsg:
		m.appendLines(string(m.Theme.Symbols.Prompt) + " " + msg.line)
		switch {
		case msg.err != nil:
			m.appendLines(msg.err.Error())
		case msg.reply != "":
			m.appendLines(msg.reply)
		}

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		cmds := []tea.Cmd{ListenForDevices(m.DeviceMgr)}
		switch event.Type {
		case midi.DeviceConnected:
			m.appendLines(fmt.Sprintf("connected: %s (%s)", event.ID, event.Controller.Type()))
			if event.Controller.Type() == midi.ControllerLaunchpad {
				m.controller = event.Controller
				ctrl := event.Controller
				cmds = append(cmds, func() tea.Msg {
					m.Ensemble.AttachPanel(ctrl)
					return nil
				})
			}
		case midi.DeviceDisconnected:
			m.appendLines("disconnected: " + event.ID)
			if m.controller != nil && m.controller.ID() == event.ID {
				m.controller = nil
			}
		}
		return m, tea.Batch(cmds...)
	}

	return m, nil
}

// exec runs a console line off the UI goroutine; queued commands may block
// while the MIDI loop is busy.
func (m Model) exec(line string) tea.Cmd {
	shell := m.Shell
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		reply, err := shell.Exec(ctx, line)
		return shellResultMsg{line: line, reply: reply, err: err}
	}
}

func (m Model) push(c monitor.Command) tea.Cmd {
	q := m.Ensemble.Queue()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		defer cancel()
		if err := q.Push(ctx, c); err != nil {
			return pushFailedMsg{cmd: c, err: err}
		}
		return nil
	}
}

func (m Model) toggle(ch int) tea.Cmd {
	return m.push(monitor.Encode(monitor.OpEnable, uint32(m.enabled^1<<ch)))
}

func (m *Model) appendLines(text string) {
	for _, l := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		m.lines = append(m.lines, l)
	}
	if over := len(m.lines) - scrollback; over > 0 {
		m.lines = m.lines[over:]
	}
}

func (m Model) hitTest(x, y int) string {
	if y != m.bounds.keyRow && y != m.bounds.switchRow {
		return ""
	}
	ch := widgets.SlotAt(x, channel.Count)
	if ch < 0 {
		return ""
	}
	kind := "melodic"
	if ch == channel.PercussionNumber {
		kind = "percussion"
	}
	state := "disabled"
	if m.enabled&(1<<ch) != 0 {
		state = "enabled"
	}
	if m.noteOn&(1<<ch) != 0 {
		state += ", sounding"
	}
	return fmt.Sprintf("CH %02d %s, %s", ch, kind, state)
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	// Styles
	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	logStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	tooltipStyle := lipgloss.NewStyle().
		Foreground(m.Theme.FG()).
		Background(m.Theme.Muted()).
		Padding(0, 1)

	mode := "OFF"
	if m.Ensemble.Flags().MidiMode() {
		mode = "ON"
	}
	deviceStatus := ""
	if m.controller != nil {
		deviceStatus = "  LP:X"
	}
	dropped := uint64(0)
	if m.DeviceMgr != nil {
		dropped = m.DeviceMgr.Dropped()
	}
	header := headerStyle.Render(fmt.Sprintf("FMSynthEnsemble  MIDI:%s  dl:%d  voices:%d  dropped:%d%s",
		mode, m.Ensemble.Flags().Level(), m.Ensemble.Allocator().Len(), dropped, deviceStatus))

	sym := m.Theme.Symbols
	keys := make([]widgets.Cell, channel.Count)
	switches := make([]widgets.Cell, channel.Count)
	for ch := 0; ch < channel.Count; ch++ {
		on := m.noteOn&(1<<ch) != 0
		en := m.enabled&(1<<ch) != 0
		keys[ch] = widgets.Cell{Symbol: sym.LEDOff, Color: midi.ChannelColor(ch, on, en)}
		if on {
			keys[ch].Symbol = sym.LEDOn
		}
		switches[ch] = widgets.Cell{Symbol: sym.SwitchOff, Color: [3]uint8(m.Theme.RGB(theme.RoleMuted))}
		if en {
			switches[ch] = widgets.Cell{Symbol: sym.SwitchOn, Color: [3]uint8(m.Theme.RGB(theme.RoleSuccess))}
		}
	}

	// Layout: blank, header, blank, channel numbers, key row, switch row.
	m.bounds.keyRow = 4
	m.bounds.switchRow = 5

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")
	out.WriteString(widgets.RenderChannelHeader("CH", channel.Count, [3]uint8(m.Theme.RGB(theme.RoleFG))))
	out.WriteString("\n")
	out.WriteString(widgets.RenderRow("KEY", keys))
	out.WriteString("\n")
	out.WriteString(widgets.RenderRow("EN", switches))
	out.WriteString("\n")
	out.WriteString(widgets.RenderMarker(m.cursor, sym.Cursor, [3]uint8(m.Theme.RGB(theme.RoleCursor))))
	out.WriteString("\n")
	out.WriteString(widgets.RenderLegendItem(midi.ChannelColor(m.cursor, true, true), "KEY", "note sounding, dim when idle"))
	out.WriteString("\n")
	out.WriteString(widgets.RenderLegendItem(midi.ChannelColor(m.cursor, false, false), "disabled", "channel ignored"))
	out.WriteString("\n\n")

	start := max(0, len(m.lines)-visibleLines)
	for i := start; i < start+visibleLines; i++ {
		if i < len(m.lines) {
			out.WriteString(logStyle.Render(m.lines[i]))
		}
		out.WriteString("\n")
	}

	out.WriteString(m.input.View())
	out.WriteString("\n\n")
	out.WriteString(m.help.ShortHelpView(m.keys.ShortHelp()))

	if m.tooltip != "" {
		out.WriteString("\n")
		out.WriteString(tooltipStyle.Render(m.tooltip))
	}

	return out.String()
}

type keyMap struct {
	Run    key.Binding
	Left   key.Binding
	Right  key.Binding
	Toggle key.Binding
	Reset  key.Binding
	Quit   key.Binding
}

func Key(help string, keyboardKey ...string) key.Binding {
	return key.NewBinding(key.WithKeys(keyboardKey...), key.WithHelp(keyboardKey[0], help))
}

func newKeyMap() keyMap {
	return keyMap{
		Run:    Key("run command", "enter"),
		Left:   Key("previous channel", "left"),
		Right:  Key("next channel", "right"),
		Toggle: Key("enable/disable channel", "ctrl+t"),
		Reset:  Key("MIDI reset", "ctrl+r"),
		Quit:   Key("quit", "esc", "ctrl+c"),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Left, k.Right, k.Toggle, k.Reset, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Run, k.Quit}, {k.Left, k.Right, k.Toggle, k.Reset}}
}

// Help lists the bindings for the scrollback, including the mouse.
func (k keyMap) Help() string {
	section := func(title string, bs []key.Binding) widgets.KeySection {
		sec := widgets.KeySection{Title: title}
		for _, b := range bs {
			sec.Keys = append(sec.Keys, widgets.KeyBinding{Key: b.Help().Key, Desc: b.Help().Desc})
		}
		return sec
	}
	full := k.FullHelp()
	channels := section("Channels", full[1])
	channels.Keys = append(channels.Keys, widgets.KeyBinding{Key: "click EN", Desc: "enable/disable channel"})
	return widgets.RenderKeyHelp([]widgets.KeySection{
		section("Console", full[0]),
		channels,
		{Title: "Commands", Keys: []widgets.KeyBinding{{Key: "h", Desc: "console command list"}, {Key: "?", Desc: "this list"}}},
	})
}

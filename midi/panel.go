package midi

// PanelAction is what a pad press on the front panel asks for.
type PanelAction int

const (
	PanelNone PanelAction = iota
	PanelToggle
	PanelReset
)

// Front panel layout: the two bottom rows are channels 0-7 and 8-15, the
// top scene button resets.
const (
	panelRows = 2
	panelCols = 8
	resetRow  = 7
	resetCol  = 8
)

var (
	colorOff      = [3]uint8{0, 0, 0}
	colorDisabled = [3]uint8{180, 60, 60}
	colorReset    = [3]uint8{255, 100, 0}
)

// PadAction maps a pad press to a panel action. For PanelToggle the second
// result is the MIDI channel.
func PadAction(ev PadEvent) (PanelAction, int) {
	switch {
	case ev.Row == resetRow && ev.Col == resetCol:
		return PanelReset, 0
	case ev.Row >= 0 && ev.Row < panelRows && ev.Col >= 0 && ev.Col < panelCols:
		return PanelToggle, ev.Row*panelCols + ev.Col
	}
	return PanelNone, 0
}

// ChannelColor returns the pad color of a channel. Each channel keeps its
// own hue; it is dimmed while no note sounds.
func ChannelColor(ch int, on, enabled bool) [3]uint8 {
	if !enabled {
		return colorDisabled
	}
	hue := channelHues[ch%len(channelHues)]
	if on {
		return hue
	}
	return [3]uint8{hue[0] / 4, hue[1] / 4, hue[2] / 4}
}

var channelHues = [...][3]uint8{
	{255, 0, 0},
	{255, 100, 0},
	{255, 200, 0},
	{150, 255, 100},
	{0, 255, 0},
	{0, 200, 200},
	{0, 100, 255},
	{150, 0, 200},
	{255, 80, 180},
	{255, 255, 255}, // percussion
	{255, 80, 80},
	{255, 150, 50},
	{180, 180, 60},
	{0, 180, 0},
	{80, 150, 255},
	{100, 100, 255},
}

// Panel mirrors the processor state on a grid controller.
type Panel struct {
	ctrl  Controller
	shown map[[2]int][3]uint8
}

// NewPanel binds a panel to ctrl.
func NewPanel(ctrl Controller) *Panel {
	return &Panel{ctrl: ctrl, shown: make(map[[2]int][3]uint8)}
}

// Controller returns the device behind the panel.
func (p *Panel) Controller() Controller { return p.ctrl }

// Render lights the channel pads from the note-on bitmap and the enable
// mask. Only pads whose color changed since the last call are sent.
func (p *Panel) Render(noteOn, enabled uint16) error {
	var updates []LEDUpdate
	set := func(row, col int, color [3]uint8) {
		key := [2]int{row, col}
		if old, ok := p.shown[key]; ok && old == color {
			return
		}
		p.shown[key] = color
		updates = append(updates, LEDUpdate{Row: row, Col: col, Color: color, Channel: ChannelStatic})
	}

	for ch := 0; ch < panelRows*panelCols; ch++ {
		bit := uint16(1) << ch
		set(ch/panelCols, ch%panelCols, ChannelColor(ch, noteOn&bit != 0, enabled&bit != 0))
	}
	set(resetRow, resetCol, colorReset)

	return p.ctrl.SetLEDBatch(updates)
}

// Clear blanks the panel pads and forgets what was shown.
func (p *Panel) Clear() error {
	var updates []LEDUpdate
	for key := range p.shown {
		updates = append(updates, LEDUpdate{Row: key[0], Col: key[1], Color: colorOff})
	}
	clear(p.shown)
	return p.ctrl.SetLEDBatch(updates)
}

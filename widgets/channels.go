package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Cell is one channel slot in a row: a symbol and its color.
type Cell struct {
	Symbol rune
	Color  [3]uint8
}

// RenderPad renders a single colored pad
func RenderPad(color [3]uint8) string {
	return RenderCell(Cell{Symbol: '■', Color: color})
}

func RenderCell(c Cell) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(c.Color)))
	return style.Render(string(c.Symbol))
}

// CellWidth is the screen width of one slot in a channel row.
const CellWidth = 3

// LabelWidth is the width of the row label column.
const LabelWidth = 5

// RenderRow renders a labelled row with one CellWidth-wide slot per cell.
func RenderRow(label string, cells []Cell) string {
	var out strings.Builder
	if label != "" {
		fmt.Fprintf(&out, "%-*s", LabelWidth, label)
	}
	for i, c := range cells {
		if i > 0 {
			out.WriteString(strings.Repeat(" ", CellWidth-1))
		}
		out.WriteString(RenderCell(c))
	}
	return out.String()
}

// RenderChannelHeader renders the channel numbers above n slots.
func RenderChannelHeader(label string, n int, color [3]uint8) string {
	var out strings.Builder
	fmt.Fprintf(&out, "%-*s", LabelWidth, label)
	for i := 0; i < n; i++ {
		if i > 0 {
			out.WriteByte(' ')
		}
		fmt.Fprintf(&out, "%-2d", i)
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(strings.TrimRight(out.String(), " "))
}

// RenderMarker renders sym under slot i and blanks elsewhere.
func RenderMarker(i int, sym rune, color [3]uint8) string {
	if i < 0 {
		return ""
	}
	pad := strings.Repeat(" ", LabelWidth+i*CellWidth)
	return pad + RenderCell(Cell{Symbol: sym, Color: color})
}

// SlotAt maps a screen column to a slot index in a row of n cells, or -1.
func SlotAt(x, n int) int {
	x -= LabelWidth
	if x < 0 || x%CellWidth != 0 && x%CellWidth != 1 {
		return -1
	}
	i := x / CellWidth
	if i >= n {
		return -1
	}
	return i
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color), name, desc)
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}

package visual

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// World-space layout of the rod relative to its offset, and the view window.
const (
	capTop      = 5.2
	handleTop   = 5.0
	ringTop     = 2.2
	ringBottom  = 1.8
	shaftBottom = -6.2
	tipBottom   = -7.0
	groundY     = -5.5

	viewTop    = 7.5
	viewBottom = -10.0

	rodWidth = 5
	minWidth = rodWidth + 10
	minRows  = 8
)

var (
	handleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3f3f46"))
	shaftStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#d4d4d8"))
	tipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52525b"))
	groundStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#a1a1aa"))
	soilStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#44403c"))
)

// mycelium branch pattern, repeated by depth below ground.
var branches = []string{"╲ ╱", "╱╲ ", " ╲╱", "╲╱╲", "╱ ╲"}

// Render draws frame f as an ASCII rod in a width×height block.
func Render(f Frame, width, height int) string {
	if width < minWidth {
		width = minWidth
	}
	if height < minRows {
		height = minRows
	}
	step := (viewTop - viewBottom) / float64(height)
	glow := lipgloss.NewStyle().Foreground(lipgloss.Color(f.Color)).Bold(f.Breath > 1)
	side := (width - rodWidth) / 2
	rightW := width - side - rodWidth
	groundRow := int((viewTop - groundY) / step)

	rows := make([]string, 0, height)
	for i := 0; i < height; i++ {
		y := viewTop - (float64(i)+0.5)*step
		local := y - f.Offset
		below := i > groundRow

		var rod string
		switch {
		case local <= capTop && local > handleTop:
			rod = handleStyle.Render("▄▄▄▄▄")
		case local <= handleTop && local > ringTop:
			rod = handleStyle.Render("█████")
		case local <= ringTop && local > ringBottom:
			rod = glow.Render(strings.Repeat(ringShade(f.Breath), rodWidth))
		case local <= ringBottom && local > shaftBottom:
			rod = shaftStyle.Render(" ║║║ ")
		case local <= shaftBottom && local > tipBottom:
			rod = tipStyle.Render("  ▼  ")
		default:
			rod = strings.Repeat(" ", rodWidth)
		}

		if i == groundRow {
			label := ""
			if f.Inserted {
				label = "GROUND"
			}
			right := strings.Repeat("─", rightW)
			if len(label) < rightW {
				right = strings.Repeat("─", rightW-len(label)) + label
			}
			rows = append(rows, groundStyle.Render(strings.Repeat("─", side))+rod+groundStyle.Render(right))
			continue
		}

		left := strings.Repeat(" ", side)
		right := strings.Repeat(" ", rightW)
		if below {
			left = soilStyle.Render(soilTexture(side, i))
			right = soilStyle.Render(soilTexture(rightW, i+1))
			if f.OverlayVisible && local <= ringBottom {
				depth := i - groundRow
				left = overlaySide(side, depth, glow, true)
				right = overlaySide(rightW, depth, glow, false)
			}
		}
		rows = append(rows, left+rod+right)
	}
	return strings.Join(rows, "\n")
}

func ringShade(breath float64) string {
	switch {
	case breath > 1.2:
		return "█"
	case breath > 0.8:
		return "▓"
	}
	return "▒"
}

func soilTexture(n, seed int) string {
	var b strings.Builder
	for j := 0; j < n; j++ {
		if (j*7+seed*3)%11 == 0 {
			b.WriteRune('·')
		} else {
			b.WriteRune(' ')
		}
	}
	return b.String()
}

// overlaySide spreads branches outward from the rod; deeper rows reach further.
func overlaySide(n, depth int, style lipgloss.Style, left bool) string {
	reach := depth * 2
	if reach > n {
		reach = n
	}
	pattern := []rune(branches[depth%len(branches)])
	runes := make([]rune, reach)
	for j := range runes {
		runes[j] = pattern[j%len(pattern)]
	}
	pad := strings.Repeat(" ", n-reach)
	if left {
		return pad + style.Render(string(runes))
	}
	return style.Render(string(runes)) + pad
}

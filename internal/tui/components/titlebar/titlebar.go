// Package titlebar renders a modal's title bar the way the host shows it.
package titlebar

import (
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/sadsciencee/modalkit/internal/envelope"
	"github.com/sadsciencee/modalkit/internal/tui/styles"
)

const ellipsis = "…"

// Render draws state in width cells: the title on the left and the
// secondary then primary buttons on the right. Disabled buttons are dimmed.
// The title is truncated first when space runs out.
func Render(state envelope.TitleBarState, width int) string {
	t := styles.CurrentTheme()

	var buttons []string
	if b := state.SecondaryButton; b != nil {
		buttons = append(buttons, button(b, t.S().Text, t))
	}
	if b := state.PrimaryButton; b != nil {
		buttons = append(buttons, button(b, t.S().Primary.Bold(true), t))
	}
	right := strings.Join(buttons, " ")

	title := state.Title
	if title == "" {
		title = "Untitled"
	}
	variant := t.S().Subtle.Render(" [" + string(state.Variant) + "]")

	avail := width - lipgloss.Width(right) - lipgloss.Width(variant) - 1
	if avail < 1 {
		avail = 1
	}
	left := t.S().Title.Render(ansi.Truncate(title, avail, ellipsis)) + variant

	gap := width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func button(b *envelope.Button, style lipgloss.Style, t *styles.Theme) string {
	label := "[" + b.Label + "]"
	if b.Disabled {
		return t.S().Subtle.Strikethrough(true).Render(label)
	}
	return style.Render(label)
}

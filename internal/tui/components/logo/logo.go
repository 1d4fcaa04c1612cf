// Package logo renders the modalkit wordmark.
package logo

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/sadsciencee/modalkit/internal/tui/styles"
)

const wordmark = `
┌┬┐┌─┐┌┬┐┌─┐┬  ┬┌─┬┌┬┐
││││ │ ││├─┤│  ├┴┐│ │
┴ ┴└─┘─┴┘┴ ┴┴─┘┴ ┴┴ ┴
`

// Render returns the wordmark in the current theme's gradient.
func Render() string {
	t := styles.CurrentTheme()
	return styles.ApplyForegroundGrad(strings.Trim(wordmark, "\n"), t.Primary, t.Accent)
}

// RenderWithTagline returns the wordmark above a tagline.
func RenderWithTagline(tagline string) string {
	t := styles.CurrentTheme()
	return lipgloss.JoinVertical(lipgloss.Left, Render(), t.S().Muted.Render(tagline))
}

// Width returns the width of the wordmark.
func Width() int {
	return lipgloss.Width(strings.Trim(wordmark, "\n"))
}

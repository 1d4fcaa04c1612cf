// Package styles holds the terminal theme shared by TUI components.
package styles

import (
	"image/color"
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/rivo/uniseg"
)

// Theme is a named palette.
type Theme struct {
	Name   string
	IsDark bool

	Primary   color.Color
	Secondary color.Color
	Tertiary  color.Color
	Accent    color.Color

	BgBase    color.Color
	BgSubtle  color.Color
	BgOverlay color.Color

	FgBase   color.Color
	FgMuted  color.Color
	FgSubtle color.Color

	Border      color.Color
	BorderFocus color.Color

	Success color.Color
	Error   color.Color
	Warning color.Color
	Info    color.Color

	once   sync.Once
	styles *Styles
}

// Styles are the lipgloss styles derived from a theme.
type Styles struct {
	Base     lipgloss.Style
	Text     lipgloss.Style
	Muted    lipgloss.Style
	Subtle   lipgloss.Style
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Primary  lipgloss.Style
	Success  lipgloss.Style
	Error    lipgloss.Style
	Warning  lipgloss.Style
	Info     lipgloss.Style
	Panel    lipgloss.Style
}

// S returns the theme's styles, building them on first use.
func (t *Theme) S() *Styles {
	t.once.Do(func() {
		base := lipgloss.NewStyle().Foreground(t.FgBase)
		t.styles = &Styles{
			Base:     base,
			Text:     base,
			Muted:    lipgloss.NewStyle().Foreground(t.FgMuted),
			Subtle:   lipgloss.NewStyle().Foreground(t.FgSubtle),
			Title:    lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
			Subtitle: lipgloss.NewStyle().Foreground(t.Secondary).Bold(true),
			Primary:  lipgloss.NewStyle().Foreground(t.Primary),
			Success:  lipgloss.NewStyle().Foreground(t.Success),
			Error:    lipgloss.NewStyle().Foreground(t.Error),
			Warning:  lipgloss.NewStyle().Foreground(t.Warning),
			Info:     lipgloss.NewStyle().Foreground(t.Info),
			Panel: lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(t.Border).
				Padding(0, 1),
		}
	})
	return t.styles
}

var (
	mu      sync.RWMutex
	current *Theme
)

// NewManager installs the default theme.
func NewManager() {
	SetTheme(NewDefaultTheme())
}

// SetTheme replaces the current theme.
func SetTheme(t *Theme) {
	mu.Lock()
	defer mu.Unlock()
	current = t
}

// CurrentTheme returns the active theme, installing the default if needed.
func CurrentTheme() *Theme {
	mu.RLock()
	t := current
	mu.RUnlock()
	if t != nil {
		return t
	}

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		current = NewDefaultTheme()
	}
	return current
}

// ParseHex parses a #rrggbb color. Invalid input yields white.
func ParseHex(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.White
	}
	return c
}

// Hex formats c as #rrggbb.
func Hex(c color.Color) string {
	cf, _ := colorful.MakeColor(c)
	return cf.Hex()
}

// ApplyForegroundGrad colors each grapheme of every line of s along a
// gradient from one color to another.
func ApplyForegroundGrad(s string, from, to color.Color) string {
	cf, okFrom := colorful.MakeColor(from)
	ct, okTo := colorful.MakeColor(to)
	if !okFrom || !okTo {
		return s
	}

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		n := uniseg.GraphemeClusterCount(line)
		if n == 0 {
			continue
		}

		var sb strings.Builder
		g := uniseg.NewGraphemes(line)
		step := 0
		for g.Next() {
			t := 0.0
			if n > 1 {
				t = float64(step) / float64(n-1)
			}
			c := cf.BlendLuv(ct, t).Clamped()
			sb.WriteString(lipgloss.NewStyle().Foreground(c).Render(g.Str()))
			step++
		}
		lines[i] = sb.String()
	}
	return strings.Join(lines, "\n")
}

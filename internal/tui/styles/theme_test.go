package styles

import (
	"image/color"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"
)

func TestParseHex(t *testing.T) {
	if got := Hex(ParseHex("#95bf47")); got != "#95bf47" {
		t.Errorf("expected #95bf47, got %s", got)
	}
	if got := ParseHex("not-a-color"); got != color.White {
		t.Errorf("expected white fallback, got %v", got)
	}
}

func TestApplyForegroundGrad(t *testing.T) {
	theme := NewDefaultTheme()
	in := "modal\nkit"
	out := ApplyForegroundGrad(in, theme.Primary, theme.Accent)

	if got := ansi.Strip(out); got != in {
		t.Errorf("expected text to survive styling, got %q", got)
	}
	if strings.Count(out, "\n") != 1 {
		t.Errorf("expected line structure to be kept, got %q", out)
	}
}

func TestCurrentTheme(t *testing.T) {
	NewManager()
	if CurrentTheme().Name != "default" {
		t.Errorf("expected default theme, got %s", CurrentTheme().Name)
	}
	if CurrentTheme().S() != CurrentTheme().S() {
		t.Error("expected styles to be built once")
	}
}

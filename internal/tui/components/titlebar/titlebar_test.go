package titlebar

import (
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"github.com/sadsciencee/modalkit/internal/envelope"
)

func TestRender(t *testing.T) {
	state := envelope.TitleBarState{
		Variant:         envelope.VariantBase,
		Title:           "Products",
		PrimaryButton:   &envelope.Button{Label: "Save"},
		SecondaryButton: &envelope.Button{Label: "Cancel", Disabled: true},
	}

	out := ansi.Strip(Render(state, 60))
	if ansi.StringWidth(out) != 60 {
		t.Errorf("expected width 60, got %d: %q", ansi.StringWidth(out), out)
	}
	if !strings.HasPrefix(out, "Products [base]") {
		t.Errorf("expected title and variant first, got %q", out)
	}
	if !strings.HasSuffix(out, "[Cancel] [Save]") {
		t.Errorf("expected secondary then primary, got %q", out)
	}
}

func TestRenderTruncatesTitle(t *testing.T) {
	state := envelope.TitleBarState{
		Variant:       envelope.VariantMax,
		Title:         "A very long modal title that will not fit",
		PrimaryButton: &envelope.Button{Label: "Save"},
	}

	out := ansi.Strip(Render(state, 30))
	if !strings.Contains(out, "…") {
		t.Errorf("expected truncated title, got %q", out)
	}
	if !strings.HasSuffix(out, "[Save]") {
		t.Errorf("expected primary button to survive, got %q", out)
	}
}

func TestRenderWithoutButtons(t *testing.T) {
	out := ansi.Strip(Render(envelope.TitleBarState{Variant: envelope.VariantSmall}, 20))
	if !strings.HasPrefix(out, "Untitled [small]") {
		t.Errorf("expected placeholder title, got %q", out)
	}
}

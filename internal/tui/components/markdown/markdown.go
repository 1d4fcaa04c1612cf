// Package markdown renders help and payload panels with glamour in the
// current theme.
package markdown

import (
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/ansi"
	glamourstyles "github.com/charmbracelet/glamour/styles"
	"github.com/muesli/termenv"

	"github.com/sadsciencee/modalkit/internal/tui/styles"
)

// cacheSize bounds how many rendered panels are kept.
const cacheSize = 32

type renderKey struct {
	width   int
	content string
}

// Renderer keeps one glamour renderer for the current width and caches
// rendered output, since panels are redrawn on every frame.
type Renderer struct {
	mu          sync.Mutex
	renderer    *glamour.TermRenderer
	cachedWidth int
	rendered    *lru[renderKey, string]
}

// New creates a renderer.
func New() *Renderer {
	return &Renderer{rendered: newLRU[renderKey, string](cacheSize)}
}

// Render renders content at width. On failure it returns content unchanged
// along with the error.
func (r *Renderer) Render(content string, width int) (string, error) {
	if content == "" {
		return "", nil
	}

	key := renderKey{width: width, content: content}
	r.mu.Lock()
	out, ok := r.rendered.get(key)
	r.mu.Unlock()
	if ok {
		return out, nil
	}

	renderer, err := r.get(width)
	if err != nil {
		return content, err
	}
	out, err = renderer.Render(content)
	if err != nil {
		return content, err
	}

	r.mu.Lock()
	r.rendered.put(key, out)
	r.mu.Unlock()
	return out, nil
}

// Reset drops cached output, for example after a theme change.
func (r *Renderer) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderer = nil
	r.rendered.clear()
}

func (r *Renderer) get(width int) (*glamour.TermRenderer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.renderer != nil && r.cachedWidth == width {
		return r.renderer, nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithStyles(style()),
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(termenv.TrueColor),
	)
	if err != nil {
		return nil, err
	}
	r.renderer = renderer
	r.cachedWidth = width
	return renderer, nil
}

func style() ansi.StyleConfig {
	t := styles.CurrentTheme()
	s := glamourstyles.DarkStyleConfig

	accent := styles.Hex(t.Accent)
	primary := styles.Hex(t.Primary)
	secondary := styles.Hex(t.Secondary)
	muted := styles.Hex(t.FgMuted)
	base := styles.Hex(t.FgBase)

	s.Document.Margin = uintPtr(0)
	s.H1.Color = &accent
	s.H1.Bold = boolPtr(true)
	s.H1.Prefix = ""
	s.H1.Suffix = ""
	s.H2.Color = &primary
	s.H2.Bold = boolPtr(true)
	s.H2.Prefix = ""
	s.H3.Color = &secondary
	s.H3.Prefix = ""

	s.Code.Color = &secondary
	s.CodeBlock.Chroma.Text.Color = &base
	s.CodeBlock.Chroma.Keyword.Color = &primary
	s.CodeBlock.Chroma.Comment.Color = &muted
	s.CodeBlock.Chroma.Name.Color = &base
	s.CodeBlock.Chroma.NameFunction.Color = &accent

	s.Item.BlockPrefix = "  "
	s.BlockQuote.Color = &muted
	s.Strong.Bold = boolPtr(true)
	return s
}

func boolPtr(b bool) *bool { return &b }
func uintPtr(u uint) *uint { return &u }

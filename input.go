package heatmap

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Pixels per scrolled line.
const lineScroll = 10

// Input accumulates pointer and wheel events between frames. The renderer
// drains it once per frame. Methods are safe for concurrent use.
type Input struct {
	mu       sync.Mutex
	cursor   mgl64.Vec2
	dragging bool
	drag     mgl64.Vec2
	scroll   float64
}

// CursorMoved records the cursor position. While the primary button is
// held the movement accumulates as drag.
func (in *Input) CursorMoved(x, y float64) {
	in.mu.Lock()
	defer in.mu.Unlock()
	p := mgl64.Vec2{x, y}
	if in.dragging {
		in.drag = in.drag.Add(p.Sub(in.cursor))
	}
	in.cursor = p
}

// PrimaryButton records the primary button state.
func (in *Input) PrimaryButton(pressed bool) {
	in.mu.Lock()
	in.dragging = pressed
	in.mu.Unlock()
}

// ScrollLines records a wheel movement in lines.
func (in *Input) ScrollLines(y float64) {
	in.mu.Lock()
	in.scroll += y * lineScroll
	in.mu.Unlock()
}

// ScrollPixels records a wheel movement in pixels.
func (in *Input) ScrollPixels(y float64) {
	in.mu.Lock()
	in.scroll += y
	in.mu.Unlock()
}

// Drag adds a screen-space drag directly, for keyboard panning.
func (in *Input) Drag(dx, dy float64) {
	in.mu.Lock()
	in.drag = in.drag.Add(mgl64.Vec2{dx, dy})
	in.mu.Unlock()
}

// drain returns the accumulated scroll and drag and resets them.
// The cursor position is kept.
func (in *Input) drain() (scroll float64, cursor, drag mgl64.Vec2) {
	in.mu.Lock()
	defer in.mu.Unlock()
	scroll, cursor, drag = in.scroll, in.cursor, in.drag
	in.scroll, in.drag = 0, mgl64.Vec2{}
	return scroll, cursor, drag
}

// Package ink provides the shared inking overlay laid over the stage.
// The overlay is shown or hidden for everyone at once through the
// toggleInking flag; strokes drawn by the controlling participant are
// replicated to the others.
package ink

import (
	"fmt"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// DefaultPenColor is the pen colour a new canvas starts with
const DefaultPenColor = "#ff3b30"

// Palette is the set of pen colours offered for quick selection
var Palette = []string{DefaultPenColor, "#ffcc00", "#34c759", "#007aff", "#af52de", "#ffffff"}

// NextPenColor returns the palette colour after current. Colours outside
// the palette start over at the first entry.
func NextPenColor(current string) string {
	if col, err := colorful.Hex(current); err == nil {
		current = col.Hex()
	}
	for i, c := range Palette {
		if c == current {
			return Palette[(i+1)%len(Palette)]
		}
	}
	return Palette[0]
}

// Point is a position on the stage floor
type Point struct {
	X float32 `json:"x"`
	Z float32 `json:"z"`
}

// Stroke is one continuous line drawn by a participant
type Stroke struct {
	ParticipantID string  `json:"participantId"`
	Color         string  `json:"color"`
	Points        []Point `json:"points"`
}

// Canvas holds what is currently drawn. It is safe for concurrent use so
// views can read it while the dispatcher mutates it.
type Canvas struct {
	mu      sync.RWMutex
	visible bool
	pen     string
	strokes []Stroke
	clears  int
}

// NewCanvas creates a hidden, empty canvas
func NewCanvas() *Canvas {
	return &Canvas{pen: DefaultPenColor}
}

// Visible reports whether the canvas is shown
func (c *Canvas) Visible() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible
}

// SetVisible shows or hides the canvas. The drawing is cleared on every
// flip.
func (c *Canvas) SetVisible(visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = visible
	c.strokes = nil
	c.clears++
}

// Clears returns how many times the drawing has been cleared
func (c *Canvas) Clears() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clears
}

// SetPenColor sets the pen colour from a CSS hex string (#rgb or #rrggbb)
func (c *Canvas) SetPenColor(hex string) error {
	col, err := colorful.Hex(hex)
	if err != nil {
		return fmt.Errorf("pen color %q: %w", hex, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pen = col.Hex()
	return nil
}

// PenColor returns the normalized pen colour
func (c *Canvas) PenColor() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pen
}

// Add appends a stroke. Strokes are dropped while the canvas is hidden.
func (c *Canvas) Add(s Stroke) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.visible || len(s.Points) == 0 {
		return false
	}
	c.strokes = append(c.strokes, s)
	return true
}

// Strokes returns a copy of the current drawing
func (c *Canvas) Strokes() []Stroke {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Stroke, len(c.strokes))
	copy(out, c.strokes)
	return out
}

package engine

import (
	"sync"

	"github.com/dm/gridmon/internal/model"
)

// ColorAllocator assigns display colors to node keys. An assignment never
// changes for the allocator's lifetime, even if the node leaves and
// rejoins.
type ColorAllocator struct {
	mu       sync.Mutex
	multi    bool
	fixed    model.Color
	palette  []model.Color
	assigned map[string]model.Color
	next     int
}

// NewColorAllocator returns a multi-color allocator cycling through
// palette, or a monochrome one returning fixed for every node when fixed
// is non-nil. An empty palette falls back to model.DefaultPalette.
func NewColorAllocator(fixed *model.Color, palette []model.Color) *ColorAllocator {
	a := &ColorAllocator{assigned: make(map[string]model.Color)}
	if fixed != nil {
		a.fixed = *fixed
		return a
	}
	a.multi = true
	if len(palette) == 0 {
		palette = model.DefaultPalette
	}
	a.palette = append([]model.Color(nil), palette...)
	return a
}

// MultiColor reports whether the allocator hands out palette colors.
func (a *ColorAllocator) MultiColor() bool { return a.multi }

// Assign returns the color for node, allocating the next palette entry the
// first time node is seen.
func (a *ColorAllocator) Assign(node string) model.Color {
	if !a.multi {
		return a.fixed
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.assigned[node]; ok {
		return c
	}
	c := a.palette[a.next%len(a.palette)]
	a.next++
	a.assigned[node] = c
	return c
}

// AssignAll assigns every node in order and returns the resulting map.
func (a *ColorAllocator) AssignAll(nodes []string) map[string]model.Color {
	out := make(map[string]model.Color, len(nodes))
	for _, n := range nodes {
		out[n] = a.Assign(n)
	}
	return out
}

// Package zone presents a device's addressable LEDs as an ordered color
// buffer with a commit operation. Effects depend only on the Zone interface
// and are agnostic to whether a zone is backed by a real device zone, a
// per-LED virtual zone, or a concatenation of several zones.
package zone

import (
	"fmt"

	"github.com/dshills/glimmer/internal/color"
)

// Zone is an ordered, indexable buffer of per-LED colors plus a commit
// operation. LED indices are zero-based. Show pushes the buffered colors to
// the backing device; callers must not assume the hardware has applied them
// synchronously.
type Zone interface {
	// Len returns the number of LEDs in the zone.
	Len() int
	// Color returns the buffered color at index i.
	Color(i int) color.Color
	// SetColor sets the buffered color at index i.
	SetColor(i int, c color.Color)
	// Show commits the buffer to the backing device.
	Show() error
}

// ShowFunc commits a snapshot of a buffer's colors.
type ShowFunc func(colors []color.Color) error

// Buffer is an in-memory Zone. The commit behavior is supplied by the
// caller, which makes Buffer both the building block for device-backed
// zones and the natural test double.
type Buffer struct {
	colors []color.Color
	show   ShowFunc
	shows  int
}

// NewBuffer creates a Buffer of n LEDs, all black. The show function may be
// nil, in which case Show only counts commits.
func NewBuffer(n int, show ShowFunc) *Buffer {
	return &Buffer{
		colors: make([]color.Color, n),
		show:   show,
	}
}

// Len returns the number of LEDs.
func (b *Buffer) Len() int { return len(b.colors) }

// Color returns the buffered color at index i.
func (b *Buffer) Color(i int) color.Color { return b.colors[i] }

// SetColor sets the buffered color at index i.
func (b *Buffer) SetColor(i int, c color.Color) { b.colors[i] = c }

// Show commits the buffer via the show function.
func (b *Buffer) Show() error {
	b.shows++
	if b.show == nil {
		return nil
	}
	snapshot := make([]color.Color, len(b.colors))
	copy(snapshot, b.colors)
	return b.show(snapshot)
}

// Shows returns how many times Show has been called.
func (b *Buffer) Shows() int { return b.shows }

// Fill sets every LED in z to c. It does not call Show.
func Fill(z Zone, c color.Color) {
	for i := 0; i < z.Len(); i++ {
		z.SetColor(i, c)
	}
}

// Combined concatenates several zones into one logical linear zone.
// Index 0 of sub-zone k follows the last index of sub-zone k-1.
type Combined struct {
	zones   []Zone
	offsets []int // start index of each sub-zone
	length  int
}

// Combine builds a Combined zone from the given sub-zones in order.
func Combine(zones ...Zone) *Combined {
	c := &Combined{
		zones:   zones,
		offsets: make([]int, len(zones)),
	}
	for i, z := range zones {
		c.offsets[i] = c.length
		c.length += z.Len()
	}
	return c
}

// Len returns the total LED count across all sub-zones.
func (c *Combined) Len() int { return c.length }

// Color returns the buffered color at the combined index i.
func (c *Combined) Color(i int) color.Color {
	z, local := c.locate(i)
	return z.Color(local)
}

// SetColor sets the buffered color at the combined index i.
func (c *Combined) SetColor(i int, col color.Color) {
	z, local := c.locate(i)
	z.SetColor(local, col)
}

// Show commits every sub-zone in original order. The first error stops the
// dispatch and is returned.
func (c *Combined) Show() error {
	for i, z := range c.zones {
		if err := z.Show(); err != nil {
			return fmt.Errorf("combined zone: sub-zone %d: %w", i, err)
		}
	}
	return nil
}

// locate maps a combined index to its sub-zone and local index.
func (c *Combined) locate(i int) (Zone, int) {
	for k := len(c.zones) - 1; k >= 0; k-- {
		if i >= c.offsets[k] {
			return c.zones[k], i - c.offsets[k]
		}
	}
	panic(fmt.Sprintf("zone: index %d out of range", i))
}

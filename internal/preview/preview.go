// Package preview renders a zone as a row of colored cells in the
// terminal, so effects can be exercised without lighting hardware.
package preview

import (
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/glimmer/internal/color"
	"github.com/dshills/glimmer/internal/zone"
)

// Strip is a terminal-backed zone of n virtual LEDs. Show paints the
// buffered colors as a row of block cells.
type Strip struct {
	mu     sync.Mutex
	screen tcell.Screen
	buf    *zone.Buffer
	done   chan struct{}
	once   sync.Once
}

// New creates a strip of n LEDs and initializes the terminal screen.
func New(n int) (*Strip, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}

	s := &Strip{
		screen: screen,
		done:   make(chan struct{}),
	}
	s.buf = zone.NewBuffer(n, s.paint)

	// Watch for quit keys. PollEvent returns nil after Fini, which ends
	// the loop.
	go s.watchKeys()

	return s, nil
}

// Zone returns the strip as a zone for the effect engine.
func (s *Strip) Zone() zone.Zone { return s.buf }

// Done is closed when the user asks to quit (q, ESC, or Ctrl-C).
func (s *Strip) Done() <-chan struct{} { return s.done }

// Close restores the terminal.
func (s *Strip) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.screen.Fini()
}

// paint draws one cell pair per LED on the top row.
func (s *Strip) paint(colors []color.Color) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range colors {
		style := tcell.StyleDefault.Foreground(
			tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
		s.screen.SetContent(2*i, 1, '█', nil, style)
		s.screen.SetContent(2*i+1, 1, '█', nil, style)
	}
	s.screen.Show()
	return nil
}

func (s *Strip) watchKeys() {
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		if key, ok := ev.(*tcell.EventKey); ok {
			switch {
			case key.Key() == tcell.KeyEscape || key.Key() == tcell.KeyCtrlC:
				s.quit()
			case key.Rune() == 'q':
				s.quit()
			}
		}
	}
}

func (s *Strip) quit() {
	s.once.Do(func() { close(s.done) })
}

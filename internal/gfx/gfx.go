// Package gfx runs an engine inside an ebiten window: each frame ticks
// every entity and draws its sprite.
package gfx

import (
	"image/color"
	"sync"
	"time"

	"ember/internal/engine"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("ember.gfx")

type Window struct {
	Width  int
	Height int
	Title  string
}

type state struct {
	mu       sync.Mutex
	width    int
	height   int
	sprites  []engine.Sprite
	clear    color.RGBA
	lastTime time.Time
}

// Run opens the window and blocks until it is closed. Entity failures are
// logged and the entity stops being drawn; the loop keeps going.
func Run(eng *engine.Engine, win Window) error {
	if win.Width <= 0 {
		win.Width = 640
	}
	if win.Height <= 0 {
		win.Height = 480
	}
	if win.Title == "" {
		win.Title = "ember"
	}

	s := &state{
		width:    win.Width,
		height:   win.Height,
		clear:    color.RGBA{A: 255},
		lastTime: time.Now(),
	}
	ebiten.SetWindowSize(win.Width, win.Height)
	ebiten.SetWindowTitle(win.Title)
	log.Infof("window %dx%d %q, %d entities", win.Width, win.Height, win.Title, len(eng.Entities()))

	return ebiten.RunGame(&ebitenGame{eng: eng, state: s})
}

type ebitenGame struct {
	eng   *engine.Engine
	state *state
}

func (g *ebitenGame) Update() error {
	s := g.state
	now := time.Now()
	dt := now.Sub(s.lastTime).Seconds()
	s.lastTime = now

	if err := g.eng.Tick(dt, keyboard{}); err != nil {
		log.Warningf("tick: %s", err)
	}

	s.mu.Lock()
	s.sprites = g.eng.Sprites()
	s.mu.Unlock()

	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	return nil
}

func (g *ebitenGame) Draw(screen *ebiten.Image) {
	s := g.state
	s.mu.Lock()
	sprites := append([]engine.Sprite(nil), s.sprites...)
	s.mu.Unlock()

	screen.Fill(s.clear)
	for _, sp := range sprites {
		vector.DrawFilledRect(screen,
			float32(sp.X), float32(sp.Y), float32(sp.W), float32(sp.H),
			color.RGBA{R: sp.R, G: sp.G, B: sp.B, A: 255}, false)
	}
}

func (g *ebitenGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	s := g.state
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// keyboard is the live ebiten input.
type keyboard struct{}

func (keyboard) Keys() map[string]bool {
	out := make(map[string]bool, len(keyMap))
	for name, k := range keyMap {
		if ebiten.IsKeyPressed(k) {
			out[name] = true
		}
	}
	return out
}

func (keyboard) Mouse() (float64, float64) {
	x, y := ebiten.CursorPosition()
	return float64(x), float64(y)
}

var keyMap = map[string]ebiten.Key{
	"space":  ebiten.KeySpace,
	"enter":  ebiten.KeyEnter,
	"escape": ebiten.KeyEscape,
	"left":   ebiten.KeyArrowLeft,
	"right":  ebiten.KeyArrowRight,
	"up":     ebiten.KeyArrowUp,
	"down":   ebiten.KeyArrowDown,
	"shift":  ebiten.KeyShift,
	"ctrl":   ebiten.KeyControl,
	"alt":    ebiten.KeyAlt,
}

func init() {
	for ch := 'a'; ch <= 'z'; ch++ {
		keyMap[string(ch)] = ebiten.KeyA + ebiten.Key(ch-'a')
	}
	for ch := '0'; ch <= '9'; ch++ {
		keyMap[string(ch)] = ebiten.Key0 + ebiten.Key(ch-'0')
	}
}

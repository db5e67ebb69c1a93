package engine

import "math"

// Default sprite size for entities that leave w or h unset.
const DefaultSpriteSize = 16

// Sprite is the drawable state of an entity: a filled rectangle.
type Sprite struct {
	X, Y, W, H float64
	R, G, B    uint8
}

// Sprite reads x, y, w, h and the optional r, g, b channels from self.
// Entities without a numeric x and y are not drawn.
func (ent *Entity) Sprite() (Sprite, bool) {
	x, okX := ent.Number("x")
	y, okY := ent.Number("y")
	if !okX || !okY {
		return Sprite{}, false
	}
	s := Sprite{X: x, Y: y, W: DefaultSpriteSize, H: DefaultSpriteSize, R: 255, G: 255, B: 255}
	if w, ok := ent.Number("w"); ok {
		s.W = w
	}
	if h, ok := ent.Number("h"); ok {
		s.H = h
	}
	if s.W <= 0 || s.H <= 0 {
		return Sprite{}, false
	}
	s.R = ent.channel("r", s.R)
	s.G = ent.channel("g", s.G)
	s.B = ent.channel("b", s.B)
	return s, true
}

func (ent *Entity) channel(key string, def uint8) uint8 {
	v, ok := ent.Number(key)
	if !ok || math.IsNaN(v) {
		return def
	}
	return uint8(math.Round(math.Max(0, math.Min(255, v))))
}

// Sprites returns the sprites of every entity that is still enabled, in
// spawn order.
func (e *Engine) Sprites() []Sprite {
	out := make([]Sprite, 0, len(e.entities))
	for _, ent := range e.entities {
		if ent.Disabled() {
			continue
		}
		if s, ok := ent.Sprite(); ok {
			out = append(out, s)
		}
	}
	return out
}

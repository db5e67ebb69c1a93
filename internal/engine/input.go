package engine

// Input is the player input visible to scripts as the input global.
type Input interface {
	// Keys reports the state of every key the host tracks, by name.
	Keys() map[string]bool
	Mouse() (x, y float64)
}

// StaticInput is a fixed Input, for headless runs and tests.
type StaticInput struct {
	Pressed []string
	X, Y    float64
}

func (s StaticInput) Keys() map[string]bool {
	out := make(map[string]bool, len(s.Pressed))
	for _, k := range s.Pressed {
		out[k] = true
	}
	return out
}

func (s StaticInput) Mouse() (float64, float64) { return s.X, s.Y }

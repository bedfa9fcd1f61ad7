package chat

import "time"

// StreamSpeed controls how fast replies are progressively rendered.
type StreamSpeed int

const (
	StreamInstant StreamSpeed = iota
	StreamFast
	StreamNormal
)

func (s StreamSpeed) String() string {
	switch s {
	case StreamInstant:
		return "instant"
	case StreamFast:
		return "fast"
	case StreamNormal:
		return "normal"
	}
	return "unknown"
}

// ParseStreamSpeed reads a speed name; unknown names give normal.
func ParseStreamSpeed(name string) StreamSpeed {
	switch name {
	case "instant", "off":
		return StreamInstant
	case "fast":
		return StreamFast
	}
	return StreamNormal
}

// StreamConfig sets how many runes appear per tick. Korean replies are
// chunked by rune so characters are never split.
type StreamConfig struct {
	Speed     StreamSpeed
	ChunkSize int
	TickRate  time.Duration
}

// StreamConfigForSpeed returns the preset for s.
func StreamConfigForSpeed(s StreamSpeed) StreamConfig {
	switch s {
	case StreamInstant:
		return StreamConfig{Speed: StreamInstant, ChunkSize: 0, TickRate: 0}
	case StreamFast:
		return StreamConfig{Speed: StreamFast, ChunkSize: 32, TickRate: 16 * time.Millisecond}
	default:
		return StreamConfig{Speed: StreamNormal, ChunkSize: 8, TickRate: 16 * time.Millisecond}
	}
}

// CycleStreamSpeed steps normal, fast, instant and back to normal.
func CycleStreamSpeed(current StreamSpeed) StreamSpeed {
	switch current {
	case StreamNormal:
		return StreamFast
	case StreamFast:
		return StreamInstant
	}
	return StreamNormal
}

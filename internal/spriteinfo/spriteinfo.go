package spriteinfo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MaxFrames is the number of animation frames a sprite can have.
const MaxFrames = 64

var (
	// ErrInvalidFrame reports a frame outside [0, MaxFrames).
	ErrInvalidFrame = errors.New("invalid frame")

	// ErrInvalidPivot reports a malformed pivot definition.
	ErrInvalidPivot = errors.New("invalid pivot")
)

// Axis selects which axis a frame conceptually rotates about. Only Roll
// affects pixels; the others are carried as metadata.
type Axis int

const (
	Roll Axis = iota
	Pitch
	Yaw
)

func (a Axis) String() string {
	switch a {
	case Roll:
		return "roll"
	case Pitch:
		return "pitch"
	case Yaw:
		return "yaw"
	default:
		return fmt.Sprintf("axis(%d)", int(a))
	}
}

// ParseAxis accepts X/Y/Z or roll/pitch/yaw.
func ParseAxis(s string) (Axis, error) {
	switch strings.ToLower(s) {
	case "x", "roll":
		return Roll, nil
	case "y", "pitch":
		return Pitch, nil
	case "z", "yaw":
		return Yaw, nil
	}
	return 0, fmt.Errorf("%w: unknown axis %q", ErrInvalidPivot, s)
}

// FramePivot is the rotation point and axis of one frame.
type FramePivot struct {
	X, Y int
	Axis Axis
}

// Info holds per-frame pivots for one sprite.
type Info struct {
	Available bool
	Pivots    [MaxFrames]FramePivot
	set       [MaxFrames]bool
}

// Pivot returns the pivot of frame, or nil when none was defined.
func (in *Info) Pivot(frame int) (*FramePivot, error) {
	if frame < 0 || frame >= MaxFrames {
		return nil, fmt.Errorf("%w: %d", ErrInvalidFrame, frame)
	}
	if !in.Available || !in.set[frame] {
		return nil, nil
	}
	p := in.Pivots[frame]
	return &p, nil
}

// SetPivot defines the pivot of frame and marks the sprite available.
func (in *Info) SetPivot(frame int, p FramePivot) error {
	if frame < 0 || frame >= MaxFrames {
		return fmt.Errorf("%w: %d", ErrInvalidFrame, frame)
	}
	in.Pivots[frame] = p
	in.set[frame] = true
	in.Available = true
	return nil
}

// Frames lists the frames with a defined pivot.
func (in *Info) Frames() []int {
	var out []int
	for i, ok := range in.set {
		if ok {
			out = append(out, i)
		}
	}
	return out
}

// Table maps sprite names to their info. Names are case-insensitive.
type Table struct {
	sprites map[string]*Info
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{sprites: make(map[string]*Info)}
}

// Info returns the info for sprite.
func (t *Table) Info(sprite string) (*Info, bool) {
	in, ok := t.sprites[foldName(sprite)]
	return in, ok
}

// Pivot returns the pivot for a frame of sprite. Unknown sprites and frames
// without a definition yield nil, meaning the image centre.
func (t *Table) Pivot(sprite string, frame int) (*FramePivot, error) {
	if frame < 0 || frame >= MaxFrames {
		return nil, fmt.Errorf("sprite %s: %w: %d", sprite, ErrInvalidFrame, frame)
	}
	in, ok := t.Info(sprite)
	if !ok {
		return nil, nil
	}
	return in.Pivot(frame)
}

// Sprites returns the known sprite names in order.
func (t *Table) Sprites() []string {
	names := make([]string, 0, len(t.sprites))
	for n := range t.sprites {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of sprites.
func (t *Table) Len() int { return len(t.sprites) }

func (t *Table) info(sprite string) *Info {
	name := foldName(sprite)
	in, ok := t.sprites[name]
	if !ok {
		in = &Info{}
		t.sprites[name] = in
	}
	return in
}

func foldName(s string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(s))
}

// FrameIndex maps a frame selector to its index. Single characters use the
// sprite frame alphabet (A-Z, 0-9, a-z, !, @); longer selectors are decimal.
func FrameIndex(sel string) (int, error) {
	if len(sel) == 1 {
		c := sel[0]
		switch {
		case c >= 'A' && c <= 'Z':
			return int(c - 'A'), nil
		case c >= '0' && c <= '9':
			return int(c-'0') + 26, nil
		case c >= 'a' && c <= 'z':
			return int(c-'a') + 36, nil
		case c == '!':
			return 62, nil
		case c == '@':
			return 63, nil
		}
		return 0, fmt.Errorf("%w: selector %q", ErrInvalidFrame, sel)
	}
	n := 0
	if sel == "" {
		return 0, fmt.Errorf("%w: empty selector", ErrInvalidFrame)
	}
	for _, r := range sel {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: selector %q", ErrInvalidFrame, sel)
		}
		n = n*10 + int(r-'0')
		if n >= MaxFrames {
			return 0, fmt.Errorf("%w: selector %q", ErrInvalidFrame, sel)
		}
	}
	return n, nil
}

// FrameChar is the inverse of FrameIndex for valid frames.
func FrameChar(frame int) byte {
	switch {
	case frame < 26:
		return byte('A' + frame)
	case frame < 36:
		return byte('0' + frame - 26)
	case frame < 62:
		return byte('a' + frame - 36)
	case frame == 62:
		return '!'
	default:
		return '@'
	}
}

package eink

import "time"

const (
	DefaultTapMaxTravel   = 40
	DefaultTapMaxDuration = 800 * time.Millisecond
)

type Tap struct {
	X  int
	Y  int
	At time.Time
}

// TapRecognizer turns a stream of TouchEvents into taps. A contact becomes a
// tap only if it lifts within MaxDuration and never strays more than
// MaxTravel pixels (on either axis) from where it went down. Anything else is
// a swipe or a long press and is left to other gestures.
type TapRecognizer struct {
	MaxTravel   int
	MaxDuration time.Duration

	down    bool
	start   TouchEvent
	invalid bool
}

func NewTapRecognizer(maxTravel int, maxDuration time.Duration) *TapRecognizer {
	if maxTravel <= 0 {
		maxTravel = DefaultTapMaxTravel
	}
	if maxDuration <= 0 {
		maxDuration = DefaultTapMaxDuration
	}
	return &TapRecognizer{MaxTravel: maxTravel, MaxDuration: maxDuration}
}

// Feed returns a tap positioned at the touch-down point when ev completes one.
func (r *TapRecognizer) Feed(ev TouchEvent) (Tap, bool) {
	if ev.Down {
		if !r.down {
			r.down = true
			r.start = ev
			r.invalid = false
			return Tap{}, false
		}
		if travel(r.start, ev) > r.MaxTravel {
			r.invalid = true
		}
		return Tap{}, false
	}
	if !r.down {
		return Tap{}, false
	}
	r.down = false
	if r.invalid || travel(r.start, ev) > r.MaxTravel {
		return Tap{}, false
	}
	if !r.start.At.IsZero() && !ev.At.IsZero() && ev.At.Sub(r.start.At) > r.MaxDuration {
		return Tap{}, false
	}
	return Tap{X: r.start.X, Y: r.start.Y, At: r.start.At}, true
}

func travel(a, b TouchEvent) int {
	return max(absInt(a.X-b.X), absInt(a.Y-b.Y))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

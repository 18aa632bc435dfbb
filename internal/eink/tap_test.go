package eink

import (
	"testing"
	"time"
)

func feed(r *TapRecognizer, events ...TouchEvent) []Tap {
	var taps []Tap
	for _, ev := range events {
		if tap, ok := r.Feed(ev); ok {
			taps = append(taps, tap)
		}
	}
	return taps
}

func TestTapRecognizer(t *testing.T) {
	base := time.Unix(100, 0)
	tests := []struct {
		name   string
		events []TouchEvent
		want   []Tap
	}{
		{
			name: "short tap",
			events: []TouchEvent{
				{X: 10, Y: 20, Down: true, At: base},
				{X: 12, Y: 21, Down: false, At: base.Add(100 * time.Millisecond)},
			},
			want: []Tap{{X: 10, Y: 20, At: base}},
		},
		{
			name: "jitter within travel",
			events: []TouchEvent{
				{X: 10, Y: 20, Down: true, At: base},
				{X: 30, Y: 35, Down: true, At: base.Add(50 * time.Millisecond)},
				{X: 11, Y: 20, Down: false, At: base.Add(100 * time.Millisecond)},
			},
			want: []Tap{{X: 10, Y: 20, At: base}},
		},
		{
			name: "swipe",
			events: []TouchEvent{
				{X: 500, Y: 300, Down: true, At: base},
				{X: 300, Y: 300, Down: true, At: base.Add(50 * time.Millisecond)},
				{X: 100, Y: 300, Down: false, At: base.Add(100 * time.Millisecond)},
			},
		},
		{
			name: "swipe that returns",
			events: []TouchEvent{
				{X: 500, Y: 300, Down: true, At: base},
				{X: 300, Y: 300, Down: true, At: base.Add(50 * time.Millisecond)},
				{X: 500, Y: 300, Down: false, At: base.Add(100 * time.Millisecond)},
			},
		},
		{
			name: "long press",
			events: []TouchEvent{
				{X: 10, Y: 20, Down: true, At: base},
				{X: 10, Y: 20, Down: false, At: base.Add(2 * time.Second)},
			},
		},
		{
			name: "release without press",
			events: []TouchEvent{
				{X: 10, Y: 20, Down: false, At: base},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := feed(NewTapRecognizer(40, 800*time.Millisecond), tt.events...)
			if len(got) != len(tt.want) {
				t.Fatalf("expected %d taps, got %d", len(tt.want), len(got))
			}
			for i := range got {
				if got[i].X != tt.want[i].X || got[i].Y != tt.want[i].Y || !got[i].At.Equal(tt.want[i].At) {
					t.Fatalf("tap %d: got %+v want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTapRecognizerDefaults(t *testing.T) {
	r := NewTapRecognizer(0, 0)
	if r.MaxTravel != DefaultTapMaxTravel || r.MaxDuration != DefaultTapMaxDuration {
		t.Fatalf("expected defaults, got %d %v", r.MaxTravel, r.MaxDuration)
	}
}

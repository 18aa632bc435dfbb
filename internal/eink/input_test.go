package eink

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"testing"
	"time"
)

func TestReadInputEvent(t *testing.T) {
	buf := &bytes.Buffer{}
	ev := InputEvent{Sec: 1, Usec: 2, Type: EVAbs, Code: ABSX, Value: 123}
	if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
		t.Fatalf("binary write: %v", err)
	}
	read, err := readInputEvent(buf)
	if err != nil {
		t.Fatalf("readInputEvent: %v", err)
	}
	if read.Code != ABSX || read.Value != 123 {
		t.Fatalf("unexpected event")
	}
}

func writeEvents(t *testing.T, events ...InputEvent) io.ReadCloser {
	t.Helper()
	buf := &bytes.Buffer{}
	for _, ev := range events {
		if err := binary.Write(buf, binary.LittleEndian, ev); err != nil {
			t.Fatalf("binary write: %v", err)
		}
	}
	return io.NopCloser(buf)
}

func TestReadEventsTouchAndPower(t *testing.T) {
	dev := NewInputDevice(writeEvents(t,
		InputEvent{Sec: 10, Type: EVKey, Code: BTNTouch, Value: 1},
		InputEvent{Sec: 10, Type: EVAbs, Code: ABSMTPositionX, Value: 300},
		InputEvent{Sec: 10, Type: EVAbs, Code: ABSMTPositionY, Value: 420},
		InputEvent{Sec: 10, Type: EVSyn},
		InputEvent{Sec: 10, Type: EVSyn},
		InputEvent{Sec: 11, Type: EVKey, Code: BTNTouch, Value: 0},
		InputEvent{Sec: 11, Type: EVSyn},
		InputEvent{Sec: 12, Type: EVKey, Code: KEYPower, Value: 1},
	))
	touchCh, powerCh, errCh := dev.ReadEvents(context.Background())

	var touches []TouchEvent
	for ev := range touchCh {
		touches = append(touches, ev)
	}
	if len(touches) != 2 {
		t.Fatalf("expected 2 touch events, got %d", len(touches))
	}
	if !touches[0].Down || touches[0].X != 300 || touches[0].Y != 420 {
		t.Fatalf("unexpected touch down %+v", touches[0])
	}
	if touches[1].Down || touches[1].X != 300 || !touches[1].At.Equal(time.Unix(11, 0)) {
		t.Fatalf("unexpected touch up %+v", touches[1])
	}
	power, ok := <-powerCh
	if !ok || !power.Pressed {
		t.Fatalf("expected power press")
	}
	if err, ok := <-errCh; ok {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestReadEventsStopsWhenContextDone(t *testing.T) {
	var events []InputEvent
	for i := 0; i < 64; i++ {
		events = append(events,
			InputEvent{Sec: int32(i), Type: EVAbs, Code: ABSMTPositionX, Value: int32(i)},
			InputEvent{Sec: int32(i), Type: EVSyn},
		)
	}
	dev := NewInputDevice(writeEvents(t, events...))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Nobody drains touchCh. The reader must still exit once its buffer fills.
	_, _, errCh := dev.ReadEvents(ctx)
	select {
	case err, ok := <-errCh:
		if ok {
			t.Fatalf("unexpected error %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("reader still blocked after context was canceled")
	}
}

package eink

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	EVSyn = 0
	EVKey = 1
	EVAbs = 3

	ABSX           = 0
	ABSY           = 1
	ABSMTPositionX = 53
	ABSMTPositionY = 54

	BTNToolFinger = 325
	BTNTouch      = 330

	KEYPower = 116
)

type InputEvent struct {
	Sec   int32
	Usec  int32
	Type  uint16
	Code  uint16
	Value int32
}

type TouchEvent struct {
	X    int
	Y    int
	Down bool
	At   time.Time
}

type PowerEvent struct {
	Pressed bool
	At      time.Time
}

type InputDevice struct {
	r io.ReadCloser
}

func OpenInputDevice(path string) (*InputDevice, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eink: open input %s: %w", path, err)
	}
	return &InputDevice{r: file}, nil
}

func NewInputDevice(r io.ReadCloser) *InputDevice {
	return &InputDevice{r: r}
}

func (d *InputDevice) Close() error {
	if d == nil || d.r == nil {
		return nil
	}
	return d.r.Close()
}

// ReadEvents decodes evdev frames until EOF or until ctx is done. A TouchEvent
// is emitted on every SYN_REPORT that follows a position or contact change.
// The reader may sit in a blocking read after ctx is done; Close unblocks it.
func (d *InputDevice) ReadEvents(ctx context.Context) (<-chan TouchEvent, <-chan PowerEvent, <-chan error) {
	touchCh := make(chan TouchEvent, 16)
	powerCh := make(chan PowerEvent, 4)
	errCh := make(chan error, 1)

	go func() {
		defer close(touchCh)
		defer close(powerCh)
		defer close(errCh)

		var (
			current TouchEvent
			dirty   bool
		)
		for {
			event, err := readInputEvent(d.r)
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, os.ErrClosed) {
					return
				}
				errCh <- err
				return
			}
			switch event.Type {
			case EVAbs:
				switch event.Code {
				case ABSX, ABSMTPositionX:
					current.X = int(event.Value)
					dirty = true
				case ABSY, ABSMTPositionY:
					current.Y = int(event.Value)
					dirty = true
				}
			case EVKey:
				switch event.Code {
				case BTNTouch, BTNToolFinger:
					current.Down = event.Value != 0
					dirty = true
				case KEYPower:
					select {
					case powerCh <- PowerEvent{Pressed: event.Value != 0, At: eventTime(event)}:
					case <-ctx.Done():
						return
					}
				}
			case EVSyn:
				if dirty {
					current.At = eventTime(event)
					select {
					case touchCh <- current:
					case <-ctx.Done():
						return
					}
					dirty = false
				}
			}
		}
	}()

	return touchCh, powerCh, errCh
}

func readInputEvent(r io.Reader) (InputEvent, error) {
	var ev InputEvent
	if err := binary.Read(r, binary.LittleEndian, &ev); err != nil {
		return InputEvent{}, err
	}
	return ev, nil
}

func eventTime(ev InputEvent) time.Time {
	return time.Unix(int64(ev.Sec), int64(ev.Usec)*1000)
}

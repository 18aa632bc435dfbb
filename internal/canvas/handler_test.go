package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/openclaw/kobo-linktap/internal/eink"
	"github.com/rs/zerolog"
)

type sentEvent struct {
	method string
	params interface{}
}

type mockSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (m *mockSender) SendEvent(ctx context.Context, method string, params interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, sentEvent{method: method, params: params})
	return nil
}

func (m *mockSender) sent() []sentEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEvent(nil), m.events...)
}

func newTestHandler(t *testing.T, sender ActionSender) (*Handler, *Renderer) {
	t.Helper()
	fb := eink.NewFramebufferFromBuffer(200, 100)
	renderer := NewRenderer(200, 100)
	return NewHandler(fb, renderer, sender, zerolog.Nop()), renderer
}

func push(t *testing.T, h *Handler, payload interface{}) {
	t.Helper()
	args, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if _, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{Command: "canvas.a2ui.push", Args: args}); err != nil {
		t.Fatalf("handle invoke: %v", err)
	}
}

func TestHandlerA2UIPush(t *testing.T) {
	sender := &mockSender{}
	h, renderer := newTestHandler(t, sender)

	fill := 100
	push(t, h, map[string]interface{}{
		"components": []map[string]interface{}{
			{
				"type":   "box",
				"x":      0,
				"y":      0,
				"width":  10,
				"height": 10,
				"style": map[string]interface{}{
					"fillGray": fill,
				},
			},
		},
	})
	if got := renderer.Image.GrayAt(1, 1).Y; got != uint8(fill) {
		t.Fatalf("expected pixel fill %d, got %d", fill, got)
	}

	if h.HandleTap(context.Background(), 3, 3) {
		t.Fatalf("expected tap without actions to miss")
	}
	if len(sender.sent()) != 0 {
		t.Fatalf("unexpected action send")
	}
}

func TestHandlerTapNearLinkSendsAction(t *testing.T) {
	sender := &mockSender{}
	h, renderer := newTestHandler(t, sender)
	if err := h.SetTolerance(8); err != nil {
		t.Fatalf("set tolerance: %v", err)
	}
	push(t, h, map[string]interface{}{
		"components": []map[string]interface{}{
			{"type": "text", "x": 0, "y": 0, "width": 200, "height": 20, "text": "It was a dark night"},
			{"type": "link", "id": "fn1", "x": 150, "y": 2, "text": "*", "action": map[string]interface{}{"type": "footnote", "href": "#fn1"}},
		},
	})
	target := renderer.HitTargets[0].Rect

	if !h.HandleTap(context.Background(), target.Max.X+4, target.Max.Y+2) {
		t.Fatalf("expected tap near footnote to resolve")
	}
	events := sender.sent()
	if len(events) != 1 || events[0].method != "canvas.a2ui.action" {
		t.Fatalf("expected one action event, got %+v", events)
	}
	ev, ok := events[0].params.(ActionEvent)
	if !ok {
		t.Fatalf("unexpected params type %T", events[0].params)
	}
	if ev.Href != "#fn1" || ev.Type != "footnote" || ev.Distance != 5 {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.Rect != [4]int{target.Min.X, target.Min.Y, target.Dx(), target.Dy()} {
		t.Fatalf("unexpected rect %v", ev.Rect)
	}

	if h.HandleTap(context.Background(), 20, 80) {
		t.Fatalf("expected far tap to miss")
	}
	if len(sender.sent()) != 1 {
		t.Fatalf("miss must not send an action")
	}
}

func TestHandlerTouchConfigure(t *testing.T) {
	h, renderer := newTestHandler(t, nil)
	res, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{
		Command: " canvas.touch.configure ",
		Args:    json.RawMessage(`{"tolerance":3}`),
	})
	if err != nil {
		t.Fatalf("configure: %v", err)
	}
	if renderer.Tolerance != 3 {
		t.Fatalf("expected tolerance 3, got %d", renderer.Tolerance)
	}
	if got := res.(map[string]int)["tolerance"]; got != 3 {
		t.Fatalf("expected tolerance in result, got %v", res)
	}

	_, err = h.HandleInvokeRequest(context.Background(), InvokeRequest{
		Command: "canvas.touch.configure",
		Args:    json.RawMessage(`{"tolerance":-1}`),
	})
	if !errors.Is(err, ErrInvalidTolerance) {
		t.Fatalf("expected ErrInvalidTolerance, got %v", err)
	}
	if renderer.Tolerance != 3 {
		t.Fatalf("rejected config must not change tolerance")
	}

	res, err = h.HandleInvokeRequest(context.Background(), InvokeRequest{Command: "canvas.touch.configure"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := res.(map[string]int)["tolerance"]; got != 3 {
		t.Fatalf("expected current tolerance, got %v", res)
	}
}

func TestHandlerTouchZones(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	push(t, h, map[string]interface{}{
		"components": []map[string]interface{}{
			{"type": "button", "x": 20, "y": 20, "width": 10, "height": 10, "action": map[string]interface{}{"type": "tap"}},
		},
	})
	res, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{Command: "canvas.touch.zones"})
	if err != nil {
		t.Fatalf("zones: %v", err)
	}
	if s, ok := res.(string); !ok || s == "" {
		t.Fatalf("expected base64 png, got %T", res)
	}
}

func TestHandlerRejectsLinkWithoutAction(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	_, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{
		Command: "canvas.a2ui.push",
		Args:    json.RawMessage(`{"components":[{"type":"link","text":"*"}]}`),
	})
	if !errors.Is(err, ErrInvalidA2UI) {
		t.Fatalf("expected ErrInvalidA2UI, got %v", err)
	}
}

func TestHandlerRejectsEmptyLinkText(t *testing.T) {
	sender := &mockSender{}
	h, renderer := newTestHandler(t, sender)
	_, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{
		Command: "canvas.a2ui.push",
		Args:    json.RawMessage(`{"type":"link","x":150,"y":2,"text":"","action":{"type":"link","href":"#fn1"}}`),
	})
	if !errors.Is(err, ErrInvalidA2UI) {
		t.Fatalf("expected ErrInvalidA2UI, got %v", err)
	}
	if len(renderer.HitTargets) != 0 {
		t.Fatalf("expected no targets, got %v", renderer.HitTargets)
	}
	if h.HandleTap(context.Background(), 190, 8) {
		t.Fatalf("expected tap right of the empty link to miss")
	}
	if len(sender.sent()) != 0 {
		t.Fatalf("expected no action events, got %v", sender.sent())
	}
}

func TestHandlerToleranceChangeNotifies(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	var got []int
	h.OnToleranceChange(func(tolerance int) {
		got = append(got, tolerance)
	})

	if err := h.SetTolerance(12); err != nil {
		t.Fatalf("set tolerance: %v", err)
	}
	if _, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{
		Command: "canvas.touch.configure",
		Args:    json.RawMessage(`{"tolerance":5}`),
	}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	// Queries and rejected values leave the advertised tolerance alone.
	if _, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{Command: "canvas.touch.configure"}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{
		Command: "canvas.touch.configure",
		Args:    json.RawMessage(`{"tolerance":-2}`),
	}); !errors.Is(err, ErrInvalidTolerance) {
		t.Fatalf("expected ErrInvalidTolerance, got %v", err)
	}
	if len(got) != 2 || got[0] != 12 || got[1] != 5 {
		t.Fatalf("expected notifications [12 5], got %v", got)
	}
}

func TestHandlerUnknownCommand(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	if _, err := h.HandleInvokeRequest(context.Background(), InvokeRequest{Command: "canvas.unknown"}); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}

func TestHandlerConcurrentRenderHitTest(t *testing.T) {
	h, _ := newTestHandler(t, nil)
	push(t, h, map[string]interface{}{
		"components": []map[string]interface{}{
			{
				"type":   "box",
				"x":      0,
				"y":      0,
				"width":  10,
				"height": 10,
				"action": map[string]interface{}{"type": "tap"},
			},
		},
	})

	const iterations = 100
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_, _ = h.HandleInvokeRequest(context.Background(), InvokeRequest{Command: "canvas.present"})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			h.HandleTap(context.Background(), 1, 1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < iterations; i++ {
			_ = h.SetTolerance(i % 20)
		}
	}()
	wg.Wait()
}

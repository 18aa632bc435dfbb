package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"strings"
	"sync"
	"time"

	"github.com/openclaw/kobo-linktap/internal/eink"
	"github.com/rs/zerolog"
)

var ErrInvalidTolerance = errors.New("canvas: tolerance must be >= 0")

type ActionSender interface {
	SendEvent(ctx context.Context, method string, params interface{}) error
}

type Handler struct {
	mu       sync.Mutex
	fb       *eink.Framebuffer
	renderer *Renderer
	state    *A2UIState
	logger   zerolog.Logger
	sender   ActionSender

	onTolerance func(tolerance int)
}

func NewHandler(fb *eink.Framebuffer, renderer *Renderer, sender ActionSender, logger zerolog.Logger) *Handler {
	return &Handler{
		fb:       fb,
		renderer: renderer,
		state:    NewA2UIState(),
		logger:   logger,
		sender:   sender,
	}
}

type InvokeRequest struct {
	Command string
	Args    json.RawMessage
}

type TouchConfig struct {
	Tolerance *int `json:"tolerance,omitempty"`
}

type ActionEvent struct {
	Type     string          `json:"type"`
	Href     string          `json:"href,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	X        int             `json:"x"`
	Y        int             `json:"y"`
	Rect     [4]int          `json:"rect"`
	Distance int             `json:"distance"`
	Time     int64           `json:"time"`
}

func (h *Handler) HandleInvoke(ctx context.Context, req InvokeRequest) (interface{}, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch req.Command {
	case "canvas.present":
		return h.present(false)
	case "canvas.hide":
		h.renderer.Clear()
		return nil, h.flush(eink.Update{Full: true})
	case "canvas.navigate":
		return nil, errors.New("canvas.navigate not supported on Kobo")
	case "canvas.eval":
		return nil, errors.New("canvas.eval not supported on Kobo")
	case "canvas.snapshot":
		args, err := decodeSnapshotArgs(req.Args)
		if err != nil {
			return nil, err
		}
		return SnapshotBase64(h.renderer.Image, args.Region())
	case "canvas.a2ui.push":
		return h.handleA2UIPush(req.Args)
	case "canvas.a2ui.pushJSONL":
		return h.handleA2UIPushJSONL(req.Args)
	case "canvas.a2ui.reset":
		h.state.Reset()
		h.renderer.Clear()
		return nil, h.flush(eink.Update{Full: true})
	case "canvas.touch.configure":
		return h.configureTouch(req.Args)
	case "canvas.touch.zones":
		return SnapshotBase64(h.renderer.ZoneOverlay(), image.Rectangle{})
	default:
		return nil, fmt.Errorf("unknown canvas command %q", req.Command)
	}
}

func (h *Handler) HandleInvokeRequest(ctx context.Context, req InvokeRequest) (interface{}, error) {
	req.Command = strings.TrimSpace(req.Command)
	return h.HandleInvoke(ctx, req)
}

func (h *Handler) handleA2UIPush(args json.RawMessage) (interface{}, error) {
	push, err := DecodeA2UIPush(args)
	if err != nil {
		return nil, err
	}
	h.state.ApplyPush(push)
	return h.present(true)
}

func (h *Handler) handleA2UIPushJSONL(args json.RawMessage) (interface{}, error) {
	jsonl, err := unwrapStringArgs(args)
	if err != nil {
		return nil, err
	}
	pushes, err := DecodeA2UIJSONL([]byte(jsonl))
	if err != nil {
		return nil, err
	}
	for _, push := range pushes {
		h.state.ApplyPush(push)
	}
	return h.present(true)
}

func (h *Handler) configureTouch(args json.RawMessage) (interface{}, error) {
	var cfg TouchConfig
	if len(args) > 0 {
		if err := json.Unmarshal(args, &cfg); err != nil {
			return nil, fmt.Errorf("canvas: decode touch config: %w", err)
		}
	}
	if cfg.Tolerance != nil {
		if *cfg.Tolerance < 0 {
			return nil, fmt.Errorf("%w: got %d", ErrInvalidTolerance, *cfg.Tolerance)
		}
		h.renderer.Tolerance = *cfg.Tolerance
		h.logger.Info().Int("tolerance", h.renderer.Tolerance).Msg("touch tolerance updated")
		if h.onTolerance != nil {
			h.onTolerance(h.renderer.Tolerance)
		}
	}
	return map[string]int{"tolerance": h.renderer.Tolerance}, nil
}

func (h *Handler) SetTolerance(tolerance int) error {
	if tolerance < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidTolerance, tolerance)
	}
	h.mu.Lock()
	h.renderer.Tolerance = tolerance
	notify := h.onTolerance
	h.mu.Unlock()
	if notify != nil {
		notify(tolerance)
	}
	return nil
}

// OnToleranceChange registers fn to be called with the new tolerance after
// SetTolerance or canvas.touch.configure changes it.
func (h *Handler) OnToleranceChange(fn func(tolerance int)) {
	h.mu.Lock()
	h.onTolerance = fn
	h.mu.Unlock()
}

func (h *Handler) present(partial bool) (interface{}, error) {
	h.renderer.Render(h.state.Components())
	update := eink.Update{Full: !partial}
	if partial {
		update.Fast = true
	}
	return nil, h.flush(update)
}

func (h *Handler) flush(update eink.Update) error {
	if err := h.fb.WriteGray(h.renderer.Image); err != nil {
		return err
	}
	return h.fb.Refresh(update)
}

// HandleTap reports whether the tap landed on, or close enough to, a link. A
// miss sends nothing so the caller can decide what else the tap means.
func (h *Handler) HandleTap(ctx context.Context, x, y int) bool {
	h.mu.Lock()
	result, ok := h.renderer.HitTest(x, y)
	tolerance := h.renderer.Tolerance
	var flashErr error
	if ok {
		flashErr = h.fb.Refresh(eink.Update{Region: result.Rect, Fast: true})
	}
	h.mu.Unlock()
	if !ok {
		h.logger.Debug().Int("x", x).Int("y", y).Int("tolerance", tolerance).Msg("tap missed all targets")
		return false
	}
	h.logger.Debug().
		Int("x", x).
		Int("y", y).
		Str("action", result.Action.Type).
		Str("href", result.Action.Href).
		Stringer("rect", result.Rect).
		Int("distance", result.Distance).
		Msg("tap resolved")

	if flashErr != nil {
		h.logger.Warn().Err(flashErr).Msg("failed to flash tapped region")
	}
	if h.sender == nil {
		return true
	}
	event := ActionEvent{
		Type:     result.Action.Type,
		Href:     result.Action.Href,
		Payload:  result.Action.Payload,
		X:        x,
		Y:        y,
		Rect:     [4]int{result.Rect.Min.X, result.Rect.Min.Y, result.Rect.Dx(), result.Rect.Dy()},
		Distance: result.Distance,
		Time:     time.Now().UnixMilli(),
	}
	if err := h.sender.SendEvent(ctx, "canvas.a2ui.action", event); err != nil {
		h.logger.Warn().Err(err).Msg("failed to send A2UI action")
	}
	return true
}

func unwrapStringArgs(args json.RawMessage) (string, error) {
	var asString string
	if err := json.Unmarshal(args, &asString); err == nil {
		return asString, nil
	}
	var obj map[string]string
	if err := json.Unmarshal(args, &obj); err == nil {
		if val, ok := obj["jsonl"]; ok {
			return val, nil
		}
	}
	return "", errors.New("invalid JSONL args")
}

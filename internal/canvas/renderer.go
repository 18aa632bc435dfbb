package canvas

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/openclaw/kobo-linktap/internal/hit"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const DefaultTolerance = 16

type HitTarget struct {
	Rect   image.Rectangle
	Action A2UIAction
}

type HitResult struct {
	Action   A2UIAction
	Rect     image.Rectangle
	Distance int
}

type Renderer struct {
	Width      int
	Height     int
	Image      *image.Gray
	HitTargets []HitTarget
	Tolerance  int
	face       font.Face
}

func NewRenderer(width, height int) *Renderer {
	img := image.NewGray(image.Rect(0, 0, width, height))
	return &Renderer{
		Width:     width,
		Height:    height,
		Image:     img,
		Tolerance: DefaultTolerance,
		face:      basicfont.Face7x13,
	}
}

func (r *Renderer) Clear() {
	draw.Draw(r.Image, r.Image.Bounds(), &image.Uniform{C: color.Gray{Y: 255}}, image.Point{}, draw.Src)
	r.HitTargets = nil
}

func (r *Renderer) Render(components []A2UIComponent) {
	r.Clear()
	for _, comp := range components {
		r.renderComponent(comp, 0, 0)
	}
}

// renderComponent draws comp and its children and returns the rectangle it
// occupies. A link is sized to its text and never stretches to fill the canvas.
func (r *Renderer) renderComponent(comp A2UIComponent, offsetX, offsetY int) image.Rectangle {
	x := offsetX + comp.X
	y := offsetY + comp.Y
	width := comp.Width
	height := comp.Height
	if comp.Type == "link" {
		tw, th := r.measureText(comp.Text)
		if width <= 0 {
			width = tw
		}
		if height <= 0 {
			height = th
		}
	} else {
		if width <= 0 {
			width = r.Width - x
		}
		if height <= 0 {
			height = r.Height - y
		}
	}
	rect := image.Rect(x, y, x+width, y+height)

	switch comp.Type {
	case "box", "card", "button":
		fill := uint8(230)
		if comp.Style != nil && comp.Style.FillGray != nil {
			fill = *comp.Style.FillGray
		}
		draw.Draw(r.Image, rect, &image.Uniform{C: color.Gray{Y: fill}}, image.Point{}, draw.Src)
		stroke := uint8(80)
		if comp.Style != nil && comp.Style.StrokeGray != nil {
			stroke = *comp.Style.StrokeGray
		}
		r.strokeRect(rect, stroke)
	case "text":
		r.drawText(comp.Text, rect, color.Gray{Y: 20}, comp.Align)
	case "link":
		r.drawLink(comp.Text, rect)
	}

	if comp.Action != nil && !rect.Empty() {
		r.HitTargets = append(r.HitTargets, HitTarget{Rect: rect, Action: *comp.Action})
	}

	if len(comp.Children) == 0 {
		return rect
	}
	if comp.Type == "list" {
		cursorY := y + comp.Padding
		for _, child := range comp.Children {
			childY := child.Y
			if childY == 0 {
				childY = cursorY - y
			}
			child.X += comp.Padding
			child.Y = childY
			drawn := r.renderComponent(child, x, y)
			cursorY = drawn.Max.Y + comp.Padding
		}
		return rect
	}
	for _, child := range comp.Children {
		r.renderComponent(child, x, y)
	}
	return rect
}

func (r *Renderer) strokeRect(rect image.Rectangle, gray uint8) {
	strokeColor := color.Gray{Y: gray}
	rect = rect.Intersect(r.Image.Bounds())
	if rect.Empty() {
		return
	}
	for x := rect.Min.X; x < rect.Max.X; x++ {
		r.Image.SetGray(x, rect.Min.Y, strokeColor)
		r.Image.SetGray(x, rect.Max.Y-1, strokeColor)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		r.Image.SetGray(rect.Min.X, y, strokeColor)
		r.Image.SetGray(rect.Max.X-1, y, strokeColor)
	}
}

func (r *Renderer) measureText(text string) (int, int) {
	d := &font.Drawer{Face: r.face}
	metrics := r.face.Metrics()
	return d.MeasureString(text).Ceil(), (metrics.Ascent + metrics.Descent).Ceil()
}

func (r *Renderer) drawText(text string, rect image.Rectangle, col color.Gray, align string) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  r.Image,
		Src:  image.NewUniform(col),
		Face: r.face,
	}
	textWidth := d.MeasureString(text).Ceil()
	startX := rect.Min.X + 2
	if align == "center" {
		startX = rect.Min.X + (rect.Dx()-textWidth)/2
	} else if align == "right" {
		startX = rect.Max.X - textWidth - 2
	}
	startY := rect.Min.Y + r.face.Metrics().Ascent.Ceil() + 2
	d.Dot = fixed.P(startX, startY)
	d.DrawString(text)
}

// Links are drawn flush with their rectangle so the hit target matches the
// glyphs exactly. A single "*" marker is only a few pixels wide.
func (r *Renderer) drawLink(text string, rect image.Rectangle) {
	if text == "" {
		return
	}
	col := color.Gray{Y: 0}
	d := &font.Drawer{
		Dst:  r.Image,
		Src:  image.NewUniform(col),
		Face: r.face,
		Dot:  fixed.P(rect.Min.X, rect.Min.Y+r.face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	underline := rect.Max.Y - 1
	if underline < 0 || underline >= r.Height {
		return
	}
	for x := max(rect.Min.X, 0); x < min(rect.Max.X, r.Width); x++ {
		r.Image.SetGray(x, underline, col)
	}
}

// registry keys every target by its closed pixel rectangle. When two targets
// share identical bounds the one drawn last, which sits on top, wins.
func (r *Renderer) registry() map[hit.Rectangle]A2UIAction {
	out := make(map[hit.Rectangle]A2UIAction, len(r.HitTargets))
	for _, target := range r.HitTargets {
		rect, err := hit.FromImage(target.Rect)
		if err != nil {
			continue
		}
		out[rect] = target.Action
	}
	return out
}

func (r *Renderer) HitTest(x, y int) (HitResult, bool) {
	match, ok := hit.Nearest(r.registry(), r.Tolerance, hit.Pt(x, y))
	if !ok {
		return HitResult{}, false
	}
	return HitResult{Action: match.Value, Rect: match.Rect.Image(), Distance: match.Distance}, true
}

// ZoneOverlay copies the canvas and outlines the area around each target that
// still counts as a tap at the current tolerance.
func (r *Renderer) ZoneOverlay() *image.Gray {
	out := image.NewGray(r.Image.Bounds())
	copy(out.Pix, r.Image.Pix)
	overlay := &Renderer{Width: r.Width, Height: r.Height, Image: out, face: r.face}
	for rect := range r.registry() {
		overlay.strokeRect(rect.Expand(r.Tolerance).Image(), 128)
	}
	return out
}

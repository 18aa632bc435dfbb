package canvas

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
)

type SnapshotArgs struct {
	X      int `json:"x,omitempty"`
	Y      int `json:"y,omitempty"`
	Width  int `json:"width,omitempty"`
	Height int `json:"height,omitempty"`
}

// Region returns the requested crop, or the empty rectangle for a full
// snapshot.
func (a SnapshotArgs) Region() image.Rectangle {
	if a.Width <= 0 || a.Height <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
}

func decodeSnapshotArgs(args json.RawMessage) (SnapshotArgs, error) {
	var out SnapshotArgs
	if len(args) == 0 || string(args) == "null" {
		return out, nil
	}
	if err := json.Unmarshal(args, &out); err != nil {
		return SnapshotArgs{}, fmt.Errorf("canvas: decode snapshot args: %w", err)
	}
	return out, nil
}

func SnapshotBase64(img *image.Gray, region image.Rectangle) (string, error) {
	var src image.Image = img
	if !region.Empty() {
		region = region.Intersect(img.Bounds())
		if region.Empty() {
			return "", errors.New("canvas: snapshot region outside canvas")
		}
		src = img.SubImage(region)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		return "", fmt.Errorf("canvas: encode snapshot: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Package frame turns a source picture into the still frame of a loop video.
package frame

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"image-music-looper/internal/domain"
)

const (
	previewWidth  = 280
	previewHeight = 180
)

// TargetSize returns the pixel size a frame is rendered at for ratio.
func TargetSize(ratio domain.AspectRatio) (int, int) {
	return ratio.Width, ratio.Height
}

// CropBox returns the centered region of a w x h image that has the
// tw:th shape. Ratios are compared by cross-multiplication and the kept
// extent is rounded half up, so near-equal ratios never produce a
// sub-pixel crop. When margins are odd the extra pixel goes right/bottom.
func CropBox(w, h, tw, th int) image.Rectangle {
	if w <= 0 || h <= 0 || tw <= 0 || th <= 0 {
		return image.Rect(0, 0, max(w, 0), max(h, 0))
	}

	switch {
	case w*th > h*tw:
		// wider than target: trim left and right
		keep := (2*h*tw + th) / (2 * th)
		keep = clamp(keep, 1, w)
		left := (w - keep) / 2
		return image.Rect(left, 0, left+keep, h)
	case w*th < h*tw:
		// taller than target: trim top and bottom
		keep := (2*w*th + tw) / (2 * tw)
		keep = clamp(keep, 1, h)
		top := (h - keep) / 2
		return image.Rect(0, top, w, top+keep)
	default:
		return image.Rect(0, 0, w, h)
	}
}

// Fit crops img to the ratio's shape and resizes it to exactly the
// ratio's render size.
func Fit(img image.Image, ratio domain.AspectRatio) *image.NRGBA {
	b := img.Bounds()
	tw, th := TargetSize(ratio)
	box := CropBox(b.Dx(), b.Dy(), tw, th).Add(b.Min)

	cropped := imaging.Crop(img, box)
	return imaging.Resize(cropped, tw, th, imaging.Lanczos)
}

// Open decodes a JPEG, PNG or BMP file honoring EXIF orientation.
func Open(path string) (image.Image, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", path, err)
	}
	return img, nil
}

// PrepareFile writes the fitted frame of src to dst. The output format
// follows dst's extension.
func PrepareFile(src, dst string, ratio domain.AspectRatio) error {
	img, err := Open(src)
	if err != nil {
		return err
	}

	if err := imaging.Save(Fit(img, ratio), dst); err != nil {
		return fmt.Errorf("save frame %s: %w", dst, err)
	}
	return nil
}

// Preview builds thumbnails of the source and of the cropped frame.
func Preview(src string, ratio domain.AspectRatio) (domain.CropPreview, error) {
	img, err := Open(src)
	if err != nil {
		return domain.CropPreview{}, err
	}

	b := img.Bounds()
	box := CropBox(b.Dx(), b.Dy(), ratio.Width, ratio.Height)

	original, err := dataURL(imaging.Fit(img, previewWidth, previewHeight, imaging.Lanczos))
	if err != nil {
		return domain.CropPreview{}, err
	}

	cropped := imaging.Crop(img, box.Add(b.Min))
	croppedURL, err := dataURL(imaging.Fit(cropped, previewWidth, previewHeight, imaging.Lanczos))
	if err != nil {
		return domain.CropPreview{}, err
	}

	return domain.CropPreview{
		Original:     original,
		Cropped:      croppedURL,
		SourceWidth:  b.Dx(),
		SourceHeight: b.Dy(),
		CropX:        box.Min.X,
		CropY:        box.Min.Y,
		CropWidth:    box.Dx(),
		CropHeight:   box.Dy(),
		TargetWidth:  ratio.Width,
		TargetHeight: ratio.Height,
	}, nil
}

func dataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode preview: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

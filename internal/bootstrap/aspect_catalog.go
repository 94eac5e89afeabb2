package bootstrap

import (
	"fmt"
	"strings"

	"image-music-looper/internal/domain"
	"image-music-looper/internal/frame"
)

// AspectRatioOption is one dropdown entry with the current selection flagged.
type AspectRatioOption struct {
	domain.AspectRatio
	Selected bool `json:"selected"`
}

// GetAspectRatios returns the supported output shapes, marking the one
// stored in settings.
func (a *App) GetAspectRatios() []AspectRatioOption {
	a.mu.Lock()
	current := domain.ResolveAspectRatio(a.Settings.AspectRatio).ID
	a.mu.Unlock()

	ratios := domain.AspectRatios()
	options := make([]AspectRatioOption, 0, len(ratios))
	for _, ratio := range ratios {
		options = append(options, AspectRatioOption{
			AspectRatio: ratio,
			Selected:    ratio.ID == current,
		})
	}
	return options
}

// PreviewCrop renders thumbnails of imagePath before and after fitting it
// to ratioID.
func (a *App) PreviewCrop(imagePath, ratioID string) (domain.CropPreview, error) {
	path := strings.TrimSpace(imagePath)
	if path == "" {
		return domain.CropPreview{}, fmt.Errorf("select an image first")
	}

	preview, err := frame.Preview(path, domain.ResolveAspectRatio(ratioID))
	if err != nil {
		return domain.CropPreview{}, fmt.Errorf("preview crop: %w", err)
	}
	return preview, nil
}

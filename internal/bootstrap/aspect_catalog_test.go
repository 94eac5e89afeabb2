package bootstrap

import (
	"image/color"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"image-music-looper/internal/domain"
)

// TestGetAspectRatiosMarksSelection verifies the stored ratio is flagged.
func TestGetAspectRatiosMarksSelection(t *testing.T) {
	app := &App{Settings: domain.Settings{AspectRatio: "4:3"}}

	options := app.GetAspectRatios()
	if len(options) != len(domain.AspectRatios()) {
		t.Fatalf("len(options) = %d, want %d", len(options), len(domain.AspectRatios()))
	}

	selected := 0
	for _, option := range options {
		if option.Selected {
			selected++
			if option.ID != "4:3" {
				t.Fatalf("selected = %s, want 4:3", option.ID)
			}
		}
	}
	if selected != 1 {
		t.Fatalf("selected count = %d, want 1", selected)
	}
}

// TestGetAspectRatiosDefaultsUnknownSelection falls back to 16:9.
func TestGetAspectRatiosDefaultsUnknownSelection(t *testing.T) {
	app := &App{Settings: domain.Settings{AspectRatio: "9:16"}}

	for _, option := range app.GetAspectRatios() {
		if option.Selected && option.ID != domain.DefaultAspectRatioID {
			t.Fatalf("selected = %s, want %s", option.ID, domain.DefaultAspectRatioID)
		}
	}
}

// TestPreviewCrop builds thumbnails for a real image.
func TestPreviewCrop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	if err := imaging.Save(imaging.New(640, 480, color.White), path); err != nil {
		t.Fatalf("save image: %v", err)
	}

	preview, err := (&App{}).PreviewCrop(path, "16:9")
	if err != nil {
		t.Fatalf("preview: %v", err)
	}
	if preview.CropWidth != 640 || preview.CropHeight != 360 {
		t.Fatalf("crop = %dx%d, want 640x360", preview.CropWidth, preview.CropHeight)
	}
	if !strings.HasPrefix(preview.Cropped, "data:image/png;base64,") {
		t.Fatalf("cropped preview is not a data URL: %.40s", preview.Cropped)
	}
}

// TestPreviewCropRequiresImage rejects an empty selection.
func TestPreviewCropRequiresImage(t *testing.T) {
	if _, err := (&App{}).PreviewCrop("  ", "1:1"); err == nil {
		t.Fatal("expected error for empty image path")
	}
}

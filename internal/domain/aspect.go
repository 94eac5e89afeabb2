package domain

import "strings"

// AspectRatio describes one selectable output shape and its render size.
type AspectRatio struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Description string `json:"description,omitempty"`
}

// DefaultAspectRatioID is used when a ratio is empty or unknown.
const DefaultAspectRatioID = "16:9"

var aspectRatios = []AspectRatio{
	{
		ID:          "16:9",
		Name:        "Widescreen 16:9",
		Width:       1920,
		Height:      1080,
		Description: "Standard YouTube landscape video.",
	},
	{
		ID:          "4:3",
		Name:        "Classic 4:3",
		Width:       1440,
		Height:      1080,
		Description: "Older TV and presentation format.",
	},
	{
		ID:          "1:1",
		Name:        "Square 1:1",
		Width:       1080,
		Height:      1080,
		Description: "Square feeds and album covers.",
	},
	{
		ID:          "21:9",
		Name:        "Ultrawide 21:9",
		Width:       2560,
		Height:      1080,
		Description: "Cinematic ultrawide.",
	},
}

// AspectRatios returns a copy of the supported ratio catalog.
func AspectRatios() []AspectRatio {
	out := make([]AspectRatio, len(aspectRatios))
	copy(out, aspectRatios)
	return out
}

// LookupAspectRatio finds a ratio by ID.
func LookupAspectRatio(id string) (AspectRatio, bool) {
	id = strings.TrimSpace(id)
	for _, ratio := range aspectRatios {
		if ratio.ID == id {
			return ratio, true
		}
	}
	return AspectRatio{}, false
}

// ResolveAspectRatio returns the named ratio or the 16:9 default.
func ResolveAspectRatio(id string) AspectRatio {
	if ratio, ok := LookupAspectRatio(id); ok {
		return ratio
	}
	ratio, _ := LookupAspectRatio(DefaultAspectRatioID)
	return ratio
}

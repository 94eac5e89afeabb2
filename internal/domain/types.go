package domain

// JobStatus tracks each stage of a single loop-video job.
type JobStatus string

const (
	JobStatusIdle       JobStatus = "idle"
	JobStatusPreparing  JobStatus = "preparing"
	JobStatusRendering  JobStatus = "rendering"
	JobStatusFinalizing JobStatus = "finalizing"
	JobStatusDone       JobStatus = "done"
	JobStatusFailed     JobStatus = "failed"
)

// AutoCrossfadeMs is the seam length used when the crossfade is automatic.
const AutoCrossfadeMs = 3000

// MinDurationHours is the shortest video a job may request.
const MinDurationHours = 0.1

// MaxDurationHours is the longest video a job may request.
const MaxDurationHours = 12.0

// Settings contains the last-used form values restored on launch.
type Settings struct {
	OutputDir     string  `json:"outputDir"`
	DurationHours float64 `json:"durationHours"`
	AspectRatio   string  `json:"aspectRatio"`
	CrossfadeMs   int     `json:"crossfadeMs"`
	AutoCrossfade bool    `json:"autoCrossfade"`
	KeepOriginal  bool    `json:"keepOriginal"`
}

// JobConfig is the form state captured when a job starts.
type JobConfig struct {
	ImagePath     string  `json:"imagePath" validate:"required"`
	AudioPath     string  `json:"audioPath" validate:"required"`
	OutputDir     string  `json:"outputDir" validate:"required"`
	DurationHours float64 `json:"durationHours" validate:"gte=0.1,lte=12"`
	AspectRatio   string  `json:"aspectRatio"`
	CrossfadeMs   int     `json:"crossfadeMs" validate:"gte=0,lte=10000"`
	AutoCrossfade bool    `json:"autoCrossfade"`
	KeepOriginal  bool    `json:"keepOriginal"`
}

// TargetSeconds converts the requested hours to whole seconds, truncating.
func (c JobConfig) TargetSeconds() int {
	return int(c.DurationHours * 3600)
}

// EffectiveCrossfadeMs returns the seam length the renderer should use.
func (c JobConfig) EffectiveCrossfadeMs() int {
	if c.AutoCrossfade {
		return AutoCrossfadeMs
	}
	if c.CrossfadeMs < 0 {
		return 0
	}
	return c.CrossfadeMs
}

// Settings extracts the persistable part of a job configuration.
func (c JobConfig) Settings() Settings {
	return Settings{
		OutputDir:     c.OutputDir,
		DurationHours: c.DurationHours,
		AspectRatio:   c.AspectRatio,
		CrossfadeMs:   c.CrossfadeMs,
		AutoCrossfade: c.AutoCrossfade,
		KeepOriginal:  c.KeepOriginal,
	}
}

// Job stores the current job identity and lifecycle status.
type Job struct {
	ID     string    `json:"id"`
	Status JobStatus `json:"status"`
}

// CropPreview carries thumbnails and geometry for the preview tab.
type CropPreview struct {
	Original     string `json:"original"`
	Cropped      string `json:"cropped"`
	SourceWidth  int    `json:"sourceWidth"`
	SourceHeight int    `json:"sourceHeight"`
	CropX        int    `json:"cropX"`
	CropY        int    `json:"cropY"`
	CropWidth    int    `json:"cropWidth"`
	CropHeight   int    `json:"cropHeight"`
	TargetWidth  int    `json:"targetWidth"`
	TargetHeight int    `json:"targetHeight"`
}

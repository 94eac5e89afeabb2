package looper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"image-music-looper/internal/domain"
)

// Problem is one pre-flight finding shown to the user before a job starts.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Validator runs pre-flight checks on a job configuration.
type Validator struct {
	validate *validator.Validate
	stat     func(name string) (os.FileInfo, error)
}

// NewValidator constructs a validator backed by the real filesystem.
func NewValidator() *Validator {
	return NewValidatorForTests(os.Stat)
}

// NewValidatorForTests constructs a validator with an injectable stat.
func NewValidatorForTests(stat func(name string) (os.FileInfo, error)) *Validator {
	return &Validator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		stat:     stat,
	}
}

// Validate returns problems in a fixed order: image, audio, output
// folder, duration, crossfade. An empty result means the job may start.
func (v *Validator) Validate(cfg domain.JobConfig) []Problem {
	cfg = Normalize(cfg)

	failed := map[string]string{}
	if err := v.validate.Struct(cfg); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range fieldErrs {
				failed[fe.Field()] = fe.Tag()
			}
		} else {
			return []Problem{{Field: "config", Message: err.Error()}}
		}
	}

	var problems []Problem
	add := func(field, msg string) {
		problems = append(problems, Problem{Field: field, Message: msg})
	}

	if _, bad := failed["ImagePath"]; bad {
		add("imagePath", "No image file selected")
	} else if !v.isFile(cfg.ImagePath) {
		add("imagePath", fmt.Sprintf("Image file not found: %s", cfg.ImagePath))
	}

	if _, bad := failed["AudioPath"]; bad {
		add("audioPath", "No audio file selected")
	} else if !v.isFile(cfg.AudioPath) {
		add("audioPath", fmt.Sprintf("Audio file not found: %s", cfg.AudioPath))
	}

	if _, bad := failed["OutputDir"]; bad {
		add("outputDir", "No output folder selected")
	} else if !v.isDir(cfg.OutputDir) {
		add("outputDir", fmt.Sprintf("Output folder not found: %s", cfg.OutputDir))
	}

	switch failed["DurationHours"] {
	case "gte":
		add("durationHours", fmt.Sprintf("Duration must be at least %.1f hours", domain.MinDurationHours))
	case "lte":
		add("durationHours", fmt.Sprintf("Duration must be at most %.0f hours", domain.MaxDurationHours))
	}

	if _, bad := failed["CrossfadeMs"]; bad && !cfg.AutoCrossfade {
		add("crossfadeMs", "Crossfade must be between 0 and 10000 ms")
	}

	return problems
}

// Messages flattens problems for dialogs and terminals.
func Messages(problems []Problem) []string {
	return lo.Map(problems, func(p Problem, _ int) string { return p.Message })
}

// Normalize trims paths and resolves the aspect ratio to a supported ID.
func Normalize(cfg domain.JobConfig) domain.JobConfig {
	cfg.ImagePath = strings.TrimSpace(cfg.ImagePath)
	cfg.AudioPath = strings.TrimSpace(cfg.AudioPath)
	cfg.OutputDir = strings.TrimSpace(cfg.OutputDir)
	cfg.AspectRatio = domain.ResolveAspectRatio(cfg.AspectRatio).ID
	return cfg
}

// Summary describes a valid configuration for the confirmation dialog.
func Summary(cfg domain.JobConfig) string {
	cfg = Normalize(cfg)
	ratio := domain.ResolveAspectRatio(cfg.AspectRatio)

	crossfade := fmt.Sprintf("%d ms", cfg.CrossfadeMs)
	if cfg.AutoCrossfade {
		crossfade = fmt.Sprintf("automatic (%d ms)", domain.AutoCrossfadeMs)
	}
	keep := "no"
	if cfg.KeepOriginal {
		keep = "yes"
	}

	lines := []string{
		fmt.Sprintf("Image: %s", filepath.Base(cfg.ImagePath)),
		fmt.Sprintf("Audio: %s", filepath.Base(cfg.AudioPath)),
		fmt.Sprintf("Save to: %s", cfg.OutputDir),
		fmt.Sprintf("Duration: %.1f hours (%d s)", cfg.DurationHours, cfg.TargetSeconds()),
		fmt.Sprintf("Aspect ratio: %s (%dx%d)", ratio.ID, ratio.Width, ratio.Height),
		fmt.Sprintf("Crossfade: %s", crossfade),
		fmt.Sprintf("Keep frame: %s", keep),
	}
	return strings.Join(lines, "\n")
}

func (v *Validator) isFile(path string) bool {
	info, err := v.stat(path)
	return err == nil && !info.IsDir()
}

func (v *Validator) isDir(path string) bool {
	info, err := v.stat(path)
	return err == nil && info.IsDir()
}

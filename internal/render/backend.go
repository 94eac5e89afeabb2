// Package render turns a prepared frame and an audio track into a loop
// video, or into manual instructions when no encoder can be used.
package render

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
)

// ErrUnavailable marks a backend whose external dependency is missing.
var ErrUnavailable = errors.New("render: backend unavailable")

const (
	DefaultFrameRate    = 24
	DefaultAudioBitrate = "192k"
	DefaultPreset       = "veryfast"

	renderFileName = "render.mp4"
)

// Plan is everything a backend needs for one job.
type Plan struct {
	// FramePath is the prepared still frame inside WorkDir.
	FramePath string
	// AudioPath is the working copy of the audio inside WorkDir.
	AudioPath string
	// SourceAudioPath is the audio file the user picked.
	SourceAudioPath string
	WorkDir         string
	// OutputPath is where the finished video ends up after finalizing.
	OutputPath    string
	OutputDir     string
	BaseName      string
	TargetSeconds int
	CrossfadeMs   int
	FrameRate     int
	AudioBitrate  string
	Preset        string
}

// RenderPath is the scratch file ffmpeg backends encode into. It only
// moves to OutputPath once the encoder exits cleanly.
func (p Plan) RenderPath() string {
	return filepath.Join(p.WorkDir, renderFileName)
}

func (p Plan) withDefaults() Plan {
	if p.FrameRate <= 0 {
		p.FrameRate = DefaultFrameRate
	}
	if p.AudioBitrate == "" {
		p.AudioBitrate = DefaultAudioBitrate
	}
	if p.Preset == "" {
		p.Preset = DefaultPreset
	}
	return p
}

// Hooks receives progress and command logs while a backend runs.
type Hooks struct {
	OnProgress func(fraction float64)
	OnLog      func(log CommandLog)
}

func (h Hooks) progress(fraction float64) {
	if h.OnProgress != nil {
		h.OnProgress(fraction)
	}
}

func (h Hooks) log(log CommandLog) {
	if h.OnLog != nil {
		h.OnLog(log)
	}
}

// Outcome describes what a backend produced.
type Outcome struct {
	Backend string
	// VideoPath is the encoded file inside WorkDir, empty for instructions.
	VideoPath        string
	InstructionsPath string
	FrameCopyPath    string
	InstructionsOnly bool
	Logs             []CommandLog
}

// Backend is one strategy for materializing the loop video.
type Backend interface {
	Name() string
	// Available returns an error wrapping ErrUnavailable when the backend
	// cannot run on this machine.
	Available() error
	Render(ctx context.Context, plan Plan, hooks Hooks) (Outcome, error)
}

// BackendError is a backend failure with optional command context.
type BackendError struct {
	Backend    string     `json:"backend"`
	Message    string     `json:"message"`
	CommandLog CommandLog `json:"commandLog"`
	Err        error      `json:"-"`
}

// Error formats backend failures for logs and UI.
func (e *BackendError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Backend, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Backend,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *BackendError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func unavailable(tool string, err error) error {
	return fmt.Errorf("%w: %s not found: %v", ErrUnavailable, tool, err)
}

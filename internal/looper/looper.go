// Package looper runs one image-plus-music job: it stages the inputs in a
// work folder, prepares the frame, walks the backend chain and moves the
// result into place.
package looper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"image-music-looper/internal/config"
	"image-music-looper/internal/domain"
	"image-music-looper/internal/frame"
	"image-music-looper/internal/render"
)

// ErrNoBackend is wrapped when every backend was skipped or failed.
var ErrNoBackend = errors.New("looper: no backend produced output")

const (
	workDirPattern = ".looper-work-*"
	frameFileName  = "frame.png"

	percentPrepared  = 20
	percentRenderMin = 25
	percentRenderMax = 90
	percentFinal     = 95
)

// Request contains the job configuration and execution callbacks for one run.
type Request struct {
	Job        domain.JobConfig
	OnStage    func(stage domain.JobStatus)
	OnProgress func(percent int, message string)
	OnLog      func(log render.CommandLog)
}

// Attempt records what happened to one backend during a run.
type Attempt struct {
	Backend string `json:"backend"`
	Skipped bool   `json:"skipped"`
	Error   string `json:"error,omitempty"`
}

// Result describes the artifacts a successful run left in the output folder.
type Result struct {
	OutputPath       string              `json:"outputPath"`
	InstructionsPath string              `json:"instructionsPath,omitempty"`
	FramePath        string              `json:"framePath,omitempty"`
	Backend          string              `json:"backend"`
	InstructionsOnly bool                `json:"instructionsOnly"`
	TargetSeconds    int                 `json:"targetSeconds"`
	Attempts         []Attempt           `json:"attempts"`
	Logs             []render.CommandLog `json:"logs,omitempty"`
}

// Artifact is the path the user should look at: the video, or the
// instructions file when no video was rendered.
func (r Result) Artifact() string {
	if r.InstructionsOnly {
		return r.InstructionsPath
	}
	return r.OutputPath
}

// JobError is a stage-aware error with optional command context.
type JobError struct {
	Stage      domain.JobStatus  `json:"stage"`
	Message    string            `json:"message"`
	CommandLog render.CommandLog `json:"commandLog"`
	Problems   []Problem         `json:"problems,omitempty"`
	Err        error             `json:"-"`
}

// Error formats job failures for logs and UI.
func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.CommandLog.Command == "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}

	return fmt.Sprintf(
		"%s: %s (cmd=%s exit=%d)",
		e.Stage,
		e.Message,
		e.CommandLog.Command,
		e.CommandLog.ExitCode,
	)
}

// Unwrap exposes underlying error for errors.Is / errors.As.
func (e *JobError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Options tunes the encoders.
type Options struct {
	FrameRate    int
	AudioBitrate string
	Preset       string
}

// Orchestrator runs jobs against an ordered backend chain.
type Orchestrator struct {
	backends     []render.Backend
	opts         Options
	logger       *slog.Logger
	validator    *Validator
	mkdirTemp    func(dir, pattern string) (string, error)
	removeAll    func(path string) error
	rename       func(oldpath, newpath string) error
	copyFile     func(src, dst string) error
	prepareFrame func(src, dst string, ratio domain.AspectRatio) error
}

// New constructs an orchestrator over backends, tried in order.
func New(backends []render.Backend, opts Options, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		backends:     backends,
		opts:         opts,
		logger:       logger,
		validator:    NewValidator(),
		mkdirTemp:    os.MkdirTemp,
		removeAll:    os.RemoveAll,
		rename:       os.Rename,
		copyFile:     render.CopyFile,
		prepareFrame: frame.PrepareFile,
	}
}

// NewFromEnv wires the ffmpeg-go, ffmpeg CLI and instructions backends
// from process settings.
func NewFromEnv(env *config.Env, logger *slog.Logger) *Orchestrator {
	runner := &render.ExecRunner{}
	return New(DefaultBackends(env, runner), Options{
		FrameRate:    env.FrameRate,
		AudioBitrate: env.AudioBitrate,
		Preset:       env.VideoPreset,
	}, logger)
}

// DefaultBackends returns the production fallback chain.
func DefaultBackends(env *config.Env, runner render.Runner) []render.Backend {
	return []render.Backend{
		render.NewLibraryBackend(env.FFmpegPath, env.FFprobePath, runner),
		render.NewCLIBackend(env.FFmpegPath, runner),
		render.NewInstructionsBackend(env.FFmpegPath),
	}
}

// Backends exposes the chain for diagnostics.
func (o *Orchestrator) Backends() []render.Backend {
	return o.backends
}

// Validate runs pre-flight checks.
func (o *Orchestrator) Validate(cfg domain.JobConfig) []Problem {
	return o.validator.Validate(cfg)
}

// OutputPath returns where a job's video is written.
func OutputPath(cfg domain.JobConfig) string {
	cfg = Normalize(cfg)
	return filepath.Join(cfg.OutputDir, BaseName(cfg.AudioPath)+"_music_loop.mp4")
}

// BaseName is the audio file name without extension, used for every
// artifact the job writes.
func BaseName(audioPath string) string {
	base := filepath.Base(audioPath)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "music"
	}
	return name
}

// Run executes one job. The work folder is removed before Run returns and
// the output file only appears after a backend succeeded.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Result, error) {
	cfg := Normalize(req.Job)
	if problems := o.validator.Validate(cfg); len(problems) > 0 {
		return Result{}, &JobError{
			Stage:    domain.JobStatusPreparing,
			Message:  strings.Join(Messages(problems), "; "),
			Problems: problems,
		}
	}

	ratio := domain.ResolveAspectRatio(cfg.AspectRatio)
	base := BaseName(cfg.AudioPath)
	emitStage(req.OnStage, domain.JobStatusPreparing)
	emitProgress(req.OnProgress, 5, "Creating work folder")

	workDir, err := o.mkdirTemp(cfg.OutputDir, workDirPattern)
	if err != nil {
		return Result{}, &JobError{
			Stage:   domain.JobStatusPreparing,
			Message: "failed to create work folder",
			Err:     err,
		}
	}
	defer func() {
		if err := o.removeAll(workDir); err != nil {
			o.logger.Warn("work folder cleanup failed", "path", workDir, "error", err)
		}
	}()

	emitProgress(req.OnProgress, 10, "Copying input files")
	imageCopy := filepath.Join(workDir, "image"+strings.ToLower(filepath.Ext(cfg.ImagePath)))
	if err := o.copyFile(cfg.ImagePath, imageCopy); err != nil {
		return Result{}, &JobError{Stage: domain.JobStatusPreparing, Message: "failed to copy image", Err: err}
	}
	audioCopy := filepath.Join(workDir, "audio"+strings.ToLower(filepath.Ext(cfg.AudioPath)))
	if err := o.copyFile(cfg.AudioPath, audioCopy); err != nil {
		return Result{}, &JobError{Stage: domain.JobStatusPreparing, Message: "failed to copy audio", Err: err}
	}

	emitProgress(req.OnProgress, 15, fmt.Sprintf("Cropping image to %s", ratio.ID))
	framePath := filepath.Join(workDir, frameFileName)
	if err := o.prepareFrame(imageCopy, framePath, ratio); err != nil {
		return Result{}, &JobError{Stage: domain.JobStatusPreparing, Message: "failed to prepare frame", Err: err}
	}
	emitProgress(req.OnProgress, percentPrepared, "Frame ready")

	plan := render.Plan{
		FramePath:       framePath,
		AudioPath:       audioCopy,
		SourceAudioPath: cfg.AudioPath,
		WorkDir:         workDir,
		OutputPath:      OutputPath(cfg),
		OutputDir:       cfg.OutputDir,
		BaseName:        base,
		TargetSeconds:   cfg.TargetSeconds(),
		CrossfadeMs:     cfg.EffectiveCrossfadeMs(),
		FrameRate:       o.opts.FrameRate,
		AudioBitrate:    o.opts.AudioBitrate,
		Preset:          o.opts.Preset,
	}

	emitStage(req.OnStage, domain.JobStatusRendering)
	outcome, attempts, err := o.render(ctx, plan, req)
	if err != nil {
		return Result{Attempts: attempts}, err
	}

	emitStage(req.OnStage, domain.JobStatusFinalizing)
	emitProgress(req.OnProgress, percentFinal, "Finalizing output")

	result := Result{
		Backend:          outcome.Backend,
		InstructionsOnly: outcome.InstructionsOnly,
		InstructionsPath: outcome.InstructionsPath,
		FramePath:        outcome.FrameCopyPath,
		TargetSeconds:    plan.TargetSeconds,
		Attempts:         attempts,
		Logs:             outcome.Logs,
	}

	if !outcome.InstructionsOnly {
		if err := o.rename(outcome.VideoPath, plan.OutputPath); err != nil {
			return Result{Attempts: attempts}, &JobError{
				Stage:   domain.JobStatusFinalizing,
				Message: fmt.Sprintf("failed to move video to %s", plan.OutputPath),
				Err:     err,
			}
		}
		result.OutputPath = plan.OutputPath

		if cfg.KeepOriginal {
			keep := filepath.Join(cfg.OutputDir, base+"_frame.png")
			if err := o.copyFile(framePath, keep); err != nil {
				o.logger.Warn("keeping prepared frame failed", "path", keep, "error", err)
			} else {
				result.FramePath = keep
			}
		}
	}

	if result.InstructionsOnly {
		emitProgress(req.OnProgress, 100, "Instructions written")
	} else {
		emitProgress(req.OnProgress, 100, "Done")
	}
	return result, nil
}

// render walks the backend chain; every backend is tried at most once.
func (o *Orchestrator) render(ctx context.Context, plan render.Plan, req Request) (render.Outcome, []Attempt, error) {
	attempts := make([]Attempt, 0, len(o.backends))
	var lastErr error
	var lastLog render.CommandLog

	for _, backend := range o.backends {
		name := backend.Name()
		if err := backend.Available(); err != nil {
			o.logger.Info("backend unavailable", "backend", name, "error", err)
			attempts = append(attempts, Attempt{Backend: name, Skipped: true, Error: err.Error()})
			lastErr = err
			continue
		}

		emitProgress(req.OnProgress, percentRenderMin, fmt.Sprintf("Rendering with %s", name))
		o.logger.Info("rendering", "backend", name, "target_seconds", plan.TargetSeconds)

		outcome, err := backend.Render(ctx, plan, render.Hooks{
			OnProgress: func(fraction float64) {
				span := percentRenderMax - percentRenderMin
				emitProgress(req.OnProgress, percentRenderMin+int(fraction*float64(span)), fmt.Sprintf("Rendering with %s", name))
			},
			OnLog: req.OnLog,
		})
		if err == nil {
			attempts = append(attempts, Attempt{Backend: name})
			return outcome, attempts, nil
		}

		o.logger.Warn("backend failed", "backend", name, "error", err)
		attempts = append(attempts, Attempt{Backend: name, Error: err.Error()})
		lastErr = err
		var backendErr *render.BackendError
		if errors.As(err, &backendErr) && backendErr.CommandLog.Command != "" {
			lastLog = backendErr.CommandLog
		}
		if rmErr := o.removeAll(plan.RenderPath()); rmErr != nil {
			o.logger.Warn("partial render cleanup failed", "path", plan.RenderPath(), "error", rmErr)
		}
	}

	return render.Outcome{}, attempts, &JobError{
		Stage:      domain.JobStatusRendering,
		Message:    "no backend could produce the video or instructions",
		CommandLog: lastLog,
		Err:        errors.Join(ErrNoBackend, lastErr),
	}
}

// emitStage forwards stage updates when callback is configured.
func emitStage(cb func(stage domain.JobStatus), stage domain.JobStatus) {
	if cb != nil {
		cb(stage)
	}
}

// emitProgress forwards progress when callback is configured.
func emitProgress(cb func(percent int, message string), percent int, message string) {
	if cb != nil {
		cb(percent, message)
	}
}

// NewForTests constructs an orchestrator with injectable dependencies.
func NewForTests(
	backends []render.Backend,
	logger *slog.Logger,
	stat func(name string) (os.FileInfo, error),
	prepareFrame func(src, dst string, ratio domain.AspectRatio) error,
	rename func(oldpath, newpath string) error,
) *Orchestrator {
	o := New(backends, Options{}, logger)
	o.validator = NewValidatorForTests(stat)
	if prepareFrame != nil {
		o.prepareFrame = prepareFrame
	}
	if rename != nil {
		o.rename = rename
	}
	return o
}

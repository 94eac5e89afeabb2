package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"

	"image-music-looper/internal/config"
	"image-music-looper/internal/diagnostics"
	"image-music-looper/internal/domain"
	"image-music-looper/internal/jobs"
	"image-music-looper/internal/looper"
	"image-music-looper/internal/publish"
	"image-music-looper/internal/render"

	wailsruntime "github.com/wailsapp/wails/v2/pkg/runtime"
)

// ErrInvalidJob is returned when a job fails pre-flight validation.
var ErrInvalidJob = errors.New("job settings are invalid")

// ErrStartDeclined is returned when the user answers no to the start prompt.
var ErrStartDeclined = errors.New("job start declined")

// App wires configuration, jobs, the loop orchestrator, and UI runtime callbacks.
type App struct {
	Settings    domain.Settings
	Store       config.Store
	Jobs        *jobs.Manager
	Looper      loopRunner
	Uploader    uploader
	Dialogs     Dialogs
	Diagnostics domain.DiagnosticReport
	Logger      *slog.Logger
	assets      fs.FS
	checker     *diagnostics.Checker

	mu         sync.Mutex
	events     *jobs.EventBus
	runtimeCtx context.Context
}

// loopRunner isolates the orchestrator behind an interface.
type loopRunner interface {
	Validate(cfg domain.JobConfig) []looper.Problem
	Run(ctx context.Context, req looper.Request) (looper.Result, error)
}

// uploader publishes finished videos.
type uploader interface {
	UploadFile(ctx context.Context, localPath string) (string, error)
}

// ValidationReport is the result of pre-flight checks shown by the UI.
type ValidationReport struct {
	Valid      bool             `json:"valid"`
	Problems   []looper.Problem `json:"problems"`
	Summary    string           `json:"summary,omitempty"`
	OutputPath string           `json:"outputPath,omitempty"`
}

// New builds the application with persisted settings and startup diagnostics.
func New() (*App, error) {
	return NewWithAssets(nil)
}

// NewWithAssets builds the application and optionally configures embedded frontend assets.
func NewWithAssets(assets fs.FS) (*App, error) {
	ctx := context.Background()
	env, err := config.LoadEnv(ctx)
	if err != nil {
		return nil, err
	}
	logger := env.NewLogger()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve user home: %w", err)
	}
	if err := ensureLocalBinOnPATH(homeDir); err != nil {
		return nil, fmt.Errorf("prepare local tool path: %w", err)
	}

	store := config.NewJSONStore(config.SettingsPath(homeDir))
	settings, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	orchestrator := looper.NewFromEnv(env, logger)
	checker := diagnostics.NewChecker(env.FFmpegPath, env.FFprobePath,
		lo.Map(orchestrator.Backends(), func(b render.Backend, _ int) diagnostics.Backend { return b }))
	report := checker.Run(settings)

	app := &App{
		Settings:    settings,
		Store:       store,
		Jobs:        jobs.NewManager(),
		Looper:      orchestrator,
		Diagnostics: report,
		Logger:      logger,
		assets:      assets,
		checker:     checker,
		events:      jobs.NewEventBus(1000),
	}
	app.Dialogs = &wailsDialogs{runtimeContext: app.runtimeContext}

	if env.S3Enabled() {
		up, err := publish.NewS3Uploader(ctx, publish.ConfigFromEnv(env))
		if err != nil {
			logger.Warn("S3 upload disabled", "error", err)
		} else {
			app.Uploader = up
		}
	}

	logger.Info("app ready", "backend", report.Backend, "settings", config.SettingsPath(homeDir))
	return app, nil
}

// Run starts the Wails desktop application and binds backend methods.
func (a *App) Run() error {
	assetOptions := &assetserver.Options{}
	if a.assets != nil {
		assetOptions.Assets = a.assets
	} else {
		assetOptions.Handler = http.FileServer(http.Dir("./frontend"))
	}

	return wails.Run(&options.App{
		Title:       "Image Music Looper",
		Width:       960,
		Height:      760,
		MinWidth:    760,
		MinHeight:   620,
		AssetServer: assetOptions,
		OnStartup:   a.Startup,
		OnShutdown: func(ctx context.Context) {
			a.mu.Lock()
			defer a.mu.Unlock()
			a.runtimeCtx = nil
		},
		Bind: []interface{}{a},
	})
}

// Startup stores Wails runtime context for push events.
func (a *App) Startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runtimeCtx = ctx
}

// GetDiagnostics returns the latest cached diagnostics report.
func (a *App) GetDiagnostics() domain.DiagnosticReport {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Diagnostics
}

// GetSettings loads and returns the latest persisted settings.
func (a *App) GetSettings() (domain.Settings, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.Settings{}, fmt.Errorf("load settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = settings
	a.mu.Unlock()

	return settings, nil
}

// SaveSettings normalizes and persists settings, then refreshes diagnostics.
func (a *App) SaveSettings(settings domain.Settings) (domain.Settings, error) {
	normalized := normalizeSettings(settings)
	if err := a.Store.Save(normalized); err != nil {
		return domain.Settings{}, fmt.Errorf("save settings: %w", err)
	}

	a.mu.Lock()
	a.Settings = normalized
	if a.checker != nil {
		a.Diagnostics = a.checker.Run(normalized)
	}
	a.mu.Unlock()

	return normalized, nil
}

// PickImageFile opens a native file dialog for the still image.
func (a *App) PickImageFile() (string, error) {
	return a.Dialogs.OpenFile("Select image", imageDialogFilter)
}

// PickAudioFile opens a native file dialog for the music track.
func (a *App) PickAudioFile() (string, error) {
	return a.Dialogs.OpenFile("Select audio", audioDialogFilter)
}

// PickOutputDirectory opens a native directory picker for loop videos.
func (a *App) PickOutputDirectory() (string, error) {
	a.mu.Lock()
	current := a.Settings.OutputDir
	a.mu.Unlock()

	return a.Dialogs.OpenDirectory("Select output folder", current)
}

// OpenOutputFolder opens the given path (or configured output dir) in file manager.
func (a *App) OpenOutputFolder(path string) error {
	target := strings.TrimSpace(path)
	if target == "" {
		a.mu.Lock()
		target = a.Settings.OutputDir
		a.mu.Unlock()
	}
	if target == "" {
		return fmt.Errorf("output path is empty")
	}

	info, err := os.Stat(target)
	if err != nil {
		return fmt.Errorf("resolve output path: %w", err)
	}

	openPath := target
	if !info.IsDir() {
		openPath = filepath.Dir(target)
	}

	return openInFileManager(openPath)
}

// RefreshDiagnostics reloads settings and reruns dependency checks.
func (a *App) RefreshDiagnostics() (domain.DiagnosticReport, error) {
	settings, err := a.Store.Load()
	if err != nil {
		return domain.DiagnosticReport{}, fmt.Errorf("load settings: %w", err)
	}

	return a.refreshDiagnosticsFromSettings(settings), nil
}

// CheckJob runs pre-flight validation without any dialog.
func (a *App) CheckJob(cfg domain.JobConfig) ValidationReport {
	cfg = looper.Normalize(cfg)
	problems := a.Looper.Validate(cfg)
	if len(problems) > 0 {
		return ValidationReport{Problems: problems}
	}

	return ValidationReport{
		Valid:      true,
		Problems:   []looper.Problem{},
		Summary:    looper.Summary(cfg),
		OutputPath: looper.OutputPath(cfg),
	}
}

// ValidateJob runs pre-flight validation and shows the result in a dialog.
func (a *App) ValidateJob(cfg domain.JobConfig) (ValidationReport, error) {
	report := a.CheckJob(cfg)
	if a.Dialogs == nil {
		return report, nil
	}

	if !report.Valid {
		return report, a.Dialogs.Error("Invalid settings", strings.Join(looper.Messages(report.Problems), "\n"))
	}
	return report, a.Dialogs.Info("Settings are valid", report.Summary+"\n\nReady to create the video.")
}

// StartLoop validates the form, asks for confirmation and runs the job
// on a background worker.
func (a *App) StartLoop(cfg domain.JobConfig) (domain.Job, error) {
	cfg = looper.Normalize(cfg)
	report := a.CheckJob(cfg)
	if !report.Valid {
		msg := strings.Join(looper.Messages(report.Problems), "\n")
		if a.Dialogs != nil {
			_ = a.Dialogs.Error("Invalid settings", msg)
		}
		return domain.Job{}, fmt.Errorf("%w: %s", ErrInvalidJob, strings.Join(looper.Messages(report.Problems), "; "))
	}

	if a.Jobs.IsRunning() {
		return domain.Job{}, jobs.ErrJobAlreadyRunning
	}

	if a.Dialogs != nil {
		ok, err := a.Dialogs.Confirm("Start", fmt.Sprintf(
			"Create a %.1f hour video?\nThis can take a long time.", cfg.DurationHours))
		if err != nil {
			return domain.Job{}, fmt.Errorf("confirm start: %w", err)
		}
		if !ok {
			return domain.Job{}, ErrStartDeclined
		}
	}

	jobID := uuid.NewString()
	if err := a.Jobs.Start(jobID); err != nil {
		return domain.Job{}, err
	}

	if _, err := a.SaveSettings(cfg.Settings()); err != nil {
		a.logger().Warn("persist form settings failed", "error", err)
	}

	a.publishStatus(jobID, domain.JobStatusPreparing, "Job started")
	a.publishEvent(jobs.Event{JobID: jobID, Type: jobs.EventTypeProgress, Progress: 0, Message: "Starting"})

	go a.runLoopJob(jobID, cfg)
	return a.Jobs.Current(), nil
}

// CurrentJob returns current job metadata and status.
func (a *App) CurrentJob() domain.Job {
	return a.Jobs.Current()
}

// JobEvents returns all events with sequence greater than sinceSeq.
func (a *App) JobEvents(sinceSeq int64) []jobs.Event {
	return a.events.Since(sinceSeq)
}

// LatestJobEvent returns the newest event so a reloaded window can restore
// the progress bar, or nil before the first job.
func (a *App) LatestJobEvent() *jobs.Event {
	event, ok := a.events.Latest()
	if !ok {
		return nil
	}
	return &event
}

// runLoopJob executes the orchestrator and maps outcomes to job events.
// It always leaves the job in done or failed.
func (a *App) runLoopJob(jobID string, cfg domain.JobConfig) {
	defer func() {
		if r := recover(); r != nil {
			a.logger().Error("loop job panicked", "job_id", jobID, "panic", r)
			a.failJob(jobID, fmt.Errorf("unexpected error: %v", r))
		}
	}()

	ctx := context.Background()
	req := looper.Request{
		Job: cfg,
		OnStage: func(stage domain.JobStatus) {
			if err := a.Jobs.Transition(stage); err == nil {
				a.publishStatus(jobID, stage, "Running "+string(stage)+" stage")
			}
		},
		OnProgress: func(percent int, message string) {
			a.publishEvent(jobs.Event{
				JobID:    jobID,
				Type:     jobs.EventTypeProgress,
				Progress: percent,
				Message:  message,
			})
		},
		OnLog: func(log render.CommandLog) {
			a.publishEvent(jobs.Event{
				JobID:    jobID,
				Type:     jobs.EventTypeLog,
				Message:  "Command completed",
				Command:  log.Command,
				Args:     log.Args,
				ExitCode: log.ExitCode,
				Stderr:   tail(log.Stderr, 4000),
			})
		},
	}

	result, err := a.Looper.Run(ctx, req)
	if err != nil {
		a.failJob(jobID, err)
		return
	}

	url := ""
	if a.Uploader != nil && !result.InstructionsOnly {
		a.publishEvent(jobs.Event{JobID: jobID, Type: jobs.EventTypeLog, Message: "Uploading to S3"})
		uploaded, upErr := a.Uploader.UploadFile(ctx, result.OutputPath)
		if upErr != nil {
			a.logger().Warn("upload failed", "job_id", jobID, "error", upErr)
			a.publishEvent(jobs.Event{JobID: jobID, Type: jobs.EventTypeLog, Message: fmt.Sprintf("Upload failed: %v", upErr)})
		} else {
			url = uploaded
		}
	}

	if err := a.Jobs.Transition(domain.JobStatusDone); err == nil {
		a.publishStatus(jobID, domain.JobStatusDone, "Job completed")
	}

	message := "Video created"
	if result.InstructionsOnly {
		message = "No encoder available: manual instructions written"
	}
	a.publishEvent(jobs.Event{
		JobID:            jobID,
		Type:             jobs.EventTypeResult,
		Status:           domain.JobStatusDone,
		Progress:         100,
		Message:          message,
		Backend:          result.Backend,
		OutputPath:       result.Artifact(),
		InstructionsOnly: result.InstructionsOnly,
		URL:              url,
	})
	a.logger().Info("loop job finished", "job_id", jobID, "backend", result.Backend, "output", result.Artifact())

	if a.Dialogs != nil {
		_ = a.Dialogs.Info("Finished", fmt.Sprintf("%s.\nSaved to: %s", message, result.Artifact()))
	}
}

// failJob moves the job to failed and publishes error details.
func (a *App) failJob(jobID string, err error) {
	a.logger().Error("loop job failed", "job_id", jobID, "error", err)

	_ = a.Jobs.Transition(domain.JobStatusFailed)
	a.publishStatus(jobID, domain.JobStatusFailed, "Job failed")
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeError,
		Status:  domain.JobStatusFailed,
		Message: err.Error(),
	})

	var jobErr *looper.JobError
	if errors.As(err, &jobErr) && jobErr.CommandLog.Command != "" {
		a.publishEvent(jobs.Event{
			JobID:    jobID,
			Type:     jobs.EventTypeLog,
			Message:  "Failed command",
			Command:  jobErr.CommandLog.Command,
			Args:     jobErr.CommandLog.Args,
			ExitCode: jobErr.CommandLog.ExitCode,
			Stderr:   tail(jobErr.CommandLog.Stderr, 4000),
		})
	}

	if a.Dialogs != nil {
		_ = a.Dialogs.Error("Error", fmt.Sprintf("Could not create the video:\n%v", err))
	}
}

// publishStatus sends a normalized status event.
func (a *App) publishStatus(jobID string, status domain.JobStatus, message string) {
	a.publishEvent(jobs.Event{
		JobID:   jobID,
		Type:    jobs.EventTypeStatus,
		Status:  status,
		Message: message,
	})
}

// publishEvent stores event history and emits runtime push notifications.
func (a *App) publishEvent(event jobs.Event) {
	published := a.events.Publish(event)

	a.mu.Lock()
	ctx := a.runtimeCtx
	a.mu.Unlock()
	if ctx != nil {
		wailsruntime.EventsEmit(ctx, "job:event", published)
	}
}

// runtimeContext returns current Wails runtime context for dialog APIs.
func (a *App) runtimeContext() (context.Context, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.runtimeCtx == nil {
		return nil, fmt.Errorf("runtime context is not initialized")
	}
	return a.runtimeCtx, nil
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// normalizeSettings trims user inputs and falls back to defaults for
// out-of-range values.
func normalizeSettings(settings domain.Settings) domain.Settings {
	defaults := config.DefaultSettings()
	settings.OutputDir = strings.TrimSpace(settings.OutputDir)
	settings.AspectRatio = domain.ResolveAspectRatio(settings.AspectRatio).ID
	if settings.DurationHours < domain.MinDurationHours || settings.DurationHours > domain.MaxDurationHours {
		settings.DurationHours = defaults.DurationHours
	}
	if settings.CrossfadeMs < 0 || settings.CrossfadeMs > 10000 {
		settings.CrossfadeMs = defaults.CrossfadeMs
	}
	return settings
}

// tail keeps the last n bytes of noisy process output.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}

// openInFileManager launches the platform file explorer for the provided path.
func openInFileManager(path string) error {
	var cmd *exec.Cmd
	switch goruntime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("explorer", filepath.Clean(path))
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("launch file manager: %w", err)
	}
	return nil
}

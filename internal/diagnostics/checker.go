package diagnostics

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"image-music-looper/internal/domain"
)

// Item IDs the UI can pass back to InstallOrFixDiagnostic.
const (
	ItemFFmpeg    = "tool_ffmpeg"
	ItemFFprobe   = "tool_ffprobe"
	ItemOutputDir = "output_dir"
	ItemBackend   = "backend"
)

// Backend is the part of a render backend diagnostics needs.
type Backend interface {
	Name() string
	Available() error
}

// Checker validates external tools, the output folder and which render
// backend a job would start with.
type Checker struct {
	ffmpegPath  string
	ffprobePath string
	backends    []Backend
	lookPath    func(string) (string, error)
	mkdirAll    func(string, os.FileMode) error
	createTemp  func(string, string) (*os.File, error)
	remove      func(string) error
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker(ffmpegPath, ffprobePath string, backends []Backend) *Checker {
	return &Checker{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		backends:    backends,
		lookPath:    exec.LookPath,
		mkdirAll:    os.MkdirAll,
		createTemp:  os.CreateTemp,
		remove:      os.Remove,
	}
}

// Run executes all startup checks and returns a combined report.
func (c *Checker) Run(settings domain.Settings) domain.DiagnosticReport {
	backendItem, backend := c.checkBackend()
	items := []domain.DiagnosticItem{
		c.checkTool(ItemFFmpeg, c.ffmpegPath, "Without ffmpeg jobs only write manual instructions."),
		c.checkTool(ItemFFprobe, c.ffprobePath, "Without ffprobe the crossfading ffmpeg-go renderer is skipped."),
		c.checkOutputDir(settings.OutputDir),
		backendItem,
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Backend:     backend,
		Items:       items,
	}
}

// checkTool verifies an optional CLI executable resolves. Missing tools
// only degrade the backend chain, so they warn instead of failing.
func (c *Checker) checkTool(id, name, impact string) domain.DiagnosticItem {
	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      id,
			Name:    name,
			Status:  domain.DiagnosticStatusWarn,
			Message: fmt.Sprintf("Tool not found in PATH: %s", name),
			Hint:    impact + " Install ffmpeg or set LOOPER_FFMPEG_PATH / LOOPER_FFPROBE_PATH.",
			Fixable: true,
		}
	}

	return domain.DiagnosticItem{
		ID:      id,
		Name:    name,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkOutputDir validates output directory existence and write access.
func (c *Checker) checkOutputDir(outputDir string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemOutputDir,
		Name: "Output folder",
	}

	if strings.TrimSpace(outputDir) == "" {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Output folder is empty."
		item.Hint = "Choose a folder where loop videos can be written."
		return item
	}

	if err := c.mkdirAll(outputDir, 0o755); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Cannot create output folder: %s", outputDir)
		item.Hint = "Choose a writable location or adjust filesystem permissions."
		item.Fixable = true
		return item
	}

	tmpFile, err := c.createTemp(outputDir, ".write-check-*")
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = fmt.Sprintf("Output folder is not writable: %s", outputDir)
		item.Hint = "Choose a writable folder for loop videos."
		return item
	}

	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()
	_ = c.remove(tmpPath)

	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("Writable folder: %s", outputDir)
	return item
}

// checkBackend reports the first backend in the chain that can run.
func (c *Checker) checkBackend() (domain.DiagnosticItem, string) {
	item := domain.DiagnosticItem{
		ID:   ItemBackend,
		Name: "Renderer",
	}

	for i, backend := range c.backends {
		if backend.Available() != nil {
			continue
		}
		item.Message = fmt.Sprintf("Jobs will render with %s", backend.Name())
		item.Status = domain.DiagnosticStatusPass
		if i == len(c.backends)-1 && len(c.backends) > 1 {
			item.Status = domain.DiagnosticStatusWarn
			item.Message = fmt.Sprintf("Only %s is available: jobs write instructions instead of a video", backend.Name())
			item.Hint = "Install ffmpeg to render videos directly."
			item.Fixable = true
		}
		return item, backend.Name()
	}

	item.Status = domain.DiagnosticStatusFail
	item.Message = "No renderer is available."
	return item, ""
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(
	ffmpegPath string,
	ffprobePath string,
	backends []Backend,
	lookPath func(string) (string, error),
	mkdirAll func(string, os.FileMode) error,
	createTemp func(string, string) (*os.File, error),
	remove func(string) error,
) *Checker {
	return &Checker{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		backends:    backends,
		lookPath:    lookPath,
		mkdirAll:    mkdirAll,
		createTemp:  createTemp,
		remove:      remove,
	}
}

package looper

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/jpeg"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-music-looper/internal/domain"
	"image-music-looper/internal/render"
)

// fakeBackend records calls into a shared trace and optionally writes a video.
type fakeBackend struct {
	name      string
	availErr  error
	renderErr error
	trace     *[]string
	plan      *render.Plan
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Available() error {
	*f.trace = append(*f.trace, "available:"+f.name)
	return f.availErr
}

func (f *fakeBackend) Render(_ context.Context, plan render.Plan, hooks render.Hooks) (render.Outcome, error) {
	*f.trace = append(*f.trace, "render:"+f.name)
	if f.plan != nil {
		*f.plan = plan
	}
	if f.renderErr != nil {
		// leave a partial file behind like a crashed encoder would
		_ = os.WriteFile(plan.RenderPath(), []byte("partial"), 0o644)
		return render.Outcome{Backend: f.name}, &render.BackendError{
			Backend:    f.name,
			Message:    "encode failed",
			CommandLog: render.CommandLog{Command: "ffmpeg", ExitCode: 1},
			Err:        f.renderErr,
		}
	}
	if hooks.OnProgress != nil {
		hooks.OnProgress(0.5)
	}
	if err := os.WriteFile(plan.RenderPath(), []byte("video"), 0o644); err != nil {
		return render.Outcome{}, err
	}
	return render.Outcome{Backend: f.name, VideoPath: plan.RenderPath()}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fakePrepare(_, dst string, _ domain.AspectRatio) error {
	return os.WriteFile(dst, []byte("frame"), 0o644)
}

func newTestOrchestrator(backends ...render.Backend) *Orchestrator {
	return NewForTests(backends, quietLogger(), os.Stat, fakePrepare, nil)
}

// workDirs lists leftover work folders in dir.
func workDirs(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var out []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".looper-work-") {
			out = append(out, e.Name())
		}
	}
	return out
}

func TestOutputPathAndBaseName(t *testing.T) {
	cfg := domain.JobConfig{AudioPath: "/music/Rain Sounds.flac", OutputDir: "/videos"}
	assert.Equal(t, filepath.Join("/videos", "Rain Sounds_music_loop.mp4"), OutputPath(cfg))
	assert.Equal(t, "music", BaseName(""))
}

func TestRun_FirstBackendSucceeds(t *testing.T) {
	cfg := validConfig(t)
	var trace []string
	var plan render.Plan
	a := &fakeBackend{name: "a", trace: &trace, plan: &plan}
	b := &fakeBackend{name: "b", trace: &trace}

	var stages []domain.JobStatus
	var percents []int
	result, err := newTestOrchestrator(a, b).Run(context.Background(), Request{
		Job:        cfg,
		OnStage:    func(s domain.JobStatus) { stages = append(stages, s) },
		OnProgress: func(p int, _ string) { percents = append(percents, p) },
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"available:a", "render:a"}, trace)
	assert.Equal(t, []domain.JobStatus{domain.JobStatusPreparing, domain.JobStatusRendering, domain.JobStatusFinalizing}, stages)
	assert.Equal(t, 100, percents[len(percents)-1])
	assert.Contains(t, percents, 57)
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}

	assert.Equal(t, "a", result.Backend)
	assert.False(t, result.InstructionsOnly)
	assert.Equal(t, 14400, result.TargetSeconds)
	assert.Equal(t, OutputPath(cfg), result.OutputPath)
	assert.Equal(t, result.OutputPath, result.Artifact())
	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, "video", string(data))

	assert.Equal(t, cfg.OutputDir, filepath.Dir(plan.WorkDir))
	assert.Equal(t, 14400, plan.TargetSeconds)
	assert.Equal(t, 3000, plan.CrossfadeMs)
	assert.Equal(t, cfg.AudioPath, plan.SourceAudioPath)
	assert.Empty(t, workDirs(t, cfg.OutputDir))
	_, statErr := os.Stat(plan.WorkDir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRun_FallbackOrder(t *testing.T) {
	cfg := validConfig(t)
	var trace []string
	a := &fakeBackend{name: "a", trace: &trace, renderErr: errors.New("boom")}
	b := &fakeBackend{name: "b", trace: &trace, availErr: render.ErrUnavailable}
	c := &fakeBackend{name: "c", trace: &trace}

	result, err := newTestOrchestrator(a, b, c).Run(context.Background(), Request{Job: cfg})
	require.NoError(t, err)

	assert.Equal(t, []string{"available:a", "render:a", "available:b", "available:c", "render:c"}, trace)
	assert.Equal(t, "c", result.Backend)
	require.Len(t, result.Attempts, 3)
	assert.NotEmpty(t, result.Attempts[0].Error)
	assert.False(t, result.Attempts[0].Skipped)
	assert.True(t, result.Attempts[1].Skipped)
	assert.Empty(t, result.Attempts[2].Error)
}

func TestRun_AFailureTriesBBeforeC(t *testing.T) {
	cfg := validConfig(t)
	var trace []string
	a := &fakeBackend{name: "a", trace: &trace, renderErr: errors.New("boom")}
	b := &fakeBackend{name: "b", trace: &trace}
	c := &fakeBackend{name: "c", trace: &trace}

	result, err := newTestOrchestrator(a, b, c).Run(context.Background(), Request{Job: cfg})
	require.NoError(t, err)
	assert.Equal(t, "b", result.Backend)
	assert.Equal(t, []string{"available:a", "render:a", "available:b", "render:b"}, trace)
}

func TestRun_AllBackendsFail(t *testing.T) {
	cfg := validConfig(t)
	var trace []string
	a := &fakeBackend{name: "a", trace: &trace, renderErr: errors.New("boom")}
	b := &fakeBackend{name: "b", trace: &trace, renderErr: errors.New("bang")}

	_, err := newTestOrchestrator(a, b).Run(context.Background(), Request{Job: cfg})
	require.Error(t, err)

	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, domain.JobStatusRendering, jobErr.Stage)
	assert.Equal(t, "ffmpeg", jobErr.CommandLog.Command)
	assert.True(t, errors.Is(err, ErrNoBackend))

	_, statErr := os.Stat(OutputPath(cfg))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, workDirs(t, cfg.OutputDir))
}

func TestRun_RejectsInvalidJob(t *testing.T) {
	cfg := validConfig(t)
	cfg.DurationHours = 0
	var trace []string

	_, err := newTestOrchestrator(&fakeBackend{name: "a", trace: &trace}).Run(context.Background(), Request{Job: cfg})
	require.Error(t, err)

	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, domain.JobStatusPreparing, jobErr.Stage)
	require.Len(t, jobErr.Problems, 1)
	assert.Equal(t, "durationHours", jobErr.Problems[0].Field)
	assert.Empty(t, trace)
	assert.Empty(t, workDirs(t, cfg.OutputDir))
}

func TestRun_FramePreparationFailure(t *testing.T) {
	cfg := validConfig(t)
	var trace []string
	failPrepare := func(string, string, domain.AspectRatio) error { return errors.New("decode image: bad") }
	o := NewForTests([]render.Backend{&fakeBackend{name: "a", trace: &trace}}, quietLogger(), os.Stat, failPrepare, nil)

	_, err := o.Run(context.Background(), Request{Job: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to prepare frame")
	assert.Empty(t, trace)
	assert.Empty(t, workDirs(t, cfg.OutputDir))
}

func TestRun_RenameFailureLeavesNoVideo(t *testing.T) {
	cfg := validConfig(t)
	var trace []string
	failRename := func(string, string) error { return errors.New("cross-device link") }
	o := NewForTests([]render.Backend{&fakeBackend{name: "a", trace: &trace}}, quietLogger(), os.Stat, fakePrepare, failRename)

	_, err := o.Run(context.Background(), Request{Job: cfg})
	require.Error(t, err)

	var jobErr *JobError
	require.True(t, errors.As(err, &jobErr))
	assert.Equal(t, domain.JobStatusFinalizing, jobErr.Stage)
	_, statErr := os.Stat(OutputPath(cfg))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, workDirs(t, cfg.OutputDir))
}

func TestRun_KeepOriginalSavesFrame(t *testing.T) {
	cfg := validConfig(t)
	cfg.KeepOriginal = true
	var trace []string

	result, err := newTestOrchestrator(&fakeBackend{name: "a", trace: &trace}).Run(context.Background(), Request{Job: cfg})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.OutputDir, "song_frame.png"), result.FramePath)
	data, err := os.ReadFile(result.FramePath)
	require.NoError(t, err)
	assert.Equal(t, "frame", string(data))
}

// TestRun_EndToEndInstructionsOnly covers a machine without ffmpeg: the
// real frame preparation runs and the instructions name the exact command.
func TestRun_EndToEndInstructionsOnly(t *testing.T) {
	dir := t.TempDir()
	imagePath := filepath.Join(dir, "dot.jpg")
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, imaging.New(1, 1, color.NRGBA{R: 255, A: 255}), nil))
	require.NoError(t, os.WriteFile(imagePath, buf.Bytes(), 0o644))
	audioPath := filepath.Join(dir, "clip.wav")
	require.NoError(t, os.WriteFile(audioPath, []byte("RIFF....WAVE"), 0o644))

	noTool := func(string) (string, error) { return "", errors.New("not found") }
	backends := []render.Backend{
		render.NewLibraryBackendForTests("ffmpeg", "ffprobe", &render.ExecRunner{}, noTool, nil, os.Stat),
		render.NewCLIBackendForTests("ffmpeg", &render.ExecRunner{}, noTool, os.Stat),
		render.NewInstructionsBackendForTests("ffmpeg", "linux", render.CopyFile, os.WriteFile),
	}
	o := New(backends, Options{}, quietLogger())

	result, err := o.Run(context.Background(), Request{Job: domain.JobConfig{
		ImagePath:     imagePath,
		AudioPath:     audioPath,
		OutputDir:     dir,
		DurationHours: 0.1,
		AspectRatio:   "1:1",
	}})
	require.NoError(t, err)

	assert.True(t, result.InstructionsOnly)
	assert.Equal(t, "instructions", result.Backend)
	assert.Equal(t, 360, result.TargetSeconds)
	assert.Empty(t, result.OutputPath)
	assert.Equal(t, result.InstructionsPath, result.Artifact())
	assert.True(t, result.Attempts[0].Skipped)
	assert.True(t, result.Attempts[1].Skipped)

	body, err := os.ReadFile(filepath.Join(dir, "clip_music_loop_instructions.txt"))
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, "-loop 1")
	assert.Contains(t, text, "-t 360")
	assert.Contains(t, text, filepath.Join(dir, "clip_frame.png"))
	assert.Contains(t, text, filepath.Join(dir, "clip_music_loop.mp4"))

	img, err := imaging.Open(filepath.Join(dir, "clip_frame.png"))
	require.NoError(t, err)
	assert.Equal(t, 1080, img.Bounds().Dx())
	assert.Equal(t, 1080, img.Bounds().Dy())

	_, statErr := os.Stat(filepath.Join(dir, "clip_music_loop.mp4"))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, workDirs(t, dir))
}

package render

import (
	"context"
	"os"
	"os/exec"
	"strconv"
)

// CLIBackend encodes the loop with a single ffmpeg invocation that
// repeats the audio with -stream_loop and caps the output with -t.
type CLIBackend struct {
	ffmpegPath string
	runner     Runner
	lookPath   func(file string) (string, error)
	stat       func(name string) (os.FileInfo, error)
}

// NewCLIBackend constructs the production ffmpeg CLI backend.
func NewCLIBackend(ffmpegPath string, runner Runner) *CLIBackend {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &CLIBackend{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		lookPath:   exec.LookPath,
		stat:       os.Stat,
	}
}

// Name identifies the backend in logs and results.
func (b *CLIBackend) Name() string { return "ffmpeg-cli" }

// Available checks that the ffmpeg executable resolves.
func (b *CLIBackend) Available() error {
	if _, err := b.lookPath(b.ffmpegPath); err != nil {
		return unavailable(b.ffmpegPath, err)
	}
	return nil
}

// Render runs ffmpeg and reports progress parsed from its stdout.
func (b *CLIBackend) Render(ctx context.Context, plan Plan, hooks Hooks) (Outcome, error) {
	plan = plan.withDefaults()
	out := plan.RenderPath()
	args := append(append([]string{}, progressArgs...), BuildLoopArgs(plan, plan.FramePath, plan.AudioPath, out)...)

	log, err := runLogged(ctx, b.runner, hooks, b.ffmpegPath, args, progressLine(hooks, plan.TargetSeconds))
	outcome := Outcome{Backend: b.Name(), Logs: []CommandLog{log}}
	if err != nil {
		return outcome, &BackendError{
			Backend:    b.Name(),
			Message:    "ffmpeg loop encode failed",
			CommandLog: log,
			Err:        err,
		}
	}

	if _, err := b.stat(out); err != nil {
		return outcome, &BackendError{
			Backend:    b.Name(),
			Message:    "ffmpeg completed but output video is missing",
			CommandLog: log,
			Err:        err,
		}
	}

	outcome.VideoPath = out
	return outcome, nil
}

// BuildLoopArgs builds the ffmpeg arguments that loop one still frame
// over a repeating audio track for exactly plan.TargetSeconds.
func BuildLoopArgs(plan Plan, framePath, audioPath, outPath string) []string {
	plan = plan.withDefaults()
	fps := strconv.Itoa(plan.FrameRate)

	return []string{
		"-y",
		"-loop", "1",
		"-framerate", fps,
		"-i", framePath,
		"-stream_loop", "-1",
		"-i", audioPath,
		"-c:v", "libx264",
		"-tune", "stillimage",
		"-preset", plan.Preset,
		"-c:a", "aac",
		"-b:a", plan.AudioBitrate,
		"-pix_fmt", "yuv420p",
		"-r", fps,
		"-t", strconv.Itoa(plan.TargetSeconds),
		"-shortest",
		outPath,
	}
}

// NewCLIBackendForTests constructs a CLI backend with injectable dependencies.
func NewCLIBackendForTests(
	ffmpegPath string,
	runner Runner,
	lookPath func(file string) (string, error),
	stat func(name string) (os.FileInfo, error),
) *CLIBackend {
	return &CLIBackend{
		ffmpegPath: ffmpegPath,
		runner:     runner,
		lookPath:   lookPath,
		stat:       stat,
	}
}

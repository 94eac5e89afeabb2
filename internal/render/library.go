package render

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

const (
	loopUnitFileName   = "loop-unit.wav"
	concatListFileName = "loop-list.txt"
	defaultProbePath   = "ffprobe"
)

// LibraryBackend builds the encode graph with ffmpeg-go: the audio is
// probed, repeated through the concat demuxer enough times to cover the
// target, optionally faded at the seam, and trimmed with -t.
type LibraryBackend struct {
	ffmpegPath  string
	ffprobePath string
	runner      Runner
	lookPath    func(file string) (string, error)
	probe       func(path string) (string, error)
	writeFile   func(name string, data []byte, perm os.FileMode) error
	stat        func(name string) (os.FileInfo, error)
}

// NewLibraryBackend constructs the production ffmpeg-go backend.
func NewLibraryBackend(ffmpegPath, ffprobePath string, runner Runner) *LibraryBackend {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = defaultProbePath
	}
	if runner == nil {
		runner = &ExecRunner{}
	}

	b := &LibraryBackend{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		lookPath:    exec.LookPath,
		writeFile:   os.WriteFile,
		stat:        os.Stat,
	}
	b.probe = b.defaultProbe
	return b
}

// Name identifies the backend in logs and results.
func (b *LibraryBackend) Name() string { return "ffmpeg-go" }

// Available checks that both ffmpeg and ffprobe resolve.
func (b *LibraryBackend) Available() error {
	if _, err := b.lookPath(b.ffmpegPath); err != nil {
		return unavailable(b.ffmpegPath, err)
	}
	if _, err := b.lookPath(b.ffprobePath); err != nil {
		return unavailable(b.ffprobePath, err)
	}
	return nil
}

// Render probes, prepares the loop unit and encodes the video.
func (b *LibraryBackend) Render(ctx context.Context, plan Plan, hooks Hooks) (Outcome, error) {
	plan = plan.withDefaults()
	outcome := Outcome{Backend: b.Name()}

	raw, err := b.probe(plan.AudioPath)
	if err != nil {
		return outcome, &BackendError{Backend: b.Name(), Message: "ffprobe could not read the audio", Err: err}
	}
	clip, err := ParseProbeDuration(raw)
	if err != nil {
		return outcome, &BackendError{Backend: b.Name(), Message: "audio duration is unknown", Err: err}
	}
	loops := LoopCount(plan.TargetSeconds, clip)

	unit := plan.AudioPath
	if fade := SeamFadeSeconds(plan.CrossfadeMs, clip); fade > 0 {
		unit = filepath.Join(plan.WorkDir, loopUnitFileName)
		args := BuildLoopUnitArgs(plan.AudioPath, unit, clip, fade)
		log, err := runLogged(ctx, b.runner, hooks, b.ffmpegPath, args, nil)
		outcome.Logs = append(outcome.Logs, log)
		if err != nil {
			return outcome, &BackendError{
				Backend:    b.Name(),
				Message:    "ffmpeg seam fade failed",
				CommandLog: log,
				Err:        err,
			}
		}
	}

	listPath := filepath.Join(plan.WorkDir, concatListFileName)
	if err := b.writeFile(listPath, ConcatList(filepath.Base(unit), loops), 0o644); err != nil {
		return outcome, &BackendError{Backend: b.Name(), Message: "cannot write concat list", Err: err}
	}

	out := plan.RenderPath()
	args := BuildGraphArgs(plan, listPath, out)
	log, err := runLogged(ctx, b.runner, hooks, b.ffmpegPath, args, progressLine(hooks, plan.TargetSeconds))
	outcome.Logs = append(outcome.Logs, log)
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

// defaultProbe uses ffmpeg-go's prober for the stock binary and runs a
// configured ffprobe with the same arguments otherwise.
func (b *LibraryBackend) defaultProbe(path string) (string, error) {
	if b.ffprobePath == defaultProbePath {
		return ffmpeg.Probe(path)
	}

	args := []string{"-show_format", "-show_streams", "-of", "json", path}
	res, err := b.runner.Run(context.Background(), b.ffprobePath, args, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", b.ffprobePath, err, strings.TrimSpace(res.Stderr))
	}
	return res.Stdout, nil
}

// LoopCount returns how many copies of a clip cover targetSeconds.
func LoopCount(targetSeconds int, clipSeconds float64) int {
	if targetSeconds <= 0 || clipSeconds <= 0 {
		return 1
	}
	n := int(math.Ceil(float64(targetSeconds) / clipSeconds))
	if n < 1 {
		n = 1
	}
	return n
}

// SeamFadeSeconds converts the crossfade to the fade applied at each end
// of the loop unit, capped at a third of the clip.
func SeamFadeSeconds(crossfadeMs int, clipSeconds float64) float64 {
	if crossfadeMs <= 0 || clipSeconds <= 0 {
		return 0
	}
	fade := float64(crossfadeMs) / 1000
	if limit := clipSeconds / 3; fade > limit {
		fade = limit
	}
	return fade
}

// ParseProbeDuration extracts format.duration from ffprobe JSON output.
func ParseProbeDuration(raw string) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(raw), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}

	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %v", d)
	}
	return d, nil
}

// ConcatList renders a concat demuxer list naming file n times.
func ConcatList(file string, n int) []byte {
	entry := "file '" + strings.ReplaceAll(file, "'", `'\''`) + "'\n"
	return []byte(strings.Repeat(entry, max(n, 1)))
}

// BuildLoopUnitArgs fades the clip in and out so consecutive copies meet
// at silence instead of clicking.
func BuildLoopUnitArgs(audioPath, unitPath string, clipSeconds, fadeSeconds float64) []string {
	d := formatSeconds(fadeSeconds)
	return ffmpeg.Input(audioPath).
		Audio().
		Filter("afade", ffmpeg.Args{}, ffmpeg.KwArgs{"t": "in", "st": "0", "d": d}).
		Filter("afade", ffmpeg.Args{}, ffmpeg.KwArgs{"t": "out", "st": formatSeconds(clipSeconds - fadeSeconds), "d": d}).
		Output(unitPath, ffmpeg.KwArgs{"c:a": "pcm_s16le"}).
		GlobalArgs("-hide_banner", "-nostdin").
		OverWriteOutput().
		GetArgs()
}

// BuildGraphArgs builds the main encode: the frame looped at the frame
// rate plus the concatenated audio, cut at the target duration.
func BuildGraphArgs(plan Plan, listPath, outPath string) []string {
	plan = plan.withDefaults()

	video := ffmpeg.Input(plan.FramePath, ffmpeg.KwArgs{"loop": 1, "framerate": plan.FrameRate})
	audio := ffmpeg.Input(listPath, ffmpeg.KwArgs{"f": "concat", "safe": 0})

	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, outPath, ffmpeg.KwArgs{
		"t":       plan.TargetSeconds,
		"c:v":     "libx264",
		"tune":    "stillimage",
		"preset":  plan.Preset,
		"c:a":     "aac",
		"b:a":     plan.AudioBitrate,
		"pix_fmt": "yuv420p",
		"r":       plan.FrameRate,
	}).
		GlobalArgs(progressArgs...).
		OverWriteOutput().
		GetArgs()
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// NewLibraryBackendForTests constructs a library backend with injectable
// dependencies.
func NewLibraryBackendForTests(
	ffmpegPath string,
	ffprobePath string,
	runner Runner,
	lookPath func(file string) (string, error),
	probe func(path string) (string, error),
	stat func(name string) (os.FileInfo, error),
) *LibraryBackend {
	return &LibraryBackend{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		runner:      runner,
		lookPath:    lookPath,
		probe:       probe,
		writeFile:   os.WriteFile,
		stat:        stat,
	}
}

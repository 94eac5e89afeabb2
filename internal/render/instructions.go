package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// InstructionsBackend never encodes. It leaves the prepared frame and a
// text file with the exact ffmpeg command next to where the video
// would have been written.
type InstructionsBackend struct {
	ffmpegPath string
	goos       string
	copyFile   func(src, dst string) error
	writeFile  func(name string, data []byte, perm os.FileMode) error
}

// NewInstructionsBackend constructs the last-resort backend.
func NewInstructionsBackend(ffmpegPath string) *InstructionsBackend {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	return &InstructionsBackend{
		ffmpegPath: ffmpegPath,
		goos:       runtime.GOOS,
		copyFile:   CopyFile,
		writeFile:  os.WriteFile,
	}
}

// Name identifies the backend in logs and results.
func (b *InstructionsBackend) Name() string { return "instructions" }

// Available always succeeds.
func (b *InstructionsBackend) Available() error { return nil }

// Render writes <base>_frame.png and <base>_music_loop_instructions.txt
// into the output folder.
func (b *InstructionsBackend) Render(_ context.Context, plan Plan, hooks Hooks) (Outcome, error) {
	plan = plan.withDefaults()
	outcome := Outcome{Backend: b.Name(), InstructionsOnly: true}

	framePath := filepath.Join(plan.OutputDir, plan.BaseName+"_frame.png")
	if err := b.copyFile(plan.FramePath, framePath); err != nil {
		return outcome, &BackendError{Backend: b.Name(), Message: "cannot copy prepared frame", Err: err}
	}

	text := InstructionsText(plan, b.CommandLine(plan, framePath))
	path := filepath.Join(plan.OutputDir, plan.BaseName+"_music_loop_instructions.txt")
	if err := b.writeFile(path, []byte(text), 0o644); err != nil {
		_ = os.Remove(framePath)
		return outcome, &BackendError{Backend: b.Name(), Message: "cannot write instructions file", Err: err}
	}

	hooks.progress(1)
	outcome.FrameCopyPath = framePath
	outcome.InstructionsPath = path
	return outcome, nil
}

// CommandLine renders the CLI backend's command for a frame stored at
// framePath, the user's audio file and the final output path.
func (b *InstructionsBackend) CommandLine(plan Plan, framePath string) string {
	args := BuildLoopArgs(plan, framePath, plan.SourceAudioPath, plan.OutputPath)
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(b.goos, b.ffmpegPath))
	for _, arg := range args {
		parts = append(parts, quoteArg(b.goos, arg))
	}
	return strings.Join(parts, " ")
}

// InstructionsText is the body of the instructions file.
func InstructionsText(plan Plan, commandLine string) string {
	plan = plan.withDefaults()

	var sb strings.Builder
	sb.WriteString("Image Music Looper: manual render instructions\n")
	sb.WriteString("================================================\n\n")
	sb.WriteString("No video encoder was available on this machine, so the loop video\n")
	sb.WriteString("was not rendered. The prepared frame was saved next to this file.\n\n")

	fmt.Fprintf(&sb, "Audio:     %s\n", plan.SourceAudioPath)
	fmt.Fprintf(&sb, "Duration:  %d seconds\n", plan.TargetSeconds)
	fmt.Fprintf(&sb, "Output:    %s\n\n", plan.OutputPath)

	sb.WriteString("Steps:\n")
	sb.WriteString("1. Install ffmpeg from https://ffmpeg.org/download.html and make sure\n")
	sb.WriteString("   the ffmpeg command works in a terminal.\n")
	sb.WriteString("2. Open a terminal in any folder.\n")
	sb.WriteString("3. Run this command:\n\n")
	sb.WriteString(commandLine)
	sb.WriteString("\n\n")
	sb.WriteString("4. When it finishes, the video is at the output path above.\n")
	if plan.CrossfadeMs > 0 {
		fmt.Fprintf(&sb, "\nNote: the %d ms crossfade is only applied when the app renders the\n", plan.CrossfadeMs)
		sb.WriteString("video itself. The command above loops the audio without fading.\n")
	}
	return sb.String()
}

// quoteArg quotes one argument for the platform's default shell.
func quoteArg(goos, arg string) string {
	if arg != "" && !strings.ContainsAny(arg, " \t\n\"'\\$`&|;<>()*?[]{}!#~%") {
		return arg
	}
	if goos == "windows" {
		return `"` + strings.ReplaceAll(arg, `"`, `\"`) + `"`
	}
	return "'" + strings.ReplaceAll(arg, "'", `'\''`) + "'"
}

// NewInstructionsBackendForTests constructs an instructions backend for a
// fixed platform with injectable file operations.
func NewInstructionsBackendForTests(
	ffmpegPath string,
	goos string,
	copyFile func(src, dst string) error,
	writeFile func(name string, data []byte, perm os.FileMode) error,
) *InstructionsBackend {
	return &InstructionsBackend{
		ffmpegPath: ffmpegPath,
		goos:       goos,
		copyFile:   copyFile,
		writeFile:  writeFile,
	}
}

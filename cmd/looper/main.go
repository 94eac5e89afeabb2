package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/pflag"

	"image-music-looper/internal/config"
	"image-music-looper/internal/domain"
	"image-music-looper/internal/looper"
	"image-music-looper/internal/publish"
	"image-music-looper/internal/render"
)

func main() {
	defaults := config.DefaultSettings()
	cfg := domain.JobConfig{}
	var upload bool

	pflag.CommandLine.SortFlags = false
	pflag.StringVarP(&cfg.ImagePath, "image", "i", "", "Still image (JPEG, PNG or BMP)")
	pflag.StringVarP(&cfg.AudioPath, "audio", "a", "", "Music track to loop")
	pflag.StringVarP(&cfg.OutputDir, "output", "o", defaults.OutputDir, "Output folder")
	pflag.Float64VarP(&cfg.DurationHours, "hours", "d", defaults.DurationHours, "Video length in hours")
	pflag.StringVarP(&cfg.AspectRatio, "ratio", "r", defaults.AspectRatio, "Aspect ratio: 16:9, 4:3, 1:1 or 21:9")
	pflag.IntVar(&cfg.CrossfadeMs, "crossfade", defaults.CrossfadeMs, "Seam crossfade in milliseconds (0-10000)")
	pflag.BoolVar(&cfg.AutoCrossfade, "auto-crossfade", false, "Use the automatic crossfade length")
	pflag.BoolVar(&cfg.KeepOriginal, "keep-frame", false, "Also save the prepared frame next to the video")
	pflag.BoolVar(&upload, "upload", true, "Upload the video when S3 is configured")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	env, err := config.LoadEnv(ctx)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := env.NewLogger()
	orchestrator := looper.NewFromEnv(env, logger)

	cfg = looper.Normalize(cfg)
	if problems := orchestrator.Validate(cfg); len(problems) > 0 {
		for _, msg := range looper.Messages(problems) {
			fmt.Fprintln(os.Stderr, msg)
		}
		os.Exit(2)
	}
	fmt.Println(looper.Summary(cfg))

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetDescription("Preparing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "|",
			BarEnd:        "|",
		}),
		progressbar.OptionSetWidth(50),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
	)

	result, err := orchestrator.Run(ctx, looper.Request{
		Job: cfg,
		OnProgress: func(percent int, message string) {
			bar.Describe(message)
			_ = bar.Set(percent)
		},
		OnLog: func(cl render.CommandLog) {
			logger.Debug("command finished", "command", cl.Command, "exit_code", cl.ExitCode)
		},
	})
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)

	if err != nil {
		var jobErr *looper.JobError
		if errors.As(err, &jobErr) && jobErr.CommandLog.Stderr != "" {
			fmt.Fprintln(os.Stderr, jobErr.CommandLog.Stderr)
		}
		logger.Error("loop failed", "error", err)
		os.Exit(1)
	}

	if result.InstructionsOnly {
		fmt.Printf("No encoder available. Follow the steps in %s\n", result.InstructionsPath)
		return
	}
	fmt.Printf("Saved %s (backend %s)\n", result.OutputPath, result.Backend)

	if upload && env.S3Enabled() {
		up, err := publish.NewS3Uploader(ctx, publish.ConfigFromEnv(env))
		if err != nil {
			logger.Warn("S3 upload disabled", "error", err)
			return
		}
		url, err := up.UploadFile(ctx, result.OutputPath)
		if err != nil {
			logger.Warn("upload failed", "error", err)
			return
		}
		fmt.Printf("Uploaded %s\n", url)
	}
}

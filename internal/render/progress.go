package render

import (
	"strconv"
	"strings"
	"time"
)

// progressArgs makes ffmpeg print key=value progress blocks on stdout.
var progressArgs = []string{"-hide_banner", "-nostdin", "-progress", "pipe:1", "-nostats"}

// ParseProgress reads one line of ffmpeg's -progress output and returns
// the fraction of targetSeconds encoded so far. ok is false for lines
// that carry no position.
func ParseProgress(line string, targetSeconds int) (fraction float64, ok bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || targetSeconds <= 0 {
		return 0, false
	}

	var seconds float64
	switch key {
	case "out_time_us", "out_time_ms":
		// ffmpeg reports microseconds under both keys
		us, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, false
		}
		seconds = float64(us) / 1e6
	case "out_time":
		d, err := parseClock(value)
		if err != nil {
			return 0, false
		}
		seconds = d.Seconds()
	case "progress":
		if value == "end" {
			return 1, true
		}
		return 0, false
	default:
		return 0, false
	}

	fraction = seconds / float64(targetSeconds)
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}

// parseClock parses HH:MM:SS.micro as printed by ffmpeg.
func parseClock(value string) (time.Duration, error) {
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, strconv.ErrSyntax
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, err
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, err
	}
	total := float64(h)*3600 + float64(m)*60 + s
	return time.Duration(total * float64(time.Second)), nil
}

func progressLine(hooks Hooks, targetSeconds int) func(string) {
	return func(line string) {
		if fraction, ok := ParseProgress(line, targetSeconds); ok {
			hooks.progress(fraction)
		}
	}
}

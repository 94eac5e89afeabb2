package render

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
)

// CommandLog captures one external command invocation result.
type CommandLog struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exitCode"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// CommandResult is a finished process response.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution for testability. onLine receives
// each stdout line as it is written.
type Runner interface {
	Run(ctx context.Context, name string, args []string, onLine func(line string)) (CommandResult, error)
}

// ExecRunner executes commands via os/exec.
type ExecRunner struct{}

// Run executes one command, streaming stdout and capturing stderr and the
// exit code.
func (r *ExecRunner) Run(ctx context.Context, name string, args []string, onLine func(line string)) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return CommandResult{ExitCode: -1}, err
	}
	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1, Stderr: err.Error()}, err
	}

	scanner := bufio.NewScanner(pipe)
	for scanner.Scan() {
		line := scanner.Text()
		stdout.WriteString(line)
		stdout.WriteByte('\n')
		if onLine != nil {
			onLine(line)
		}
	}
	// drain whatever the scanner refused so Wait cannot block
	_, _ = io.Copy(io.Discard, pipe)

	err = cmd.Wait()
	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: 0,
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}
		return result, err
	}

	return result, nil
}

// runLogged runs one command and reports its log through hooks.
func runLogged(ctx context.Context, runner Runner, hooks Hooks, name string, args []string, onLine func(string)) (CommandLog, error) {
	res, err := runner.Run(ctx, name, args, onLine)
	log := CommandLog{
		Command:  name,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	hooks.log(log)
	return log, err
}

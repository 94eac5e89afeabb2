package render

import (
	"context"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipIfNoShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecRunner_StreamsStdoutLines(t *testing.T) {
	skipIfNoShell(t)

	var lines []string
	res, err := (&ExecRunner{}).Run(context.Background(), "sh", []string{"-c", "echo out_time_us=1; echo progress=end; echo oops >&2"}, func(line string) {
		lines = append(lines, line)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"out_time_us=1", "progress=end"}, lines)
	assert.Equal(t, "out_time_us=1\nprogress=end\n", res.Stdout)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunner_ExitCode(t *testing.T) {
	skipIfNoShell(t)

	res, err := (&ExecRunner{}).Run(context.Background(), "sh", []string{"-c", "exit 3"}, nil)
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	res, err := (&ExecRunner{}).Run(context.Background(), "definitely-not-a-real-binary-xyz", nil, nil)
	require.Error(t, err)
	assert.Equal(t, -1, res.ExitCode)
}

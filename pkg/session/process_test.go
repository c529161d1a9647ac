package session

import (
	"bufio"
	"io"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecProcess_OutputSurvivesExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	p, out, err := StartProcess(exec.Command("sh", "-c", "echo out; echo err >&2"))
	require.NoError(t, err)
	defer out.Close()

	require.NoError(t, p.Wait())
	assert.False(t, p.Running())
	assert.Equal(t, 0, p.ExitCode())

	data, err := io.ReadAll(out)
	require.NoError(t, err)
	assert.Equal(t, "out\nerr\n", string(data))
}

func TestExecProcess_Terminate(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	p, out, err := StartProcess(exec.Command("sh", "-c", "echo ready; exec sleep 30"))
	require.NoError(t, err)
	defer out.Close()

	line, err := bufio.NewReader(out).ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ready\n", line)
	assert.True(t, p.Running())

	require.NoError(t, p.Terminate())
	done := make(chan error, 1)
	go func() { done <- p.Wait() }()
	select {
	case err := <-done:
		assert.Error(t, err, "terminated process reports a signal exit")
	case <-time.After(5 * time.Second):
		t.Fatal("process did not exit")
	}
	assert.False(t, p.Running())
}

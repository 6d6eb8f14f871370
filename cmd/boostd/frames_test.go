package main

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli"
)

// runFrames выполняет подкоманду frames и возвращает stdout
func runFrames(t *testing.T, args ...string) (string, error) {
	t.Helper()
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	cliApp := cli.NewApp()
	cliApp.Commands = []cli.Command{framesCommand()}
	runErr := cliApp.Run(append([]string{"boostd", "frames"}, args...))

	require.NoError(t, w.Close())
	out, err := io.ReadAll(r)
	require.NoError(t, err)
	return strings.TrimSpace(string(out)), runErr
}

func TestFramesMotor(t *testing.T) {
	out, err := runFrames(t, "motor", "--ccw", "A", "50", "1000")

	require.NoError(t, err)
	assert.Equal(t, "0C 00 81 37 11 09 E8 03 CD 64 7F 03", out)
}

func TestFramesLED(t *testing.T) {
	out, err := runFrames(t, "led", "red")

	require.NoError(t, err)
	assert.Equal(t, "08 00 81 32 11 51 00 09", out)
}

func TestFramesNotifyNeedsPort(t *testing.T) {
	out, err := runFrames(t, "notify", "--color-port", "C", "color")

	require.NoError(t, err)
	assert.Equal(t, "0A 00 41 01 08 01 00 00 00 01", out)
}

func TestFramesDecode(t *testing.T) {
	out, err := runFrames(t, "decode", "06 00 01 02 06 01")

	require.NoError(t, err)
	assert.Equal(t, "lwp.ButtonPressed: Кнопка нажата", out)
}

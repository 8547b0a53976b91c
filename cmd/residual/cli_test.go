package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opd-ai/residual/factory"
	"github.com/opd-ai/residual/frame"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		factory.EnvBackend, factory.EnvModel, factory.EnvMode,
		factory.EnvInferTimeout, factory.EnvSeed, factory.EnvUseSimulation,
	} {
		t.Setenv(key, "")
	}
}

func runCLI(t *testing.T, stdin []byte, args ...string) (string, error) {
	t.Helper()
	cmd := NewCLI()
	var stdout, stderr bytes.Buffer
	cmd.SetIn(bytes.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

// rawVideo returns n tightly packed frames whose samples hold fill.
func rawVideo(format *frame.Format, width, height, n int, fill byte) []byte {
	return bytes.Repeat([]byte{fill}, frame.FrameSize(format, width, height)*n)
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		w, h    int
		wantErr bool
	}{
		{"valid", "640x480", 640, 480, false},
		{"upper_case", "8X6", 8, 6, false},
		{"missing_separator", "640", 0, 0, true},
		{"bad_width", "ax480", 0, 0, true},
		{"bad_height", "640xb", 0, 0, true},
		{"zero", "0x480", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, err := parseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)
		})
	}
}

func TestBackendsCommand(t *testing.T) {
	out, err := runCLI(t, nil, "backends")
	require.NoError(t, err)
	assert.Contains(t, out, "native\n")
	assert.Contains(t, out, "simulation\n")
}

func TestFilter_PassthroughRoundTrip(t *testing.T) {
	clearEnv(t)
	input := rawVideo(frame.YUV420P, 8, 6, 3, 77)
	input[5] = 200

	out, err := runCLI(t, input, "filter", "--simulate", "--mode", "passthrough", "--size", "8x6", "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t, input, []byte(out))
}

func TestFilter_SimulatedFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	inPath := filepath.Join(dir, "in.yuv")
	outPath := filepath.Join(dir, "out.yuv")
	require.NoError(t, os.WriteFile(inPath, rawVideo(frame.YUV444P, 4, 4, 5, 10), 0o600))

	_, err := runCLI(t, nil, "filter", "--simulate", "--model", "m",
		"--format", "yuv444p", "--size", "4x4", "--frames", "2",
		"-i", inPath, "-o", outPath, "--log-level", "error")
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Len(t, data, frame.FrameSize(frame.YUV444P, 4, 4)*2)
}

func TestFilter_RandomModeChangesInterior(t *testing.T) {
	clearEnv(t)
	input := rawVideo(frame.YUV444P, 5, 5, 1, 50)

	out, err := runCLI(t, input, "filter", "--simulate", "--mode", "random", "--seed", "7",
		"--format", "yuv444p", "--size", "5x5", "--log-level", "error")
	require.NoError(t, err)
	require.Len(t, out, len(input))

	// Border samples of the first plane are untouched.
	for x := 0; x < 5; x++ {
		assert.Equal(t, byte(50), out[x])
	}
}

func TestFilter_Errors(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name string
		args []string
	}{
		{"missing_size", []string{"filter", "--simulate"}},
		{"bad_size", []string{"filter", "--simulate", "--size", "big"}},
		{"unknown_format", []string{"filter", "--simulate", "--size", "4x4", "--format", "rgb48"}},
		{"unknown_mode", []string{"filter", "--simulate", "--size", "4x4", "--mode", "blur"}},
		{"bad_data_type", []string{"filter", "--simulate", "--size", "4x4", "--data-type", "int4"}},
		{"missing_model", []string{"filter", "--size", "4x4"}},
		{"four_planes", []string{"filter", "--simulate", "--size", "4x4", "--format", "yuva420p"}},
		{"truncated_input", []string{"filter", "--simulate", "--size", "4x4", "--format", "yuv444p"}},
		{"bad_log_level", []string{"filter", "--simulate", "--size", "4x4", "--log-level", "loud"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdin := rawVideo(frame.YUVA420P, 4, 4, 1, 0)
			if tt.name == "truncated_input" {
				stdin = rawVideo(frame.YUV444P, 4, 4, 1, 0)[:20]
			}
			_, err := runCLI(t, stdin, tt.args...)
			assert.Error(t, err)
		})
	}
}

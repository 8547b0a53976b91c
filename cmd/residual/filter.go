package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/residual/dnn"
	"github.com/opd-ai/residual/factory"
	"github.com/opd-ai/residual/frame"
	"github.com/opd-ai/residual/stage"
)

func newFilterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Filter raw planar frames from --input to --output",
		Long: `Reads tightly packed raw planar frames, applies the residual stage to each
and writes the result in the same layout. Use "-" for stdin or stdout.`,
		Args: cobra.NoArgs,
		RunE: FilterHandler,
	}

	cmd.Flags().String("model", "", "Model path or identifier")
	cmd.Flags().String("backend", stage.DefaultBackend, "Inference backend")
	cmd.Flags().String("mode", string(stage.ModeDNN), "Residual mode (dnn, random, passthrough)")
	cmd.Flags().String("data-type", dnn.Float32.String(), "Tensor data type (float32, uint8)")
	cmd.Flags().String("format", frame.YUV420P.Name, "Pixel format")
	cmd.Flags().String("size", "", "Frame size as WxH")
	cmd.Flags().StringP("input", "i", "-", "Input file")
	cmd.Flags().StringP("output", "o", "-", "Output file")
	cmd.Flags().Int("frames", 0, "Stop after this many frames (0 for all)")
	cmd.Flags().Duration("timeout", 0, "Per-frame inference timeout (0 for none)")
	cmd.Flags().Uint64("seed", 0, "Random mode seed")
	cmd.Flags().Int("threads", 0, "Backend threads (0 for backend default)")
	cmd.Flags().Bool("simulate", false, "Use the simulated backend")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

// stageConfigFromFlags starts from the factory configuration, which carries
// the environment overrides, and applies every flag set on the command line.
func stageConfigFromFlags(cmd *cobra.Command) (*factory.Config, error) {
	config := factory.NewStageFactory().GetCurrentConfig()
	flags := cmd.Flags()

	if flags.Changed("model") {
		config.Stage.Model, _ = flags.GetString("model")
	}
	if flags.Changed("backend") {
		config.Stage.Backend, _ = flags.GetString("backend")
	}
	if flags.Changed("mode") {
		s, _ := flags.GetString("mode")
		mode, err := stage.ParseMode(s)
		if err != nil {
			return nil, err
		}
		config.Stage.Mode = mode
	}
	if flags.Changed("data-type") {
		s, _ := flags.GetString("data-type")
		dt, err := dnn.ParseDataType(s)
		if err != nil {
			return nil, err
		}
		config.Stage.DataType = dt
	}
	if flags.Changed("timeout") {
		config.Stage.InferTimeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("seed") {
		config.Stage.Seed, _ = flags.GetUint64("seed")
	}
	if flags.Changed("threads") {
		config.Stage.NumThreads, _ = flags.GetInt("threads")
	}
	if flags.Changed("simulate") {
		config.UseSimulation, _ = flags.GetBool("simulate")
	}
	return config, nil
}

// FilterHandler runs the filter command.
func FilterHandler(cmd *cobra.Command, args []string) error {
	config, err := stageConfigFromFlags(cmd)
	if err != nil {
		return err
	}

	formatName, _ := cmd.Flags().GetString("format")
	format, err := frame.LookupFormat(formatName)
	if err != nil {
		return err
	}
	sizeStr, _ := cmd.Flags().GetString("size")
	width, height, err := parseSize(sizeStr)
	if err != nil {
		return err
	}
	maxFrames, _ := cmd.Flags().GetInt("frames")

	inPath, _ := cmd.Flags().GetString("input")
	in, closeIn, err := openInput(cmd, inPath)
	if err != nil {
		return err
	}
	defer closeIn()

	outPath, _ := cmd.Flags().GetString("output")
	out, closeOut, err := openOutput(cmd, outPath)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	sink := stage.SinkFunc(func(f *frame.Frame) error {
		defer f.Release()
		return frame.WriteFrame(w, f)
	})

	st, err := factory.NewStageFactory().CreateStageWithConfig(config, sink)
	if err != nil {
		closeOut()
		return err
	}

	start := time.Now()
	n, runErr := filterStream(cmd, st, bufio.NewReader(in), format, width, height, maxFrames)

	closeErr := st.Close()
	flushErr := w.Flush()
	closeOut()

	stats := st.Stats()
	logrus.WithFields(logrus.Fields{
		"function":           "FilterHandler",
		"frames":             n,
		"inference_failures": stats.InferenceFailures,
		"avg_infer_time":     stats.AverageInferTime(),
		"elapsed":            time.Since(start),
	}).Info("Filtering finished")

	return errors.Join(runErr, closeErr, flushErr)
}

// filterStream feeds frames from r into st until EOF, maxFrames or cancellation.
func filterStream(cmd *cobra.Command, st *stage.Stage, r io.Reader, format *frame.Format, width, height, maxFrames int) (int, error) {
	ctx := cmd.Context()
	size := int64(frame.FrameSize(format, width, height))

	n := 0
	for maxFrames <= 0 || n < maxFrames {
		if err := ctx.Err(); err != nil {
			return n, err
		}

		f := frame.New(format, width, height)
		if err := frame.ReadFrame(r, f); err != nil {
			f.Release()
			if errors.Is(err, io.EOF) {
				return n, nil
			}
			return n, fmt.Errorf("read frame %d: %w", n, err)
		}
		f.Sequence = uint64(n)
		f.Pos = int64(n) * size
		f.PTS = int64(n)
		f.Duration = 1

		if err := st.FilterFrame(ctx, f); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func openInput(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func openOutput(cmd *cobra.Command, path string) (io.Writer, func(), error) {
	if path == "-" {
		return cmd.OutOrStdout(), func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

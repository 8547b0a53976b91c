package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opd-ai/residual/dnn"
	"github.com/opd-ai/residual/factory"
)

// NewCLI creates the root command with all subcommands.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "residual",
		Short:         "Add model-computed residuals to raw planar video",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
	}

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		levelStr, _ := cmd.Flags().GetString("log-level")
		level, err := logrus.ParseLevel(levelStr)
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		logrus.SetOutput(cmd.ErrOrStderr())
		return nil
	}

	filterCmd := newFilterCmd()
	appendEnvDocs(filterCmd)

	rootCmd.AddCommand(filterCmd, newBackendsCmd())
	return rootCmd
}

// appendEnvDocs adds the factory environment variables to the usage text.
func appendEnvDocs(cmd *cobra.Command) {
	envs := []struct{ name, desc string }{
		{factory.EnvBackend, "Inference backend"},
		{factory.EnvModel, "Model path"},
		{factory.EnvMode, "Residual mode"},
		{factory.EnvInferTimeout, "Inference timeout in milliseconds"},
		{factory.EnvSeed, "Random mode seed"},
		{factory.EnvUseSimulation, "Use the simulated backend"},
	}

	usage := "\nEnvironment Variables:\n"
	for _, e := range envs {
		usage += fmt.Sprintf("      %-28s   %s\n", e.name, e.desc)
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + usage)
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered inference backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range dnn.Backends() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// parseSize parses a WxH frame size.
func parseSize(s string) (int, int, error) {
	ws, hs, ok := strings.Cut(strings.ToLower(s), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid size %q, expected WxH", s)
	}
	w, err := strconv.Atoi(ws)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid width in %q: %w", s, err)
	}
	h, err := strconv.Atoi(hs)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid height in %q: %w", s, err)
	}
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("invalid size %q, dimensions must be positive", s)
	}
	return w, h, nil
}

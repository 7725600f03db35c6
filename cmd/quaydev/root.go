package quaydev

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/akashkj/quay/pkg/driver"
	"github.com/akashkj/quay/pkg/services"
)

var (
	pipelineFilePath string
	envVars          []string
	pipelineTimeout  time.Duration
	readyInterval    time.Duration
	readyTimeout     time.Duration
	showImagePull    bool

	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "quaydev",
	})
)

var rootCmd = &cobra.Command{
	Use:   "quaydev",
	Short: "quaydev builds and tests the registry",
	Long: `quaydev is the build and test orchestrator for the registry. It rebuilds
frontend assets incrementally from declared file dependencies, provisions
ephemeral database containers with readiness checks when a suite needs
them, and guarantees teardown whatever the test outcome.`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&pipelineFilePath, "pipeline-file", "f", "quaydev.yml", "Path to the pipeline file.")
	rootCmd.PersistentFlags().StringArrayVarP(&envVars, "environment-variable", "e", nil, "Environment variables passed to targets and suites. KEY=VALUE")
	rootCmd.PersistentFlags().DurationVar(&pipelineTimeout, "timeout", time.Hour, "Deadline for the whole pipeline run.")
	rootCmd.PersistentFlags().DurationVar(&readyInterval, "ready-interval", services.DefaultReadyInterval, "Interval between service readiness probes.")
	rootCmd.PersistentFlags().DurationVar(&readyTimeout, "ready-timeout", services.DefaultReadyTimeout, "Per-service readiness wait ceiling.")
	rootCmd.PersistentFlags().BoolVar(&showImagePull, "show-image-pull", false, "Stream image pull progress.")

	for _, c := range []struct {
		use, short, pipeline string
	}{
		{"build", "Build all stale targets", "build"},
		{"test-unit", "Build, then run the unit suite", "unit"},
		{"test-with-store", "Build, provision the database, then run the store suite", "with-external-store"},
		{"full", "Build, then run every declared suite", "full"},
		{"clean", "Remove declared target outputs and diagnostics", "clean"},
	} {
		pipeline := c.pipeline
		rootCmd.AddCommand(&cobra.Command{
			Use:   c.use,
			Short: c.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return run(cmd.Context(), pipeline)
			},
		})
	}

	rootCmd.AddCommand(versionCmd)
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error("pipeline failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, pipeline string) error {
	passthrough, err := parseEnvVars(envVars)
	if err != nil {
		return err
	}

	cfg, err := driver.Load(pipelineFilePath)
	if err != nil {
		return err
	}

	p := driver.NewPipeline(cfg, logger).WithEnv(passthrough)

	if pipeline != "build" && pipeline != "clean" {
		backend, err := newBackend()
		if err != nil {
			return err
		}
		manager := services.NewManager(backend, p.Store(), logger).
			WithReadyBudget(readyInterval, readyTimeout)
		p = p.WithProvisioner(manager)
	}

	ctx, cancel := context.WithTimeout(ctx, pipelineTimeout)
	defer cancel()

	err = p.Run(ctx, pipeline)
	p.Report()
	return err
}

func newBackend() (*services.DockerBackend, error) {
	backend, err := services.NewDockerBackend(driver.DiagnosticsDir)
	if err != nil {
		return nil, err
	}
	if showImagePull {
		backend = backend.ShowImagePull(os.Stderr)
	}
	return backend, nil
}

func parseEnvVars(pairs []string) ([]string, error) {
	passthrough := make([]string, 0, len(pairs))
	for _, v := range pairs {
		key, _, found := strings.Cut(v, "=")
		if !found || key == "" {
			return nil, &envFormatError{value: v}
		}
		passthrough = append(passthrough, v)
	}
	return passthrough, nil
}

type envFormatError struct{ value string }

func (e *envFormatError) Error() string {
	return "variables should be defined as KEY=VALUE: " + e.value
}

package driver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/akashkj/quay/pkg/models"
)

// Suite names the fixed pipeline compositions are wired to.
const (
	SuiteUnit  = "unit"
	SuiteStore = "store"
)

// Load reads and validates the pipeline file.
func Load(path string) (*models.PipelineFile, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("unable to read pipeline file %s: %w", path, err)
	}

	var cfg models.PipelineFile
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unable to parse pipeline file %s: %w", path, err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid pipeline file %s: %w", path, err)
	}

	return &cfg, nil
}

// Run executes one of the fixed named pipelines. Any stage failure aborts
// the stages after it.
func (p *Pipeline) Run(ctx context.Context, pipeline string) error {
	switch pipeline {
	case "build":
		return p.Build(ctx)
	case "unit":
		if err := p.Build(ctx); err != nil {
			return err
		}
		return p.RunSuite(ctx, SuiteUnit)
	case "with-external-store":
		if err := p.Build(ctx); err != nil {
			return err
		}
		return p.RunSuite(ctx, SuiteStore)
	case "full":
		if err := p.Build(ctx); err != nil {
			return err
		}
		for _, suite := range p.cfg.Suites {
			if err := p.RunSuite(ctx, suite.Name); err != nil {
				return err
			}
		}
		return nil
	case "clean":
		return p.Clean(ctx)
	default:
		return fmt.Errorf("unknown pipeline %q", pipeline)
	}
}

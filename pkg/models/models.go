package models

type Variable map[string]string

// PipelineFile is the parsed form of quaydev.yml. It declares the build
// targets, the ephemeral services test suites depend on, and the test
// suites themselves.
type PipelineFile struct {
	Targets  []Target  `yaml:"targets" validate:"required,dive"`
	Services []Service `yaml:"services" validate:"dive"`
	Suites   []Suite   `yaml:"suites" validate:"dive"`
}

// Target is a named build unit. Outputs are rebuilt when missing or older
// than any input. A target with no outputs must set always to true
// (install-type steps that leave no artifact behind).
type Target struct {
	Name      string     `yaml:"name" validate:"required"`
	Inputs    []string   `yaml:"inputs"`
	Outputs   []string   `yaml:"outputs"`
	Command   []string   `yaml:"command" validate:"required,min=1"`
	DependsOn []string   `yaml:"depends_on"`
	Variables []Variable `yaml:"variables"`
	Always    bool       `yaml:"always"`
}

// Service describes one ephemeral containerized dependency, typically a
// database. Port is the container port that gets published on a host port
// so the readiness probe and the test executor can reach it.
type Service struct {
	Name      string     `yaml:"name" validate:"required"`
	Image     string     `yaml:"image" validate:"required"`
	Port      int        `yaml:"port" validate:"required,gt=0,lte=65535"`
	HostPort  int        `yaml:"host_port" validate:"gte=0,lte=65535"`
	Variables []Variable `yaml:"variables"`
	// URIEnv names an environment variable the driver fills in with
	// host:port of the started service before running a suite.
	URIEnv string `yaml:"uri_env"`
}

// Suite selects a test executor invocation: the command to run and the
// services that must be up first.
type Suite struct {
	Name      string     `yaml:"name" validate:"required"`
	Command   []string   `yaml:"command" validate:"required,min=1"`
	Needs     []string   `yaml:"needs"`
	Variables []Variable `yaml:"variables"`
}
